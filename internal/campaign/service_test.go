package campaign

import (
	"context"
	"errors"
	"testing"

	"realmforge/economy"
)

func testServices(t *testing.T) map[string]Service {
	t.Helper()
	sqlite, err := NewSQLiteService(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]Service{
		"memory": NewMemoryService(),
		"sqlite": sqlite,
	}
}

func TestCampaignOwnership(t *testing.T) {
	for name, svc := range testServices(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c, err := svc.CreateCampaign(ctx, 7, "The Sunken Vale", "")
			if err != nil {
				t.Fatalf("create campaign: %v", err)
			}

			owner, err := svc.IsOwner(ctx, c.ID, 7)
			if err != nil || !owner {
				t.Fatalf("owner check = %v, %v", owner, err)
			}
			stranger, err := svc.IsOwner(ctx, c.ID, 8)
			if err != nil || stranger {
				t.Fatalf("stranger check = %v, %v", stranger, err)
			}
			if _, err := svc.IsOwner(ctx, "nope", 7); !errors.Is(err, ErrCampaignNotFound) {
				t.Fatalf("missing campaign: %v", err)
			}
		})
	}
}

func TestItemCatalog(t *testing.T) {
	for name, svc := range testServices(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c, err := svc.CreateCampaign(ctx, 1, "Vale", "")
			if err != nil {
				t.Fatalf("create campaign: %v", err)
			}

			item, err := svc.CreateItem(ctx, economy.Item{
				CampaignID: c.ID,
				Name:       "Healing Potion",
				Type:       "consumable",
				Rarity:     economy.RarityCommon,
			})
			if err != nil {
				t.Fatalf("create item: %v", err)
			}
			if item.ID == "" {
				t.Fatalf("item got no id")
			}

			byName, err := svc.FindItemByName(ctx, c.ID, "Healing Potion")
			if err != nil || byName.ID != item.ID {
				t.Fatalf("find by name: %+v, %v", byName, err)
			}
			if _, err := svc.FindItemByName(ctx, c.ID, "Dragon Scale"); !errors.Is(err, ErrItemNotFound) {
				t.Fatalf("missing item: %v", err)
			}
			if _, err := svc.CreateItem(ctx, economy.Item{CampaignID: "nope", Name: "x"}); !errors.Is(err, ErrCampaignNotFound) {
				t.Fatalf("orphan item accepted: %v", err)
			}

			items, err := svc.ListItems(ctx, c.ID)
			if err != nil || len(items) != 1 {
				t.Fatalf("list: %d items, %v", len(items), err)
			}
		})
	}
}

func TestNPCLifecycle(t *testing.T) {
	for name, svc := range testServices(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c, err := svc.CreateCampaign(ctx, 1, "Vale", "")
			if err != nil {
				t.Fatalf("create campaign: %v", err)
			}

			bandit, err := svc.CreateNPC(ctx, NPC{CampaignID: c.ID, Name: "Bandit"})
			if err != nil {
				t.Fatalf("create npc: %v", err)
			}
			king, err := svc.CreateNPC(ctx, NPC{CampaignID: c.ID, Name: "King", IsEssential: true})
			if err != nil {
				t.Fatalf("create npc: %v", err)
			}

			dead, err := svc.SetNPCDead(ctx, bandit.ID, true, "condition", 5000)
			if err != nil || !dead.IsDead || dead.DeathAtMs != 5000 {
				t.Fatalf("kill: %+v, %v", dead, err)
			}
			if _, err := svc.SetNPCDead(ctx, king.ID, true, "condition", 5000); !errors.Is(err, ErrNPCEssential) {
				t.Fatalf("essential npc killed: %v", err)
			}

			revived, err := svc.SetNPCDead(ctx, bandit.ID, false, "", 6000)
			if err != nil || revived.IsDead || revived.DeathCause != "" || revived.DeathAtMs != 0 {
				t.Fatalf("revive: %+v, %v", revived, err)
			}
		})
	}
}
