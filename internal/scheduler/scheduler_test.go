package scheduler

import (
	"context"
	"testing"
	"time"

	"realmforge/economy"
	"realmforge/internal/campaign"
	"realmforge/internal/ledger"
	"realmforge/internal/player"
	"realmforge/internal/shop"
)

func newShops(t *testing.T) (*shop.Service, *shop.MemoryStore, string, string) {
	t.Helper()
	ctx := context.Background()
	campaigns := campaign.NewMemoryService()
	camp, err := campaigns.CreateCampaign(ctx, 1, "Emberfall", "")
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	item, err := campaigns.CreateItem(ctx, economy.Item{
		CampaignID: camp.ID, Name: "Healing Potion", Type: "consumable", Rarity: economy.RarityCommon,
	})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	store := shop.NewMemoryStore()
	shops := shop.NewService(store, campaigns, player.NewMemoryService(), ledger.NewMemoryService())
	t.Cleanup(func() { shops.Close() })
	return shops, store, camp.ID, item.ID
}

func TestRestockAll(t *testing.T) {
	shops, store, campaignID, itemID := newShops(t)
	ctx := context.Background()

	created, err := shops.Create(ctx, shop.NewShop{CampaignID: campaignID, Name: "The Gilded Flask"})
	if err != nil {
		t.Fatalf("create shop: %v", err)
	}
	rate, maxStock := 3, 5
	created.Inventory = []economy.InventoryEntry{{
		ItemID: itemID, Stock: 0, RestockRate: &rate, MaxStock: &maxStock,
	}}
	if err := store.Save(ctx, created); err != nil {
		t.Fatalf("seed stock: %v", err)
	}

	sched := New(shops, Config{
		RestockInterval:        time.Hour,
		BuybackCleanupInterval: time.Hour,
		CounterIdleTTL:         time.Hour,
	})
	sched.RestockAll(ctx)

	got, err := shops.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Inventory[0].Stock != 3 {
		t.Fatalf("stock = %d, want 3", got.Inventory[0].Stock)
	}

	sched.RestockAll(ctx)
	got, _ = shops.Get(ctx, created.ID)
	if got.Inventory[0].Stock != 5 {
		t.Fatalf("stock = %d, want capped at 5", got.Inventory[0].Stock)
	}
}

func TestCleanupAll(t *testing.T) {
	shops, store, campaignID, itemID := newShops(t)
	ctx := context.Background()

	created, err := shops.Create(ctx, shop.NewShop{CampaignID: campaignID, Name: "The Gilded Flask"})
	if err != nil {
		t.Fatalf("create shop: %v", err)
	}
	nowMs := time.Now().UnixMilli()
	created.BuybackInventory = []economy.BuybackEntry{
		{ID: "stale", ItemID: itemID, ExpiresAtMs: nowMs - 1000},
		{ID: "fresh", ItemID: itemID, ExpiresAtMs: nowMs + 60_000},
	}
	if err := store.Save(ctx, created); err != nil {
		t.Fatalf("seed buybacks: %v", err)
	}

	sched := New(shops, Config{
		RestockInterval:        time.Hour,
		BuybackCleanupInterval: time.Hour,
		CounterIdleTTL:         time.Hour,
	})
	sched.CleanupAll(ctx)

	got, err := shops.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.BuybackInventory) != 1 || got.BuybackInventory[0].ID != "fresh" {
		t.Fatalf("stale buyback survived: %+v", got.BuybackInventory)
	}
}

func TestStartStop(t *testing.T) {
	shops, _, _, _ := newShops(t)
	sched := New(shops, Config{
		RestockInterval:        time.Millisecond,
		BuybackCleanupInterval: time.Millisecond,
		CounterIdleTTL:         time.Millisecond,
	})
	sched.Start()
	time.Sleep(10 * time.Millisecond)
	sched.Stop()
}
