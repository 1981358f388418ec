package shop

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"realmforge/economy"
)

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	sqliteStore, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = sqliteStore.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqliteStore,
	}
}

func fullShop(id string) economy.Shop {
	base := 15
	rate := 2
	return economy.Shop{
		ID:                 id,
		CampaignID:         "camp-1",
		LocationID:         "loc-1",
		Name:               "The Rusty Anvil",
		Description:        "Sparks and steel",
		Type:               "blacksmith",
		ShopkeeperID:       "npc-smith",
		Inventory:          []economy.InventoryEntry{{ItemID: "item-sword", Stock: 3, BasePrice: &base, RestockRate: &rate}},
		BuybackInventory:   []economy.BuybackEntry{{ID: "bb-1", ItemID: "item-sword", SoldByPlayerID: "hero", SoldAtMs: 1000, BuybackPrice: 18, ExpiresAtMs: 999_999}},
		BasePriceModifier:  1.1,
		BuybackModifier:    1.2,
		BuybackDurationMin: 30,
		DynamicPricing:     &economy.DynamicPricing{SupplyDemandFactor: true},
		AIManaged:          true,
		IsOpen:             true,
		LastAIUpdateMs:     5000,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			want := fullShop("shop-" + name)
			if _, err := store.Create(ctx, want); err != nil {
				t.Fatalf("create: %v", err)
			}
			got, err := store.Get(ctx, want.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
			}

			got.IsOpen = false
			got.Inventory[0].Stock = 1
			got.BuybackInventory = nil
			if err := store.Save(ctx, got); err != nil {
				t.Fatalf("save: %v", err)
			}
			reloaded, err := store.Get(ctx, want.ID)
			if err != nil {
				t.Fatalf("reload: %v", err)
			}
			if reloaded.IsOpen || reloaded.Inventory[0].Stock != 1 {
				t.Fatalf("save not persisted: %+v", reloaded)
			}
			if len(reloaded.BuybackInventory) != 0 {
				t.Fatalf("buyback ledger should be empty after save")
			}
		})
	}
}

func TestStoreListAndDelete(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := fullShop("a-" + name)
			b := fullShop("b-" + name)
			b.LocationID = "loc-2"
			c := fullShop("c-" + name)
			c.CampaignID = "camp-2"
			for _, s := range []economy.Shop{a, b, c} {
				if _, err := store.Create(ctx, s); err != nil {
					t.Fatalf("create %s: %v", s.ID, err)
				}
			}

			byCampaign, err := store.ListByCampaign(ctx, "camp-1")
			if err != nil {
				t.Fatalf("list campaign: %v", err)
			}
			if len(byCampaign) != 2 {
				t.Fatalf("campaign list = %d shops, want 2", len(byCampaign))
			}
			byLocation, err := store.ListByLocation(ctx, "camp-1", "loc-2")
			if err != nil {
				t.Fatalf("list location: %v", err)
			}
			if len(byLocation) != 1 || byLocation[0].ID != b.ID {
				t.Fatalf("location list = %+v", byLocation)
			}
			campaignIDs, err := store.CampaignIDs(ctx)
			if err != nil {
				t.Fatalf("campaign ids: %v", err)
			}
			if len(campaignIDs) != 2 {
				t.Fatalf("campaign ids = %v, want 2 entries", campaignIDs)
			}

			if err := store.Delete(ctx, a.ID); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, err := store.Get(ctx, a.ID); !errors.Is(err, economy.ErrShopNotFound) {
				t.Fatalf("get deleted: got %v, want ErrShopNotFound", err)
			}
			if err := store.Delete(ctx, a.ID); !errors.Is(err, economy.ErrShopNotFound) {
				t.Fatalf("double delete: got %v, want ErrShopNotFound", err)
			}
		})
	}
}

func TestStoreSaveMissingShop(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			err := store.Save(context.Background(), fullShop("ghost-"+name))
			if !errors.Is(err, economy.ErrShopNotFound) {
				t.Fatalf("got %v, want ErrShopNotFound", err)
			}
		})
	}
}
