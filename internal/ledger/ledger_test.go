package ledger

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

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

func tx(shopID, playerID string, kind economy.TransactionType, total int, ts int64) economy.Transaction {
	return economy.Transaction{
		CampaignID:   "camp-1",
		ShopID:       shopID,
		PlayerID:     playerID,
		Type:         kind,
		ItemID:       "item-potion",
		Quantity:     1,
		PricePerUnit: total,
		TotalPrice:   total,
		TimestampMs:  ts,
	}
}

func TestAppendAndList(t *testing.T) {
	for name, svc := range testServices(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed := []economy.Transaction{
				tx("shop-1", "p1", economy.TransactionBuy, 20, 1000),
				tx("shop-1", "p2", economy.TransactionBuy, 10, 2000),
				tx("shop-2", "p1", economy.TransactionSell, 5, 3000),
			}
			for _, item := range seed {
				if err := svc.Append(ctx, item); err != nil {
					t.Fatalf("append: %v", err)
				}
			}

			got, err := svc.ListByPlayer(ctx, "camp-1", "p1", 10)
			if err != nil {
				t.Fatalf("list by player: %v", err)
			}
			want := []economy.Transaction{seed[2], seed[0]}
			ignoreID := cmpopts.IgnoreFields(economy.Transaction{}, "ID")
			if diff := cmp.Diff(want, got, ignoreID); diff != "" {
				t.Fatalf("player list mismatch (-want +got):\n%s", diff)
			}

			byShop, err := svc.ListByShop(ctx, "shop-1", 10)
			if err != nil {
				t.Fatalf("list by shop: %v", err)
			}
			if len(byShop) != 2 || byShop[0].PlayerID != "p2" {
				t.Fatalf("shop list = %+v", byShop)
			}
		})
	}
}

func TestPlayerNetSignsByType(t *testing.T) {
	for name, svc := range testServices(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed := []economy.Transaction{
				tx("shop-1", "p1", economy.TransactionBuy, 20, 1000),
				tx("shop-1", "p1", economy.TransactionSell, 5, 2000),
				tx("shop-1", "p1", economy.TransactionBuyback, 6, 3000),
				tx("shop-1", "p2", economy.TransactionSell, 999, 4000),
			}
			for _, item := range seed {
				if err := svc.Append(ctx, item); err != nil {
					t.Fatalf("append: %v", err)
				}
			}
			net, err := svc.PlayerNet(ctx, "camp-1", "p1")
			if err != nil {
				t.Fatalf("player net: %v", err)
			}
			if net != -21 {
				t.Fatalf("net = %d, want -21", net)
			}
		})
	}
}

func TestAppendRejectsPartialRecord(t *testing.T) {
	for name, svc := range testServices(t) {
		t.Run(name, func(t *testing.T) {
			bad := tx("", "p1", economy.TransactionBuy, 20, 1000)
			if err := svc.Append(context.Background(), bad); err == nil {
				t.Fatalf("append accepted a record without a shop id")
			}
		})
	}
}

func TestListLimitClamped(t *testing.T) {
	svc := NewMemoryService()
	ctx := context.Background()
	for i := 0; i < 30; i++ {
		if err := svc.Append(ctx, tx("shop-1", "p1", economy.TransactionBuy, 1, int64(i))); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	got, err := svc.ListByPlayer(ctx, "camp-1", "p1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != defaultListLimit {
		t.Fatalf("len = %d, want %d", len(got), defaultListLimit)
	}
}
