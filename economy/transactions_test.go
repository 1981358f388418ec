package economy

import (
	"strings"
	"testing"
)

var healingPotion = Item{
	ID:         "item-potion",
	CampaignID: "camp-1",
	Name:       "Healing Potion",
	Type:       "consumable",
	Rarity:     RarityCommon,
}

func stockedShop() *Shop {
	shop := testShop(1.0)
	shop.Inventory = []InventoryEntry{{ItemID: healingPotion.ID, Stock: 5}}
	return shop
}

func TestBuyHappyPath(t *testing.T) {
	shop := stockedShop()
	out := Buy(shop, healingPotion, "p1", 2, 50, 1000)

	if !out.Result.OK {
		t.Fatalf("buy refused: %s", out.Result.Message)
	}
	if out.Result.Message != "Purchased 2x Healing Potion for 20 gold." {
		t.Fatalf("message = %q", out.Result.Message)
	}
	if out.GoldDelta != -20 || out.ItemDelta != 2 {
		t.Fatalf("deltas = %d gold, %d items", out.GoldDelta, out.ItemDelta)
	}
	if out.Result.RemainingGold != 30 {
		t.Fatalf("remaining gold = %d, want 30", out.Result.RemainingGold)
	}
	if shop.Inventory[0].Stock != 3 {
		t.Fatalf("stock = %d, want 3", shop.Inventory[0].Stock)
	}
	tx := out.Transaction
	if tx == nil || tx.Type != TransactionBuy || tx.TotalPrice != 20 || tx.PricePerUnit != 10 {
		t.Fatalf("transaction = %+v", tx)
	}
}

func TestBuyDefaultsQuantityToOne(t *testing.T) {
	shop := stockedShop()
	out := Buy(shop, healingPotion, "p1", 0, 50, 1000)
	if !out.Result.OK || out.Result.Quantity != 1 {
		t.Fatalf("quantity = %d, ok = %v", out.Result.Quantity, out.Result.OK)
	}
}

func TestBuyRefusalOrder(t *testing.T) {
	t.Run("closed shop", func(t *testing.T) {
		shop := stockedShop()
		shop.IsOpen = false
		out := Buy(shop, healingPotion, "p1", 1, 0, 1000)
		if out.Result.Message != "This shop is closed" {
			t.Fatalf("message = %q", out.Result.Message)
		}
	})
	t.Run("unstocked item", func(t *testing.T) {
		shop := testShop(1.0)
		out := Buy(shop, healingPotion, "p1", 1, 0, 1000)
		if out.Result.Message != "Item not available in this shop" {
			t.Fatalf("message = %q", out.Result.Message)
		}
	})
	t.Run("stock before gold", func(t *testing.T) {
		// Both checks would fail; stock is reported first.
		shop := stockedShop()
		shop.Inventory[0].Stock = 1
		out := Buy(shop, healingPotion, "p1", 3, 0, 1000)
		if out.Result.Message != "Not enough stock. Only 1 available." {
			t.Fatalf("message = %q", out.Result.Message)
		}
	})
	t.Run("insufficient gold", func(t *testing.T) {
		shop := stockedShop()
		out := Buy(shop, healingPotion, "p1", 2, 15, 1000)
		if out.Result.Message != "Not enough gold. Need 20, have 15." {
			t.Fatalf("message = %q", out.Result.Message)
		}
		if shop.Inventory[0].Stock != 5 {
			t.Fatalf("refused buy changed stock: %d", shop.Inventory[0].Stock)
		}
	})
}

func TestBuyUnlimitedStockNeverDepletes(t *testing.T) {
	shop := testShop(1.0)
	shop.Inventory = []InventoryEntry{{ItemID: healingPotion.ID, Stock: UnlimitedStock}}
	out := Buy(shop, healingPotion, "p1", 10, 1000, 1000)
	if !out.Result.OK {
		t.Fatalf("buy refused: %s", out.Result.Message)
	}
	if shop.Inventory[0].Stock != UnlimitedStock {
		t.Fatalf("unlimited stock changed: %d", shop.Inventory[0].Stock)
	}
}

func TestSellAndBuybackRoundTrip(t *testing.T) {
	shop := stockedShop()
	shop.BuybackDurationMin = 30

	sell := Sell(shop, healingPotion, "p1", 1, 1, 1000)
	if !sell.Result.OK {
		t.Fatalf("sell refused: %s", sell.Result.Message)
	}
	if sell.Result.Message != "Sold 1x Healing Potion for 5 gold." {
		t.Fatalf("message = %q", sell.Result.Message)
	}
	if sell.GoldDelta != 5 || sell.ItemDelta != -1 {
		t.Fatalf("deltas = %d gold, %d items", sell.GoldDelta, sell.ItemDelta)
	}
	if sell.Result.BuybackPrice != 6 {
		t.Fatalf("buyback price = %d, want 6", sell.Result.BuybackPrice)
	}
	if len(shop.BuybackInventory) != 1 {
		t.Fatalf("no buyback entry recorded")
	}

	entry := shop.BuybackInventory[0]
	back := Buyback(shop, healingPotion, "p1", entry.ID, 10, 2000)
	if !back.Result.OK {
		t.Fatalf("buyback refused: %s", back.Result.Message)
	}
	if back.Result.Message != "Bought back Healing Potion for 6 gold." {
		t.Fatalf("message = %q", back.Result.Message)
	}
	if back.GoldDelta != -6 || back.ItemDelta != 1 {
		t.Fatalf("deltas = %d gold, %d items", back.GoldDelta, back.ItemDelta)
	}
	if len(shop.BuybackInventory) != 0 {
		t.Fatalf("entry not consumed")
	}

	// The entry is gone; a second reclaim must fail.
	again := Buyback(shop, healingPotion, "p1", entry.ID, 10, 2000)
	if again.Result.OK || again.Result.Message != "Buyback item not found" {
		t.Fatalf("double redeem: %+v", again.Result)
	}
}

func TestSellIgnoresScarcityMarkup(t *testing.T) {
	shop := stockedShop()
	shop.DynamicPricing = &DynamicPricing{SupplyDemandFactor: true}
	shop.Inventory[0].Stock = 1

	out := Sell(shop, healingPotion, "p1", 1, 1, 1000)
	if out.GoldDelta != 5 {
		t.Fatalf("sell total = %d, want 5", out.GoldDelta)
	}
}

func TestSellWithoutItems(t *testing.T) {
	shop := stockedShop()
	out := Sell(shop, healingPotion, "p1", 3, 2, 1000)
	if out.Result.OK || out.Result.Message != "You don't have enough of that item" {
		t.Fatalf("result = %+v", out.Result)
	}
	if len(shop.BuybackInventory) != 0 {
		t.Fatalf("refused sell recorded a buyback entry")
	}
}

func TestBuybackGuards(t *testing.T) {
	shop := stockedShop()
	shop.BuybackDurationMin = 1
	entry := shop.AppendBuyback(healingPotion.ID, "p1", 5, 0)

	t.Run("wrong player", func(t *testing.T) {
		out := Buyback(shop, healingPotion, "p2", entry.ID, 100, 1000)
		if out.Result.Message != "This item wasn't sold by you" {
			t.Fatalf("message = %q", out.Result.Message)
		}
	})
	t.Run("expired", func(t *testing.T) {
		out := Buyback(shop, healingPotion, "p1", entry.ID, 100, 120_000)
		if out.Result.Message != "Buyback period has expired" {
			t.Fatalf("message = %q", out.Result.Message)
		}
	})
	t.Run("insufficient gold", func(t *testing.T) {
		out := Buyback(shop, healingPotion, "p1", entry.ID, 2, 1000)
		if !strings.HasPrefix(out.Result.Message, "Not enough gold. Need 6") {
			t.Fatalf("message = %q", out.Result.Message)
		}
		if len(shop.BuybackInventory) != 1 {
			t.Fatalf("refused buyback consumed the entry")
		}
	})
}

func TestGoldConservation(t *testing.T) {
	// Whatever a player spends or earns, the signed transaction totals
	// must match the player's gold deltas exactly.
	shop := stockedShop()
	shop.BuybackDurationMin = 30

	gold := 100
	net := 0

	buy := Buy(shop, healingPotion, "p1", 2, gold, 1000)
	gold += buy.GoldDelta
	net -= buy.Transaction.TotalPrice

	sell := Sell(shop, healingPotion, "p1", 1, 2, 2000)
	gold += sell.GoldDelta
	net += sell.Transaction.TotalPrice

	back := Buyback(shop, healingPotion, "p1", shop.BuybackInventory[0].ID, gold, 3000)
	gold += back.GoldDelta
	net -= back.Transaction.TotalPrice

	if gold != 100+net {
		t.Fatalf("gold = %d, ledger net = %d", gold, net)
	}
}
