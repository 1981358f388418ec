package economy

import "fmt"

// Outcome bundles a transaction attempt's player-facing Result with
// the state deltas the caller must persist. On a refusal every delta
// is zero and Transaction is nil.
type Outcome struct {
	Result      Result
	GoldDelta   int
	ItemID      string
	ItemDelta   int
	Transaction *Transaction
}

func refused(msg string) Outcome {
	return Outcome{Result: Refuse(msg)}
}

// CheckAvailability runs the buy-path gates that do not need the
// catalog row: open, stocked, quantity available. Callers that resolve
// the catalog row separately run this first so availability refusals
// take precedence over a catalog miss.
func CheckAvailability(shop *Shop, itemID string, quantity int) Result {
	if quantity <= 0 {
		quantity = 1
	}
	if !shop.IsOpen {
		return Refuse("This shop is closed")
	}
	idx := shop.FindInventory(itemID)
	if idx < 0 {
		return Refuse("Item not available in this shop")
	}
	line := shop.Inventory[idx]
	if line.Stock != UnlimitedStock && line.Stock < quantity {
		return Refuse(fmt.Sprintf("Not enough stock. Only %d available.", line.Stock))
	}
	return Result{OK: true}
}

// Buy runs a purchase against the shop. On success it decrements shop
// stock in place and reports the gold and item deltas to apply to the
// player. Checks run in a fixed order so failure messages are stable:
// open, stocked, quantity available, gold sufficient.
func Buy(shop *Shop, item Item, playerID string, quantity, playerGold int, nowMs int64) Outcome {
	if quantity <= 0 {
		quantity = 1
	}
	if !shop.IsOpen {
		return refused("This shop is closed")
	}
	idx := shop.FindInventory(item.ID)
	if idx < 0 {
		return refused("Item not available in this shop")
	}
	line := shop.Inventory[idx]
	if line.Stock != UnlimitedStock && line.Stock < quantity {
		return refused(fmt.Sprintf("Not enough stock. Only %d available.", line.Stock))
	}

	pricePerUnit := Price(item, shop, line.Stock, false, line.BasePrice)
	totalPrice := pricePerUnit * quantity
	if playerGold < totalPrice {
		return refused(fmt.Sprintf("Not enough gold. Need %d, have %d.", totalPrice, playerGold))
	}

	if line.Stock != UnlimitedStock {
		shop.Inventory[idx].Stock = line.Stock - quantity
	}

	return Outcome{
		Result: Result{
			OK:            true,
			Message:       fmt.Sprintf("Purchased %dx %s for %d gold.", quantity, item.Name, totalPrice),
			ItemName:      item.Name,
			Quantity:      quantity,
			GoldSpent:     totalPrice,
			RemainingGold: playerGold - totalPrice,
		},
		GoldDelta: -totalPrice,
		ItemID:    item.ID,
		ItemDelta: quantity,
		Transaction: &Transaction{
			CampaignID:   shop.CampaignID,
			ShopID:       shop.ID,
			PlayerID:     playerID,
			Type:         TransactionBuy,
			ItemID:       item.ID,
			Quantity:     quantity,
			PricePerUnit: pricePerUnit,
			TotalPrice:   totalPrice,
			TimestampMs:  nowMs,
		},
	}
}

// Sell runs a sale to the shop. On success it appends a buyback offer
// in place and reports the deltas: the player loses the items and
// gains the sale total. The sell price ignores scarcity markup, so the
// stock argument to the pricer is pinned to unlimited.
func Sell(shop *Shop, item Item, playerID string, quantity, playerOwned int, nowMs int64) Outcome {
	if quantity <= 0 {
		quantity = 1
	}
	if !shop.IsOpen {
		return refused("This shop is closed")
	}
	if playerOwned < quantity {
		return refused("You don't have enough of that item")
	}

	pricePerUnit := Price(item, shop, UnlimitedStock, true, nil)
	totalPrice := pricePerUnit * quantity

	entry := shop.AppendBuyback(item.ID, playerID, totalPrice, nowMs)

	return Outcome{
		Result: Result{
			OK:           true,
			Message:      fmt.Sprintf("Sold %dx %s for %d gold.", quantity, item.Name, totalPrice),
			ItemName:     item.Name,
			Quantity:     quantity,
			GoldGained:   totalPrice,
			BuybackPrice: entry.BuybackPrice,
		},
		GoldDelta: totalPrice,
		ItemID:    item.ID,
		ItemDelta: -quantity,
		Transaction: &Transaction{
			CampaignID:   shop.CampaignID,
			ShopID:       shop.ID,
			PlayerID:     playerID,
			Type:         TransactionSell,
			ItemID:       item.ID,
			Quantity:     quantity,
			PricePerUnit: pricePerUnit,
			TotalPrice:   totalPrice,
			TimestampMs:  nowMs,
		},
	}
}

// Buyback reclaims a previously sold item by its offer id. On success
// the offer is removed from the shop in place and the player pays the
// recorded buyback price for a single unit.
func Buyback(shop *Shop, item Item, playerID, buybackID string, playerGold int, nowMs int64) Outcome {
	if !shop.IsOpen {
		return refused("This shop is closed")
	}
	entry, ok := shop.FindBuyback(buybackID)
	if !ok {
		return refused("Buyback item not found")
	}
	if entry.SoldByPlayerID != playerID {
		return refused("This item wasn't sold by you")
	}
	if entry.Expired(nowMs) {
		return refused("Buyback period has expired")
	}
	if playerGold < entry.BuybackPrice {
		return refused(fmt.Sprintf("Not enough gold. Need %d, have %d.", entry.BuybackPrice, playerGold))
	}

	shop.RemoveBuyback(entry.ID)

	return Outcome{
		Result: Result{
			OK:            true,
			Message:       fmt.Sprintf("Bought back %s for %d gold.", item.Name, entry.BuybackPrice),
			ItemName:      item.Name,
			Quantity:      1,
			GoldSpent:     entry.BuybackPrice,
			RemainingGold: playerGold - entry.BuybackPrice,
		},
		GoldDelta: -entry.BuybackPrice,
		ItemID:    entry.ItemID,
		ItemDelta: 1,
		Transaction: &Transaction{
			CampaignID:   shop.CampaignID,
			ShopID:       shop.ID,
			PlayerID:     playerID,
			Type:         TransactionBuyback,
			ItemID:       entry.ItemID,
			Quantity:     1,
			PricePerUnit: entry.BuybackPrice,
			TotalPrice:   entry.BuybackPrice,
			TimestampMs:  nowMs,
		},
	}
}
