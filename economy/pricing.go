package economy

import "math"

// Base prices per rarity tier. Unknown rarities fall back to common.
var basePrices = map[Rarity]int{
	RarityCommon:    10,
	RarityUncommon:  25,
	RarityRare:      75,
	RarityEpic:      200,
	RarityLegendary: 500,
	RarityMythic:    1000,
}

const defaultBasePrice = 10

// BasePrice returns the rarity-tier price for an item, honoring a
// per-line override when the shop sets one.
func BasePrice(item Item, override *int) int {
	if override != nil {
		return *override
	}
	if p, ok := basePrices[item.Rarity]; ok {
		return p
	}
	return defaultBasePrice
}

// Price computes the per-unit price a shop charges (or pays, when
// selling to it). Each adjustment floors before the next applies, so
// the order of the steps is part of the contract:
//
//	base -> shop modifier -> scarcity markup -> sell discount -> floor of 1
//
// stock is the shop's current stock of the item; scarcity only bites
// when the line is low but not empty or unlimited.
func Price(item Item, shop *Shop, stock int, selling bool, override *int) int {
	price := float64(BasePrice(item, override))
	price = math.Floor(price * shop.BasePriceModifier)
	if shop.DynamicPricing != nil && shop.DynamicPricing.SupplyDemandFactor {
		if stock > 0 && stock < 3 {
			price = math.Floor(price * 1.25)
		}
	}
	if selling {
		price = math.Floor(price * 0.5)
	}
	if price < 1 {
		return 1
	}
	return int(price)
}

// BuybackPrice computes the total a player pays to reclaim a sold item.
// A zero modifier falls back to the standard 1.2 markup.
func BuybackPrice(totalSalePrice int, modifier float64) int {
	if modifier == 0 {
		modifier = 1.2
	}
	return int(math.Floor(float64(totalSalePrice) * modifier))
}
