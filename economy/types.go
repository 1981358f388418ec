// Package economy holds the pure shop domain: pricing, inventory and
// buyback bookkeeping, and the buy/sell/buyback transaction rules.
// Nothing in here touches storage or the network.
package economy

// Rarity buckets an item into one of the fixed price tiers.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
	RarityMythic    Rarity = "mythic"
)

// UnlimitedStock marks an inventory line whose stock never depletes.
const UnlimitedStock = -1

// Item is campaign reference data. Shops hold item IDs, not copies.
type Item struct {
	ID          string `json:"id"`
	CampaignID  string `json:"campaignId"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Category    string `json:"category,omitempty"`
	Rarity      Rarity `json:"rarity"`
	Description string `json:"description,omitempty"`
}

// CategoryOrType returns the grouping key used by shop stock filters.
func (i Item) CategoryOrType() string {
	if i.Category != "" {
		return i.Category
	}
	return i.Type
}

// DynamicPricing toggles the optional pricing factors for a shop.
type DynamicPricing struct {
	ReputationFactor   bool `json:"reputationFactor,omitempty"`
	SupplyDemandFactor bool `json:"supplyDemandFactor,omitempty"`
	EventFactor        bool `json:"eventFactor,omitempty"`
}

// InventoryEntry is one line of a shop's stock list.
// Stock of UnlimitedStock means the line never runs out.
type InventoryEntry struct {
	ItemID      string `json:"itemId"`
	Stock       int    `json:"stock"`
	BasePrice   *int   `json:"basePrice,omitempty"`
	RestockRate *int   `json:"restockRate,omitempty"`
	MaxStock    *int   `json:"maxStock,omitempty"`
}

// BuybackEntry records an item a player sold that the shop will sell back.
// ExpiresAtMs of zero means the offer never lapses.
type BuybackEntry struct {
	ID             string `json:"id"`
	ItemID         string `json:"itemId"`
	SoldByPlayerID string `json:"soldByPlayerId"`
	SoldAtMs       int64  `json:"soldAtMs"`
	BuybackPrice   int    `json:"buybackPrice"`
	ExpiresAtMs    int64  `json:"expiresAtMs,omitempty"`
}

// Expired reports whether the offer has lapsed at nowMs.
func (b BuybackEntry) Expired(nowMs int64) bool {
	return b.ExpiresAtMs != 0 && b.ExpiresAtMs < nowMs
}

// Shop is the aggregate the transaction processor operates on. All
// mutation happens through the shop's counter, one request at a time.
type Shop struct {
	ID                 string           `json:"id"`
	CampaignID         string           `json:"campaignId"`
	LocationID         string           `json:"locationId"`
	Name               string           `json:"name"`
	Description        string           `json:"description,omitempty"`
	Type               string           `json:"type"`
	ShopkeeperID       string           `json:"shopkeeperId,omitempty"`
	Inventory          []InventoryEntry `json:"inventory"`
	BuybackInventory   []BuybackEntry   `json:"buybackInventory"`
	BasePriceModifier  float64          `json:"basePriceModifier"`
	BuybackModifier    float64          `json:"buybackModifier,omitempty"`
	BuybackDurationMin int              `json:"buybackDurationMinutes,omitempty"`
	DynamicPricing     *DynamicPricing  `json:"dynamicPricing,omitempty"`
	AIManaged          bool             `json:"aiManaged"`
	IsOpen             bool             `json:"isOpen"`
	LastAIUpdateMs     int64            `json:"lastAiUpdate,omitempty"`
}

// TransactionType tags a ledger record with the operation that produced it.
type TransactionType string

const (
	TransactionBuy     TransactionType = "buy"
	TransactionSell    TransactionType = "sell"
	TransactionBuyback TransactionType = "buyback"
)

// Transaction is the immutable audit record appended after every
// completed trade.
type Transaction struct {
	ID           int64           `json:"id,omitempty"`
	CampaignID   string          `json:"campaignId"`
	ShopID       string          `json:"shopId"`
	PlayerID     string          `json:"playerId"`
	Type         TransactionType `json:"type"`
	ItemID       string          `json:"itemId"`
	Quantity     int             `json:"quantity"`
	PricePerUnit int             `json:"pricePerUnit"`
	TotalPrice   int             `json:"totalPrice"`
	TimestampMs  int64           `json:"timestamp"`
}

// ShopType describes one of the stock shop archetypes offered to
// campaign builders.
type ShopType struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// ShopTypes is the fixed catalog of shop archetypes.
var ShopTypes = []ShopType{
	{Value: "general", Label: "General Store", Description: "A bit of everything for the travelling adventurer"},
	{Value: "blacksmith", Label: "Blacksmith", Description: "Weapons, armor, and repairs"},
	{Value: "alchemist", Label: "Alchemist", Description: "Potions, reagents, and curiosities"},
	{Value: "magic", Label: "Magic Shop", Description: "Scrolls, wands, and enchanted goods"},
	{Value: "tavern", Label: "Tavern", Description: "Food, drink, and rumors"},
	{Value: "fence", Label: "Fence", Description: "No questions asked"},
}

// ValidShopType reports whether v names a known archetype.
func ValidShopType(v string) bool {
	for _, t := range ShopTypes {
		if t.Value == v {
			return true
		}
	}
	return false
}
