package shop

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"realmforge/economy"
	"realmforge/internal/campaign"
	"realmforge/internal/ledger"
	"realmforge/internal/player"
)

const (
	defaultBasePriceModifier = 1.0
	defaultBuybackModifier   = 1.2
)

// NewShop carries the fields a campaign owner supplies when opening a
// shop. Zero-valued modifiers fall back to the defaults.
type NewShop struct {
	CampaignID         string                  `json:"campaignId"`
	LocationID         string                  `json:"locationId"`
	Name               string                  `json:"name"`
	Description        string                  `json:"description"`
	Type               string                  `json:"type"`
	ShopkeeperID       string                  `json:"shopkeeperId,omitempty"`
	BasePriceModifier  float64                 `json:"basePriceModifier,omitempty"`
	BuybackModifier    float64                 `json:"buybackModifier,omitempty"`
	BuybackDurationMin int                     `json:"buybackDurationMinutes,omitempty"`
	DynamicPricing     *economy.DynamicPricing `json:"dynamicPricing,omitempty"`
	AIManaged          bool                    `json:"aiManaged,omitempty"`
}

// Patch carries optional shop field updates; nil fields are untouched.
type Patch struct {
	Name               *string                 `json:"name,omitempty"`
	Description        *string                 `json:"description,omitempty"`
	Type               *string                 `json:"type,omitempty"`
	LocationID         *string                 `json:"locationId,omitempty"`
	ShopkeeperID       *string                 `json:"shopkeeperId,omitempty"`
	BasePriceModifier  *float64                `json:"basePriceModifier,omitempty"`
	BuybackModifier    *float64                `json:"buybackModifier,omitempty"`
	BuybackDurationMin *int                    `json:"buybackDurationMinutes,omitempty"`
	DynamicPricing     *economy.DynamicPricing `json:"dynamicPricing,omitempty"`
	AIManaged          *bool                   `json:"aiManaged,omitempty"`
	IsOpen             *bool                   `json:"isOpen,omitempty"`
}

func (p Patch) apply(shop *economy.Shop) {
	if p.Name != nil {
		shop.Name = *p.Name
	}
	if p.Description != nil {
		shop.Description = *p.Description
	}
	if p.Type != nil {
		shop.Type = *p.Type
	}
	if p.LocationID != nil {
		shop.LocationID = *p.LocationID
	}
	if p.ShopkeeperID != nil {
		shop.ShopkeeperID = *p.ShopkeeperID
	}
	if p.BasePriceModifier != nil {
		shop.BasePriceModifier = *p.BasePriceModifier
	}
	if p.BuybackModifier != nil {
		shop.BuybackModifier = *p.BuybackModifier
	}
	if p.BuybackDurationMin != nil {
		shop.BuybackDurationMin = *p.BuybackDurationMin
	}
	if p.DynamicPricing != nil {
		shop.DynamicPricing = p.DynamicPricing
	}
	if p.AIManaged != nil {
		shop.AIManaged = *p.AIManaged
	}
	if p.IsOpen != nil {
		shop.IsOpen = *p.IsOpen
	}
}

// Service is the shop lifecycle manager. Reads go straight to the
// store; every mutation is routed through the shop's counter so the
// single-writer guarantee covers admin edits too.
type Service struct {
	store     Store
	campaigns campaign.Service
	counters  *Registry
}

func NewService(store Store, campaigns campaign.Service, players player.Service, ledgerSvc ledger.Service) *Service {
	return &Service{
		store:     store,
		campaigns: campaigns,
		counters: NewRegistry(Deps{
			Store:     store,
			Players:   players,
			Campaigns: campaigns,
			Ledger:    ledgerSvc,
		}),
	}
}

func (s *Service) Close() {
	s.counters.Close()
}

// Counters exposes the registry for idle reaping by the scheduler.
func (s *Service) Counters() *Registry {
	return s.counters
}

func (s *Service) Create(ctx context.Context, req NewShop) (economy.Shop, error) {
	if _, err := s.campaigns.GetCampaign(ctx, req.CampaignID); err != nil {
		return economy.Shop{}, err
	}
	shop := economy.Shop{
		ID:                 uuid.NewString(),
		CampaignID:         req.CampaignID,
		LocationID:         req.LocationID,
		Name:               req.Name,
		Description:        req.Description,
		Type:               req.Type,
		ShopkeeperID:       req.ShopkeeperID,
		Inventory:          []economy.InventoryEntry{},
		BuybackInventory:   []economy.BuybackEntry{},
		BasePriceModifier:  req.BasePriceModifier,
		BuybackModifier:    req.BuybackModifier,
		BuybackDurationMin: req.BuybackDurationMin,
		DynamicPricing:     req.DynamicPricing,
		AIManaged:          req.AIManaged,
		IsOpen:             true,
	}
	if shop.Type == "" {
		shop.Type = "general"
	}
	if shop.BasePriceModifier == 0 {
		shop.BasePriceModifier = defaultBasePriceModifier
	}
	if shop.BuybackModifier == 0 {
		shop.BuybackModifier = defaultBuybackModifier
	}
	created, err := s.store.Create(ctx, shop)
	if err != nil {
		return economy.Shop{}, err
	}
	log.Printf("[Shop] created %s (%s) in campaign %s", created.Name, created.ID, created.CampaignID)
	return created, nil
}

func (s *Service) Get(ctx context.Context, id string) (economy.Shop, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListByCampaign(ctx context.Context, campaignID string) ([]economy.Shop, error) {
	return s.store.ListByCampaign(ctx, campaignID)
}

func (s *Service) ListByLocation(ctx context.Context, campaignID, locationID string) ([]economy.Shop, error) {
	return s.store.ListByLocation(ctx, campaignID, locationID)
}

func (s *Service) Update(ctx context.Context, id string, patch Patch) (economy.Shop, error) {
	return s.counters.Counter(id).ApplyPatch(ctx, patch)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	s.counters.Drop(id)
	return s.store.Delete(ctx, id)
}

func (s *Service) Buy(ctx context.Context, shopID, playerID, itemID string, quantity int) (economy.Result, error) {
	return s.counters.Counter(shopID).Buy(ctx, playerID, itemID, quantity)
}

func (s *Service) Sell(ctx context.Context, shopID, playerID, itemID string, quantity int) (economy.Result, error) {
	return s.counters.Counter(shopID).Sell(ctx, playerID, itemID, quantity)
}

func (s *Service) Buyback(ctx context.Context, shopID, playerID, buybackID string) (economy.Result, error) {
	return s.counters.Counter(shopID).Buyback(ctx, playerID, buybackID)
}

func (s *Service) AIUpdate(ctx context.Context, shopID string, action AIAction) (economy.Result, error) {
	return s.counters.Counter(shopID).AIUpdate(ctx, action)
}

// CleanupExpiredBuybacks drops expired buyback entries across every
// shop in the campaign and returns how many were removed.
func (s *Service) CleanupExpiredBuybacks(ctx context.Context, campaignID string) (int, error) {
	shops, err := s.store.ListByCampaign(ctx, campaignID)
	if err != nil {
		return 0, err
	}
	cleaned := 0
	for _, shop := range shops {
		n, err := s.counters.Counter(shop.ID).PurgeBuybacks(ctx)
		if err != nil {
			if errors.Is(err, economy.ErrShopNotFound) {
				continue
			}
			return cleaned, err
		}
		cleaned += n
	}
	return cleaned, nil
}

// RestockCampaign applies one restock pass to every shop in the
// campaign and returns how many inventory lines changed.
func (s *Service) RestockCampaign(ctx context.Context, campaignID string) (int, error) {
	shops, err := s.store.ListByCampaign(ctx, campaignID)
	if err != nil {
		return 0, err
	}
	restocked := 0
	for _, shop := range shops {
		n, err := s.counters.Counter(shop.ID).Restock(ctx)
		if err != nil {
			if errors.Is(err, economy.ErrShopNotFound) {
				continue
			}
			return restocked, err
		}
		restocked += n
	}
	return restocked, nil
}

// CampaignIDs lists campaigns that have at least one shop, for the
// maintenance scheduler.
func (s *Service) CampaignIDs(ctx context.Context) ([]string, error) {
	return s.store.CampaignIDs(ctx)
}

// InventoryView is one price-annotated inventory line for display.
type InventoryView struct {
	ItemID      string `json:"itemId"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Category    string `json:"category"`
	Rarity      string `json:"rarity"`
	Description string `json:"description,omitempty"`
	Stock       int    `json:"stock"`
	Price       int    `json:"price"`
	BasePrice   *int   `json:"basePrice,omitempty"`
	InStock     bool   `json:"inStock"`
}

// BuybackView is one redeemable buyback lease for display.
type BuybackView struct {
	ID              string `json:"id"`
	ItemID          string `json:"itemId"`
	Name            string `json:"name"`
	Type            string `json:"type"`
	Rarity          string `json:"rarity"`
	BuybackPrice    int    `json:"buybackPrice"`
	ExpiresAtMs     int64  `json:"expiresAt,omitempty"`
	TimeRemainingMs int64  `json:"timeRemaining,omitempty"`
}

// Details is the full shop view served to players: the shop document,
// the shopkeeper, priced inventory, and the caller's buyback leases.
type Details struct {
	Shop       economy.Shop    `json:"shop"`
	Shopkeeper *campaign.NPC   `json:"shopkeeper,omitempty"`
	Items      []InventoryView `json:"items"`
	Buybacks   []BuybackView   `json:"buybackItems,omitempty"`
}

func (s *Service) Details(ctx context.Context, shopID, playerID string) (Details, error) {
	shop, err := s.store.Get(ctx, shopID)
	if err != nil {
		return Details{}, err
	}
	details := Details{Shop: shop}

	if shop.ShopkeeperID != "" {
		npc, err := s.campaigns.GetNPC(ctx, shop.ShopkeeperID)
		if err == nil {
			details.Shopkeeper = &npc
		} else if !errors.Is(err, campaign.ErrNPCNotFound) {
			return Details{}, err
		}
	}

	details.Items, err = s.annotateInventory(ctx, &shop, "")
	if err != nil {
		return Details{}, err
	}

	if playerID != "" {
		nowMs := time.Now().UnixMilli()
		for _, entry := range shop.ValidBuybacks(playerID, nowMs) {
			item, err := s.campaigns.GetItem(ctx, entry.ItemID)
			if err != nil {
				if errors.Is(err, campaign.ErrItemNotFound) {
					continue
				}
				return Details{}, err
			}
			view := BuybackView{
				ID:           entry.ID,
				ItemID:       entry.ItemID,
				Name:         item.Name,
				Type:         item.Type,
				Rarity:       string(item.Rarity),
				BuybackPrice: entry.BuybackPrice,
				ExpiresAtMs:  entry.ExpiresAtMs,
			}
			if entry.ExpiresAtMs != 0 {
				view.TimeRemainingMs = entry.ExpiresAtMs - nowMs
			}
			details.Buybacks = append(details.Buybacks, view)
		}
	}
	return details, nil
}

// Inventory lists a shop's priced inventory, optionally filtered by
// item category. Empty and "all" match everything.
func (s *Service) Inventory(ctx context.Context, shopID, category string) ([]InventoryView, error) {
	shop, err := s.store.Get(ctx, shopID)
	if err != nil {
		return nil, err
	}
	return s.annotateInventory(ctx, &shop, category)
}

func (s *Service) annotateInventory(ctx context.Context, shop *economy.Shop, category string) ([]InventoryView, error) {
	var out []InventoryView
	for _, line := range shop.Inventory {
		item, err := s.campaigns.GetItem(ctx, line.ItemID)
		if err != nil {
			if errors.Is(err, campaign.ErrItemNotFound) {
				continue
			}
			return nil, err
		}
		itemCategory := item.CategoryOrType()
		if category != "" && category != "all" && itemCategory != category {
			continue
		}
		out = append(out, InventoryView{
			ItemID:      line.ItemID,
			Name:        item.Name,
			Type:        item.Type,
			Category:    itemCategory,
			Rarity:      string(item.Rarity),
			Description: item.Description,
			Stock:       line.Stock,
			Price:       economy.Price(item, shop, line.Stock, false, line.BasePrice),
			BasePrice:   line.BasePrice,
			InStock:     line.Stock == economy.UnlimitedStock || line.Stock > 0,
		})
	}
	return out, nil
}
