package shop

import (
	"context"
	"time"

	"realmforge/economy"
)

// AI-driven inventory action names.
const (
	AIActionClose       = "close"
	AIActionOpen        = "open"
	AIActionAdd         = "add"
	AIActionRemove      = "remove"
	AIActionRestock     = "restock"
	AIActionPriceChange = "priceChange"
)

// AIAction is one shopkeeper decision made by the narrative driver.
type AIAction struct {
	Action        string   `json:"action"`
	ItemID        string   `json:"itemId,omitempty"`
	Stock         *int     `json:"stock,omitempty"`
	PriceModifier *float64 `json:"priceModifier,omitempty"`
	Reason        string   `json:"reason,omitempty"`
}

func (c *Counter) handleAIAction(ctx context.Context, action AIAction) (economy.Result, error) {
	shop, result, err := c.loadShop(ctx)
	if err != nil || !result.OK {
		return result, err
	}
	if !shop.AIManaged {
		return economy.Refuse("Shop is not AI-managed"), nil
	}

	switch action.Action {
	case AIActionClose:
		shop.IsOpen = false
	case AIActionOpen:
		shop.IsOpen = true
	case AIActionAdd:
		if action.ItemID != "" && shop.FindInventory(action.ItemID) == -1 {
			stock := economy.UnlimitedStock
			if action.Stock != nil {
				stock = *action.Stock
			}
			shop.UpsertItem(economy.InventoryEntry{ItemID: action.ItemID, Stock: stock})
		}
	case AIActionRemove:
		if action.ItemID != "" {
			shop.RemoveItem(action.ItemID)
		}
	case AIActionRestock:
		shop.Restock()
	case AIActionPriceChange:
		if action.PriceModifier != nil {
			shop.BasePriceModifier = *action.PriceModifier
		}
	default:
		return economy.Result{}, economy.ErrUnknownAction
	}

	shop.LastAIUpdateMs = time.Now().UnixMilli()
	if err := c.deps.Store.Save(ctx, shop); err != nil {
		return economy.Result{}, err
	}
	return economy.Result{OK: true, Message: action.Reason}, nil
}
