// Package shop holds the shop lifecycle service, the per-shop
// single-writer counter that serializes buy/sell/buyback traffic,
// and the storage backends for the shop aggregate.
package shop

import (
	"context"
	"sync"

	"realmforge/economy"
)

// Store persists whole shop aggregates. Every mutation is a
// whole-document write; partial updates are composed by the caller.
type Store interface {
	Close() error
	Create(ctx context.Context, shop economy.Shop) (economy.Shop, error)
	Get(ctx context.Context, id string) (economy.Shop, error)
	ListByCampaign(ctx context.Context, campaignID string) ([]economy.Shop, error)
	ListByLocation(ctx context.Context, campaignID, locationID string) ([]economy.Shop, error)
	CampaignIDs(ctx context.Context) ([]string, error)
	Save(ctx context.Context, shop economy.Shop) error
	Delete(ctx context.Context, id string) error
}

type MemoryStore struct {
	mu    sync.Mutex
	shops map[string]economy.Shop
	order []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{shops: make(map[string]economy.Shop)}
}

func (m *MemoryStore) Close() error { return nil }

// cloneShop detaches the embedded ledgers so callers never share
// slice backing arrays with the store.
func cloneShop(s economy.Shop) economy.Shop {
	out := s
	out.Inventory = append([]economy.InventoryEntry(nil), s.Inventory...)
	out.BuybackInventory = append([]economy.BuybackEntry(nil), s.BuybackInventory...)
	return out
}

func (m *MemoryStore) Create(_ context.Context, shop economy.Shop) (economy.Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shops[shop.ID] = cloneShop(shop)
	m.order = append(m.order, shop.ID)
	return shop, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (economy.Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	shop, ok := m.shops[id]
	if !ok {
		return economy.Shop{}, economy.ErrShopNotFound
	}
	return cloneShop(shop), nil
}

func (m *MemoryStore) ListByCampaign(_ context.Context, campaignID string) ([]economy.Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []economy.Shop
	for _, id := range m.order {
		shop, ok := m.shops[id]
		if ok && shop.CampaignID == campaignID {
			out = append(out, cloneShop(shop))
		}
	}
	return out, nil
}

func (m *MemoryStore) ListByLocation(_ context.Context, campaignID, locationID string) ([]economy.Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []economy.Shop
	for _, id := range m.order {
		shop, ok := m.shops[id]
		if ok && shop.CampaignID == campaignID && shop.LocationID == locationID {
			out = append(out, cloneShop(shop))
		}
	}
	return out, nil
}

func (m *MemoryStore) CampaignIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, id := range m.order {
		shop, ok := m.shops[id]
		if !ok || seen[shop.CampaignID] {
			continue
		}
		seen[shop.CampaignID] = true
		out = append(out, shop.CampaignID)
	}
	return out, nil
}

func (m *MemoryStore) Save(_ context.Context, shop economy.Shop) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.shops[shop.ID]; !ok {
		return economy.ErrShopNotFound
	}
	m.shops[shop.ID] = cloneShop(shop)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.shops[id]; !ok {
		return economy.ErrShopNotFound
	}
	delete(m.shops, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}
