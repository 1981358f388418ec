// Package campaign stores the per-campaign reference data the rest of
// the server resolves against: the campaign record itself, its item
// catalog, and its NPC roster.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"realmforge/economy"
)

var (
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrItemNotFound     = errors.New("item not found")
	ErrNPCNotFound      = errors.New("npc not found")
	ErrNPCEssential     = errors.New("npc is essential")
)

type Campaign struct {
	ID          string `json:"id"`
	OwnerID     uint64 `json:"ownerId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAtMs int64  `json:"createdAt"`
}

type NPC struct {
	ID          string `json:"id"`
	CampaignID  string `json:"campaignId"`
	Name        string `json:"name"`
	Role        string `json:"role,omitempty"`
	LocationID  string `json:"locationId,omitempty"`
	IsDead      bool   `json:"isDead"`
	IsEssential bool   `json:"isEssential"`
	DeathCause  string `json:"deathCause,omitempty"`
	DeathAtMs   int64  `json:"deathTimestamp,omitempty"`
}

type Service interface {
	Close() error

	CreateCampaign(ctx context.Context, ownerID uint64, name, description string) (Campaign, error)
	GetCampaign(ctx context.Context, id string) (Campaign, error)
	// IsOwner reports whether userID owns the campaign. Unknown
	// campaigns report ErrCampaignNotFound.
	IsOwner(ctx context.Context, campaignID string, userID uint64) (bool, error)

	CreateItem(ctx context.Context, item economy.Item) (economy.Item, error)
	GetItem(ctx context.Context, id string) (economy.Item, error)
	FindItemByName(ctx context.Context, campaignID, name string) (economy.Item, error)
	ListItems(ctx context.Context, campaignID string) ([]economy.Item, error)

	CreateNPC(ctx context.Context, npc NPC) (NPC, error)
	GetNPC(ctx context.Context, id string) (NPC, error)
	ListNPCs(ctx context.Context, campaignID string) ([]NPC, error)
	// SetNPCDead flips an NPC's alive state. Killing an essential NPC
	// fails; reviving clears the death record.
	SetNPCDead(ctx context.Context, id string, dead bool, cause string, nowMs int64) (NPC, error)
}

type MemoryService struct {
	mu        sync.Mutex
	campaigns map[string]Campaign
	items     map[string]economy.Item
	npcs      map[string]NPC
}

func NewMemoryService() *MemoryService {
	return &MemoryService{
		campaigns: make(map[string]Campaign),
		items:     make(map[string]economy.Item),
		npcs:      make(map[string]NPC),
	}
}

func (m *MemoryService) Close() error { return nil }

func (m *MemoryService) CreateCampaign(_ context.Context, ownerID uint64, name, description string) (Campaign, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Campaign{}, fmt.Errorf("campaign name is required")
	}
	if ownerID == 0 {
		return Campaign{}, fmt.Errorf("campaign owner is required")
	}
	c := Campaign{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAtMs: time.Now().UTC().UnixMilli(),
	}
	m.mu.Lock()
	m.campaigns[c.ID] = c
	m.mu.Unlock()
	return c, nil
}

func (m *MemoryService) GetCampaign(_ context.Context, id string) (Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return Campaign{}, ErrCampaignNotFound
	}
	return c, nil
}

func (m *MemoryService) IsOwner(ctx context.Context, campaignID string, userID uint64) (bool, error) {
	c, err := m.GetCampaign(ctx, campaignID)
	if err != nil {
		return false, err
	}
	return c.OwnerID == userID, nil
}

func (m *MemoryService) CreateItem(_ context.Context, item economy.Item) (economy.Item, error) {
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" || item.CampaignID == "" {
		return economy.Item{}, fmt.Errorf("item needs a name and campaign")
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[item.CampaignID]; !ok {
		return economy.Item{}, ErrCampaignNotFound
	}
	m.items[item.ID] = item
	return item, nil
}

func (m *MemoryService) GetItem(_ context.Context, id string) (economy.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return economy.Item{}, ErrItemNotFound
	}
	return item, nil
}

func (m *MemoryService) FindItemByName(_ context.Context, campaignID, name string) (economy.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.items {
		if item.CampaignID == campaignID && item.Name == name {
			return item, nil
		}
	}
	return economy.Item{}, ErrItemNotFound
}

func (m *MemoryService) ListItems(_ context.Context, campaignID string) ([]economy.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]economy.Item, 0, 16)
	for _, item := range m.items {
		if item.CampaignID == campaignID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *MemoryService) CreateNPC(_ context.Context, npc NPC) (NPC, error) {
	npc.Name = strings.TrimSpace(npc.Name)
	if npc.Name == "" || npc.CampaignID == "" {
		return NPC{}, fmt.Errorf("npc needs a name and campaign")
	}
	if npc.ID == "" {
		npc.ID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[npc.CampaignID]; !ok {
		return NPC{}, ErrCampaignNotFound
	}
	m.npcs[npc.ID] = npc
	return npc, nil
}

func (m *MemoryService) GetNPC(_ context.Context, id string) (NPC, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	npc, ok := m.npcs[id]
	if !ok {
		return NPC{}, ErrNPCNotFound
	}
	return npc, nil
}

func (m *MemoryService) ListNPCs(_ context.Context, campaignID string) ([]NPC, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]NPC, 0, 16)
	for _, npc := range m.npcs {
		if npc.CampaignID == campaignID {
			out = append(out, npc)
		}
	}
	return out, nil
}

func (m *MemoryService) SetNPCDead(_ context.Context, id string, dead bool, cause string, nowMs int64) (NPC, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	npc, ok := m.npcs[id]
	if !ok {
		return NPC{}, ErrNPCNotFound
	}
	if dead {
		if npc.IsEssential {
			return NPC{}, ErrNPCEssential
		}
		npc.IsDead = true
		npc.DeathCause = cause
		npc.DeathAtMs = nowMs
	} else {
		npc.IsDead = false
		npc.DeathCause = ""
		npc.DeathAtMs = 0
	}
	m.npcs[id] = npc
	return npc, nil
}
