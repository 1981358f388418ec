// Package player stores per-player campaign state: the core stat
// block, carried inventory, flags, abilities, faction reputation,
// visited locations, and quest statuses.
package player

import (
	"context"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("player state not found")

// State is the player's core stat block. A player that has never been
// seen in a campaign gets DefaultState on first touch.
type State struct {
	CampaignID        string             `json:"campaignId"`
	PlayerID          string             `json:"playerId"`
	Level             int                `json:"level"`
	HP                int                `json:"hp"`
	MaxHP             int                `json:"maxHp"`
	Energy            int                `json:"energy"`
	MaxEnergy         int                `json:"maxEnergy"`
	XP                int                `json:"xp"`
	Gold              int                `json:"gold"`
	Class             string             `json:"class,omitempty"`
	Race              string             `json:"race,omitempty"`
	Name              string             `json:"name,omitempty"`
	Faction           string             `json:"faction,omitempty"`
	CurrentLocationID string             `json:"currentLocationId,omitempty"`
	IsJailed          bool               `json:"isJailed,omitempty"`
	Stats             map[string]float64 `json:"stats,omitempty"`
}

// DefaultState is the stat block a fresh player starts with.
func DefaultState(campaignID, playerID string) State {
	return State{
		CampaignID: campaignID,
		PlayerID:   playerID,
		Level:      1,
		HP:         20,
		MaxHP:      20,
		Energy:     10,
		MaxEnergy:  10,
	}
}

// StatePatch carries optional field updates; nil fields are untouched.
type StatePatch struct {
	Level             *int
	HP                *int
	MaxHP             *int
	Energy            *int
	MaxEnergy         *int
	XP                *int
	Gold              *int
	Class             *string
	Race              *string
	Name              *string
	Faction           *string
	CurrentLocationID *string
	IsJailed          *bool
}

// Holding is one carried item stack.
type Holding struct {
	ItemID       string `json:"itemId"`
	Quantity     int    `json:"quantity"`
	EquippedSlot string `json:"equippedSlot,omitempty"`
	AcquiredAtMs int64  `json:"acquiredAt"`
}

type Service interface {
	Close() error

	// EnsureState returns the player's stat block, creating the
	// default one on first touch.
	EnsureState(ctx context.Context, campaignID, playerID string) (State, error)
	PatchState(ctx context.Context, campaignID, playerID string, patch StatePatch) (State, error)

	Gold(ctx context.Context, campaignID, playerID string) (int, error)
	// AdjustGold applies a signed delta. With clampZero the balance
	// bottoms out at zero instead of failing; without it an
	// overdraft is an error.
	AdjustGold(ctx context.Context, campaignID, playerID string, delta int, clampZero bool) (int, error)

	Inventory(ctx context.Context, campaignID, playerID string) ([]Holding, error)
	ItemQuantity(ctx context.Context, campaignID, playerID, itemID string) (int, error)
	// AdjustItem applies a signed quantity delta, clamping at zero.
	// A stack that reaches zero is removed outright.
	AdjustItem(ctx context.Context, campaignID, playerID, itemID string, delta int, nowMs int64) (int, error)
	SetEquipped(ctx context.Context, campaignID, playerID, itemID, slot string) error

	SetFlag(ctx context.Context, campaignID, playerID, key string, value any, nowMs int64) error
	ClearFlag(ctx context.Context, campaignID, playerID, key string) error
	Flags(ctx context.Context, campaignID, playerID string) (map[string]any, error)

	GrantAbility(ctx context.Context, campaignID, playerID, name string, nowMs int64) error
	RemoveAbility(ctx context.Context, campaignID, playerID, name string) error
	Abilities(ctx context.Context, campaignID, playerID string) (map[string]bool, error)

	AdjustReputation(ctx context.Context, campaignID, playerID, faction string, delta float64, nowMs int64) (float64, error)
	Reputation(ctx context.Context, campaignID, playerID string) (map[string]float64, error)

	RecordVisit(ctx context.Context, campaignID, playerID, locationID string, nowMs int64) error
	Visits(ctx context.Context, campaignID, playerID string) (map[string]bool, error)

	SetQuestStatus(ctx context.Context, campaignID, playerID, title, status string) error
	Quests(ctx context.Context, campaignID, playerID string) (map[string]string, error)
}

type playerKey struct {
	campaignID string
	playerID   string
}

type memoryPlayer struct {
	state      State
	inventory  map[string]*Holding
	flags      map[string]any
	abilities  map[string]bool
	reputation map[string]float64
	visits     map[string]bool
	quests     map[string]string
}

type MemoryService struct {
	mu      sync.Mutex
	players map[playerKey]*memoryPlayer
}

func NewMemoryService() *MemoryService {
	return &MemoryService{players: make(map[playerKey]*memoryPlayer)}
}

func (m *MemoryService) Close() error { return nil }

// ensureLocked returns the record for the player, creating it on
// first touch. Callers must hold m.mu.
func (m *MemoryService) ensureLocked(campaignID, playerID string) *memoryPlayer {
	key := playerKey{campaignID, playerID}
	p, ok := m.players[key]
	if !ok {
		p = &memoryPlayer{
			state:      DefaultState(campaignID, playerID),
			inventory:  make(map[string]*Holding),
			flags:      make(map[string]any),
			abilities:  make(map[string]bool),
			reputation: make(map[string]float64),
			visits:     make(map[string]bool),
			quests:     make(map[string]string),
		}
		m.players[key] = p
	}
	return p
}

func (m *MemoryService) EnsureState(_ context.Context, campaignID, playerID string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureLocked(campaignID, playerID).state, nil
}

func (m *MemoryService) PatchState(_ context.Context, campaignID, playerID string, patch StatePatch) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.ensureLocked(campaignID, playerID)
	applyPatch(&p.state, patch)
	return p.state, nil
}

func applyPatch(s *State, patch StatePatch) {
	if patch.Level != nil {
		s.Level = *patch.Level
	}
	if patch.HP != nil {
		s.HP = clampRange(*patch.HP, 0, s.MaxHP)
	}
	if patch.MaxHP != nil {
		s.MaxHP = *patch.MaxHP
		if s.HP > s.MaxHP {
			s.HP = s.MaxHP
		}
	}
	if patch.Energy != nil {
		s.Energy = clampRange(*patch.Energy, 0, s.MaxEnergy)
	}
	if patch.MaxEnergy != nil {
		s.MaxEnergy = *patch.MaxEnergy
		if s.Energy > s.MaxEnergy {
			s.Energy = s.MaxEnergy
		}
	}
	if patch.XP != nil {
		s.XP = *patch.XP
	}
	if patch.Gold != nil {
		s.Gold = *patch.Gold
	}
	if patch.Class != nil {
		s.Class = *patch.Class
	}
	if patch.Race != nil {
		s.Race = *patch.Race
	}
	if patch.Name != nil {
		s.Name = *patch.Name
	}
	if patch.Faction != nil {
		s.Faction = *patch.Faction
	}
	if patch.CurrentLocationID != nil {
		s.CurrentLocationID = *patch.CurrentLocationID
	}
	if patch.IsJailed != nil {
		s.IsJailed = *patch.IsJailed
	}
}

func clampRange(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}

func (m *MemoryService) Gold(_ context.Context, campaignID, playerID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureLocked(campaignID, playerID).state.Gold, nil
}

var ErrInsufficientGold = errors.New("insufficient gold")

func (m *MemoryService) AdjustGold(_ context.Context, campaignID, playerID string, delta int, clampZero bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.ensureLocked(campaignID, playerID)
	next := p.state.Gold + delta
	if next < 0 {
		if !clampZero {
			return p.state.Gold, ErrInsufficientGold
		}
		next = 0
	}
	p.state.Gold = next
	return next, nil
}

func (m *MemoryService) Inventory(_ context.Context, campaignID, playerID string) ([]Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.ensureLocked(campaignID, playerID)
	out := make([]Holding, 0, len(p.inventory))
	for _, h := range p.inventory {
		out = append(out, *h)
	}
	return out, nil
}

func (m *MemoryService) ItemQuantity(_ context.Context, campaignID, playerID, itemID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.ensureLocked(campaignID, playerID)
	if h, ok := p.inventory[itemID]; ok {
		return h.Quantity, nil
	}
	return 0, nil
}

func (m *MemoryService) AdjustItem(_ context.Context, campaignID, playerID, itemID string, delta int, nowMs int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.ensureLocked(campaignID, playerID)
	h, ok := p.inventory[itemID]
	if !ok {
		if delta <= 0 {
			return 0, nil
		}
		p.inventory[itemID] = &Holding{ItemID: itemID, Quantity: delta, AcquiredAtMs: nowMs}
		return delta, nil
	}
	h.Quantity += delta
	if h.Quantity <= 0 {
		delete(p.inventory, itemID)
		return 0, nil
	}
	return h.Quantity, nil
}

func (m *MemoryService) SetEquipped(_ context.Context, campaignID, playerID, itemID, slot string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.ensureLocked(campaignID, playerID)
	h, ok := p.inventory[itemID]
	if !ok {
		return ErrNotFound
	}
	h.EquippedSlot = slot
	return nil
}

func (m *MemoryService) SetFlag(_ context.Context, campaignID, playerID, key string, value any, _ int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureLocked(campaignID, playerID).flags[key] = value
	return nil
}

func (m *MemoryService) ClearFlag(_ context.Context, campaignID, playerID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ensureLocked(campaignID, playerID).flags, key)
	return nil
}

func (m *MemoryService) Flags(_ context.Context, campaignID, playerID string) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.ensureLocked(campaignID, playerID)
	out := make(map[string]any, len(p.flags))
	for k, v := range p.flags {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryService) GrantAbility(_ context.Context, campaignID, playerID, name string, _ int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureLocked(campaignID, playerID).abilities[name] = true
	return nil
}

func (m *MemoryService) RemoveAbility(_ context.Context, campaignID, playerID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ensureLocked(campaignID, playerID).abilities, name)
	return nil
}

func (m *MemoryService) Abilities(_ context.Context, campaignID, playerID string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.ensureLocked(campaignID, playerID)
	out := make(map[string]bool, len(p.abilities))
	for k := range p.abilities {
		out[k] = true
	}
	return out, nil
}

func (m *MemoryService) AdjustReputation(_ context.Context, campaignID, playerID, faction string, delta float64, _ int64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.ensureLocked(campaignID, playerID)
	p.reputation[faction] += delta
	return p.reputation[faction], nil
}

func (m *MemoryService) Reputation(_ context.Context, campaignID, playerID string) (map[string]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.ensureLocked(campaignID, playerID)
	out := make(map[string]float64, len(p.reputation))
	for k, v := range p.reputation {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryService) RecordVisit(_ context.Context, campaignID, playerID, locationID string, _ int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureLocked(campaignID, playerID).visits[locationID] = true
	return nil
}

func (m *MemoryService) Visits(_ context.Context, campaignID, playerID string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.ensureLocked(campaignID, playerID)
	out := make(map[string]bool, len(p.visits))
	for k := range p.visits {
		out[k] = true
	}
	return out, nil
}

func (m *MemoryService) SetQuestStatus(_ context.Context, campaignID, playerID, title, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureLocked(campaignID, playerID).quests[title] = status
	return nil
}

func (m *MemoryService) Quests(_ context.Context, campaignID, playerID string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.ensureLocked(campaignID, playerID)
	out := make(map[string]string, len(p.quests))
	for k, v := range p.quests {
		out[k] = v
	}
	return out, nil
}
