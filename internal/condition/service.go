// Package condition stores declarative trigger rules and runs the
// evaluation engine that fires them against player state.
package condition

import (
	"context"
	"errors"
	"sort"
	"sync"

	"realmforge/rules"
)

var ErrNotFound = errors.New("condition not found")

// Condition is one authored rule: a trigger, a serialized predicate
// tree, and the action lists to run when the predicate matches or
// fails. Rules and actions stay serialized at rest; the engine parses
// them on demand.
type Condition struct {
	ID              string         `json:"id"`
	CampaignID      string         `json:"campaignId"`
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	Trigger         rules.Trigger  `json:"trigger"`
	TriggerContext  string         `json:"triggerContext,omitempty"`
	Rules           string         `json:"rules"`
	ThenActions     string         `json:"thenActions"`
	ElseActions     string         `json:"elseActions,omitempty"`
	Priority        int            `json:"priority"`
	ExecuteOnce     bool           `json:"executeOnce,omitempty"`
	CooldownSeconds int            `json:"cooldownSeconds,omitempty"`
	IsActive        bool           `json:"isActive"`
	CreatedAtMs     int64          `json:"createdAt"`
	UpdatedAtMs     int64          `json:"updatedAt,omitempty"`
}

// Patch carries optional condition field updates; nil fields are
// untouched.
type Patch struct {
	Name            *string        `json:"name,omitempty"`
	Description     *string        `json:"description,omitempty"`
	Trigger         *rules.Trigger `json:"trigger,omitempty"`
	TriggerContext  *string        `json:"triggerContext,omitempty"`
	Rules           *string        `json:"rules,omitempty"`
	ThenActions     *string        `json:"thenActions,omitempty"`
	ElseActions     *string        `json:"elseActions,omitempty"`
	Priority        *int           `json:"priority,omitempty"`
	ExecuteOnce     *bool          `json:"executeOnce,omitempty"`
	CooldownSeconds *int           `json:"cooldownSeconds,omitempty"`
	IsActive        *bool          `json:"isActive,omitempty"`
}

func (p Patch) apply(c *Condition) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.Trigger != nil {
		c.Trigger = *p.Trigger
	}
	if p.TriggerContext != nil {
		c.TriggerContext = *p.TriggerContext
	}
	if p.Rules != nil {
		c.Rules = *p.Rules
	}
	if p.ThenActions != nil {
		c.ThenActions = *p.ThenActions
	}
	if p.ElseActions != nil {
		c.ElseActions = *p.ElseActions
	}
	if p.Priority != nil {
		c.Priority = *p.Priority
	}
	if p.ExecuteOnce != nil {
		c.ExecuteOnce = *p.ExecuteOnce
	}
	if p.CooldownSeconds != nil {
		c.CooldownSeconds = *p.CooldownSeconds
	}
	if p.IsActive != nil {
		c.IsActive = *p.IsActive
	}
}

// Execution is one row of the condition execution log. The log powers
// executeOnce (only result=true rows consume the condition) and
// cooldown (the latest row of either result starts the window).
type Execution struct {
	ID            int64                `json:"id,omitempty"`
	ConditionID   string               `json:"conditionId"`
	CampaignID    string               `json:"campaignId"`
	PlayerID      string               `json:"playerId"`
	Result        bool                 `json:"result"`
	ActionResults []rules.ActionResult `json:"actionsExecuted,omitempty"`
	TriggeredAtMs int64                `json:"triggeredAt"`
}

type Service interface {
	Close() error

	Create(ctx context.Context, c Condition) (Condition, error)
	Get(ctx context.Context, id string) (Condition, error)
	ListByCampaign(ctx context.Context, campaignID string) ([]Condition, error)
	// ListByTrigger returns active conditions for the trigger, sorted
	// by priority descending with insertion order breaking ties.
	ListByTrigger(ctx context.Context, campaignID string, trigger rules.Trigger) ([]Condition, error)
	Update(ctx context.Context, id string, patch Patch, nowMs int64) (Condition, error)
	Toggle(ctx context.Context, id string, nowMs int64) (bool, error)
	Delete(ctx context.Context, id string) error

	RecordExecution(ctx context.Context, exec Execution) error
	// HasMatched reports whether the condition has ever fired with a
	// true predicate for the player.
	HasMatched(ctx context.Context, conditionID, playerID string) (bool, error)
	// LastExecution returns the player's most recent execution of the
	// condition, matched or not.
	LastExecution(ctx context.Context, conditionID, playerID string) (Execution, bool, error)
	ListExecutions(ctx context.Context, campaignID, playerID string, limit int) ([]Execution, error)
}

type MemoryService struct {
	mu         sync.Mutex
	conditions map[string]Condition
	order      []string
	executions []Execution
	nextExecID int64
}

func NewMemoryService() *MemoryService {
	return &MemoryService{conditions: make(map[string]Condition)}
}

func (m *MemoryService) Close() error { return nil }

func (m *MemoryService) Create(_ context.Context, c Condition) (Condition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conditions[c.ID] = c
	m.order = append(m.order, c.ID)
	return c, nil
}

func (m *MemoryService) Get(_ context.Context, id string) (Condition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conditions[id]
	if !ok {
		return Condition{}, ErrNotFound
	}
	return c, nil
}

func (m *MemoryService) ListByCampaign(_ context.Context, campaignID string) ([]Condition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Condition
	for _, id := range m.order {
		c, ok := m.conditions[id]
		if ok && c.CampaignID == campaignID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MemoryService) ListByTrigger(_ context.Context, campaignID string, trigger rules.Trigger) ([]Condition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Condition
	for _, id := range m.order {
		c, ok := m.conditions[id]
		if ok && c.CampaignID == campaignID && c.Trigger == trigger && c.IsActive {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}

func (m *MemoryService) Update(_ context.Context, id string, patch Patch, nowMs int64) (Condition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conditions[id]
	if !ok {
		return Condition{}, ErrNotFound
	}
	patch.apply(&c)
	c.UpdatedAtMs = nowMs
	m.conditions[id] = c
	return c, nil
}

func (m *MemoryService) Toggle(_ context.Context, id string, nowMs int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conditions[id]
	if !ok {
		return false, ErrNotFound
	}
	c.IsActive = !c.IsActive
	c.UpdatedAtMs = nowMs
	m.conditions[id] = c
	return c.IsActive, nil
}

func (m *MemoryService) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conditions[id]; !ok {
		return ErrNotFound
	}
	delete(m.conditions, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemoryService) RecordExecution(_ context.Context, exec Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextExecID++
	exec.ID = m.nextExecID
	m.executions = append(m.executions, exec)
	return nil
}

func (m *MemoryService) HasMatched(_ context.Context, conditionID, playerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, exec := range m.executions {
		if exec.ConditionID == conditionID && exec.PlayerID == playerID && exec.Result {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryService) LastExecution(_ context.Context, conditionID, playerID string) (Execution, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.executions) - 1; i >= 0; i-- {
		exec := m.executions[i]
		if exec.ConditionID == conditionID && exec.PlayerID == playerID {
			return exec, true, nil
		}
	}
	return Execution{}, false, nil
}

func (m *MemoryService) ListExecutions(_ context.Context, campaignID, playerID string, limit int) ([]Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Execution
	for i := len(m.executions) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		exec := m.executions[i]
		if exec.CampaignID == campaignID && exec.PlayerID == playerID {
			out = append(out, exec)
		}
	}
	return out, nil
}
