package condition

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"realmforge/internal/campaign"
	"realmforge/internal/player"
	"realmforge/rules"
)

const (
	defaultBlockMessage = "You cannot enter this area."
	ruleCacheSize       = 256
)

// TriggerEvent is one game event the engine evaluates conditions for.
// ContextID narrows the event to a specific entity, the location being
// entered or the NPC being talked to.
type TriggerEvent struct {
	CampaignID string        `json:"campaignId"`
	PlayerID   string        `json:"playerId"`
	Trigger    rules.Trigger `json:"trigger"`
	ContextID  string        `json:"contextId,omitempty"`
}

// Outcome is the evaluation of a single condition within one firing.
type Outcome struct {
	ConditionID string               `json:"conditionId"`
	Name        string               `json:"name"`
	Matched     bool                 `json:"matched"`
	Actions     []rules.ActionResult `json:"actions,omitempty"`
}

// Report is what a trigger firing produced. Blocked means some
// condition ran a block_entry action, from either branch; evaluation
// stops at the first block so lower-priority conditions cannot
// contradict it.
type Report struct {
	Results      []Outcome `json:"results"`
	Blocked      bool      `json:"blocked"`
	BlockMessage string    `json:"blockMessage,omitempty"`
}

// Engine evaluates stored conditions against live player state and
// executes their actions. Parsed rule trees are cached per condition
// revision; an update bumps UpdatedAtMs and naturally misses the cache.
type Engine struct {
	conditions Service
	players    player.Service
	campaigns  campaign.Service
	cache      *lru.Cache[string, *rules.Rule]
	now        func() int64
}

func NewEngine(conditions Service, players player.Service, campaigns campaign.Service) *Engine {
	cache, err := lru.New[string, *rules.Rule](ruleCacheSize)
	if err != nil {
		panic(err)
	}
	return &Engine{
		conditions: conditions,
		players:    players,
		campaigns:  campaigns,
		cache:      cache,
		now:        func() int64 { return time.Now().UnixMilli() },
	}
}

// Fire evaluates every active condition listening on the event's
// trigger, highest priority first. Per condition it runs the then or
// else actions, records an execution row, and stops early when a
// matched condition blocks entry.
func (e *Engine) Fire(ctx context.Context, ev TriggerEvent) (Report, error) {
	conds, err := e.conditions.ListByTrigger(ctx, ev.CampaignID, ev.Trigger)
	if err != nil {
		return Report{}, err
	}
	report := Report{Results: []Outcome{}}
	if len(conds) == 0 {
		return report, nil
	}

	snap, err := e.snapshot(ctx, ev)
	if err != nil {
		return Report{}, err
	}
	nowMs := e.now()

	for _, cond := range conds {
		skip, err := e.shouldSkip(ctx, cond, ev, nowMs)
		if err != nil {
			return report, err
		}
		if skip {
			continue
		}

		rule, err := e.cachedRule(cond)
		if err != nil {
			log.Printf("[Conditions] condition %s has unusable rules, skipping: %v", cond.ID, err)
			continue
		}
		matched := rule.Eval(snap)

		raw := cond.ThenActions
		if !matched {
			raw = cond.ElseActions
		}
		actions, err := rules.ParseActions([]byte(raw))
		if err != nil {
			log.Printf("[Conditions] condition %s has unusable actions, skipping: %v", cond.ID, err)
			continue
		}

		results, blocked, blockMsg := e.applyActions(ctx, ev, nowMs, actions)
		if err := e.conditions.RecordExecution(ctx, Execution{
			ConditionID:   cond.ID,
			CampaignID:    cond.CampaignID,
			PlayerID:      ev.PlayerID,
			Result:        matched,
			ActionResults: results,
			TriggeredAtMs: nowMs,
		}); err != nil {
			log.Printf("[Conditions] recording execution of %s failed: %v", cond.ID, err)
		}

		report.Results = append(report.Results, Outcome{
			ConditionID: cond.ID,
			Name:        cond.Name,
			Matched:     matched,
			Actions:     results,
		})
		if blocked {
			report.Blocked = true
			report.BlockMessage = blockMsg
			break
		}
	}
	return report, nil
}

// shouldSkip applies the per-condition gates: context narrowing,
// one-shot consumption, and the cooldown window. The cooldown counts
// from the latest execution whether or not it matched.
func (e *Engine) shouldSkip(ctx context.Context, cond Condition, ev TriggerEvent, nowMs int64) (bool, error) {
	if cond.TriggerContext != "" && cond.TriggerContext != ev.ContextID {
		return true, nil
	}
	if cond.ExecuteOnce {
		matched, err := e.conditions.HasMatched(ctx, cond.ID, ev.PlayerID)
		if err != nil {
			return false, err
		}
		if matched {
			return true, nil
		}
	}
	if cond.CooldownSeconds > 0 {
		last, ok, err := e.conditions.LastExecution(ctx, cond.ID, ev.PlayerID)
		if err != nil {
			return false, err
		}
		if ok && nowMs-last.TriggeredAtMs < int64(cond.CooldownSeconds)*1000 {
			return true, nil
		}
	}
	return false, nil
}

func (e *Engine) cachedRule(cond Condition) (*rules.Rule, error) {
	key := cond.ID + "|" + strconv.FormatInt(cond.UpdatedAtMs, 10)
	if rule, ok := e.cache.Get(key); ok {
		return rule, nil
	}
	rule, err := rules.Parse([]byte(cond.Rules))
	if err != nil {
		return nil, err
	}
	e.cache.Add(key, rule)
	return rule, nil
}

// snapshot assembles the player's world view once per firing. Items,
// equipment and NPC liveness are keyed by display name, which is how
// authored rules refer to them; NPCs are additionally keyed by id.
func (e *Engine) snapshot(ctx context.Context, ev TriggerEvent) (*rules.Snapshot, error) {
	state, err := e.players.EnsureState(ctx, ev.CampaignID, ev.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("loading player state: %w", err)
	}
	flags, err := e.players.Flags(ctx, ev.CampaignID, ev.PlayerID)
	if err != nil {
		return nil, err
	}
	holdings, err := e.players.Inventory(ctx, ev.CampaignID, ev.PlayerID)
	if err != nil {
		return nil, err
	}
	abilities, err := e.players.Abilities(ctx, ev.CampaignID, ev.PlayerID)
	if err != nil {
		return nil, err
	}
	quests, err := e.players.Quests(ctx, ev.CampaignID, ev.PlayerID)
	if err != nil {
		return nil, err
	}
	visited, err := e.players.Visits(ctx, ev.CampaignID, ev.PlayerID)
	if err != nil {
		return nil, err
	}
	reputation, err := e.players.Reputation(ctx, ev.CampaignID, ev.PlayerID)
	if err != nil {
		return nil, err
	}
	npcs, err := e.campaigns.ListNPCs(ctx, ev.CampaignID)
	if err != nil {
		return nil, err
	}

	items := make(map[string]int, len(holdings))
	equipped := make(map[string]bool)
	for _, h := range holdings {
		name := h.ItemID
		if item, err := e.campaigns.GetItem(ctx, h.ItemID); err == nil {
			name = item.Name
		}
		items[name] += h.Quantity
		if h.EquippedSlot != "" {
			equipped[name] = true
		}
	}

	npcAlive := make(map[string]bool, len(npcs)*2)
	for _, npc := range npcs {
		npcAlive[npc.ID] = !npc.IsDead
		npcAlive[npc.Name] = !npc.IsDead
	}

	region, _ := flags["region"].(string)

	return &rules.Snapshot{
		PlayerID:   ev.PlayerID,
		ContextID:  ev.ContextID,
		Level:      state.Level,
		HP:         state.HP,
		MaxHP:      state.MaxHP,
		Energy:     state.Energy,
		MaxEnergy:  state.MaxEnergy,
		XP:         state.XP,
		Gold:       state.Gold,
		Class:      state.Class,
		Race:       state.Race,
		Name:       state.Name,
		Faction:    state.Faction,
		Location:   state.CurrentLocationID,
		Region:     region,
		IsJailed:   state.IsJailed,
		Stats:      state.Stats,
		Flags:      flags,
		Items:      items,
		Equipped:   equipped,
		Abilities:  abilities,
		Quests:     quests,
		Visited:    visited,
		Reputation: reputation,
		NPCAlive:   npcAlive,
	}, nil
}
