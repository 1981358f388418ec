package condition

import (
	"context"
	"errors"
	"fmt"

	"realmforge/internal/campaign"
	"realmforge/internal/player"
	"realmforge/rules"
)

// applyActions runs an action list in order and reports each result.
// A failing action never aborts the list; it becomes a failed result
// and the rest still run. The blocked return is set when a block_entry
// action executed.
func (e *Engine) applyActions(ctx context.Context, ev TriggerEvent, nowMs int64, actions []rules.Action) ([]rules.ActionResult, bool, string) {
	results := make([]rules.ActionResult, 0, len(actions))
	blocked := false
	blockMsg := ""
	for _, action := range actions {
		result := e.applyAction(ctx, ev, nowMs, action)
		results = append(results, result)
		if action.Type == rules.ActionBlockEntry && result.Success {
			blocked = true
			blockMsg = result.Message
		}
	}
	return results, blocked, blockMsg
}

func (e *Engine) applyAction(ctx context.Context, ev TriggerEvent, nowMs int64, a rules.Action) rules.ActionResult {
	ok := func(message string, data map[string]any) rules.ActionResult {
		return rules.ActionResult{Type: a.Type, Success: true, Message: message, Data: data}
	}
	fail := func(message string) rules.ActionResult {
		return rules.ActionResult{Type: a.Type, Success: false, Message: message}
	}

	switch a.Type {
	case rules.ActionBlockEntry:
		msg := a.Message
		if msg == "" {
			msg = defaultBlockMessage
		}
		return ok(msg, nil)

	case rules.ActionShowMessage:
		return ok(a.Message, nil)

	case rules.ActionSetFlag:
		if err := e.players.SetFlag(ctx, ev.CampaignID, ev.PlayerID, a.Key, a.Value, nowMs); err != nil {
			return fail(err.Error())
		}
		return ok("", map[string]any{"key": a.Key, "value": a.Value})

	case rules.ActionClearFlag:
		if err := e.players.ClearFlag(ctx, ev.CampaignID, ev.PlayerID, a.Key); err != nil {
			return fail(err.Error())
		}
		return ok("", map[string]any{"key": a.Key})

	case rules.ActionModifyHP:
		state, err := e.players.EnsureState(ctx, ev.CampaignID, ev.PlayerID)
		if err != nil {
			return fail(err.Error())
		}
		hp := state.HP + a.Amount
		if hp < 0 {
			hp = 0
		}
		if hp > state.MaxHP {
			hp = state.MaxHP
		}
		if _, err := e.players.PatchState(ctx, ev.CampaignID, ev.PlayerID, player.StatePatch{HP: &hp}); err != nil {
			return fail(err.Error())
		}
		return ok("", map[string]any{"hp": hp})

	case rules.ActionAddXP:
		state, err := e.players.EnsureState(ctx, ev.CampaignID, ev.PlayerID)
		if err != nil {
			return fail(err.Error())
		}
		xp := state.XP + a.Amount
		if _, err := e.players.PatchState(ctx, ev.CampaignID, ev.PlayerID, player.StatePatch{XP: &xp}); err != nil {
			return fail(err.Error())
		}
		return ok("", map[string]any{"xp": xp})

	case rules.ActionModifyGold:
		balance, err := e.players.AdjustGold(ctx, ev.CampaignID, ev.PlayerID, a.Amount, true)
		if err != nil {
			return fail(err.Error())
		}
		return ok("", map[string]any{"gold": balance})

	case rules.ActionGrantAbility:
		if err := e.players.GrantAbility(ctx, ev.CampaignID, ev.PlayerID, a.AbilityName, nowMs); err != nil {
			return fail(err.Error())
		}
		return ok(fmt.Sprintf("Learned %s!", a.AbilityName), nil)

	case rules.ActionRemoveAbility:
		if err := e.players.RemoveAbility(ctx, ev.CampaignID, ev.PlayerID, a.AbilityName); err != nil {
			return fail(err.Error())
		}
		return ok(fmt.Sprintf("Lost ability: %s", a.AbilityName), nil)

	case rules.ActionGiveItem:
		item, err := e.campaigns.FindItemByName(ctx, ev.CampaignID, a.ItemName)
		if err != nil {
			return fail(fmt.Sprintf("Item not found: %s", a.ItemName))
		}
		qty := a.Quantity
		if qty <= 0 {
			qty = 1
		}
		if _, err := e.players.AdjustItem(ctx, ev.CampaignID, ev.PlayerID, item.ID, qty, nowMs); err != nil {
			return fail(err.Error())
		}
		return ok(fmt.Sprintf("Received %dx %s", qty, item.Name), nil)

	case rules.ActionRemoveItem:
		item, err := e.campaigns.FindItemByName(ctx, ev.CampaignID, a.ItemName)
		if err != nil {
			return fail(fmt.Sprintf("Item not found: %s", a.ItemName))
		}
		qty := a.Quantity
		if qty <= 0 {
			qty = 1
		}
		if _, err := e.players.AdjustItem(ctx, ev.CampaignID, ev.PlayerID, item.ID, -qty, nowMs); err != nil {
			return fail(err.Error())
		}
		return ok(fmt.Sprintf("Consumed %dx %s", qty, item.Name), nil)

	case rules.ActionModifyReputation:
		value, err := e.players.AdjustReputation(ctx, ev.CampaignID, ev.PlayerID, a.Faction, float64(a.Amount), nowMs)
		if err != nil {
			return fail(err.Error())
		}
		return ok("", map[string]any{"faction": a.Faction, "reputation": value})

	case rules.ActionActivateQuest:
		if err := e.players.SetQuestStatus(ctx, ev.CampaignID, ev.PlayerID, a.QuestID, "active"); err != nil {
			return fail(err.Error())
		}
		return ok(fmt.Sprintf("Quest activated: %s", a.QuestID), nil)

	case rules.ActionTeleport:
		loc := a.LocationID
		if _, err := e.players.PatchState(ctx, ev.CampaignID, ev.PlayerID, player.StatePatch{CurrentLocationID: &loc}); err != nil {
			return fail(err.Error())
		}
		if err := e.players.RecordVisit(ctx, ev.CampaignID, ev.PlayerID, loc, nowMs); err != nil {
			return fail(err.Error())
		}
		return ok("", map[string]any{"location": loc})

	case rules.ActionSpawnNPC:
		npc, err := e.campaigns.GetNPC(ctx, a.NPCID)
		if err != nil {
			return fail(fmt.Sprintf("NPC not found: %s", a.NPCID))
		}
		if !npc.IsDead {
			return ok("", nil)
		}
		if _, err := e.campaigns.SetNPCDead(ctx, npc.ID, false, "", nowMs); err != nil {
			return fail(err.Error())
		}
		return ok(fmt.Sprintf("%s has appeared", npc.Name), nil)

	case rules.ActionKillNPC:
		npc, err := e.campaigns.GetNPC(ctx, a.NPCID)
		if err != nil {
			return fail(fmt.Sprintf("NPC not found: %s", a.NPCID))
		}
		if _, err := e.campaigns.SetNPCDead(ctx, npc.ID, true, "scripted", nowMs); err != nil {
			if errors.Is(err, campaign.ErrNPCEssential) {
				return fail(fmt.Sprintf("%s is essential and cannot be killed", npc.Name))
			}
			return fail(err.Error())
		}
		return ok(fmt.Sprintf("%s has died", npc.Name), nil)

	default:
		return fail(fmt.Sprintf("unknown action type %q", a.Type))
	}
}
