package rules

import (
	"encoding/json"
	"fmt"
)

// ActionType names one of the closed set of condition actions.
type ActionType string

const (
	ActionBlockEntry  ActionType = "block_entry"
	ActionShowMessage ActionType = "show_message"

	ActionGrantAbility  ActionType = "grant_ability"
	ActionRemoveAbility ActionType = "remove_ability"
	ActionGiveItem      ActionType = "give_item"
	ActionRemoveItem    ActionType = "remove_item"

	ActionSetFlag   ActionType = "set_flag"
	ActionClearFlag ActionType = "clear_flag"

	ActionModifyHP         ActionType = "modify_hp"
	ActionModifyGold       ActionType = "modify_gold"
	ActionAddXP            ActionType = "add_xp"
	ActionModifyReputation ActionType = "modify_reputation"

	ActionActivateQuest ActionType = "activate_quest"
	ActionTeleport      ActionType = "teleport"
	ActionSpawnNPC      ActionType = "spawn_npc"
	ActionKillNPC       ActionType = "kill_npc"
)

// Action is one entry of a condition's then/else action list. A single
// struct carries the union; RequiredFields documents which fields each
// type reads, and Validate enforces it.
type Action struct {
	Type        ActionType `json:"type"`
	Message     string     `json:"message,omitempty"`
	Key         string     `json:"key,omitempty"`
	Value       any        `json:"value,omitempty"`
	ItemName    string     `json:"itemName,omitempty"`
	AbilityName string     `json:"abilityName,omitempty"`
	QuestID     string     `json:"questId,omitempty"`
	Faction     string     `json:"faction,omitempty"`
	Amount      int        `json:"amount,omitempty"`
	Quantity    int        `json:"quantity,omitempty"`
	LocationID  string     `json:"locationId,omitempty"`
	NPCID       string     `json:"npcId,omitempty"`
}

// Validate checks that the action names a known type and carries the
// fields that type reads.
func (a Action) Validate() error {
	switch a.Type {
	case ActionBlockEntry, ActionShowMessage:
		// Message is optional for block_entry and falls back to a
		// default at execution time.
		if a.Type == ActionShowMessage && a.Message == "" {
			return fmt.Errorf("show_message needs a message")
		}
	case ActionGrantAbility, ActionRemoveAbility:
		if a.AbilityName == "" {
			return fmt.Errorf("%s needs abilityName", a.Type)
		}
	case ActionGiveItem, ActionRemoveItem:
		if a.ItemName == "" {
			return fmt.Errorf("%s needs itemName", a.Type)
		}
	case ActionSetFlag, ActionClearFlag:
		if a.Key == "" {
			return fmt.Errorf("%s needs key", a.Type)
		}
	case ActionModifyHP, ActionModifyGold, ActionAddXP:
		if a.Amount == 0 {
			return fmt.Errorf("%s needs a non-zero amount", a.Type)
		}
	case ActionModifyReputation:
		if a.Faction == "" {
			return fmt.Errorf("modify_reputation needs faction")
		}
	case ActionActivateQuest:
		if a.QuestID == "" {
			return fmt.Errorf("activate_quest needs questId")
		}
	case ActionTeleport:
		if a.LocationID == "" {
			return fmt.Errorf("teleport needs locationId")
		}
	case ActionSpawnNPC, ActionKillNPC:
		if a.NPCID == "" {
			return fmt.Errorf("%s needs npcId", a.Type)
		}
	case "":
		return fmt.Errorf("action has no type")
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
	return nil
}

// ParseActions decodes a JSON action list and validates every entry.
func ParseActions(data []byte) ([]Action, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var actions []Action
	if err := json.Unmarshal(data, &actions); err != nil {
		return nil, fmt.Errorf("actions must be a JSON array: %w", err)
	}
	for i, a := range actions {
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
	}
	return actions, nil
}

// ActionResult reports one executed action back to the caller.
type ActionResult struct {
	Type    ActionType     `json:"type"`
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}
