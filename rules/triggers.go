// Package rules implements the condition rule language: a JSON rule
// tree parsed into a typed AST, evaluated against a player snapshot,
// and a closed set of actions fired when a condition matches. The
// package is pure; storage and side effects live with the caller.
package rules

// Trigger names the game event a condition listens for.
type Trigger string

const (
	TriggerEnterLocation Trigger = "on_enter_location"
	TriggerExitLocation  Trigger = "on_exit_location"
	TriggerCombatStart   Trigger = "on_combat_start"
	TriggerCombatEnd     Trigger = "on_combat_end"
	TriggerItemUse       Trigger = "on_item_use"
	TriggerItemPickup    Trigger = "on_item_pickup"
	TriggerNPCInteract   Trigger = "on_npc_interact"
	TriggerNPCDeath      Trigger = "on_npc_death"
	TriggerQuestUpdate   Trigger = "on_quest_update"
	TriggerQuestComplete Trigger = "on_quest_complete"
	TriggerLevelUp       Trigger = "on_level_up"
	TriggerAbilityUse    Trigger = "on_ability_use"
	TriggerGameStart     Trigger = "on_game_start"
	TriggerTurn          Trigger = "on_turn"
	TriggerRest          Trigger = "on_rest"
	TriggerAlways        Trigger = "always"
)

var allTriggers = map[Trigger]bool{
	TriggerEnterLocation: true,
	TriggerExitLocation:  true,
	TriggerCombatStart:   true,
	TriggerCombatEnd:     true,
	TriggerItemUse:       true,
	TriggerItemPickup:    true,
	TriggerNPCInteract:   true,
	TriggerNPCDeath:      true,
	TriggerQuestUpdate:   true,
	TriggerQuestComplete: true,
	TriggerLevelUp:       true,
	TriggerAbilityUse:    true,
	TriggerGameStart:     true,
	TriggerTurn:          true,
	TriggerRest:          true,
	TriggerAlways:        true,
}

// ValidTrigger reports whether t is one of the known trigger names.
func ValidTrigger(t Trigger) bool {
	return allTriggers[t]
}
