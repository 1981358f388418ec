package condition

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"realmforge/rules"
)

// Authoring-time validation. The schemas catch structural mistakes
// with a readable error before a condition is saved; rules.Parse and
// rules.ParseActions then enforce the exact per-operator shapes. The
// engine itself never trusts stored JSON either way.

const ruleSchemaJSON = `{
  "$ref": "#/$defs/rule",
  "$defs": {
    "rule": {
      "type": "object",
      "minProperties": 1,
      "maxProperties": 1,
      "propertyNames": {
        "enum": [
          "eq", "neq", "gt", "gte", "lt", "lte",
          "and", "or", "not",
          "has_item", "has_equipped", "has_ability",
          "quest_status", "quest_completed",
          "npc_alive", "npc_dead",
          "at_location", "visited_location", "in_region",
          "flag", "faction_is", "faction_reputation",
          "custom"
        ]
      },
      "properties": {
        "and": {"type": "array", "minItems": 1, "items": {"$ref": "#/$defs/rule"}},
        "or": {"type": "array", "minItems": 1, "items": {"$ref": "#/$defs/rule"}},
        "not": {"$ref": "#/$defs/rule"},
        "eq": {"$ref": "#/$defs/pair"},
        "neq": {"$ref": "#/$defs/pair"},
        "gt": {"$ref": "#/$defs/pair"},
        "gte": {"$ref": "#/$defs/pair"},
        "lt": {"$ref": "#/$defs/pair"},
        "lte": {"$ref": "#/$defs/pair"},
        "flag": {"type": "array", "minItems": 2, "maxItems": 2},
        "quest_status": {
          "type": "array", "minItems": 2, "maxItems": 2,
          "items": {"type": "string"}
        },
        "faction_reputation": {
          "type": "array", "minItems": 2, "maxItems": 2,
          "prefixItems": [{"type": "string"}, {"type": "number"}]
        },
        "has_item": {"type": "string"},
        "has_equipped": {"type": "string"},
        "has_ability": {"type": "string"},
        "quest_completed": {"type": "string"},
        "npc_alive": {"type": "string"},
        "npc_dead": {"type": "string"},
        "at_location": {"type": "string"},
        "visited_location": {"type": "string"},
        "in_region": {"type": "string"},
        "faction_is": {"type": "string"}
      }
    },
    "pair": {
      "type": "array",
      "minItems": 2,
      "maxItems": 2,
      "prefixItems": [{"type": "string"}]
    }
  }
}`

const actionsSchemaJSON = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["type"],
    "properties": {
      "type": {
        "enum": [
          "block_entry", "show_message",
          "grant_ability", "remove_ability",
          "give_item", "remove_item",
          "set_flag", "clear_flag",
          "modify_hp", "modify_gold", "add_xp", "modify_reputation",
          "activate_quest", "teleport", "spawn_npc", "kill_npc"
        ]
      }
    }
  }
}`

var (
	ruleSchema    = jsonschema.MustCompileString("rule.schema.json", ruleSchemaJSON)
	actionsSchema = jsonschema.MustCompileString("actions.schema.json", actionsSchemaJSON)
)

// ValidateRules checks a serialized predicate tree at authoring time.
func ValidateRules(raw string) error {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("rules are not valid JSON: %w", err)
	}
	if err := ruleSchema.Validate(doc); err != nil {
		return fmt.Errorf("rules failed schema validation: %w", err)
	}
	if _, err := rules.Parse([]byte(raw)); err != nil {
		return err
	}
	return nil
}

// ValidateActions checks a serialized action list at authoring time.
// Empty input is fine: elseActions are optional.
func ValidateActions(raw string) error {
	if raw == "" {
		return nil
	}
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("actions are not valid JSON: %w", err)
	}
	if err := actionsSchema.Validate(doc); err != nil {
		return fmt.Errorf("actions failed schema validation: %w", err)
	}
	_, err := rules.ParseActions([]byte(raw))
	return err
}

// ValidateCondition runs every authoring check on a condition.
func ValidateCondition(c Condition) error {
	if c.Name == "" {
		return fmt.Errorf("condition name required")
	}
	if !rules.ValidTrigger(c.Trigger) {
		return fmt.Errorf("unknown trigger %q", c.Trigger)
	}
	if err := ValidateRules(c.Rules); err != nil {
		return err
	}
	if c.ThenActions == "" {
		return fmt.Errorf("thenActions required")
	}
	if err := ValidateActions(c.ThenActions); err != nil {
		return err
	}
	return ValidateActions(c.ElseActions)
}
