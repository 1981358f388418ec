package rules

import (
	"encoding/json"
	"fmt"
)

// Op is a rule node's operator.
type Op string

const (
	OpEq                Op = "eq"
	OpNeq               Op = "neq"
	OpGt                Op = "gt"
	OpGte               Op = "gte"
	OpLt                Op = "lt"
	OpLte               Op = "lte"
	OpAnd               Op = "and"
	OpOr                Op = "or"
	OpNot               Op = "not"
	OpHasItem           Op = "has_item"
	OpHasEquipped       Op = "has_equipped"
	OpHasAbility        Op = "has_ability"
	OpQuestStatus       Op = "quest_status"
	OpQuestCompleted    Op = "quest_completed"
	OpNPCAlive          Op = "npc_alive"
	OpNPCDead           Op = "npc_dead"
	OpAtLocation        Op = "at_location"
	OpVisitedLocation   Op = "visited_location"
	OpInRegion          Op = "in_region"
	OpFlag              Op = "flag"
	OpFactionIs         Op = "faction_is"
	OpFactionReputation Op = "faction_reputation"

	// OpCustom is the escape hatch for operators this engine does not
	// interpret. The raw payload is preserved for external tooling and
	// the node evaluates to false.
	OpCustom Op = "custom"
)

// Rule is one node of the parsed rule tree. Which fields are populated
// depends on Op:
//
//	comparisons (eq..lte)  Path, Value
//	and, or                Kids
//	not                    Kid
//	name tests             Name (item, ability, npc, location, faction)
//	quest_status           Name, Status
//	flag                   Path (key), Value
//	faction_reputation     Name, Threshold
//	custom                 Raw
type Rule struct {
	Op        Op
	Path      string
	Value     any
	Name      string
	Status    string
	Threshold float64
	Kids      []*Rule
	Kid       *Rule
	Raw       json.RawMessage
}

// Parse decodes a JSON rule tree. Each node is an object with exactly
// one key, the operator. Unknown operators parse as custom nodes so a
// stored rule written by newer tooling never fails the whole tree.
func Parse(data []byte) (*Rule, error) {
	var node map[string]json.RawMessage
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("rule is not a JSON object: %w", err)
	}
	if len(node) != 1 {
		return nil, fmt.Errorf("rule object must have exactly one operator key, has %d", len(node))
	}
	for key, operand := range node {
		return parseNode(Op(key), operand)
	}
	return nil, fmt.Errorf("unreachable")
}

func parseNode(op Op, operand json.RawMessage) (*Rule, error) {
	switch op {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte:
		var pair [2]json.RawMessage
		if err := json.Unmarshal(operand, &pair); err != nil {
			return nil, fmt.Errorf("%s operand must be a [path, value] pair: %w", op, err)
		}
		var path string
		if err := json.Unmarshal(pair[0], &path); err != nil {
			return nil, fmt.Errorf("%s path must be a string: %w", op, err)
		}
		var value any
		if err := json.Unmarshal(pair[1], &value); err != nil {
			return nil, fmt.Errorf("%s value: %w", op, err)
		}
		return &Rule{Op: op, Path: path, Value: value}, nil

	case OpAnd, OpOr:
		var items []json.RawMessage
		if err := json.Unmarshal(operand, &items); err != nil {
			return nil, fmt.Errorf("%s operand must be an array of rules: %w", op, err)
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("%s needs at least one child rule", op)
		}
		kids := make([]*Rule, 0, len(items))
		for _, item := range items {
			kid, err := Parse(item)
			if err != nil {
				return nil, err
			}
			kids = append(kids, kid)
		}
		return &Rule{Op: op, Kids: kids}, nil

	case OpNot:
		kid, err := Parse(operand)
		if err != nil {
			return nil, err
		}
		return &Rule{Op: op, Kid: kid}, nil

	case OpHasItem, OpHasEquipped, OpHasAbility, OpQuestCompleted,
		OpNPCAlive, OpNPCDead, OpAtLocation, OpVisitedLocation,
		OpInRegion, OpFactionIs:
		var name string
		if err := json.Unmarshal(operand, &name); err != nil {
			return nil, fmt.Errorf("%s operand must be a string: %w", op, err)
		}
		return &Rule{Op: op, Name: name}, nil

	case OpQuestStatus:
		var pair [2]string
		if err := json.Unmarshal(operand, &pair); err != nil {
			return nil, fmt.Errorf("quest_status operand must be a [title, status] pair: %w", err)
		}
		return &Rule{Op: op, Name: pair[0], Status: pair[1]}, nil

	case OpFlag:
		var pair [2]json.RawMessage
		if err := json.Unmarshal(operand, &pair); err != nil {
			return nil, fmt.Errorf("flag operand must be a [key, value] pair: %w", err)
		}
		var key string
		if err := json.Unmarshal(pair[0], &key); err != nil {
			return nil, fmt.Errorf("flag key must be a string: %w", err)
		}
		var value any
		if err := json.Unmarshal(pair[1], &value); err != nil {
			return nil, fmt.Errorf("flag value: %w", err)
		}
		return &Rule{Op: op, Path: key, Value: value}, nil

	case OpFactionReputation:
		var pair [2]json.RawMessage
		if err := json.Unmarshal(operand, &pair); err != nil {
			return nil, fmt.Errorf("faction_reputation operand must be a [faction, min] pair: %w", err)
		}
		var name string
		if err := json.Unmarshal(pair[0], &name); err != nil {
			return nil, fmt.Errorf("faction name must be a string: %w", err)
		}
		var min float64
		if err := json.Unmarshal(pair[1], &min); err != nil {
			return nil, fmt.Errorf("reputation minimum must be a number: %w", err)
		}
		return &Rule{Op: op, Name: name, Threshold: min}, nil

	default:
		return &Rule{Op: OpCustom, Raw: operand}, nil
	}
}
