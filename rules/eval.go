package rules

import "strings"

// Snapshot is the read-only view of one player the evaluator runs
// against. Callers build it once per trigger firing and reuse it for
// every condition on that trigger.
type Snapshot struct {
	PlayerID  string
	ContextID string

	Level     int
	HP        int
	MaxHP     int
	Energy    int
	MaxEnergy int
	XP        int
	Gold      int
	Class     string
	Race      string
	Name      string
	Faction   string
	Location  string
	Region    string
	IsJailed  bool

	Stats      map[string]float64
	Flags      map[string]any
	Items      map[string]int
	Equipped   map[string]bool
	Abilities  map[string]bool
	Quests     map[string]string
	Visited    map[string]bool
	Reputation map[string]float64
	NPCAlive   map[string]bool
}

// Eval walks the rule tree against the snapshot. A nil rule never
// matches; neither does a custom node or a comparison against a path
// the snapshot cannot resolve.
func (r *Rule) Eval(s *Snapshot) bool {
	if r == nil || s == nil {
		return false
	}
	switch r.Op {
	case OpEq:
		return looseEq(s.resolve(r.Path), r.Value)
	case OpNeq:
		return !looseEq(s.resolve(r.Path), r.Value)
	case OpGt:
		return ordered(s.resolve(r.Path), r.Value, func(a, b float64) bool { return a > b })
	case OpGte:
		return ordered(s.resolve(r.Path), r.Value, func(a, b float64) bool { return a >= b })
	case OpLt:
		return ordered(s.resolve(r.Path), r.Value, func(a, b float64) bool { return a < b })
	case OpLte:
		return ordered(s.resolve(r.Path), r.Value, func(a, b float64) bool { return a <= b })
	case OpAnd:
		for _, kid := range r.Kids {
			if !kid.Eval(s) {
				return false
			}
		}
		return true
	case OpOr:
		for _, kid := range r.Kids {
			if kid.Eval(s) {
				return true
			}
		}
		return false
	case OpNot:
		return !r.Kid.Eval(s)
	case OpHasItem:
		return s.Items[r.Name] > 0
	case OpHasEquipped:
		return s.Equipped[r.Name]
	case OpHasAbility:
		return s.Abilities[r.Name]
	case OpQuestStatus:
		status, ok := s.Quests[r.Name]
		return ok && status == r.Status
	case OpQuestCompleted:
		return s.Quests[r.Name] == "completed"
	case OpNPCAlive:
		alive, ok := s.NPCAlive[r.Name]
		return ok && alive
	case OpNPCDead:
		alive, ok := s.NPCAlive[r.Name]
		return ok && !alive
	case OpAtLocation:
		return s.Location == r.Name
	case OpVisitedLocation:
		return s.Visited[r.Name]
	case OpInRegion:
		return s.Region == r.Name
	case OpFlag:
		v, ok := s.Flags[r.Path]
		return ok && looseEq(v, r.Value)
	case OpFactionIs:
		return s.Faction == r.Name
	case OpFactionReputation:
		return s.Reputation[r.Name] >= r.Threshold
	default:
		return false
	}
}

// resolve maps a dotted path to a snapshot value. Unresolvable player
// fields yield nil; a bare word that is no path at all is returned as
// a literal so authors can write {"eq": ["hard_mode", "hard_mode"]}
// style constants.
func (s *Snapshot) resolve(path string) any {
	parts := strings.Split(path, ".")
	switch parts[0] {
	case "player":
		if len(parts) < 2 {
			return nil
		}
		switch parts[1] {
		case "level":
			return float64(s.Level)
		case "hp":
			return float64(s.HP)
		case "maxHp":
			return float64(s.MaxHP)
		case "energy":
			return float64(s.Energy)
		case "maxEnergy":
			return float64(s.MaxEnergy)
		case "xp":
			return float64(s.XP)
		case "gold":
			return float64(s.Gold)
		case "class":
			return s.Class
		case "race":
			return s.Race
		case "name":
			return s.Name
		case "faction":
			return s.Faction
		case "location":
			return s.Location
		case "isJailed":
			return s.IsJailed
		case "stats":
			if len(parts) < 3 {
				return nil
			}
			return s.Stats[parts[2]]
		case "reputation":
			if len(parts) < 3 {
				return nil
			}
			return s.Reputation[parts[2]]
		default:
			return nil
		}
	case "flag":
		return s.Flags[strings.Join(parts[1:], ".")]
	case "trigger":
		return s.ContextID
	default:
		return path
	}
}

// looseEq compares a resolved snapshot value with a JSON literal.
// Numbers compare as numbers regardless of Go type; everything else
// must match in kind and value.
func looseEq(a, b any) bool {
	if an, ok := asNumber(a); ok {
		bn, ok := asNumber(b)
		return ok && an == bn
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	default:
		return false
	}
}

func ordered(a, b any, cmp func(a, b float64) bool) bool {
	an, ok := asNumber(a)
	if !ok {
		return false
	}
	bn, ok := asNumber(b)
	if !ok {
		return false
	}
	return cmp(an, bn)
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
