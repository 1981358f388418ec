package rules

import "testing"

func snapshot() *Snapshot {
	return &Snapshot{
		PlayerID:  "p1",
		ContextID: "loc-dungeon",
		Level:     4,
		HP:        18,
		MaxHP:     20,
		XP:        350,
		Gold:      30,
		Class:     "rogue",
		Faction:   "Thieves' Guild",
		Location:  "loc-gate",
		Region:    "northreach",
		Stats:     map[string]float64{"strength": 12},
		Flags:     map[string]any{"met_king": true, "debt": float64(50)},
		Items:     map[string]int{"Healing Potion": 2},
		Equipped:  map[string]bool{"Iron Sword": true},
		Abilities: map[string]bool{"Lockpick": true},
		Quests:    map[string]string{"The Missing Heir": "active", "Rat Problem": "completed"},
		Visited:   map[string]bool{"loc-village": true},
		Reputation: map[string]float64{
			"Crown": 40,
		},
		NPCAlive: map[string]bool{"npc-king": true, "npc-bandit": false},
	}
}

func TestEvalOperators(t *testing.T) {
	s := snapshot()
	cases := []struct {
		src  string
		want bool
	}{
		{`{"eq": ["player.class", "rogue"]}`, true},
		{`{"eq": ["player.level", 4]}`, true},
		{`{"neq": ["player.class", "paladin"]}`, true},
		{`{"gt": ["player.gold", 20]}`, true},
		{`{"gte": ["player.level", 5]}`, false},
		{`{"lt": ["player.hp", 20]}`, true},
		{`{"lte": ["player.stats.strength", 12]}`, true},
		{`{"has_item": "Healing Potion"}`, true},
		{`{"has_item": "Dragon Scale"}`, false},
		{`{"has_equipped": "Iron Sword"}`, true},
		{`{"has_equipped": "Healing Potion"}`, false},
		{`{"has_ability": "Lockpick"}`, true},
		{`{"quest_status": ["The Missing Heir", "active"]}`, true},
		{`{"quest_status": ["The Missing Heir", "completed"]}`, false},
		{`{"quest_completed": "Rat Problem"}`, true},
		{`{"npc_alive": "npc-king"}`, true},
		{`{"npc_dead": "npc-bandit"}`, true},
		{`{"npc_alive": "npc-ghost"}`, false},
		{`{"npc_dead": "npc-ghost"}`, false},
		{`{"at_location": "loc-gate"}`, true},
		{`{"visited_location": "loc-village"}`, true},
		{`{"visited_location": "loc-gate"}`, false},
		{`{"in_region": "northreach"}`, true},
		{`{"flag": ["met_king", true]}`, true},
		{`{"flag": ["met_king", false]}`, false},
		{`{"flag": ["debt", 50]}`, true},
		{`{"flag": ["unset_flag", true]}`, false},
		{`{"faction_is": "Thieves' Guild"}`, true},
		{`{"faction_reputation": ["Crown", 40]}`, true},
		{`{"faction_reputation": ["Crown", 41]}`, false},
		{`{"faction_reputation": ["Unknown Cult", 1]}`, false},
		{`{"eq": ["trigger", "loc-dungeon"]}`, true},
	}
	for _, c := range cases {
		if got := mustParse(t, c.src).Eval(s); got != c.want {
			t.Errorf("%s = %v, want %v", c.src, got, c.want)
		}
	}
}

func TestEvalBoolean(t *testing.T) {
	s := snapshot()
	cases := []struct {
		src  string
		want bool
	}{
		{`{"and": [{"gt": ["player.gold", 20]}, {"has_ability": "Lockpick"}]}`, true},
		{`{"and": [{"gt": ["player.gold", 20]}, {"has_ability": "Fireball"}]}`, false},
		{`{"or": [{"has_ability": "Fireball"}, {"has_ability": "Lockpick"}]}`, true},
		{`{"not": {"gte": ["player.level", 5]}}`, true},
		{`{"not": {"not": {"has_item": "Healing Potion"}}}`, true},
	}
	for _, c := range cases {
		if got := mustParse(t, c.src).Eval(s); got != c.want {
			t.Errorf("%s = %v, want %v", c.src, got, c.want)
		}
	}
}

func TestEvalUnresolvablePathIsFalse(t *testing.T) {
	s := snapshot()
	for _, src := range []string{
		`{"eq": ["player.charm", 10]}`,
		`{"gt": ["player.name", 3]}`,
		`{"gt": ["flag.met_king", 0]}`,
	} {
		if mustParse(t, src).Eval(s) {
			t.Errorf("%s matched", src)
		}
	}
	// A numeric flag still orders fine.
	if !mustParse(t, `{"gt": ["flag.debt", 10]}`).Eval(s) {
		t.Errorf("numeric flag did not order")
	}
}

func TestEvalLevelGate(t *testing.T) {
	// A level-4 player fails a level-5 gate; levelling to 5 passes it.
	gate := mustParse(t, `{"gte": ["player.level", 5]}`)
	s := snapshot()
	if gate.Eval(s) {
		t.Fatalf("level 4 passed a level 5 gate")
	}
	s.Level = 5
	if !gate.Eval(s) {
		t.Fatalf("level 5 failed a level 5 gate")
	}
}

func TestEvalNilRule(t *testing.T) {
	var r *Rule
	if r.Eval(snapshot()) {
		t.Fatalf("nil rule matched")
	}
}
