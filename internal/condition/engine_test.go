package condition

import (
	"context"
	"testing"

	"realmforge/economy"
	"realmforge/internal/campaign"
	"realmforge/internal/player"
	"realmforge/rules"
)

type engineFixture struct {
	conditions Service
	players    player.Service
	campaigns  campaign.Service
	engine     *Engine
	campaignID string
	nowMs      int64
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	ctx := context.Background()
	campaigns := campaign.NewMemoryService()
	camp, err := campaigns.CreateCampaign(ctx, 1, "Emberfall", "")
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	f := &engineFixture{
		conditions: NewMemoryService(),
		players:    player.NewMemoryService(),
		campaigns:  campaigns,
		campaignID: camp.ID,
		nowMs:      1_000_000,
	}
	f.engine = NewEngine(f.conditions, f.players, f.campaigns)
	f.engine.now = func() int64 { return f.nowMs }
	return f
}

func (f *engineFixture) create(t *testing.T, c Condition) Condition {
	t.Helper()
	c.CampaignID = f.campaignID
	c.IsActive = true
	created, err := f.conditions.Create(context.Background(), c)
	if err != nil {
		t.Fatalf("create condition: %v", err)
	}
	return created
}

func (f *engineFixture) fire(t *testing.T, playerID string, trigger rules.Trigger, contextID string) Report {
	t.Helper()
	report, err := f.engine.Fire(context.Background(), TriggerEvent{
		CampaignID: f.campaignID,
		PlayerID:   playerID,
		Trigger:    trigger,
		ContextID:  contextID,
	})
	if err != nil {
		t.Fatalf("fire: %v", err)
	}
	return report
}

func TestFireLevelGate(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.create(t, Condition{
		ID:          "gate",
		Name:        "Crypt level gate",
		Trigger:     rules.TriggerEnterLocation,
		Rules:       `{"lt": ["player.level", 5]}`,
		ThenActions: `[{"type": "block_entry", "message": "The crypt door will not budge."}]`,
		ElseActions: `[{"type": "show_message", "message": "The door creaks open."}]`,
	})

	report := f.fire(t, "p1", rules.TriggerEnterLocation, "")
	if !report.Blocked || report.BlockMessage != "The crypt door will not budge." {
		t.Fatalf("level 1 player should be blocked: %+v", report)
	}

	level := 7
	if _, err := f.players.PatchState(ctx, f.campaignID, "p1", player.StatePatch{Level: &level}); err != nil {
		t.Fatalf("patch level: %v", err)
	}
	report = f.fire(t, "p1", rules.TriggerEnterLocation, "")
	if report.Blocked {
		t.Fatalf("level 7 player should pass: %+v", report)
	}
	if len(report.Results) != 1 || report.Results[0].Matched {
		t.Fatalf("expected one unmatched outcome, got %+v", report.Results)
	}
	if report.Results[0].Actions[0].Message != "The door creaks open." {
		t.Fatalf("else branch did not run: %+v", report.Results[0].Actions)
	}
}

func TestFireStopsAtFirstBlock(t *testing.T) {
	f := newEngineFixture(t)
	f.create(t, Condition{
		ID:          "ward",
		Name:        "Arcane ward",
		Trigger:     rules.TriggerEnterLocation,
		Rules:       `{"eq": ["player.level", 1]}`,
		ThenActions: `[{"type": "block_entry"}]`,
		Priority:    10,
	})
	f.create(t, Condition{
		ID:          "toll",
		Name:        "Gold toll",
		Trigger:     rules.TriggerEnterLocation,
		Rules:       `{"eq": ["player.level", 1]}`,
		ThenActions: `[{"type": "modify_gold", "amount": -10}]`,
		Priority:    1,
	})

	report := f.fire(t, "p1", rules.TriggerEnterLocation, "")
	if !report.Blocked {
		t.Fatalf("expected block: %+v", report)
	}
	if report.BlockMessage != "You cannot enter this area." {
		t.Fatalf("default block message missing: %q", report.BlockMessage)
	}
	if len(report.Results) != 1 || report.Results[0].ConditionID != "ward" {
		t.Fatalf("lower priority condition ran after the block: %+v", report.Results)
	}
	gold, err := f.players.Gold(context.Background(), f.campaignID, "p1")
	if err != nil || gold != 0 {
		t.Fatalf("toll should not have charged: gold=%d err=%v", gold, err)
	}
}

func TestFirePriorityOrder(t *testing.T) {
	f := newEngineFixture(t)
	f.create(t, Condition{
		ID: "second", Name: "Second", Trigger: rules.TriggerTurn,
		Rules:       `{"eq": ["player.level", 1]}`,
		ThenActions: `[{"type": "show_message", "message": "second"}]`,
		Priority:    1,
	})
	f.create(t, Condition{
		ID: "first", Name: "First", Trigger: rules.TriggerTurn,
		Rules:       `{"eq": ["player.level", 1]}`,
		ThenActions: `[{"type": "show_message", "message": "first"}]`,
		Priority:    5,
	})

	report := f.fire(t, "p1", rules.TriggerTurn, "")
	if len(report.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(report.Results))
	}
	if report.Results[0].ConditionID != "first" || report.Results[1].ConditionID != "second" {
		t.Fatalf("priority order wrong: %+v", report.Results)
	}
}

func TestFireExecuteOnce(t *testing.T) {
	f := newEngineFixture(t)
	f.create(t, Condition{
		ID: "welcome", Name: "Welcome gift", Trigger: rules.TriggerGameStart,
		Rules:       `{"eq": ["player.level", 1]}`,
		ThenActions: `[{"type": "modify_gold", "amount": 50}]`,
		ExecuteOnce: true,
	})

	first := f.fire(t, "p1", rules.TriggerGameStart, "")
	if len(first.Results) != 1 || !first.Results[0].Matched {
		t.Fatalf("first firing should match: %+v", first)
	}
	second := f.fire(t, "p1", rules.TriggerGameStart, "")
	if len(second.Results) != 0 {
		t.Fatalf("one-shot condition ran twice: %+v", second)
	}
	gold, _ := f.players.Gold(context.Background(), f.campaignID, "p1")
	if gold != 50 {
		t.Fatalf("gold = %d, want 50", gold)
	}

	// A different player still gets their own firing.
	other := f.fire(t, "p2", rules.TriggerGameStart, "")
	if len(other.Results) != 1 {
		t.Fatalf("one-shot consumption leaked across players: %+v", other)
	}
}

func TestFireExecuteOnceNotConsumedByMiss(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.create(t, Condition{
		ID: "reward", Name: "Level 5 reward", Trigger: rules.TriggerLevelUp,
		Rules:       `{"gte": ["player.level", 5]}`,
		ThenActions: `[{"type": "modify_gold", "amount": 100}]`,
		ExecuteOnce: true,
	})

	miss := f.fire(t, "p1", rules.TriggerLevelUp, "")
	if len(miss.Results) != 1 || miss.Results[0].Matched {
		t.Fatalf("expected an unmatched run: %+v", miss)
	}

	level := 5
	if _, err := f.players.PatchState(ctx, f.campaignID, "p1", player.StatePatch{Level: &level}); err != nil {
		t.Fatalf("patch level: %v", err)
	}
	hit := f.fire(t, "p1", rules.TriggerLevelUp, "")
	if len(hit.Results) != 1 || !hit.Results[0].Matched {
		t.Fatalf("miss consumed the one-shot: %+v", hit)
	}
}

func TestFireCooldown(t *testing.T) {
	f := newEngineFixture(t)
	f.create(t, Condition{
		ID: "drip", Name: "Healing spring", Trigger: rules.TriggerRest,
		Rules:           `{"eq": ["player.level", 1]}`,
		ThenActions:     `[{"type": "modify_gold", "amount": 1}]`,
		CooldownSeconds: 60,
	})

	if report := f.fire(t, "p1", rules.TriggerRest, ""); len(report.Results) != 1 {
		t.Fatalf("first firing skipped: %+v", report)
	}
	f.nowMs += 30_000
	if report := f.fire(t, "p1", rules.TriggerRest, ""); len(report.Results) != 0 {
		t.Fatalf("fired inside the cooldown window: %+v", report)
	}
	f.nowMs += 31_000
	if report := f.fire(t, "p1", rules.TriggerRest, ""); len(report.Results) != 1 {
		t.Fatalf("cooldown never expired: %+v", report)
	}
}

func TestFireTriggerContextNarrowing(t *testing.T) {
	f := newEngineFixture(t)
	f.create(t, Condition{
		ID: "shrine", Name: "Shrine whisper", Trigger: rules.TriggerEnterLocation,
		TriggerContext: "loc-shrine",
		Rules:          `{"eq": ["player.level", 1]}`,
		ThenActions:    `[{"type": "show_message", "message": "A whisper greets you."}]`,
	})

	if report := f.fire(t, "p1", rules.TriggerEnterLocation, "loc-market"); len(report.Results) != 0 {
		t.Fatalf("condition ran outside its context: %+v", report)
	}
	if report := f.fire(t, "p1", rules.TriggerEnterLocation, "loc-shrine"); len(report.Results) != 1 {
		t.Fatalf("condition skipped in its own context: %+v", report)
	}
}

func TestFireMalformedRulesAreInert(t *testing.T) {
	f := newEngineFixture(t)
	f.create(t, Condition{
		ID: "broken", Name: "Broken", Trigger: rules.TriggerTurn,
		Rules:       `{{{`,
		ThenActions: `[{"type": "show_message", "message": "never"}]`,
		Priority:    10,
	})
	f.create(t, Condition{
		ID: "fine", Name: "Fine", Trigger: rules.TriggerTurn,
		Rules:       `{"eq": ["player.level", 1]}`,
		ThenActions: `[{"type": "show_message", "message": "still here"}]`,
	})

	report := f.fire(t, "p1", rules.TriggerTurn, "")
	if len(report.Results) != 1 || report.Results[0].ConditionID != "fine" {
		t.Fatalf("broken condition should be skipped silently: %+v", report)
	}
}

func TestActionsAgainstWorldState(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	potion, err := f.campaigns.CreateItem(ctx, economy.Item{
		CampaignID: f.campaignID, Name: "Healing Potion", Type: "consumable", Rarity: economy.RarityCommon,
	})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	guard, err := f.campaigns.CreateNPC(ctx, campaign.NPC{CampaignID: f.campaignID, Name: "Gate Guard"})
	if err != nil {
		t.Fatalf("create npc: %v", err)
	}
	elder, err := f.campaigns.CreateNPC(ctx, campaign.NPC{CampaignID: f.campaignID, Name: "Village Elder", IsEssential: true})
	if err != nil {
		t.Fatalf("create elder: %v", err)
	}

	f.create(t, Condition{
		ID: "ambush", Name: "Crypt ambush", Trigger: rules.TriggerEnterLocation,
		Rules: `{"eq": ["player.level", 1]}`,
		ThenActions: `[
			{"type": "give_item", "itemName": "Healing Potion", "quantity": 2},
			{"type": "modify_hp", "amount": -50},
			{"type": "grant_ability", "abilityName": "Second Wind"},
			{"type": "kill_npc", "npcId": "` + guard.ID + `"},
			{"type": "kill_npc", "npcId": "` + elder.ID + `"},
			{"type": "set_flag", "key": "ambushed", "value": true},
			{"type": "activate_quest", "questId": "Avenge the Guard"}
		]`,
	})

	report := f.fire(t, "p1", rules.TriggerEnterLocation, "")
	if len(report.Results) != 1 {
		t.Fatalf("expected one outcome: %+v", report)
	}
	actions := report.Results[0].Actions
	if len(actions) != 7 {
		t.Fatalf("got %d action results, want 7", len(actions))
	}
	if actions[0].Message != "Received 2x Healing Potion" {
		t.Fatalf("give_item message: %q", actions[0].Message)
	}
	if actions[3].Message != "Gate Guard has died" || !actions[3].Success {
		t.Fatalf("kill_npc: %+v", actions[3])
	}
	if actions[4].Success || actions[4].Message != "Village Elder is essential and cannot be killed" {
		t.Fatalf("essential npc killed: %+v", actions[4])
	}

	qty, _ := f.players.ItemQuantity(ctx, f.campaignID, "p1", potion.ID)
	if qty != 2 {
		t.Fatalf("potion quantity = %d, want 2", qty)
	}
	state, _ := f.players.EnsureState(ctx, f.campaignID, "p1")
	if state.HP != 0 {
		t.Fatalf("hp = %d, want 0 after clamped hit", state.HP)
	}
	abilities, _ := f.players.Abilities(ctx, f.campaignID, "p1")
	if !abilities["Second Wind"] {
		t.Fatalf("ability not granted: %v", abilities)
	}
	if npc, _ := f.campaigns.GetNPC(ctx, guard.ID); !npc.IsDead {
		t.Fatalf("guard should be dead")
	}
	quests, _ := f.players.Quests(ctx, f.campaignID, "p1")
	if quests["Avenge the Guard"] != "active" {
		t.Fatalf("quest not activated: %v", quests)
	}

	// The kill and flag feed the next evaluation.
	f.create(t, Condition{
		ID: "aftermath", Name: "Aftermath", Trigger: rules.TriggerNPCInteract,
		Rules:       `{"and": [{"npc_dead": "Gate Guard"}, {"flag": ["ambushed", true]}]}`,
		ThenActions: `[{"type": "show_message", "message": "The villagers mourn."}]`,
	})
	after := f.fire(t, "p1", rules.TriggerNPCInteract, "")
	if len(after.Results) != 1 || !after.Results[0].Matched {
		t.Fatalf("follow-up condition did not match: %+v", after)
	}
}

func TestFireRecordsExecutions(t *testing.T) {
	f := newEngineFixture(t)
	f.create(t, Condition{
		ID: "log-me", Name: "Logged", Trigger: rules.TriggerTurn,
		Rules:       `{"gte": ["player.level", 99]}`,
		ThenActions: `[{"type": "show_message", "message": "hm"}]`,
		ElseActions: `[{"type": "show_message", "message": "nothing happens"}]`,
	})

	f.fire(t, "p1", rules.TriggerTurn, "")
	execs, err := f.conditions.ListExecutions(context.Background(), f.campaignID, "p1", 10)
	if err != nil {
		t.Fatalf("list executions: %v", err)
	}
	if len(execs) != 1 {
		t.Fatalf("got %d executions, want 1", len(execs))
	}
	if execs[0].Result {
		t.Fatalf("execution should record the miss")
	}
	if len(execs[0].ActionResults) != 1 || execs[0].ActionResults[0].Message != "nothing happens" {
		t.Fatalf("else actions not logged: %+v", execs[0].ActionResults)
	}
}
