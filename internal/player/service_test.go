package player

import (
	"context"
	"errors"
	"testing"
)

func testServices(t *testing.T) map[string]Service {
	t.Helper()
	sqlite, err := NewSQLiteService(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]Service{
		"memory": NewMemoryService(),
		"sqlite": sqlite,
	}
}

func TestEnsureStateDefaults(t *testing.T) {
	for name, svc := range testServices(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			state, err := svc.EnsureState(ctx, "camp-1", "p1")
			if err != nil {
				t.Fatalf("ensure: %v", err)
			}
			if state.Level != 1 || state.HP != 20 || state.Gold != 0 {
				t.Fatalf("defaults = %+v", state)
			}

			gold := 100
			if _, err := svc.PatchState(ctx, "camp-1", "p1", StatePatch{Gold: &gold}); err != nil {
				t.Fatalf("patch: %v", err)
			}
			again, err := svc.EnsureState(ctx, "camp-1", "p1")
			if err != nil || again.Gold != 100 {
				t.Fatalf("ensure clobbered state: %+v, %v", again, err)
			}
		})
	}
}

func TestPatchStateMaxCaps(t *testing.T) {
	for name, svc := range testServices(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := svc.EnsureState(ctx, "camp-1", "p1"); err != nil {
				t.Fatalf("ensure: %v", err)
			}

			maxHP, maxEnergy := 30, 4
			state, err := svc.PatchState(ctx, "camp-1", "p1", StatePatch{MaxHP: &maxHP, MaxEnergy: &maxEnergy})
			if err != nil {
				t.Fatalf("patch: %v", err)
			}
			if state.MaxHP != 30 || state.MaxEnergy != 4 {
				t.Fatalf("caps = %d/%d, want 30/4", state.MaxHP, state.MaxEnergy)
			}
			// Energy was at the old cap of 10 and follows the lowered cap.
			if state.Energy != 4 {
				t.Fatalf("energy = %d, want 4", state.Energy)
			}

			energy := 9
			state, err = svc.PatchState(ctx, "camp-1", "p1", StatePatch{Energy: &energy})
			if err != nil || state.Energy != 4 {
				t.Fatalf("energy patch past cap = %d, %v", state.Energy, err)
			}
		})
	}
}

func TestAdjustGold(t *testing.T) {
	for name, svc := range testServices(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := svc.AdjustGold(ctx, "camp-1", "p1", 50, false); err != nil {
				t.Fatalf("credit: %v", err)
			}

			if _, err := svc.AdjustGold(ctx, "camp-1", "p1", -60, false); !errors.Is(err, ErrInsufficientGold) {
				t.Fatalf("overdraft allowed: %v", err)
			}
			gold, err := svc.Gold(ctx, "camp-1", "p1")
			if err != nil || gold != 50 {
				t.Fatalf("gold after failed debit = %d, %v", gold, err)
			}

			// The condition engine clamps instead of failing.
			clamped, err := svc.AdjustGold(ctx, "camp-1", "p1", -60, true)
			if err != nil || clamped != 0 {
				t.Fatalf("clamped debit = %d, %v", clamped, err)
			}
		})
	}
}

func TestAdjustItemStackLifecycle(t *testing.T) {
	for name, svc := range testServices(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if qty, err := svc.AdjustItem(ctx, "camp-1", "p1", "potion", 3, 1000); err != nil || qty != 3 {
				t.Fatalf("add = %d, %v", qty, err)
			}
			if qty, err := svc.AdjustItem(ctx, "camp-1", "p1", "potion", 2, 2000); err != nil || qty != 5 {
				t.Fatalf("stack = %d, %v", qty, err)
			}
			if qty, err := svc.AdjustItem(ctx, "camp-1", "p1", "potion", -5, 3000); err != nil || qty != 0 {
				t.Fatalf("drain = %d, %v", qty, err)
			}

			inv, err := svc.Inventory(ctx, "camp-1", "p1")
			if err != nil {
				t.Fatalf("inventory: %v", err)
			}
			if len(inv) != 0 {
				t.Fatalf("empty stack kept: %+v", inv)
			}
			// Removing from an absent stack is a no-op, not negative.
			if qty, err := svc.AdjustItem(ctx, "camp-1", "p1", "potion", -1, 4000); err != nil || qty != 0 {
				t.Fatalf("underflow = %d, %v", qty, err)
			}
		})
	}
}

func TestEquipRequiresHolding(t *testing.T) {
	for name, svc := range testServices(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := svc.SetEquipped(ctx, "camp-1", "p1", "sword", "mainhand"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("equipped a missing item: %v", err)
			}
			if _, err := svc.AdjustItem(ctx, "camp-1", "p1", "sword", 1, 1000); err != nil {
				t.Fatalf("add: %v", err)
			}
			if err := svc.SetEquipped(ctx, "camp-1", "p1", "sword", "mainhand"); err != nil {
				t.Fatalf("equip: %v", err)
			}
		})
	}
}

func TestFlagsRoundTripTypes(t *testing.T) {
	for name, svc := range testServices(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := svc.SetFlag(ctx, "camp-1", "p1", "met_king", true, 1000); err != nil {
				t.Fatalf("set: %v", err)
			}
			if err := svc.SetFlag(ctx, "camp-1", "p1", "debt", float64(50), 1000); err != nil {
				t.Fatalf("set: %v", err)
			}
			if err := svc.SetFlag(ctx, "camp-1", "p1", "title", "Knight", 1000); err != nil {
				t.Fatalf("set: %v", err)
			}

			flags, err := svc.Flags(ctx, "camp-1", "p1")
			if err != nil {
				t.Fatalf("flags: %v", err)
			}
			if flags["met_king"] != true || flags["debt"] != float64(50) || flags["title"] != "Knight" {
				t.Fatalf("flags = %+v", flags)
			}

			if err := svc.ClearFlag(ctx, "camp-1", "p1", "met_king"); err != nil {
				t.Fatalf("clear: %v", err)
			}
			flags, _ = svc.Flags(ctx, "camp-1", "p1")
			if _, ok := flags["met_king"]; ok {
				t.Fatalf("flag survived clear")
			}
		})
	}
}

func TestAbilitiesReputationVisitsQuests(t *testing.T) {
	for name, svc := range testServices(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if err := svc.GrantAbility(ctx, "camp-1", "p1", "Lockpick", 1000); err != nil {
				t.Fatalf("grant: %v", err)
			}
			if err := svc.GrantAbility(ctx, "camp-1", "p1", "Lockpick", 2000); err != nil {
				t.Fatalf("regrant: %v", err)
			}
			abilities, _ := svc.Abilities(ctx, "camp-1", "p1")
			if !abilities["Lockpick"] || len(abilities) != 1 {
				t.Fatalf("abilities = %+v", abilities)
			}
			_ = svc.RemoveAbility(ctx, "camp-1", "p1", "Lockpick")
			abilities, _ = svc.Abilities(ctx, "camp-1", "p1")
			if len(abilities) != 0 {
				t.Fatalf("ability survived removal")
			}

			rep, err := svc.AdjustReputation(ctx, "camp-1", "p1", "Crown", 30, 1000)
			if err != nil || rep != 30 {
				t.Fatalf("rep = %v, %v", rep, err)
			}
			rep, err = svc.AdjustReputation(ctx, "camp-1", "p1", "Crown", -10, 2000)
			if err != nil || rep != 20 {
				t.Fatalf("rep = %v, %v", rep, err)
			}

			if err := svc.RecordVisit(ctx, "camp-1", "p1", "loc-village", 1000); err != nil {
				t.Fatalf("visit: %v", err)
			}
			if err := svc.RecordVisit(ctx, "camp-1", "p1", "loc-village", 2000); err != nil {
				t.Fatalf("revisit: %v", err)
			}
			visits, _ := svc.Visits(ctx, "camp-1", "p1")
			if !visits["loc-village"] {
				t.Fatalf("visits = %+v", visits)
			}

			if err := svc.SetQuestStatus(ctx, "camp-1", "p1", "Rat Problem", "active"); err != nil {
				t.Fatalf("quest: %v", err)
			}
			if err := svc.SetQuestStatus(ctx, "camp-1", "p1", "Rat Problem", "completed"); err != nil {
				t.Fatalf("quest update: %v", err)
			}
			quests, _ := svc.Quests(ctx, "camp-1", "p1")
			if quests["Rat Problem"] != "completed" {
				t.Fatalf("quests = %+v", quests)
			}
		})
	}
}
