package game

import "testing"

func action(actor string, actionType ActionType, target string) *NightAction {
	return &NightAction{SessionID: "s1", DayNumber: 1, ActorID: actor, ActionType: actionType, TargetID: target}
}

func TestResolveNightWolfPlurality(t *testing.T) {
	players := roster(
		living("Ada", RoleWerewolf),
		living("Bob", RoleWerewolf),
		living("Cleo", RoleWerewolf),
		living("Dee", RoleVillager),
		living("Eli", RoleVillager),
	)
	actions := []*NightAction{
		action("Ada", ActionWerewolfKill, "Dee"),
		action("Bob", ActionWerewolfKill, "Dee"),
		action("Cleo", ActionWerewolfKill, "Eli"),
	}
	result := ResolveNight(actions, players)
	if result.KilledByWolves == nil || result.KilledByWolves.ID != "Dee" {
		t.Fatalf("expected Dee killed by plurality, got %#v", result.KilledByWolves)
	}
	deaths := result.Deaths()
	if len(deaths) != 1 || deaths[0].Participant.ID != "Dee" || deaths[0].Cause != ActionWerewolfKill {
		t.Fatalf("unexpected deaths: %#v", deaths)
	}
}

func TestResolveNightWitchSaveCancelsMatchingTargetOnly(t *testing.T) {
	players := roster(
		living("Ada", RoleWerewolf),
		living("Bob", RoleWitch),
		living("Cleo", RoleVillager),
		living("Dee", RoleVillager),
	)

	saved := ResolveNight([]*NightAction{
		action("Ada", ActionWerewolfKill, "Cleo"),
		action("Bob", ActionWitchSave, "Cleo"),
	}, players)
	if !saved.SavedByWitch || saved.KilledByWolves != nil {
		t.Fatalf("matching save must cancel the kill: %#v", saved)
	}
	if len(saved.Deaths()) != 0 {
		t.Fatalf("expected no deaths after the save, got %#v", saved.Deaths())
	}

	missed := ResolveNight([]*NightAction{
		action("Ada", ActionWerewolfKill, "Cleo"),
		action("Bob", ActionWitchSave, "Dee"),
	}, players)
	if missed.SavedByWitch {
		t.Fatal("save on the wrong target must not cancel the kill")
	}
	if missed.KilledByWolves == nil || missed.KilledByWolves.ID != "Cleo" {
		t.Fatalf("expected Cleo still killed, got %#v", missed.KilledByWolves)
	}
}

func TestResolveNightPoisonIsIndependent(t *testing.T) {
	players := roster(
		living("Ada", RoleWerewolf),
		living("Bob", RoleWitch),
		living("Cleo", RoleVillager),
		living("Dee", RoleVillager),
	)
	result := ResolveNight([]*NightAction{
		action("Ada", ActionWerewolfKill, "Cleo"),
		action("Bob", ActionWitchKill, "Dee"),
	}, players)

	deaths := result.Deaths()
	if len(deaths) != 2 {
		t.Fatalf("expected two deaths, got %#v", deaths)
	}
	if deaths[0].Participant.ID != "Cleo" || deaths[1].Participant.ID != "Dee" {
		t.Fatalf("expected wolf victim first then poison victim, got %#v", deaths)
	}
}

func TestResolveNightPoisonOnWolfVictimDedupes(t *testing.T) {
	players := roster(
		living("Ada", RoleWerewolf),
		living("Bob", RoleWitch),
		living("Cleo", RoleVillager),
	)
	result := ResolveNight([]*NightAction{
		action("Ada", ActionWerewolfKill, "Cleo"),
		action("Bob", ActionWitchKill, "Cleo"),
	}, players)
	if deaths := result.Deaths(); len(deaths) != 1 {
		t.Fatalf("same victim must die once, got %#v", deaths)
	}
}

func TestResolveNightWolfTieBreaksRandomly(t *testing.T) {
	players := roster(
		living("Ada", RoleWerewolf),
		living("Bob", RoleWerewolf),
		living("Cleo", RoleVillager),
		living("Dee", RoleVillager),
	)
	actions := []*NightAction{
		action("Ada", ActionWerewolfKill, "Cleo"),
		action("Bob", ActionWerewolfKill, "Dee"),
	}
	chosen := map[string]int{}
	for i := 0; i < 2000; i++ {
		result := ResolveNight(actions, players)
		if result.KilledByWolves == nil {
			t.Fatal("tied wolf vote must still pick a victim")
		}
		chosen[result.KilledByWolves.ID]++
	}
	if chosen["Cleo"] == 0 || chosen["Dee"] == 0 {
		t.Fatalf("wolf tie break is not random: %v", chosen)
	}
}

func TestTurnGroupComplete(t *testing.T) {
	players := roster(
		living("Ada", RoleWerewolf),
		living("Bob", RoleWerewolf),
		living("Cleo", RoleWitch),
		living("Dee", RoleVillager),
	)

	partial := []*NightAction{action("Ada", ActionWerewolfKill, "Dee")}
	if turnGroupComplete(RoleWerewolf, partial, players) {
		t.Fatal("one of two wolves acted; group must be incomplete")
	}
	full := append(partial, action("Bob", ActionWerewolfKill, "Dee"))
	if !turnGroupComplete(RoleWerewolf, full, players) {
		t.Fatal("both wolves acted; group must be complete")
	}
	if !turnGroupComplete(RoleSeer, nil, players) {
		t.Fatal("a role with no living holder is trivially complete")
	}
}
