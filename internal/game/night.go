package game

// NightResult is the outcome of a resolved night.
type NightResult struct {
	KilledByWolves *Participant
	SavedByWitch   bool
	KilledByWitch  *Participant
	SeerTarget     *Participant
}

// Death pairs a newly-dead participant with the ability that killed them.
type Death struct {
	Participant *Participant
	Cause       ActionType
}

// ResolveNight folds a night's recorded actions into deaths. Wolf kills
// are a plurality vote over targets (ties broken uniformly at random); the
// witch's save cancels the wolf victim only when the targets match; the
// witch's poison kills unconditionally and independently; the seer's view
// kills nobody and is carried only for bookkeeping.
func ResolveNight(actions []*NightAction, participants []*Participant) NightResult {
	var result NightResult
	if len(actions) == 0 {
		return result
	}

	wolfTargets := make([]string, 0, len(actions))
	for _, a := range actions {
		if a.ActionType == ActionWerewolfKill && a.TargetID != "" {
			wolfTargets = append(wolfTargets, a.TargetID)
		}
	}
	victimID, _ := pluralityTarget(countTargets(wolfTargets))
	result.KilledByWolves = findParticipant(participants, victimID)

	for _, a := range actions {
		switch a.ActionType {
		case ActionWitchSave:
			if victimID != "" && a.TargetID == victimID {
				result.SavedByWitch = true
				result.KilledByWolves = nil
			}
		case ActionWitchKill:
			if a.TargetID != "" {
				result.KilledByWitch = findParticipant(participants, a.TargetID)
			}
		case ActionSeerView:
			if a.TargetID != "" {
				result.SeerTarget = findParticipant(participants, a.TargetID)
			}
		}
	}
	return result
}

// Deaths lists the night's victims in resolution order: wolf victim first,
// then the poisoned one. The same participant never appears twice; the
// witch cannot poison the wolves' victim into a double death.
func (r NightResult) Deaths() []Death {
	deaths := make([]Death, 0, 2)
	if r.KilledByWolves != nil {
		deaths = append(deaths, Death{Participant: r.KilledByWolves, Cause: ActionWerewolfKill})
	}
	if r.KilledByWitch != nil {
		if r.KilledByWolves == nil || r.KilledByWitch.ID != r.KilledByWolves.ID {
			deaths = append(deaths, Death{Participant: r.KilledByWitch, Cause: ActionWitchKill})
		}
	}
	return deaths
}

// turnGroupComplete reports whether every living holder of role has a
// recorded action for the day. The witch and the seer are single-holder
// groups; wolves must all act.
func turnGroupComplete(role Role, actions []*NightAction, participants []*Participant) bool {
	holders := aliveWithRole(participants, role)
	if len(holders) == 0 {
		return true
	}
	acted := 0
	for _, a := range actions {
		if nightRoleFor(a.ActionType) == role {
			acted++
		}
	}
	return acted >= len(holders)
}
