package game

import (
	"context"
	"fmt"
	"time"
)

// SubmitResult reports what a submission did. Duplicate is set when the
// same (actor, action, day) was already recorded; the call still succeeds
// so concurrent retries from one client never surface as failures.
type SubmitResult struct {
	Duplicate    bool
	RevealedRole Role // set for a seer view
}

// SubmitVote records one participant's vote for the day. Valid only in
// the vote phase, from a living voter, against a living target. When the
// vote completes the living roster, resolution runs immediately.
func (e *Engine) SubmitVote(ctx context.Context, sessionID, voterID, targetID string) (SubmitResult, error) {
	session, err := e.store.SessionByID(ctx, sessionID)
	if err != nil {
		return SubmitResult{}, err
	}
	if session.Phase != PhaseVote {
		return SubmitResult{}, ErrWrongPhase
	}
	participants, err := e.store.Participants(ctx, sessionID)
	if err != nil {
		return SubmitResult{}, err
	}
	voter := findParticipant(participants, voterID)
	if voter == nil {
		return SubmitResult{}, ErrNotFound
	}
	if !voter.Alive {
		return SubmitResult{}, ErrNotAlive
	}
	target := findParticipant(participants, targetID)
	if target == nil || !target.Alive {
		return SubmitResult{}, ErrUnknownTarget
	}

	inserted, err := e.store.RecordVote(ctx, &Vote{
		SessionID: sessionID,
		DayNumber: session.DayNumber,
		VoterID:   voterID,
		TargetID:  targetID,
	})
	if err != nil {
		return SubmitResult{}, err
	}
	result := SubmitResult{Duplicate: !inserted}

	votes, err := e.store.Votes(ctx, sessionID, session.DayNumber)
	if err != nil {
		return result, err
	}
	if everyoneVoted(votes, participants) {
		if err := e.resolveVotePhase(ctx, session, participants); err != nil {
			return result, err
		}
	}
	e.notifyChanged(sessionID)
	return result, nil
}

// SubmitNightAction records a role's night action. Validation order:
// phase, aliveness, turn (the actor's role must be the one currently
// awake), role legality, single-use potions; then the idempotent insert.
// Completing the turn-group advances the night pointer reactively.
func (e *Engine) SubmitNightAction(ctx context.Context, sessionID, actorID string, actionType ActionType, targetID string) (SubmitResult, error) {
	session, err := e.store.SessionByID(ctx, sessionID)
	if err != nil {
		return SubmitResult{}, err
	}
	if session.Phase != PhaseNight {
		return SubmitResult{}, ErrWrongPhase
	}
	participants, err := e.store.Participants(ctx, sessionID)
	if err != nil {
		return SubmitResult{}, err
	}
	actor := findParticipant(participants, actorID)
	if actor == nil {
		return SubmitResult{}, ErrNotFound
	}
	if !actor.Alive {
		return SubmitResult{}, ErrNotAlive
	}
	if nightRoleFor(actionType) != session.NightRole {
		return SubmitResult{}, ErrNotYourTurn
	}
	if !ActionAllowed(actor.Role, actionType) {
		return SubmitResult{}, ErrRoleForbids
	}
	if actionType == ActionWitchSave && actor.HealUsed {
		return SubmitResult{}, ErrAbilityUsed
	}
	if actionType == ActionWitchKill && actor.PoisonUsed {
		return SubmitResult{}, ErrAbilityUsed
	}
	if targetID != "" {
		target := findParticipant(participants, targetID)
		if target == nil || !target.Alive {
			return SubmitResult{}, ErrUnknownTarget
		}
	}

	inserted, err := e.store.RecordNightAction(ctx, &NightAction{
		SessionID:  sessionID,
		DayNumber:  session.DayNumber,
		ActorID:    actorID,
		ActionType: actionType,
		TargetID:   targetID,
	})
	if err != nil {
		return SubmitResult{}, err
	}
	result := SubmitResult{Duplicate: !inserted}
	if !inserted {
		return result, nil
	}

	used := true
	switch actionType {
	case ActionWitchSave:
		if err := e.store.UpdateParticipant(ctx, actorID, ParticipantUpdate{HealUsed: &used}); err != nil {
			return result, err
		}
	case ActionWitchKill:
		if err := e.store.UpdateParticipant(ctx, actorID, ParticipantUpdate{PoisonUsed: &used}); err != nil {
			return result, err
		}
	}

	if actionType == ActionSeerView && targetID != "" {
		if target := findParticipant(participants, targetID); target != nil {
			result.RevealedRole = target.Role
		}
		// Leave the pointer on the seer and shorten the clock so the
		// reveal stays on screen; the sweep advances the pointer.
		role := RoleSeer
		deadline := time.Now().UTC().Add(seerRevealDuration)
		_, err = e.store.TransitionSession(ctx, sessionID,
			TransitionFilter{Phase: PhaseNight, NightRole: &role},
			SessionUpdate{Deadline: &deadline})
		if err != nil {
			return result, err
		}
		e.notifyChanged(sessionID)
		return result, nil
	}

	actions, err := e.store.NightActions(ctx, sessionID, session.DayNumber)
	if err != nil {
		return result, err
	}
	if turnGroupComplete(session.NightRole, actions, participants) {
		if err := e.advanceNightRole(ctx, session, participants); err != nil {
			return result, err
		}
	}
	e.notifyChanged(sessionID)
	return result, nil
}

// SubmitLastAct is the dying hunter's final shot. An empty target means
// the hunter declines. A target who also holds the hunter role re-enters
// the hunter phase (chain); the chain is bounded because every link kills
// a distinct living hunter.
func (e *Engine) SubmitLastAct(ctx context.Context, sessionID, actorID, targetID string) (SubmitResult, error) {
	session, err := e.store.SessionByID(ctx, sessionID)
	if err != nil {
		return SubmitResult{}, err
	}
	if session.Phase != PhaseHunter {
		return SubmitResult{}, ErrWrongPhase
	}
	if session.PendingHunterID != actorID {
		return SubmitResult{}, ErrNotYourTurn
	}
	participants, err := e.store.Participants(ctx, sessionID)
	if err != nil {
		return SubmitResult{}, err
	}
	actor := findParticipant(participants, actorID)
	if actor == nil {
		return SubmitResult{}, ErrNotFound
	}
	if actor.Role != RoleHunter {
		return SubmitResult{}, ErrRoleForbids
	}

	if targetID == "" {
		inserted, err := e.store.RecordNightAction(ctx, &NightAction{
			SessionID:  sessionID,
			DayNumber:  session.DayNumber,
			ActorID:    actorID,
			ActionType: ActionHunterSkip,
		})
		if err != nil {
			return SubmitResult{}, err
		}
		if !inserted {
			return SubmitResult{Duplicate: true}, nil
		}
		e.appendEvent(ctx, sessionID, "hunter_skip",
			fmt.Sprintf("%s lowers the rifle without firing.", actor.Name),
			EventPayload{Participant: actorID, Name: actor.Name})
		return SubmitResult{}, e.afterHunter(ctx, session, "")
	}

	target := findParticipant(participants, targetID)
	if target == nil || !target.Alive {
		return SubmitResult{}, ErrUnknownTarget
	}

	inserted, err := e.store.RecordNightAction(ctx, &NightAction{
		SessionID:  sessionID,
		DayNumber:  session.DayNumber,
		ActorID:    actorID,
		ActionType: ActionHunterKill,
		TargetID:   targetID,
	})
	if err != nil {
		return SubmitResult{}, err
	}
	if !inserted {
		return SubmitResult{Duplicate: true}, nil
	}

	dead := false
	if err := e.store.UpdateParticipant(ctx, targetID, ParticipantUpdate{Alive: &dead}); err != nil {
		return SubmitResult{}, err
	}
	e.appendEvent(ctx, sessionID, "hunter_kill",
		fmt.Sprintf("The hunter fires one last time and takes %s along.", target.Name),
		EventPayload{Participant: actorID, TargetID: targetID, TargetName: target.Name})

	if target.Role == RoleHunter {
		// Chain: the victim gets a last shot too. died-at carries over
		// so the game still resumes where the first hunter fell.
		filter := TransitionFilter{Phase: PhaseHunter, PendingHunter: &actorID}
		won, herr := e.transitionToHunter(ctx, session, filter, target, DiedAtNone, participants)
		if herr != nil || !won {
			return SubmitResult{}, herr
		}
		e.appendHunterDeathEvent(ctx, sessionID, target, session.HunterDiedAt)
		e.notifyChanged(sessionID)
		return SubmitResult{}, nil
	}
	return SubmitResult{}, e.afterHunter(ctx, session, target.Name)
}
