package game

import (
	"context"
	"log"
	"math/rand/v2"
	"time"
)

// SweepAll advances every session whose phase deadline has elapsed. It is
// driven by a ticker in the server process; running it from several
// processes at once is safe because every transition it triggers goes
// through the same compare-and-swap guards as the reactive path.
func (e *Engine) SweepAll(ctx context.Context) {
	expired, err := e.store.ExpiredSessions(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("sweep: expired session lookup failed error=%v", err)
		return
	}
	for _, session := range expired {
		if err := e.sweepSession(ctx, session); err != nil {
			log.Printf("sweep failed session_id=%s phase=%s error=%v", session.ID, session.Phase, err)
		}
	}
}

// Sweep checks one session's clock and advances it if expired. Exposed so
// a client poll can force the check without waiting for the next tick.
func (e *Engine) Sweep(ctx context.Context, sessionID string) error {
	session, err := e.store.SessionByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.PhaseEndsAt == nil || time.Now().UTC().Before(*session.PhaseEndsAt) {
		return nil
	}
	return e.sweepSession(ctx, session)
}

func (e *Engine) sweepSession(ctx context.Context, session *Session) error {
	participants, err := e.store.Participants(ctx, session.ID)
	if err != nil {
		return err
	}
	switch session.Phase {
	case PhaseNight:
		if err := e.fillNightActions(ctx, session, participants); err != nil {
			return err
		}
		return e.advanceNightRole(ctx, session, participants)
	case PhaseDay:
		return e.transitionToVotePhase(ctx, session, "timeout")
	case PhaseVote:
		return e.resolveVotePhase(ctx, session, participants)
	case PhaseVoteResult:
		return e.leaveVoteResult(ctx, session)
	case PhaseHunter:
		return e.sweepHunter(ctx, session, participants)
	}
	// Lobby, intro and finished phases carry no deadline.
	return nil
}

// fillNightActions records a default action for every living holder of the
// current night role who has not acted, so the turn-group is complete and
// the pointer can advance. The inserts are insert-or-ignore: a player
// racing the sweep keeps their own action.
func (e *Engine) fillNightActions(ctx context.Context, session *Session, participants []*Participant) error {
	actions, err := e.store.NightActions(ctx, session.ID, session.DayNumber)
	if err != nil {
		return err
	}
	acted := make(map[string]bool, len(actions))
	for _, a := range actions {
		if nightRoleFor(a.ActionType) == session.NightRole {
			acted[a.ActorID] = true
		}
	}

	for _, p := range aliveWithRole(participants, session.NightRole) {
		if acted[p.ID] {
			continue
		}
		fill := e.defaultNightAction(session, p, actions, participants)
		if _, err := e.store.RecordNightAction(ctx, &fill); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) defaultNightAction(session *Session, actor *Participant, actions []*NightAction, participants []*Participant) NightAction {
	fill := NightAction{
		SessionID: session.ID,
		DayNumber: session.DayNumber,
		ActorID:   actor.ID,
	}
	switch session.NightRole {
	case RoleSeer:
		if target := randomTarget(participants, func(p *Participant) bool { return p.ID != actor.ID }); target != "" {
			fill.ActionType = ActionSeerView
			fill.TargetID = target
		} else {
			fill.ActionType = ActionSeerSkip
		}
	case RoleWerewolf:
		fill.ActionType = ActionWerewolfKill
		fill.TargetID = wolfConsensusTarget(actions, participants)
	default:
		fill.ActionType = ActionWitchSkip
	}
	return fill
}

// wolfConsensusTarget joins a timed-out wolf to the pack's existing pick
// when one exists, otherwise picks a random living non-wolf.
func wolfConsensusTarget(actions []*NightAction, participants []*Participant) string {
	targets := make([]string, 0, len(actions))
	for _, a := range actions {
		if a.ActionType == ActionWerewolfKill && a.TargetID != "" {
			targets = append(targets, a.TargetID)
		}
	}
	if len(targets) > 0 {
		target, _ := pluralityTarget(countTargets(targets))
		if target != "" {
			return target
		}
	}
	return randomTarget(participants, func(p *Participant) bool { return p.Role != RoleWerewolf })
}

func randomTarget(participants []*Participant, keep func(*Participant) bool) string {
	pool := make([]string, 0, len(participants))
	for _, p := range alive(participants) {
		if keep(p) {
			pool = append(pool, p.ID)
		}
	}
	if len(pool) == 0 {
		return ""
	}
	return pool[rand.IntN(len(pool))]
}

// sweepHunter forfeits the pending hunter's shot after the window elapses.
func (e *Engine) sweepHunter(ctx context.Context, session *Session, participants []*Participant) error {
	hunter := findParticipant(participants, session.PendingHunterID)
	name := "The hunter"
	if hunter != nil {
		name = hunter.Name
	}
	// A shot or skip submitted just before the sweep already settled the
	// last act; recording a timeout on top would narrate a skip that
	// never happened.
	actions, err := e.store.NightActions(ctx, session.ID, session.DayNumber)
	if err != nil {
		return err
	}
	for _, a := range actions {
		if a.ActorID != session.PendingHunterID {
			continue
		}
		if a.ActionType == ActionHunterKill || a.ActionType == ActionHunterSkip {
			return e.afterHunter(ctx, session, "")
		}
	}
	skip := NightAction{
		SessionID:  session.ID,
		DayNumber:  session.DayNumber,
		ActorID:    session.PendingHunterID,
		ActionType: ActionHunterSkip,
	}
	inserted, err := e.store.RecordNightAction(ctx, &skip)
	if err != nil {
		return err
	}
	if inserted {
		e.appendEvent(ctx, session.ID, "hunter_timeout",
			name+" lowers the rifle without firing.",
			EventPayload{Participant: session.PendingHunterID, Name: name})
	}
	return e.afterHunter(ctx, session, "")
}
