package game

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"moonhollow/internal/narrator"
)

// Narrator produces flavor text for a session event. Implementations must
// be non-blocking beyond a short bounded wait and must always return a
// usable string.
type Narrator interface {
	Narrate(ctx context.Context, nctx narrator.Context, data narrator.Data) string
}

// Notifier is told after every session mutation so connected clients can
// refresh. It is observational only; the engine never depends on it.
type Notifier interface {
	SessionChanged(sessionID string)
}

// Engine owns every phase transition. It is invoked reactively (when an
// action completes a turn-group) and by the timeout sweep; both paths
// funnel through compare-and-swap transitions on the store, so it holds no
// locks of its own and a transition attempted twice is a no-op the second
// time.
type Engine struct {
	store    Store
	narrator Narrator
	notify   Notifier
}

func NewEngine(store Store, n Narrator, notify Notifier) *Engine {
	return &Engine{store: store, narrator: n, notify: notify}
}

func (e *Engine) notifyChanged(sessionID string) {
	if e.notify != nil {
		e.notify.SessionChanged(sessionID)
	}
}

func (e *Engine) appendEvent(ctx context.Context, sessionID, eventType, message string, payload EventPayload) {
	err := e.store.AppendEvent(ctx, &Event{
		SessionID: sessionID,
		Type:      eventType,
		Message:   message,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		log.Printf("append event failed session_id=%s type=%s error=%v", sessionID, eventType, err)
	}
}

/* Narration-done signals. Both are idempotent: calling them in any other
   phase is a successful no-op, so duplicate "narration finished" calls
   from multiple clients never error. */

// StartNight moves night_intro → night: the first living night role wakes
// and the night clock starts.
func (e *Engine) StartNight(ctx context.Context, sessionID string) error {
	session, err := e.store.SessionByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Phase != PhaseNightIntro {
		return nil
	}
	participants, err := e.store.Participants(ctx, sessionID)
	if err != nil {
		return err
	}

	first := firstNightRole(participants)
	phase := PhaseNight
	deadline := Deadline(session.Settings, PhaseNight, time.Now().UTC())
	narration := narrator.Fallback(narrator.ContextNightRole, narrator.Data{CurrentRole: string(first)})

	won, err := e.store.TransitionSession(ctx, sessionID, TransitionFilter{Phase: PhaseNightIntro}, SessionUpdate{
		Phase:         &phase,
		Deadline:      deadline,
		NightRole:     &first,
		NarrationText: &narration,
	})
	if err != nil || !won {
		return err
	}
	e.appendEvent(ctx, sessionID, "night_start",
		fmt.Sprintf("Night %d - The creatures of the night awaken.", session.DayNumber),
		EventPayload{DayNumber: session.DayNumber})
	e.notifyChanged(sessionID)
	return nil
}

// StartDay moves day_intro → day and starts the discussion clock.
func (e *Engine) StartDay(ctx context.Context, sessionID string) error {
	session, err := e.store.SessionByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Phase != PhaseDayIntro {
		return nil
	}

	phase := PhaseDay
	deadline := Deadline(session.Settings, PhaseDay, time.Now().UTC())
	narration := ""
	won, err := e.store.TransitionSession(ctx, sessionID, TransitionFilter{Phase: PhaseDayIntro}, SessionUpdate{
		Phase:         &phase,
		Deadline:      deadline,
		NarrationText: &narration,
	})
	if err != nil || !won {
		return err
	}
	e.appendEvent(ctx, sessionID, "day_start",
		fmt.Sprintf("Day %d - The village debates. Who will be eliminated?", session.DayNumber),
		EventPayload{DayNumber: session.DayNumber})
	e.notifyChanged(sessionID)
	return nil
}

/* Night pointer. */

// advanceNightRole moves the pointer past the current role. When the wake
// order is exhausted the night resolves.
func (e *Engine) advanceNightRole(ctx context.Context, session *Session, participants []*Participant) error {
	next := nextNightRole(session.NightRole, participants)
	if next == "" {
		return e.resolveNightPhase(ctx, session, participants)
	}

	current := session.NightRole
	deadline := Deadline(session.Settings, PhaseNight, time.Now().UTC())
	narration := narrator.Fallback(narrator.ContextNightRole, narrator.Data{CurrentRole: string(next)})
	won, err := e.store.TransitionSession(ctx, session.ID,
		TransitionFilter{Phase: PhaseNight, NightRole: &current},
		SessionUpdate{NightRole: &next, Deadline: deadline, NarrationText: &narration})
	if err != nil || !won {
		return err
	}
	e.appendEvent(ctx, session.ID, "night_role_wake", narration, EventPayload{Role: string(next)})
	e.notifyChanged(session.ID)
	return nil
}

// resolveNightPhase ends the night: deaths are decided, victory is
// checked, and the game moves to day_intro, hunter, or finished. The
// destination is computed first and claimed with a compare-and-swap;
// only the winner of the swap applies deaths and events, so a racing
// reactive trigger and sweep cannot kill twice or disagree on a random
// tie-break.
func (e *Engine) resolveNightPhase(ctx context.Context, session *Session, participants []*Participant) error {
	actions, err := e.store.NightActions(ctx, session.ID, session.DayNumber)
	if err != nil {
		return err
	}
	result := ResolveNight(actions, participants)
	deaths := result.Deaths()

	// Evaluate victory against the post-death roster without touching the
	// store yet.
	deadIDs := make(map[string]bool, len(deaths))
	for _, d := range deaths {
		deadIDs[d.Participant.ID] = true
	}
	after := make([]*Participant, 0, len(participants))
	for _, p := range participants {
		c := *p
		if deadIDs[p.ID] {
			c.Alive = false
		}
		after = append(after, &c)
	}
	winner := EvaluateVictory(after)

	var hunterDead *Participant
	for _, d := range deaths {
		if d.Participant.Role == RoleHunter {
			hunterDead = d.Participant
			break
		}
	}

	victimNames := make([]string, 0, len(deaths))
	deadInfo := make([]DeadParticipant, 0, len(deaths))
	for _, d := range deaths {
		victimNames = append(victimNames, fmt.Sprintf("%s (%s)", d.Participant.Name, d.Participant.Role))
		deadInfo = append(deadInfo, DeadParticipant{
			ID:   d.Participant.ID,
			Name: d.Participant.Name,
			Role: string(d.Participant.Role),
		})
	}

	current := session.NightRole
	filter := TransitionFilter{Phase: PhaseNight, NightRole: &current}
	none := Role("")
	var won bool

	switch {
	case winner != WinnerNone:
		won, err = e.transitionToFinished(ctx, session, filter, winner, after)
	case hunterDead != nil:
		won, err = e.transitionToHunter(ctx, session, filter, hunterDead, DiedAtNight, after)
	default:
		data := e.narrationData(ctx, session, after)
		data.VictimNames = victimNames
		narration := e.narrate(ctx, session, narrator.ContextDayIntro, data)
		phase := PhaseDayIntro
		won, err = e.store.TransitionSession(ctx, session.ID, filter, SessionUpdate{
			Phase:         &phase,
			ClearDeadline: true,
			NightRole:     &none,
			NarrationText: &narration,
		})
	}
	if err != nil || !won {
		return err
	}

	dead := false
	for _, d := range deaths {
		if uerr := e.store.UpdateParticipant(ctx, d.Participant.ID, ParticipantUpdate{Alive: &dead}); uerr != nil {
			return uerr
		}
	}
	e.appendEvent(ctx, session.ID, "night_end", nightDeathMessage(deaths), EventPayload{
		DayNumber: session.DayNumber,
		Dead:      deadInfo,
	})
	if winner != WinnerNone {
		e.appendEvent(ctx, session.ID, "game_end", victoryMessage(winner), EventPayload{Winner: string(winner)})
	}
	if winner == WinnerNone && hunterDead != nil {
		e.appendHunterDeathEvent(ctx, session.ID, hunterDead, DiedAtNight)
	}
	e.notifyChanged(session.ID)
	return nil
}

func nightDeathMessage(deaths []Death) string {
	if len(deaths) == 0 {
		return "The village wakes. Nobody died tonight."
	}
	names := make([]string, 0, len(deaths))
	for _, d := range deaths {
		names = append(names, d.Participant.Name)
	}
	if len(names) == 1 {
		return fmt.Sprintf("The village wakes. %s was found dead this morning.", names[0])
	}
	return fmt.Sprintf("The village wakes. %s were found dead this morning.", strings.Join(names, " and "))
}

/* Day and vote. */

// transitionToVotePhase moves day → vote, from the clock or from all
// living participants marking ready.
func (e *Engine) transitionToVotePhase(ctx context.Context, session *Session, reason string) error {
	participants, err := e.store.Participants(ctx, session.ID)
	if err != nil {
		return err
	}
	data := e.narrationData(ctx, session, participants)
	narration := e.narrate(ctx, session, narrator.ContextVoteStart, data)

	phase := PhaseVote
	deadline := Deadline(session.Settings, PhaseVote, time.Now().UTC())
	won, err := e.store.TransitionSession(ctx, session.ID, TransitionFilter{Phase: PhaseDay}, SessionUpdate{
		Phase:         &phase,
		Deadline:      deadline,
		NarrationText: &narration,
	})
	if err != nil || !won {
		return err
	}
	e.appendEvent(ctx, session.ID, "vote_start",
		"The time to vote has come. Choose who to eliminate.",
		EventPayload{DayNumber: session.DayNumber, Reason: reason})
	e.notifyChanged(session.ID)
	return nil
}

// resolveVotePhase tallies the day's votes and moves vote → vote_result.
// A tie still eliminates: a uniformly random tied candidate dies and the
// result is flagged as a tie for narration only. Elimination happens here;
// the hunter check and victory evaluation wait for the vote_result display
// window to elapse.
func (e *Engine) resolveVotePhase(ctx context.Context, session *Session, participants []*Participant) error {
	votes, err := e.store.Votes(ctx, session.ID, session.DayNumber)
	if err != nil {
		return err
	}
	result := ResolveVotes(votes, participants)

	data := e.narrationData(ctx, session, participants)
	var message string
	payload := EventPayload{DayNumber: session.DayNumber, IsTie: result.IsTie}
	if result.Eliminated != nil {
		data.VictimName = result.Eliminated.Name
		data.VictimRole = string(result.Eliminated.Role)
		data.IsTie = result.IsTie
		payload.Eliminated = result.Eliminated.ID
		if result.IsTie {
			message = fmt.Sprintf("The vote was tied. Fate chose %s.", result.Eliminated.Name)
		} else {
			message = fmt.Sprintf("%s has been eliminated by the village.", result.Eliminated.Name)
		}
	} else {
		message = "No votes were cast. Nobody is eliminated."
	}
	narration := e.narrate(ctx, session, narrator.ContextVoteResult, data)

	phase := PhaseVoteResult
	deadline := Deadline(session.Settings, PhaseVoteResult, time.Now().UTC())
	won, err := e.store.TransitionSession(ctx, session.ID, TransitionFilter{Phase: PhaseVote}, SessionUpdate{
		Phase:         &phase,
		Deadline:      deadline,
		NarrationText: &narration,
	})
	if err != nil || !won {
		return err
	}
	if result.Eliminated != nil {
		dead := false
		if uerr := e.store.UpdateParticipant(ctx, result.Eliminated.ID, ParticipantUpdate{Alive: &dead}); uerr != nil {
			return uerr
		}
	}
	e.appendEvent(ctx, session.ID, "vote_result", message, payload)
	e.notifyChanged(session.ID)
	return nil
}

// leaveVoteResult runs when the vote_result display window elapses. The
// latest vote_result event tells it who died; this is the one sanctioned
// read-back from the event log.
func (e *Engine) leaveVoteResult(ctx context.Context, session *Session) error {
	participants, err := e.store.Participants(ctx, session.ID)
	if err != nil {
		return err
	}
	var eliminated *Participant
	if event, eerr := e.store.LatestEvent(ctx, session.ID, "vote_result"); eerr == nil {
		eliminated = findParticipant(participants, event.Payload.Eliminated)
	}

	filter := TransitionFilter{Phase: PhaseVoteResult}
	if eliminated != nil && eliminated.Role == RoleHunter {
		won, herr := e.transitionToHunter(ctx, session, filter, eliminated, DiedAtVote, participants)
		if herr != nil || !won {
			return herr
		}
		e.appendHunterDeathEvent(ctx, session.ID, eliminated, DiedAtVote)
		e.notifyChanged(session.ID)
		return nil
	}

	if winner := EvaluateVictory(participants); winner != WinnerNone {
		return e.finishGame(ctx, session, filter, winner, participants)
	}
	return e.transitionToNightIntro(ctx, session, filter, participants)
}

/* Hunter (last act). */

// transitionToHunter claims the swap into the hunter phase. diedAt is
// empty for chain shots, preserving where the first hunter died.
func (e *Engine) transitionToHunter(ctx context.Context, session *Session, filter TransitionFilter, hunter *Participant, diedAt DiedAt, roster []*Participant) (bool, error) {
	data := e.narrationData(ctx, session, roster)
	data.VictimName = hunter.Name
	narration := e.narrate(ctx, session, narrator.ContextHunterDeath, data)

	phase := PhaseHunter
	deadline := Deadline(session.Settings, PhaseHunter, time.Now().UTC())
	none := Role("")
	up := SessionUpdate{
		Phase:           &phase,
		Deadline:        deadline,
		NightRole:       &none,
		PendingHunterID: &hunter.ID,
		NarrationText:   &narration,
	}
	if diedAt != DiedAtNone {
		up.HunterDiedAt = &diedAt
	}
	return e.store.TransitionSession(ctx, session.ID, filter, up)
}

func (e *Engine) appendHunterDeathEvent(ctx context.Context, sessionID string, hunter *Participant, diedAt DiedAt) {
	e.appendEvent(ctx, sessionID, "hunter_death",
		fmt.Sprintf("%s was the hunter! One last shot remains.", hunter.Name),
		EventPayload{Participant: hunter.ID, Name: hunter.Name, Reason: string(diedAt)})
}

// afterHunter resumes the game once the hunter has shot or declined,
// returning to day_intro or night_intro depending on where the hunter
// died, unless the shot ended the game.
func (e *Engine) afterHunter(ctx context.Context, session *Session, victimName string) error {
	participants, err := e.store.Participants(ctx, session.ID)
	if err != nil {
		return err
	}
	filter := TransitionFilter{Phase: PhaseHunter, PendingHunter: &session.PendingHunterID}

	if winner := EvaluateVictory(participants); winner != WinnerNone {
		return e.finishGame(ctx, session, filter, winner, participants)
	}

	if session.HunterDiedAt == DiedAtNight {
		data := e.narrationData(ctx, session, participants)
		if victimName != "" {
			data.VictimNames = []string{victimName}
		}
		narration := e.narrate(ctx, session, narrator.ContextDayIntro, data)
		phase := PhaseDayIntro
		nobody := ""
		noDied := DiedAtNone
		won, terr := e.store.TransitionSession(ctx, session.ID, filter, SessionUpdate{
			Phase:           &phase,
			ClearDeadline:   true,
			PendingHunterID: &nobody,
			HunterDiedAt:    &noDied,
			NarrationText:   &narration,
		})
		if terr != nil || !won {
			return terr
		}
		e.appendEvent(ctx, session.ID, "day_intro",
			fmt.Sprintf("Day %d - The sun rises after the hunter's shot.", session.DayNumber),
			EventPayload{DayNumber: session.DayNumber})
		e.notifyChanged(session.ID)
		return nil
	}
	return e.transitionToNightIntro(ctx, session, filter, participants)
}

/* Shared destinations. */

// transitionToNightIntro starts the next night: day counter up, clocks
// cleared, hunter state cleared.
func (e *Engine) transitionToNightIntro(ctx context.Context, session *Session, filter TransitionFilter, participants []*Participant) error {
	newDay := session.DayNumber + 1
	data := e.narrationData(ctx, session, participants)
	data.DayNumber = newDay
	data.IsFirstNight = newDay == 1
	narration := e.narrate(ctx, session, narrator.ContextNightIntro, data)

	phase := PhaseNightIntro
	none := Role("")
	nobody := ""
	noDied := DiedAtNone
	won, err := e.store.TransitionSession(ctx, session.ID, filter, SessionUpdate{
		Phase:           &phase,
		DayNumber:       &newDay,
		ClearDeadline:   true,
		NightRole:       &none,
		PendingHunterID: &nobody,
		HunterDiedAt:    &noDied,
		NarrationText:   &narration,
	})
	if err != nil || !won {
		return err
	}
	e.appendEvent(ctx, session.ID, "night_intro",
		fmt.Sprintf("Night %d - The village falls asleep.", newDay),
		EventPayload{DayNumber: newDay})
	e.notifyChanged(session.ID)
	return nil
}

// transitionToFinished claims the swap into finished; the caller appends
// its own events.
func (e *Engine) transitionToFinished(ctx context.Context, session *Session, filter TransitionFilter, winner Winner, roster []*Participant) (bool, error) {
	data := e.narrationData(ctx, session, roster)
	data.Winner = string(winner)
	narration := e.narrate(ctx, session, narrator.ContextGameEnd, data)

	phase := PhaseFinished
	none := Role("")
	nobody := ""
	noDied := DiedAtNone
	return e.store.TransitionSession(ctx, session.ID, filter, SessionUpdate{
		Phase:           &phase,
		Winner:          &winner,
		ClearDeadline:   true,
		NightRole:       &none,
		PendingHunterID: &nobody,
		HunterDiedAt:    &noDied,
		NarrationText:   &narration,
	})
}

func (e *Engine) finishGame(ctx context.Context, session *Session, filter TransitionFilter, winner Winner, roster []*Participant) error {
	won, err := e.transitionToFinished(ctx, session, filter, winner, roster)
	if err != nil || !won {
		return err
	}
	e.appendEvent(ctx, session.ID, "game_end", victoryMessage(winner), EventPayload{Winner: string(winner)})
	e.notifyChanged(session.ID)
	return nil
}
