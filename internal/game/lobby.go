package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"moonhollow/internal/narrator"
)

func newJoinCode() string {
	var b strings.Builder
	for i := 0; i < JoinCodeLength; i++ {
		b.WriteByte(JoinCodeCharset[rand.IntN(len(JoinCodeCharset))])
	}
	return b.String()
}

// CreateSession opens an empty lobby with a fresh, unique join code.
func (e *Engine) CreateSession(ctx context.Context, settings Settings) (*Session, error) {
	// Uniqueness rides on the code column's constraint: insert and retry
	// on a clash rather than pre-checking, which would race.
	const maxAttempts = 10
	for attempt := 0; ; attempt++ {
		session := &Session{
			ID:        uuid.NewString(),
			Code:      newJoinCode(),
			Phase:     PhaseLobby,
			Settings:  settings,
			CreatedAt: time.Now().UTC(),
		}
		err := e.store.CreateSession(ctx, session)
		if err == nil {
			e.appendEvent(ctx, session.ID, "session_created", "A new village gathers.", EventPayload{})
			return session, nil
		}
		if !errors.Is(err, ErrDuplicateCode) {
			return nil, err
		}
		if attempt+1 >= maxAttempts {
			return nil, fmt.Errorf("could not generate a unique join code")
		}
	}
}

// UpdateSettings replaces a lobby's settings. Only the host may change
// them, and only before the game starts.
func (e *Engine) UpdateSettings(ctx context.Context, sessionID, hostID string, settings Settings) error {
	session, err := e.store.SessionByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Phase != PhaseLobby {
		return ErrAlreadyStarted
	}
	host, err := e.store.ParticipantByID(ctx, hostID)
	if err != nil {
		return err
	}
	if host.SessionID != sessionID || !host.IsHost {
		return ErrNotHost
	}
	if err := e.store.UpdateSession(ctx, sessionID, SessionUpdate{Settings: &settings}); err != nil {
		return err
	}
	e.notifyChanged(sessionID)
	return nil
}

// JoinSession adds a participant to a lobby by join code. The first
// joiner becomes host.
func (e *Engine) JoinSession(ctx context.Context, code, name string) (*Session, *Participant, error) {
	session, err := e.store.SessionByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, nil, err
	}
	if session.Phase != PhaseLobby {
		return nil, nil, ErrAlreadyStarted
	}
	participants, err := e.store.Participants(ctx, session.ID)
	if err != nil {
		return nil, nil, err
	}
	limit := session.Settings.MaxPlayers
	if limit <= 0 || limit > MaxPlayers {
		limit = MaxPlayers
	}
	if len(participants) >= limit {
		return nil, nil, ErrLobbyFull
	}

	participant := &Participant{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Name:      strings.TrimSpace(name),
		Alive:     true,
		IsHost:    len(participants) == 0,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.store.CreateParticipant(ctx, participant); err != nil {
		return nil, nil, err
	}
	if participant.IsHost {
		if err := e.store.UpdateSession(ctx, session.ID, SessionUpdate{HostID: &participant.ID}); err != nil {
			return nil, nil, err
		}
		session.HostID = participant.ID
	}
	e.appendEvent(ctx, session.ID, "participant_joined",
		fmt.Sprintf("%s joins the village.", participant.Name),
		EventPayload{Participant: participant.ID, Name: participant.Name})
	e.notifyChanged(session.ID)
	return session, participant, nil
}

// LeaveSession removes a participant, lobby only. An emptied session is
// deleted; a departed host is replaced by a uniformly random remaining
// participant (the roster's creation order makes the single-candidate
// case deterministic).
func (e *Engine) LeaveSession(ctx context.Context, sessionID, participantID string) error {
	session, err := e.store.SessionByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Phase != PhaseLobby {
		return ErrWrongPhase
	}
	leaving, err := e.store.ParticipantByID(ctx, participantID)
	if err != nil {
		return err
	}
	if leaving.SessionID != sessionID {
		return ErrNotFound
	}

	if leaving.IsHost {
		nobody := ""
		if err := e.store.UpdateSession(ctx, sessionID, SessionUpdate{HostID: &nobody}); err != nil {
			return err
		}
	}
	if err := e.store.DeleteParticipant(ctx, participantID); err != nil {
		return err
	}

	remaining, err := e.store.Participants(ctx, sessionID)
	if err != nil {
		return err
	}
	if len(remaining) == 0 {
		return e.store.DeleteSession(ctx, sessionID)
	}
	if leaving.IsHost {
		next := remaining[rand.IntN(len(remaining))]
		isHost := true
		if err := e.store.UpdateParticipant(ctx, next.ID, ParticipantUpdate{IsHost: &isHost}); err != nil {
			return err
		}
		if err := e.store.UpdateSession(ctx, sessionID, SessionUpdate{HostID: &next.ID}); err != nil {
			return err
		}
		e.appendEvent(ctx, sessionID, "host_changed",
			fmt.Sprintf("%s now hosts the village.", next.Name),
			EventPayload{Participant: next.ID, Name: next.Name})
	}
	e.notifyChanged(sessionID)
	return nil
}

// SetReady marks a living participant ready during the day. When every
// living participant is ready, the vote starts ahead of the clock.
func (e *Engine) SetReady(ctx context.Context, sessionID, participantID string) error {
	session, err := e.store.SessionByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Phase != PhaseDay {
		return ErrWrongPhase
	}
	participants, err := e.store.Participants(ctx, sessionID)
	if err != nil {
		return err
	}
	participant := findParticipant(participants, participantID)
	if participant == nil {
		return ErrNotFound
	}
	if !participant.Alive {
		return ErrNotAlive
	}

	// Duplicate marks are absorbed by the unique key.
	if _, err := e.store.RecordReady(ctx, &ReadyMark{
		SessionID:     sessionID,
		DayNumber:     session.DayNumber,
		ParticipantID: participantID,
	}); err != nil {
		return err
	}

	ready, err := e.store.CountReady(ctx, sessionID, session.DayNumber)
	if err != nil {
		return err
	}
	if ready >= len(alive(participants)) {
		return e.transitionToVotePhase(ctx, session, "all_ready")
	}
	e.notifyChanged(sessionID)
	return nil
}

// StartSession begins the game: host only, at least five participants.
// Roles are dealt, a story theme is drawn, and the session enters the
// untimed night_intro narration phase for night one.
func (e *Engine) StartSession(ctx context.Context, sessionID, hostID string) error {
	session, err := e.store.SessionByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Phase != PhaseLobby {
		return ErrAlreadyStarted
	}
	participants, err := e.store.Participants(ctx, sessionID)
	if err != nil {
		return err
	}
	host := findParticipant(participants, hostID)
	if host == nil || !host.IsHost {
		return ErrNotHost
	}
	if len(participants) < MinPlayers {
		return ErrTooFewPlayers
	}

	theme := narrator.RandomTheme()
	session.StoryTheme = theme
	data := e.narrationData(ctx, session, participants)
	data.DayNumber = 1
	data.IsFirstNight = true
	narration := e.narrate(ctx, session, narrator.ContextNightIntro, data)

	// Claim the lobby exit before touching any participant: only the
	// winner of the swap deals roles, so a racing duplicate start can
	// never re-deal a game that already began.
	phase := PhaseNightIntro
	day := 1
	won, err := e.store.TransitionSession(ctx, sessionID, TransitionFilter{Phase: PhaseLobby}, SessionUpdate{
		Phase:         &phase,
		DayNumber:     &day,
		ClearDeadline: true,
		NarrationText: &narration,
		StoryTheme:    &theme,
	})
	if err != nil {
		return err
	}
	if !won {
		return ErrAlreadyStarted
	}

	roles := RolesFor(len(participants), session.Settings)
	assigned := AssignRoles(participants, roles)
	for id, role := range assigned {
		r := role
		if err := e.store.UpdateParticipant(ctx, id, ParticipantUpdate{Role: &r}); err != nil {
			return err
		}
	}

	e.appendEvent(ctx, sessionID, "game_start",
		"The game begins. Night falls on the village.",
		EventPayload{PlayerCount: len(participants)})
	e.notifyChanged(sessionID)
	return nil
}

// RestartSession returns a finished game to the lobby: all action, vote,
// ready and event records are dropped, roles and potions reset, and the
// story theme evicted.
func (e *Engine) RestartSession(ctx context.Context, sessionID, hostID string) error {
	session, err := e.store.SessionByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Phase != PhaseFinished {
		return ErrNotFinished
	}
	host, err := e.store.ParticipantByID(ctx, hostID)
	if err != nil {
		return err
	}
	if host.SessionID != sessionID || !host.IsHost {
		return ErrNotHost
	}

	// Win the finished-to-lobby swap before wiping anything, so two
	// concurrent restarts only clear the game data once.
	phase := PhaseLobby
	day := 0
	winner := WinnerNone
	none := Role("")
	nobody := ""
	noDied := DiedAtNone
	empty := ""
	won, err := e.store.TransitionSession(ctx, sessionID, TransitionFilter{Phase: PhaseFinished}, SessionUpdate{
		Phase:           &phase,
		DayNumber:       &day,
		Winner:          &winner,
		ClearDeadline:   true,
		NightRole:       &none,
		PendingHunterID: &nobody,
		HunterDiedAt:    &noDied,
		NarrationText:   &empty,
		StoryTheme:      &empty,
	})
	if err != nil || !won {
		return err
	}

	if err := e.store.ClearGameData(ctx, sessionID); err != nil {
		return err
	}
	participants, err := e.store.Participants(ctx, sessionID)
	if err != nil {
		return err
	}
	noRole := Role("")
	aliveAgain := true
	unused := false
	for _, p := range participants {
		err := e.store.UpdateParticipant(ctx, p.ID, ParticipantUpdate{
			Role:       &noRole,
			Alive:      &aliveAgain,
			HealUsed:   &unused,
			PoisonUsed: &unused,
		})
		if err != nil {
			return err
		}
	}
	e.notifyChanged(sessionID)
	return nil
}

// DeleteOrphan removes a lobby session nobody ever joined.
func (e *Engine) DeleteOrphan(ctx context.Context, sessionID string) error {
	session, err := e.store.SessionByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Phase != PhaseLobby {
		return ErrWrongPhase
	}
	participants, err := e.store.Participants(ctx, sessionID)
	if err != nil {
		return err
	}
	if len(participants) > 0 {
		return ErrNotEmpty
	}
	return e.store.DeleteSession(ctx, sessionID)
}
