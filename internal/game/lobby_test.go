package game

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func createLobby(t *testing.T, engine *Engine) *Session {
	t.Helper()
	settings := DefaultSettings()
	settings.NarrationEnabled = false
	session, err := engine.CreateSession(context.Background(), settings)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return session
}

func joinN(t *testing.T, engine *Engine, code string, names ...string) []*Participant {
	t.Helper()
	out := make([]*Participant, 0, len(names))
	for _, name := range names {
		_, p, err := engine.JoinSession(context.Background(), code, name)
		if err != nil {
			t.Fatalf("join %s: %v", name, err)
		}
		out = append(out, p)
	}
	return out
}

func TestCreateSessionCode(t *testing.T) {
	engine, _ := newTestEngine()
	session := createLobby(t, engine)
	if len(session.Code) != JoinCodeLength {
		t.Fatalf("expected a %d character code, got %q", JoinCodeLength, session.Code)
	}
	for _, r := range session.Code {
		if !strings.ContainsRune(JoinCodeCharset, r) {
			t.Fatalf("code %q uses a character outside the charset", session.Code)
		}
	}
	if session.Phase != PhaseLobby {
		t.Fatalf("new session not in lobby, got %q", session.Phase)
	}
}

func TestJoinFirstParticipantBecomesHost(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()
	session := createLobby(t, engine)

	players := joinN(t, engine, session.Code, "Ada", "Bob")
	if !players[0].IsHost {
		t.Fatal("first joiner is not host")
	}
	if players[1].IsHost {
		t.Fatal("second joiner claims host")
	}
	reloaded, err := store.SessionByID(ctx, session.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.HostID != players[0].ID {
		t.Fatalf("session host %q, expected %q", reloaded.HostID, players[0].ID)
	}
}

func TestJoinCodeIsCaseInsensitive(t *testing.T) {
	engine, _ := newTestEngine()
	session := createLobby(t, engine)
	if _, _, err := engine.JoinSession(context.Background(), strings.ToLower(session.Code), "Ada"); err != nil {
		t.Fatalf("lowercase code rejected: %v", err)
	}
}

func TestJoinRejectsFullAndRunningSessions(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()
	session := createLobby(t, engine)

	settings := DefaultSettings()
	settings.MaxPlayers = 2
	if err := store.UpdateSession(ctx, session.ID, SessionUpdate{Settings: &settings}); err != nil {
		t.Fatalf("shrink lobby: %v", err)
	}
	joinN(t, engine, session.Code, "Ada", "Bob")
	if _, _, err := engine.JoinSession(ctx, session.Code, "Cleo"); !errors.Is(err, ErrLobbyFull) {
		t.Fatalf("expected ErrLobbyFull, got %v", err)
	}

	phase := PhaseNight
	if err := store.UpdateSession(ctx, session.ID, SessionUpdate{Phase: &phase}); err != nil {
		t.Fatalf("force phase: %v", err)
	}
	if _, _, err := engine.JoinSession(ctx, session.Code, "Dee"); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestLeaveReassignsHost(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()
	session := createLobby(t, engine)
	players := joinN(t, engine, session.Code, "Ada", "Bob")

	if err := engine.LeaveSession(ctx, session.ID, players[0].ID); err != nil {
		t.Fatalf("host leave: %v", err)
	}
	remaining := mustParticipants(t, store, session.ID)
	if len(remaining) != 1 || !remaining[0].IsHost {
		t.Fatalf("expected the survivor promoted to host, got %#v", remaining)
	}
	if got := mustSession(t, store, session.ID).HostID; got != players[1].ID {
		t.Fatalf("session host %q, expected %q", got, players[1].ID)
	}
}

func TestLeaveLastParticipantDeletesSession(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()
	session := createLobby(t, engine)
	players := joinN(t, engine, session.Code, "Ada")

	if err := engine.LeaveSession(ctx, session.ID, players[0].ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if _, err := store.SessionByID(ctx, session.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected emptied session gone, got %v", err)
	}
}

func TestLeaveOnlyInLobby(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()
	session := createLobby(t, engine)
	players := joinN(t, engine, session.Code, "Ada", "Bob", "Cleo", "Dee", "Eli")

	if err := engine.StartSession(ctx, session.ID, players[0].ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := engine.LeaveSession(ctx, session.ID, players[1].ID); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("expected ErrWrongPhase for a mid-game leave, got %v", err)
	}
	// Mid-game disconnects never shrink the roster.
	if got := len(mustParticipants(t, store, session.ID)); got != 5 {
		t.Fatalf("roster shrank to %d", got)
	}
}

func TestStartSessionChecks(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()
	session := createLobby(t, engine)
	players := joinN(t, engine, session.Code, "Ada", "Bob", "Cleo", "Dee")

	if err := engine.StartSession(ctx, session.ID, players[1].ID); !errors.Is(err, ErrNotHost) {
		t.Fatalf("expected ErrNotHost, got %v", err)
	}
	if err := engine.StartSession(ctx, session.ID, players[0].ID); !errors.Is(err, ErrTooFewPlayers) {
		t.Fatalf("expected ErrTooFewPlayers, got %v", err)
	}
}

func TestStartSessionDealsRolesAndOpensNightOne(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()
	session := createLobby(t, engine)
	players := joinN(t, engine, session.Code, "Ada", "Bob", "Cleo", "Dee", "Eli", "Finn", "Gus")

	if err := engine.StartSession(ctx, session.ID, players[0].ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	reloaded := mustSession(t, store, session.ID)
	if reloaded.Phase != PhaseNightIntro {
		t.Fatalf("expected night_intro, got %q", reloaded.Phase)
	}
	if reloaded.DayNumber != 1 {
		t.Fatalf("expected day 1, got %d", reloaded.DayNumber)
	}
	if reloaded.StoryTheme == "" {
		t.Fatal("no story theme drawn")
	}
	if reloaded.PhaseEndsAt != nil {
		t.Fatal("intro phase must have no clock")
	}

	roles := map[Role]int{}
	for _, p := range mustParticipants(t, store, session.ID) {
		if p.Role == "" {
			t.Fatalf("participant %s has no role", p.ID)
		}
		roles[p.Role]++
	}
	if roles[RoleWerewolf] != 2 || roles[RoleSeer] != 1 || roles[RoleWitch] != 1 || roles[RoleHunter] != 1 {
		t.Fatalf("unexpected role spread for seven players: %v", roles)
	}

	if err := engine.StartSession(ctx, session.ID, players[0].ID); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted on a second start, got %v", err)
	}
}

// staleSessionStore serves one remembered session snapshot in place of
// the live row, standing in for a concurrent writer that finished
// between the caller's read and its phase swap.
type staleSessionStore struct {
	*MemoryStore
	stale      *Session
	roleWrites int
	clearCalls int
}

func (s *staleSessionStore) SessionByID(ctx context.Context, id string) (*Session, error) {
	if s.stale != nil && s.stale.ID == id {
		out := *s.stale
		return &out, nil
	}
	return s.MemoryStore.SessionByID(ctx, id)
}

func (s *staleSessionStore) UpdateParticipant(ctx context.Context, id string, up ParticipantUpdate) error {
	if up.Role != nil {
		s.roleWrites++
	}
	return s.MemoryStore.UpdateParticipant(ctx, id, up)
}

func (s *staleSessionStore) ClearGameData(ctx context.Context, sessionID string) error {
	s.clearCalls++
	return s.MemoryStore.ClearGameData(ctx, sessionID)
}

func TestDuplicateStartKeepsDealtRoles(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()
	session := createLobby(t, engine)
	players := joinN(t, engine, session.Code, "Ada", "Bob", "Cleo", "Dee", "Eli")

	stale := mustSession(t, store, session.ID)
	if err := engine.StartSession(ctx, session.ID, players[0].ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	dealt := map[string]Role{}
	for _, p := range mustParticipants(t, store, session.ID) {
		dealt[p.ID] = p.Role
	}

	racing := &staleSessionStore{MemoryStore: store, stale: stale}
	err := NewEngine(racing, nil, nil).StartSession(ctx, session.ID, players[0].ID)
	if !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted from the losing start, got %v", err)
	}
	if racing.roleWrites != 0 {
		t.Fatalf("losing start wrote %d roles", racing.roleWrites)
	}
	for _, p := range mustParticipants(t, store, session.ID) {
		if p.Role != dealt[p.ID] {
			t.Fatalf("role for %s changed from %q to %q", p.ID, dealt[p.ID], p.Role)
		}
	}
}

func TestDuplicateRestartClearsNothing(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()
	session, _ := seedGame(t, store, PhaseFinished, []seedPlayer{
		living("Ada", RoleWerewolf),
		living("Bob", RoleVillager),
	})

	stale := mustSession(t, store, session.ID)
	if err := engine.RestartSession(ctx, session.ID, "p1"); err != nil {
		t.Fatalf("restart: %v", err)
	}

	racing := &staleSessionStore{MemoryStore: store, stale: stale}
	if err := NewEngine(racing, nil, nil).RestartSession(ctx, session.ID, "p1"); err != nil {
		t.Fatalf("losing restart: %v", err)
	}
	if racing.clearCalls != 0 {
		t.Fatalf("losing restart cleared game data %d times", racing.clearCalls)
	}
}

func TestUpdateSettingsHostOnlyInLobby(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()
	session := createLobby(t, engine)
	players := joinN(t, engine, session.Code, "Ada", "Bob")

	changed := session.Settings
	changed.VoteSeconds = 45
	changed.Roles.Seer = false
	if err := engine.UpdateSettings(ctx, session.ID, players[0].ID, changed); err != nil {
		t.Fatalf("update settings: %v", err)
	}
	reloaded := mustSession(t, store, session.ID)
	if reloaded.Settings.VoteSeconds != 45 || reloaded.Settings.Roles.Seer {
		t.Fatalf("settings not stored: %#v", reloaded.Settings)
	}

	if err := engine.UpdateSettings(ctx, session.ID, players[1].ID, changed); !errors.Is(err, ErrNotHost) {
		t.Fatalf("expected ErrNotHost, got %v", err)
	}
	phase := PhaseNight
	if err := store.UpdateSession(ctx, session.ID, SessionUpdate{Phase: &phase}); err != nil {
		t.Fatalf("force phase: %v", err)
	}
	if err := engine.UpdateSettings(ctx, session.ID, players[0].ID, changed); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

// takenCodeStore rejects the first n creates as join-code clashes.
type takenCodeStore struct {
	*MemoryStore
	clashes int
}

func (s *takenCodeStore) CreateSession(ctx context.Context, sess *Session) error {
	if s.clashes > 0 {
		s.clashes--
		return ErrDuplicateCode
	}
	return s.MemoryStore.CreateSession(ctx, sess)
}

func TestCreateSessionRetriesTakenCodes(t *testing.T) {
	ctx := context.Background()
	store := &takenCodeStore{MemoryStore: NewMemoryStore(), clashes: 3}
	engine := NewEngine(store, nil, nil)

	session, err := engine.CreateSession(ctx, DefaultSettings())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.SessionByCode(ctx, session.Code); err != nil {
		t.Fatalf("created session not reachable by code: %v", err)
	}

	store.clashes = 100
	if _, err := engine.CreateSession(ctx, DefaultSettings()); err == nil {
		t.Fatal("expected create to give up once every code clashes")
	}
}

func TestReadyQuorumStartsVoteEarly(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()
	session, _ := seedGame(t, store, PhaseDay, []seedPlayer{
		living("Ada", RoleVillager),
		living("Bob", RoleWerewolf),
		living("Cleo", RoleVillager),
		{name: "Dee", role: RoleVillager, alive: false},
	})

	for _, id := range []string{"p1", "p2"} {
		if err := engine.SetReady(ctx, session.ID, id); err != nil {
			t.Fatalf("ready %s: %v", id, err)
		}
	}
	if got := mustSession(t, store, session.ID).Phase; got != PhaseDay {
		t.Fatalf("vote started before quorum, phase %q", got)
	}
	// Marking ready twice does not move the count.
	if err := engine.SetReady(ctx, session.ID, "p1"); err != nil {
		t.Fatalf("repeat ready: %v", err)
	}
	if got := mustSession(t, store, session.ID).Phase; got != PhaseDay {
		t.Fatalf("duplicate ready started the vote, phase %q", got)
	}

	if err := engine.SetReady(ctx, session.ID, "p3"); err != nil {
		t.Fatalf("last ready: %v", err)
	}
	if got := mustSession(t, store, session.ID).Phase; got != PhaseVote {
		t.Fatalf("expected vote once all living are ready, got %q", got)
	}
}

func TestRestartReturnsToLobby(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()
	session, _ := seedGame(t, store, PhaseFinished, []seedPlayer{
		living("Ada", RoleWerewolf),
		{name: "Bob", role: RoleVillager, alive: false},
		living("Cleo", RoleWitch),
	})
	winner := WinnerWerewolf
	theme := "a foggy shore"
	if err := store.UpdateSession(ctx, session.ID, SessionUpdate{Winner: &winner, StoryTheme: &theme}); err != nil {
		t.Fatalf("seed finished state: %v", err)
	}
	used := true
	if err := store.UpdateParticipant(ctx, "p3", ParticipantUpdate{HealUsed: &used}); err != nil {
		t.Fatalf("seed potion: %v", err)
	}
	if err := store.AppendEvent(ctx, &Event{SessionID: session.ID, Type: "game_end", Message: "over"}); err != nil {
		t.Fatalf("seed event: %v", err)
	}

	if err := engine.RestartSession(ctx, session.ID, "p1"); err != nil {
		t.Fatalf("restart: %v", err)
	}

	reloaded := mustSession(t, store, session.ID)
	if reloaded.Phase != PhaseLobby || reloaded.DayNumber != 0 || reloaded.Winner != WinnerNone {
		t.Fatalf("restart left state phase=%q day=%d winner=%q", reloaded.Phase, reloaded.DayNumber, reloaded.Winner)
	}
	if reloaded.StoryTheme != "" {
		t.Fatal("story theme survived the restart")
	}
	for _, p := range mustParticipants(t, store, session.ID) {
		if p.Role != "" || !p.Alive || p.HealUsed || p.PoisonUsed {
			t.Fatalf("participant %s not reset: %#v", p.ID, p)
		}
	}
	if _, err := store.LatestEvent(ctx, session.ID, "game_end"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("events survived the restart: %v", err)
	}
}

func TestRestartRequiresFinishedAndHost(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()
	session, _ := seedGame(t, store, PhaseDay, []seedPlayer{
		living("Ada", RoleVillager),
		living("Bob", RoleVillager),
	})
	if err := engine.RestartSession(ctx, session.ID, "p1"); !errors.Is(err, ErrNotFinished) {
		t.Fatalf("expected ErrNotFinished, got %v", err)
	}
	phase := PhaseFinished
	if err := store.UpdateSession(ctx, session.ID, SessionUpdate{Phase: &phase}); err != nil {
		t.Fatalf("force finished: %v", err)
	}
	if err := engine.RestartSession(ctx, session.ID, "p2"); !errors.Is(err, ErrNotHost) {
		t.Fatalf("expected ErrNotHost, got %v", err)
	}
}

func TestDeleteOrphan(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()
	empty := createLobby(t, engine)
	if err := engine.DeleteOrphan(ctx, empty.ID); err != nil {
		t.Fatalf("delete orphan: %v", err)
	}
	if _, err := store.SessionByID(ctx, empty.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("orphan survived: %v", err)
	}

	occupied := createLobby(t, engine)
	joinN(t, engine, occupied.Code, "Ada")
	if err := engine.DeleteOrphan(ctx, occupied.ID); !errors.Is(err, ErrNotEmpty) {
		t.Fatalf("expected ErrNotEmpty, got %v", err)
	}
}
