package game

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func newTestEngine() (*Engine, *MemoryStore) {
	store := NewMemoryStore()
	return NewEngine(store, nil, nil), store
}

type seedPlayer struct {
	name  string
	role  Role
	alive bool
}

func living(name string, role Role) seedPlayer {
	return seedPlayer{name: name, role: role, alive: true}
}

// seedGame plants a session mid-game with a fixed roster, bypassing the
// lobby. Participant ids are p1, p2, ... in roster order.
func seedGame(t *testing.T, store *MemoryStore, phase Phase, players []seedPlayer) (*Session, []*Participant) {
	t.Helper()
	ctx := context.Background()
	settings := DefaultSettings()
	settings.NarrationEnabled = false

	session := &Session{
		ID:        "s1",
		Code:      "WOLFED",
		Phase:     phase,
		DayNumber: 1,
		Settings:  settings,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	base := time.Now().UTC()
	for i, p := range players {
		participant := &Participant{
			ID:        fmt.Sprintf("p%d", i+1),
			SessionID: session.ID,
			Name:      p.name,
			Role:      p.role,
			Alive:     p.alive,
			IsHost:    i == 0,
			CreatedAt: base.Add(time.Duration(i) * time.Millisecond),
		}
		if err := store.CreateParticipant(ctx, participant); err != nil {
			t.Fatalf("seed participant %s: %v", participant.ID, err)
		}
	}
	host := "p1"
	if err := store.UpdateSession(ctx, session.ID, SessionUpdate{HostID: &host}); err != nil {
		t.Fatalf("seed host: %v", err)
	}

	roster, err := store.Participants(ctx, session.ID)
	if err != nil {
		t.Fatalf("seed roster: %v", err)
	}
	loaded, err := store.SessionByID(ctx, session.ID)
	if err != nil {
		t.Fatalf("seed reload: %v", err)
	}
	return loaded, roster
}

func setNightRole(t *testing.T, store *MemoryStore, sessionID string, role Role) {
	t.Helper()
	if err := store.UpdateSession(context.Background(), sessionID, SessionUpdate{NightRole: &role}); err != nil {
		t.Fatalf("set night role: %v", err)
	}
}

func mustSession(t *testing.T, store *MemoryStore, id string) *Session {
	t.Helper()
	session, err := store.SessionByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	return session
}

func mustParticipant(t *testing.T, store *MemoryStore, id string) *Participant {
	t.Helper()
	p, err := store.ParticipantByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load participant %s: %v", id, err)
	}
	return p
}

func mustParticipants(t *testing.T, store *MemoryStore, sessionID string) []*Participant {
	t.Helper()
	roster, err := store.Participants(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("load roster: %v", err)
	}
	return roster
}
