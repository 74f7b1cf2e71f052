package game

import (
	"context"
	"time"
)

// SessionUpdate is a partial update of a session row. Nil fields are left
// untouched. Nullable columns (deadline) use an explicit clear flag so a
// nil pointer keeps its "no change" meaning.
type SessionUpdate struct {
	Phase           *Phase
	DayNumber       *int
	Winner          *Winner
	HostID          *string
	Settings        *Settings
	Deadline        *time.Time
	ClearDeadline   bool
	NightRole       *Role
	PendingHunterID *string
	HunterDiedAt    *DiedAt
	NarrationText   *string
	StoryTheme      *string
}

type ParticipantUpdate struct {
	Role       *Role
	Alive      *bool
	IsHost     *bool
	HealUsed   *bool
	PoisonUsed *bool
}

// TransitionFilter is the guard for a compare-and-swap session update: the
// update applies only if the stored phase (and, when set, the night-role
// pointer) still match. Both the reactive trigger and the timeout sweep
// drive transitions through this guard, so whichever fires second becomes
// a no-op.
type TransitionFilter struct {
	Phase         Phase
	NightRole     *Role
	PendingHunter *string
}

// Store is the logical persistence contract. Correctness under concurrent
// callers comes from the store, not from engine-side locks: conditional
// updates report whether they applied, and Record* inserts are
// insert-or-ignore over the unique keys
// (session, day, actor, action_type) / (session, day, voter) /
// (session, day, participant).
type Store interface {
	CreateSession(ctx context.Context, s *Session) error
	SessionByID(ctx context.Context, id string) (*Session, error)
	SessionByCode(ctx context.Context, code string) (*Session, error)
	// ExpiredSessions returns sessions whose deadline is non-null and in
	// the past, for the periodic sweep.
	ExpiredSessions(ctx context.Context, now time.Time) ([]*Session, error)
	UpdateSession(ctx context.Context, id string, up SessionUpdate) error
	// TransitionSession applies up only if filter still matches; the
	// boolean reports whether this caller won the transition.
	TransitionSession(ctx context.Context, id string, filter TransitionFilter, up SessionUpdate) (bool, error)
	DeleteSession(ctx context.Context, id string) error

	CreateParticipant(ctx context.Context, p *Participant) error
	ParticipantByID(ctx context.Context, id string) (*Participant, error)
	// Participants returns the session roster ordered by creation time.
	Participants(ctx context.Context, sessionID string) ([]*Participant, error)
	UpdateParticipant(ctx context.Context, id string, up ParticipantUpdate) error
	DeleteParticipant(ctx context.Context, id string) error

	// RecordNightAction reports false when the (session, day, actor, type)
	// key already exists; the duplicate insert is silently ignored.
	RecordNightAction(ctx context.Context, a *NightAction) (bool, error)
	NightActions(ctx context.Context, sessionID string, day int) ([]*NightAction, error)
	RecordVote(ctx context.Context, v *Vote) (bool, error)
	Votes(ctx context.Context, sessionID string, day int) ([]*Vote, error)
	RecordReady(ctx context.Context, r *ReadyMark) (bool, error)
	CountReady(ctx context.Context, sessionID string, day int) (int, error)

	AppendEvent(ctx context.Context, e *Event) error
	// LatestEvent returns the most recent event of the given type, or
	// ErrNotFound. The engine only reads back the vote_result event when
	// leaving the vote_result phase.
	LatestEvent(ctx context.Context, sessionID, eventType string) (*Event, error)
	// RecentEventMessages feeds narration context; never used for
	// decisions.
	RecentEventMessages(ctx context.Context, sessionID string, limit int) ([]string, error)

	// ClearGameData removes actions, votes, ready marks and events for a
	// session (restart).
	ClearGameData(ctx context.Context, sessionID string) error
}
