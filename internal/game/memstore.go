package game

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps everything in process memory behind one mutex. The
// server uses it when no DATABASE_URL is configured, and the tests run
// against it. It honors the same contract the Postgres store does:
// TransitionSession is a compare-and-swap and the Record* inserts are
// insert-or-ignore over their unique keys.
type MemoryStore struct {
	mu           sync.Mutex
	sessions     map[string]*Session
	participants map[string]*Participant
	actions      []*NightAction
	votes        []*Vote
	readies      []*ReadyMark
	events       []*Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:     make(map[string]*Session),
		participants: make(map[string]*Participant),
	}
}

var _ Store = (*MemoryStore)(nil)

func copySession(s *Session) *Session {
	out := *s
	if s.PhaseEndsAt != nil {
		t := *s.PhaseEndsAt
		out.PhaseEndsAt = &t
	}
	return &out
}

func copyParticipant(p *Participant) *Participant {
	out := *p
	return &out
}

func (m *MemoryStore) CreateSession(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sessions {
		if existing.Code == s.Code {
			return ErrDuplicateCode
		}
	}
	m.sessions[s.ID] = copySession(s)
	return nil
}

func (m *MemoryStore) SessionByID(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copySession(s), nil
}

func (m *MemoryStore) SessionByCode(_ context.Context, code string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.Code == code {
			return copySession(s), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ExpiredSessions(_ context.Context, now time.Time) ([]*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Session
	for _, s := range m.sessions {
		if s.PhaseEndsAt != nil && !now.Before(*s.PhaseEndsAt) {
			out = append(out, copySession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func applySessionUpdate(s *Session, up SessionUpdate) {
	if up.Phase != nil {
		s.Phase = *up.Phase
	}
	if up.DayNumber != nil {
		s.DayNumber = *up.DayNumber
	}
	if up.Winner != nil {
		s.Winner = *up.Winner
	}
	if up.HostID != nil {
		s.HostID = *up.HostID
	}
	if up.Settings != nil {
		s.Settings = *up.Settings
	}
	if up.ClearDeadline {
		s.PhaseEndsAt = nil
	} else if up.Deadline != nil {
		t := *up.Deadline
		s.PhaseEndsAt = &t
	}
	if up.NightRole != nil {
		s.NightRole = *up.NightRole
	}
	if up.PendingHunterID != nil {
		s.PendingHunterID = *up.PendingHunterID
	}
	if up.HunterDiedAt != nil {
		s.HunterDiedAt = *up.HunterDiedAt
	}
	if up.NarrationText != nil {
		s.NarrationText = *up.NarrationText
	}
	if up.StoryTheme != nil {
		s.StoryTheme = *up.StoryTheme
	}
}

func (m *MemoryStore) UpdateSession(_ context.Context, id string, up SessionUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	applySessionUpdate(s, up)
	return nil
}

func (m *MemoryStore) TransitionSession(_ context.Context, id string, filter TransitionFilter, up SessionUpdate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return false, ErrNotFound
	}
	if s.Phase != filter.Phase {
		return false, nil
	}
	if filter.NightRole != nil && s.NightRole != *filter.NightRole {
		return false, nil
	}
	if filter.PendingHunter != nil && s.PendingHunterID != *filter.PendingHunter {
		return false, nil
	}
	applySessionUpdate(s, up)
	return true, nil
}

func (m *MemoryStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	for pid, p := range m.participants {
		if p.SessionID == id {
			delete(m.participants, pid)
		}
	}
	m.clearGameDataLocked(id)
	return nil
}

func (m *MemoryStore) CreateParticipant(_ context.Context, p *Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.participants[p.ID] = copyParticipant(p)
	return nil
}

func (m *MemoryStore) ParticipantByID(_ context.Context, id string) (*Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyParticipant(p), nil
}

func (m *MemoryStore) Participants(_ context.Context, sessionID string) ([]*Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Participant
	for _, p := range m.participants {
		if p.SessionID == sessionID {
			out = append(out, copyParticipant(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) UpdateParticipant(_ context.Context, id string, up ParticipantUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[id]
	if !ok {
		return ErrNotFound
	}
	if up.Role != nil {
		p.Role = *up.Role
	}
	if up.Alive != nil {
		p.Alive = *up.Alive
	}
	if up.IsHost != nil {
		p.IsHost = *up.IsHost
	}
	if up.HealUsed != nil {
		p.HealUsed = *up.HealUsed
	}
	if up.PoisonUsed != nil {
		p.PoisonUsed = *up.PoisonUsed
	}
	return nil
}

func (m *MemoryStore) DeleteParticipant(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.participants[id]; !ok {
		return ErrNotFound
	}
	delete(m.participants, id)
	return nil
}

func (m *MemoryStore) RecordNightAction(_ context.Context, a *NightAction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.actions {
		if existing.SessionID == a.SessionID && existing.DayNumber == a.DayNumber &&
			existing.ActorID == a.ActorID && existing.ActionType == a.ActionType {
			return false, nil
		}
	}
	stored := *a
	m.actions = append(m.actions, &stored)
	return true, nil
}

func (m *MemoryStore) NightActions(_ context.Context, sessionID string, day int) ([]*NightAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*NightAction
	for _, a := range m.actions {
		if a.SessionID == sessionID && a.DayNumber == day {
			stored := *a
			out = append(out, &stored)
		}
	}
	return out, nil
}

func (m *MemoryStore) RecordVote(_ context.Context, v *Vote) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.votes {
		if existing.SessionID == v.SessionID && existing.DayNumber == v.DayNumber &&
			existing.VoterID == v.VoterID {
			return false, nil
		}
	}
	stored := *v
	m.votes = append(m.votes, &stored)
	return true, nil
}

func (m *MemoryStore) Votes(_ context.Context, sessionID string, day int) ([]*Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Vote
	for _, v := range m.votes {
		if v.SessionID == sessionID && v.DayNumber == day {
			stored := *v
			out = append(out, &stored)
		}
	}
	return out, nil
}

func (m *MemoryStore) RecordReady(_ context.Context, r *ReadyMark) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.readies {
		if existing.SessionID == r.SessionID && existing.DayNumber == r.DayNumber &&
			existing.ParticipantID == r.ParticipantID {
			return false, nil
		}
	}
	stored := *r
	m.readies = append(m.readies, &stored)
	return true, nil
}

func (m *MemoryStore) CountReady(_ context.Context, sessionID string, day int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, r := range m.readies {
		if r.SessionID == sessionID && r.DayNumber == day {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) AppendEvent(_ context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *e
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	m.events = append(m.events, &stored)
	return nil
}

func (m *MemoryStore) LatestEvent(_ context.Context, sessionID, eventType string) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.events) - 1; i >= 0; i-- {
		e := m.events[i]
		if e.SessionID == sessionID && e.Type == eventType {
			stored := *e
			return &stored, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) RecentEventMessages(_ context.Context, sessionID string, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []string
	for _, e := range m.events {
		if e.SessionID == sessionID && e.Message != "" {
			all = append(all, e.Message)
		}
	}
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (m *MemoryStore) ClearGameData(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearGameDataLocked(sessionID)
	return nil
}

func (m *MemoryStore) clearGameDataLocked(sessionID string) {
	actions := m.actions[:0]
	for _, a := range m.actions {
		if a.SessionID != sessionID {
			actions = append(actions, a)
		}
	}
	m.actions = actions

	votes := m.votes[:0]
	for _, v := range m.votes {
		if v.SessionID != sessionID {
			votes = append(votes, v)
		}
	}
	m.votes = votes

	readies := m.readies[:0]
	for _, r := range m.readies {
		if r.SessionID != sessionID {
			readies = append(readies, r)
		}
	}
	m.readies = readies

	events := m.events[:0]
	for _, e := range m.events {
		if e.SessionID != sessionID {
			events = append(events, e)
		}
	}
	m.events = events
}
