package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"moonhollow/internal/game"
)

// Store implements game.Store on Postgres. Conditional updates and
// insert-or-ignore unique keys carry the concurrency contract; no row is
// ever locked across a request.
type Store struct {
	conn *gorm.DB
}

func NewStore(conn *gorm.DB) *Store {
	return &Store{conn: conn}
}

var _ game.Store = (*Store)(nil)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func translateErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return game.ErrNotFound
	}
	return err
}

func encodeSettings(s game.Settings) (datatypes.JSON, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func toSessionRecord(s *game.Session) (*Session, error) {
	settings, err := encodeSettings(s.Settings)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:              s.ID,
		Code:            s.Code,
		Phase:           string(s.Phase),
		DayNumber:       s.DayNumber,
		Winner:          string(s.Winner),
		HostID:          s.HostID,
		Settings:        settings,
		PhaseEndsAt:     s.PhaseEndsAt,
		NightRole:       string(s.NightRole),
		PendingHunterID: s.PendingHunterID,
		HunterDiedAt:    string(s.HunterDiedAt),
		NarrationText:   s.NarrationText,
		StoryTheme:      s.StoryTheme,
		CreatedAt:       s.CreatedAt,
	}, nil
}

func fromSessionRecord(r *Session) (*game.Session, error) {
	var settings game.Settings
	if len(r.Settings) > 0 {
		if err := json.Unmarshal(r.Settings, &settings); err != nil {
			return nil, err
		}
	}
	return &game.Session{
		ID:              r.ID,
		Code:            r.Code,
		Phase:           game.Phase(r.Phase),
		DayNumber:       r.DayNumber,
		Winner:          game.Winner(r.Winner),
		HostID:          r.HostID,
		Settings:        settings,
		PhaseEndsAt:     r.PhaseEndsAt,
		NightRole:       game.Role(r.NightRole),
		PendingHunterID: r.PendingHunterID,
		HunterDiedAt:    game.DiedAt(r.HunterDiedAt),
		NarrationText:   r.NarrationText,
		StoryTheme:      r.StoryTheme,
		CreatedAt:       r.CreatedAt,
	}, nil
}

func fromParticipantRecord(r *Participant) *game.Participant {
	return &game.Participant{
		ID:         r.ID,
		SessionID:  r.SessionID,
		Name:       r.Name,
		Role:       game.Role(r.Role),
		Alive:      r.Alive,
		IsHost:     r.IsHost,
		HealUsed:   r.HealUsed,
		PoisonUsed: r.PoisonUsed,
		CreatedAt:  r.CreatedAt,
	}
}

func (s *Store) CreateSession(ctx context.Context, session *game.Session) error {
	record, err := toSessionRecord(session)
	if err != nil {
		return err
	}
	if err := s.conn.WithContext(ctx).Create(record).Error; err != nil {
		if isUniqueViolation(err) {
			return game.ErrDuplicateCode
		}
		return err
	}
	return nil
}

func (s *Store) SessionByID(ctx context.Context, id string) (*game.Session, error) {
	var record Session
	if err := s.conn.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return fromSessionRecord(&record)
}

func (s *Store) SessionByCode(ctx context.Context, code string) (*game.Session, error) {
	var record Session
	if err := s.conn.WithContext(ctx).First(&record, "code = ?", code).Error; err != nil {
		return nil, translateErr(err)
	}
	return fromSessionRecord(&record)
}

func (s *Store) ExpiredSessions(ctx context.Context, now time.Time) ([]*game.Session, error) {
	var records []Session
	err := s.conn.WithContext(ctx).
		Where("phase_ends_at IS NOT NULL AND phase_ends_at <= ?", now).
		Order("id").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	out := make([]*game.Session, 0, len(records))
	for i := range records {
		session, err := fromSessionRecord(&records[i])
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	return out, nil
}

func sessionUpdateColumns(up game.SessionUpdate) (map[string]any, error) {
	columns := map[string]any{}
	if up.Phase != nil {
		columns["phase"] = string(*up.Phase)
	}
	if up.DayNumber != nil {
		columns["day_number"] = *up.DayNumber
	}
	if up.Winner != nil {
		columns["winner"] = string(*up.Winner)
	}
	if up.HostID != nil {
		columns["host_id"] = *up.HostID
	}
	if up.Settings != nil {
		settings, err := encodeSettings(*up.Settings)
		if err != nil {
			return nil, err
		}
		columns["settings"] = settings
	}
	if up.ClearDeadline {
		columns["phase_ends_at"] = gorm.Expr("NULL")
	} else if up.Deadline != nil {
		columns["phase_ends_at"] = *up.Deadline
	}
	if up.NightRole != nil {
		columns["night_role"] = string(*up.NightRole)
	}
	if up.PendingHunterID != nil {
		columns["pending_hunter_id"] = *up.PendingHunterID
	}
	if up.HunterDiedAt != nil {
		columns["hunter_died_at"] = string(*up.HunterDiedAt)
	}
	if up.NarrationText != nil {
		columns["narration_text"] = *up.NarrationText
	}
	if up.StoryTheme != nil {
		columns["story_theme"] = *up.StoryTheme
	}
	return columns, nil
}

func (s *Store) UpdateSession(ctx context.Context, id string, up game.SessionUpdate) error {
	columns, err := sessionUpdateColumns(up)
	if err != nil {
		return err
	}
	if len(columns) == 0 {
		return nil
	}
	result := s.conn.WithContext(ctx).Model(&Session{}).Where("id = ?", id).Updates(columns)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return game.ErrNotFound
	}
	return nil
}

func (s *Store) TransitionSession(ctx context.Context, id string, filter game.TransitionFilter, up game.SessionUpdate) (bool, error) {
	columns, err := sessionUpdateColumns(up)
	if err != nil {
		return false, err
	}
	query := s.conn.WithContext(ctx).Model(&Session{}).
		Where("id = ? AND phase = ?", id, string(filter.Phase))
	if filter.NightRole != nil {
		query = query.Where("night_role = ?", string(*filter.NightRole))
	}
	if filter.PendingHunter != nil {
		query = query.Where("pending_hunter_id = ?", *filter.PendingHunter)
	}
	result := query.Updates(columns)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	return s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := clearGameData(tx, id); err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", id).Delete(&Participant{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&Session{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return game.ErrNotFound
		}
		return nil
	})
}

func (s *Store) CreateParticipant(ctx context.Context, p *game.Participant) error {
	record := Participant{
		ID:         p.ID,
		SessionID:  p.SessionID,
		Name:       p.Name,
		Role:       string(p.Role),
		Alive:      p.Alive,
		IsHost:     p.IsHost,
		HealUsed:   p.HealUsed,
		PoisonUsed: p.PoisonUsed,
		CreatedAt:  p.CreatedAt,
	}
	return s.conn.WithContext(ctx).Create(&record).Error
}

func (s *Store) ParticipantByID(ctx context.Context, id string) (*game.Participant, error) {
	var record Participant
	if err := s.conn.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return fromParticipantRecord(&record), nil
}

func (s *Store) Participants(ctx context.Context, sessionID string) ([]*game.Participant, error) {
	var records []Participant
	err := s.conn.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at, id").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	out := make([]*game.Participant, 0, len(records))
	for i := range records {
		out = append(out, fromParticipantRecord(&records[i]))
	}
	return out, nil
}

func (s *Store) UpdateParticipant(ctx context.Context, id string, up game.ParticipantUpdate) error {
	columns := map[string]any{}
	if up.Role != nil {
		columns["role"] = string(*up.Role)
	}
	if up.Alive != nil {
		columns["alive"] = *up.Alive
	}
	if up.IsHost != nil {
		columns["is_host"] = *up.IsHost
	}
	if up.HealUsed != nil {
		columns["heal_used"] = *up.HealUsed
	}
	if up.PoisonUsed != nil {
		columns["poison_used"] = *up.PoisonUsed
	}
	if len(columns) == 0 {
		return nil
	}
	result := s.conn.WithContext(ctx).Model(&Participant{}).Where("id = ?", id).Updates(columns)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return game.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteParticipant(ctx context.Context, id string) error {
	result := s.conn.WithContext(ctx).Delete(&Participant{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return game.ErrNotFound
	}
	return nil
}

func (s *Store) RecordNightAction(ctx context.Context, a *game.NightAction) (bool, error) {
	record := NightAction{
		SessionID:  a.SessionID,
		DayNumber:  a.DayNumber,
		ActorID:    a.ActorID,
		ActionType: string(a.ActionType),
		TargetID:   a.TargetID,
	}
	result := s.conn.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return false, nil
		}
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *Store) NightActions(ctx context.Context, sessionID string, day int) ([]*game.NightAction, error) {
	var records []NightAction
	err := s.conn.WithContext(ctx).
		Where("session_id = ? AND day_number = ?", sessionID, day).
		Order("id").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	out := make([]*game.NightAction, 0, len(records))
	for _, r := range records {
		out = append(out, &game.NightAction{
			SessionID:  r.SessionID,
			DayNumber:  r.DayNumber,
			ActorID:    r.ActorID,
			ActionType: game.ActionType(r.ActionType),
			TargetID:   r.TargetID,
		})
	}
	return out, nil
}

func (s *Store) RecordVote(ctx context.Context, v *game.Vote) (bool, error) {
	record := Vote{
		SessionID: v.SessionID,
		DayNumber: v.DayNumber,
		VoterID:   v.VoterID,
		TargetID:  v.TargetID,
	}
	result := s.conn.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return false, nil
		}
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *Store) Votes(ctx context.Context, sessionID string, day int) ([]*game.Vote, error) {
	var records []Vote
	err := s.conn.WithContext(ctx).
		Where("session_id = ? AND day_number = ?", sessionID, day).
		Order("id").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	out := make([]*game.Vote, 0, len(records))
	for _, r := range records {
		out = append(out, &game.Vote{
			SessionID: r.SessionID,
			DayNumber: r.DayNumber,
			VoterID:   r.VoterID,
			TargetID:  r.TargetID,
		})
	}
	return out, nil
}

func (s *Store) RecordReady(ctx context.Context, r *game.ReadyMark) (bool, error) {
	record := ReadyMark{
		SessionID:     r.SessionID,
		DayNumber:     r.DayNumber,
		ParticipantID: r.ParticipantID,
	}
	result := s.conn.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return false, nil
		}
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *Store) CountReady(ctx context.Context, sessionID string, day int) (int, error) {
	var count int64
	err := s.conn.WithContext(ctx).Model(&ReadyMark{}).
		Where("session_id = ? AND day_number = ?", sessionID, day).
		Count(&count).Error
	return int(count), err
}

func (s *Store) AppendEvent(ctx context.Context, e *game.Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	record := Event{
		SessionID: e.SessionID,
		Type:      e.Type,
		Message:   e.Message,
		Payload:   datatypes.JSON(payload),
		CreatedAt: createdAt,
	}
	return s.conn.WithContext(ctx).Create(&record).Error
}

func (s *Store) LatestEvent(ctx context.Context, sessionID, eventType string) (*game.Event, error) {
	var record Event
	err := s.conn.WithContext(ctx).
		Where("session_id = ? AND type = ?", sessionID, eventType).
		Order("id DESC").
		First(&record).Error
	if err != nil {
		return nil, translateErr(err)
	}
	var payload game.EventPayload
	if len(record.Payload) > 0 {
		if err := json.Unmarshal(record.Payload, &payload); err != nil {
			return nil, err
		}
	}
	return &game.Event{
		SessionID: record.SessionID,
		Type:      record.Type,
		Message:   record.Message,
		Payload:   payload,
		CreatedAt: record.CreatedAt,
	}, nil
}

func (s *Store) RecentEventMessages(ctx context.Context, sessionID string, limit int) ([]string, error) {
	var records []Event
	err := s.conn.WithContext(ctx).
		Where("session_id = ? AND message <> ''", sessionID).
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		out = append(out, records[i].Message)
	}
	return out, nil
}

func (s *Store) ClearGameData(ctx context.Context, sessionID string) error {
	return s.conn.WithContext(ctx).Transaction(clearGameDataTx(sessionID))
}

func clearGameDataTx(sessionID string) func(tx *gorm.DB) error {
	return func(tx *gorm.DB) error {
		return clearGameData(tx, sessionID)
	}
}

func clearGameData(tx *gorm.DB, sessionID string) error {
	for _, model := range []any{&NightAction{}, &Vote{}, &ReadyMark{}, &Event{}} {
		if err := tx.Where("session_id = ?", sessionID).Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}
