package db

import (
	"time"

	"gorm.io/datatypes"
)

type Session struct {
	ID              string     `gorm:"primaryKey;size:64"`
	Code            string     `gorm:"size:12;uniqueIndex;not null"`
	Phase           string     `gorm:"size:32;not null"`
	DayNumber       int        `gorm:"not null;default:0"`
	Winner          string     `gorm:"size:16;not null;default:''"`
	HostID          string     `gorm:"size:64;not null;default:''"`
	Settings        datatypes.JSON `gorm:"type:jsonb;not null"`
	PhaseEndsAt     *time.Time `gorm:"index"`
	NightRole       string     `gorm:"size:16;not null;default:''"`
	PendingHunterID string     `gorm:"size:64;not null;default:''"`
	HunterDiedAt    string     `gorm:"size:16;not null;default:''"`
	NarrationText   string     `gorm:"type:text;not null;default:''"`
	StoryTheme      string     `gorm:"size:280;not null;default:''"`
	CreatedAt       time.Time  `gorm:"not null"`
	UpdatedAt       time.Time  `gorm:"not null"`
	Participants    []Participant
	Events          []Event
}

type Participant struct {
	ID         string    `gorm:"primaryKey;size:64"`
	SessionID  string    `gorm:"size:64;index;not null"`
	Name       string    `gorm:"size:64;not null"`
	Role       string    `gorm:"size:16;not null;default:''"`
	Alive      bool      `gorm:"not null;default:true"`
	IsHost     bool      `gorm:"not null;default:false"`
	HealUsed   bool      `gorm:"not null;default:false"`
	PoisonUsed bool      `gorm:"not null;default:false"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

type NightAction struct {
	ID         uint      `gorm:"primaryKey"`
	SessionID  string    `gorm:"size:64;not null;uniqueIndex:idx_night_actions_key"`
	DayNumber  int       `gorm:"not null;uniqueIndex:idx_night_actions_key"`
	ActorID    string    `gorm:"size:64;not null;uniqueIndex:idx_night_actions_key"`
	ActionType string    `gorm:"size:32;not null;uniqueIndex:idx_night_actions_key"`
	TargetID   string    `gorm:"size:64;not null;default:''"`
	CreatedAt  time.Time `gorm:"not null"`
}

type Vote struct {
	ID        uint      `gorm:"primaryKey"`
	SessionID string    `gorm:"size:64;not null;uniqueIndex:idx_votes_key"`
	DayNumber int       `gorm:"not null;uniqueIndex:idx_votes_key"`
	VoterID   string    `gorm:"size:64;not null;uniqueIndex:idx_votes_key"`
	TargetID  string    `gorm:"size:64;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

type ReadyMark struct {
	ID            uint      `gorm:"primaryKey"`
	SessionID     string    `gorm:"size:64;not null;uniqueIndex:idx_ready_marks_key"`
	DayNumber     int       `gorm:"not null;uniqueIndex:idx_ready_marks_key"`
	ParticipantID string    `gorm:"size:64;not null;uniqueIndex:idx_ready_marks_key"`
	CreatedAt     time.Time `gorm:"not null"`
}

type Event struct {
	ID        uint           `gorm:"primaryKey"`
	SessionID string         `gorm:"size:64;index;not null"`
	Type      string         `gorm:"size:64;not null"`
	Message   string         `gorm:"type:text;not null;default:''"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null;index"`
}
