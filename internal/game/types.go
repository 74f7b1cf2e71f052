package game

import "time"

type Phase string

const (
	PhaseLobby      Phase = "lobby"
	PhaseNightIntro Phase = "night_intro"
	PhaseNight      Phase = "night"
	PhaseDayIntro   Phase = "day_intro"
	PhaseDay        Phase = "day"
	PhaseVote       Phase = "vote"
	PhaseVoteResult Phase = "vote_result"
	PhaseHunter     Phase = "hunter"
	PhaseFinished   Phase = "finished"
)

type Role string

const (
	RoleWerewolf Role = "werewolf"
	RoleVillager Role = "villager"
	RoleSeer     Role = "seer"
	RoleWitch    Role = "witch"
	RoleHunter   Role = "hunter"
)

type ActionType string

const (
	ActionWerewolfKill ActionType = "werewolf_kill"
	ActionSeerView     ActionType = "seer_view"
	ActionSeerSkip     ActionType = "seer_skip"
	ActionWitchSave    ActionType = "witch_save"
	ActionWitchKill    ActionType = "witch_kill"
	ActionWitchSkip    ActionType = "witch_skip"
	ActionHunterKill   ActionType = "hunter_kill"
	ActionHunterSkip   ActionType = "hunter_skip"
)

type Winner string

const (
	WinnerNone     Winner = ""
	WinnerVillage  Winner = "village"
	WinnerWerewolf Winner = "werewolf"
)

// DiedAt records the phase in which a hunter died, so the engine knows
// where to resume once the hunter has taken the last shot.
type DiedAt string

const (
	DiedAtNone  DiedAt = ""
	DiedAtNight DiedAt = "night"
	DiedAtVote  DiedAt = "vote"
)

// Night roles wake in this fixed order.
var NightRoleOrder = []Role{RoleSeer, RoleWerewolf, RoleWitch}

const (
	MinPlayers = 5
	MaxPlayers = 18

	JoinCodeLength = 6
	// No 0/O or 1/I, they read ambiguously on a phone screen.
	JoinCodeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// RoleToggles controls which optional roles join the deal.
type RoleToggles struct {
	Seer   bool `json:"seer"`
	Witch  bool `json:"witch"`
	Hunter bool `json:"hunter"`
}

// Settings is the per-session configuration, stored as JSON on the session.
type Settings struct {
	NightSeconds      int         `json:"night_seconds"`
	DiscussionSeconds int         `json:"discussion_seconds"`
	VoteSeconds       int         `json:"vote_seconds"`
	MaxPlayers        int         `json:"max_players"`
	NarrationEnabled  bool        `json:"narration_enabled"`
	Roles             RoleToggles `json:"roles"`
}

func DefaultSettings() Settings {
	return Settings{
		NightSeconds:      30,
		DiscussionSeconds: 120,
		VoteSeconds:       60,
		MaxPlayers:        MaxPlayers,
		NarrationEnabled:  true,
		Roles:             RoleToggles{Seer: true, Witch: true, Hunter: true},
	}
}

type Session struct {
	ID              string
	Code            string
	Phase           Phase
	DayNumber       int
	Winner          Winner
	Settings        Settings
	HostID          string
	PhaseEndsAt     *time.Time
	NightRole       Role // empty unless the night pointer is set
	PendingHunterID string
	HunterDiedAt    DiedAt
	NarrationText   string
	StoryTheme      string
	CreatedAt       time.Time
}

type Participant struct {
	ID         string
	SessionID  string
	Name       string
	Role       Role // empty until the game starts
	Alive      bool
	IsHost     bool
	HealUsed   bool
	PoisonUsed bool
	CreatedAt  time.Time
}

type NightAction struct {
	SessionID  string
	DayNumber  int
	ActorID    string
	ActionType ActionType
	TargetID   string
}

type Vote struct {
	SessionID string
	DayNumber int
	VoterID   string
	TargetID  string
}

type ReadyMark struct {
	SessionID     string
	DayNumber     int
	ParticipantID string
}

type Event struct {
	SessionID string
	Type      string
	Message   string
	Payload   EventPayload
	CreatedAt time.Time
}

type DeadParticipant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

type EventPayload struct {
	DayNumber   int               `json:"day_number,omitempty"`
	Participant string            `json:"participant_id,omitempty"`
	Name        string            `json:"name,omitempty"`
	Role        string            `json:"role,omitempty"`
	TargetID    string            `json:"target_id,omitempty"`
	TargetName  string            `json:"target_name,omitempty"`
	Eliminated  string            `json:"eliminated,omitempty"`
	IsTie       bool              `json:"is_tie,omitempty"`
	Winner      string            `json:"winner,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	Dead        []DeadParticipant `json:"dead,omitempty"`
	PlayerCount int               `json:"player_count,omitempty"`
}

func alive(participants []*Participant) []*Participant {
	out := make([]*Participant, 0, len(participants))
	for _, p := range participants {
		if p.Alive {
			out = append(out, p)
		}
	}
	return out
}

func aliveWithRole(participants []*Participant, role Role) []*Participant {
	out := make([]*Participant, 0, 4)
	for _, p := range participants {
		if p.Alive && p.Role == role {
			out = append(out, p)
		}
	}
	return out
}

func findParticipant(participants []*Participant, id string) *Participant {
	for _, p := range participants {
		if p.ID == id {
			return p
		}
	}
	return nil
}
