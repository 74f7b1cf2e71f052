package server

import (
	"time"

	"moonhollow/internal/game"
)

// snapshot renders a session as the given viewer may see it. Living
// players' roles stay hidden except from themselves; werewolves see the
// rest of the pack; the dead and a finished game hide nothing.
func snapshot(session *game.Session, participants []*game.Participant, viewerID string) map[string]any {
	viewer := findByID(participants, viewerID)
	finished := session.Phase == game.PhaseFinished

	roster := make([]map[string]any, 0, len(participants))
	for _, p := range participants {
		entry := map[string]any{
			"id":      p.ID,
			"name":    p.Name,
			"alive":   p.Alive,
			"is_host": p.IsHost,
		}
		if p.Role != "" && roleVisible(p, viewer, finished) {
			entry["role"] = string(p.Role)
		}
		roster = append(roster, entry)
	}

	out := map[string]any{
		"id":           session.ID,
		"code":         session.Code,
		"phase":        string(session.Phase),
		"day_number":   session.DayNumber,
		"host_id":      session.HostID,
		"settings":     session.Settings,
		"participants": roster,
	}
	if session.Winner != game.WinnerNone {
		out["winner"] = string(session.Winner)
	}
	if session.PhaseEndsAt != nil {
		out["phase_ends_at"] = session.PhaseEndsAt.UTC().Format(time.RFC3339)
	}
	if session.NarrationText != "" {
		out["narration"] = session.NarrationText
	}
	if session.Phase == game.PhaseNight {
		out["night_role"] = string(session.NightRole)
	}
	if session.Phase == game.PhaseHunter {
		out["pending_hunter_id"] = session.PendingHunterID
	}
	if viewer != nil {
		out["you"] = map[string]any{
			"id":          viewer.ID,
			"role":        string(viewer.Role),
			"alive":       viewer.Alive,
			"heal_used":   viewer.HealUsed,
			"poison_used": viewer.PoisonUsed,
		}
	}
	return out
}

func roleVisible(p, viewer *game.Participant, finished bool) bool {
	if finished || !p.Alive {
		return true
	}
	if viewer == nil {
		return false
	}
	if viewer.ID == p.ID {
		return true
	}
	return viewer.Role == game.RoleWerewolf && p.Role == game.RoleWerewolf
}

func findByID(participants []*game.Participant, id string) *game.Participant {
	if id == "" {
		return nil
	}
	for _, p := range participants {
		if p.ID == id {
			return p
		}
	}
	return nil
}
