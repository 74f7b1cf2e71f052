package game

import (
	"context"
	"log"

	"moonhollow/internal/narrator"
)

// Each session carries its own story theme and feeds its recent event log
// to the narrator, so narration state lives with the session row instead
// of a process-wide map. The theme is set at game start and evicted on
// restart or session deletion.

const storyContextEvents = 3

func (e *Engine) narrationData(ctx context.Context, session *Session, participants []*Participant) narrator.Data {
	data := narrator.Data{
		DayNumber:   session.DayNumber,
		PlayerCount: len(participants),
		AliveCount:  len(alive(participants)),
		Theme:       session.StoryTheme,
	}
	for _, p := range alive(participants) {
		data.PlayerNames = append(data.PlayerNames, p.Name)
	}
	recent, err := e.store.RecentEventMessages(ctx, session.ID, storyContextEvents)
	if err != nil {
		log.Printf("recent events lookup failed session_id=%s error=%v", session.ID, err)
	} else {
		data.RecentEvents = recent
	}
	return data
}

// narrate produces the narration line for a transition. Disabled or
// missing narration degrades to the deterministic fallback; a transition
// never waits on the narrator beyond its bounded timeout and never fails
// because of it.
func (e *Engine) narrate(ctx context.Context, session *Session, nctx narrator.Context, data narrator.Data) string {
	if e.narrator == nil || !session.Settings.NarrationEnabled {
		return narrator.Fallback(nctx, data)
	}
	return e.narrator.Narrate(ctx, nctx, data)
}
