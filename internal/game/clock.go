package game

import "time"

const (
	// Fixed display window for the vote outcome before the game moves on.
	voteResultDuration = 10 * time.Second
	// How long a dying hunter gets to choose a target.
	hunterDuration = 30 * time.Second
	// After a seer view the night clock is shortened to this so the
	// reveal stays on screen before the pointer advances.
	seerRevealDuration = 5 * time.Second
)

// Deadline computes when a phase times out, from now. Phases without a
// configured duration return nil: they block on a narration-done signal
// instead of a clock.
func Deadline(settings Settings, phase Phase, now time.Time) *time.Time {
	var d time.Duration
	switch phase {
	case PhaseNight:
		d = time.Duration(settings.NightSeconds) * time.Second
	case PhaseDay:
		d = time.Duration(settings.DiscussionSeconds) * time.Second
	case PhaseVote:
		d = time.Duration(settings.VoteSeconds) * time.Second
	case PhaseVoteResult:
		d = voteResultDuration
	case PhaseHunter:
		d = hunterDuration
	default:
		return nil
	}
	t := now.Add(d)
	return &t
}
