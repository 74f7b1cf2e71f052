package game

import "math/rand/v2"

// VoteResult is the outcome of a day's vote. Eliminated is nil only when
// nobody voted at all. A tie does not spare anyone: one of the tied
// candidates is eliminated at random, and IsTie is set so the narration
// can mention the split.
type VoteResult struct {
	Eliminated *Participant
	IsTie      bool
	Counts     map[string]int
}

// countTargets tallies target ids. Shared by vote and night resolution.
func countTargets(targets []string) map[string]int {
	counts := make(map[string]int, len(targets))
	for _, id := range targets {
		if id == "" {
			continue
		}
		counts[id]++
	}
	return counts
}

// pluralityTarget picks the most-voted target. Ties are broken uniformly
// at random among the tied candidates; isTie reports that a draw happened.
// Returns "" when counts is empty.
func pluralityTarget(counts map[string]int) (targetID string, isTie bool) {
	max := 0
	tied := make([]string, 0, len(counts))
	for id, n := range counts {
		switch {
		case n > max:
			max = n
			tied = tied[:0]
			tied = append(tied, id)
		case n == max:
			tied = append(tied, id)
		}
	}
	if len(tied) == 0 {
		return "", false
	}
	if len(tied) == 1 {
		return tied[0], false
	}
	return tied[rand.IntN(len(tied))], true
}

// ResolveVotes tallies a day's votes against the roster.
func ResolveVotes(votes []*Vote, participants []*Participant) VoteResult {
	targets := make([]string, 0, len(votes))
	for _, v := range votes {
		targets = append(targets, v.TargetID)
	}
	counts := countTargets(targets)
	targetID, isTie := pluralityTarget(counts)
	return VoteResult{
		Eliminated: findParticipant(participants, targetID),
		IsTie:      isTie,
		Counts:     counts,
	}
}

// everyoneVoted reports whether every living participant has a recorded
// vote for the day.
func everyoneVoted(votes []*Vote, participants []*Participant) bool {
	return len(votes) >= len(alive(participants))
}
