package narrator

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// Story themes give each session its own atmosphere. The theme is chosen
// once at game start and stored on the session.
var themes = []string{
	"A fishing village on the shore of a black lake where the fog never lifts",
	"A mountain hamlet cut off by snow for weeks",
	"A forest town where the trees seem to whisper at night",
	"A winemakers' village whose wine tastes strangely of iron this year",
	"A mining community whose tunnels hide more than coal",
	"A storm-beaten coastal town where sailors vanish at sea",
	"A loggers' village where the forest takes back its ground every night",
	"A market town on a forgotten road, the last shelter before the wilds",
}

// RandomTheme picks a story theme for a new game.
func RandomTheme() string {
	return themes[rand.IntN(len(themes))]
}

// Fallback returns the deterministic canned line for a narration context.
// It is what players read whenever the narration service is disabled,
// slow, or failing.
func Fallback(nctx Context, data Data) string {
	switch nctx {
	case ContextNightIntro:
		if data.IsFirstNight {
			return "Night falls on the village for the first time. Close your eyes."
		}
		return fmt.Sprintf("Night %d. The village falls asleep.", data.DayNumber)
	case ContextNightRole:
		switch data.CurrentRole {
		case "werewolf":
			return "The werewolves wake and choose their prey."
		case "seer":
			return "The seer wakes and peers into a villager's soul."
		default:
			return "The witch wakes, a potion in each hand."
		}
	case ContextDayIntro:
		if len(data.VictimNames) > 0 {
			return fmt.Sprintf("The village wakes. %s did not survive the night.",
				strings.Join(data.VictimNames, " and "))
		}
		return "The village wakes. Nobody died tonight."
	case ContextVoteStart:
		return "The time to vote has come. Point at the one you suspect."
	case ContextVoteResult:
		if data.VictimName == "" {
			return "No votes were cast. Nobody is eliminated."
		}
		if data.IsTie {
			return fmt.Sprintf("The vote was tied, and fate decided: %s is eliminated.", data.VictimName)
		}
		return fmt.Sprintf("%s has been eliminated by the village.", data.VictimName)
	case ContextHunterDeath:
		name := data.VictimName
		if name == "" {
			name = "The hunter"
		}
		return fmt.Sprintf("%s was the hunter, and raises the rifle one last time.", name)
	case ContextGameEnd:
		if data.Winner == "village" {
			return "The last wolf has fallen. The village wins."
		}
		return "The wolves walk openly now. The werewolves win."
	}
	return "The night is long and full of whispers."
}
