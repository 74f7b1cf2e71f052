package game

// EvaluateVictory inspects the roster after a death-causing event. The
// village wins the moment no living werewolf remains; the wolves win when
// they reach parity with the living defenders. Dead participants carry no
// weight.
func EvaluateVictory(participants []*Participant) Winner {
	living := alive(participants)
	wolves := 0
	for _, p := range living {
		if p.Role == RoleWerewolf {
			wolves++
		}
	}
	defenders := len(living) - wolves

	if wolves == 0 {
		return WinnerVillage
	}
	if wolves >= defenders {
		return WinnerWerewolf
	}
	return WinnerNone
}

func victoryMessage(winner Winner) string {
	switch winner {
	case WinnerVillage:
		return "The village has driven out the last of the wolves. The village wins!"
	case WinnerWerewolf:
		return "The wolves now outnumber the living. The werewolves win!"
	}
	return ""
}
