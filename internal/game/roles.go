package game

import "math/rand/v2"

// RolesFor builds the role multiset for a roster of the given size: one
// werewolf per started group of six (capped at four), the seer and witch
// when enabled, the hunter when enabled and the table is big enough,
// villagers for the rest.
func RolesFor(playerCount int, settings Settings) []Role {
	roles := make([]Role, 0, playerCount)

	wolves := (playerCount + 5) / 6
	if wolves > 4 {
		wolves = 4
	}
	for i := 0; i < wolves; i++ {
		roles = append(roles, RoleWerewolf)
	}

	if settings.Roles.Seer {
		roles = append(roles, RoleSeer)
	}
	if settings.Roles.Witch {
		roles = append(roles, RoleWitch)
	}
	if settings.Roles.Hunter && playerCount >= 7 {
		roles = append(roles, RoleHunter)
	}

	for len(roles) < playerCount {
		roles = append(roles, RoleVillager)
	}
	return roles
}

var legalActions = map[Role][]ActionType{
	RoleWerewolf: {ActionWerewolfKill},
	RoleSeer:     {ActionSeerView, ActionSeerSkip},
	RoleWitch:    {ActionWitchSave, ActionWitchKill, ActionWitchSkip},
	RoleHunter:   {ActionHunterKill, ActionHunterSkip},
	RoleVillager: {},
}

// LegalActions returns the action types a role may submit.
func LegalActions(role Role) []ActionType {
	return legalActions[role]
}

// ActionAllowed reports whether actionType is legal for role.
func ActionAllowed(role Role, actionType ActionType) bool {
	for _, a := range legalActions[role] {
		if a == actionType {
			return true
		}
	}
	return false
}

// nightRoleFor maps an action type back to the night role it belongs to.
func nightRoleFor(actionType ActionType) Role {
	switch actionType {
	case ActionWerewolfKill:
		return RoleWerewolf
	case ActionSeerView, ActionSeerSkip:
		return RoleSeer
	case ActionWitchSave, ActionWitchKill, ActionWitchSkip:
		return RoleWitch
	}
	return ""
}

// AssignRoles shuffles roles with an unbiased Fisher-Yates permutation and
// zips them onto the roster 1:1. This is the only point where randomness
// touches role secrecy; rand/v2 draws indices uniformly, with no modulo
// bias.
func AssignRoles(participants []*Participant, roles []Role) map[string]Role {
	shuffled := make([]Role, len(roles))
	copy(shuffled, roles)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	assigned := make(map[string]Role, len(participants))
	for i, p := range participants {
		assigned[p.ID] = shuffled[i]
	}
	return assigned
}

// firstNightRole returns the first role in the wake order with a living
// holder, or "".
func firstNightRole(participants []*Participant) Role {
	for _, role := range NightRoleOrder {
		if len(aliveWithRole(participants, role)) > 0 {
			return role
		}
	}
	return ""
}

// nextNightRole returns the next role after current in the wake order with
// a living holder, or "".
func nextNightRole(current Role, participants []*Participant) Role {
	start := -1
	for i, role := range NightRoleOrder {
		if role == current {
			start = i
			break
		}
	}
	if start < 0 {
		return ""
	}
	for _, role := range NightRoleOrder[start+1:] {
		if len(aliveWithRole(participants, role)) > 0 {
			return role
		}
	}
	return ""
}
