package game

import "errors"

// Sentinel errors double as stable reason codes for clients. Duplicate
// submissions are deliberately not on this list: resubmitting the same
// action or vote is a success no-op.
var (
	ErrNotFound       = errors.New("not_found")
	ErrWrongPhase     = errors.New("wrong_phase")
	ErrNotAlive       = errors.New("not_alive")
	ErrNotYourTurn    = errors.New("not_your_turn")
	ErrRoleForbids    = errors.New("role_forbids_action")
	ErrAbilityUsed    = errors.New("ability_already_used")
	ErrUnknownTarget  = errors.New("unknown_target")
	ErrNotHost        = errors.New("not_host")
	ErrTooFewPlayers  = errors.New("too_few_players")
	ErrLobbyFull      = errors.New("lobby_full")
	ErrAlreadyStarted = errors.New("already_started")
	ErrNotFinished    = errors.New("not_finished")
	ErrNotEmpty       = errors.New("not_empty")

	// ErrDuplicateCode is a store-level signal that a join code is
	// already taken; CreateSession retries on it and clients never see
	// it, so it stays out of IsValidation.
	ErrDuplicateCode = errors.New("duplicate_code")
)

// IsValidation reports whether err is a synchronous validation rejection
// that the caller can retry with corrected input.
func IsValidation(err error) bool {
	switch {
	case errors.Is(err, ErrWrongPhase),
		errors.Is(err, ErrNotAlive),
		errors.Is(err, ErrNotYourTurn),
		errors.Is(err, ErrRoleForbids),
		errors.Is(err, ErrAbilityUsed),
		errors.Is(err, ErrUnknownTarget),
		errors.Is(err, ErrNotHost),
		errors.Is(err, ErrTooFewPlayers),
		errors.Is(err, ErrLobbyFull),
		errors.Is(err, ErrAlreadyStarted),
		errors.Is(err, ErrNotFinished),
		errors.Is(err, ErrNotEmpty):
		return true
	}
	return false
}
