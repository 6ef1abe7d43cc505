package errors

import "errors"

var (
	ErrMalformedMessage   = errors.New("malformed message")
	ErrUnknownAction      = errors.New("unknown action")
	ErrSessionNotFound    = errors.New("session not found")
	ErrPlayerNotInSession = errors.New("player not in session")
	ErrInvalidState       = errors.New("invalid session state")
	ErrNotYourTurn        = errors.New("not your turn")
	ErrInvalidWinner      = errors.New("invalid winner")

	ErrSettlementNotFound = errors.New("settlement not found")
)

// Code returns the wire name of a protocol error. Errors outside the
// taxonomy report as "InternalError".
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSessionNotFound):
		return "SessionNotFound"
	case errors.Is(err, ErrPlayerNotInSession):
		return "PlayerNotInSession"
	case errors.Is(err, ErrInvalidState):
		return "InvalidState"
	case errors.Is(err, ErrNotYourTurn):
		return "NotYourTurn"
	case errors.Is(err, ErrInvalidWinner):
		return "InvalidWinner"
	case errors.Is(err, ErrMalformedMessage), errors.Is(err, ErrUnknownAction):
		return "MalformedMessage"
	case errors.Is(err, ErrSettlementNotFound):
		return "SettlementNotFound"
	default:
		return "InternalError"
	}
}
