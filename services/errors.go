package services

import "errors"

// Errors shared by the services and mapped to HTTP statuses by the handlers.
var (
	// Validation
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidLobbySize = errors.New("lobby size must be between 3 and 8")
	ErrInvalidAliasMode = errors.New("alias_mode must be display_name or custom")
	ErrAliasRequired    = errors.New("alias is required")
	ErrAliasTooLong     = errors.New("alias is too long")
	ErrWinnerUnresolved = errors.New("match winner could not be determined from the report")

	// Not found
	ErrLobbyNotFound = errors.New("lobby not found")
	ErrMatchNotFound = errors.New("match not found")

	// Authorization
	ErrNotLobbyHost   = errors.New("only the lobby host can perform this action")
	ErrNotMatchPlayer = errors.New("only a player of this match can perform this action")

	// Conflicts
	ErrLobbyFull       = errors.New("lobby is full")
	ErrLobbyNotWaiting = errors.New("lobby is not accepting players")
	ErrLobbyNotStarted = errors.New("lobby has not started or is already over")
	ErrLobbyNotReady   = errors.New("lobby does not have enough participants yet")
	ErrMatchNotReady   = errors.New("match is still waiting for an opponent")
	ErrMatchFinished   = errors.New("match is already finished")
)
