package domain

import "errors"

// Domain errors
var (
	ErrAccountNotFound    = errors.New("user not found")
	ErrChannelNotFound    = errors.New("channel not found")
	ErrMOTDNotFound       = errors.New("motd not set for channel")
	ErrAccountExists      = errors.New("username or email already registered")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnsupportedGame    = errors.New("unsupported game")
	ErrInvalidGameConfig  = errors.New("invalid game config structure")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInternalError      = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrChannelNotFound) ||
		errors.Is(err, ErrMOTDNotFound)
}
