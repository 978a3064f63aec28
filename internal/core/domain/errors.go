package domain

import "errors"

var (
	ErrInvalidUserID      = errors.New("invalid user id")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidTeamID      = errors.New("invalid team id")
	ErrInvalidTeamName    = errors.New("invalid team name")
	ErrTeamNotFound       = errors.New("team not found")
	ErrAlreadyInTeam      = errors.New("user already belongs to a team")
	ErrNotInTeam          = errors.New("user does not belong to a team")
	ErrInvalidTaskID      = errors.New("invalid task id")
	ErrTaskNotFound       = errors.New("task not found")
	ErrInvalidTask        = errors.New("invalid task")
	ErrConnectionClosed   = errors.New("connection closed")
)

// Auth message parse failures. Each maps to its own close reason.
var (
	ErrAuthMalformed    = errors.New("auth message is not a json object")
	ErrAuthNotAuth      = errors.New("first message is not an auth message")
	ErrAuthTokenMissing = errors.New("auth message has no token field")
	ErrAuthTokenEmpty   = errors.New("auth token is empty")
)
