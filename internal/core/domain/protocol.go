package domain

import (
	"encoding/json"
	"errors"
	"strings"
)

const (
	TypeAuth                    = "auth"
	TypeAuthSuccess             = "auth_success"
	TypeTeamAssociationComplete = "team_association_complete"
)

// Entity type tags carried in notification envelopes.
const (
	EntityTasks   = "TASKS"
	EntityTeam    = "TEAM"
	EntityMembers = "MEMBERS"
	EntityTeams   = "TEAMS"
)

// TeamSnapshotTypes are pushed, in order, to a connection right after it binds to a team.
var TeamSnapshotTypes = []string{EntityTasks, EntityTeam, EntityMembers}

// AuthMessage is the only message accepted as the first frame.
type AuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type AuthSuccess struct {
	Type   string `json:"type"`
	TeamID int64  `json:"teamId,omitempty"`
}

type TeamAssociationComplete struct {
	Type   string `json:"type"`
	TeamID int64  `json:"teamId"`
}

// Envelope wraps every entity notification.
type Envelope struct {
	EntityType string `json:"entityType"`
	Payload    any    `json:"payload"`
}

// Websocket close codes used by the handshake.
const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	ClosePolicyViolation = 1008
	CloseInternalError   = 1011
)

type CloseReason struct {
	Code int
	Text string
}

var (
	CloseInvalidFormat     = CloseReason{ClosePolicyViolation, "Invalid auth message format"}
	CloseNotAuthMessage    = CloseReason{ClosePolicyViolation, "First message must be auth"}
	CloseTokenFieldMissing = CloseReason{ClosePolicyViolation, "Token field missing"}
	CloseTokenEmpty        = CloseReason{ClosePolicyViolation, "Token missing or empty"}
	CloseInvalidToken      = CloseReason{ClosePolicyViolation, "Invalid token or user offline"}
	CloseAuthTimeout       = CloseReason{ClosePolicyViolation, "Authentication timeout"}
	CloseAuthInconsistency = CloseReason{CloseInternalError, "Authentication inconsistency"}
	CloseAuthError         = CloseReason{CloseInternalError, "Authentication error"}
	CloseClientGone        = CloseReason{CloseNormal, "Connection closed"}
	CloseShutdown          = CloseReason{CloseGoingAway, "Server shutting down"}
)

// ParseAuthMessage extracts the token from a first frame, telling apart a
// non-object payload, a wrong message type, a missing token field and an
// empty token.
func ParseAuthMessage(data []byte) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return "", ErrAuthMalformed
	}
	var typ string
	raw, ok := fields["type"]
	if !ok || json.Unmarshal(raw, &typ) != nil || typ != TypeAuth {
		return "", ErrAuthNotAuth
	}
	raw, ok = fields["token"]
	if !ok {
		return "", ErrAuthTokenMissing
	}
	var token *string
	if err := json.Unmarshal(raw, &token); err != nil {
		return "", ErrAuthMalformed
	}
	if token == nil || strings.TrimSpace(*token) == "" {
		return "", ErrAuthTokenEmpty
	}
	return *token, nil
}

// CloseReasonFor maps a ParseAuthMessage error to its close reason.
func CloseReasonFor(err error) CloseReason {
	switch {
	case errors.Is(err, ErrAuthMalformed):
		return CloseInvalidFormat
	case errors.Is(err, ErrAuthNotAuth):
		return CloseNotAuthMessage
	case errors.Is(err, ErrAuthTokenMissing):
		return CloseTokenFieldMissing
	case errors.Is(err, ErrAuthTokenEmpty):
		return CloseTokenEmpty
	}
	return CloseAuthError
}
