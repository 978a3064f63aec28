package domain

import "time"

// User is the persistent account behind an Identity. TeamID is zero when
// the user belongs to no team.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	TeamID       int64
	CreatedAt    time.Time
}

// Identity is the authenticated principal bound to a connection.
type Identity struct {
	ID   int64
	Name string
}

// Team is the notification audience unit.
type Team struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"createdAt"`
}

type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskDone:
		return true
	}
	return false
}

type Task struct {
	ID          int64      `json:"id"`
	TeamID      int64      `json:"teamId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	AssigneeID  int64      `json:"assigneeId,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Member is the client-facing view of a team member.
type Member struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Online bool   `json:"online"`
}

// ConnState is the handshake state of a client connection.
type ConnState int32

const (
	StateConnected ConnState = iota
	StateAwaitingAuth
	StateAuthenticated
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnected:
		return "CONNECTED"
	case StateAwaitingAuth:
		return "AWAITING_AUTH"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}
