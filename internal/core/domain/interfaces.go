package domain

import "context"

// UserRepository handles accounts and their team binding.
type UserRepository interface {
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	CreateUser(ctx context.Context, u *User) error
	// SetTeam binds the user to teamID; zero unbinds.
	SetTeam(ctx context.Context, userID, teamID int64) error
	ListByTeam(ctx context.Context, teamID int64) ([]User, error)
}

// TeamRepository handles team records.
type TeamRepository interface {
	GetTeamByID(ctx context.Context, id int64) (*Team, error)
	GetTeamByCode(ctx context.Context, code string) (*Team, error)
	CreateTeam(ctx context.Context, t *Team) error
	RenameTeam(ctx context.Context, id int64, name string) error
	ListTeams(ctx context.Context) ([]Team, error)
}

// TaskRepository handles team-scoped tasks.
type TaskRepository interface {
	GetTaskByID(ctx context.Context, id int64) (*Task, error)
	ListByTeam(ctx context.Context, teamID int64) ([]Task, error)
	CreateTask(ctx context.Context, t *Task) error
	UpdateTask(ctx context.Context, t *Task) error
	DeleteTask(ctx context.Context, id int64) error
}
