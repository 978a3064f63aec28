package testutil

import (
	"context"
	"sort"
	"sync"
	"taskpulse/internal/core/domain"
)

// MemStore backs in-memory user, team and task repositories sharing one id sequence.
type MemStore struct {
	mu     sync.Mutex
	users  map[int64]*domain.User
	teams  map[int64]*domain.Team
	tasks  map[int64]*domain.Task
	nextID int64
}

func NewMemStore() *MemStore {
	return &MemStore{
		users: map[int64]*domain.User{},
		teams: map[int64]*domain.Team{},
		tasks: map[int64]*domain.Task{},
	}
}

func (m *MemStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *MemStore) Users() domain.UserRepository { return memUsers{m} }
func (m *MemStore) Teams() domain.TeamRepository { return memTeams{m} }
func (m *MemStore) Tasks() domain.TaskRepository { return memTasks{m} }

type memUsers struct{ *MemStore }

func (r memUsers) GetUserByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r memUsers) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r memUsers) CreateUser(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return domain.ErrUserExists
		}
	}
	u.ID = r.id()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r memUsers) SetTeam(_ context.Context, userID, teamID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.TeamID = teamID
	return nil
}

func (r memUsers) ListByTeam(_ context.Context, teamID int64) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.User{}
	for _, u := range r.users {
		if u.TeamID == teamID {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memTeams struct{ *MemStore }

func (r memTeams) GetTeamByID(_ context.Context, id int64) (*domain.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[id]
	if !ok {
		return nil, domain.ErrTeamNotFound
	}
	cp := *t
	return &cp, nil
}

func (r memTeams) GetTeamByCode(_ context.Context, code string) (*domain.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.teams {
		if t.Code == code {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrTeamNotFound
}

func (r memTeams) CreateTeam(_ context.Context, t *domain.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.ID = r.id()
	cp := *t
	r.teams[t.ID] = &cp
	return nil
}

func (r memTeams) RenameTeam(_ context.Context, id int64, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[id]
	if !ok {
		return domain.ErrTeamNotFound
	}
	t.Name = name
	return nil
}

func (r memTeams) ListTeams(_ context.Context) ([]domain.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Team{}
	for _, t := range r.teams {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memTasks struct{ *MemStore }

func (r memTasks) GetTaskByID(_ context.Context, id int64) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (r memTasks) ListByTeam(_ context.Context, teamID int64) ([]domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Task{}
	for _, t := range r.tasks {
		if t.TeamID == teamID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memTasks) CreateTask(_ context.Context, t *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.ID = r.id()
	cp := *t
	r.tasks[t.ID] = &cp
	return nil
}

func (r memTasks) UpdateTask(_ context.Context, t *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[t.ID]; !ok {
		return domain.ErrTaskNotFound
	}
	cp := *t
	r.tasks[t.ID] = &cp
	return nil
}

func (r memTasks) DeleteTask(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return domain.ErrTaskNotFound
	}
	delete(r.tasks, id)
	return nil
}
