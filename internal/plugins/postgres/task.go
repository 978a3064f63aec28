package postgres

import (
	"context"
	"database/sql"
	"errors"
	"taskpulse/internal/core/domain"
)

type TaskRepo struct {
	db *sql.DB
}

func NewTaskRepo(db *sql.DB) *TaskRepo {
	return &TaskRepo{db: db}
}

const taskColumns = `id, team_id, title, description, status, COALESCE(assignee_id, 0), created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (*domain.Task, error) {
	var t domain.Task
	if err := row.Scan(&t.ID, &t.TeamID, &t.Title, &t.Description, &t.Status, &t.AssigneeID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func nullableID(id int64) any {
	if id <= 0 {
		return nil
	}
	return id
}

func (r *TaskRepo) GetTaskByID(ctx context.Context, id int64) (*domain.Task, error) {
	if id <= 0 {
		return nil, domain.ErrInvalidTaskID
	}
	exec := GetExecutor(ctx, r.db)
	t, err := scanTask(exec.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTaskNotFound
	}
	return t, err
}

func (r *TaskRepo) ListByTeam(ctx context.Context, teamID int64) ([]domain.Task, error) {
	if teamID <= 0 {
		return nil, domain.ErrInvalidTeamID
	}
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE team_id = $1 ORDER BY id`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tasks := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (r *TaskRepo) CreateTask(ctx context.Context, t *domain.Task) error {
	if t.TeamID <= 0 {
		return domain.ErrInvalidTeamID
	}
	exec := GetExecutor(ctx, r.db)
	return exec.QueryRowContext(ctx, `
		INSERT INTO tasks (team_id, title, description, status, assignee_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, t.TeamID, t.Title, t.Description, t.Status, nullableID(t.AssigneeID)).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

func (r *TaskRepo) UpdateTask(ctx context.Context, t *domain.Task) error {
	if t.ID <= 0 {
		return domain.ErrInvalidTaskID
	}
	exec := GetExecutor(ctx, r.db)
	err := exec.QueryRowContext(ctx, `
		UPDATE tasks
		SET title = $2, description = $3, status = $4, assignee_id = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, t.ID, t.Title, t.Description, t.Status, nullableID(t.AssigneeID)).Scan(&t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrTaskNotFound
	}
	return err
}

func (r *TaskRepo) DeleteTask(ctx context.Context, id int64) error {
	if id <= 0 {
		return domain.ErrInvalidTaskID
	}
	exec := GetExecutor(ctx, r.db)
	result, err := exec.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}
