package postgres

import (
	"context"
	"database/sql"
	"errors"
	"taskpulse/internal/core/domain"
)

type TeamRepo struct {
	db *sql.DB
}

func NewTeamRepo(db *sql.DB) *TeamRepo {
	return &TeamRepo{db: db}
}

func (r *TeamRepo) GetTeamByID(ctx context.Context, id int64) (*domain.Team, error) {
	if id <= 0 {
		return nil, domain.ErrInvalidTeamID
	}
	return r.getOne(ctx, `SELECT id, name, code, created_at FROM teams WHERE id = $1`, id)
}

func (r *TeamRepo) GetTeamByCode(ctx context.Context, code string) (*domain.Team, error) {
	return r.getOne(ctx, `SELECT id, name, code, created_at FROM teams WHERE code = $1`, code)
}

func (r *TeamRepo) getOne(ctx context.Context, query string, arg any) (*domain.Team, error) {
	exec := GetExecutor(ctx, r.db)
	var t domain.Team
	err := exec.QueryRowContext(ctx, query, arg).Scan(&t.ID, &t.Name, &t.Code, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTeamNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *TeamRepo) CreateTeam(ctx context.Context, t *domain.Team) error {
	exec := GetExecutor(ctx, r.db)
	return exec.QueryRowContext(ctx, `
		INSERT INTO teams (name, code) VALUES ($1, $2)
		RETURNING id, created_at
	`, t.Name, t.Code).Scan(&t.ID, &t.CreatedAt)
}

func (r *TeamRepo) RenameTeam(ctx context.Context, id int64, name string) error {
	if id <= 0 {
		return domain.ErrInvalidTeamID
	}
	exec := GetExecutor(ctx, r.db)
	result, err := exec.ExecContext(ctx, `UPDATE teams SET name = $2 WHERE id = $1`, id, name)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrTeamNotFound
	}
	return nil
}

func (r *TeamRepo) ListTeams(ctx context.Context) ([]domain.Team, error) {
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `SELECT id, name, code, created_at FROM teams ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	teams := []domain.Team{}
	for rows.Next() {
		var t domain.Team
		if err := rows.Scan(&t.ID, &t.Name, &t.Code, &t.CreatedAt); err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}
