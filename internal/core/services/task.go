package services

import (
	"context"
	"log/slog"
	"strings"
	"taskpulse/internal/core/contracts"
	"taskpulse/internal/core/domain"
	"taskpulse/pkg/logging"
)

// TaskInput carries the client-editable task fields. Nil fields are left unchanged on update.
type TaskInput struct {
	Title       *string            `json:"title"`
	Description *string            `json:"description"`
	Status      *domain.TaskStatus `json:"status"`
	AssigneeID  *int64             `json:"assigneeId"`
}

type TaskService struct {
	log       *slog.Logger
	users     domain.UserRepository
	tasks     domain.TaskRepository
	snapshots *SnapshotService
	notifier  contracts.Notifier
	txManager contracts.UnitOfWork
}

func NewTaskService(
	log *slog.Logger,
	users domain.UserRepository,
	tasks domain.TaskRepository,
	snapshots *SnapshotService,
	notifier contracts.Notifier,
	txManager contracts.UnitOfWork,
) *TaskService {
	return &TaskService{
		log:       log,
		users:     users,
		tasks:     tasks,
		snapshots: snapshots,
		notifier:  notifier,
		txManager: txManager,
	}
}

func (s *TaskService) List(ctx context.Context, identityID int64) ([]domain.Task, error) {
	teamID, err := s.teamOf(ctx, identityID)
	if err != nil {
		return nil, err
	}
	return s.tasks.ListByTeam(ctx, teamID)
}

func (s *TaskService) Create(ctx context.Context, identityID int64, in TaskInput) (*domain.Task, error) {
	task := &domain.Task{Status: domain.TaskTodo}
	if err := apply(task, in); err != nil {
		return nil, err
	}
	if task.Title == "" {
		return nil, domain.ErrInvalidTask
	}
	err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		teamID, err := s.teamOf(txCtx, identityID)
		if err != nil {
			return err
		}
		task.TeamID = teamID
		if err := s.tasks.CreateTask(txCtx, task); err != nil {
			return err
		}
		s.notifyTasks(txCtx, teamID)
		return nil
	})
	if err != nil {
		s.log.ErrorContext(ctx, "task - create - failed", logging.Identity(identityID), logging.Err(err))
		return nil, err
	}
	s.log.InfoContext(ctx, "task - create - success", logging.Task(task.ID), logging.Team(task.TeamID))
	return task, nil
}

func (s *TaskService) Update(ctx context.Context, identityID, taskID int64, in TaskInput) (*domain.Task, error) {
	var task *domain.Task
	err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		if task, err = s.ownedTask(txCtx, identityID, taskID); err != nil {
			return err
		}
		if err := apply(task, in); err != nil {
			return err
		}
		if task.Title == "" {
			return domain.ErrInvalidTask
		}
		if err := s.tasks.UpdateTask(txCtx, task); err != nil {
			return err
		}
		s.notifyTasks(txCtx, task.TeamID)
		return nil
	})
	if err != nil {
		s.log.ErrorContext(ctx, "task - update - failed", logging.Task(taskID), logging.Err(err))
		return nil, err
	}
	return task, nil
}

func (s *TaskService) Delete(ctx context.Context, identityID, taskID int64) error {
	err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		task, err := s.ownedTask(txCtx, identityID, taskID)
		if err != nil {
			return err
		}
		if err := s.tasks.DeleteTask(txCtx, taskID); err != nil {
			return err
		}
		s.notifyTasks(txCtx, task.TeamID)
		return nil
	})
	if err != nil {
		s.log.ErrorContext(ctx, "task - delete - failed", logging.Task(taskID), logging.Err(err))
		return err
	}
	return nil
}

// notifyTasks hands the commit-gated notifier a provider, never the task in hand.
func (s *TaskService) notifyTasks(txCtx context.Context, teamID int64) {
	s.notifier.NotifyTeam(txCtx, teamID, domain.EntityTasks, s.snapshots.Provider(teamID, domain.EntityTasks))
}

func (s *TaskService) teamOf(ctx context.Context, identityID int64) (int64, error) {
	user, err := s.users.GetUserByID(ctx, identityID)
	if err != nil {
		return 0, err
	}
	if user.TeamID <= 0 {
		return 0, domain.ErrNotInTeam
	}
	return user.TeamID, nil
}

// ownedTask loads a task visible to identityID; other teams' tasks look absent.
func (s *TaskService) ownedTask(ctx context.Context, identityID, taskID int64) (*domain.Task, error) {
	teamID, err := s.teamOf(ctx, identityID)
	if err != nil {
		return nil, err
	}
	task, err := s.tasks.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.TeamID != teamID {
		return nil, domain.ErrTaskNotFound
	}
	return task, nil
}

func apply(t *domain.Task, in TaskInput) error {
	if in.Title != nil {
		t.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return domain.ErrInvalidTask
		}
		t.Status = *in.Status
	}
	if in.AssigneeID != nil {
		t.AssigneeID = *in.AssigneeID
	}
	return nil
}
