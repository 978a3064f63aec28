package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"taskpulse/internal/core/contracts"
	"taskpulse/internal/core/domain"
	"taskpulse/pkg/logging"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type TeamService struct {
	log       *slog.Logger
	users     domain.UserRepository
	teams     domain.TeamRepository
	snapshots *SnapshotService
	notifier  contracts.Notifier
	txManager contracts.UnitOfWork
}

func NewTeamService(
	log *slog.Logger,
	users domain.UserRepository,
	teams domain.TeamRepository,
	snapshots *SnapshotService,
	notifier contracts.Notifier,
	txManager contracts.UnitOfWork,
) *TeamService {
	return &TeamService{
		log:       log,
		users:     users,
		teams:     teams,
		snapshots: snapshots,
		notifier:  notifier,
		txManager: txManager,
	}
}

// TeamOf reports the identity's current team.
func (s *TeamService) TeamOf(ctx context.Context, identityID int64) (int64, bool, error) {
	user, err := s.users.GetUserByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return user.TeamID, user.TeamID > 0, nil
}

func (s *TeamService) CurrentMembers(ctx context.Context, teamID int64) ([]domain.Member, error) {
	return s.snapshots.Members(ctx, teamID)
}

func (s *TeamService) ListTeams(ctx context.Context) ([]domain.Team, error) {
	return s.teams.ListTeams(ctx)
}

// CreateTeam creates a team and makes identityID its first member.
func (s *TeamService) CreateTeam(ctx context.Context, identityID int64, name string) (*domain.Team, error) {
	ctx, span := tracer.Start(ctx, "TeamService.CreateTeam", trace.WithAttributes(
		attribute.Int64("identity_id", identityID),
	))
	defer span.End()
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrInvalidTeamName
	}
	team := &domain.Team{Name: name, Code: newJoinCode()}
	err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		user, err := s.users.GetUserByID(txCtx, identityID)
		if err != nil {
			return err
		}
		if user.TeamID > 0 {
			return domain.ErrAlreadyInTeam
		}
		if err := s.teams.CreateTeam(txCtx, team); err != nil {
			return err
		}
		if err := s.users.SetTeam(txCtx, identityID, team.ID); err != nil {
			return err
		}
		s.bindAfterCommit(txCtx, identityID, team.ID)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "team - create team - failed", logging.Identity(identityID), logging.Err(err))
		return nil, err
	}
	s.log.InfoContext(ctx, "team - create team - success", logging.Identity(identityID), logging.Team(team.ID))
	s.broadcastDirectory(ctx)
	return team, nil
}

// JoinTeam binds identityID to the team owning code.
func (s *TeamService) JoinTeam(ctx context.Context, identityID int64, code string) (*domain.Team, error) {
	ctx, span := tracer.Start(ctx, "TeamService.JoinTeam", trace.WithAttributes(
		attribute.Int64("identity_id", identityID),
	))
	defer span.End()
	var team *domain.Team
	err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		user, err := s.users.GetUserByID(txCtx, identityID)
		if err != nil {
			return err
		}
		if user.TeamID > 0 {
			return domain.ErrAlreadyInTeam
		}
		if team, err = s.teams.GetTeamByCode(txCtx, strings.ToUpper(strings.TrimSpace(code))); err != nil {
			return err
		}
		if err := s.users.SetTeam(txCtx, identityID, team.ID); err != nil {
			return err
		}
		s.bindAfterCommit(txCtx, identityID, team.ID)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "team - join team - failed", logging.Identity(identityID), logging.Err(err))
		return nil, err
	}
	s.log.InfoContext(ctx, "team - join team - success", logging.Identity(identityID), logging.Team(team.ID))
	return team, nil
}

// LeaveTeam unbinds identityID and tells the remaining members.
func (s *TeamService) LeaveTeam(ctx context.Context, identityID int64) error {
	err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		user, err := s.users.GetUserByID(txCtx, identityID)
		if err != nil {
			return err
		}
		if user.TeamID <= 0 {
			return domain.ErrNotInTeam
		}
		if err := s.users.SetTeam(txCtx, identityID, 0); err != nil {
			return err
		}
		s.txManager.RunAfterCommit(txCtx, func(ctx context.Context) {
			s.notifier.ReleaseFromTeam(ctx, identityID)
		})
		s.notifier.NotifyTeam(txCtx, user.TeamID, domain.EntityMembers, s.snapshots.Provider(user.TeamID, domain.EntityMembers))
		return nil
	})
	if err != nil {
		s.log.ErrorContext(ctx, "team - leave team - failed", logging.Identity(identityID), logging.Err(err))
		return err
	}
	s.log.InfoContext(ctx, "team - leave team - success", logging.Identity(identityID))
	return nil
}

// RenameTeam changes the team name; only members may do it.
func (s *TeamService) RenameTeam(ctx context.Context, identityID, teamID int64, name string) (*domain.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrInvalidTeamName
	}
	var team *domain.Team
	err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		user, err := s.users.GetUserByID(txCtx, identityID)
		if err != nil {
			return err
		}
		if user.TeamID != teamID {
			return domain.ErrTeamNotFound
		}
		if err := s.teams.RenameTeam(txCtx, teamID, name); err != nil {
			return err
		}
		if team, err = s.teams.GetTeamByID(txCtx, teamID); err != nil {
			return err
		}
		s.notifier.NotifyTeam(txCtx, teamID, domain.EntityTeam, s.snapshots.Provider(teamID, domain.EntityTeam))
		return nil
	})
	if err != nil {
		s.log.ErrorContext(ctx, "team - rename team - failed", logging.Identity(identityID), logging.Team(teamID), logging.Err(err))
		return nil, err
	}
	s.broadcastDirectory(ctx)
	return team, nil
}

// bindAfterCommit completes a pending connection and refreshes the member
// list once the membership row is durable.
func (s *TeamService) bindAfterCommit(txCtx context.Context, identityID, teamID int64) {
	s.txManager.RunAfterCommit(txCtx, func(ctx context.Context) {
		s.notifier.AssociateWithTeam(ctx, identityID, teamID)
	})
	s.notifier.NotifyTeam(txCtx, teamID, domain.EntityMembers, s.snapshots.Provider(teamID, domain.EntityMembers))
}

func (s *TeamService) broadcastDirectory(ctx context.Context) {
	teams, err := s.teams.ListTeams(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "team - broadcast directory - list teams failed", logging.Err(err))
		return
	}
	s.notifier.BroadcastAll(ctx, domain.EntityTeams, teams)
}

func newJoinCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
