package services

import (
	"context"
	"fmt"
	"log/slog"
	"taskpulse/internal/core/contracts"
	"taskpulse/internal/core/domain"
	"taskpulse/pkg/logging"
)

// SnapshotService recomputes entity payloads straight from the store. No
// caching: every notification reads the committed state.
type SnapshotService struct {
	log      *slog.Logger
	users    domain.UserRepository
	teams    domain.TeamRepository
	tasks    domain.TaskRepository
	presence contracts.PresenceStore
}

func NewSnapshotService(
	log *slog.Logger,
	users domain.UserRepository,
	teams domain.TeamRepository,
	tasks domain.TaskRepository,
	presence contracts.PresenceStore,
) *SnapshotService {
	return &SnapshotService{log: log, users: users, teams: teams, tasks: tasks, presence: presence}
}

func (s *SnapshotService) CurrentEntitiesForTeam(ctx context.Context, teamID int64, entityType string) (any, error) {
	switch entityType {
	case domain.EntityTasks:
		return s.tasks.ListByTeam(ctx, teamID)
	case domain.EntityTeam:
		return s.teams.GetTeamByID(ctx, teamID)
	case domain.EntityMembers:
		return s.Members(ctx, teamID)
	}
	return nil, fmt.Errorf("unknown entity type %q", entityType)
}

// Provider binds CurrentEntitiesForTeam to one team and entity type.
func (s *SnapshotService) Provider(teamID int64, entityType string) contracts.SnapshotFunc {
	return func(ctx context.Context) (any, error) {
		return s.CurrentEntitiesForTeam(ctx, teamID, entityType)
	}
}

// Members lists the team's users annotated with presence. A presence
// outage degrades to everyone offline.
func (s *SnapshotService) Members(ctx context.Context, teamID int64) ([]domain.Member, error) {
	users, err := s.users.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	online := map[int64]bool{}
	if s.presence != nil {
		if online, err = s.presence.OnlineAmong(ctx, ids); err != nil {
			s.log.WarnContext(ctx, "snapshot - members - presence lookup failed", logging.Team(teamID), logging.Err(err))
			online = map[int64]bool{}
		}
	}
	members := make([]domain.Member, len(users))
	for i, u := range users {
		members[i] = domain.Member{ID: u.ID, Name: u.Name, Online: online[u.ID]}
	}
	return members, nil
}
