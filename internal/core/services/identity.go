package services

import (
	"context"
	"errors"
	"log/slog"
	"taskpulse/internal/core/domain"
	"taskpulse/pkg/logging"
)

// IdentityService resolves bearer tokens against the user store.
type IdentityService struct {
	log    *slog.Logger
	tokens *TokenService
	users  domain.UserRepository
}

func NewIdentityService(log *slog.Logger, tokens *TokenService, users domain.UserRepository) *IdentityService {
	return &IdentityService{log: log, tokens: tokens, users: users}
}

// ValidateToken reports whether token is well signed, unexpired and names an existing user.
func (s *IdentityService) ValidateToken(ctx context.Context, token string) (bool, error) {
	userID, err := s.tokens.ParseToken(token)
	if err != nil {
		s.log.DebugContext(ctx, "identity - validate token - rejected", logging.Err(err))
		return false, nil
	}
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *IdentityService) IdentityFromToken(ctx context.Context, token string) (*domain.Identity, error) {
	userID, err := s.tokens.ParseToken(token)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &domain.Identity{ID: user.ID, Name: user.Name}, nil
}
