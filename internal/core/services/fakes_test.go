package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"taskpulse/internal/core/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeIdentity struct {
	valid      map[string]bool
	identities map[string]*domain.Identity
	validErr   error
	resolveErr error
	panicOn    string
}

func (f *fakeIdentity) ValidateToken(_ context.Context, token string) (bool, error) {
	if token == f.panicOn {
		panic("identity backend exploded")
	}
	if f.validErr != nil {
		return false, f.validErr
	}
	return f.valid[token], nil
}

func (f *fakeIdentity) IdentityFromToken(_ context.Context, token string) (*domain.Identity, error) {
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return f.identities[token], nil
}

type fakeTeams struct {
	mu      sync.Mutex
	teamOf  map[int64]int64
	err     error
	lookups int
	// afterFirstLookup lets a test assign a team between the two lookups of a handshake.
	afterFirstLookup func()
}

func (f *fakeTeams) TeamOf(_ context.Context, identityID int64) (int64, bool, error) {
	f.mu.Lock()
	f.lookups++
	first := f.lookups == 1
	hook := f.afterFirstLookup
	if f.err != nil {
		f.mu.Unlock()
		return 0, false, f.err
	}
	team, ok := f.teamOf[identityID]
	f.mu.Unlock()
	if first && hook != nil {
		hook()
	}
	return team, ok && team > 0, nil
}

func (f *fakeTeams) CurrentMembers(context.Context, int64) ([]domain.Member, error) {
	return []domain.Member{}, nil
}

type fakeSnapshots struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeSnapshots) CurrentEntitiesForTeam(_ context.Context, teamID int64, entityType string) (any, error) {
	f.mu.Lock()
	f.calls = append(f.calls, entityType)
	f.mu.Unlock()
	return map[string]any{"team": teamID, "type": entityType}, nil
}

type fakePresence struct {
	mu      sync.Mutex
	online  map[int64]bool
	offline []int64
}

func newFakePresence() *fakePresence {
	return &fakePresence{online: map[int64]bool{}}
}

func (f *fakePresence) MarkOnline(_ context.Context, identityID int64, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online[identityID] = true
	return nil
}

func (f *fakePresence) MarkOffline(_ context.Context, identityID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.online, identityID)
	f.offline = append(f.offline, identityID)
	return nil
}

func (f *fakePresence) OnlineAmong(_ context.Context, ids []int64) (map[int64]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[int64]bool{}
	for _, id := range ids {
		out[id] = f.online[id]
	}
	return out, nil
}
