package testutil

import (
	"context"
	"sync"
)

// UnitOfWork is an in-memory contracts.UnitOfWork. Commit callbacks run when
// the outermost WithTx function returns nil and are dropped otherwise.
type UnitOfWork struct {
	mu     sync.Mutex
	active map[*txMarker][]func(context.Context)
}

type txMarker struct{}

type txKey struct{}

func NewUnitOfWork() *UnitOfWork {
	return &UnitOfWork{active: map[*txMarker][]func(context.Context){}}
}

func (u *UnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*txMarker); ok {
		return fn(ctx)
	}
	marker := &txMarker{}
	u.mu.Lock()
	u.active[marker] = nil
	u.mu.Unlock()
	err := fn(context.WithValue(ctx, txKey{}, marker))
	u.mu.Lock()
	hooks := u.active[marker]
	delete(u.active, marker)
	u.mu.Unlock()
	if err != nil {
		return err
	}
	for _, h := range hooks {
		h(ctx)
	}
	return nil
}

func (u *UnitOfWork) RunAfterCommit(ctx context.Context, fn func(ctx context.Context)) bool {
	marker, ok := ctx.Value(txKey{}).(*txMarker)
	if !ok {
		return false
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.active[marker] = append(u.active[marker], fn)
	return true
}
