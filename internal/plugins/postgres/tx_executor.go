package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"taskpulse/pkg/logging"
)

type txKeyType struct{}

var txKey = txKeyType{}

type execer interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type dbTx interface {
	execer
	Commit() error
	Rollback() error
}

// txScope is what WithTx stores in the context: the open tx and the hooks
// waiting for its commit.
type txScope struct {
	tx    dbTx
	mu    sync.Mutex
	hooks []func(context.Context)
}

func (s *txScope) register(fn func(context.Context)) {
	s.mu.Lock()
	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()
}

func (s *txScope) drain() []func(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hooks := s.hooks
	s.hooks = nil
	return hooks
}

// GetExecutor returns the transaction active in ctx, or db.
func GetExecutor(ctx context.Context, db *sql.DB) execer {
	if scope, ok := ctx.Value(txKey).(*txScope); ok && scope != nil {
		return scope.tx
	}
	return db
}

// TxManager is the unit of work over *sql.DB.
type TxManager struct {
	log   *slog.Logger
	begin func(ctx context.Context) (dbTx, error)
}

func NewTxManager(log *slog.Logger, db *sql.DB) *TxManager {
	return &TxManager{
		log: log,
		begin: func(ctx context.Context) (dbTx, error) {
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				return nil, err
			}
			return tx, nil
		},
	}
}

// WithTx runs fn in a transaction. A ctx that already carries one joins it.
// After-commit hooks run once the outermost transaction commits, with the
// context the caller passed in (so they never see the finished tx).
func (tm *TxManager) WithTx(
	ctx context.Context,
	fn func(ctx context.Context) error,
) error {
	if scope, ok := ctx.Value(txKey).(*txScope); ok && scope != nil {
		return fn(ctx)
	}
	tx, err := tm.begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	scope := &txScope{tx: tx}
	ctxWithTx := context.WithValue(ctx, txKey, scope)
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(ctxWithTx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			tm.log.ErrorContext(ctx, "tx manager - with tx - rollback failed", logging.Err(rbErr))
		}
		scope.drain()
		return err
	}
	if err := tx.Commit(); err != nil {
		scope.drain()
		return fmt.Errorf("commit tx: %w", err)
	}
	for _, hook := range scope.drain() {
		tm.runHook(ctx, hook)
	}
	return nil
}

func (tm *TxManager) RunAfterCommit(ctx context.Context, fn func(ctx context.Context)) bool {
	scope, ok := ctx.Value(txKey).(*txScope)
	if !ok || scope == nil {
		return false
	}
	scope.register(fn)
	return true
}

// runHook isolates hook panics: the data is committed either way.
func (tm *TxManager) runHook(ctx context.Context, hook func(context.Context)) {
	defer func() {
		if p := recover(); p != nil {
			tm.log.ErrorContext(ctx, "tx manager - after commit - hook panicked", "panic", p)
		}
	}()
	hook(ctx)
}
