package postgres

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"taskpulse/internal/config"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	commitErr  error
	committed  bool
	rolledBack bool
}

func (f *fakeTx) ExecContext(context.Context, string, ...any) (sql.Result, error) { return nil, nil }
func (f *fakeTx) QueryContext(context.Context, string, ...any) (*sql.Rows, error) { return nil, nil }
func (f *fakeTx) QueryRowContext(context.Context, string, ...any) *sql.Row        { return nil }

func (f *fakeTx) Commit() error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback() error {
	f.rolledBack = true
	return nil
}

func newTestTxManager(tx *fakeTx) (*TxManager, *int) {
	begins := 0
	return &TxManager{
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
		begin: func(context.Context) (dbTx, error) {
			begins++
			return tx, nil
		},
	}, &begins
}

func TestTxManager_HookFiresAfterCommit(t *testing.T) {
	tx := &fakeTx{}
	tm, _ := newTestTxManager(tx)
	var committedAtFire bool
	fired := 0

	err := tm.WithTx(context.Background(), func(ctx context.Context) error {
		ok := tm.RunAfterCommit(ctx, func(hookCtx context.Context) {
			fired++
			committedAtFire = tx.committed
			_, inTx := hookCtx.Value(txKey).(*txScope)
			assert.False(t, inTx, "hooks run outside the finished tx")
		})
		require.True(t, ok)
		assert.Zero(t, fired, "nothing fires before commit")
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, fired)
	assert.True(t, committedAtFire)
}

func TestTxManager_HookNeverFiresOnRollback(t *testing.T) {
	tx := &fakeTx{}
	tm, _ := newTestTxManager(tx)
	fired := false
	boom := errors.New("constraint violated")

	err := tm.WithTx(context.Background(), func(ctx context.Context) error {
		tm.RunAfterCommit(ctx, func(context.Context) { fired = true })
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.True(t, tx.rolledBack)
	assert.False(t, fired)
}

func TestTxManager_HookNeverFiresOnCommitFailure(t *testing.T) {
	tx := &fakeTx{commitErr: errors.New("serialization failure")}
	tm, _ := newTestTxManager(tx)
	fired := false

	err := tm.WithTx(context.Background(), func(ctx context.Context) error {
		tm.RunAfterCommit(ctx, func(context.Context) { fired = true })
		return nil
	})

	require.Error(t, err)
	assert.False(t, fired)
}

func TestTxManager_RunAfterCommitWithoutTx(t *testing.T) {
	tm, _ := newTestTxManager(&fakeTx{})

	assert.False(t, tm.RunAfterCommit(context.Background(), func(context.Context) {}))
}

func TestTxManager_NestedJoinsOuterTx(t *testing.T) {
	tx := &fakeTx{}
	tm, begins := newTestTxManager(tx)
	var order []string

	err := tm.WithTx(context.Background(), func(ctx context.Context) error {
		tm.RunAfterCommit(ctx, func(context.Context) { order = append(order, "outer") })
		return tm.WithTx(ctx, func(inner context.Context) error {
			tm.RunAfterCommit(inner, func(context.Context) { order = append(order, "inner") })
			assert.Empty(t, order, "inner WithTx must not commit")
			return nil
		})
	})

	require.NoError(t, err)
	assert.Equal(t, 1, *begins)
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestTxManager_HookPanicIsContained(t *testing.T) {
	tm, _ := newTestTxManager(&fakeTx{})
	second := false

	err := tm.WithTx(context.Background(), func(ctx context.Context) error {
		tm.RunAfterCommit(ctx, func(context.Context) { panic("bad hook") })
		tm.RunAfterCommit(ctx, func(context.Context) { second = true })
		return nil
	})

	require.NoError(t, err)
	assert.True(t, second)
}

func TestTxManager_PanicRollsBack(t *testing.T) {
	tx := &fakeTx{}
	tm, _ := newTestTxManager(tx)

	assert.Panics(t, func() {
		_ = tm.WithTx(context.Background(), func(context.Context) error {
			panic("boom")
		})
	})
	assert.True(t, tx.rolledBack)
}

func TestGetExecutor_PrefersTx(t *testing.T) {
	tx := &fakeTx{}
	ctx := context.WithValue(context.Background(), txKey, &txScope{tx: tx})

	assert.Same(t, tx, GetExecutor(ctx, nil))
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestNew_RejectsMalformedDSN(t *testing.T) {
	_, err := New(context.Background(), "taskpulse", config.PostgresConfig{DSN: "postgres://user:pa ss@[::1"})
	assert.Error(t, err)
}
