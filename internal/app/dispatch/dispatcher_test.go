package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"taskpulse/internal/app/registry"
	"taskpulse/internal/core/domain"
	"taskpulse/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher() (*Dispatcher, *registry.Registry) {
	reg := registry.NewRegistry()
	return NewDispatcher(slog.New(slog.NewTextHandler(io.Discard, nil)), reg), reg
}

func TestDispatcher_BroadcastToTeam_Audience(t *testing.T) {
	d, reg := newTestDispatcher()
	sameTeam1 := testutil.NewAuthedConn("same1", 1, 3)
	sameTeam2 := testutil.NewAuthedConn("same2", 2, 3)
	otherTeam := testutil.NewAuthedConn("other", 3, 4)
	pending := testutil.NewAuthedConn("pending", 4, 0)
	unauthed := testutil.NewFakeConn("anon")
	for _, c := range []*testutil.FakeConn{sameTeam1, sameTeam2, otherTeam, pending, unauthed} {
		reg.Add(c)
	}

	err := d.BroadcastToTeam(context.Background(), 3, domain.EntityTasks, []string{"a"})
	require.NoError(t, err)

	assert.Len(t, sameTeam1.Sent(), 1)
	assert.Len(t, sameTeam2.Sent(), 1)
	assert.Empty(t, otherTeam.Sent())
	assert.Empty(t, pending.Sent())
	assert.Empty(t, unauthed.Sent())
	assert.Equal(t, sameTeam1.Sent()[0], sameTeam2.Sent()[0])
}

func TestDispatcher_BroadcastToAll_OnlyAuthenticated(t *testing.T) {
	d, reg := newTestDispatcher()
	a := testutil.NewAuthedConn("a", 1, 3)
	b := testutil.NewAuthedConn("b", 2, 0)
	anon := testutil.NewFakeConn("anon")
	reg.Add(a)
	reg.Add(b)
	reg.Add(anon)

	require.NoError(t, d.BroadcastToAll(context.Background(), domain.EntityTeams, map[string]int{"n": 1}))

	assert.Len(t, a.Sent(), 1)
	assert.Len(t, b.Sent(), 1)
	assert.Empty(t, anon.Sent())
}

func TestDispatcher_NilPayloadOrTeamIsNoop(t *testing.T) {
	d, reg := newTestDispatcher()
	c := testutil.NewAuthedConn("a", 1, 3)
	reg.Add(c)

	var nilTask *domain.Task
	require.NoError(t, d.BroadcastToAll(context.Background(), domain.EntityTeams, nil))
	require.NoError(t, d.BroadcastToTeam(context.Background(), 3, domain.EntityTeam, nilTask))
	require.NoError(t, d.BroadcastToTeam(context.Background(), 0, domain.EntityTasks, []int{1}))

	assert.Zero(t, c.SendCalls())
}

func TestDispatcher_NilSliceIsNoopEmptySliceIsSent(t *testing.T) {
	d, reg := newTestDispatcher()
	c := testutil.NewAuthedConn("a", 1, 3)
	reg.Add(c)

	require.NoError(t, d.BroadcastToAll(context.Background(), domain.EntityTeams, []domain.Task(nil)))
	require.NoError(t, d.BroadcastToTeam(context.Background(), 3, domain.EntityTasks, []domain.Task(nil)))
	require.NoError(t, d.SendTo(context.Background(), c, domain.EntityTasks, []domain.Task(nil)))
	assert.Zero(t, c.SendCalls())

	require.NoError(t, d.BroadcastToTeam(context.Background(), 3, domain.EntityTasks, []domain.Task{}))
	sent := c.Sent()
	require.Len(t, sent, 1)
	assert.JSONEq(t, `{"entityType":"TASKS","payload":[]}`, string(sent[0]))
}

func TestDispatcher_ClosedConnectionPrunedWithoutSend(t *testing.T) {
	d, reg := newTestDispatcher()
	closed := testutil.NewAuthedConn("closed", 1, 3)
	closed.SetOpen(false)
	live := testutil.NewAuthedConn("live", 2, 3)
	reg.Add(closed)
	reg.Add(live)

	require.NoError(t, d.BroadcastToTeam(context.Background(), 3, domain.EntityTasks, []int{1}))

	assert.Zero(t, closed.SendCalls())
	assert.Len(t, live.Sent(), 1)
	assert.Equal(t, 1, reg.Len())
}

func TestDispatcher_SendFailureDoesNotStopOthers(t *testing.T) {
	d, reg := newTestDispatcher()
	broken := testutil.NewAuthedConn("broken", 1, 3)
	broken.FailSends(errors.New("broken pipe"))
	reg.Add(broken)
	var healthy []*testutil.FakeConn
	for i := 0; i < 5; i++ {
		c := testutil.NewAuthedConn("ok"+string(rune('a'+i)), int64(10+i), 3)
		healthy = append(healthy, c)
		reg.Add(c)
	}

	err := d.BroadcastToTeam(context.Background(), 3, domain.EntityTasks, []int{1})
	require.NoError(t, err, "a failing recipient does not fail the call")

	for _, c := range healthy {
		assert.Len(t, c.Sent(), 1, c.ID())
	}
	assert.Equal(t, 5, reg.Len())
	assert.NotNil(t, broken.ClosedWith())
}

func TestDispatcher_EncodeFailureAbortsBroadcast(t *testing.T) {
	d, reg := newTestDispatcher()
	c := testutil.NewAuthedConn("a", 1, 3)
	reg.Add(c)

	err := d.BroadcastToTeam(context.Background(), 3, domain.EntityTasks, map[string]any{"bad": make(chan int)})

	require.Error(t, err)
	assert.Zero(t, c.SendCalls())
}

func TestEncode_MatchesIndependentEncoding(t *testing.T) {
	payload := map[string]any{"id": float64(7), "title": "write docs"}

	data, err := Encode(domain.EntityTasks, payload)
	require.NoError(t, err)

	expected, err := json.Marshal(map[string]any{"entityType": "TASKS", "payload": payload})
	require.NoError(t, err)
	assert.JSONEq(t, string(expected), string(data))

	again, err := Encode(domain.EntityTasks, payload)
	require.NoError(t, err)
	assert.Equal(t, data, again)
	assert.Equal(t, map[string]any{"id": float64(7), "title": "write docs"}, payload)
}

func TestDispatcher_SendToPrunesOnFailure(t *testing.T) {
	d, reg := newTestDispatcher()
	c := testutil.NewAuthedConn("a", 1, 3)
	c.FailSends(errors.New("reset"))
	reg.Add(c)

	err := d.SendTo(context.Background(), c, domain.EntityTeam, domain.Team{ID: 3})

	assert.ErrorIs(t, err, domain.ErrConnectionClosed)
	assert.Equal(t, 0, reg.Len())
}
