package services

import (
	"context"
	"testing"

	"taskpulse/internal/core/domain"
	"taskpulse/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestTaskService_Lifecycle(t *testing.T) {
	w := newWorkspace(t)
	ctx := context.Background()
	ada := w.user(t, "ada")
	team, err := w.teams.CreateTeam(ctx, ada, "Platform")
	require.NoError(t, err)
	conn := testutil.NewAuthedConn("ada", ada, team.ID)
	w.registry.Add(conn)

	task, err := w.tasks.Create(ctx, ada, TaskInput{Title: ptr("Write docs")})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskTodo, task.Status)
	assert.Equal(t, team.ID, task.TeamID)

	updated, err := w.tasks.Update(ctx, ada, task.ID, TaskInput{Status: ptr(domain.TaskDone), AssigneeID: ptr(ada)})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskDone, updated.Status)
	assert.Equal(t, "Write docs", updated.Title)

	list, err := w.tasks.List(ctx, ada)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, w.tasks.Delete(ctx, ada, task.ID))

	sent := conn.SentMaps()
	require.Len(t, sent, 3)
	for _, frame := range sent {
		assert.Equal(t, domain.EntityTasks, frame["entityType"])
	}
	created := sent[0]["payload"].([]any)
	require.Len(t, created, 1)
	assert.Equal(t, "todo", created[0].(map[string]any)["status"])
	done := sent[1]["payload"].([]any)
	assert.Equal(t, "done", done[0].(map[string]any)["status"])
	assert.Empty(t, sent[2]["payload"])
}

func TestTaskService_RejectedMutationsSendNothing(t *testing.T) {
	w := newWorkspace(t)
	ctx := context.Background()
	ada := w.user(t, "ada")
	eve := w.user(t, "eve")
	loner := w.user(t, "loner")
	team, err := w.teams.CreateTeam(ctx, ada, "Platform")
	require.NoError(t, err)
	_, err = w.teams.CreateTeam(ctx, eve, "Rivals")
	require.NoError(t, err)
	task, err := w.tasks.Create(ctx, ada, TaskInput{Title: ptr("Write docs")})
	require.NoError(t, err)
	conn := testutil.NewAuthedConn("ada", ada, team.ID)
	w.registry.Add(conn)

	_, err = w.tasks.Create(ctx, ada, TaskInput{Title: ptr("   ")})
	assert.ErrorIs(t, err, domain.ErrInvalidTask)

	_, err = w.tasks.Update(ctx, ada, task.ID, TaskInput{Status: ptr(domain.TaskStatus("archived"))})
	assert.ErrorIs(t, err, domain.ErrInvalidTask)

	_, err = w.tasks.Update(ctx, eve, task.ID, TaskInput{Title: ptr("mine now")})
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	assert.ErrorIs(t, w.tasks.Delete(ctx, eve, task.ID), domain.ErrTaskNotFound)

	_, err = w.tasks.Create(ctx, loner, TaskInput{Title: ptr("orphan")})
	assert.ErrorIs(t, err, domain.ErrNotInTeam)
	_, err = w.tasks.List(ctx, loner)
	assert.ErrorIs(t, err, domain.ErrNotInTeam)

	assert.Empty(t, conn.Sent())
	stored, err := w.store.Tasks().GetTaskByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Write docs", stored.Title)
}

func TestTaskService_OnlyOwningTeamIsNotified(t *testing.T) {
	w := newWorkspace(t)
	ctx := context.Background()
	ada := w.user(t, "ada")
	eve := w.user(t, "eve")
	team, err := w.teams.CreateTeam(ctx, ada, "Platform")
	require.NoError(t, err)
	rivals, err := w.teams.CreateTeam(ctx, eve, "Rivals")
	require.NoError(t, err)
	adaConn := testutil.NewAuthedConn("ada", ada, team.ID)
	eveConn := testutil.NewAuthedConn("eve", eve, rivals.ID)
	w.registry.Add(adaConn)
	w.registry.Add(eveConn)

	_, err = w.tasks.Create(ctx, ada, TaskInput{Title: ptr("Write docs")})
	require.NoError(t, err)

	assert.Len(t, adaConn.Sent(), 1)
	assert.Empty(t, eveConn.Sent())
}
