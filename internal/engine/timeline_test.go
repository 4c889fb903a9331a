package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas/internal/domain"
	"atlas/internal/engine"
)

func TestViewerSingleSubscription(t *testing.T) {
	env := newTestEnv(t)
	creator := env.provision(t, "maria", domain.RoleUsuario)

	taskA, err := env.Engine.CreateTask(env.Ctx, creator, engine.CreateTaskInput{Title: "A"})
	require.NoError(t, err)
	taskB, err := env.Engine.CreateTask(env.Ctx, creator, engine.CreateTaskInput{Title: "B"})
	require.NoError(t, err)

	viewer := env.Engine.NewViewer()
	defer viewer.Close()

	_, _, err = viewer.Open(env.Ctx, creator, taskA.ID)
	require.NoError(t, err)
	require.Equal(t, 1, env.Engine.Stream.Subscribers(taskA.ID))

	// The feed on A is released by the time Open(B) returns; the viewer
	// never holds two live subscriptions.
	backlog, ch, err := viewer.Open(env.Ctx, creator, taskB.ID)
	require.NoError(t, err)
	require.Len(t, backlog, 1)
	require.Equal(t, 0, env.Engine.Stream.Subscribers(taskA.ID))
	require.Equal(t, 1, env.Engine.Stream.Subscribers(taskB.ID))

	entry, err := env.Engine.AddChatMessage(env.Ctx, creator, taskB.ID, "hola")
	require.NoError(t, err)
	select {
	case got := <-ch:
		assert.Equal(t, entry.ID, got.ID)
		assert.Equal(t, "hola", got.NewValue)
	case <-time.After(time.Second):
		t.Fatal("no live entry received")
	}

	viewer.Close()
	require.Equal(t, 0, env.Engine.Stream.Subscribers(taskB.ID))
}

func TestViewerDeniedOnInvisibleTask(t *testing.T) {
	env := newTestEnv(t)
	creator := env.provision(t, "maria", domain.RoleUsuario)
	other := env.provision(t, "pedro", domain.RoleUsuario)

	private, err := env.Engine.CreateTask(env.Ctx, creator, engine.CreateTaskInput{Title: "Secreta", Private: true})
	require.NoError(t, err)

	viewer := env.Engine.NewViewer()
	defer viewer.Close()
	_, _, err = viewer.Open(context.Background(), other, private.ID)
	require.Error(t, err)
	assert.Equal(t, 0, env.Engine.Stream.Subscribers(private.ID))
}

func TestTimelineInterleavesChatAndChanges(t *testing.T) {
	env := newTestEnv(t)
	creator := env.provision(t, "maria", domain.RoleUsuario)

	task, err := env.Engine.CreateTask(env.Ctx, creator, engine.CreateTaskInput{Title: "Mixta"})
	require.NoError(t, err)
	_, err = env.Engine.AddChatMessage(env.Ctx, creator, task.ID, "primero")
	require.NoError(t, err)
	status := domain.StatusEnProgreso
	_, err = env.Engine.UpdateTask(env.Ctx, creator, task.ID, engine.UpdateTaskInput{Status: &status})
	require.NoError(t, err)
	_, err = env.Engine.AddChatMessage(env.Ctx, creator, task.ID, "segundo")
	require.NoError(t, err)

	timeline, err := env.Engine.Timeline(env.Ctx, creator, task.ID)
	require.NoError(t, err)
	require.Len(t, timeline, 4)
	kinds := []string{timeline[0].Kind, timeline[1].Kind, timeline[2].Kind, timeline[3].Kind}
	assert.Equal(t, []string{engine.KindChange, engine.KindChat, engine.KindChange, engine.KindChat}, kinds)
	assert.Equal(t, "primero", timeline[1].NewValue)
	assert.Equal(t, "segundo", timeline[3].NewValue)

	// Creation carries its authored comment; the status change gets a
	// synthesized line; chat lines are the message itself.
	assert.Contains(t, *timeline[0].Comment, "creó la tarea")
	assert.Equal(t, *timeline[0].Comment, timeline[0].Display)
	assert.Contains(t, timeline[2].Display, "estado: En progreso")
	assert.Equal(t, "primero", timeline[1].Display)
}
