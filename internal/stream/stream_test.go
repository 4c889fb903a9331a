package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas/internal/domain"
)

func TestPublishReachesTaskSubscribersOnly(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	subA := b.Subscribe(ctx, "task-a")
	subB := b.Subscribe(ctx, "task-b")

	b.Publish(domain.HistoryEntry{ID: 1, TaskID: "task-a", NewValue: "hola"})

	select {
	case got := <-subA.C:
		assert.Equal(t, int64(1), got.ID)
	case <-time.After(time.Second):
		t.Fatal("subscriber A got nothing")
	}
	select {
	case got := <-subB.C:
		t.Fatalf("subscriber B should stay silent, got %+v", got)
	default:
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := b.Subscribe(ctx, "task-a")
	for i := 0; i < subscriberBuffer+10; i++ {
		b.Publish(domain.HistoryEntry{ID: int64(i), TaskID: "task-a"})
	}
	// The buffer holds the first entries; the rest were dropped.
	assert.Len(t, sub.C, subscriberBuffer)
}

func TestCloseDetachesSynchronously(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe(context.Background(), "task-a")
	require.Equal(t, 1, b.Subscribers("task-a"))

	sub.Close()
	assert.Equal(t, 0, b.Subscribers("task-a"))
	_, open := <-sub.C
	assert.False(t, open)

	// A second Close is a no-op.
	sub.Close()
}

func TestContextCancelRemovesSubscription(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())

	sub := b.Subscribe(ctx, "task-a")
	require.Equal(t, 1, b.Subscribers("task-a"))

	cancel()
	require.Eventually(t, func() bool { return b.Subscribers("task-a") == 0 },
		time.Second, 10*time.Millisecond)

	_, open := <-sub.C
	assert.False(t, open)
}
