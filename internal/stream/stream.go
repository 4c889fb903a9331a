package stream

import (
	"context"
	"sync"

	"atlas/internal/domain"
)

const subscriberBuffer = 64

// Broker fans out newly appended history entries to live subscribers,
// keyed by task id. Publish never blocks: a subscriber that cannot keep
// up loses entries rather than stalling the writer.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan domain.HistoryEntry]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[chan domain.HistoryEntry]struct{})}
}

// Subscription is one live attachment to a task's feed. C is closed once
// the subscription is released.
type Subscription struct {
	C <-chan domain.HistoryEntry

	broker *Broker
	taskID string
	ch     chan domain.HistoryEntry
	once   sync.Once
}

// Close detaches from the feed and closes C. The detach is synchronous:
// when Close returns the broker no longer counts this subscriber. Calling
// Close again is a no-op.
func (s *Subscription) Close() {
	s.once.Do(func() { s.broker.release(s.taskID, s.ch) })
}

// Subscribe registers interest in one task's timeline. The subscription is
// released when ctx is done or Close is called, whichever comes first.
func (b *Broker) Subscribe(ctx context.Context, taskID string) *Subscription {
	ch := make(chan domain.HistoryEntry, subscriberBuffer)

	b.mu.Lock()
	set, ok := b.subs[taskID]
	if !ok {
		set = make(map[chan domain.HistoryEntry]struct{})
		b.subs[taskID] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()

	sub := &Subscription{C: ch, broker: b, taskID: taskID, ch: ch}
	go func() {
		<-ctx.Done()
		sub.Close()
	}()
	return sub
}

// release removes ch under the lock before closing it, so a concurrent
// Publish can never send on a closed channel.
func (b *Broker) release(taskID string, ch chan domain.HistoryEntry) {
	b.mu.Lock()
	if set, ok := b.subs[taskID]; ok {
		delete(set, ch)
		if len(set) == 0 {
			delete(b.subs, taskID)
		}
	}
	b.mu.Unlock()
	close(ch)
}

// Publish delivers e to every subscriber of its task.
func (b *Broker) Publish(e domain.HistoryEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[e.TaskID] {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribers reports the live subscription count for a task.
func (b *Broker) Subscribers(taskID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[taskID])
}
