package engine

import (
	"context"
	"fmt"
	"sync"

	"atlas/internal/domain"
	"atlas/internal/stream"
)

// Timeline entry kinds.
const (
	KindChat   = "chat"
	KindChange = "change"
)

// TimelineEntry is a history row classified for rendering: chat messages
// interleave with field-change audit lines in one chronological feed.
// Display is a ready-to-render line so clients need no formatting logic.
type TimelineEntry struct {
	domain.HistoryEntry
	Kind    string `json:"kind" enum:"chat,change"`
	Display string `json:"display"`
}

// Timeline returns a task's full feed, oldest first, after a visibility
// check.
func (e *Engine) Timeline(ctx context.Context, viewer domain.Profile, taskID string) ([]TimelineEntry, error) {
	if _, err := e.GetTask(ctx, viewer, taskID); err != nil {
		return nil, err
	}
	entries, err := e.Repo.ListHistory(ctx, taskID)
	if err != nil {
		return nil, err
	}
	names := map[string]string{}
	actorName := func(id string) string {
		if n, ok := names[id]; ok {
			return n
		}
		n := id
		if p, err := e.Repo.GetProfile(ctx, id); err == nil {
			n = p.FullName
		}
		names[id] = n
		return n
	}

	out := make([]TimelineEntry, 0, len(entries))
	for _, h := range entries {
		kind := KindChange
		var display string
		switch {
		case h.IsChat():
			kind = KindChat
			display = h.NewValue
		case h.Comment != nil:
			display = *h.Comment
		default:
			display = fmt.Sprintf("[%s] %s: %s (%s)", actorName(h.ActorID), h.Field, h.NewValue, h.CreatedAt)
		}
		out = append(out, TimelineEntry{HistoryEntry: h, Kind: kind, Display: display})
	}
	return out, nil
}

// Viewer follows one task's live feed at a time. Opening a task closes the
// previous subscription, so a client flipping between tasks never holds
// more than one.
type Viewer struct {
	engine *Engine

	mu  sync.Mutex
	sub *stream.Subscription
}

func (e *Engine) NewViewer() *Viewer {
	return &Viewer{engine: e}
}

// Open subscribes to taskID's live feed, returning the backlog so far and
// a channel of entries appended after it. Any prior subscription held by
// this viewer is released before the new one is installed, so the single
// live feed holds at every point in between.
func (v *Viewer) Open(ctx context.Context, viewer domain.Profile, taskID string) ([]TimelineEntry, <-chan domain.HistoryEntry, error) {
	backlog, err := v.engine.Timeline(ctx, viewer, taskID)
	if err != nil {
		return nil, nil, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.sub != nil {
		v.sub.Close()
	}
	v.sub = v.engine.Stream.Subscribe(ctx, taskID)
	return backlog, v.sub.C, nil
}

// Close drops the current subscription, if any.
func (v *Viewer) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.sub != nil {
		v.sub.Close()
		v.sub = nil
	}
}
