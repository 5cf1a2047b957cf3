package telemetry

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Log is an append-only store of progress events.
type Log interface {
	Append(ctx context.Context, ev Event) error
	// Since returns events at or after since, oldest first. With no types
	// every type is returned.
	Since(ctx context.Context, since time.Time, types ...EventType) ([]Event, error)
}

// MemoryLog keeps events for the life of the process.
type MemoryLog struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (l *MemoryLog) Append(_ context.Context, ev Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	ev.ID = int64(len(l.events) + 1)
	l.events = append(l.events, ev)
	return nil
}

func (l *MemoryLog) Since(_ context.Context, since time.Time, types ...EventType) ([]Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := []Event{}
	for _, ev := range l.events {
		if ev.At.Before(since) {
			continue
		}
		if len(types) > 0 && !slices.Contains(types, ev.Type) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}
