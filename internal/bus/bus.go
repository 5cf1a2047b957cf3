// Package bus is the in-process change notification channel shared by the
// task store, the streak engine and their observers.
//
// Publication is synchronous and fire-and-forget: subscribers run on the
// publishing goroutine in registration order, and a panicking subscriber is
// recovered and logged without blocking the ones after it. Nothing survives a
// process restart.
package bus

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"sakinah/internal/model"
)

type Channel string

const (
	TasksChanged  Channel = "tasks-changed"
	StreakChanged Channel = "streak-changed"
)

type Event struct {
	Channel Channel
	Payload any
}

type Handler func(Event)

// TasksEvent is published on TasksChanged after every task mutation or load.
type TasksEvent struct {
	Tasks               []model.Task
	HasUncompletedTasks bool
	At                  time.Time
}

// StreakEvent is published on StreakChanged after every streak state change.
type StreakEvent struct {
	State               model.StreakState
	YellowCardsThisWeek int
	At                  time.Time
}

type subscriber struct {
	id      int
	handler Handler
}

type Bus struct {
	mu     sync.RWMutex
	subs   map[Channel][]subscriber
	nextID int
	logger *slog.Logger
}

func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   map[Channel][]subscriber{},
		logger: logger,
	}
}

// Subscribe registers h on ch and returns a function that removes it.
func (b *Bus) Subscribe(ch Channel, h Handler) (unsubscribe func()) {
	if h == nil {
		return func() {}
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[ch] = append(b.subs[ch], subscriber{id: id, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(ch, id) })
	}
}

func (b *Bus) remove(ch Channel, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cur := b.subs[ch]
	out := make([]subscriber, 0, len(cur))
	for _, s := range cur {
		if s.id != id {
			out = append(out, s)
		}
	}
	b.subs[ch] = out
}

func (b *Bus) Publish(ch Channel, payload any) {
	// Snapshot so handlers may subscribe or unsubscribe while being called.
	b.mu.RLock()
	subs := append([]subscriber(nil), b.subs[ch]...)
	b.mu.RUnlock()

	ev := Event{Channel: ch, Payload: payload}
	for _, s := range subs {
		b.deliver(s, ev)
	}
}

func (b *Bus) deliver(s subscriber, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			b.logger.Error("bus subscriber panicked",
				"channel", string(ev.Channel),
				"subscriber", s.id,
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()),
			)
		}
	}()
	s.handler(ev)
}

// OnTasksChanged subscribes a typed handler to TasksChanged.
func (b *Bus) OnTasksChanged(fn func(TasksEvent)) func() {
	return b.Subscribe(TasksChanged, func(ev Event) {
		if p, ok := ev.Payload.(TasksEvent); ok {
			fn(p)
		}
	})
}

// OnStreakChanged subscribes a typed handler to StreakChanged.
func (b *Bus) OnStreakChanged(fn func(StreakEvent)) func() {
	return b.Subscribe(StreakChanged, func(ev Event) {
		if p, ok := ev.Payload.(StreakEvent); ok {
			fn(p)
		}
	})
}
