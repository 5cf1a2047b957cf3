package bus

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus() *Bus {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBus_DeliversInRegistrationOrder(t *testing.T) {
	b := newTestBus()
	var got []string

	b.Subscribe(TasksChanged, func(Event) { got = append(got, "first") })
	b.Subscribe(TasksChanged, func(Event) { got = append(got, "second") })
	b.Subscribe(StreakChanged, func(Event) { got = append(got, "other-channel") })

	b.Publish(TasksChanged, nil)

	assert.Equal(t, []string{"first", "second"}, got)
}

func TestBus_PanickingSubscriberDoesNotBlockOthers(t *testing.T) {
	b := newTestBus()
	called := 0

	b.Subscribe(StreakChanged, func(Event) { called++ })
	b.Subscribe(StreakChanged, func(Event) { panic("boom") })
	b.Subscribe(StreakChanged, func(Event) { called++ })

	require.NotPanics(t, func() { b.Publish(StreakChanged, StreakEvent{}) })
	assert.Equal(t, 2, called)
}

func TestBus_UnsubscribeIsIdempotent(t *testing.T) {
	b := newTestBus()
	called := 0

	unsub := b.Subscribe(TasksChanged, func(Event) { called++ })
	b.Subscribe(TasksChanged, func(Event) { called++ })

	unsub()
	unsub()

	b.Publish(TasksChanged, nil)
	assert.Equal(t, 1, called)
}

func TestBus_TypedHelpersFilterPayload(t *testing.T) {
	b := newTestBus()
	var tasksSeen []TasksEvent
	var streakSeen []StreakEvent

	b.OnTasksChanged(func(ev TasksEvent) { tasksSeen = append(tasksSeen, ev) })
	b.OnStreakChanged(func(ev StreakEvent) { streakSeen = append(streakSeen, ev) })

	b.Publish(TasksChanged, TasksEvent{HasUncompletedTasks: true})
	b.Publish(TasksChanged, "not a tasks event")
	b.Publish(StreakChanged, StreakEvent{YellowCardsThisWeek: 2})

	require.Len(t, tasksSeen, 1)
	assert.True(t, tasksSeen[0].HasUncompletedTasks)
	require.Len(t, streakSeen, 1)
	assert.Equal(t, 2, streakSeen[0].YellowCardsThisWeek)
}

func TestBus_HandlerMaySubscribeDuringPublish(t *testing.T) {
	b := newTestBus()
	late := 0

	b.Subscribe(TasksChanged, func(Event) {
		b.Subscribe(TasksChanged, func(Event) { late++ })
	})

	b.Publish(TasksChanged, nil)
	assert.Equal(t, 0, late)

	b.Publish(TasksChanged, nil)
	assert.Equal(t, 1, late)
}
