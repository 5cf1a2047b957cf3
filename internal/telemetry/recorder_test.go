package telemetry

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sakinah/internal/bus"
	"sakinah/internal/model"
)

var makkah = time.FixedZone("AST", 3*60*60)

func newRecorder(t *testing.T) (*Recorder, *bus.Bus, *MemoryLog) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := bus.New(logger)
	log := NewMemoryLog()
	r := NewRecorder(log, makkah, logger)
	r.Attach(b)
	return r, b, log
}

func completed(id string, at time.Time) model.Task {
	return model.Task{ID: model.TaskID(id), Completed: true, CompletedAt: &at}
}

func TestRecorder_WeeklyCountsCompletionsPerDay(t *testing.T) {
	r, b, _ := newRecorder(t)
	mon := time.Date(2026, 3, 9, 8, 0, 0, 0, makkah)
	tue := mon.AddDate(0, 0, 1)

	b.Publish(bus.TasksChanged, bus.TasksEvent{At: mon, Tasks: []model.Task{
		completed("a", mon), completed("b", mon), {ID: "c"},
	}})
	b.Publish(bus.TasksChanged, bus.TasksEvent{At: tue, Tasks: []model.Task{
		completed("a", tue), {ID: "b"}, {ID: "c"},
	}})

	week := r.Weekly("2026-03-10")
	require.Len(t, week, 7)
	assert.Equal(t, model.Date("2026-03-04"), week[0].Date)
	assert.Equal(t, DayPoint{Date: "2026-03-09", Completed: 2}, week[5])
	assert.Equal(t, DayPoint{Date: "2026-03-10", Completed: 1}, week[6])
}

func TestRecorder_FirstSnapshotIsABaseline(t *testing.T) {
	r, b, log := newRecorder(t)
	at := time.Date(2026, 3, 10, 8, 0, 0, 0, makkah)

	// loaded from storage: completed in an earlier run
	b.Publish(bus.TasksChanged, bus.TasksEvent{At: at, Tasks: []model.Task{completed("a", at), {ID: "b"}}})
	b.Publish(bus.TasksChanged, bus.TasksEvent{At: at, Tasks: []model.Task{completed("a", at), completed("b", at)}})
	b.Publish(bus.TasksChanged, bus.TasksEvent{At: at, Tasks: []model.Task{{ID: "a"}, completed("b", at)}})

	assert.Equal(t, 1, r.Weekly("2026-03-10")[6].Completed)

	events, err := log.Since(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, Event{ID: 1, Type: EventTaskCompleted, At: at, Date: "2026-03-10", TaskID: "b"}, events[0])
	assert.Equal(t, Event{ID: 2, Type: EventTaskUncompleted, At: at, Date: "2026-03-10", TaskID: "a"}, events[1])

	r.Rebase()
	b.Publish(bus.TasksChanged, bus.TasksEvent{At: at, Tasks: []model.Task{completed("z", at)}})
	events, err = log.Since(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Len(t, events, 2, "a rebased snapshot is not a completion")
}

func TestRecorder_StreakEvents(t *testing.T) {
	r, b, _ := newRecorder(t)
	at := time.Date(2026, 3, 10, 0, 1, 0, 0, makkah)
	last := model.Date("2026-03-08")

	st := model.NewStreakState("2026-03-01")
	st.StreakCount = 4
	st.LastCompletedDate = &last
	st.YellowCards = []model.YellowCard{
		{Date: "2026-03-05", Reason: model.ReasonNoTaskCompleted},
		{Date: "2026-03-07", Reason: model.ReasonNoTaskCompleted},
	}
	b.Publish(bus.StreakChanged, bus.StreakEvent{State: st, At: at})

	next := st.Clone()
	next.YellowCards = append(next.YellowCards, model.YellowCard{Date: "2026-03-09", Reason: model.ReasonIncompleteCritical})
	next.StreakCount = 0
	next.LastCompletedDate = nil
	b.Publish(bus.StreakChanged, bus.StreakEvent{State: next, At: at})

	sum, err := r.Summary(context.Background(), "2026-03-10", 7)
	require.NoError(t, err)
	assert.Equal(t, model.Date("2026-03-04"), sum.From)
	assert.Equal(t, model.Date("2026-03-10"), sum.To)
	assert.Equal(t, 1, sum.YellowCards)
	assert.Equal(t, 1, sum.CardsByReason[model.ReasonIncompleteCritical])
	assert.Equal(t, 1, sum.StreakResets)

	_, err = r.Summary(context.Background(), "2026-03-10", 0)
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	at := time.Date(2026, 3, 10, 8, 0, 0, 0, makkah)
	sum := Summarize([]Event{
		{Type: EventTaskCompleted, At: at, TaskID: "a"},
		{Type: EventTaskCompleted, At: at, TaskID: "b"},
		{Type: EventTaskUncompleted, At: at, TaskID: "b"},
		{Type: EventDayCompleted, At: at, Date: "2026-03-09", Streak: 3},
		{Type: EventDayCompleted, At: at, Date: "2026-03-10", Streak: 4},
		{Type: EventYellowCard, At: at, Date: "2026-03-08", Reason: model.ReasonNoTaskCompleted},
	}, "2026-03-04", "2026-03-10")

	assert.Equal(t, 1, sum.TaskCompletions)
	assert.Equal(t, 2, sum.DaysCompleted)
	assert.Equal(t, 4, sum.BestStreak)
	assert.Equal(t, 1, sum.CardsByReason[model.ReasonNoTaskCompleted])
	assert.Equal(t, 2, sum.EventCounts[EventTaskCompleted])

	assert.Equal(t, 0, Summarize([]Event{{Type: EventTaskUncompleted}}, "", "").TaskCompletions)
}

func TestMemoryLog_FiltersByTimeAndType(t *testing.T) {
	log := NewMemoryLog()
	ctx := context.Background()
	t0 := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	require.NoError(t, log.Append(ctx, Event{Type: EventTaskCompleted, At: t0, TaskID: "a"}))
	require.NoError(t, log.Append(ctx, Event{Type: EventYellowCard, At: t0.Add(time.Hour), Reason: model.ReasonNoTaskCompleted}))

	got, err := log.Since(ctx, t0.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, EventYellowCard, got[0].Type)
	assert.Equal(t, int64(2), got[0].ID)

	got, err = log.Since(ctx, time.Time{}, EventTaskCompleted)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.TaskID("a"), got[0].TaskID)
}
