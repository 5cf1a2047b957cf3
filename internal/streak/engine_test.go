package streak

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sakinah/internal/bus"
	"sakinah/internal/clock"
	"sakinah/internal/model"
	"sakinah/internal/storage"
	"sakinah/internal/storage/memory"
	"sakinah/internal/task"
)

var makkah = time.FixedZone("AST", 3*60*60)

// today is 2026-03-10 in every test unless the clock is moved.
var morning = time.Date(2026, 3, 10, 9, 0, 0, 0, makkah)

const today = model.Date("2026-03-10")

type fixture struct {
	engine *Engine
	store  *memory.Store
	writer *storage.Writer
	bus    *bus.Bus
	clock  *clock.FakeClock
	logger *slog.Logger
}

func newFixture(t *testing.T, seed *model.StreakState) *fixture {
	t.Helper()
	f := &fixture{
		store:  memory.New(),
		clock:  clock.NewFakeClock(morning),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	f.writer = storage.NewWriter(storage.WriterOptions{Logger: f.logger})
	f.bus = bus.New(f.logger)
	if seed != nil {
		require.NoError(t, f.store.WriteStreak(context.Background(), model.Identity{}, *seed))
	}
	f.engine = NewEngine(Options{
		Adapter:  f.store,
		Writer:   f.writer,
		Bus:      f.bus,
		Clock:    f.clock,
		Location: makkah,
		Logger:   f.logger,
	})
	f.engine.Load(context.Background())
	return f
}

func (f *fixture) persisted(t *testing.T) model.StreakState {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.writer.Flush(ctx))
	st, err := f.store.ReadStreak(context.Background(), model.Identity{})
	require.NoError(t, err)
	return st
}

func datePtr(d model.Date) *model.Date { return &d }

func stateWith(count int, last model.Date, cards ...model.Date) *model.StreakState {
	st := model.NewStreakState("2026-01-01")
	st.StreakCount = count
	if last != "" {
		st.LastCompletedDate = datePtr(last)
	}
	for _, d := range cards {
		st.YellowCards = append(st.YellowCards, model.YellowCard{Date: d, Reason: model.ReasonNoTaskCompleted})
	}
	return &st
}

func doneAt(id string, p model.Priority, at time.Time) model.Task {
	return model.Task{ID: model.TaskID(id), Title: id, Category: model.CategoryWorship, Priority: p, Completed: true, CompletedAt: &at}
}

func open(id string, p model.Priority) model.Task {
	return model.Task{ID: model.TaskID(id), Title: id, Category: model.CategoryWorship, Priority: p}
}

func TestEngine_CompletedDayExtendsStreakFromYesterday(t *testing.T) {
	f := newFixture(t, stateWith(4, today.AddDays(-1)))

	st := f.engine.Evaluate([]model.Task{doneAt("fajr", model.PriorityCritical, morning)})
	assert.Equal(t, model.StatusCompleted, st.TodayStatus)
	assert.Equal(t, 5, st.StreakCount)
	assert.Equal(t, today, st.LastCompleted())
	assert.Equal(t, st, f.persisted(t))
}

func TestEngine_PendingUntilBoundary(t *testing.T) {
	f := newFixture(t, stateWith(4, today.AddDays(-1)))

	st := f.engine.Evaluate([]model.Task{open("fajr", model.PriorityCritical)})
	assert.Equal(t, model.StatusPending, st.TodayStatus)
	assert.Equal(t, 4, st.StreakCount)
	assert.Empty(t, st.YellowCards)
}

func TestEngine_CriticalMustAllBeDone(t *testing.T) {
	f := newFixture(t, nil)

	st := f.engine.Evaluate([]model.Task{
		doneAt("quran", model.PriorityRoutine, morning),
		open("fajr", model.PriorityCritical),
	})
	assert.Equal(t, model.StatusPending, st.TodayStatus)

	st = f.engine.Evaluate([]model.Task{doneAt("quran", model.PriorityRoutine, morning)})
	assert.Equal(t, model.StatusCompleted, st.TodayStatus, "no critical tasks is vacuously done")

	st = f.engine.Evaluate(nil)
	assert.Equal(t, model.StatusPending, st.TodayStatus, "nothing done is never a success")
}

func TestEngine_StaleCompletionDoesNotCountForToday(t *testing.T) {
	f := newFixture(t, nil)
	yesterday := morning.AddDate(0, 0, -1)

	st := f.engine.Evaluate([]model.Task{doneAt("fajr", model.PriorityCritical, yesterday)})
	assert.Equal(t, model.StatusPending, st.TodayStatus)
	assert.Equal(t, 0, st.StreakCount)
}

func TestEngine_StreakMovesOncePerDay(t *testing.T) {
	f := newFixture(t, stateWith(2, today.AddDays(-1)))
	ts := task.NewStore(task.Options{
		Adapter:  f.store,
		Writer:   f.writer,
		Bus:      f.bus,
		Clock:    f.clock,
		Location: makkah,
		Logger:   f.logger,
		Seed:     []task.Seed{{Title: "Fajr", Category: model.CategoryWorship, Priority: model.PriorityCritical}},
	})
	f.engine.Attach(f.bus)
	ts.Load(context.Background())
	id := ts.Tasks()[0].ID

	for i := 0; i < 7; i++ {
		_, err := ts.Toggle(context.Background(), id)
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
	}

	st := f.engine.State()
	assert.Equal(t, 3, st.StreakCount)
	assert.Equal(t, model.StatusCompleted, st.TodayStatus)
}

func TestEngine_GapRestartsAtOne(t *testing.T) {
	f := newFixture(t, stateWith(9, today.AddDays(-3)))

	st := f.engine.Evaluate([]model.Task{doneAt("fajr", model.PriorityCritical, morning)})
	assert.Equal(t, 1, st.StreakCount)
	assert.Equal(t, today, st.LastCompleted())
}

func TestEngine_ZeroStreakStartsAtOne(t *testing.T) {
	f := newFixture(t, stateWith(0, today.AddDays(-6)))

	st := f.engine.Evaluate([]model.Task{doneAt("fajr", model.PriorityCritical, morning)})
	assert.Equal(t, 1, st.StreakCount)

	fresh := newFixture(t, nil)
	st = fresh.engine.Evaluate([]model.Task{doneAt("fajr", model.PriorityCritical, morning)})
	assert.Equal(t, 1, st.StreakCount)
}

func TestEngine_CloseDayIssuesOneCard(t *testing.T) {
	f := newFixture(t, stateWith(3, today.AddDays(-2)))
	yesterday := today.AddDays(-1)

	require.True(t, f.engine.CloseDay(context.Background(), yesterday))
	assert.False(t, f.engine.CloseDay(context.Background(), yesterday))

	st := f.engine.State()
	require.Len(t, st.YellowCards, 1)
	assert.Equal(t, model.YellowCard{Date: yesterday, Reason: model.ReasonNoTaskCompleted}, st.YellowCards[0])
	assert.Equal(t, model.StatusFailed, st.TodayStatus)
	assert.Equal(t, 3, st.StreakCount, "one card does not reset")
	assert.Equal(t, st, f.persisted(t))
}

func TestEngine_CloseDaySkipsCompletedDays(t *testing.T) {
	f := newFixture(t, stateWith(3, today.AddDays(-1)))

	assert.False(t, f.engine.CloseDay(context.Background(), today.AddDays(-1)))
	assert.Empty(t, f.engine.State().YellowCards)
}

func TestEngine_CloseDaySkipsTodayAndDaysBeforeCreation(t *testing.T) {
	f := newFixture(t, nil)

	assert.False(t, f.engine.CloseDay(context.Background(), today))
	assert.False(t, f.engine.CloseDay(context.Background(), today.AddDays(-1)), "state was created today")
	assert.Empty(t, f.engine.State().YellowCards)
}

func TestEngine_CloseDayRecordsIncompleteCritical(t *testing.T) {
	f := newFixture(t, stateWith(1, today.AddDays(-1)))
	late := morning.Add(12 * time.Hour)
	f.clock.Set(late)
	f.engine.Evaluate([]model.Task{
		doneAt("quran", model.PriorityRoutine, late),
		open("fajr", model.PriorityCritical),
	})

	f.clock.Set(morning.AddDate(0, 0, 1))
	require.True(t, f.engine.CloseDay(context.Background(), today))
	st := f.engine.State()
	require.Len(t, st.YellowCards, 1)
	assert.Equal(t, model.ReasonIncompleteCritical, st.YellowCards[0].Reason)
}

func TestEngine_ThirdCardInWeekResetsStreak(t *testing.T) {
	f := newFixture(t, stateWith(12, today.AddDays(-2), today.AddDays(-6), today.AddDays(-4)))
	require.True(t, f.engine.IsStreakAtRisk())
	require.False(t, f.engine.ShouldResetStreak())

	var events []bus.StreakEvent
	f.bus.OnStreakChanged(func(ev bus.StreakEvent) { events = append(events, ev) })

	require.True(t, f.engine.CloseDay(context.Background(), today.AddDays(-1)))
	st := f.engine.State()
	assert.Equal(t, 0, st.StreakCount)
	assert.Nil(t, st.LastCompletedDate)
	assert.True(t, f.engine.ShouldResetStreak())
	assert.Len(t, f.engine.YellowCardsThisWeek(), 3)

	require.Len(t, events, 1)
	assert.Equal(t, 3, events[0].YellowCardsThisWeek)
	assert.Equal(t, 0, events[0].State.StreakCount)
}

func TestEngine_CardsOutsideWeekDoNotCount(t *testing.T) {
	f := newFixture(t, stateWith(12, today.AddDays(-2), today.AddDays(-7), today.AddDays(-9)))

	require.True(t, f.engine.CloseDay(context.Background(), today.AddDays(-1)))
	assert.Equal(t, 12, f.engine.State().StreakCount)
	assert.Len(t, f.engine.YellowCardsThisWeek(), 1)
}

func TestRules_PenaltyThreshold(t *testing.T) {
	rules := DefaultRules()
	days := []model.Date{today.AddDays(-1), today.AddDays(-3), today.AddDays(-5)}

	assert.True(t, rules.ShouldReset(*stateWith(5, "", days...), today))
	for skip := range days {
		var rest []model.Date
		for i, d := range days {
			if i != skip {
				rest = append(rest, d)
			}
		}
		st := *stateWith(5, "", rest...)
		assert.False(t, rules.ShouldReset(st, today), "without %s", days[skip])
		assert.True(t, rules.AtRisk(st, today))
	}
}

func TestEngine_LoadPrunesOldCards(t *testing.T) {
	f := newFixture(t, stateWith(0, "", today.AddDays(-40), today.AddDays(-31), today.AddDays(-30), today.AddDays(-10)))

	st := f.engine.State()
	require.Len(t, st.YellowCards, 2)
	assert.Equal(t, today.AddDays(-30), st.YellowCards[0].Date)
	assert.Len(t, f.persisted(t).YellowCards, 2)
}

func TestEngine_LoadMissingStartsFreshAndPersists(t *testing.T) {
	f := newFixture(t, nil)

	st := f.persisted(t)
	assert.Equal(t, today, st.CreatedOn)
	assert.Equal(t, model.StatusPending, st.TodayStatus)
	assert.Equal(t, 0, st.StreakCount)
}

func TestEngine_LoadClearsCompletedStatusFromEarlierDay(t *testing.T) {
	seed := stateWith(4, today.AddDays(-1))
	seed.TodayStatus = model.StatusCompleted
	f := newFixture(t, seed)

	assert.Equal(t, model.StatusPending, f.engine.State().TodayStatus)
	assert.Equal(t, 4, f.engine.State().StreakCount)
}

func TestAdvance_DoesNotMutateInput(t *testing.T) {
	in := *stateWith(1, today.AddDays(-1))
	out := Advance(in, true, true, today)

	assert.Equal(t, 2, out.StreakCount)
	assert.Equal(t, 1, in.StreakCount)
	assert.Equal(t, today.AddDays(-1), in.LastCompleted())
}

func TestEngine_CloseMissedDaysStartsAfterLastKnownOutcome(t *testing.T) {
	// completed on the 6th, carded on the 7th, nothing since
	f := newFixture(t, stateWith(5, today.AddDays(-4), today.AddDays(-3)))

	closed := f.engine.CloseMissedDays(context.Background())
	assert.Equal(t, []model.Date{today.AddDays(-2), today.AddDays(-1)}, closed)

	st := f.engine.State()
	assert.Len(t, st.YellowCards, 3)
	assert.Equal(t, 0, st.StreakCount, "third card in the week resets")
	assert.Empty(t, f.engine.CloseMissedDays(context.Background()))
}

func TestEngine_CloseMissedDaysUsesObservedSnapshot(t *testing.T) {
	f := newFixture(t, stateWith(2, today.AddDays(-2)))
	lastNight := morning.Add(-12 * time.Hour)
	f.engine.Observe([]model.Task{
		doneAt("quran", model.PriorityRoutine, lastNight),
		open("fajr", model.PriorityCritical),
	})

	closed := f.engine.CloseMissedDays(context.Background())
	require.Equal(t, []model.Date{today.AddDays(-1)}, closed)
	assert.Equal(t, model.ReasonIncompleteCritical, f.engine.State().YellowCards[0].Reason)
}

func TestEngine_SuccessfulDaySurvivesLateBoundaryCheck(t *testing.T) {
	f := newFixture(t, stateWith(3, today.AddDays(-1)))

	// the next day is finished before the day watcher gets to yesterday
	st := f.engine.Evaluate([]model.Task{doneAt("fajr", model.PriorityCritical, morning)})
	require.Equal(t, 4, st.StreakCount)
	require.Equal(t, today, st.LastCompleted())

	assert.False(t, f.engine.CloseDay(context.Background(), today.AddDays(-1)))
	assert.Empty(t, f.engine.CloseMissedDays(context.Background()))

	st = f.engine.State()
	assert.Empty(t, st.YellowCards)
	assert.Equal(t, 4, st.StreakCount)
	assert.True(t, st.Succeeded(today.AddDays(-1)))
	assert.Equal(t, []model.Date{today.AddDays(-1), today}, st.CompletedDates)
}

func TestEngine_EvaluateSettlesElapsedDaysFirst(t *testing.T) {
	f := newFixture(t, stateWith(3, today.AddDays(-2)))
	f.clock.Set(morning.AddDate(0, 0, -1).Add(10 * time.Hour))
	f.engine.Evaluate([]model.Task{
		doneAt("quran", model.PriorityRoutine, f.clock.Now()),
		open("fajr", model.PriorityCritical),
	})

	f.clock.Set(morning)
	st := f.engine.Evaluate([]model.Task{doneAt("fajr", model.PriorityCritical, morning)})

	require.Len(t, st.YellowCards, 1)
	assert.Equal(t, model.YellowCard{Date: today.AddDays(-1), Reason: model.ReasonIncompleteCritical}, st.YellowCards[0])
	assert.Equal(t, 1, st.StreakCount, "the gap restarts the streak")
	assert.Equal(t, model.StatusCompleted, st.TodayStatus)
	assert.False(t, f.engine.CloseDay(context.Background(), today.AddDays(-1)))
	assert.Equal(t, st, f.persisted(t))
}

func TestEngine_LoadPrunesOldCompletedDates(t *testing.T) {
	seed := stateWith(2, today.AddDays(-1))
	seed.CompletedDates = []model.Date{today.AddDays(-45), today.AddDays(-2), today.AddDays(-1)}
	f := newFixture(t, seed)

	assert.Equal(t, []model.Date{today.AddDays(-2), today.AddDays(-1)}, f.engine.State().CompletedDates)
}
