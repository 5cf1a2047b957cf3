// Package streak derives the daily outcome from the task collection and
// keeps the streak, yellow cards and penalty resets for one identity.
//
// The engine only reads tasks. It learns about them from tasks-changed
// events and announces its own changes on streak-changed. Persistence is
// handed to the shared writer and failures are logged, never returned.
package streak

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"sakinah/internal/bus"
	"sakinah/internal/clock"
	"sakinah/internal/model"
	"sakinah/internal/storage"
)

type Options struct {
	Adapter  storage.Adapter
	Identity model.Identity
	Writer   *storage.Writer
	Bus      *bus.Bus
	Clock    clock.Clock
	Location *time.Location
	Logger   *slog.Logger
	Rules    Rules
}

type Engine struct {
	mu        sync.Mutex
	state     model.StreakState
	lastTasks []model.Task
	adapter   storage.Adapter
	identity  model.Identity

	writer *storage.Writer
	bus    *bus.Bus
	clock  clock.Clock
	loc    *time.Location
	logger *slog.Logger
	rules  Rules
}

func NewEngine(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Writer == nil {
		opts.Writer = storage.NewWriter(storage.WriterOptions{Logger: opts.Logger})
	}
	e := &Engine{
		adapter:  opts.Adapter,
		identity: opts.Identity,
		writer:   opts.Writer,
		bus:      opts.Bus,
		clock:    opts.Clock,
		loc:      opts.Location,
		logger:   opts.Logger.With("component", "streak_engine"),
		rules:    opts.Rules.withDefaults(),
	}
	e.state = model.NewStreakState(e.today())
	return e
}

func (e *Engine) today() model.Date {
	return model.DateOf(e.clock.Now(), e.loc)
}

func (e *Engine) Rules() Rules { return e.rules }

// Load reads the state for the active identity and prunes expired cards.
// A missing record starts a fresh state and persists it; other read
// failures start a fresh state in memory only.
func (e *Engine) Load(ctx context.Context) model.StreakState {
	e.mu.Lock()
	adapter, identity := e.adapter, e.identity
	e.mu.Unlock()

	today := e.today()
	st, err := adapter.ReadStreak(ctx, identity)
	persist := false
	readFailed := false
	switch {
	case errors.Is(err, storage.ErrNotFound):
		e.logger.Info("no streak record; starting fresh", "user", identity.UserID)
		st = model.NewStreakState(today)
		persist = true
	case err != nil:
		e.logger.Warn("streak load failed; starting fresh", "error", &storage.ReadError{Op: "streak", Err: err})
		st = model.NewStreakState(today)
		readFailed = true
	}
	st.Normalize()

	st, dropped := e.rules.Prune(st, today)
	if dropped > 0 {
		e.logger.Info("pruned expired streak history", "dropped", dropped)
		persist = true
	}
	if st.TodayStatus == model.StatusCompleted && st.LastCompleted() != today {
		st.TodayStatus = model.StatusPending
		persist = true
	}

	e.mu.Lock()
	e.state = st
	snapshot := st.Clone()
	if persist && !readFailed {
		e.persistLocked(st.Clone())
	}
	e.mu.Unlock()

	e.publish(snapshot, today)
	return snapshot
}

// Rebind switches the engine to another backend and identity. Callers Load
// afterwards.
func (e *Engine) Rebind(adapter storage.Adapter, identity model.Identity) {
	e.mu.Lock()
	e.adapter = adapter
	e.identity = identity
	e.mu.Unlock()
}

// Evaluate applies the live transition rules to a task snapshot. Days that
// ended since the last settled outcome are closed first, against the
// snapshot seen before this one, so a success recorded today never hides a
// failed yesterday.
func (e *Engine) Evaluate(tasks []model.Task) model.StreakState {
	today := e.today()
	criticalDone, anyDone := DayOutcome(tasks, today, e.loc)

	e.mu.Lock()
	settled := e.settleElapsedLocked(today)
	e.lastTasks = model.CloneTasks(tasks)
	next := Advance(e.state, criticalDone, anyDone, today)
	changed := len(settled) > 0 || !reflect.DeepEqual(next, e.state)
	if changed {
		e.state = next
		e.persistLocked(next.Clone())
	}
	snapshot := e.state.Clone()
	e.mu.Unlock()

	if changed {
		e.logger.Debug("streak evaluated", "status", snapshot.TodayStatus, "streak", snapshot.StreakCount, "settled", len(settled))
		e.publish(snapshot, today)
	}
	return snapshot
}

// CloseDay runs the boundary check for an elapsed day. If day did not
// succeed and has no card yet, one card is issued, the status becomes
// failed and the penalty rule runs. Today, future days and days before the
// state was created are skipped. It reports whether a card was issued.
func (e *Engine) CloseDay(ctx context.Context, day model.Date) bool {
	today := e.today()

	e.mu.Lock()
	if !e.closeDayLocked(day, today) {
		e.mu.Unlock()
		return false
	}
	snapshot := e.state.Clone()
	e.persistLocked(e.state.Clone())
	e.mu.Unlock()

	e.publish(snapshot, today)
	return true
}

// Observe records a task snapshot for choosing card reasons without
// evaluating it.
func (e *Engine) Observe(tasks []model.Task) {
	e.mu.Lock()
	e.lastTasks = model.CloneTasks(tasks)
	e.mu.Unlock()
}

// CloseMissedDays closes every elapsed day after the last one whose outcome
// is already recorded, bounded by the retention window. It covers days that
// ended while nothing was running.
func (e *Engine) CloseMissedDays(ctx context.Context) []model.Date {
	today := e.today()

	e.mu.Lock()
	closed := e.settleElapsedLocked(today)
	if len(closed) == 0 {
		e.mu.Unlock()
		return nil
	}
	snapshot := e.state.Clone()
	e.persistLocked(e.state.Clone())
	e.mu.Unlock()

	e.publish(snapshot, today)
	return closed
}

// settleElapsedLocked closes every day from the first unsettled one up to
// yesterday and returns the days that earned a card.
func (e *Engine) settleElapsedLocked(today model.Date) []model.Date {
	var closed []model.Date
	for d := e.rules.settleFrom(e.state, today); d.Before(today); d = d.AddDays(1) {
		if e.closeDayLocked(d, today) {
			closed = append(closed, d)
		}
	}
	return closed
}

// closeDayLocked issues a card for day when it is elapsed, unsettled and
// not a success. The caller persists and publishes.
func (e *Engine) closeDayLocked(day, today model.Date) bool {
	st := e.state
	if !day.Before(today) || day.Before(st.CreatedOn) || st.Succeeded(day) || st.HasCardOn(day) {
		return false
	}
	next := st.Clone()
	card := model.YellowCard{Date: day, Reason: cardReason(e.lastTasks, day, e.loc)}
	next.YellowCards = append(next.YellowCards, card)
	next.TodayStatus = model.StatusFailed
	reset := e.rules.applyPenalty(&next, today)
	e.state = next

	e.logger.Info("yellow card issued", "date", day, "reason", card.Reason, "streak_reset", reset)
	return true
}

func (e *Engine) State() model.StreakState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

func (e *Engine) YellowCardsThisWeek() []model.YellowCard {
	return e.rules.WeekCards(e.State(), e.today())
}

func (e *Engine) IsStreakAtRisk() bool {
	return e.rules.AtRisk(e.State(), e.today())
}

func (e *Engine) ShouldResetStreak() bool {
	return e.rules.ShouldReset(e.State(), e.today())
}

// Attach evaluates every tasks-changed event on b. The returned function
// detaches the engine.
func (e *Engine) Attach(b *bus.Bus) func() {
	return b.OnTasksChanged(func(ev bus.TasksEvent) {
		e.Evaluate(ev.Tasks)
	})
}

// persistLocked queues a write. Holding mu keeps queued writes in the same
// order as the state changes they record.
func (e *Engine) persistLocked(snapshot model.StreakState) {
	adapter, identity := e.adapter, e.identity
	e.writer.Submit("streak", func(ctx context.Context) error {
		return adapter.WriteStreak(ctx, identity, snapshot)
	})
}

func (e *Engine) publish(snapshot model.StreakState, today model.Date) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(bus.StreakChanged, bus.StreakEvent{
		State:               snapshot.Clone(),
		YellowCardsThisWeek: len(e.rules.WeekCards(snapshot, today)),
		At:                  e.clock.Now(),
	})
}
