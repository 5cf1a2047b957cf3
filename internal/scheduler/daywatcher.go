// Package scheduler runs the midnight boundary check.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"sakinah/internal/clock"
	"sakinah/internal/model"
)

const (
	DefaultInterval   = time.Minute
	DefaultMaxCatchUp = 30
)

// RolloverFunc is called once for every calendar day that has ended.
type RolloverFunc func(ctx context.Context, elapsed model.Date)

type Options struct {
	Clock    clock.Clock
	Location *time.Location
	Interval time.Duration
	// MaxCatchUp bounds how many elapsed days are replayed after a long sleep.
	MaxCatchUp int
	OnRollover RolloverFunc
	Logger     *slog.Logger
}

type DayWatcher struct {
	mu      sync.Mutex
	current model.Date

	clock      clock.Clock
	loc        *time.Location
	interval   time.Duration
	maxCatchUp int
	onRollover RolloverFunc
	logger     *slog.Logger
}

func NewDayWatcher(opts Options) *DayWatcher {
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxCatchUp <= 0 {
		opts.MaxCatchUp = DefaultMaxCatchUp
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &DayWatcher{
		current:    model.DateOf(opts.Clock.Now(), opts.Location),
		clock:      opts.Clock,
		loc:        opts.Location,
		interval:   opts.Interval,
		maxCatchUp: opts.MaxCatchUp,
		onRollover: opts.OnRollover,
		logger:     opts.Logger.With("component", "day_watcher"),
	}
}

// Current returns the day the watcher last observed.
func (w *DayWatcher) Current() model.Date {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Check compares now with the last observed day and fires the rollover hook
// for each day that ended in between, oldest first. It returns those days.
// A clock that moved backwards only updates the observed day.
func (w *DayWatcher) Check(ctx context.Context, now time.Time) []model.Date {
	w.mu.Lock()
	defer w.mu.Unlock()

	today := model.DateOf(now, w.loc)
	if today == w.current {
		return nil
	}
	if today.Before(w.current) {
		w.logger.Warn("clock moved backwards", "from", w.current, "to", today)
		w.current = today
		return nil
	}

	first := w.current
	if gap := first.DaysUntil(today); gap > w.maxCatchUp {
		first = today.AddDays(-w.maxCatchUp)
		w.logger.Warn("rollover catch-up truncated", "missed_days", gap, "replayed", w.maxCatchUp)
	}

	var elapsed []model.Date
	for d := first; d.Before(today); d = d.AddDays(1) {
		elapsed = append(elapsed, d)
	}
	w.current = today

	for _, d := range elapsed {
		w.logger.Info("day ended", "date", d)
		if w.onRollover != nil {
			w.onRollover(ctx, d)
		}
	}
	return elapsed
}

// Run checks on every interval until ctx is done.
func (w *DayWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("day watcher started", "interval", w.interval.String(), "today", w.Current())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Check(ctx, w.clock.Now())
		}
	}
}
