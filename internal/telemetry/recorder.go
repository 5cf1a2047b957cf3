package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"sakinah/internal/bus"
	"sakinah/internal/model"
)

const (
	historyDays = 30
	appendWait  = 5 * time.Second
)

// Recorder turns bus traffic into completion counts per local day and
// appends progress events to a Log. The first task and streak snapshots it
// sees are baselines: they were recorded by an earlier run.
type Recorder struct {
	mu         sync.Mutex
	log        Log
	loc        *time.Location
	logger     *slog.Logger
	completed  map[model.Date]map[model.TaskID]bool
	primed     bool
	lastStreak *model.StreakState
}

func NewRecorder(log Log, loc *time.Location, logger *slog.Logger) *Recorder {
	if log == nil {
		log = NewMemoryLog()
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		log:       log,
		loc:       loc,
		logger:    logger.With("component", "telemetry"),
		completed: map[model.Date]map[model.TaskID]bool{},
	}
}

// Attach subscribes to both channels. The returned function detaches.
func (r *Recorder) Attach(b *bus.Bus) func() {
	offTasks := b.OnTasksChanged(r.ObserveTasks)
	offStreak := b.OnStreakChanged(r.ObserveStreak)
	return func() {
		offTasks()
		offStreak()
	}
}

// Rebase makes the next snapshots baselines again. Call it when the session
// switches to another user's records.
func (r *Recorder) Rebase() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.primed = false
	r.lastStreak = nil
	r.completed = map[model.Date]map[model.TaskID]bool{}
}

// ObserveTasks replaces the completion set of the event's day with the
// tasks completed on it. Earlier days are left as they were last seen.
func (r *Recorder) ObserveTasks(ev bus.TasksEvent) {
	day := model.DateOf(ev.At, r.loc)
	now := make(map[model.TaskID]bool)
	for _, t := range ev.Tasks {
		if t.CompletedOn(day, r.loc) {
			now[t.ID] = true
		}
	}

	r.mu.Lock()
	before := r.completed[day]
	baseline := !r.primed
	r.primed = true
	r.completed[day] = now
	r.pruneLocked(day)
	r.mu.Unlock()

	if baseline {
		return
	}
	for id := range now {
		if !before[id] {
			r.record(Event{Type: EventTaskCompleted, At: ev.At, Date: day, TaskID: id})
		}
	}
	for id := range before {
		if !now[id] {
			r.record(Event{Type: EventTaskUncompleted, At: ev.At, Date: day, TaskID: id})
		}
	}
}

func (r *Recorder) ObserveStreak(ev bus.StreakEvent) {
	r.mu.Lock()
	prev := r.lastStreak
	cur := ev.State.Clone()
	r.lastStreak = &cur
	r.mu.Unlock()

	if prev == nil {
		return
	}
	for _, c := range cur.YellowCards {
		if !prev.HasCardOn(c.Date) {
			r.record(Event{Type: EventYellowCard, At: ev.At, Date: c.Date, Reason: c.Reason})
		}
	}
	if last := cur.LastCompleted(); last != "" && last != prev.LastCompleted() {
		r.record(Event{Type: EventDayCompleted, At: ev.At, Date: last, Streak: cur.StreakCount})
	}
	if prev.StreakCount > 0 && cur.StreakCount == 0 {
		r.record(Event{Type: EventStreakReset, At: ev.At, Date: model.DateOf(ev.At, r.loc), Streak: prev.StreakCount})
	}
}

// Weekly returns seven points ending today, oldest first.
func (r *Recorder) Weekly(today model.Date) []DayPoint {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]DayPoint, 0, 7)
	for i := 6; i >= 0; i-- {
		d := today.AddDays(-i)
		out = append(out, DayPoint{Date: d, Completed: len(r.completed[d])})
	}
	return out
}

// Summary totals the logged events of the days days ending today.
func (r *Recorder) Summary(ctx context.Context, today model.Date, days int) (Summary, error) {
	if days < 1 {
		return Summary{}, fmt.Errorf("days must be at least 1, got %d", days)
	}
	from := today.AddDays(-(days - 1))
	events, err := r.log.Since(ctx, from.Start(r.loc))
	if err != nil {
		return Summary{}, fmt.Errorf("read progress log: %w", err)
	}
	return Summarize(events, from, today), nil
}

func (r *Recorder) pruneLocked(today model.Date) {
	cutoff := today.AddDays(-historyDays)
	for d := range r.completed {
		if d.Before(cutoff) {
			delete(r.completed, d)
		}
	}
}

func (r *Recorder) record(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), appendWait)
	defer cancel()
	if err := r.log.Append(ctx, ev); err != nil {
		r.logger.Warn("progress event not recorded", "type", string(ev.Type), "error", err)
	}
}
