// Package session wires the task store, the streak engine and their
// observers for one identity, and owns the switch between the local and
// remote backends.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"sakinah/internal/bus"
	"sakinah/internal/clock"
	"sakinah/internal/model"
	"sakinah/internal/storage"
	"sakinah/internal/streak"
	"sakinah/internal/task"
	"sakinah/internal/telemetry"
)

var (
	ErrNoLocalStore  = errors.New("session: local store is required")
	ErrAnonymous     = errors.New("session: identity has no user id")
	ErrNoRemoteStore = errors.New("session: no remote store configured")
)

type Options struct {
	Identity model.Identity
	Local    storage.Adapter
	// Remote may be nil, in which case every identity uses Local.
	Remote storage.Adapter

	Clock        clock.Clock
	Location     *time.Location
	Logger       *slog.Logger
	WriteTimeout time.Duration
	Seed         []task.Seed
	Rules        streak.Rules

	// Events receives progress events; nil keeps them in memory.
	Events telemetry.Log
}

// Reminder is the read model handed to the notification scheduler.
type Reminder struct {
	HasUncompletedTasks      bool `json:"hasUncompletedTasks"`
	StreakCount              int  `json:"streakCount"`
	YellowCardsThisWeekCount int  `json:"yellowCardsThisWeekCount"`
}

// Migration describes what Authenticate did with the local records.
type Migration string

const (
	MigrationAdopted    Migration = "adopted"
	MigrationRemoteWins Migration = "remote_wins"
)

type Session struct {
	mu       sync.Mutex
	identity model.Identity
	local    storage.Adapter
	remote   storage.Adapter

	Bus      *bus.Bus
	Writer   *storage.Writer
	Tasks    *task.Store
	Streak   *streak.Engine
	Progress *telemetry.Recorder

	clock  clock.Clock
	loc    *time.Location
	logger *slog.Logger
	detach []func()
}

// Open builds every component for opts.Identity, closes days that ended
// while nothing was running and loads both aggregates.
func Open(ctx context.Context, opts Options) (*Session, error) {
	if opts.Local == nil {
		return nil, ErrNoLocalStore
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	adapter := storage.Select(opts.Identity, opts.Local, opts.Remote)
	b := bus.New(opts.Logger)
	w := storage.NewWriter(storage.WriterOptions{Timeout: opts.WriteTimeout, Logger: opts.Logger})

	s := &Session{
		identity: opts.Identity,
		local:    opts.Local,
		remote:   opts.Remote,
		Bus:      b,
		Writer:   w,
		clock:    opts.Clock,
		loc:      opts.Location,
		logger:   opts.Logger,
	}
	s.Streak = streak.NewEngine(streak.Options{
		Adapter:  adapter,
		Identity: opts.Identity,
		Writer:   w,
		Bus:      b,
		Clock:    opts.Clock,
		Location: opts.Location,
		Logger:   opts.Logger,
		Rules:    opts.Rules,
	})
	s.Tasks = task.NewStore(task.Options{
		Adapter:  adapter,
		Identity: opts.Identity,
		Writer:   w,
		Bus:      b,
		Clock:    opts.Clock,
		Location: opts.Location,
		Logger:   opts.Logger,
		Seed:     opts.Seed,
	})
	s.Progress = telemetry.NewRecorder(opts.Events, opts.Location, opts.Logger)

	s.detach = append(s.detach, s.Progress.Attach(b), s.Streak.Attach(b))
	s.load(ctx, adapter, opts.Identity)

	s.logger.Info("session opened",
		"mode", storage.Mode(opts.Identity, opts.Remote),
		"user", opts.Identity.UserID,
		"tasks", len(s.Tasks.Tasks()),
		"streak", s.Streak.State().StreakCount,
	)
	return s, nil
}

// load reads the streak, settles elapsed days against the stored tasks as
// they were before the daily reset, then loads the tasks.
func (s *Session) load(ctx context.Context, adapter storage.Adapter, id model.Identity) {
	s.Streak.Load(ctx)
	if raw, err := adapter.ReadTasks(ctx, id); err == nil {
		s.Streak.Observe(raw)
	}
	if closed := s.Streak.CloseMissedDays(ctx); len(closed) > 0 {
		s.logger.Info("closed missed days", "days", len(closed), "first", closed[0])
	}
	s.Tasks.Load(ctx)
}

func (s *Session) Identity() model.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Mode reports "local" or "remote".
func (s *Session) Mode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return storage.Mode(s.identity, s.remote)
}

func (s *Session) Today() model.Date {
	return model.DateOf(s.clock.Now(), s.loc)
}

func (s *Session) Reminder() Reminder {
	return Reminder{
		HasUncompletedTasks:      s.Tasks.HasUncompletedTasks(),
		StreakCount:              s.Streak.State().StreakCount,
		YellowCardsThisWeekCount: len(s.Streak.YellowCardsThisWeek()),
	}
}

// Weekly returns the seven-day completion chart ending today.
func (s *Session) Weekly() []telemetry.DayPoint {
	return s.Progress.Weekly(s.Today())
}

// Summary totals the progress log over the days days ending today.
func (s *Session) Summary(ctx context.Context, days int) (telemetry.Summary, error) {
	return s.Progress.Summary(ctx, s.Today(), days)
}

// Rollover closes an elapsed day and reloads tasks so the daily reset runs.
// It is the day watcher's hook.
func (s *Session) Rollover(ctx context.Context, elapsed model.Date) {
	s.Streak.CloseDay(ctx, elapsed)
	s.Tasks.Load(ctx)
}

// Reload re-reads both aggregates from the active backend. It is the
// recovery path after a failed write.
func (s *Session) Reload(ctx context.Context) {
	s.Streak.Load(ctx)
	s.Tasks.Load(ctx)
}

// Authenticate switches the session to the remote backend for id. When the
// remote has no task record the local records are copied into it first;
// otherwise the remote records win and local data stays where it is.
func (s *Session) Authenticate(ctx context.Context, id model.Identity, remote storage.Adapter) (Migration, error) {
	if id.Anonymous() {
		return "", ErrAnonymous
	}
	s.mu.Lock()
	if remote == nil {
		remote = s.remote
	}
	s.mu.Unlock()
	if remote == nil {
		return "", ErrNoRemoteStore
	}

	if err := s.Writer.Flush(ctx); err != nil {
		return "", fmt.Errorf("flush pending writes: %w", err)
	}

	migration := MigrationRemoteWins
	_, err := remote.ReadTasks(ctx, id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		if err := s.adopt(ctx, id, remote); err != nil {
			return "", err
		}
		migration = MigrationAdopted
	case err != nil:
		return "", fmt.Errorf("check remote records: %w", err)
	}

	s.mu.Lock()
	s.identity = id
	s.remote = remote
	s.mu.Unlock()

	s.Tasks.Rebind(remote, id)
	s.Streak.Rebind(remote, id)
	s.Progress.Rebase()
	s.load(ctx, remote, id)

	s.logger.Info("session authenticated", "user", id.UserID, "migration", string(migration))
	return migration, nil
}

func (s *Session) adopt(ctx context.Context, id model.Identity, remote storage.Adapter) error {
	if err := remote.WriteTasks(ctx, id, s.Tasks.Tasks()); err != nil {
		return fmt.Errorf("adopt local tasks: %w", err)
	}
	_, err := remote.ReadStreak(ctx, id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		if err := remote.WriteStreak(ctx, id, s.Streak.State()); err != nil {
			return fmt.Errorf("adopt local streak: %w", err)
		}
	case err != nil:
		return fmt.Errorf("check remote streak: %w", err)
	}
	return nil
}

// SignOut returns the session to the anonymous local backend.
func (s *Session) SignOut(ctx context.Context) error {
	if err := s.Writer.Flush(ctx); err != nil {
		return fmt.Errorf("flush pending writes: %w", err)
	}
	s.mu.Lock()
	s.identity = model.Identity{}
	local := s.local
	s.mu.Unlock()

	s.Tasks.Rebind(local, model.Identity{})
	s.Streak.Rebind(local, model.Identity{})
	s.Progress.Rebase()
	s.load(ctx, local, model.Identity{})

	s.logger.Info("session signed out")
	return nil
}

// Close detaches observers and waits for queued writes.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	detach := s.detach
	s.detach = nil
	s.mu.Unlock()

	for _, fn := range detach {
		fn()
	}
	return s.Writer.Flush(ctx)
}
