package task

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

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
	// Seed is the checklist used when no task record exists. Nil means DefaultSeed.
	Seed []Seed
}

// Store owns the task collection for one identity. Mutations apply in memory
// first, are handed to the writer for persistence and then published on the
// bus. Persistence failures never reach the caller.
type Store struct {
	mu       sync.Mutex
	tasks    []model.Task
	adapter  storage.Adapter
	identity model.Identity

	writer *storage.Writer
	bus    *bus.Bus
	clock  clock.Clock
	loc    *time.Location
	logger *slog.Logger
	seed   []Seed
}

func NewStore(opts Options) *Store {
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
	if opts.Seed == nil {
		opts.Seed = DefaultSeed
	}
	return &Store{
		adapter:  opts.Adapter,
		identity: opts.Identity,
		writer:   opts.Writer,
		bus:      opts.Bus,
		clock:    opts.Clock,
		loc:      opts.Location,
		logger:   opts.Logger.With("component", "task_store"),
		seed:     opts.Seed,
	}
}

func (s *Store) today() model.Date {
	return model.DateOf(s.clock.Now(), s.loc)
}

// Load reads the collection for the active identity, applies the daily
// reset and publishes the result. A missing record seeds the default
// checklist and persists it. Any other read failure keeps the seed in
// memory only so a transient fault cannot overwrite stored data.
func (s *Store) Load(ctx context.Context) []model.Task {
	s.mu.Lock()
	adapter, identity := s.adapter, s.identity
	s.mu.Unlock()

	tasks, err := adapter.ReadTasks(ctx, identity)
	persist := false
	readFailed := false
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.logger.Info("no task record; seeding default checklist", "user", identity.UserID)
		tasks = SeedTasks(s.seed)
		persist = true
	case err != nil:
		s.logger.Warn("task load failed; using default checklist", "error", &storage.ReadError{Op: "tasks", Err: err})
		tasks = SeedTasks(s.seed)
		readFailed = true
	}

	for i := range tasks {
		if tasks[i].Normalize() {
			persist = true
		}
	}
	tasks, n := ResetStale(tasks, s.today(), s.loc)
	if n > 0 {
		s.logger.Info("daily reset", "reset", n)
		persist = true
	}

	s.mu.Lock()
	s.tasks = tasks
	snapshot := model.CloneTasks(tasks)
	if persist && !readFailed {
		s.persistLocked(snapshot)
	}
	s.mu.Unlock()

	s.publish(snapshot)
	return model.CloneTasks(snapshot)
}

// Rebind switches the store to another backend and identity. Callers Load
// afterwards.
func (s *Store) Rebind(adapter storage.Adapter, identity model.Identity) {
	s.mu.Lock()
	s.adapter = adapter
	s.identity = identity
	s.mu.Unlock()
}

// Toggle flips a task's completion. Completing stamps completedAt with the
// current time; un-completing clears it. A completion left over from an
// earlier day counts as not completed, so toggling it completes it today.
func (s *Store) Toggle(ctx context.Context, id model.TaskID) (model.Task, error) {
	now := s.clock.Now()
	today := model.DateOf(now, s.loc)

	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return model.Task{}, ErrNotFound
	}
	t := &s.tasks[i]
	if t.CompletedOn(today, s.loc) {
		t.ClearComplete()
	} else {
		t.MarkComplete(now)
	}
	out := model.CloneTasks(s.tasks[i : i+1])[0]
	snapshot := model.CloneTasks(s.tasks)
	s.persistLocked(snapshot)
	s.mu.Unlock()

	s.logger.Debug("task toggled", "id", id, "completed", out.Completed)
	s.publish(snapshot)
	return out, nil
}

// Add appends a custom task.
func (s *Store) Add(ctx context.Context, title string, category model.Category, priority model.Priority) (model.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Task{}, &ValidationError{Field: "title", Msg: "must not be empty"}
	}
	if !category.Valid() {
		return model.Task{}, &ValidationError{Field: "category", Msg: "unknown value " + string(category)}
	}
	if !priority.Valid() {
		return model.Task{}, &ValidationError{Field: "priority", Msg: "unknown value " + string(priority)}
	}

	t := model.Task{
		ID:       model.TaskID(uuid.NewString()),
		Title:    title,
		Category: category,
		Priority: priority,
		IsCustom: true,
	}

	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	snapshot := model.CloneTasks(s.tasks)
	s.persistLocked(snapshot)
	s.mu.Unlock()

	s.publish(snapshot)
	return t, nil
}

// Remove deletes a task if present. It reports whether anything was removed.
func (s *Store) Remove(ctx context.Context, id model.TaskID) bool {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	snapshot := model.CloneTasks(s.tasks)
	s.persistLocked(snapshot)
	s.mu.Unlock()

	s.publish(snapshot)
	return true
}

var ErrNotCustom = errors.New("only custom tasks can be removed")

// RemoveCustom deletes id only when it is a user-created task.
func (s *Store) RemoveCustom(ctx context.Context, id model.TaskID) error {
	t, ok := s.Get(id)
	if !ok {
		return ErrNotFound
	}
	if !t.IsCustom {
		return ErrNotCustom
	}
	if !s.Remove(ctx, id) {
		return ErrNotFound
	}
	return nil
}

func (s *Store) Get(id model.TaskID) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return model.Task{}, false
	}
	return model.CloneTasks(s.tasks[i : i+1])[0], true
}

func (s *Store) Tasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.CloneTasks(s.tasks)
}

// Sorted returns the collection in display order.
func (s *Store) Sorted() []model.Task {
	return SortForDisplay(s.Tasks())
}

func (s *Store) HasUncompletedTasks() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return hasUncompleted(s.tasks)
}

func (s *Store) indexLocked(id model.TaskID) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// persistLocked queues a write. Holding mu keeps queued writes in the same
// order as the mutations they record.
func (s *Store) persistLocked(snapshot []model.Task) {
	adapter, identity := s.adapter, s.identity
	s.writer.Submit("tasks", func(ctx context.Context) error {
		return adapter.WriteTasks(ctx, identity, snapshot)
	})
}

func (s *Store) publish(snapshot []model.Task) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.TasksChanged, bus.TasksEvent{
		Tasks:               model.CloneTasks(snapshot),
		HasUncompletedTasks: hasUncompleted(snapshot),
		At:                  s.clock.Now(),
	})
}
