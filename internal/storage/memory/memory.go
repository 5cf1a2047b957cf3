package memory

import (
	"context"
	"sync"

	"sakinah/internal/model"
	"sakinah/internal/storage"
)

type record struct {
	tasks     []model.Task
	hasTasks  bool
	streak    model.StreakState
	hasStreak bool
}

// Store keeps records in process memory, keyed by user id ("" for the
// anonymous identity). Values are deep-copied in and out.
type Store struct {
	mu      sync.RWMutex
	records map[string]record
}

func New() *Store {
	return &Store{records: map[string]record{}}
}

func (s *Store) ReadTasks(ctx context.Context, id model.Identity) ([]model.Task, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id.UserID]
	if !ok || !r.hasTasks {
		return nil, storage.ErrNotFound
	}
	return model.CloneTasks(r.tasks), nil
}

func (s *Store) WriteTasks(ctx context.Context, id model.Identity, tasks []model.Task) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.records[id.UserID]
	r.tasks = model.CloneTasks(tasks)
	r.hasTasks = true
	s.records[id.UserID] = r
	return nil
}

func (s *Store) ReadStreak(ctx context.Context, id model.Identity) (model.StreakState, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id.UserID]
	if !ok || !r.hasStreak {
		return model.StreakState{}, storage.ErrNotFound
	}
	return r.streak.Clone(), nil
}

func (s *Store) WriteStreak(ctx context.Context, id model.Identity, state model.StreakState) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.records[id.UserID]
	r.streak = state.Clone()
	r.hasStreak = true
	s.records[id.UserID] = r
	return nil
}
