// Package storage defines the persistence adapter shared by the local and
// remote backends, the error taxonomy for persistence faults, and the
// asynchronous writer that keeps persistence off the caller's path.
package storage

import (
	"context"
	"errors"
	"fmt"

	"sakinah/internal/model"
)

var ErrNotFound = errors.New("record not found")

// Adapter reads and writes Task and Streak records with the same logical
// schema regardless of backend. A missing record yields ErrNotFound.
type Adapter interface {
	ReadTasks(ctx context.Context, id model.Identity) ([]model.Task, error)
	WriteTasks(ctx context.Context, id model.Identity, tasks []model.Task) error
	ReadStreak(ctx context.Context, id model.Identity) (model.StreakState, error)
	WriteStreak(ctx context.Context, id model.Identity, state model.StreakState) error
}

// PersistenceError reports a failed write. The in-memory state that
// triggered it is kept; callers reconcile by reloading.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ReadError reports a failed load. Callers fall back to default state.
type ReadError struct {
	Op  string
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Op, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Select picks the backend for a session: remote for an authenticated
// identity, local otherwise. A nil remote always selects local.
func Select(id model.Identity, local, remote Adapter) Adapter {
	if !id.Anonymous() && remote != nil {
		return remote
	}
	return local
}

// Mode names the backend Select would choose, for logs and status output.
func Mode(id model.Identity, remote Adapter) string {
	if !id.Anonymous() && remote != nil {
		return "remote"
	}
	return "local"
}
