package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"sakinah/internal/model"
)

var ErrNotFound = errors.New("record not found")

type fileState struct {
	Users map[string]userRecords `json:"users"`
}

type userRecords struct {
	Tasks           []model.Task       `json:"tasks,omitempty"`
	TasksUpdatedAt  *time.Time         `json:"tasksUpdatedAt,omitempty"`
	Streak          *model.StreakState `json:"streak,omitempty"`
	StreakUpdatedAt *time.Time         `json:"streakUpdatedAt,omitempty"`
}

func newFileState() fileState {
	return fileState{
		Users: map[string]userRecords{},
	}
}

// FileRepo persists every user's Task and Streak records in one JSON file.
// Writes go through a temp file and rename.
type FileRepo struct {
	mu   sync.RWMutex
	path string
	s    fileState
	now  func() time.Time
}

func NewFileRepo(dataDir string) (*FileRepo, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	r := &FileRepo{
		path: filepath.Join(dataDir, "records.json"),
		s:    newFileState(),
		now:  time.Now,
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FileRepo) load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			r.s = newFileState()
			return nil
		}
		return err
	}

	var loaded fileState
	if err := json.Unmarshal(b, &loaded); err != nil {
		return fmt.Errorf("parse %s: %w", r.path, err)
	}
	if loaded.Users == nil {
		loaded.Users = map[string]userRecords{}
	}
	r.s = loaded
	return nil
}

func (r *FileRepo) saveLocked() error {
	b, err := json.MarshalIndent(r.s, "", "  ")
	if err != nil {
		return err
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, r.path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// normalizeUser folds user ids to lower case; config keys arrive lowercased.
func normalizeUser(userID string) string {
	return strings.ToLower(strings.TrimSpace(userID))
}

func (r *FileRepo) GetTasks(userID string) ([]model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.s.Users[normalizeUser(userID)]
	if !ok || u.TasksUpdatedAt == nil {
		return nil, ErrNotFound
	}
	return model.CloneTasks(u.Tasks), nil
}

func (r *FileRepo) PutTasks(userID string, tasks []model.Task) error {
	userID = normalizeUser(userID)
	if userID == "" {
		return errors.New("user id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.s.Users[userID]
	now := r.now().UTC()
	u.Tasks = model.CloneTasks(tasks)
	u.TasksUpdatedAt = &now
	r.s.Users[userID] = u
	return r.saveLocked()
}

func (r *FileRepo) GetStreak(userID string) (model.StreakState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.s.Users[normalizeUser(userID)]
	if !ok || u.Streak == nil {
		return model.StreakState{}, ErrNotFound
	}
	return u.Streak.Clone(), nil
}

func (r *FileRepo) PutStreak(userID string, state model.StreakState) error {
	userID = normalizeUser(userID)
	if userID == "" {
		return errors.New("user id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.s.Users[userID]
	now := r.now().UTC()
	st := state.Clone()
	u.Streak = &st
	u.StreakUpdatedAt = &now
	r.s.Users[userID] = u
	return r.saveLocked()
}
