package model

import (
	"time"
)

type TaskID string

type Task struct {
	ID          TaskID     `json:"id"`
	Title       string     `json:"title"`
	Category    Category   `json:"category"`
	Priority    Priority   `json:"priority"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	IsCustom    bool       `json:"isCustom"`
}

// MarkComplete sets completed and stamps completedAt together.
func (t *Task) MarkComplete(at time.Time) {
	t.Completed = true
	t.CompletedAt = &at
}

// ClearComplete resets completed and completedAt together.
func (t *Task) ClearComplete() {
	t.Completed = false
	t.CompletedAt = nil
}

// CompletedOn reports whether t is complete with a completion stamp on day.
func (t Task) CompletedOn(day Date, loc *time.Location) bool {
	return t.Completed && t.CompletedAt != nil && DateOf(*t.CompletedAt, loc) == day
}

// Normalize repairs records read from storage that break the
// completed <=> completedAt invariant. It reports whether t changed.
func (t *Task) Normalize() bool {
	switch {
	case t.Completed && t.CompletedAt == nil:
		t.Completed = false
		return true
	case !t.Completed && t.CompletedAt != nil:
		t.CompletedAt = nil
		return true
	}
	return false
}

// CloneTasks deep-copies tasks so callers cannot alias completedAt pointers.
func CloneTasks(in []Task) []Task {
	out := make([]Task, len(in))
	for i, t := range in {
		if t.CompletedAt != nil {
			at := *t.CompletedAt
			t.CompletedAt = &at
		}
		out[i] = t
	}
	return out
}
