package telemetry

import (
	"time"

	"sakinah/internal/model"
)

type EventType string

const (
	EventTaskCompleted   EventType = "task_completed"
	EventTaskUncompleted EventType = "task_uncompleted"
	EventDayCompleted    EventType = "day_completed"
	EventYellowCard      EventType = "yellow_card"
	EventStreakReset     EventType = "streak_reset"
)

// Event is one entry of the progress log. Only the fields that apply to
// Type are set: TaskID for task events, Reason for cards, Streak for day
// completions and resets (the count before the reset).
type Event struct {
	ID     int64            `json:"id"`
	Type   EventType        `json:"type"`
	At     time.Time        `json:"at"`
	Date   model.Date       `json:"date,omitempty"`
	TaskID model.TaskID     `json:"taskId,omitempty"`
	Reason model.CardReason `json:"reason,omitempty"`
	Streak int              `json:"streak,omitempty"`
}
