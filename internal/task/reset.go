package task

import (
	"sort"
	"time"

	"sakinah/internal/model"
)

// ResetStale un-completes every task whose completion is not dated today in
// loc, returning the new collection and how many tasks were reset. The input
// is not modified. Applying it to its own output resets nothing.
func ResetStale(tasks []model.Task, today model.Date, loc *time.Location) ([]model.Task, int) {
	out := model.CloneTasks(tasks)
	n := 0
	for i := range out {
		if out[i].Completed && !out[i].CompletedOn(today, loc) {
			out[i].ClearComplete()
			n++
		}
	}
	return out, n
}

// SortForDisplay orders incomplete before completed, then by priority
// (critical first). Ties keep their collection order.
func SortForDisplay(tasks []model.Task) []model.Task {
	out := model.CloneTasks(tasks)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Completed != out[j].Completed {
			return !out[i].Completed
		}
		return out[i].Priority.Rank() < out[j].Priority.Rank()
	})
	return out
}

func hasUncompleted(tasks []model.Task) bool {
	for _, t := range tasks {
		if !t.Completed {
			return true
		}
	}
	return false
}
