package streak

import (
	"time"

	"sakinah/internal/model"
)

// Rules holds the penalty and retention thresholds.
type Rules struct {
	// WeekWindowDays is the trailing window, today included, that cards are counted over.
	WeekWindowDays int `yaml:"week_window_days" mapstructure:"week_window_days"`
	ResetThreshold int `yaml:"reset_threshold" mapstructure:"reset_threshold"`
	RiskThreshold  int `yaml:"risk_threshold" mapstructure:"risk_threshold"`
	RetentionDays  int `yaml:"retention_days" mapstructure:"retention_days"`
}

func DefaultRules() Rules {
	return Rules{
		WeekWindowDays: 7,
		ResetThreshold: 3,
		RiskThreshold:  2,
		RetentionDays:  30,
	}
}

func (r Rules) withDefaults() Rules {
	d := DefaultRules()
	if r.WeekWindowDays <= 0 {
		r.WeekWindowDays = d.WeekWindowDays
	}
	if r.ResetThreshold <= 0 {
		r.ResetThreshold = d.ResetThreshold
	}
	if r.RiskThreshold <= 0 {
		r.RiskThreshold = d.RiskThreshold
	}
	if r.RetentionDays <= 0 {
		r.RetentionDays = d.RetentionDays
	}
	return r
}

// WeekCards returns the cards dated within [today-(window-1), today].
func (r Rules) WeekCards(st model.StreakState, today model.Date) []model.YellowCard {
	return st.CardsBetween(today.AddDays(-(r.WeekWindowDays - 1)), today)
}

func (r Rules) ShouldReset(st model.StreakState, today model.Date) bool {
	return len(r.WeekCards(st, today)) >= r.ResetThreshold
}

func (r Rules) AtRisk(st model.StreakState, today model.Date) bool {
	return len(r.WeekCards(st, today)) >= r.RiskThreshold
}

// Prune drops cards and completed dates more than RetentionDays before
// today. It reports how many entries were dropped.
func (r Rules) Prune(st model.StreakState, today model.Date) (model.StreakState, int) {
	cutoff := today.AddDays(-r.RetentionDays)
	out := st.Clone()
	kept := out.YellowCards[:0]
	for _, c := range out.YellowCards {
		if c.Date.Before(cutoff) {
			continue
		}
		kept = append(kept, c)
	}
	dropped := len(out.YellowCards) - len(kept)
	out.YellowCards = kept

	var days []model.Date
	for _, d := range out.CompletedDates {
		if !d.Before(cutoff) {
			days = append(days, d)
		}
	}
	dropped += len(out.CompletedDates) - len(days)
	out.CompletedDates = days
	return out, dropped
}

// settleFrom returns the first day whose outcome is not yet recorded: the
// day after the latest success or card, or the creation day, floored at
// the retention window.
func (r Rules) settleFrom(st model.StreakState, today model.Date) model.Date {
	from := st.CreatedOn
	after := func(d model.Date) {
		if next := d.AddDays(1); next.After(from) {
			from = next
		}
	}
	if last := st.LastCompleted(); last != "" {
		after(last)
	}
	if n := len(st.CompletedDates); n > 0 {
		after(st.CompletedDates[n-1])
	}
	for _, c := range st.YellowCards {
		after(c.Date)
	}
	if floor := today.AddDays(-r.RetentionDays); from.Before(floor) {
		from = floor
	}
	return from
}

// applyPenalty resets the streak when the week's cards reach the threshold.
func (r Rules) applyPenalty(st *model.StreakState, today model.Date) bool {
	if !r.ShouldReset(*st, today) {
		return false
	}
	if last := st.LastCompleted(); last != "" {
		st.MarkSucceeded(last)
	}
	st.StreakCount = 0
	st.LastCompletedDate = nil
	return true
}

// DayOutcome evaluates a task snapshot for day. Only completions stamped on
// day count. criticalDone is vacuously true without critical tasks.
func DayOutcome(tasks []model.Task, day model.Date, loc *time.Location) (criticalDone, anyDone bool) {
	criticalDone = true
	for _, t := range tasks {
		done := t.CompletedOn(day, loc)
		if done {
			anyDone = true
		}
		if t.Priority == model.PriorityCritical && !done {
			criticalDone = false
		}
	}
	return criticalDone, anyDone
}

// Advance applies the live transition for today. The streak moves at most
// once per date: a day already recorded as lastCompletedDate is left alone.
// It never produces a failed status.
func Advance(st model.StreakState, criticalDone, anyDone bool, today model.Date) model.StreakState {
	next := st.Clone()
	if !criticalDone || !anyDone {
		next.TodayStatus = model.StatusPending
		return next
	}

	next.TodayStatus = model.StatusCompleted
	next.MarkSucceeded(today)
	last := next.LastCompleted()
	if last == today {
		return next
	}
	if last != "" {
		next.MarkSucceeded(last)
	}
	if last == today.AddDays(-1) || next.StreakCount == 0 {
		next.StreakCount++
	} else {
		next.StreakCount = 1
	}
	d := today
	next.LastCompletedDate = &d
	return next
}

// cardReason picks the reason for a failed day from the last task snapshot
// seen for it.
func cardReason(tasks []model.Task, day model.Date, loc *time.Location) model.CardReason {
	criticalDone, anyDone := DayOutcome(tasks, day, loc)
	if anyDone && !criticalDone {
		return model.ReasonIncompleteCritical
	}
	return model.ReasonNoTaskCompleted
}
