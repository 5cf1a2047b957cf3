package telemetry

import "sakinah/internal/model"

// DayPoint is one bar of the weekly progress chart.
type DayPoint struct {
	Date      model.Date `json:"date"`
	Completed int        `json:"completed"`
}

// Summary totals the progress log over the days From through To.
type Summary struct {
	From            model.Date               `json:"from"`
	To              model.Date               `json:"to"`
	EventCounts     map[EventType]int        `json:"eventCounts"`
	TaskCompletions int                      `json:"taskCompletions"`
	DaysCompleted   int                      `json:"daysCompleted"`
	YellowCards     int                      `json:"yellowCards"`
	StreakResets    int                      `json:"streakResets"`
	CardsByReason   map[model.CardReason]int `json:"cardsByReason"`
	BestStreak      int                      `json:"bestStreak"`
}

// Summarize folds events into a Summary. A completion undone later in the
// window does not count.
func Summarize(events []Event, from, to model.Date) Summary {
	sum := Summary{
		From:          from,
		To:            to,
		EventCounts:   map[EventType]int{},
		CardsByReason: map[model.CardReason]int{},
	}
	for _, ev := range events {
		sum.EventCounts[ev.Type]++
		switch ev.Type {
		case EventTaskCompleted:
			sum.TaskCompletions++
		case EventTaskUncompleted:
			sum.TaskCompletions--
		case EventDayCompleted:
			sum.DaysCompleted++
			sum.BestStreak = max(sum.BestStreak, ev.Streak)
		case EventYellowCard:
			sum.YellowCards++
			sum.CardsByReason[ev.Reason]++
		case EventStreakReset:
			sum.StreakResets++
		}
	}
	sum.TaskCompletions = max(sum.TaskCompletions, 0)
	return sum
}
