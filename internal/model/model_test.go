package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriority_RankOrdersCriticalFirst(t *testing.T) {
	assert.Less(t, PriorityCritical.Rank(), PriorityImportant.Rank())
	assert.Less(t, PriorityImportant.Rank(), PriorityRoutine.Rank())
	assert.Equal(t, -1, Priority("urgent").Rank())
	assert.False(t, Priority("urgent").Valid())
}

func TestTask_UnmarshalRejectsUnknownEnums(t *testing.T) {
	var tk Task
	err := json.Unmarshal([]byte(`{"id":"a","title":"x","category":"sports","priority":"routine"}`), &tk)
	require.Error(t, err)

	err = json.Unmarshal([]byte(`{"id":"a","title":"x","category":"worship","priority":"urgent"}`), &tk)
	require.Error(t, err)

	err = json.Unmarshal([]byte(`{"id":"a","title":"x","category":"worship","priority":"critical"}`), &tk)
	require.NoError(t, err)
	assert.Equal(t, CategoryWorship, tk.Category)
	assert.Equal(t, PriorityCritical, tk.Priority)
}

func TestTask_NormalizeRepairsInvariant(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	tk := Task{Completed: true}
	assert.True(t, tk.Normalize())
	assert.False(t, tk.Completed)
	assert.Nil(t, tk.CompletedAt)

	tk = Task{CompletedAt: &now}
	assert.True(t, tk.Normalize())
	assert.Nil(t, tk.CompletedAt)

	tk = Task{}
	tk.MarkComplete(now)
	assert.False(t, tk.Normalize())
	assert.True(t, tk.Completed)
	require.NotNil(t, tk.CompletedAt)
}

func TestTask_CompletedOnUsesLocalDate(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	// 20:00 UTC on Mar 1 is 03:00 on Mar 2 in UTC+7.
	at := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	tk := Task{}
	tk.MarkComplete(at)

	assert.True(t, tk.CompletedOn("2026-03-02", loc))
	assert.False(t, tk.CompletedOn("2026-03-01", loc))
	assert.True(t, tk.CompletedOn("2026-03-01", time.UTC))
}

func TestDate_Arithmetic(t *testing.T) {
	d := Date("2026-03-01")
	assert.Equal(t, Date("2026-02-28"), d.AddDays(-1))
	assert.Equal(t, Date("2026-03-08"), d.AddDays(7))
	assert.Equal(t, 7, d.DaysUntil("2026-03-08"))
	assert.Equal(t, -1, d.DaysUntil("2026-02-28"))
	assert.True(t, d.Before("2026-03-02"))
	assert.True(t, d.After("2026-02-28"))

	_, err := ParseDate("2026-13-01")
	assert.Error(t, err)
}

func TestDate_StartIsLocalMidnight(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	start := Date("2026-03-01").Start(loc)
	assert.Equal(t, 0, start.Hour())
	assert.Equal(t, Date("2026-03-01"), DateOf(start, loc))
	assert.Equal(t, Date("2026-02-28"), DateOf(start.Add(-time.Second), loc))
}

func TestStreakState_JSONShape(t *testing.T) {
	last := Date("2026-03-01")
	s := StreakState{
		StreakCount:       4,
		LastCompletedDate: &last,
		YellowCards:       []YellowCard{{Date: "2026-02-27", Reason: ReasonNoTaskCompleted}},
		TodayStatus:       StatusCompleted,
	}
	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"streakCount": 4,
		"lastCompletedDate": "2026-03-01",
		"yellowCards": [{"date": "2026-02-27", "reason": "no_task_completed"}],
		"todayStatus": "completed"
	}`, string(b))

	var back StreakState
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, s, back)
}

func TestStreakState_CardsBetweenIsInclusive(t *testing.T) {
	s := StreakState{YellowCards: []YellowCard{
		{Date: "2026-02-22"},
		{Date: "2026-02-23"},
		{Date: "2026-03-01"},
		{Date: "2026-03-02"},
	}}
	got := s.CardsBetween("2026-02-23", "2026-03-01")
	assert.Len(t, got, 2)
}

func TestStreakState_CloneDoesNotAlias(t *testing.T) {
	last := Date("2026-03-01")
	s := StreakState{LastCompletedDate: &last, YellowCards: []YellowCard{{Date: "2026-02-27"}}}
	c := s.Clone()
	*c.LastCompletedDate = "2026-01-01"
	c.YellowCards[0].Date = "2026-01-01"

	assert.Equal(t, Date("2026-03-01"), *s.LastCompletedDate)
	assert.Equal(t, Date("2026-02-27"), s.YellowCards[0].Date)
}

func TestStreakState_MarkSucceededKeepsSortedSet(t *testing.T) {
	var s StreakState
	s.MarkSucceeded("2026-03-05")
	s.MarkSucceeded("2026-03-03")
	s.MarkSucceeded("2026-03-05")
	s.MarkSucceeded("2026-03-04")

	assert.Equal(t, []Date{"2026-03-03", "2026-03-04", "2026-03-05"}, s.CompletedDates)
	assert.True(t, s.Succeeded("2026-03-04"))
	assert.False(t, s.Succeeded("2026-03-06"))

	last := Date("2026-03-06")
	s.LastCompletedDate = &last
	assert.True(t, s.Succeeded("2026-03-06"), "records without the set still count lastCompletedDate")
}
