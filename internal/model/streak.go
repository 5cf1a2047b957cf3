package model

type YellowCard struct {
	Date   Date       `json:"date"`
	Reason CardReason `json:"reason"`
}

// StreakState is the singleton streak record for one user.
type StreakState struct {
	StreakCount       int          `json:"streakCount"`
	LastCompletedDate *Date        `json:"lastCompletedDate,omitempty"`
	YellowCards       []YellowCard `json:"yellowCards"`
	TodayStatus       DayStatus    `json:"todayStatus"`

	// CreatedOn is the first day the state existed; days before it are never penalised.
	CreatedOn Date `json:"createdOn,omitempty"`

	// CompletedDates lists the successful days inside the retention window,
	// oldest first.
	CompletedDates []Date `json:"completedDates,omitempty"`
}

func NewStreakState(today Date) StreakState {
	return StreakState{
		YellowCards: []YellowCard{},
		TodayStatus: StatusPending,
		CreatedOn:   today,
	}
}

func (s StreakState) LastCompleted() Date {
	if s.LastCompletedDate == nil {
		return ""
	}
	return *s.LastCompletedDate
}

// Succeeded reports whether day was recorded as a completed day.
func (s StreakState) Succeeded(day Date) bool {
	if s.LastCompleted() == day {
		return true
	}
	for _, d := range s.CompletedDates {
		if d == day {
			return true
		}
	}
	return false
}

// MarkSucceeded records day as completed, keeping CompletedDates sorted and
// free of duplicates.
func (s *StreakState) MarkSucceeded(day Date) {
	i := 0
	for i < len(s.CompletedDates) && s.CompletedDates[i].Before(day) {
		i++
	}
	if i < len(s.CompletedDates) && s.CompletedDates[i] == day {
		return
	}
	s.CompletedDates = append(s.CompletedDates, "")
	copy(s.CompletedDates[i+1:], s.CompletedDates[i:])
	s.CompletedDates[i] = day
}

func (s StreakState) HasCardOn(day Date) bool {
	for _, c := range s.YellowCards {
		if c.Date == day {
			return true
		}
	}
	return false
}

// CardsBetween returns the cards dated within [from, to], inclusive.
func (s StreakState) CardsBetween(from, to Date) []YellowCard {
	out := make([]YellowCard, 0, len(s.YellowCards))
	for _, c := range s.YellowCards {
		if c.Date < from || c.Date > to {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (s StreakState) Clone() StreakState {
	out := s
	if s.LastCompletedDate != nil {
		d := *s.LastCompletedDate
		out.LastCompletedDate = &d
	}
	out.YellowCards = append([]YellowCard{}, s.YellowCards...)
	out.CompletedDates = append([]Date(nil), s.CompletedDates...)
	return out
}

// Normalize fills zero values left by older or partial records.
func (s *StreakState) Normalize() {
	if s.YellowCards == nil {
		s.YellowCards = []YellowCard{}
	}
	if s.TodayStatus == "" {
		s.TodayStatus = StatusPending
	}
	if s.StreakCount < 0 {
		s.StreakCount = 0
	}
	if s.LastCompletedDate != nil && *s.LastCompletedDate == "" {
		s.LastCompletedDate = nil
	}
}

// Identity selects whose records are read and written. An empty UserID is
// the anonymous, local-only identity.
type Identity struct {
	UserID string `json:"userId" yaml:"user_id" mapstructure:"user_id"`
	Token  string `json:"-" yaml:"token" mapstructure:"token"`
}

func (i Identity) Anonymous() bool { return i.UserID == "" }
