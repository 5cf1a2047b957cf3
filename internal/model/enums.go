package model

import "fmt"

type Category string

const (
	CategoryWorship        Category = "worship"
	CategoryCharacter      Category = "character"
	CategoryKnowledge      Category = "knowledge"
	CategoryTransformation Category = "transformation"
)

var Categories = []Category{CategoryWorship, CategoryCharacter, CategoryKnowledge, CategoryTransformation}

func (c Category) Valid() bool {
	switch c {
	case CategoryWorship, CategoryCharacter, CategoryKnowledge, CategoryTransformation:
		return true
	}
	return false
}

func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

func (c *Category) UnmarshalText(b []byte) error {
	v, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Priority is totally ordered: critical < important < routine.
type Priority string

const (
	PriorityCritical  Priority = "critical"
	PriorityImportant Priority = "important"
	PriorityRoutine   Priority = "routine"
)

func (p Priority) Valid() bool {
	return p.Rank() >= 0
}

// Rank returns the sort position of p, or -1 for unknown values.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityImportant:
		return 1
	case PriorityRoutine:
		return 2
	}
	return -1
}

func ParsePriority(s string) (Priority, error) {
	p := Priority(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown priority %q", s)
	}
	return p, nil
}

func (p *Priority) UnmarshalText(b []byte) error {
	v, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

type DayStatus string

const (
	StatusPending   DayStatus = "pending"
	StatusCompleted DayStatus = "completed"
	StatusFailed    DayStatus = "failed"
)

func (s DayStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

func (s *DayStatus) UnmarshalText(b []byte) error {
	v := DayStatus(b)
	if !v.Valid() {
		return fmt.Errorf("unknown day status %q", string(b))
	}
	*s = v
	return nil
}

type CardReason string

const (
	ReasonNoTaskCompleted    CardReason = "no_task_completed"
	ReasonIncompleteCritical CardReason = "incomplete_critical"
)

func (r CardReason) Valid() bool {
	switch r {
	case ReasonNoTaskCompleted, ReasonIncompleteCritical:
		return true
	}
	return false
}

func (r *CardReason) UnmarshalText(b []byte) error {
	v := CardReason(b)
	if !v.Valid() {
		return fmt.Errorf("unknown yellow card reason %q", string(b))
	}
	*r = v
	return nil
}
