package task

import (
	"fmt"
	"strings"
	"unicode"

	"sakinah/internal/model"
)

type Seed struct {
	Title    string         `yaml:"title" mapstructure:"title"`
	Category model.Category `yaml:"category" mapstructure:"category"`
	Priority model.Priority `yaml:"priority" mapstructure:"priority"`
}

// DefaultSeed is the checklist a new user starts with.
var DefaultSeed = []Seed{
	{Title: "Pray Fajr on time", Category: model.CategoryWorship, Priority: model.PriorityCritical},
	{Title: "Complete the five daily prayers", Category: model.CategoryWorship, Priority: model.PriorityCritical},
	{Title: "Read one page of Quran", Category: model.CategoryKnowledge, Priority: model.PriorityImportant},
	{Title: "Morning and evening adhkar", Category: model.CategoryWorship, Priority: model.PriorityImportant},
	{Title: "Guard the tongue from backbiting", Category: model.CategoryTransformation, Priority: model.PriorityImportant},
	{Title: "Give charity, however small", Category: model.CategoryCharacter, Priority: model.PriorityRoutine},
	{Title: "Learn one new hadith", Category: model.CategoryKnowledge, Priority: model.PriorityRoutine},
}

// ValidateSeeds checks a configured checklist before it is used.
func ValidateSeeds(seeds []Seed) error {
	for i, s := range seeds {
		if strings.TrimSpace(s.Title) == "" {
			return fmt.Errorf("seed %d: title is required", i)
		}
		if !s.Category.Valid() {
			return fmt.Errorf("seed %d: unknown category %q", i, s.Category)
		}
		if !s.Priority.Valid() {
			return fmt.Errorf("seed %d: unknown priority %q", i, s.Priority)
		}
	}
	return nil
}

// SeedTasks builds non-custom tasks with stable ids derived from the titles.
func SeedTasks(seeds []Seed) []model.Task {
	out := make([]model.Task, 0, len(seeds))
	used := map[model.TaskID]int{}
	for _, s := range seeds {
		id := model.TaskID("seed-" + slug(s.Title))
		used[id]++
		if n := used[id]; n > 1 {
			id = model.TaskID(fmt.Sprintf("%s-%d", id, n))
		}
		out = append(out, model.Task{
			ID:       id,
			Title:    strings.TrimSpace(s.Title),
			Category: s.Category,
			Priority: s.Priority,
		})
	}
	return out
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
