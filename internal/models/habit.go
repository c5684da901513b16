package models

import (
	"sort"
	"strings"
	"time"
)

// Habit represents a recurring practice the user wants to perform on
// specific weekdays.
type Habit struct {
	ID                  string         `json:"id"`
	Name                string         `json:"name"`
	Description         string         `json:"description,omitempty"`
	TargetDays          []time.Weekday `json:"targetDays"`
	Tags                []string       `json:"tags"`
	Archived            bool           `json:"archived"`
	NotificationEnabled bool           `json:"notificationEnabled"`
	NotificationTime    string         `json:"notificationTime,omitempty"` // HH:MM
	CreatedAt           time.Time      `json:"createdAt"`
	UpdatedAt           time.Time      `json:"updatedAt"`
}

// HabitAttrs holds the caller-supplied fields for a new habit.
type HabitAttrs struct {
	Name                string
	Description         string
	TargetDays          []time.Weekday
	Tags                []string
	NotificationEnabled bool
	NotificationTime    string
}

// TargetsWeekday reports whether wd is one of the habit's target days.
func (h Habit) TargetsWeekday(wd time.Weekday) bool {
	for _, d := range h.TargetDays {
		if d == wd {
			return true
		}
	}
	return false
}

// HasTag reports whether the habit carries tag (case-insensitive).
func (h Habit) HasTag(tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for _, t := range h.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers cannot alias the slices of stored habits.
func (h Habit) Clone() Habit {
	c := h
	if h.TargetDays != nil {
		c.TargetDays = append([]time.Weekday(nil), h.TargetDays...)
	}
	if h.Tags != nil {
		c.Tags = append([]string(nil), h.Tags...)
	}
	return c
}

// NormalizeTags lowercases, trims and de-duplicates tags, preserving first-seen order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// NormalizeWeekdays sorts and de-duplicates weekdays. It reports false if any
// value falls outside Sunday..Saturday.
func NormalizeWeekdays(days []time.Weekday) ([]time.Weekday, bool) {
	seen := make(map[time.Weekday]bool, len(days))
	out := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		if d < time.Sunday || d > time.Saturday {
			return nil, false
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, true
}
