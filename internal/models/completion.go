package models

import "time"

// Completion records that a habit was done on the day it is filed under.
type Completion struct {
	HabitID     string    `json:"habitId"`
	CompletedAt time.Time `json:"completedAt"`
}

// DatedCompletion is a completion paired with its day key. It is the flat
// form exchanged during sync.
type DatedCompletion struct {
	HabitID     string    `json:"habitId"`
	DayKey      string    `json:"dayKey"`
	CompletedAt time.Time `json:"completedAt"`
}

// Key identifies a completion by habit and day.
func (c DatedCompletion) Key() string {
	return c.HabitID + "|" + c.DayKey
}

// Snapshot is a full copy of one replica's state.
type Snapshot struct {
	Habits      []Habit           `json:"habits"`
	Completions []DatedCompletion `json:"completions"`
}
