// Package api defines the JSON shapes exchanged between the CLI and the
// habitkit server.
package api

import (
	"encoding/json"
	"time"

	"github.com/julianstephens/habitkit/internal/models"
)

// Error codes carried in ErrorResponse.Code.
const (
	CodeValidation   = "validation"
	CodeNotFound     = "not_found"
	CodeFutureDate   = "future_date"
	CodeUnauthorized = "unauthorized"
	CodeInternal     = "internal"
)

// HabitResource is a habit with its completions embedded.
type HabitResource struct {
	models.Habit
	Completions []CompletionResource `json:"completions"`
}

// CompletionResource is one completion row. Completed is optional: peers that
// hard-delete rows omit it, peers that keep tombstones send false.
type CompletionResource struct {
	DayKey      string    `json:"dayKey"`
	CompletedAt time.Time `json:"completedAt"`
	Completed   *bool     `json:"completed,omitempty"`
}

// IsCompleted reports whether the row counts as a completion.
func (c CompletionResource) IsCompleted() bool {
	return c.Completed == nil || *c.Completed
}

// UnmarshalJSON accepts "date" as an alias for "dayKey".
func (c *CompletionResource) UnmarshalJSON(data []byte) error {
	type plain CompletionResource
	var aux struct {
		plain
		Date string `json:"date"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = CompletionResource(aux.plain)
	if c.DayKey == "" {
		c.DayKey = aux.Date
	}
	return nil
}

// CompletionRequest toggles a completion when Completed is nil, and sets it
// to the given state otherwise.
type CompletionRequest struct {
	Date        string     `json:"date"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Completed   *bool      `json:"completed,omitempty"`
}

// CompletionResponse reports the state after a completion request.
type CompletionResponse struct {
	HabitID   string `json:"habitId"`
	Date      string `json:"date"`
	Completed bool   `json:"completed"`
}

// SyncResponse is the merged state returned by POST /habits/sync.
type SyncResponse struct {
	models.Snapshot
	Report SyncReport `json:"report"`
}

// SyncReport mirrors the server-side merge counters.
type SyncReport struct {
	HabitsCreated       int `json:"habitsCreated"`
	HabitsUpdated       int `json:"habitsUpdated"`
	CompletionsCreated  int `json:"completionsCreated"`
	CompletionsRejected int `json:"completionsRejected"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ToSnapshot flattens resources, dropping tombstoned completions.
func ToSnapshot(resources []HabitResource) models.Snapshot {
	s := models.Snapshot{
		Habits:      make([]models.Habit, 0, len(resources)),
		Completions: []models.DatedCompletion{},
	}
	for _, r := range resources {
		s.Habits = append(s.Habits, r.Habit)
		for _, c := range r.Completions {
			if !c.IsCompleted() || c.DayKey == "" {
				continue
			}
			s.Completions = append(s.Completions, models.DatedCompletion{
				HabitID:     r.ID,
				DayKey:      c.DayKey,
				CompletedAt: c.CompletedAt,
			})
		}
	}
	return s
}

// FromSnapshot groups a flat snapshot into resources in habit order.
func FromSnapshot(s models.Snapshot) []HabitResource {
	byHabit := make(map[string][]CompletionResource, len(s.Habits))
	for _, c := range s.Completions {
		completed := true
		byHabit[c.HabitID] = append(byHabit[c.HabitID], CompletionResource{
			DayKey:      c.DayKey,
			CompletedAt: c.CompletedAt,
			Completed:   &completed,
		})
	}

	out := make([]HabitResource, 0, len(s.Habits))
	for _, h := range s.Habits {
		cs := byHabit[h.ID]
		if cs == nil {
			cs = []CompletionResource{}
		}
		out = append(out, HabitResource{Habit: h, Completions: cs})
	}
	return out
}
