package server

import (
	"context"

	"github.com/julianstephens/habitkit/internal/models"
)

// Store is the server's per-user persistence. Lookups of unknown habits
// return an *errors.NotFoundError.
type Store interface {
	ListHabits(ctx context.Context, userID string) ([]models.Habit, error)
	ListCompletions(ctx context.Context, userID string) ([]models.DatedCompletion, error)
	GetHabit(ctx context.Context, userID, id string) (models.Habit, error)
	// CreateHabit inserts h and reports false when the id already exists.
	CreateHabit(ctx context.Context, userID string, h models.Habit) (bool, error)
	// UpdateHabit overwrites the mutable fields of an existing habit.
	UpdateHabit(ctx context.Context, userID string, h models.Habit) error
	// DeleteHabit removes the habit and its completions.
	DeleteHabit(ctx context.Context, userID, id string) (bool, error)
	HasCompletion(ctx context.Context, userID, habitID, dayKey string) (bool, error)
	// AddCompletion reports false when the completion already exists.
	AddCompletion(ctx context.Context, userID string, c models.DatedCompletion) (bool, error)
	RemoveCompletion(ctx context.Context, userID, habitID, dayKey string) (bool, error)
	Close() error
}
