// Package syncer reconciles a local snapshot with a remote store.
//
// Habits merge last-writer-wins on updatedAt, with ties going to the remote
// copy. Completions merge by union and are never deleted remotely, so a local
// un-complete does not propagate. Every step is idempotent: a failed sync can
// simply be retried.
package syncer

import (
	"context"
	"errors"
	"sort"

	apperrors "github.com/julianstephens/habitkit/internal/errors"
	"github.com/julianstephens/habitkit/internal/logger"
	"github.com/julianstephens/habitkit/internal/models"
)

// Remote is the write surface of the authoritative store. Calls are issued
// one at a time in a deterministic order.
type Remote interface {
	FetchSnapshot(ctx context.Context) (models.Snapshot, error)
	// CreateHabit inserts h with its local id. Creating an id that already
	// exists must be a no-op.
	CreateHabit(ctx context.Context, h models.Habit) error
	UpdateHabit(ctx context.Context, id string, patch models.HabitPatch) error
	// CreateCompletion records c. Recording an existing completion must be a no-op.
	CreateCompletion(ctx context.Context, c models.DatedCompletion) error
}

// Report counts the remote writes a sync made.
type Report struct {
	HabitsCreated      int `json:"habitsCreated"`
	HabitsUpdated      int `json:"habitsUpdated"`
	CompletionsCreated int `json:"completionsCreated"`
	// CompletionsRejected counts completions the remote refused as dated in
	// its future. They stay local and are retried next sync.
	CompletionsRejected int `json:"completionsRejected"`
}

// Writes is the total number of remote mutations.
func (r Report) Writes() int {
	return r.HabitsCreated + r.HabitsUpdated + r.CompletionsCreated
}

type Engine struct {
	remote Remote
}

func NewEngine(remote Remote) *Engine {
	return &Engine{remote: remote}
}

// Sync pushes local state to the remote and returns the remote state after
// the merge. Callers replace local storage with the result. On error the
// report reflects the writes that already landed.
func (e *Engine) Sync(ctx context.Context, local models.Snapshot) (models.Snapshot, Report, error) {
	var report Report

	remote, err := e.remote.FetchSnapshot(ctx)
	if err != nil {
		return models.Snapshot{}, report, transport("fetch", err)
	}

	remoteHabits := make(map[string]models.Habit, len(remote.Habits))
	for _, h := range remote.Habits {
		remoteHabits[h.ID] = h
	}

	localHabits := sortedHabits(local.Habits)
	known := make(map[string]bool, len(localHabits))
	for _, h := range localHabits {
		known[h.ID] = true
	}

	// Habits the remote has never seen keep their local id.
	for _, h := range localHabits {
		if _, ok := remoteHabits[h.ID]; ok {
			continue
		}
		if err := ctxErr(ctx); err != nil {
			return models.Snapshot{}, report, transport("create habit", err)
		}
		if err := e.remote.CreateHabit(ctx, h); err != nil {
			return models.Snapshot{}, report, transport("create habit", err)
		}
		report.HabitsCreated++
		remoteHabits[h.ID] = h
		logger.Debug("sync created remote habit", "id", h.ID)
	}

	for _, h := range localHabits {
		rh := remoteHabits[h.ID]
		if !h.UpdatedAt.After(rh.UpdatedAt) {
			continue
		}
		if err := ctxErr(ctx); err != nil {
			return models.Snapshot{}, report, transport("update habit", err)
		}
		if err := e.remote.UpdateHabit(ctx, h.ID, models.PatchFromHabit(h)); err != nil {
			return models.Snapshot{}, report, transport("update habit", err)
		}
		report.HabitsUpdated++
		logger.Debug("sync updated remote habit", "id", h.ID)
	}

	present := make(map[string]bool, len(remote.Completions))
	for _, c := range remote.Completions {
		present[c.Key()] = true
	}

	for _, c := range sortedCompletions(local.Completions) {
		if !known[c.HabitID] || present[c.Key()] {
			continue
		}
		if err := ctxErr(ctx); err != nil {
			return models.Snapshot{}, report, transport("create completion", err)
		}
		if err := e.remote.CreateCompletion(ctx, c); err != nil {
			if errors.Is(err, apperrors.ErrFutureDate) {
				report.CompletionsRejected++
				logger.Warn("remote rejected completion dated in its future", "habit", c.HabitID, "day", c.DayKey)
				continue
			}
			return models.Snapshot{}, report, transport("create completion", err)
		}
		present[c.Key()] = true
		report.CompletionsCreated++
	}

	final, err := e.remote.FetchSnapshot(ctx)
	if err != nil {
		return models.Snapshot{}, report, transport("refetch", err)
	}

	logger.Info("sync complete",
		"habitsCreated", report.HabitsCreated,
		"habitsUpdated", report.HabitsUpdated,
		"completionsCreated", report.CompletionsCreated,
	)
	return Normalize(final), report, nil
}

// Normalize orders a snapshot deterministically and drops completions that
// reference unknown habits or repeat a habit/day pair.
func Normalize(s models.Snapshot) models.Snapshot {
	habits := sortedHabits(s.Habits)
	known := make(map[string]bool, len(habits))
	for _, h := range habits {
		known[h.ID] = true
	}

	seen := make(map[string]bool, len(s.Completions))
	completions := make([]models.DatedCompletion, 0, len(s.Completions))
	for _, c := range sortedCompletions(s.Completions) {
		if !known[c.HabitID] || seen[c.Key()] {
			continue
		}
		seen[c.Key()] = true
		completions = append(completions, c)
	}

	return models.Snapshot{Habits: habits, Completions: completions}
}

func transport(step string, err error) error {
	var ste *apperrors.SyncTransportError
	if errors.As(err, &ste) {
		return err
	}
	return &apperrors.SyncTransportError{Step: step, Err: err}
}

func ctxErr(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func sortedHabits(in []models.Habit) []models.Habit {
	out := make([]models.Habit, len(in))
	for i, h := range in {
		out[i] = h.Clone()
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sortedCompletions(in []models.DatedCompletion) []models.DatedCompletion {
	out := append([]models.DatedCompletion(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DayKey != out[j].DayKey {
			return out[i].DayKey < out[j].DayKey
		}
		return out[i].HabitID < out[j].HabitID
	})
	return out
}
