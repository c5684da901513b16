package server

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/julianstephens/habitkit/internal/api"
	apperrors "github.com/julianstephens/habitkit/internal/errors"
	"github.com/julianstephens/habitkit/internal/events"
	"github.com/julianstephens/habitkit/internal/logger"
	"github.com/julianstephens/habitkit/internal/models"
	"github.com/julianstephens/habitkit/internal/utils"
)

func (s *Server) snapshot(ctx context.Context, userID string) (models.Snapshot, error) {
	habits, err := s.store.ListHabits(ctx, userID)
	if err != nil {
		return models.Snapshot{}, err
	}
	completions, err := s.store.ListCompletions(ctx, userID)
	if err != nil {
		return models.Snapshot{}, err
	}
	return models.Snapshot{Habits: habits, Completions: completions}, nil
}

// createHabit inserts h, keeping a caller-supplied id. If the id exists the
// stored habit is returned unchanged with created false.
func (s *Server) createHabit(ctx context.Context, userID string, h models.Habit) (models.Habit, bool, error) {
	h.Name = strings.TrimSpace(h.Name)
	if h.Name == "" {
		return models.Habit{}, false, apperrors.Validation("name", "must not be empty")
	}
	days, ok := models.NormalizeWeekdays(h.TargetDays)
	if !ok {
		return models.Habit{}, false, apperrors.Validation("targetDays", "weekdays must be between 0 (Sunday) and 6 (Saturday)")
	}
	if h.NotificationTime != "" {
		if err := utils.ValidateTimeFormat(h.NotificationTime); err != nil {
			return models.Habit{}, false, apperrors.Validation("notificationTime", err.Error())
		}
	}
	h.TargetDays = days
	h.Tags = models.NormalizeTags(h.Tags)
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = s.now().UTC()
	}
	if h.UpdatedAt.IsZero() {
		h.UpdatedAt = h.CreatedAt
	}

	created, err := s.store.CreateHabit(ctx, userID, h)
	if err != nil {
		return models.Habit{}, false, err
	}
	if !created {
		existing, err := s.store.GetHabit(ctx, userID, h.ID)
		return existing, false, err
	}

	s.publish(ctx, events.Event{Type: events.TypeHabitCreated, UserID: userID, HabitID: h.ID})
	return h, true, nil
}

// updateHabit applies patch. The patch's updatedAt wins when present so
// replicated edits keep their original modification time.
func (s *Server) updateHabit(ctx context.Context, userID, id string, patch models.HabitPatch) (models.Habit, error) {
	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		if trimmed == "" {
			return models.Habit{}, apperrors.Validation("name", "must not be empty")
		}
		patch.Name = &trimmed
	}
	if patch.TargetDays != nil {
		days, ok := models.NormalizeWeekdays(*patch.TargetDays)
		if !ok {
			return models.Habit{}, apperrors.Validation("targetDays", "weekdays must be between 0 (Sunday) and 6 (Saturday)")
		}
		patch.TargetDays = &days
	}
	if patch.NotificationTime != nil && *patch.NotificationTime != "" {
		if err := utils.ValidateTimeFormat(*patch.NotificationTime); err != nil {
			return models.Habit{}, apperrors.Validation("notificationTime", err.Error())
		}
	}

	existing, err := s.store.GetHabit(ctx, userID, id)
	if err != nil {
		return models.Habit{}, err
	}

	next := patch.Apply(existing)
	next.ID = existing.ID
	next.CreatedAt = existing.CreatedAt
	if patch.UpdatedAt == nil {
		next.UpdatedAt = s.now().UTC()
	}

	if err := s.store.UpdateHabit(ctx, userID, next); err != nil {
		return models.Habit{}, err
	}
	return next, nil
}

func (s *Server) deleteHabit(ctx context.Context, userID, id string) error {
	deleted, err := s.store.DeleteHabit(ctx, userID, id)
	if err != nil {
		return err
	}
	if !deleted {
		return apperrors.NotFound("habit", id)
	}
	s.publish(ctx, events.Event{Type: events.TypeHabitDeleted, UserID: userID, HabitID: id})
	return nil
}

// setCompletion toggles or sets a completion and returns the resulting state.
func (s *Server) setCompletion(ctx context.Context, userID, habitID string, req api.CompletionRequest) (bool, error) {
	day, err := utils.ParseDayKey(req.Date)
	if err != nil {
		return false, apperrors.Validation("date", err.Error())
	}
	now := s.now()
	key := utils.DayKey(day)
	if today := utils.DayKey(now); key > today {
		return false, &apperrors.FutureDateError{DayKey: key, Today: today}
	}

	if _, err := s.store.GetHabit(ctx, userID, habitID); err != nil {
		return false, err
	}

	want := true
	if req.Completed != nil {
		want = *req.Completed
	} else {
		has, err := s.store.HasCompletion(ctx, userID, habitID, key)
		if err != nil {
			return false, err
		}
		want = !has
	}

	if !want {
		removed, err := s.store.RemoveCompletion(ctx, userID, habitID, key)
		if err != nil {
			return false, err
		}
		if removed {
			CompletionChanges.WithLabelValues("cleared").Inc()
			s.publish(ctx, events.Event{Type: events.TypeCompletionCleared, UserID: userID, HabitID: habitID, DayKey: key})
		}
		return false, nil
	}

	at := now.UTC()
	if req.CompletedAt != nil && !req.CompletedAt.IsZero() {
		at = req.CompletedAt.UTC()
	}
	added, err := s.store.AddCompletion(ctx, userID, models.DatedCompletion{HabitID: habitID, DayKey: key, CompletedAt: at})
	if err != nil {
		return false, err
	}
	if added {
		CompletionChanges.WithLabelValues("recorded").Inc()
		s.publish(ctx, events.Event{Type: events.TypeCompletionRecorded, UserID: userID, HabitID: habitID, DayKey: key})
	}
	return true, nil
}

// publish never fails the request; delivery problems are logged.
func (s *Server) publish(ctx context.Context, e events.Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = s.now().UTC()
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		logger.Warn("failed to publish event", "type", e.Type, "error", err)
	}
}

// userRemote exposes one user's server state as a sync target, so a merge
// run on the server follows the same steps as one run by a client.
type userRemote struct {
	s      *Server
	userID string
}

func (r *userRemote) FetchSnapshot(ctx context.Context) (models.Snapshot, error) {
	return r.s.snapshot(ctx, r.userID)
}

func (r *userRemote) CreateHabit(ctx context.Context, h models.Habit) error {
	_, _, err := r.s.createHabit(ctx, r.userID, h)
	return err
}

func (r *userRemote) UpdateHabit(ctx context.Context, id string, patch models.HabitPatch) error {
	_, err := r.s.updateHabit(ctx, r.userID, id, patch)
	return err
}

func (r *userRemote) CreateCompletion(ctx context.Context, c models.DatedCompletion) error {
	completed := true
	at := c.CompletedAt
	_, err := r.s.setCompletion(ctx, r.userID, c.HabitID, api.CompletionRequest{
		Date:        c.DayKey,
		CompletedAt: &at,
		Completed:   &completed,
	})
	return err
}
