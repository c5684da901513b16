// Package habits owns the persisted habit collection.
package habits

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/habitkit/internal/constants"
	apperrors "github.com/julianstephens/habitkit/internal/errors"
	"github.com/julianstephens/habitkit/internal/logger"
	"github.com/julianstephens/habitkit/internal/models"
	"github.com/julianstephens/habitkit/internal/storage"
	"github.com/julianstephens/habitkit/internal/utils"
)

// Repository is the single owner of the habit list. Every mutation is
// written through to the store before it becomes visible.
type Repository struct {
	mu     sync.RWMutex
	store  storage.Provider
	now    utils.Clock
	newID  func() string
	habits []models.Habit
}

// Open loads the habit list from store. An undecodable blob is logged and
// replaced by an empty list.
func Open(store storage.Provider, clock utils.Clock) (*Repository, error) {
	if clock == nil {
		clock = utils.SystemClock
	}
	r := &Repository{
		store: store,
		now:   clock,
		newID: uuid.NewString,
	}

	data, err := store.Get(constants.HabitsKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		r.habits = []models.Habit{}
		return r, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load habits: %w", err)
	}

	habits, err := decode(data)
	if err != nil {
		logger.Warn("habit storage unreadable, starting empty", "error", err)
		r.habits = []models.Habit{}
		return r, nil
	}
	r.habits = habits
	return r, nil
}

func decode(data []byte) ([]models.Habit, error) {
	var habits []models.Habit
	if err := json.Unmarshal(data, &habits); err != nil {
		return nil, &apperrors.StorageCorruptionError{Key: constants.HabitsKey, Err: err}
	}

	// Drop records that cannot be addressed and collapse duplicate ids.
	seen := make(map[string]bool, len(habits))
	out := make([]models.Habit, 0, len(habits))
	for _, h := range habits {
		if h.ID == "" || seen[h.ID] {
			continue
		}
		seen[h.ID] = true
		if h.Tags == nil {
			h.Tags = []string{}
		}
		if h.TargetDays == nil {
			h.TargetDays = []time.Weekday{}
		}
		out = append(out, h)
	}
	return out, nil
}

// List returns copies of all habits, archived included, in creation order.
func (r *Repository) List() []models.Habit {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Habit, len(r.habits))
	for i, h := range r.habits {
		out[i] = h.Clone()
	}
	return out
}

// Active returns non-archived habits.
func (r *Repository) Active() []models.Habit {
	var out []models.Habit
	for _, h := range r.List() {
		if !h.Archived {
			out = append(out, h)
		}
	}
	return out
}

// Get returns the habit with id.
func (r *Repository) Get(id string) (models.Habit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.indexOf(id); i >= 0 {
		return r.habits[i].Clone(), nil
	}
	return models.Habit{}, apperrors.NotFound("habit", id)
}

// FindByName matches a habit by case-insensitive name, falling back to an id
// match so commands accept either.
func (r *Repository) FindByName(name string) (models.Habit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := strings.TrimSpace(name)
	for _, h := range r.habits {
		if strings.EqualFold(h.Name, needle) {
			return h.Clone(), nil
		}
	}
	if i := r.indexOf(needle); i >= 0 {
		return r.habits[i].Clone(), nil
	}
	return models.Habit{}, apperrors.NotFound("habit", name)
}

// Create validates attrs, assigns an id and timestamps, and persists the habit.
func (r *Repository) Create(attrs models.HabitAttrs) (models.Habit, error) {
	name := strings.TrimSpace(attrs.Name)
	if name == "" {
		return models.Habit{}, apperrors.Validation("name", "must not be empty")
	}
	days, ok := models.NormalizeWeekdays(attrs.TargetDays)
	if !ok {
		return models.Habit{}, apperrors.Validation("targetDays", "weekdays must be between 0 (Sunday) and 6 (Saturday)")
	}
	if err := validateNotification(attrs.NotificationEnabled, attrs.NotificationTime); err != nil {
		return models.Habit{}, err
	}

	now := r.now().UTC()
	h := models.Habit{
		ID:                  r.newID(),
		Name:                name,
		Description:         strings.TrimSpace(attrs.Description),
		TargetDays:          days,
		Tags:                models.NormalizeTags(attrs.Tags),
		NotificationEnabled: attrs.NotificationEnabled,
		NotificationTime:    attrs.NotificationTime,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := append(r.cloneAll(), h)
	if err := r.persist(next); err != nil {
		return models.Habit{}, err
	}
	return h.Clone(), nil
}

// Update applies a partial patch and refreshes updatedAt. Id and createdAt
// never change.
func (r *Repository) Update(id string, patch models.HabitPatch) (models.Habit, error) {
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
	// Local edits always stamp the current time.
	patch.UpdatedAt = nil

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return models.Habit{}, apperrors.NotFound("habit", id)
	}

	updated := patch.Apply(r.habits[i])
	if err := validateNotification(updated.NotificationEnabled, updated.NotificationTime); err != nil {
		return models.Habit{}, err
	}
	updated.ID = r.habits[i].ID
	updated.CreatedAt = r.habits[i].CreatedAt
	updated.UpdatedAt = r.now().UTC()

	next := r.cloneAll()
	next[i] = updated
	if err := r.persist(next); err != nil {
		return models.Habit{}, err
	}
	return updated.Clone(), nil
}

// Delete removes the habit. It reports false when no habit has that id.
// Callers cascade to the completion ledger.
func (r *Repository) Delete(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		logger.Warn("delete requested for unknown habit", "id", id)
		return false, nil
	}

	next := r.cloneAll()
	next = append(next[:i], next[i+1:]...)
	if err := r.persist(next); err != nil {
		return false, err
	}
	return true, nil
}

// Restore re-inserts a previously deleted habit with its original id and
// createdAt. It is a no-op reporting false if the id already exists.
func (r *Repository) Restore(h models.Habit) (bool, error) {
	if h.ID == "" {
		return false, apperrors.Validation("id", "must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(h.ID) >= 0 {
		return false, nil
	}

	next := append(r.cloneAll(), h.Clone())
	if err := r.persist(next); err != nil {
		return false, err
	}
	return true, nil
}

// ReplaceAll overwrites the whole collection, typically with a sync baseline.
func (r *Repository) ReplaceAll(habits []models.Habit) error {
	next := make([]models.Habit, 0, len(habits))
	seen := make(map[string]bool, len(habits))
	for _, h := range habits {
		if h.ID == "" || seen[h.ID] {
			continue
		}
		seen[h.ID] = true
		next = append(next, h.Clone())
	}
	sort.SliceStable(next, func(i, j int) bool {
		return next[i].CreatedAt.Before(next[j].CreatedAt)
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.persist(next)
}

func (r *Repository) indexOf(id string) int {
	for i, h := range r.habits {
		if h.ID == id {
			return i
		}
	}
	return -1
}

func (r *Repository) cloneAll() []models.Habit {
	out := make([]models.Habit, len(r.habits))
	for i, h := range r.habits {
		out[i] = h.Clone()
	}
	return out
}

// persist writes next and swaps it in only after the write succeeds.
func (r *Repository) persist(next []models.Habit) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode habits: %w", err)
	}
	if err := r.store.Put(constants.HabitsKey, data); err != nil {
		return fmt.Errorf("failed to save habits: %w", err)
	}
	r.habits = next
	return nil
}

func validateNotification(enabled bool, at string) error {
	if at == "" {
		if enabled {
			return apperrors.Validation("notificationTime", "required when notifications are enabled")
		}
		return nil
	}
	if err := utils.ValidateTimeFormat(at); err != nil {
		return apperrors.Validation("notificationTime", err.Error())
	}
	return nil
}
