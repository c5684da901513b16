package server

import (
	"context"
	"sort"
	"sync"

	apperrors "github.com/julianstephens/habitkit/internal/errors"
	"github.com/julianstephens/habitkit/internal/models"
)

type userData struct {
	habits      map[string]models.Habit
	completions map[string]models.DatedCompletion
}

// MemoryStore is a Store held in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*userData
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: map[string]*userData{}}
}

func (m *MemoryStore) user(userID string) *userData {
	u, ok := m.users[userID]
	if !ok {
		u = &userData{
			habits:      map[string]models.Habit{},
			completions: map[string]models.DatedCompletion{},
		}
		m.users[userID] = u
	}
	return u
}

func (m *MemoryStore) ListHabits(_ context.Context, userID string) ([]models.Habit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.user(userID)
	out := make([]models.Habit, 0, len(u.habits))
	for _, h := range u.habits {
		out = append(out, h.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) ListCompletions(_ context.Context, userID string) ([]models.DatedCompletion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.user(userID)
	out := make([]models.DatedCompletion, 0, len(u.completions))
	for _, c := range u.completions {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

func (m *MemoryStore) GetHabit(_ context.Context, userID, id string) (models.Habit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.user(userID).habits[id]
	if !ok {
		return models.Habit{}, apperrors.NotFound("habit", id)
	}
	return h.Clone(), nil
}

func (m *MemoryStore) CreateHabit(_ context.Context, userID string, h models.Habit) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.user(userID)
	if _, ok := u.habits[h.ID]; ok {
		return false, nil
	}
	u.habits[h.ID] = h.Clone()
	return true, nil
}

func (m *MemoryStore) UpdateHabit(_ context.Context, userID string, h models.Habit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.user(userID)
	existing, ok := u.habits[h.ID]
	if !ok {
		return apperrors.NotFound("habit", h.ID)
	}
	h.CreatedAt = existing.CreatedAt
	u.habits[h.ID] = h.Clone()
	return nil
}

func (m *MemoryStore) DeleteHabit(_ context.Context, userID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.user(userID)
	if _, ok := u.habits[id]; !ok {
		return false, nil
	}
	delete(u.habits, id)
	for k, c := range u.completions {
		if c.HabitID == id {
			delete(u.completions, k)
		}
	}
	return true, nil
}

func (m *MemoryStore) HasCompletion(_ context.Context, userID, habitID, dayKey string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.user(userID).completions[habitID+"|"+dayKey]
	return ok, nil
}

func (m *MemoryStore) AddCompletion(_ context.Context, userID string, c models.DatedCompletion) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.user(userID)
	if _, ok := u.habits[c.HabitID]; !ok {
		return false, apperrors.NotFound("habit", c.HabitID)
	}
	if _, ok := u.completions[c.Key()]; ok {
		return false, nil
	}
	u.completions[c.Key()] = c
	return true, nil
}

func (m *MemoryStore) RemoveCompletion(_ context.Context, userID, habitID, dayKey string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.user(userID)
	key := habitID + "|" + dayKey
	if _, ok := u.completions[key]; !ok {
		return false, nil
	}
	delete(u.completions, key)
	return true, nil
}

func (m *MemoryStore) Close() error { return nil }
