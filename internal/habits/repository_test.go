package habits

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/julianstephens/habitkit/internal/constants"
	apperrors "github.com/julianstephens/habitkit/internal/errors"
	"github.com/julianstephens/habitkit/internal/models"
	"github.com/julianstephens/habitkit/internal/storage"
)

type stepClock struct {
	at time.Time
}

func (c *stepClock) now() time.Time { return c.at }

func (c *stepClock) advance(d time.Duration) { c.at = c.at.Add(d) }

func setupTestRepository(t *testing.T) (*Repository, *storage.JSONStore, *stepClock) {
	store := storage.NewJSONStore(filepath.Join(t.TempDir(), "data"))
	if err := store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}

	clock := &stepClock{at: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	repo, err := Open(store, clock.now)
	if err != nil {
		t.Fatalf("failed to open repository: %v", err)
	}

	n := 0
	repo.newID = func() string {
		n++
		return fmt.Sprintf("habit-%d", n)
	}
	return repo, store, clock
}

func TestCreateHabit(t *testing.T) {
	repo, store, clock := setupTestRepository(t)

	h, err := repo.Create(models.HabitAttrs{
		Name:       "  Meditation ",
		TargetDays: []time.Weekday{time.Friday, time.Monday, time.Wednesday},
		Tags:       []string{"Mind", "mind", " calm "},
	})
	if err != nil {
		t.Fatalf("failed to create habit: %v", err)
	}

	if h.ID != "habit-1" {
		t.Errorf("expected id habit-1, got %q", h.ID)
	}
	if h.Name != "Meditation" {
		t.Errorf("expected trimmed name, got %q", h.Name)
	}
	if !reflect.DeepEqual(h.TargetDays, []time.Weekday{time.Monday, time.Wednesday, time.Friday}) {
		t.Errorf("unexpected target days %v", h.TargetDays)
	}
	if !reflect.DeepEqual(h.Tags, []string{"mind", "calm"}) {
		t.Errorf("unexpected tags %v", h.Tags)
	}
	if !h.CreatedAt.Equal(clock.at) || !h.UpdatedAt.Equal(clock.at) {
		t.Errorf("expected timestamps %v, got %v/%v", clock.at, h.CreatedAt, h.UpdatedAt)
	}
	if h.Archived {
		t.Error("new habit should not be archived")
	}

	// Persisted before returning
	reopened, err := Open(store, clock.now)
	if err != nil {
		t.Fatalf("failed to reopen: %v", err)
	}
	if got, err := reopened.Get("habit-1"); err != nil || got.Name != "Meditation" {
		t.Errorf("expected persisted habit, got %+v (%v)", got, err)
	}
}

func TestCreateHabitValidation(t *testing.T) {
	repo, _, _ := setupTestRepository(t)

	tests := []struct {
		name  string
		attrs models.HabitAttrs
	}{
		{"empty name", models.HabitAttrs{Name: "   "}},
		{"bad weekday", models.HabitAttrs{Name: "Run", TargetDays: []time.Weekday{9}}},
		{"bad reminder time", models.HabitAttrs{Name: "Run", NotificationTime: "25:00"}},
		{"reminder without time", models.HabitAttrs{Name: "Run", NotificationEnabled: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Create(tt.attrs)
			if !errors.Is(err, apperrors.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}

	if len(repo.List()) != 0 {
		t.Error("failed creates must not persist anything")
	}
}

func TestUpdateHabit(t *testing.T) {
	repo, _, clock := setupTestRepository(t)

	h, err := repo.Create(models.HabitAttrs{Name: "Read", TargetDays: []time.Weekday{time.Monday}})
	if err != nil {
		t.Fatalf("failed to create habit: %v", err)
	}

	clock.advance(time.Hour)
	name := "Read books"
	archived := true
	updated, err := repo.Update(h.ID, models.HabitPatch{Name: &name, Archived: &archived})
	if err != nil {
		t.Fatalf("failed to update habit: %v", err)
	}

	if updated.Name != "Read books" || !updated.Archived {
		t.Errorf("patch not applied: %+v", updated)
	}
	if !updated.CreatedAt.Equal(h.CreatedAt) {
		t.Error("createdAt must not change")
	}
	if !updated.UpdatedAt.Equal(clock.at) {
		t.Errorf("expected updatedAt %v, got %v", clock.at, updated.UpdatedAt)
	}
	if !reflect.DeepEqual(updated.TargetDays, h.TargetDays) {
		t.Error("fields absent from the patch must not change")
	}
}

func TestUpdateHabitErrors(t *testing.T) {
	repo, _, _ := setupTestRepository(t)

	name := "x"
	if _, err := repo.Update("missing", models.HabitPatch{Name: &name}); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}

	h, _ := repo.Create(models.HabitAttrs{Name: "Read"})
	blank := " "
	if _, err := repo.Update(h.ID, models.HabitPatch{Name: &blank}); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestDeleteAndRestoreHabit(t *testing.T) {
	repo, _, _ := setupTestRepository(t)

	h, _ := repo.Create(models.HabitAttrs{Name: "Stretch"})

	deleted, err := repo.Delete(h.ID)
	if err != nil || !deleted {
		t.Fatalf("expected delete to succeed, got %v (%v)", deleted, err)
	}
	if _, err := repo.Get(h.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected deleted habit to be gone, got %v", err)
	}

	deleted, err = repo.Delete(h.ID)
	if err != nil || deleted {
		t.Errorf("second delete should report false, got %v (%v)", deleted, err)
	}

	restored, err := repo.Restore(h)
	if err != nil || !restored {
		t.Fatalf("expected restore to succeed, got %v (%v)", restored, err)
	}
	got, err := repo.Get(h.ID)
	if err != nil {
		t.Fatalf("restored habit missing: %v", err)
	}
	if !got.CreatedAt.Equal(h.CreatedAt) {
		t.Error("restore must keep original createdAt")
	}

	restored, err = repo.Restore(h)
	if err != nil || restored {
		t.Errorf("restoring an existing id should be a no-op, got %v (%v)", restored, err)
	}
	if len(repo.List()) != 1 {
		t.Errorf("expected 1 habit, got %d", len(repo.List()))
	}
}

func TestFindByName(t *testing.T) {
	repo, _, _ := setupTestRepository(t)
	h, _ := repo.Create(models.HabitAttrs{Name: "Drink Water"})

	for _, q := range []string{"drink water", "DRINK WATER", h.ID} {
		got, err := repo.FindByName(q)
		if err != nil || got.ID != h.ID {
			t.Errorf("FindByName(%q) = %+v, %v", q, got, err)
		}
	}
	if _, err := repo.FindByName("nope"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestOpenCorruptStorage(t *testing.T) {
	store := storage.NewMemoryStore()
	if err := store.Put(constants.HabitsKey, []byte("{not json")); err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}

	repo, err := Open(store, nil)
	if err != nil {
		t.Fatalf("corrupt storage should not fail open: %v", err)
	}
	if len(repo.List()) != 0 {
		t.Errorf("expected empty list, got %d habits", len(repo.List()))
	}
}

type failingStore struct {
	*storage.MemoryStore
}

func (failingStore) Put(string, []byte) error { return fmt.Errorf("disk full") }

func TestFailedWriteLeavesStateUnchanged(t *testing.T) {
	repo, err := Open(failingStore{storage.NewMemoryStore()}, nil)
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	if _, err := repo.Create(models.HabitAttrs{Name: "Run"}); err == nil {
		t.Fatal("expected write failure")
	}
	if len(repo.List()) != 0 {
		t.Error("failed write must not change in-memory state")
	}
}

func TestReplaceAll(t *testing.T) {
	repo, _, _ := setupTestRepository(t)
	repo.Create(models.HabitAttrs{Name: "Old"})

	t1 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	t0 := t1.Add(-24 * time.Hour)
	err := repo.ReplaceAll([]models.Habit{
		{ID: "b", Name: "Second", CreatedAt: t1},
		{ID: "a", Name: "First", CreatedAt: t0},
		{ID: "a", Name: "Dup", CreatedAt: t0},
	})
	if err != nil {
		t.Fatalf("failed to replace: %v", err)
	}

	list := repo.List()
	if len(list) != 2 || list[0].ID != "a" || list[1].ID != "b" {
		t.Errorf("unexpected list after replace: %+v", list)
	}
}

func TestListReturnsCopies(t *testing.T) {
	repo, _, _ := setupTestRepository(t)
	repo.Create(models.HabitAttrs{Name: "Run", Tags: []string{"fit"}})

	list := repo.List()
	list[0].Tags[0] = "mutated"

	if got := repo.List()[0].Tags[0]; got != "fit" {
		t.Errorf("repository state leaked through List, tag = %q", got)
	}
}
