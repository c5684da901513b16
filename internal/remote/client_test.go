package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/julianstephens/habitkit/internal/errors"
	"github.com/julianstephens/habitkit/internal/events"
	"github.com/julianstephens/habitkit/internal/models"
	"github.com/julianstephens/habitkit/internal/server"
	"github.com/julianstephens/habitkit/internal/syncer"
	"github.com/julianstephens/habitkit/internal/utils"
)

var _ syncer.Remote = (*Client)(nil)

var remoteNow = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

func newServerClient(t *testing.T) (*Client, *server.MemoryStore) {
	t.Helper()

	tokens, err := server.NewTokenManager("remote-test-secret-0123")
	require.NoError(t, err)
	token, err := tokens.Issue("alice", 0)
	require.NoError(t, err)

	store := server.NewMemoryStore()
	srv := httptest.NewServer(server.New(server.Options{
		Store:     store,
		Tokens:    tokens,
		Publisher: events.Nop{},
		Clock:     utils.FixedClock(remoteNow),
	}).Handler())
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/", token)
	require.NoError(t, err)
	return c, store
}

func TestNewRejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "not a url", "/relative"} {
		_, err := New(raw, "t")
		assert.Error(t, err, raw)
	}
}

func TestClientRoundTrip(t *testing.T) {
	c, _ := newServerClient(t)
	ctx := context.Background()
	created := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, c.CreateHabit(ctx, models.Habit{
		ID: "h1", Name: "Read", TargetDays: []time.Weekday{time.Monday}, CreatedAt: created, UpdatedAt: created,
	}))

	name := "Read daily"
	stamp := created.Add(time.Hour)
	require.NoError(t, c.UpdateHabit(ctx, "h1", models.HabitPatch{Name: &name, UpdatedAt: &stamp}))

	require.NoError(t, c.CreateCompletion(ctx, models.DatedCompletion{HabitID: "h1", DayKey: "2024-01-08", CompletedAt: created}))
	// Setting twice keeps the completion.
	require.NoError(t, c.CreateCompletion(ctx, models.DatedCompletion{HabitID: "h1", DayKey: "2024-01-08", CompletedAt: created}))

	snap, err := c.FetchSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Habits, 1)
	assert.Equal(t, "Read daily", snap.Habits[0].Name)
	assert.True(t, snap.Habits[0].UpdatedAt.Equal(stamp))
	require.Len(t, snap.Completions, 1)
	assert.Equal(t, "2024-01-08", snap.Completions[0].DayKey)
}

func TestClientErrorMapping(t *testing.T) {
	c, _ := newServerClient(t)
	ctx := context.Background()
	require.NoError(t, c.CreateHabit(ctx, models.Habit{ID: "h1", Name: "Read"}))

	err := c.CreateCompletion(ctx, models.DatedCompletion{HabitID: "h1", DayKey: "2024-01-11"})
	var fde *apperrors.FutureDateError
	require.True(t, errors.As(err, &fde))
	assert.Equal(t, "2024-01-11", fde.DayKey)

	name := "x"
	err = c.UpdateHabit(ctx, "missing", models.HabitPatch{Name: &name})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.EqualError(t, err, "habit not found: missing")

	err = c.CreateCompletion(ctx, models.DatedCompletion{HabitID: "gone", DayKey: "2024-01-09"})
	assert.EqualError(t, err, "habit not found: gone")

	err = c.CreateHabit(ctx, models.Habit{ID: "h2"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "validation", apiErr.Code)
}

func TestClientUnauthorized(t *testing.T) {
	c, _ := newServerClient(t)
	c.token = "bogus"

	_, err := c.FetchSnapshot(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestClientTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := New(url, "t", WithTimeout(time.Second))
	require.NoError(t, err)
	_, err = c.FetchSnapshot(context.Background())
	assert.Error(t, err)
}

func TestWithTimeoutLeavesSharedClientAlone(t *testing.T) {
	shared := &http.Client{Timeout: time.Minute}

	c, err := New("http://example.test", "t", WithHTTPClient(shared), WithTimeout(time.Second))
	require.NoError(t, err)

	assert.Equal(t, time.Minute, shared.Timeout)
	assert.Equal(t, time.Second, c.httpClient.Timeout)
	assert.NotSame(t, shared, c.httpClient)
}

func TestHabitIDFromPath(t *testing.T) {
	tests := map[string]string{
		"/habits":                      "",
		"/habits/sync":                 "",
		"/habits/h1":                   "h1",
		"/habits/h1/completions":       "h1",
		"/habits/gone%2F1/completions": "gone/1",
	}
	for path, want := range tests {
		assert.Equal(t, want, habitIDFromPath(path), path)
	}
}

func TestClientNonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, "t", WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	_, err = c.FetchSnapshot(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "bad gateway", apiErr.Message)
}

// Engine against the real server: a second sync of unchanged state writes nothing.
func TestSyncIdempotentAgainstServer(t *testing.T) {
	c, _ := newServerClient(t)
	ctx := context.Background()
	created := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	local := models.Snapshot{
		Habits: []models.Habit{{ID: "h1", Name: "Read", CreatedAt: created, UpdatedAt: created}},
		Completions: []models.DatedCompletion{
			{HabitID: "h1", DayKey: "2024-01-02", CompletedAt: created},
			{HabitID: "h1", DayKey: "2024-01-12", CompletedAt: created},
		},
	}

	engine := syncer.NewEngine(c)
	merged, report, err := engine.Sync(ctx, local)
	require.NoError(t, err)
	assert.Equal(t, 1, report.HabitsCreated)
	assert.Equal(t, 1, report.CompletionsCreated)
	assert.Equal(t, 1, report.CompletionsRejected)
	assert.Len(t, merged.Completions, 1)

	_, again, err := engine.Sync(ctx, merged)
	require.NoError(t, err)
	assert.Zero(t, again.Writes())
}

func TestMerge(t *testing.T) {
	c, _ := newServerClient(t)
	created := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	resp, err := c.Merge(context.Background(), models.Snapshot{
		Habits:      []models.Habit{{ID: "h1", Name: "Read", CreatedAt: created, UpdatedAt: created}},
		Completions: []models.DatedCompletion{{HabitID: "h1", DayKey: "2024-01-02", CompletedAt: created}},
	})
	require.NoError(t, err)
	assert.Len(t, resp.Habits, 1)
	assert.Len(t, resp.Completions, 1)
	assert.Equal(t, 1, resp.Report.HabitsCreated)
}
