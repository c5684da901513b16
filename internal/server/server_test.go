package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/habitkit/internal/api"
	"github.com/julianstephens/habitkit/internal/events"
	"github.com/julianstephens/habitkit/internal/models"
	"github.com/julianstephens/habitkit/internal/utils"
)

const testSecret = "test-secret-0123456789"

var serverNow = time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC)

type testServer struct {
	srv      *httptest.Server
	store    *MemoryStore
	recorder *events.Recorder
	token    string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	tokens, err := NewTokenManager(testSecret)
	require.NoError(t, err)
	token, err := tokens.Issue("alice", time.Hour)
	require.NoError(t, err)

	store := NewMemoryStore()
	recorder := &events.Recorder{}
	s := New(Options{
		Store:         store,
		Tokens:        tokens,
		Publisher:     recorder,
		Clock:         utils.FixedClock(serverNow),
		EnableMetrics: true,
	})

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, store: store, recorder: recorder, token: token}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+ts.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	metrics, err := http.Get(ts.srv.URL + "/metrics")
	require.NoError(t, err)
	defer metrics.Body.Close()
	assert.Equal(t, http.StatusOK, metrics.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.srv.URL + "/habits")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	ts.token = "not-a-jwt"
	bad := ts.do(t, http.MethodGet, "/habits", nil)
	assert.Equal(t, http.StatusUnauthorized, bad.StatusCode)

	var body api.ErrorResponse
	decode(t, bad, &body)
	assert.Equal(t, api.CodeUnauthorized, body.Code)
}

func TestCreateHabitKeepsClientID(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/habits", models.Habit{
		ID:         "client-1",
		Name:       " Read ",
		TargetDays: []time.Weekday{time.Friday, time.Monday},
		Tags:       []string{"Mind"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var h models.Habit
	decode(t, resp, &h)
	assert.Equal(t, "client-1", h.ID)
	assert.Equal(t, "Read", h.Name)
	assert.Equal(t, []time.Weekday{time.Monday, time.Friday}, h.TargetDays)
	assert.Equal(t, []string{"mind"}, h.Tags)
	assert.True(t, h.CreatedAt.Equal(serverNow))

	// Creating the same id again is a no-op.
	again := ts.do(t, http.MethodPost, "/habits", models.Habit{ID: "client-1", Name: "Other"})
	require.Equal(t, http.StatusOK, again.StatusCode)
	var existing models.Habit
	decode(t, again, &existing)
	assert.Equal(t, "Read", existing.Name)

	list := ts.do(t, http.MethodGet, "/habits", nil)
	var resources []api.HabitResource
	decode(t, list, &resources)
	assert.Len(t, resources, 1)
}

func TestCreateHabitValidation(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/habits", models.Habit{Name: ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body api.ErrorResponse
	decode(t, resp, &body)
	assert.Equal(t, api.CodeValidation, body.Code)
}

func TestUpdateHabit(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/habits", models.Habit{ID: "h1", Name: "Run", Tags: []string{"fit"}})

	name := "Run far"
	resp := ts.do(t, http.MethodPut, "/habits/h1", models.HabitPatch{Name: &name})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var h models.Habit
	decode(t, resp, &h)
	assert.Equal(t, "Run far", h.Name)
	assert.Equal(t, []string{"fit"}, h.Tags, "fields absent from the patch are untouched")

	missing := ts.do(t, http.MethodPut, "/habits/nope", models.HabitPatch{Name: &name})
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestUpdateHabitKeepsReplicatedTimestamp(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/habits", models.Habit{ID: "h1", Name: "Run"})

	stamp := time.Date(2024, 1, 5, 9, 30, 0, 0, time.UTC)
	name := "Walk"
	resp := ts.do(t, http.MethodPut, "/habits/h1", models.HabitPatch{Name: &name, UpdatedAt: &stamp})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var h models.Habit
	decode(t, resp, &h)
	assert.True(t, h.UpdatedAt.Equal(stamp))
}

func TestCompletionToggle(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/habits", models.Habit{ID: "h1", Name: "Run"})

	var state api.CompletionResponse
	decode(t, ts.do(t, http.MethodPost, "/habits/h1/completions", api.CompletionRequest{Date: "2024-01-08"}), &state)
	assert.True(t, state.Completed)

	decode(t, ts.do(t, http.MethodPost, "/habits/h1/completions", api.CompletionRequest{Date: "2024-01-08"}), &state)
	assert.False(t, state.Completed)

	done := true
	decode(t, ts.do(t, http.MethodPost, "/habits/h1/completions", api.CompletionRequest{Date: "2024-01-07", Completed: &done}), &state)
	assert.True(t, state.Completed)
	decode(t, ts.do(t, http.MethodPost, "/habits/h1/completions", api.CompletionRequest{Date: "2024-01-07", Completed: &done}), &state)
	assert.True(t, state.Completed, "explicit set is idempotent")

	var types []string
	for _, e := range ts.recorder.Events() {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{
		events.TypeHabitCreated,
		events.TypeCompletionRecorded,
		events.TypeCompletionCleared,
		events.TypeCompletionRecorded,
	}, types)
}

func TestCompletionRejectsFutureAndUnknown(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/habits", models.Habit{ID: "h1", Name: "Run"})

	future := ts.do(t, http.MethodPost, "/habits/h1/completions", api.CompletionRequest{Date: "2024-01-09"})
	assert.Equal(t, http.StatusBadRequest, future.StatusCode)
	var body api.ErrorResponse
	decode(t, future, &body)
	assert.Equal(t, api.CodeFutureDate, body.Code)

	unknown := ts.do(t, http.MethodPost, "/habits/nope/completions", api.CompletionRequest{Date: "2024-01-08"})
	assert.Equal(t, http.StatusNotFound, unknown.StatusCode)

	bad := ts.do(t, http.MethodPost, "/habits/h1/completions", api.CompletionRequest{Date: "Jan 8"})
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestDeleteHabitCascades(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/habits", models.Habit{ID: "h1", Name: "Run"})
	ts.do(t, http.MethodPost, "/habits/h1/completions", api.CompletionRequest{Date: "2024-01-08"})

	resp := ts.do(t, http.MethodDelete, "/habits/h1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	completions, err := ts.store.ListCompletions(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, completions)

	again := ts.do(t, http.MethodDelete, "/habits/h1", nil)
	assert.Equal(t, http.StatusNotFound, again.StatusCode)
}

func TestSyncEndpointMerges(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/habits", models.Habit{ID: "server-1", Name: "Server habit"})
	ts.do(t, http.MethodPost, "/habits/server-1/completions", api.CompletionRequest{Date: "2024-01-01"})

	created := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	incoming := models.Snapshot{
		Habits: []models.Habit{
			{ID: "client-1", Name: "Client habit", TargetDays: []time.Weekday{time.Monday}, CreatedAt: created, UpdatedAt: created},
		},
		Completions: []models.DatedCompletion{
			{HabitID: "client-1", DayKey: "2024-01-08", CompletedAt: created},
			{HabitID: "ghost", DayKey: "2024-01-08", CompletedAt: created},
		},
	}

	resp := ts.do(t, http.MethodPost, "/habits/sync", incoming)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var merged api.SyncResponse
	decode(t, resp, &merged)
	assert.Len(t, merged.Habits, 2)
	assert.Len(t, merged.Completions, 2)
	assert.Equal(t, 1, merged.Report.HabitsCreated)
	assert.Equal(t, 1, merged.Report.CompletionsCreated)

	// Same payload again writes nothing.
	second := ts.do(t, http.MethodPost, "/habits/sync", incoming)
	var again api.SyncResponse
	decode(t, second, &again)
	assert.Zero(t, again.Report.HabitsCreated+again.Report.HabitsUpdated+again.Report.CompletionsCreated)
}

func TestUsersAreIsolated(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/habits", models.Habit{ID: "h1", Name: "Alice habit"})

	tokens, err := NewTokenManager(testSecret)
	require.NoError(t, err)
	ts.token, err = tokens.Issue("bob", time.Hour)
	require.NoError(t, err)

	var resources []api.HabitResource
	decode(t, ts.do(t, http.MethodGet, "/habits", nil), &resources)
	assert.Empty(t, resources)
}

func TestInvalidBody(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/habits", strings.NewReader("{"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+ts.token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
