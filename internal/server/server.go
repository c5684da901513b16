// Package server implements the habitkit sync server: a JSON API over a
// per-user habit store, authenticated with bearer tokens.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/julianstephens/habitkit/internal/api"
	apperrors "github.com/julianstephens/habitkit/internal/errors"
	"github.com/julianstephens/habitkit/internal/events"
	"github.com/julianstephens/habitkit/internal/logger"
	"github.com/julianstephens/habitkit/internal/models"
	"github.com/julianstephens/habitkit/internal/syncer"
	"github.com/julianstephens/habitkit/internal/utils"
)

const (
	maxBodyBytes     = 1 << 20
	maxSyncBodyBytes = 8 << 20
)

// Options configures a Server. Store and Tokens are required.
type Options struct {
	Store         Store
	Tokens        *TokenManager
	Publisher     events.Publisher
	Clock         utils.Clock
	EnableMetrics bool
}

type Server struct {
	store          Store
	tokens         *TokenManager
	publisher      events.Publisher
	now            utils.Clock
	metricsEnabled bool
}

func New(opts Options) *Server {
	s := &Server{
		store:          opts.Store,
		tokens:         opts.Tokens,
		publisher:      opts.Publisher,
		now:            opts.Clock,
		metricsEnabled: opts.EnableMetrics,
	}
	if s.publisher == nil {
		s.publisher = events.Nop{}
	}
	if s.now == nil {
		s.now = utils.SystemClock
	}
	return s
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(instrument)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(s.tokens.Middleware)

		r.Get("/habits", s.handleListHabits)
		r.Post("/habits", s.handleCreateHabit)
		r.Post("/habits/sync", s.handleSync)
		r.Put("/habits/{id}", s.handleUpdateHabit)
		r.Delete("/habits/{id}", s.handleDeleteHabit)
		r.Post("/habits/{id}/completions", s.handleCompletion)
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleListHabits(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	snap, err := s.snapshot(r.Context(), userID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromSnapshot(snap))
}

func (s *Server) handleCreateHabit(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var h models.Habit
	if !decodeBody(w, r, maxBodyBytes, &h) {
		return
	}

	created, isNew, err := s.createHabit(r.Context(), userID, h)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	status := http.StatusOK
	if isNew {
		status = http.StatusCreated
	}
	writeJSON(w, status, created)
}

func (s *Server) handleUpdateHabit(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var patch models.HabitPatch
	if !decodeBody(w, r, maxBodyBytes, &patch) {
		return
	}

	updated, err := s.updateHabit(r.Context(), userID, chi.URLParam(r, "id"), patch)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteHabit(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	if err := s.deleteHabit(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCompletion(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	habitID := chi.URLParam(r, "id")

	var req api.CompletionRequest
	if !decodeBody(w, r, maxBodyBytes, &req) {
		return
	}

	completed, err := s.setCompletion(r.Context(), userID, habitID, req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.CompletionResponse{HabitID: habitID, Date: req.Date, Completed: completed})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var incoming models.Snapshot
	if !decodeBody(w, r, maxSyncBodyBytes, &incoming) {
		return
	}

	merged, report, err := syncer.NewEngine(&userRemote{s: s, userID: userID}).Sync(r.Context(), incoming)
	if err != nil {
		// Failures here come from the server's own store.
		var ste *apperrors.SyncTransportError
		if errors.As(err, &ste) {
			err = ste.Err
		}
		s.writeDomainError(w, err)
		return
	}

	SyncMerges.Inc()
	SyncWrites.WithLabelValues("habit_created").Add(float64(report.HabitsCreated))
	SyncWrites.WithLabelValues("habit_updated").Add(float64(report.HabitsUpdated))
	SyncWrites.WithLabelValues("completion_created").Add(float64(report.CompletionsCreated))

	writeJSON(w, http.StatusOK, api.SyncResponse{
		Snapshot: merged,
		Report: api.SyncReport{
			HabitsCreated:       report.HabitsCreated,
			HabitsUpdated:       report.HabitsUpdated,
			CompletionsCreated:  report.CompletionsCreated,
			CompletionsRejected: report.CompletionsRejected,
		},
	})
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		writeError(w, http.StatusBadRequest, api.CodeValidation, err.Error())
	case errors.Is(err, apperrors.ErrFutureDate):
		writeError(w, http.StatusBadRequest, api.CodeFutureDate, err.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		writeError(w, http.StatusNotFound, api.CodeNotFound, err.Error())
	default:
		logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, api.CodeInternal, "internal server error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, api.CodeValidation, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, api.ErrorResponse{Error: msg, Code: code})
}
