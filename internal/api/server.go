// Package api exposes the status and metrics HTTP interface for a running
// fetch service: liveness/readiness probes, the Prometheus registry, the
// latest run snapshot, and read-only game lookups.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mjsoul-tools/soulcrawl/internal/game"
	"github.com/mjsoul-tools/soulcrawl/internal/progress/sinks"
	"github.com/mjsoul-tools/soulcrawl/internal/store"
)

// GameSource is the read-only slice of the store the server needs.
type GameSource interface {
	GetGame(ctx context.Context, id string) (game.Row, error)
	CountGames(ctx context.Context) (int64, error)
}

// StatusSource yields the latest run snapshot.
type StatusSource interface {
	Snapshot() sinks.Snapshot
}

// Server wires HTTP handlers to the store and the run status.
type Server struct {
	router chi.Router
	games  GameSource
	status StatusSource
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes. metrics is the
// Prometheus handler for the service registry; a nil logger is replaced with
// a no-op one.
func NewServer(games GameSource, status StatusSource, metrics http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = http.NotFoundHandler()
	}
	s := &Server{games: games, status: status, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(30 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.getStatus)
		r.Route("/games", func(r chi.Router) {
			r.Get("/count", s.getGameCount)
			r.Get("/{game_id}", s.getGame)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// The store is the only downstream; a count doubles as a ping.
	if _, err := s.games.CountGames(r.Context()); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) getStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.status.Snapshot())
}

func (s *Server) getGameCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.games.CountGames(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to count games")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"count": count})
}

func (s *Server) getGame(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "game_id")
	row, err := s.games.GetGame(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "game not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "failed to read game")
		return
	}
	s.writeJSON(w, http.StatusOK, gameResponse(row))
}

// gameResponse mirrors the stored row in JSON, seats keyed 1..4.
func gameResponse(row game.Row) map[string]any {
	resp := map[string]any{
		"id":       row.ID,
		"mode":     row.Mode,
		"end_time": row.EndTime,
	}
	seats := make([]map[string]int, 0, len(row.Seats))
	for _, seat := range row.Seats {
		seats = append(seats, map[string]int{
			"level":         seat.Level,
			"score":         seat.Score,
			"grading_score": seat.GradingScore,
		})
	}
	resp["seats"] = seats
	return resp
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
