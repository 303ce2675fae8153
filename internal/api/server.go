// Package api serves the tracker's latest snapshot and recent ground track
// over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/soupbadger/rpi-space/internal/logging"
	"github.com/soupbadger/rpi-space/model"
)

const (
	// DefaultTrackLimit is used when /track has no limit parameter.
	DefaultTrackLimit = 100
	// MaxTrackLimit caps the limit parameter.
	MaxTrackLimit = 5000
)

// SnapshotStore holds the most recently published snapshot. Present is
// called from the tracker goroutine; Load from any number of handlers.
type SnapshotStore struct {
	latest atomic.Pointer[model.Snapshot]
}

// Present stores snap. It satisfies core.Presenter.
func (s *SnapshotStore) Present(_ context.Context, snap model.Snapshot) {
	s.latest.Store(&snap)
}

// Load returns the latest snapshot, or false before the first frame.
func (s *SnapshotStore) Load() (model.Snapshot, bool) {
	p := s.latest.Load()
	if p == nil {
		return model.Snapshot{}, false
	}
	return *p, true
}

// TrackReader is the read side of the fix history.
type TrackReader interface {
	Recent(limit int) []model.Fix
	Len() int
}

// SnapshotResponse is the /snapshot body.
type SnapshotResponse struct {
	model.Snapshot
	Fetching bool `json:"fetching"`
}

// TrackResponse is the /track body. Fixes are ordered oldest first.
type TrackResponse struct {
	Count  int         `json:"count"`
	Stored int         `json:"stored"`
	Fixes  []model.Fix `json:"fixes"`
}

// ServerOption configures the API server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	middlewares []func(http.Handler) http.Handler
}

// WithMiddlewares adds middleware to the server.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// NewServer builds the router. track may be nil, in which case /track is
// not mounted.
func NewServer(snapshots *SnapshotStore, track TrackReader, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	r.Get("/healthz", healthHandler)
	r.Get("/snapshot", snapshotHandler(snapshots))
	if track != nil {
		r.Get("/track", trackHandler(track))
	}
	return r
}

// LoggingMiddleware logs every request at debug level.
func LoggingMiddleware(log logging.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logging.Noop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			log.Debug(r.Context(), "http request",
				logging.String("method", r.Method),
				logging.String("path", r.URL.Path),
				logging.Int("status", ww.Status()),
				logging.Duration("elapsed", time.Since(start)),
				logging.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func snapshotHandler(store *SnapshotStore) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snap, ok := store.Load()
		if !ok {
			writeError(w, "no snapshot published yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, SnapshotResponse{Snapshot: snap, Fetching: snap.Fetching()}, http.StatusOK)
	}
}

func trackHandler(track TrackReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := DefaultTrackLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = min(n, MaxTrackLimit)
		}

		fixes := track.Recent(limit)
		if fixes == nil {
			fixes = []model.Fix{}
		}
		writeJSON(w, TrackResponse{Count: len(fixes), Stored: track.Len(), Fixes: fixes}, http.StatusOK)
	}
}

func writeJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, map[string]string{"error": message}, statusCode)
}
