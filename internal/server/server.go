/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server exposes the transmitter's health, metrics and status over
// HTTP. It is read-only and never touches the carrier.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/friendsincode/timesignal/internal/logbuffer"
	"github.com/friendsincode/timesignal/internal/scheduler/state"
	"github.com/friendsincode/timesignal/internal/telemetry"
	"github.com/friendsincode/timesignal/internal/version"
)

// Info describes the transmitter configuration shown by the status API.
type Info struct {
	Standard    string `json:"standard"`
	FrequencyHz int    `json:"frequency_hz"`
	Driver      string `json:"driver"`
	TimeZone    string `json:"time_zone"`
}

// Server bundles the HTTP router and listener.
type Server struct {
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	store      *state.Store
	logs       *logbuffer.Buffer
	info       Info
}

// Option customizes a Server.
type Option func(*Server)

// WithLogBuffer serves the buffered process logs under /api/v1/logs.
func WithLogBuffer(buf *logbuffer.Buffer) Option {
	return func(s *Server) { s.logs = buf }
}

// New builds the status server listening on bind.
func New(bind string, store *state.Store, info Info, logger zerolog.Logger, opts ...Option) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("timesignal-status"))
	router.Use(telemetry.MetricsMiddleware)
	router.Use(middleware.Timeout(10 * time.Second))

	srv := &Server{
		logger: logger.With().Str("component", "http").Logger(),
		router: router,
		store:  store,
		info:   info,
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.configureRoutes()

	srv.httpServer = &http.Server{
		Addr:              bind,
		Handler:           srv.router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("status server listening")
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		st := s.store.Snapshot()
		writeJSON(w, http.StatusOK, map[string]any{
			"status":       "ok",
			"transmitting": st.Running,
		})
	})

	s.router.Handle("/metrics", telemetry.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/minutes", s.handleMinutes)
		if s.logs != nil {
			r.Get("/logs", s.handleLogs)
		}
	})
}

type statusResponse struct {
	Version string `json:"version"`
	Info
	Session state.Status `json:"session"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Version: version.Version,
		Info:    s.info,
		Session: s.store.Snapshot(),
	})
}

func (s *Server) handleMinutes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"minutes": s.store.Recent(),
	})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := logbuffer.QueryParams{
		Level:      q.Get("level"),
		Component:  q.Get("component"),
		Search:     q.Get("search"),
		Limit:      200,
		Descending: true,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		params.Limit = n
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be RFC 3339"})
			return
		}
		params.Since = since
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": s.logs.Query(params),
		"stats":   s.logs.Stats(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
