/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package api provides the HTTP control and query API for entityradar.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	erhttp "github.com/carverauto/entityradar/pkg/http"
	"github.com/carverauto/entityradar/pkg/logger"
	"github.com/carverauto/entityradar/pkg/models"
)

const (
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 60 * time.Second

	maxBodyBytes = 1 << 20
)

// APIServer serves the correlation control routes and entity queries.
type APIServer struct {
	router    *mux.Router
	config    models.APIConfig
	store     Store
	scheduler Scheduler
	logger    logger.Logger

	mu         sync.RWMutex
	collectors func() []CollectorStatus
	srv        *http.Server
	closed     bool
}

// NewAPIServer creates a new API server instance with the given configuration.
func NewAPIServer(config models.APIConfig, options ...func(server *APIServer)) *APIServer {
	s := &APIServer{
		router: mux.NewRouter(),
		config: config,
		logger: logger.NewTestLogger(),
	}

	for _, o := range options {
		o(s)
	}

	s.setupRoutes()

	return s
}

// WithStore sets the entity store backing query routes.
func WithStore(store Store) func(server *APIServer) {
	return func(server *APIServer) {
		server.store = store
	}
}

// WithScheduler sets the correlation scheduler driven by control routes.
func WithScheduler(sched Scheduler) func(server *APIServer) {
	return func(server *APIServer) {
		server.scheduler = sched
	}
}

func WithLogger(log logger.Logger) func(server *APIServer) {
	return func(server *APIServer) {
		server.logger = log
	}
}

// WithCollectorStatus exposes collector cycle results on /api/collectors.
func WithCollectorStatus(fn func() []CollectorStatus) func(server *APIServer) {
	return func(server *APIServer) {
		server.collectors = fn
	}
}

func (s *APIServer) setupRoutes() {
	s.router.Use(func(next http.Handler) http.Handler {
		return erhttp.CommonMiddleware(next, s.config.CORS, s.logger)
	})

	s.router.HandleFunc("/health", s.health).Methods(http.MethodGet)

	protected := s.router.PathPrefix("/api").Subrouter()
	protected.Use(erhttp.APIKeyMiddlewareWithOptions(erhttp.APIKeyOptions{
		APIKey:          s.config.APIKey,
		LogUnauthorized: true,
		Logger:          s.logger,
	}))

	protected.HandleFunc("/correlation/state", s.getCorrelationState).Methods(http.MethodGet)
	protected.HandleFunc("/correlation/start", s.startCorrelation).Methods(http.MethodPost)
	protected.HandleFunc("/correlation/stop", s.stopCorrelation).Methods(http.MethodPost)
	protected.HandleFunc("/correlation/trigger", s.triggerCorrelation).Methods(http.MethodPost)
	protected.HandleFunc("/correlation/filter", s.getCorrelationFilter).Methods(http.MethodGet)
	protected.HandleFunc("/correlation/filter", s.putCorrelationFilter).Methods(http.MethodPut)

	protected.HandleFunc("/entities", s.queryEntities).Methods(http.MethodGet)
	protected.HandleFunc("/entities/{id}", s.getEntity).Methods(http.MethodGet)
	protected.HandleFunc("/entities/{id}/tags", s.addTag).Methods(http.MethodPost)
	protected.HandleFunc("/history", s.queryHistory).Methods(http.MethodGet)
	protected.HandleFunc("/schema/{kind}", s.getSchema).Methods(http.MethodGet)
	protected.HandleFunc("/collectors", s.getCollectors).Methods(http.MethodGet)
}

// ServeHTTP lets the server be mounted or exercised with httptest.
func (s *APIServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start listens on addr and blocks until the server is shut down.
func (s *APIServer) Start(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}

	s.srv = srv
	s.mu.Unlock()

	s.logger.Info().Str("addr", addr).Msg("API server listening")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Shutdown stops accepting requests and waits for active ones.
func (s *APIServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	srv := s.srv
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	return srv.Shutdown(ctx)
}

func (*APIServer) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *APIServer) getCollectors(w http.ResponseWriter, _ *http.Request) {
	if s.collectors == nil {
		writeJSON(w, http.StatusOK, []CollectorStatus{})
		return
	}

	writeJSON(w, http.StatusOK, s.collectors())
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(data)
}

func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}

		return badRequest("invalid request body: " + err.Error())
	}

	return nil
}
