/*
 * Copyright 2025 SteelPOS Systems, Inc.
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

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/steelpos/termfleet/pkg/core"
	"github.com/steelpos/termfleet/pkg/db"
	sphttp "github.com/steelpos/termfleet/pkg/http"
	"github.com/steelpos/termfleet/pkg/logger"
	"github.com/steelpos/termfleet/pkg/models"
)

const (
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultIdleTimeout  = 60 * time.Second

	shutdownTimeout = 10 * time.Second
)

// APIServer is the coordinator's HTTP server. It implements
// lifecycle.Service.
type APIServer struct {
	addr   string
	router *mux.Router
	core   CoreService
	logger logger.Logger
	srv    *http.Server
}

// NewAPIServer wires the router over the core service.
func NewAPIServer(addr, apiKey string, coreService CoreService, log logger.Logger) *APIServer {
	s := &APIServer{
		addr:   addr,
		router: mux.NewRouter(),
		core:   coreService,
		logger: log,
	}

	s.router.Use(sphttp.RequestLogging(log))
	s.router.Use(sphttp.APIKeyMiddleware(apiKey, log))
	s.setupRoutes()

	return s
}

func (s *APIServer) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Agent-facing exchange.
	api.HandleFunc("/terminals/register", s.registerTerminal).Methods(http.MethodPost)
	api.HandleFunc("/terminals/{serial}/heartbeat", s.heartbeat).Methods(http.MethodPost)
	api.HandleFunc("/terminals/{serial}/results", s.submitResults).Methods(http.MethodPost)
	api.HandleFunc("/terminals/{serial}/logs", s.submitLogs).Methods(http.MethodPost)

	// Operator-facing fleet management.
	api.HandleFunc("/terminals", s.listTerminals).Methods(http.MethodGet)
	api.HandleFunc("/terminals/{serial}", s.getTerminal).Methods(http.MethodGet)
	api.HandleFunc("/terminals/{serial}/logs", s.getTerminalLogs).Methods(http.MethodGet)
	api.HandleFunc("/terminals/{serial}/maintenance", s.setMaintenance).Methods(http.MethodPost)
	api.HandleFunc("/terminals/{serial}/tasks", s.listTasks).Methods(http.MethodGet)
	api.HandleFunc("/terminals/{serial}/tasks", s.createTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}", s.getTask).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id}/cancel", s.cancelTask).Methods(http.MethodPost)
	api.HandleFunc("/alerts", s.listAlerts).Methods(http.MethodGet)
	api.HandleFunc("/alerts/{id}/acknowledge", s.acknowledgeAlert).Methods(http.MethodPost)
	api.HandleFunc("/alerts/{id}/resolve", s.resolveAlert).Methods(http.MethodPost)
	api.HandleFunc("/firmware", s.listFirmware).Methods(http.MethodGet)
	api.HandleFunc("/firmware", s.publishFirmware).Methods(http.MethodPost)
	api.HandleFunc("/deployments", s.deploy).Methods(http.MethodPost)
}

// Start begins serving. It returns once the listener is running; serve
// errors surface through the lifecycle error channel via logging.
func (s *APIServer) Start(_ context.Context) error {
	s.srv = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("API server stopped")
		}
	}()

	s.logger.Info().Str("addr", s.addr).Msg("API server listening")

	return nil
}

// Stop drains in-flight requests.
func (s *APIServer) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	return s.srv.Shutdown(shutdownCtx)
}

// Handler exposes the router for tests.
func (s *APIServer) Handler() http.Handler {
	return s.router
}

func (s *APIServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("Response encoding failed")
	}
}

func (s *APIServer) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, core.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, db.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, db.ErrAlreadyExists):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("Request failed")
	}

	s.writeJSON(w, status, models.ErrorResponse{Error: err.Error()})
}

// decode parses a JSON body, mapping malformed input to a 400.
func (s *APIServer) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, models.ErrorResponse{
			Error:  "malformed request body",
			Detail: err.Error(),
		})

		return false
	}

	return true
}
