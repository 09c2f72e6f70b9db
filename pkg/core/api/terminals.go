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
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/steelpos/termfleet/pkg/models"
)

const defaultLogLimit = 100

func (s *APIServer) registerTerminal(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !s.decode(w, r, &req) {
		return
	}

	resp, err := s.core.RegisterTerminal(r.Context(), &req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *APIServer) heartbeat(w http.ResponseWriter, r *http.Request) {
	serial := mux.Vars(r)["serial"]

	var req models.HeartbeatRequest
	if !s.decode(w, r, &req) {
		return
	}

	resp, err := s.core.ProcessHeartbeat(r.Context(), serial, &req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *APIServer) submitResults(w http.ResponseWriter, r *http.Request) {
	serial := mux.Vars(r)["serial"]

	var results []models.CommandResult
	if !s.decode(w, r, &results) {
		return
	}

	if err := s.core.HandleResults(r.Context(), serial, results); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": models.HeartbeatAck})
}

func (s *APIServer) submitLogs(w http.ResponseWriter, r *http.Request) {
	serial := mux.Vars(r)["serial"]

	var batch models.LogBatch
	if !s.decode(w, r, &batch) {
		return
	}

	entries := make([]models.LogEntry, 0, len(batch.Entries))

	for _, e := range batch.Entries {
		entries = append(entries, models.LogEntry{
			TerminalSerial: serial,
			Timestamp:      e.Timestamp,
			Level:          e.Level,
			Category:       e.Category,
			Message:        e.Message,
			Details:        e.Details,
		})
	}

	if err := s.core.IngestLogs(r.Context(), serial, entries); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]int{"accepted": len(entries)})
}

func (s *APIServer) listTerminals(w http.ResponseWriter, r *http.Request) {
	terminals, err := s.core.ListTerminals(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, terminals)
}

func (s *APIServer) getTerminal(w http.ResponseWriter, r *http.Request) {
	terminal, err := s.core.GetTerminal(r.Context(), mux.Vars(r)["serial"])
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, terminal)
}

func (s *APIServer) getTerminalLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit

	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid limit"})
			return
		}

		limit = parsed
	}

	logs, err := s.core.GetTerminalLogs(r.Context(), mux.Vars(r)["serial"], limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, logs)
}

func (s *APIServer) setMaintenance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}

	if !s.decode(w, r, &req) {
		return
	}

	if err := s.core.SetMaintenance(r.Context(), mux.Vars(r)["serial"], req.Enabled); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]bool{"maintenance_mode": req.Enabled})
}
