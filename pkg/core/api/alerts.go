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

	"github.com/gorilla/mux"
)

type alertActionRequest struct {
	By    string `json:"by"`
	Notes string `json:"notes,omitempty"`
}

func (s *APIServer) listAlerts(w http.ResponseWriter, r *http.Request) {
	unresolvedOnly := r.URL.Query().Get("unresolved") == "true"

	alerts, err := s.core.ListAlerts(r.Context(), unresolvedOnly)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, alerts)
}

func (s *APIServer) acknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	var req alertActionRequest
	if !s.decode(w, r, &req) {
		return
	}

	id := mux.Vars(r)["id"]

	if err := s.core.AcknowledgeAlert(r.Context(), id, req.By); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "acknowledged"})
}

func (s *APIServer) resolveAlert(w http.ResponseWriter, r *http.Request) {
	var req alertActionRequest
	if !s.decode(w, r, &req) {
		return
	}

	id := mux.Vars(r)["id"]

	if err := s.core.ResolveAlert(r.Context(), id, req.By, req.Notes); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "resolved"})
}
