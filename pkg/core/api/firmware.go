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

	"github.com/steelpos/termfleet/pkg/models"
)

func (s *APIServer) publishFirmware(w http.ResponseWriter, r *http.Request) {
	var artifact models.FirmwareArtifact
	if !s.decode(w, r, &artifact) {
		return
	}

	if err := s.core.PublishArtifact(r.Context(), &artifact); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, &artifact)
}

func (s *APIServer) listFirmware(w http.ResponseWriter, r *http.Request) {
	artifacts, err := s.core.ListArtifacts(r.Context(), r.URL.Query().Get("model"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, artifacts)
}

func (s *APIServer) deploy(w http.ResponseWriter, r *http.Request) {
	var req models.DeployRequest
	if !s.decode(w, r, &req) {
		return
	}

	resp, err := s.core.Deploy(r.Context(), &req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, resp)
}
