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

	"github.com/steelpos/termfleet/pkg/models"
)

func (s *APIServer) createTask(w http.ResponseWriter, r *http.Request) {
	var task models.Task
	if !s.decode(w, r, &task) {
		return
	}

	task.TerminalSerial = mux.Vars(r)["serial"]

	created, err := s.core.CreateTask(r.Context(), &task)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, created)
}

func (s *APIServer) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.core.ListTasks(r.Context(), mux.Vars(r)["serial"])
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, tasks)
}

func (s *APIServer) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.core.GetTask(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, task)
}

func (s *APIServer) cancelTask(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.core.CancelTask(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"id": id, "state": string(models.TaskCancelled)})
}
