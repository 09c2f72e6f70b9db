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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steelpos/termfleet/pkg/core"
	"github.com/steelpos/termfleet/pkg/db"
	"github.com/steelpos/termfleet/pkg/logger"
	"github.com/steelpos/termfleet/pkg/models"
)

const testAPIKey = "test-key"

func newTestAPI(t *testing.T) *APIServer {
	t.Helper()

	cfg := &core.Config{ListenAddr: ":0", APIKey: testAPIKey}
	require.NoError(t, cfg.Validate())

	coreSrv := core.NewServer(cfg, db.NewMemory(), logger.NewTestLogger())

	return NewAPIServer(cfg.ListenAddr, cfg.APIKey, coreSrv, logger.NewTestLogger())
}

func doRequest(t *testing.T, s *APIServer, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("X-API-Key", testAPIKey)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func registerTerminal(t *testing.T, s *APIServer, serial string) models.RegisterResponse {
	t.Helper()

	rec := doRequest(t, s, http.MethodPost, "/api/terminals/register", models.RegisterRequest{
		SerialNumber:    serial,
		Model:           "SP-900",
		FirmwareVersion: "1.0.0",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.RegisterResponse
	decodeBody(t, rec, &resp)

	return resp
}

func TestUnauthorizedWithoutAPIKey(t *testing.T) {
	s := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/terminals", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterAndGetTerminal(t *testing.T) {
	s := newTestAPI(t)

	resp := registerTerminal(t, s, "T-100")
	assert.Equal(t, "T-100", resp.SerialNumber)
	assert.NotEmpty(t, resp.Token)

	rec := doRequest(t, s, http.MethodGet, "/api/terminals/T-100", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var terminal models.Terminal
	decodeBody(t, rec, &terminal)
	assert.Equal(t, "SP-900", terminal.Model)
	assert.Equal(t, models.TerminalOnline, terminal.Status)
}

func TestGetTerminalNotFound(t *testing.T) {
	s := newTestAPI(t)

	rec := doRequest(t, s, http.MethodGet, "/api/terminals/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body models.ErrorResponse
	decodeBody(t, rec, &body)
	assert.NotEmpty(t, body.Error)
}

func TestHeartbeatReturnsCommands(t *testing.T) {
	s := newTestAPI(t)
	registerTerminal(t, s, "T-200")

	rec := doRequest(t, s, http.MethodPost, "/api/terminals/T-200/tasks", models.Task{
		Kind: models.TaskReboot,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/api/terminals/T-200/heartbeat", models.HeartbeatRequest{
		SerialNumber:    "T-200",
		Status:          models.TerminalOnline,
		FirmwareVersion: "1.0.0",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.HeartbeatResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, models.HeartbeatAck, resp.Status)
	require.Len(t, resp.Commands, 1)
	assert.Equal(t, models.TaskReboot, resp.Commands[0].Kind)
}

func TestHeartbeatUnknownTerminal(t *testing.T) {
	s := newTestAPI(t)

	rec := doRequest(t, s, http.MethodPost, "/api/terminals/ghost/heartbeat", models.HeartbeatRequest{
		SerialNumber: "ghost",
		Status:       models.TerminalOnline,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitResultsCompletesTask(t *testing.T) {
	s := newTestAPI(t)
	registerTerminal(t, s, "T-300")

	rec := doRequest(t, s, http.MethodPost, "/api/terminals/T-300/tasks", models.Task{
		Kind: models.TaskDiagnostic,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var task models.Task
	decodeBody(t, rec, &task)

	rec = doRequest(t, s, http.MethodPost, "/api/terminals/T-300/heartbeat", models.HeartbeatRequest{
		SerialNumber: "T-300",
		Status:       models.TerminalOnline,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/api/terminals/T-300/results", []models.CommandResult{
		{CommandID: task.ID, TerminalSerial: "T-300", State: models.TaskCompleted},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/tasks/"+task.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	decodeBody(t, rec, &task)
	assert.Equal(t, models.TaskCompleted, task.State)
}

func TestCreateTaskValidation(t *testing.T) {
	s := newTestAPI(t)
	registerTerminal(t, s, "T-400")

	rec := doRequest(t, s, http.MethodPost, "/api/terminals/T-400/tasks", models.Task{
		Kind: "format-disk",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelTask(t *testing.T) {
	s := newTestAPI(t)
	registerTerminal(t, s, "T-500")

	rec := doRequest(t, s, http.MethodPost, "/api/terminals/T-500/tasks", models.Task{
		Kind: models.TaskReboot,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var task models.Task
	decodeBody(t, rec, &task)

	rec = doRequest(t, s, http.MethodPost, "/api/tasks/"+task.ID+"/cancel", alertActionRequest{})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/terminals/T-500/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var tasks []models.Task
	decodeBody(t, rec, &tasks)
	require.Len(t, tasks, 1)
	assert.Equal(t, models.TaskCancelled, tasks[0].State)
}

func TestPublishAndDeployFirmware(t *testing.T) {
	s := newTestAPI(t)
	registerTerminal(t, s, "T-600")
	registerTerminal(t, s, "T-601")

	rec := doRequest(t, s, http.MethodPost, "/api/firmware", models.FirmwareArtifact{
		Version:   "2.1.0",
		Model:     "SP-900",
		FileName:  "sp900-2.1.0.bin",
		FileURL:   "https://firmware.steelpos.io/sp900-2.1.0.bin",
		SHA256:    "deadbeef",
		SizeBytes: 4096,
		Latest:    true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/firmware?model=SP-900", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var artifacts []models.FirmwareArtifact
	decodeBody(t, rec, &artifacts)
	require.Len(t, artifacts, 1)

	rec = doRequest(t, s, http.MethodPost, "/api/deployments", models.DeployRequest{
		Version:   "2.1.0",
		Model:     "SP-900",
		Selection: models.SelectAllOnline,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp models.DeployResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, 2, resp.TasksCreated)
	assert.NotEmpty(t, resp.BatchID)
}

func TestDeployUnknownArtifact(t *testing.T) {
	s := newTestAPI(t)
	registerTerminal(t, s, "T-700")

	rec := doRequest(t, s, http.MethodPost, "/api/deployments", models.DeployRequest{
		Version:   "9.9.9",
		Model:     "SP-900",
		Selection: models.SelectAllOnline,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogsRaiseAlertAndResolve(t *testing.T) {
	s := newTestAPI(t)
	registerTerminal(t, s, "T-800")

	rec := doRequest(t, s, http.MethodPost, "/api/terminals/T-800/logs", models.LogBatch{
		Entries: []models.LogSubmission{
			{Level: models.LogError, Category: models.LogCatError, Message: "printer jam"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/alerts?unresolved=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var alerts []models.Alert
	decodeBody(t, rec, &alerts)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertTerminalError, alerts[0].Category)

	rec = doRequest(t, s, http.MethodPost, "/api/alerts/"+alerts[0].ID+"/acknowledge", alertActionRequest{By: "ops"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/api/alerts/"+alerts[0].ID+"/resolve", alertActionRequest{
		By:    "ops",
		Notes: "cleared jam",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/alerts?unresolved=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	decodeBody(t, rec, &alerts)
	assert.Empty(t, alerts)
}

func TestMaintenanceMode(t *testing.T) {
	s := newTestAPI(t)
	registerTerminal(t, s, "T-900")

	rec := doRequest(t, s, http.MethodPost, "/api/terminals/T-900/maintenance", map[string]bool{"enabled": true})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/terminals/T-900", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var terminal models.Terminal
	decodeBody(t, rec, &terminal)
	assert.True(t, terminal.MaintenanceMode)
	assert.Equal(t, models.TerminalMaintenance, terminal.Status)
}

func TestMalformedBody(t *testing.T) {
	s := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/api/terminals/register", bytes.NewReader([]byte("{not json")))
	req.Header.Set("X-API-Key", testAPIKey)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTerminalLogs(t *testing.T) {
	s := newTestAPI(t)
	registerTerminal(t, s, "T-110")

	rec := doRequest(t, s, http.MethodPost, "/api/terminals/T-110/logs", models.LogBatch{
		Entries: []models.LogSubmission{
			{Level: models.LogInfo, Category: models.LogCatSystem, Message: "boot complete"},
			{Level: models.LogWarning, Category: models.LogCatTransaction, Message: "slow card read"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/terminals/T-110/logs?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var logs []models.LogEntry
	decodeBody(t, rec, &logs)
	assert.Len(t, logs, 2)

	rec = doRequest(t, s, http.MethodGet, "/api/terminals/T-110/logs?limit=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
