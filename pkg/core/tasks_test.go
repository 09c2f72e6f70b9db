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

package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steelpos/termfleet/pkg/models"
)

func createTask(t *testing.T, s *Server, serial string, kind models.TaskKind, priority int) *models.Task {
	t.Helper()

	task, err := s.CreateTask(context.Background(), &models.Task{
		TerminalSerial: serial,
		Kind:           kind,
		Priority:       priority,
	})
	require.NoError(t, err)

	return task
}

func heartbeat(t *testing.T, s *Server, serial string) *models.HeartbeatResponse {
	t.Helper()

	resp, err := s.ProcessHeartbeat(context.Background(), serial, &models.HeartbeatRequest{
		Status: models.TerminalOnline,
	})
	require.NoError(t, err)

	return resp
}

func TestCreateTaskValidation(t *testing.T) {
	s, _ := newTestServer(t)
	registerTerminal(t, s, "T-1")

	_, err := s.CreateTask(context.Background(), &models.Task{Kind: models.TaskReboot})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = s.CreateTask(context.Background(), &models.Task{TerminalSerial: "T-1", Kind: "explode"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = s.CreateTask(context.Background(), &models.Task{TerminalSerial: "ghost", Kind: models.TaskReboot})
	require.Error(t, err)

	task := createTask(t, s, "T-1", models.TaskReboot, 0)
	assert.Equal(t, models.DefaultTaskPriority, task.Priority)
	assert.Equal(t, models.DefaultRetryLimit, task.RetryLimit)
	assert.Equal(t, models.TaskPending, task.State)
}

func TestHeartbeatCommandOrder(t *testing.T) {
	s, _ := newTestServer(t)
	registerTerminal(t, s, "T-1")

	for _, priority := range []int{3, 5, 1, 5, 2} {
		createTask(t, s, "T-1", models.TaskReboot, priority)
	}

	resp := heartbeat(t, s, "T-1")
	require.Len(t, resp.Commands, 5)

	got := make([]int, 0, 5)
	for _, cmd := range resp.Commands {
		got = append(got, cmd.Priority)
	}

	assert.Equal(t, []int{1, 2, 3, 5, 5}, got)
}

func TestDuplicateHeartbeatDoesNotReselect(t *testing.T) {
	s, _ := newTestServer(t)
	registerTerminal(t, s, "T-1")

	createTask(t, s, "T-1", models.TaskReboot, 5)

	first := heartbeat(t, s, "T-1")
	require.Len(t, first.Commands, 1)

	// Redelivery of the heartbeat finds the task running, not pending.
	second := heartbeat(t, s, "T-1")
	assert.Empty(t, second.Commands)
}

func TestHandleResultCompletes(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()
	registerTerminal(t, s, "T-1")

	task := createTask(t, s, "T-1", models.TaskDiagnostic, 5)
	heartbeat(t, s, "T-1")

	require.NoError(t, s.HandleResults(ctx, "T-1", []models.CommandResult{{
		CommandID: task.ID,
		State:     models.TaskCompleted,
	}}))

	got, err := store.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, got.State)
	require.NotNil(t, got.CompletedAt)

	// Redelivered result: acknowledged, no effect.
	completedAt := *got.CompletedAt

	require.NoError(t, s.HandleResults(ctx, "T-1", []models.CommandResult{{
		CommandID: task.ID,
		State:     models.TaskFailed,
	}}))

	got, err = store.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, got.State)
	assert.True(t, got.CompletedAt.Equal(completedAt))
	assert.Zero(t, got.RetryCount)
}

func TestHandleResultsBadEntryDoesNotStrandBatch(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()
	registerTerminal(t, s, "T-1")

	first := createTask(t, s, "T-1", models.TaskReboot, 3)
	second := createTask(t, s, "T-1", models.TaskDiagnostic, 5)
	heartbeat(t, s, "T-1")

	// The malformed first entry is rejected; the second still settles.
	err := s.HandleResults(ctx, "T-1", []models.CommandResult{
		{CommandID: first.ID, State: "exploded"},
		{CommandID: second.ID, State: models.TaskCompleted},
	})
	require.ErrorIs(t, err, ErrInvalidRequest)

	got, err := store.GetTask(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, got.State)

	got, err = store.GetTask(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskRunning, got.State)
}

func TestFailedTaskRequeuesUntilExhausted(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()
	registerTerminal(t, s, "T-1")

	task := createTask(t, s, "T-1", models.TaskReboot, 5)

	for attempt := 1; attempt <= models.DefaultRetryLimit; attempt++ {
		resp := heartbeat(t, s, "T-1")
		require.Len(t, resp.Commands, 1, "attempt %d should redispatch", attempt)

		require.NoError(t, s.HandleResults(ctx, "T-1", []models.CommandResult{{
			CommandID:   task.ID,
			State:       models.TaskFailed,
			ErrorDetail: "printer on fire",
		}}))

		got, err := store.GetTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, attempt, got.RetryCount)

		if attempt < models.DefaultRetryLimit {
			assert.Equal(t, models.TaskPending, got.State)
			assert.Nil(t, got.StartedAt)
		} else {
			assert.Equal(t, models.TaskFailed, got.State)
		}
	}

	// Exhausted: no more dispatch, state stays failed.
	resp := heartbeat(t, s, "T-1")
	assert.Empty(t, resp.Commands)

	got, err := store.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskFailed, got.State)
	assert.Equal(t, "printer on fire", got.ErrorDetail)

	// Exhaustion surfaced as a task-exhausted alert via log ingestion.
	alerts, err := store.ListAlerts(ctx, true)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertTaskExhausted, alerts[0].Category)
}

func TestFirmwareCompletionRewritesVersion(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()
	registerTerminal(t, s, "T-1")

	require.NoError(t, s.PublishArtifact(ctx, &models.FirmwareArtifact{
		Version:   "2.0.0",
		Model:     "SP-900",
		FileURL:   "http://core/fw/2.0.0.bin",
		SHA256:    "abc123",
		SizeBytes: 5,
		Latest:    true,
	}))

	deploy, err := s.Deploy(ctx, &models.DeployRequest{
		Version:   "2.0.0",
		Model:     "SP-900",
		Selection: models.SelectExplicitSet,
		Serials:   []string{"T-1"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, deploy.TasksCreated)

	resp := heartbeat(t, s, "T-1")
	require.Len(t, resp.Commands, 1)
	require.NotNil(t, resp.Commands[0].Firmware)
	assert.Equal(t, "2.0.0", resp.Commands[0].Firmware.Version)

	require.NoError(t, s.HandleResults(ctx, "T-1", []models.CommandResult{{
		CommandID: resp.Commands[0].ID,
		State:     models.TaskCompleted,
	}}))

	terminal, err := store.GetTerminal(ctx, "T-1")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", terminal.FirmwareVersion)
}

func TestCancelTaskOnlyPending(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()
	registerTerminal(t, s, "T-1")

	task := createTask(t, s, "T-1", models.TaskReboot, 5)
	require.NoError(t, s.CancelTask(ctx, task.ID))

	got, err := store.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskCancelled, got.State)

	// Cancelled tasks are never dispatched.
	resp := heartbeat(t, s, "T-1")
	assert.Empty(t, resp.Commands)

	// A running task refuses cancellation.
	running := createTask(t, s, "T-1", models.TaskReboot, 5)
	heartbeat(t, s, "T-1")
	assert.ErrorIs(t, s.CancelTask(ctx, running.ID), ErrInvalidRequest)
}

func TestScheduledTaskHeldUntilDue(t *testing.T) {
	s, _ := newTestServer(t)
	registerTerminal(t, s, "T-1")

	future := time.Now().UTC().Add(time.Hour)

	_, err := s.CreateTask(context.Background(), &models.Task{
		TerminalSerial: "T-1",
		Kind:           models.TaskReboot,
		ScheduledAt:    &future,
	})
	require.NoError(t, err)

	resp := heartbeat(t, s, "T-1")
	assert.Empty(t, resp.Commands)
}
