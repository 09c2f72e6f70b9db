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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/steelpos/termfleet/pkg/db"
	"github.com/steelpos/termfleet/pkg/models"
)

// CreateTask validates and enqueues one task for a terminal.
func (s *Server) CreateTask(ctx context.Context, task *models.Task) (*models.Task, error) {
	if task.TerminalSerial == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, errSerialRequired)
	}

	if !task.Kind.Valid() {
		return nil, fmt.Errorf("%w: %w: %q", ErrInvalidRequest, errUnknownTaskKind, task.Kind)
	}

	if _, err := s.store.GetTerminal(ctx, task.TerminalSerial); err != nil {
		return nil, fmt.Errorf("task target %s: %w", task.TerminalSerial, err)
	}

	task.ID = uuid.NewString()
	task.State = models.TaskPending
	task.RetryCount = 0
	task.CreatedAt = time.Now().UTC()
	task.StartedAt = nil
	task.CompletedAt = nil

	if task.Priority <= 0 {
		task.Priority = models.DefaultTaskPriority
	}

	if task.RetryLimit <= 0 {
		task.RetryLimit = models.DefaultRetryLimit
	}

	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("create task for %s: %w", task.TerminalSerial, err)
	}

	s.logger.Info().
		Str("task_id", task.ID).
		Str("serial_number", task.TerminalSerial).
		Str("kind", string(task.Kind)).
		Int("priority", task.Priority).
		Msg("Task created")

	return task, nil
}

// CancelTask moves a pending task to cancelled. Running and finished
// tasks are untouchable: their outcome is already in motion or recorded.
func (s *Server) CancelTask(ctx context.Context, id string) error {
	unlock, task, err := s.lockTask(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	if task.State != models.TaskPending {
		return fmt.Errorf("%w: %w (state %s)", ErrInvalidRequest, errTaskNotPending, task.State)
	}

	now := time.Now().UTC()
	task.State = models.TaskCancelled
	task.CompletedAt = &now

	if err := s.store.UpdateTask(ctx, task); err != nil {
		return fmt.Errorf("cancel task %s: %w", id, err)
	}

	s.logger.Info().Str("task_id", id).Msg("Task cancelled")

	return nil
}

// GetTask exposes one task to the API.
func (s *Server) GetTask(ctx context.Context, id string) (*models.Task, error) {
	return s.store.GetTask(ctx, id)
}

// ListTasks exposes a terminal's task history to the API.
func (s *Server) ListTasks(ctx context.Context, serial string) ([]models.Task, error) {
	return s.store.ListTasksForTerminal(ctx, serial)
}

// dueCommands atomically selects the terminal's due tasks and maps them
// to wire commands. Selection is serialized per terminal, so a duplicate
// heartbeat arriving concurrently cannot double-select.
func (s *Server) dueCommands(ctx context.Context, terminal *models.Terminal, now time.Time) ([]models.Command, error) {
	unlock := s.locks.lock(terminal.Serial)
	defer unlock()

	tasks, err := s.store.SelectDueTasks(ctx, terminal.Serial, now, maxCommandBatch)
	if err != nil {
		return nil, fmt.Errorf("select tasks for %s: %w", terminal.Serial, err)
	}

	commands := make([]models.Command, 0, len(tasks))

	for i := range tasks {
		task := &tasks[i]

		cmd := models.Command{
			ID:       task.ID,
			Kind:     task.Kind,
			Priority: task.Priority,
		}

		if task.Kind == models.TaskFirmware {
			var payload models.FirmwarePayload
			if err := json.Unmarshal(task.Payload, &payload); err != nil {
				// A malformed payload is unrecoverable; fail the task
				// here rather than shipping garbage to the agent.
				s.failTaskPermanently(ctx, task, "malformed firmware payload: "+err.Error())
				continue
			}

			cmd.Firmware = &payload
		} else {
			cmd.Parameters = task.Payload
		}

		commands = append(commands, cmd)
	}

	return commands, nil
}

// HandleResults applies a batch of agent results. Application is
// idempotent: a result for a task no longer running is acknowledged
// without effect, which makes at-least-once delivery safe. Results are
// applied independently; one bad entry must not strand the rest of the
// batch in running.
func (s *Server) HandleResults(ctx context.Context, serial string, results []models.CommandResult) error {
	var errs []error

	for i := range results {
		if err := s.handleResult(ctx, serial, &results[i]); err != nil {
			s.logger.Warn().Err(err).
				Str("task_id", results[i].CommandID).
				Str("serial_number", serial).
				Msg("Result rejected")

			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (s *Server) handleResult(ctx context.Context, serial string, result *models.CommandResult) error {
	unlock, task, err := s.lockTask(ctx, result.CommandID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			s.logger.Warn().
				Str("task_id", result.CommandID).
				Str("serial_number", serial).
				Msg("Result for unknown task, ignoring")

			return nil
		}

		return err
	}
	defer unlock()

	if task.State != models.TaskRunning {
		s.logger.Debug().
			Str("task_id", task.ID).
			Str("state", string(task.State)).
			Msg("Duplicate result, already settled")

		return nil
	}

	switch result.State {
	case models.TaskCompleted:
		return s.completeTask(ctx, task)
	case models.TaskFailed:
		return s.failTask(ctx, task, result)
	default:
		return fmt.Errorf("%w: result state %q", ErrInvalidRequest, result.State)
	}
}

func (s *Server) completeTask(ctx context.Context, task *models.Task) error {
	now := time.Now().UTC()
	task.State = models.TaskCompleted
	task.CompletedAt = &now
	task.ErrorDetail = ""

	if err := s.store.UpdateTask(ctx, task); err != nil {
		return fmt.Errorf("complete task %s: %w", task.ID, err)
	}

	// Firmware completion rewrites the terminal's recorded version.
	if task.Kind == models.TaskFirmware {
		var payload models.FirmwarePayload
		if err := json.Unmarshal(task.Payload, &payload); err == nil && payload.Version != "" {
			if err := s.store.UpdateTerminalFirmware(ctx, task.TerminalSerial, payload.Version); err != nil {
				s.logger.Error().Err(err).
					Str("serial_number", task.TerminalSerial).
					Str("version", payload.Version).
					Msg("Firmware version update failed")
			}
		}
	}

	s.logger.Info().
		Str("task_id", task.ID).
		Str("serial_number", task.TerminalSerial).
		Msg("Task completed")

	return nil
}

// failTask records the failure and requeues while retry budget remains.
// An exhausted task stays failed forever; the error-level log entry makes
// the ingestion pipeline raise the operator alert.
func (s *Server) failTask(ctx context.Context, task *models.Task, result *models.CommandResult) error {
	task.RetryCount++
	task.ErrorDetail = result.ErrorDetail

	if task.RetryCount < task.RetryLimit {
		task.State = models.TaskPending
		task.StartedAt = nil

		if err := s.store.UpdateTask(ctx, task); err != nil {
			return fmt.Errorf("requeue task %s: %w", task.ID, err)
		}

		s.logger.Warn().
			Str("task_id", task.ID).
			Int("retry_count", task.RetryCount).
			Int("retry_limit", task.RetryLimit).
			Str("error", result.ErrorDetail).
			Msg("Task failed, requeued")

		return nil
	}

	now := time.Now().UTC()
	task.State = models.TaskFailed
	task.CompletedAt = &now

	if err := s.store.UpdateTask(ctx, task); err != nil {
		return fmt.Errorf("fail task %s: %w", task.ID, err)
	}

	s.logger.Error().
		Str("task_id", task.ID).
		Str("serial_number", task.TerminalSerial).
		Str("error", result.ErrorDetail).
		Msg("Task retries exhausted")

	details, _ := json.Marshal(map[string]string{"task_id": task.ID, "kind": string(task.Kind)})

	return s.IngestLogs(ctx, task.TerminalSerial, []models.LogEntry{{
		TerminalSerial: task.TerminalSerial,
		Timestamp:      now,
		Level:          models.LogError,
		Category:       models.LogCatError,
		Message:        fmt.Sprintf("task %s exhausted %d retries: %s", task.ID, task.RetryLimit, result.ErrorDetail),
		Details:        details,
	}})
}

// failTaskPermanently settles a task the coordinator itself cannot
// dispatch, spending no retries on it.
func (s *Server) failTaskPermanently(ctx context.Context, task *models.Task, detail string) {
	now := time.Now().UTC()
	task.State = models.TaskFailed
	task.RetryCount = task.RetryLimit
	task.ErrorDetail = detail
	task.CompletedAt = &now

	if err := s.store.UpdateTask(ctx, task); err != nil {
		s.logger.Error().Err(err).Str("task_id", task.ID).Msg("Permanent fail update lost")
		return
	}

	s.logger.Error().Str("task_id", task.ID).Str("error", detail).Msg("Task failed permanently")
}

// lockTask serializes per-terminal task mutation: it loads the task, then
// acquires its terminal's lock and reloads to see post-lock state.
func (s *Server) lockTask(ctx context.Context, id string) (func(), *models.Task, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	unlock := s.locks.lock(task.TerminalSerial)

	task, err = s.store.GetTask(ctx, id)
	if err != nil {
		unlock()
		return nil, nil, err
	}

	return unlock, task, nil
}
