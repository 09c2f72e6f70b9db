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

package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/steelpos/termfleet/pkg/models"
)

const (
	insertTaskSQL = `
INSERT INTO tasks (
	id, serial_number, kind, payload, priority, scheduled_at,
	state, retry_count, retry_limit, error_detail,
	created_at, started_at, completed_at, created_by
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
)`

	updateTaskSQL = `
UPDATE tasks SET
	state = $2,
	retry_count = $3,
	error_detail = $4,
	scheduled_at = $5,
	started_at = $6,
	completed_at = $7
WHERE id = $1`

	selectTaskColumns = `
	id, serial_number, kind, payload, priority, scheduled_at, state,
	retry_count, retry_limit, error_detail, created_at, started_at,
	completed_at, created_by`

	// Pending tasks due at or before $2, most urgent first. FOR UPDATE
	// SKIP LOCKED keeps concurrent selections for the same terminal from
	// handing out a task twice.
	selectDueTasksSQL = `
SELECT ` + selectTaskColumns + `
FROM tasks
WHERE serial_number = $1
  AND state = 'pending'
  AND (scheduled_at IS NULL OR scheduled_at <= $2)
ORDER BY priority ASC, COALESCE(scheduled_at, created_at) ASC, created_at ASC
LIMIT $3
FOR UPDATE SKIP LOCKED`

	markTasksRunningSQL = `
UPDATE tasks SET state = 'running', started_at = $2 WHERE id = ANY($1)`
)

func (p *Postgres) CreateTask(ctx context.Context, task *models.Task) error {
	_, err := p.pool.Exec(ctx, insertTaskSQL,
		task.ID, task.TerminalSerial, task.Kind, task.Payload,
		task.Priority, task.ScheduledAt, task.State,
		task.RetryCount, task.RetryLimit, task.ErrorDetail,
		task.CreatedAt, task.StartedAt, task.CompletedAt, task.CreatedBy)
	if err != nil {
		return fmt.Errorf("%w: create task: %w", errFailedToExec, err)
	}

	return nil
}

func (p *Postgres) GetTask(ctx context.Context, id string) (*models.Task, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+selectTaskColumns+` FROM tasks WHERE id = $1`, id)

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("%w: get task: %w", errFailedToQuery, err)
	}

	return task, nil
}

func (p *Postgres) ListTasksForTerminal(ctx context.Context, serial string) ([]models.Task, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+selectTaskColumns+` FROM tasks WHERE serial_number = $1 ORDER BY created_at DESC`, serial)
	if err != nil {
		return nil, fmt.Errorf("%w: list tasks: %w", errFailedToQuery, err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// SelectDueTasks runs the select-and-mark as one transaction so a task can
// never be handed to two dispatch cycles.
func (p *Postgres) SelectDueTasks(ctx context.Context, serial string, now time.Time, limit int) ([]models.Task, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin selection: %w", errFailedToExec, err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rows, err := tx.Query(ctx, selectDueTasksSQL, serial, now, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: select due tasks: %w", errFailedToQuery, err)
	}

	tasks, err := collectTasks(rows)
	if err != nil {
		return nil, err
	}

	if len(tasks) == 0 {
		return nil, tx.Commit(ctx)
	}

	ids := make([]string, len(tasks))
	started := now.UTC()

	for i := range tasks {
		ids[i] = tasks[i].ID
		tasks[i].State = models.TaskRunning
		tasks[i].StartedAt = &started
	}

	if _, err := tx.Exec(ctx, markTasksRunningSQL, ids, started); err != nil {
		return nil, fmt.Errorf("%w: mark tasks running: %w", errFailedToExec, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: commit selection: %w", errFailedToExec, err)
	}

	return tasks, nil
}

func (p *Postgres) UpdateTask(ctx context.Context, task *models.Task) error {
	tag, err := p.pool.Exec(ctx, updateTaskSQL,
		task.ID, task.State, task.RetryCount, task.ErrorDetail,
		task.ScheduledAt, task.StartedAt, task.CompletedAt)
	if err != nil {
		return fmt.Errorf("%w: update task: %w", errFailedToExec, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func collectTasks(rows pgx.Rows) ([]models.Task, error) {
	defer rows.Close()

	var tasks []models.Task

	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: task: %w", errFailedToScan, err)
		}

		tasks = append(tasks, *task)
	}

	return tasks, rows.Err()
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var task models.Task

	err := row.Scan(
		&task.ID, &task.TerminalSerial, &task.Kind, &task.Payload,
		&task.Priority, &task.ScheduledAt, &task.State,
		&task.RetryCount, &task.RetryLimit, &task.ErrorDetail,
		&task.CreatedAt, &task.StartedAt, &task.CompletedAt, &task.CreatedBy)
	if err != nil {
		return nil, err
	}

	return &task, nil
}
