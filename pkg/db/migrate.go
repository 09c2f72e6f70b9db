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
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS terminals (
		serial_number      TEXT PRIMARY KEY,
		model              TEXT NOT NULL DEFAULT 'TC-200',
		customer_id        TEXT NOT NULL DEFAULT '',
		store_name         TEXT NOT NULL DEFAULT '',
		status             TEXT NOT NULL DEFAULT 'offline',
		last_contact       TIMESTAMPTZ,
		cpu_usage          SMALLINT NOT NULL DEFAULT 0,
		memory_usage       SMALLINT NOT NULL DEFAULT 0,
		disk_usage         SMALLINT NOT NULL DEFAULT 0,
		temperature        SMALLINT,
		firmware_version   TEXT NOT NULL DEFAULT '',
		agent_version      TEXT NOT NULL DEFAULT '',
		ip_address         TEXT NOT NULL DEFAULT '',
		heartbeat_interval BIGINT NOT NULL DEFAULT 0,
		maintenance_mode   BOOLEAN NOT NULL DEFAULT FALSE,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS terminals_status_idx ON terminals (status)`,
	`CREATE INDEX IF NOT EXISTS terminals_customer_idx ON terminals (customer_id)`,

	`CREATE TABLE IF NOT EXISTS tasks (
		id            UUID PRIMARY KEY,
		serial_number TEXT NOT NULL REFERENCES terminals (serial_number),
		kind          TEXT NOT NULL,
		payload       JSONB,
		priority      INTEGER NOT NULL DEFAULT 5,
		scheduled_at  TIMESTAMPTZ,
		state         TEXT NOT NULL DEFAULT 'pending',
		retry_count   INTEGER NOT NULL DEFAULT 0,
		retry_limit   INTEGER NOT NULL DEFAULT 3,
		error_detail  TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		started_at    TIMESTAMPTZ,
		completed_at  TIMESTAMPTZ,
		created_by    TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS tasks_pending_idx
		ON tasks (serial_number, priority, scheduled_at, created_at)
		WHERE state = 'pending'`,

	`CREATE TABLE IF NOT EXISTS firmware_artifacts (
		version       TEXT NOT NULL,
		model         TEXT NOT NULL,
		file_name     TEXT NOT NULL,
		file_size     BIGINT NOT NULL,
		file_hash     TEXT NOT NULL,
		file_url      TEXT NOT NULL DEFAULT '',
		release_notes TEXT NOT NULL DEFAULT '',
		is_mandatory  BOOLEAN NOT NULL DEFAULT FALSE,
		is_latest     BOOLEAN NOT NULL DEFAULT FALSE,
		released_date TIMESTAMPTZ NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		created_by    TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (version, model)
	)`,

	`CREATE TABLE IF NOT EXISTS alerts (
		id               UUID PRIMARY KEY,
		serial_number    TEXT NOT NULL,
		category         TEXT NOT NULL,
		severity         TEXT NOT NULL,
		title            TEXT NOT NULL,
		message          TEXT NOT NULL,
		details          JSONB,
		is_acknowledged  BOOLEAN NOT NULL DEFAULT FALSE,
		acknowledged_by  TEXT NOT NULL DEFAULT '',
		acknowledged_at  TIMESTAMPTZ,
		is_resolved      BOOLEAN NOT NULL DEFAULT FALSE,
		resolved_by      TEXT NOT NULL DEFAULT '',
		resolved_at      TIMESTAMPTZ,
		resolution_notes TEXT NOT NULL DEFAULT '',
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS alerts_unresolved_idx ON alerts (created_at) WHERE NOT is_resolved`,

	`CREATE TABLE IF NOT EXISTS terminal_logs (
		serial_number TEXT NOT NULL,
		timestamp     TIMESTAMPTZ NOT NULL,
		level         TEXT NOT NULL,
		category      TEXT NOT NULL,
		message       TEXT NOT NULL,
		details       JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS terminal_logs_serial_idx ON terminal_logs (serial_number, timestamp DESC)`,
}

func (p *Postgres) migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}
