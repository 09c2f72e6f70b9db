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

	"github.com/jackc/pgx/v5"

	"github.com/steelpos/termfleet/pkg/models"
)

const insertLogEntrySQL = `
INSERT INTO terminal_logs (
	serial_number, timestamp, level, category, message, details
) VALUES (
	$1,$2,$3,$4,$5,$6
)`

func (p *Postgres) StoreLogEntries(ctx context.Context, entries []models.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	for i := range entries {
		e := &entries[i]
		batch.Queue(insertLogEntrySQL,
			e.TerminalSerial, e.Timestamp, e.Level, e.Category, e.Message, e.Details)
	}

	if err := p.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("%w: store log entries: %w", errFailedToExec, err)
	}

	return nil
}

func (p *Postgres) GetTerminalLogs(ctx context.Context, serial string, limit int) ([]models.LogEntry, error) {
	rows, err := p.pool.Query(ctx, `
SELECT serial_number, timestamp, level, category, message, details
FROM terminal_logs
WHERE serial_number = $1
ORDER BY timestamp DESC
LIMIT $2`, serial, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: terminal logs: %w", errFailedToQuery, err)
	}
	defer rows.Close()

	var entries []models.LogEntry

	for rows.Next() {
		var e models.LogEntry

		if err := rows.Scan(&e.TerminalSerial, &e.Timestamp, &e.Level,
			&e.Category, &e.Message, &e.Details); err != nil {
			return nil, fmt.Errorf("%w: log entry: %w", errFailedToScan, err)
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}
