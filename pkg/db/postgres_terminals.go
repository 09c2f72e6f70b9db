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
	// The conflict branch must cover every mutable column: callers merge
	// the full record before writing, and a column missing here silently
	// survives re-registration and maintenance toggles.
	upsertTerminalSQL = `
INSERT INTO terminals (
	serial_number,
	model,
	customer_id,
	store_name,
	status,
	last_contact,
	firmware_version,
	agent_version,
	ip_address,
	heartbeat_interval,
	maintenance_mode,
	created_at,
	updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12
)
ON CONFLICT (serial_number) DO UPDATE SET
	model = EXCLUDED.model,
	customer_id = EXCLUDED.customer_id,
	store_name = EXCLUDED.store_name,
	status = EXCLUDED.status,
	last_contact = EXCLUDED.last_contact,
	firmware_version = EXCLUDED.firmware_version,
	agent_version = EXCLUDED.agent_version,
	ip_address = EXCLUDED.ip_address,
	heartbeat_interval = EXCLUDED.heartbeat_interval,
	maintenance_mode = EXCLUDED.maintenance_mode,
	updated_at = EXCLUDED.updated_at`

	heartbeatTerminalSQL = `
UPDATE terminals SET
	status = $2,
	last_contact = $3,
	cpu_usage = $4,
	memory_usage = $5,
	disk_usage = $6,
	temperature = $7,
	firmware_version = $8,
	agent_version = $9,
	ip_address = $10,
	updated_at = $3
WHERE serial_number = $1`

	markTerminalStatusSQL = `
UPDATE terminals SET status = $2, updated_at = now() WHERE serial_number = $1`

	updateTerminalFirmwareSQL = `
UPDATE terminals SET firmware_version = $2, updated_at = now() WHERE serial_number = $1`

	selectTerminalColumns = `
	serial_number, model, customer_id, store_name, status, last_contact,
	cpu_usage, memory_usage, disk_usage, temperature,
	firmware_version, agent_version, ip_address,
	heartbeat_interval, maintenance_mode, created_at, updated_at`
)

func (p *Postgres) UpsertTerminal(ctx context.Context, t *models.Terminal) error {
	now := time.Now().UTC()

	_, err := p.pool.Exec(ctx, upsertTerminalSQL,
		t.Serial, t.Model, t.CustomerID, t.StoreName, t.Status, t.LastContact,
		t.FirmwareVersion, t.AgentVersion, t.IPAddress,
		int64(t.HeartbeatInterval), t.MaintenanceMode, now)
	if err != nil {
		return fmt.Errorf("%w: upsert terminal: %w", errFailedToExec, err)
	}

	return nil
}

func (p *Postgres) GetTerminal(ctx context.Context, serial string) (*models.Terminal, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+selectTerminalColumns+` FROM terminals WHERE serial_number = $1`, serial)

	t, err := scanTerminal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("%w: get terminal: %w", errFailedToQuery, err)
	}

	return t, nil
}

func (p *Postgres) ListTerminals(ctx context.Context) ([]models.Terminal, error) {
	return p.listTerminals(ctx,
		`SELECT `+selectTerminalColumns+` FROM terminals ORDER BY serial_number`)
}

func (p *Postgres) ListTerminalsByStatus(ctx context.Context, status models.TerminalStatus) ([]models.Terminal, error) {
	return p.listTerminals(ctx,
		`SELECT `+selectTerminalColumns+` FROM terminals WHERE status = $1 ORDER BY serial_number`, status)
}

func (p *Postgres) ListTerminalsByCustomer(ctx context.Context, customerID string) ([]models.Terminal, error) {
	return p.listTerminals(ctx,
		`SELECT `+selectTerminalColumns+` FROM terminals WHERE customer_id = $1 ORDER BY serial_number`, customerID)
}

func (p *Postgres) listTerminals(ctx context.Context, query string, args ...interface{}) ([]models.Terminal, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list terminals: %w", errFailedToQuery, err)
	}
	defer rows.Close()

	var terminals []models.Terminal

	for rows.Next() {
		t, err := scanTerminal(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: terminal: %w", errFailedToScan, err)
		}

		terminals = append(terminals, *t)
	}

	return terminals, rows.Err()
}

func (p *Postgres) UpdateTerminalFromHeartbeat(ctx context.Context, t *models.Terminal) error {
	tag, err := p.pool.Exec(ctx, heartbeatTerminalSQL,
		t.Serial, t.Status, t.LastContact,
		t.Metrics.CPUUsage, t.Metrics.MemoryUsage, t.Metrics.DiskUsage, t.Metrics.Temperature,
		t.FirmwareVersion, t.AgentVersion, t.IPAddress)
	if err != nil {
		return fmt.Errorf("%w: heartbeat update: %w", errFailedToExec, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (p *Postgres) MarkTerminalStatus(ctx context.Context, serial string, status models.TerminalStatus) error {
	tag, err := p.pool.Exec(ctx, markTerminalStatusSQL, serial, status)
	if err != nil {
		return fmt.Errorf("%w: mark status: %w", errFailedToExec, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (p *Postgres) UpdateTerminalFirmware(ctx context.Context, serial, version string) error {
	tag, err := p.pool.Exec(ctx, updateTerminalFirmwareSQL, serial, version)
	if err != nil {
		return fmt.Errorf("%w: update firmware: %w", errFailedToExec, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func scanTerminal(row pgx.Row) (*models.Terminal, error) {
	var (
		t           models.Terminal
		lastContact *time.Time
		interval    int64
	)

	err := row.Scan(
		&t.Serial, &t.Model, &t.CustomerID, &t.StoreName, &t.Status, &lastContact,
		&t.Metrics.CPUUsage, &t.Metrics.MemoryUsage, &t.Metrics.DiskUsage, &t.Metrics.Temperature,
		&t.FirmwareVersion, &t.AgentVersion, &t.IPAddress,
		&interval, &t.MaintenanceMode, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if lastContact != nil {
		t.LastContact = *lastContact
	}

	t.HeartbeatInterval = models.Duration(interval)

	return &t, nil
}
