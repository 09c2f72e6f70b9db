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

	"github.com/jackc/pgx/v5"

	"github.com/steelpos/termfleet/pkg/models"
)

const (
	insertAlertSQL = `
INSERT INTO alerts (
	id, serial_number, category, severity, title, message, details, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8
)`

	updateAlertSQL = `
UPDATE alerts SET
	is_acknowledged = $2,
	acknowledged_by = $3,
	acknowledged_at = $4,
	is_resolved = $5,
	resolved_by = $6,
	resolved_at = $7,
	resolution_notes = $8
WHERE id = $1`

	selectAlertColumns = `
	id, serial_number, category, severity, title, message, details,
	is_acknowledged, acknowledged_by, acknowledged_at,
	is_resolved, resolved_by, resolved_at, resolution_notes, created_at`
)

func (p *Postgres) CreateAlert(ctx context.Context, alert *models.Alert) error {
	_, err := p.pool.Exec(ctx, insertAlertSQL,
		alert.ID, alert.TerminalSerial, alert.Category, alert.Severity,
		alert.Title, alert.Message, alert.Details, alert.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: create alert: %w", errFailedToExec, err)
	}

	return nil
}

func (p *Postgres) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+selectAlertColumns+` FROM alerts WHERE id = $1`, id)

	alert, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("%w: get alert: %w", errFailedToQuery, err)
	}

	return alert, nil
}

func (p *Postgres) ListAlerts(ctx context.Context, unresolvedOnly bool) ([]models.Alert, error) {
	query := `SELECT ` + selectAlertColumns + ` FROM alerts ORDER BY created_at DESC`
	if unresolvedOnly {
		query = `SELECT ` + selectAlertColumns + ` FROM alerts WHERE NOT is_resolved ORDER BY created_at DESC`
	}

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: list alerts: %w", errFailedToQuery, err)
	}
	defer rows.Close()

	var alerts []models.Alert

	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: alert: %w", errFailedToScan, err)
		}

		alerts = append(alerts, *alert)
	}

	return alerts, rows.Err()
}

func (p *Postgres) UpdateAlert(ctx context.Context, alert *models.Alert) error {
	tag, err := p.pool.Exec(ctx, updateAlertSQL,
		alert.ID, alert.Acknowledged, alert.AcknowledgedBy, alert.AcknowledgedAt,
		alert.Resolved, alert.ResolvedBy, alert.ResolvedAt, alert.ResolutionNotes)
	if err != nil {
		return fmt.Errorf("%w: update alert: %w", errFailedToExec, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func scanAlert(row pgx.Row) (*models.Alert, error) {
	var a models.Alert

	err := row.Scan(
		&a.ID, &a.TerminalSerial, &a.Category, &a.Severity, &a.Title,
		&a.Message, &a.Details,
		&a.Acknowledged, &a.AcknowledgedBy, &a.AcknowledgedAt,
		&a.Resolved, &a.ResolvedBy, &a.ResolvedAt, &a.ResolutionNotes, &a.CreatedAt)
	if err != nil {
		return nil, err
	}

	return &a, nil
}
