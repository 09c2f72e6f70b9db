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
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/steelpos/termfleet/pkg/models"
)

const (
	insertArtifactSQL = `
INSERT INTO firmware_artifacts (
	version, model, file_name, file_size, file_hash, file_url,
	release_notes, is_mandatory, is_latest, released_date,
	created_at, created_by
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)`

	clearLatestArtifactSQL = `
UPDATE firmware_artifacts SET is_latest = FALSE WHERE model = $1 AND version <> $2`

	selectArtifactColumns = `
	version, model, file_name, file_size, file_hash, file_url,
	release_notes, is_mandatory, is_latest, released_date, created_at, created_by`

	// Empty model lists every artifact.
	listArtifactsSQL = `
SELECT ` + selectArtifactColumns + `
FROM firmware_artifacts
WHERE ($1 = '' OR model = $1)
ORDER BY released_date DESC`
)

// PublishArtifact stores a new immutable artifact. When the artifact is
// flagged latest, the flag is cleared from every other artifact of the
// same model in the same transaction.
func (p *Postgres) PublishArtifact(ctx context.Context, artifact *models.FirmwareArtifact) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin publish: %w", errFailedToExec, err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, insertArtifactSQL,
		artifact.Version, artifact.Model, artifact.FileName, artifact.SizeBytes,
		artifact.SHA256, artifact.FileURL, artifact.ReleaseNotes,
		artifact.Mandatory, artifact.Latest, artifact.ReleasedAt,
		artifact.CreatedAt, artifact.CreatedBy)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyExists
		}

		return fmt.Errorf("%w: publish artifact: %w", errFailedToExec, err)
	}

	if artifact.Latest {
		if _, err := tx.Exec(ctx, clearLatestArtifactSQL, artifact.Model, artifact.Version); err != nil {
			return fmt.Errorf("%w: clear latest flag: %w", errFailedToExec, err)
		}
	}

	return tx.Commit(ctx)
}

func (p *Postgres) GetArtifact(ctx context.Context, version, model string) (*models.FirmwareArtifact, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+selectArtifactColumns+` FROM firmware_artifacts WHERE version = $1 AND model = $2`,
		version, model)

	artifact, err := scanArtifact(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("%w: get artifact: %w", errFailedToQuery, err)
	}

	return artifact, nil
}

func (p *Postgres) ListArtifacts(ctx context.Context, model string) ([]models.FirmwareArtifact, error) {
	rows, err := p.pool.Query(ctx, listArtifactsSQL, model)
	if err != nil {
		return nil, fmt.Errorf("%w: list artifacts: %w", errFailedToQuery, err)
	}
	defer rows.Close()

	var artifacts []models.FirmwareArtifact

	for rows.Next() {
		artifact, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: artifact: %w", errFailedToScan, err)
		}

		artifacts = append(artifacts, *artifact)
	}

	return artifacts, rows.Err()
}

func scanArtifact(row pgx.Row) (*models.FirmwareArtifact, error) {
	var a models.FirmwareArtifact

	err := row.Scan(
		&a.Version, &a.Model, &a.FileName, &a.SizeBytes, &a.SHA256, &a.FileURL,
		&a.ReleaseNotes, &a.Mandatory, &a.Latest, &a.ReleasedAt, &a.CreatedAt, &a.CreatedBy)
	if err != nil {
		return nil, err
	}

	return &a, nil
}
