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
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/steelpos/termfleet/pkg/models"
)

// PublishArtifact registers an immutable firmware artifact. Publishing a
// latest artifact clears the flag on the model's previous latest.
func (s *Server) PublishArtifact(ctx context.Context, artifact *models.FirmwareArtifact) error {
	if artifact.Version == "" || artifact.Model == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, errArtifactRequired)
	}

	now := time.Now().UTC()
	artifact.CreatedAt = now

	if artifact.ReleasedAt.IsZero() {
		artifact.ReleasedAt = now
	}

	if err := s.store.PublishArtifact(ctx, artifact); err != nil {
		return fmt.Errorf("publish firmware %s/%s: %w", artifact.Model, artifact.Version, err)
	}

	s.logger.Info().
		Str("version", artifact.Version).
		Str("model", artifact.Model).
		Bool("is_latest", artifact.Latest).
		Bool("is_mandatory", artifact.Mandatory).
		Msg("Firmware artifact published")

	return nil
}

// ListArtifacts exposes published firmware to the API; empty model lists
// everything.
func (s *Server) ListArtifacts(ctx context.Context, model string) ([]models.FirmwareArtifact, error) {
	return s.store.ListArtifacts(ctx, model)
}

// Deploy creates one firmware task per selected terminal. A terminal
// whose task fails to persist is logged and skipped; tasks already
// created stand. Partial progress is the contract, not a defect.
func (s *Server) Deploy(ctx context.Context, req *models.DeployRequest) (*models.DeployResponse, error) {
	artifact, err := s.store.GetArtifact(ctx, req.Version, req.Model)
	if err != nil {
		return nil, fmt.Errorf("deploy firmware %s/%s: %w", req.Model, req.Version, err)
	}

	targets, err := s.selectTargets(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, errNoTargetTerminals)
	}

	payload, err := json.Marshal(artifact.Payload())
	if err != nil {
		return nil, fmt.Errorf("encode firmware payload: %w", err)
	}

	batchID := uuid.NewString()
	scheduledAt := time.Now().UTC()

	if req.ScheduledAt != nil {
		scheduledAt = req.ScheduledAt.UTC()
	}

	created := 0

	for i := range targets {
		serial := targets[i].Serial

		task := &models.Task{
			ID:             uuid.NewString(),
			TerminalSerial: serial,
			Kind:           models.TaskFirmware,
			Payload:        payload,
			Priority:       s.config.DeployPriority,
			ScheduledAt:    &scheduledAt,
			State:          models.TaskPending,
			RetryLimit:     models.DefaultRetryLimit,
			CreatedAt:      time.Now().UTC(),
			CreatedBy:      "deploy:" + batchID,
		}

		if err := s.store.CreateTask(ctx, task); err != nil {
			s.logger.Error().Err(err).
				Str("serial_number", serial).
				Str("batch_id", batchID).
				Msg("Deployment task skipped")

			continue
		}

		created++
	}

	s.logger.Info().
		Str("batch_id", batchID).
		Str("version", artifact.Version).
		Int("targets", len(targets)).
		Int("tasks_created", created).
		Msg("Firmware deployment created")

	return &models.DeployResponse{
		BatchID:      batchID,
		TasksCreated: created,
		ScheduledAt:  scheduledAt,
	}, nil
}

func (s *Server) selectTargets(ctx context.Context, req *models.DeployRequest) ([]models.Terminal, error) {
	switch req.Selection {
	case models.SelectAllOnline, "":
		terminals, err := s.store.ListTerminalsByStatus(ctx, models.TerminalOnline)
		if err != nil {
			return nil, fmt.Errorf("select online terminals: %w", err)
		}

		return terminals, nil
	case models.SelectByCustomer:
		terminals, err := s.store.ListTerminalsByCustomer(ctx, req.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("select customer %s terminals: %w", req.CustomerID, err)
		}

		return terminals, nil
	case models.SelectExplicitSet:
		terminals := make([]models.Terminal, 0, len(req.Serials))

		for _, serial := range req.Serials {
			terminal, err := s.store.GetTerminal(ctx, serial)
			if err != nil {
				s.logger.Warn().Str("serial_number", serial).Msg("Deployment target unknown, skipped")
				continue
			}

			terminals = append(terminals, *terminal)
		}

		return terminals, nil
	default:
		return nil, fmt.Errorf("%w: selection %q", ErrInvalidRequest, req.Selection)
	}
}
