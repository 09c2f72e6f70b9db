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
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/steelpos/termfleet/pkg/models"
)

const defaultTerminalModel = "TC-200"

// RegisterTerminal enrolls or refreshes a terminal record and hands back
// an opaque session token.
func (s *Server) RegisterTerminal(ctx context.Context, req *models.RegisterRequest) (*models.RegisterResponse, error) {
	if req.SerialNumber == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, errSerialRequired)
	}

	now := time.Now().UTC()

	terminal := &models.Terminal{
		Serial:          req.SerialNumber,
		Model:           req.Model,
		Status:          models.TerminalOnline,
		LastContact:     now,
		FirmwareVersion: req.FirmwareVersion,
		AgentVersion:    req.AgentVersion,
		IPAddress:       req.IPAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if terminal.Model == "" {
		terminal.Model = defaultTerminalModel
	}

	// Keep operator-assigned fields across re-registration.
	if existing, err := s.store.GetTerminal(ctx, req.SerialNumber); err == nil {
		terminal.CustomerID = existing.CustomerID
		terminal.StoreName = existing.StoreName
		terminal.HeartbeatInterval = existing.HeartbeatInterval
		terminal.MaintenanceMode = existing.MaintenanceMode
		terminal.CreatedAt = existing.CreatedAt
	}

	if err := s.store.UpsertTerminal(ctx, terminal); err != nil {
		return nil, fmt.Errorf("register terminal %s: %w", req.SerialNumber, err)
	}

	s.logger.Info().
		Str("serial_number", terminal.Serial).
		Str("model", terminal.Model).
		Msg("Terminal registered")

	return &models.RegisterResponse{
		SerialNumber:      terminal.Serial,
		Token:             uuid.NewString(),
		HeartbeatInterval: s.heartbeatIntervalFor(terminal),
	}, nil
}

// ProcessHeartbeat ingests one health report and returns the due command
// batch. Unknown serials are rejected; agents do not auto-register through
// heartbeats.
func (s *Server) ProcessHeartbeat(ctx context.Context, serial string, req *models.HeartbeatRequest) (*models.HeartbeatResponse, error) {
	terminal, err := s.store.GetTerminal(ctx, serial)
	if err != nil {
		return nil, fmt.Errorf("heartbeat from %s: %w", serial, err)
	}

	now := time.Now().UTC()

	terminal.Status = deriveStatus(terminal, req.Status)
	terminal.LastContact = now
	terminal.Metrics = req.Metrics
	terminal.UpdatedAt = now

	if req.FirmwareVersion != "" {
		terminal.FirmwareVersion = req.FirmwareVersion
	}

	if req.AgentVersion != "" {
		terminal.AgentVersion = req.AgentVersion
	}

	if req.IPAddress != "" {
		terminal.IPAddress = req.IPAddress
	}

	if err := s.store.UpdateTerminalFromHeartbeat(ctx, terminal); err != nil {
		return nil, fmt.Errorf("record heartbeat for %s: %w", serial, err)
	}

	if err := s.store.StoreLogEntries(ctx, []models.LogEntry{{
		TerminalSerial: serial,
		Timestamp:      now,
		Level:          models.LogInfo,
		Category:       models.LogCatHeartbeat,
		Message:        fmt.Sprintf("heartbeat: cpu=%d mem=%d disk=%d", req.Metrics.CPUUsage, req.Metrics.MemoryUsage, req.Metrics.DiskUsage),
	}}); err != nil {
		// The heartbeat itself succeeded; a lost journal line is not
		// worth failing the exchange over.
		s.logger.Warn().Err(err).Str("serial_number", serial).Msg("Heartbeat log entry failed")
	}

	commands, err := s.dueCommands(ctx, terminal, now)
	if err != nil {
		return nil, err
	}

	return &models.HeartbeatResponse{
		Status:       models.HeartbeatAck,
		ServerTime:   now,
		Commands:     commands,
		NextInterval: s.heartbeatIntervalFor(terminal),
	}, nil
}

// deriveStatus resolves the stored status from the agent's report.
// Maintenance mode wins over everything; an agent-reported error is
// trusted; otherwise a heartbeat means online.
func deriveStatus(terminal *models.Terminal, reported models.TerminalStatus) models.TerminalStatus {
	if terminal.MaintenanceMode {
		return models.TerminalMaintenance
	}

	if reported == models.TerminalError {
		return models.TerminalError
	}

	return models.TerminalOnline
}

func (s *Server) heartbeatIntervalFor(terminal *models.Terminal) models.Duration {
	if terminal.HeartbeatInterval > 0 {
		return terminal.HeartbeatInterval
	}

	return s.config.HeartbeatInterval
}

// GetTerminal exposes one terminal record to the API.
func (s *Server) GetTerminal(ctx context.Context, serial string) (*models.Terminal, error) {
	return s.store.GetTerminal(ctx, serial)
}

// ListTerminals exposes the fleet to the API.
func (s *Server) ListTerminals(ctx context.Context) ([]models.Terminal, error) {
	return s.store.ListTerminals(ctx)
}

// SetMaintenance toggles maintenance mode. While set, heartbeats and the
// offline watchdog leave the maintenance status in place.
func (s *Server) SetMaintenance(ctx context.Context, serial string, enabled bool) error {
	terminal, err := s.store.GetTerminal(ctx, serial)
	if err != nil {
		return err
	}

	terminal.MaintenanceMode = enabled
	terminal.UpdatedAt = time.Now().UTC()

	if err := s.store.UpsertTerminal(ctx, terminal); err != nil {
		return fmt.Errorf("update terminal %s: %w", serial, err)
	}

	status := models.TerminalMaintenance
	if !enabled {
		// Next heartbeat restores online; until then the terminal is
		// unaccounted for.
		status = models.TerminalOffline
	}

	return s.store.MarkTerminalStatus(ctx, serial, status)
}
