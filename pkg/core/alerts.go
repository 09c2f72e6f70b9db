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

// IngestLogs stores a terminal's log entries and raises one alert per
// entry at error severity or above.
func (s *Server) IngestLogs(ctx context.Context, serial string, entries []models.LogEntry) error {
	if _, err := s.store.GetTerminal(ctx, serial); err != nil {
		return fmt.Errorf("logs from %s: %w", serial, err)
	}

	for i := range entries {
		entries[i].TerminalSerial = serial

		if entries[i].Timestamp.IsZero() {
			entries[i].Timestamp = time.Now().UTC()
		}
	}

	if err := s.store.StoreLogEntries(ctx, entries); err != nil {
		return fmt.Errorf("store logs from %s: %w", serial, err)
	}

	for i := range entries {
		entry := &entries[i]

		if !entry.Level.AtLeast(models.LogError) {
			continue
		}

		s.raiseAlert(ctx, serial, alertCategoryFor(entry), alertSeverityFor(entry.Level),
			"Terminal reported "+string(entry.Level), entry.Message, entry.Details)
	}

	return nil
}

// alertCategoryFor maps a log entry to an alert category. Entries carrying
// a task id come from the lifecycle engine's exhaustion path.
func alertCategoryFor(entry *models.LogEntry) models.AlertCategory {
	if len(entry.Details) > 0 {
		var details struct {
			TaskID string `json:"task_id"`
		}

		if err := json.Unmarshal(entry.Details, &details); err == nil && details.TaskID != "" {
			return models.AlertTaskExhausted
		}
	}

	switch entry.Category {
	case models.LogCatCommunication:
		return models.AlertConnectionLost
	case models.LogCatError:
		return models.AlertTerminalError
	default:
		return models.AlertLogError
	}
}

func alertSeverityFor(level models.LogLevel) models.AlertSeverity {
	if level == models.LogCritical {
		return models.SeverityCritical
	}

	return models.SeverityHigh
}

// raiseAlert writes an alert, logging rather than propagating failures:
// alerting is best-effort on top of an already-recorded fact.
func (s *Server) raiseAlert(ctx context.Context, serial string, category models.AlertCategory,
	severity models.AlertSeverity, title, message string, details json.RawMessage) {
	alert := &models.Alert{
		ID:             uuid.NewString(),
		TerminalSerial: serial,
		Category:       category,
		Severity:       severity,
		Title:          title,
		Message:        message,
		Details:        details,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.store.CreateAlert(ctx, alert); err != nil {
		s.logger.Error().Err(err).
			Str("serial_number", serial).
			Str("category", string(category)).
			Msg("Alert creation failed")

		return
	}

	s.logger.Warn().
		Str("alert_id", alert.ID).
		Str("serial_number", serial).
		Str("category", string(category)).
		Str("severity", string(severity)).
		Msg("Alert raised")
}

// ListAlerts exposes alerts to the API.
func (s *Server) ListAlerts(ctx context.Context, unresolvedOnly bool) ([]models.Alert, error) {
	return s.store.ListAlerts(ctx, unresolvedOnly)
}

// AcknowledgeAlert marks an alert as seen by an operator.
func (s *Server) AcknowledgeAlert(ctx context.Context, id, by string) error {
	alert, err := s.store.GetAlert(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	alert.Acknowledged = true
	alert.AcknowledgedBy = by
	alert.AcknowledgedAt = &now

	if err := s.store.UpdateAlert(ctx, alert); err != nil {
		return fmt.Errorf("acknowledge alert %s: %w", id, err)
	}

	return nil
}

// ResolveAlert closes an alert. The record stays; resolution is a
// mutation, never a deletion.
func (s *Server) ResolveAlert(ctx context.Context, id, by, notes string) error {
	alert, err := s.store.GetAlert(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	alert.Resolved = true
	alert.ResolvedBy = by
	alert.ResolvedAt = &now
	alert.ResolutionNotes = notes

	if !alert.Acknowledged {
		alert.Acknowledged = true
		alert.AcknowledgedBy = by
		alert.AcknowledgedAt = &now
	}

	if err := s.store.UpdateAlert(ctx, alert); err != nil {
		return fmt.Errorf("resolve alert %s: %w", id, err)
	}

	return nil
}

// GetTerminalLogs exposes a terminal's recent log entries to the API.
func (s *Server) GetTerminalLogs(ctx context.Context, serial string, limit int) ([]models.LogEntry, error) {
	return s.store.GetTerminalLogs(ctx, serial, limit)
}
