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

package models

import (
	"encoding/json"
	"time"
)

// AlertSeverity orders operator attention.
type AlertSeverity string

const (
	SeverityCritical AlertSeverity = "critical"
	SeverityHigh     AlertSeverity = "high"
	SeverityMedium   AlertSeverity = "medium"
	SeverityLow      AlertSeverity = "low"
	SeverityInfo     AlertSeverity = "info"
)

// AlertCategory classifies what went wrong.
type AlertCategory string

const (
	AlertConnectionLost AlertCategory = "connection_lost"
	AlertTerminalError  AlertCategory = "terminal_error"
	AlertTaskExhausted  AlertCategory = "task_exhausted"
	AlertLogError       AlertCategory = "log_error"
	AlertOffline        AlertCategory = "offline"
)

// Alert is an operator-facing notification tied to a terminal. Alerts are
// append-only facts; acknowledgement and resolution are mutations on the
// existing record, never deletions.
type Alert struct {
	ID              string          `json:"id"`
	TerminalSerial  string          `json:"serial_number"`
	Category        AlertCategory   `json:"category"`
	Severity        AlertSeverity   `json:"severity"`
	Title           string          `json:"title"`
	Message         string          `json:"message"`
	Details         json.RawMessage `json:"details,omitempty"`
	Acknowledged    bool            `json:"is_acknowledged"`
	AcknowledgedBy  string          `json:"acknowledged_by,omitempty"`
	AcknowledgedAt  *time.Time      `json:"acknowledged_at,omitempty"`
	Resolved        bool            `json:"is_resolved"`
	ResolvedBy      string          `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time      `json:"resolved_at,omitempty"`
	ResolutionNotes string          `json:"resolution_notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}
