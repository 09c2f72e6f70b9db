/*
 * Copyright 2025 SteelPOS Systems, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package db is the durable record store behind the fleet registry. The
// coordinator core only ever talks to the Service interface; Postgres and
// in-memory implementations live here.
package db

import (
	"context"
	"time"

	"github.com/steelpos/termfleet/pkg/models"
)

// Service represents all storage operations the coordinator needs.
type Service interface {
	Close() error

	// Terminal operations.

	UpsertTerminal(ctx context.Context, t *models.Terminal) error
	GetTerminal(ctx context.Context, serial string) (*models.Terminal, error)
	ListTerminals(ctx context.Context) ([]models.Terminal, error)
	ListTerminalsByStatus(ctx context.Context, status models.TerminalStatus) ([]models.Terminal, error)
	ListTerminalsByCustomer(ctx context.Context, customerID string) ([]models.Terminal, error)
	// UpdateTerminalFromHeartbeat writes status, metrics, version and
	// address fields together with the last-contact refresh. Heartbeat
	// fields never change through any other path.
	UpdateTerminalFromHeartbeat(ctx context.Context, t *models.Terminal) error
	// MarkTerminalStatus flips connectivity status without touching
	// last-contact; used by the offline watchdog and maintenance toggles.
	MarkTerminalStatus(ctx context.Context, serial string, status models.TerminalStatus) error
	UpdateTerminalFirmware(ctx context.Context, serial, version string) error

	// Task operations.

	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	ListTasksForTerminal(ctx context.Context, serial string) ([]models.Task, error)
	// SelectDueTasks atomically picks up to limit pending tasks for one
	// terminal whose schedule time is at or before now, ordered by
	// (priority asc, schedule asc, creation asc), and marks each one
	// running with the given start timestamp in the same operation.
	// Tasks already running are never selected again.
	SelectDueTasks(ctx context.Context, serial string, now time.Time, limit int) ([]models.Task, error)
	UpdateTask(ctx context.Context, task *models.Task) error

	// Firmware artifact operations.

	PublishArtifact(ctx context.Context, artifact *models.FirmwareArtifact) error
	GetArtifact(ctx context.Context, version, model string) (*models.FirmwareArtifact, error)
	ListArtifacts(ctx context.Context, model string) ([]models.FirmwareArtifact, error)

	// Alert operations.

	CreateAlert(ctx context.Context, alert *models.Alert) error
	GetAlert(ctx context.Context, id string) (*models.Alert, error)
	ListAlerts(ctx context.Context, unresolvedOnly bool) ([]models.Alert, error)
	UpdateAlert(ctx context.Context, alert *models.Alert) error

	// Log operations.

	StoreLogEntries(ctx context.Context, entries []models.LogEntry) error
	GetTerminalLogs(ctx context.Context, serial string, limit int) ([]models.LogEntry, error)
}
