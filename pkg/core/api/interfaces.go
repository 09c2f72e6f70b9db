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

// Package api is the coordinator's HTTP surface: agent-facing exchange
// endpoints and operator-facing fleet management.
package api

import (
	"context"

	"github.com/steelpos/termfleet/pkg/models"
)

// CoreService is the coordinator core surface the API exposes.
type CoreService interface {
	RegisterTerminal(ctx context.Context, req *models.RegisterRequest) (*models.RegisterResponse, error)
	ProcessHeartbeat(ctx context.Context, serial string, req *models.HeartbeatRequest) (*models.HeartbeatResponse, error)
	HandleResults(ctx context.Context, serial string, results []models.CommandResult) error
	IngestLogs(ctx context.Context, serial string, entries []models.LogEntry) error

	GetTerminal(ctx context.Context, serial string) (*models.Terminal, error)
	ListTerminals(ctx context.Context) ([]models.Terminal, error)
	GetTerminalLogs(ctx context.Context, serial string, limit int) ([]models.LogEntry, error)
	SetMaintenance(ctx context.Context, serial string, enabled bool) error

	CreateTask(ctx context.Context, task *models.Task) (*models.Task, error)
	CancelTask(ctx context.Context, id string) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	ListTasks(ctx context.Context, serial string) ([]models.Task, error)

	PublishArtifact(ctx context.Context, artifact *models.FirmwareArtifact) error
	ListArtifacts(ctx context.Context, model string) ([]models.FirmwareArtifact, error)
	Deploy(ctx context.Context, req *models.DeployRequest) (*models.DeployResponse, error)

	ListAlerts(ctx context.Context, unresolvedOnly bool) ([]models.Alert, error)
	AcknowledgeAlert(ctx context.Context, id, by string) error
	ResolveAlert(ctx context.Context, id, by, notes string) error
}
