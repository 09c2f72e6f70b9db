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
	"sort"
	"sync"
	"time"

	"github.com/steelpos/termfleet/pkg/models"
)

// Memory is an in-memory Service for tests and single-node development.
// One mutex guards everything, which makes SelectDueTasks trivially atomic.
type Memory struct {
	mu        sync.Mutex
	terminals map[string]models.Terminal
	tasks     map[string]models.Task
	artifacts map[artifactKey]models.FirmwareArtifact
	alerts    map[string]models.Alert
	logs      []models.LogEntry
}

type artifactKey struct {
	version string
	model   string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		terminals: make(map[string]models.Terminal),
		tasks:     make(map[string]models.Task),
		artifacts: make(map[artifactKey]models.FirmwareArtifact),
		alerts:    make(map[string]models.Alert),
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) UpsertTerminal(_ context.Context, t *models.Terminal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.terminals[t.Serial]; ok {
		t.CreatedAt = existing.CreatedAt
	}

	m.terminals[t.Serial] = *t

	return nil
}

func (m *Memory) GetTerminal(_ context.Context, serial string) (*models.Terminal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.terminals[serial]
	if !ok {
		return nil, ErrNotFound
	}

	return &t, nil
}

func (m *Memory) ListTerminals(_ context.Context) ([]models.Terminal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.listTerminalsLocked(func(models.Terminal) bool { return true }), nil
}

func (m *Memory) ListTerminalsByStatus(_ context.Context, status models.TerminalStatus) ([]models.Terminal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.listTerminalsLocked(func(t models.Terminal) bool { return t.Status == status }), nil
}

func (m *Memory) ListTerminalsByCustomer(_ context.Context, customerID string) ([]models.Terminal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.listTerminalsLocked(func(t models.Terminal) bool { return t.CustomerID == customerID }), nil
}

func (m *Memory) listTerminalsLocked(keep func(models.Terminal) bool) []models.Terminal {
	var out []models.Terminal

	for _, t := range m.terminals {
		if keep(t) {
			out = append(out, t)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Serial < out[j].Serial })

	return out
}

func (m *Memory) UpdateTerminalFromHeartbeat(_ context.Context, t *models.Terminal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.terminals[t.Serial]
	if !ok {
		return ErrNotFound
	}

	existing.Status = t.Status
	existing.LastContact = t.LastContact
	existing.Metrics = t.Metrics
	existing.FirmwareVersion = t.FirmwareVersion
	existing.AgentVersion = t.AgentVersion
	existing.IPAddress = t.IPAddress
	existing.UpdatedAt = t.UpdatedAt
	m.terminals[t.Serial] = existing

	return nil
}

func (m *Memory) MarkTerminalStatus(_ context.Context, serial string, status models.TerminalStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.terminals[serial]
	if !ok {
		return ErrNotFound
	}

	t.Status = status
	t.UpdatedAt = time.Now().UTC()
	m.terminals[serial] = t

	return nil
}

func (m *Memory) UpdateTerminalFirmware(_ context.Context, serial, version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.terminals[serial]
	if !ok {
		return ErrNotFound
	}

	t.FirmwareVersion = version
	t.UpdatedAt = time.Now().UTC()
	m.terminals[serial] = t

	return nil
}

func (m *Memory) CreateTask(_ context.Context, task *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[task.ID]; ok {
		return ErrAlreadyExists
	}

	m.tasks[task.ID] = *task

	return nil
}

func (m *Memory) GetTask(_ context.Context, id string) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}

	return &task, nil
}

func (m *Memory) ListTasksForTerminal(_ context.Context, serial string) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Task

	for _, task := range m.tasks {
		if task.TerminalSerial == serial {
			out = append(out, task)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	return out, nil
}

func (m *Memory) SelectDueTasks(_ context.Context, serial string, now time.Time, limit int) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []models.Task

	for _, task := range m.tasks {
		if task.TerminalSerial == serial && task.Due(now) {
			due = append(due, task)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		a, b := due[i], due[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}

		at, bt := dispatchTime(a), dispatchTime(b)
		if !at.Equal(bt) {
			return at.Before(bt)
		}

		return a.CreatedAt.Before(b.CreatedAt)
	})

	if len(due) > limit {
		due = due[:limit]
	}

	started := now
	for i := range due {
		due[i].State = models.TaskRunning
		due[i].StartedAt = &started
		m.tasks[due[i].ID] = due[i]
	}

	return due, nil
}

// dispatchTime is the schedule position of a task: its scheduled time when
// set, otherwise its creation time.
func dispatchTime(t models.Task) time.Time {
	if t.ScheduledAt != nil {
		return *t.ScheduledAt
	}

	return t.CreatedAt
}

func (m *Memory) UpdateTask(_ context.Context, task *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[task.ID]; !ok {
		return ErrNotFound
	}

	m.tasks[task.ID] = *task

	return nil
}

func (m *Memory) PublishArtifact(_ context.Context, artifact *models.FirmwareArtifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := artifactKey{version: artifact.Version, model: artifact.Model}
	if _, ok := m.artifacts[key]; ok {
		return ErrAlreadyExists
	}

	if artifact.Latest {
		for k, a := range m.artifacts {
			if a.Model == artifact.Model && a.Latest {
				a.Latest = false
				m.artifacts[k] = a
			}
		}
	}

	m.artifacts[key] = *artifact

	return nil
}

func (m *Memory) GetArtifact(_ context.Context, version, model string) (*models.FirmwareArtifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.artifacts[artifactKey{version: version, model: model}]
	if !ok {
		return nil, ErrNotFound
	}

	return &a, nil
}

func (m *Memory) ListArtifacts(_ context.Context, model string) ([]models.FirmwareArtifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.FirmwareArtifact

	for _, a := range m.artifacts {
		if model == "" || a.Model == model {
			out = append(out, a)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReleasedAt.Equal(out[j].ReleasedAt) {
			return out[i].ReleasedAt.After(out[j].ReleasedAt)
		}

		return out[i].Version > out[j].Version
	})

	return out, nil
}

func (m *Memory) CreateAlert(_ context.Context, alert *models.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.alerts[alert.ID] = *alert

	return nil
}

func (m *Memory) GetAlert(_ context.Context, id string) (*models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.alerts[id]
	if !ok {
		return nil, ErrNotFound
	}

	return &a, nil
}

func (m *Memory) ListAlerts(_ context.Context, unresolvedOnly bool) ([]models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Alert

	for _, a := range m.alerts {
		if unresolvedOnly && a.Resolved {
			continue
		}

		out = append(out, a)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	return out, nil
}

func (m *Memory) UpdateAlert(_ context.Context, alert *models.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.alerts[alert.ID]; !ok {
		return ErrNotFound
	}

	m.alerts[alert.ID] = *alert

	return nil
}

func (m *Memory) StoreLogEntries(_ context.Context, entries []models.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logs = append(m.logs, entries...)

	return nil
}

func (m *Memory) GetTerminalLogs(_ context.Context, serial string, limit int) ([]models.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.LogEntry

	for _, e := range m.logs {
		if e.TerminalSerial == serial {
			out = append(out, e)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })

	if len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}
