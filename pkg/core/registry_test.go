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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steelpos/termfleet/pkg/db"
	"github.com/steelpos/termfleet/pkg/logger"
	"github.com/steelpos/termfleet/pkg/models"
)

func newTestServer(t *testing.T) (*Server, *db.Memory) {
	t.Helper()

	cfg := &Config{ListenAddr: ":0", APIKey: "secret"}
	require.NoError(t, cfg.Validate())

	store := db.NewMemory()

	return NewServer(cfg, store, logger.NewTestLogger()), store
}

func registerTerminal(t *testing.T, s *Server, serial string) {
	t.Helper()

	_, err := s.RegisterTerminal(context.Background(), &models.RegisterRequest{
		SerialNumber:    serial,
		Model:           "SP-900",
		FirmwareVersion: "1.0.0",
	})
	require.NoError(t, err)
}

func TestRegisterTerminal(t *testing.T) {
	s, store := newTestServer(t)

	resp, err := s.RegisterTerminal(context.Background(), &models.RegisterRequest{
		SerialNumber: "T-1",
		Model:        "SP-900",
	})
	require.NoError(t, err)
	assert.Equal(t, "T-1", resp.SerialNumber)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, defaultHeartbeatInterval, time.Duration(resp.HeartbeatInterval))

	terminal, err := store.GetTerminal(context.Background(), "T-1")
	require.NoError(t, err)
	assert.Equal(t, models.TerminalOnline, terminal.Status)
}

func TestRegisterTerminalKeepsOperatorFields(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()

	registerTerminal(t, s, "T-1")

	terminal, err := store.GetTerminal(ctx, "T-1")
	require.NoError(t, err)
	terminal.CustomerID = "cust-9"
	terminal.StoreName = "Main St"
	require.NoError(t, store.UpsertTerminal(ctx, terminal))

	registerTerminal(t, s, "T-1")

	terminal, err = store.GetTerminal(ctx, "T-1")
	require.NoError(t, err)
	assert.Equal(t, "cust-9", terminal.CustomerID)
	assert.Equal(t, "Main St", terminal.StoreName)
}

func TestRegisterTerminalRequiresSerial(t *testing.T) {
	s, _ := newTestServer(t)

	_, err := s.RegisterTerminal(context.Background(), &models.RegisterRequest{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestHeartbeatStoresReport(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()

	registerTerminal(t, s, "T-1")

	resp, err := s.ProcessHeartbeat(ctx, "T-1", &models.HeartbeatRequest{
		SerialNumber: "T-1",
		Status:       models.TerminalOnline,
		Metrics:      models.Metrics{CPUUsage: 45, MemoryUsage: 60, DiskUsage: 30},
	})
	require.NoError(t, err)

	assert.Equal(t, models.HeartbeatAck, resp.Status)
	assert.Empty(t, resp.Commands)

	terminal, err := store.GetTerminal(ctx, "T-1")
	require.NoError(t, err)
	assert.Equal(t, models.TerminalOnline, terminal.Status)
	assert.Equal(t, models.Metrics{CPUUsage: 45, MemoryUsage: 60, DiskUsage: 30}, terminal.Metrics)
	assert.WithinDuration(t, time.Now().UTC(), terminal.LastContact, 5*time.Second)

	// The exchange leaves a heartbeat journal line.
	logs, err := store.GetTerminalLogs(ctx, "T-1", 10)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, models.LogCatHeartbeat, logs[0].Category)
}

func TestHeartbeatUnknownSerial(t *testing.T) {
	s, _ := newTestServer(t)

	_, err := s.ProcessHeartbeat(context.Background(), "ghost", &models.HeartbeatRequest{})
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestHeartbeatMaintenanceWins(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()

	registerTerminal(t, s, "T-1")
	require.NoError(t, s.SetMaintenance(ctx, "T-1", true))

	_, err := s.ProcessHeartbeat(ctx, "T-1", &models.HeartbeatRequest{Status: models.TerminalOnline})
	require.NoError(t, err)

	terminal, err := store.GetTerminal(ctx, "T-1")
	require.NoError(t, err)
	assert.Equal(t, models.TerminalMaintenance, terminal.Status)
}

func TestHeartbeatIntervalOverride(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()

	registerTerminal(t, s, "T-1")

	terminal, err := store.GetTerminal(ctx, "T-1")
	require.NoError(t, err)
	terminal.HeartbeatInterval = models.Duration(60 * time.Second)
	require.NoError(t, store.UpsertTerminal(ctx, terminal))

	resp, err := s.ProcessHeartbeat(ctx, "T-1", &models.HeartbeatRequest{Status: models.TerminalOnline})
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, time.Duration(resp.NextInterval))
}

func TestWatchdogFlipsStaleTerminals(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()

	registerTerminal(t, s, "T-stale")
	registerTerminal(t, s, "T-fresh")

	stale, err := store.GetTerminal(ctx, "T-stale")
	require.NoError(t, err)
	staleContact := time.Now().UTC().Add(-2 * (defaultHeartbeatInterval + defaultOfflineGrace))
	stale.LastContact = staleContact
	require.NoError(t, store.UpsertTerminal(ctx, stale))

	s.sweepOffline(ctx)

	got, err := store.GetTerminal(ctx, "T-stale")
	require.NoError(t, err)
	assert.Equal(t, models.TerminalOffline, got.Status)
	// The flip records nothing as contact; last-contact stays truthful.
	assert.True(t, got.LastContact.Equal(staleContact))

	fresh, err := store.GetTerminal(ctx, "T-fresh")
	require.NoError(t, err)
	assert.Equal(t, models.TerminalOnline, fresh.Status)

	alerts, err := store.ListAlerts(ctx, true)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertOffline, alerts[0].Category)
	assert.Equal(t, "T-stale", alerts[0].TerminalSerial)

	// The next heartbeat brings the terminal back online.
	_, err = s.ProcessHeartbeat(ctx, "T-stale", &models.HeartbeatRequest{Status: models.TerminalOnline})
	require.NoError(t, err)

	got, err = store.GetTerminal(ctx, "T-stale")
	require.NoError(t, err)
	assert.Equal(t, models.TerminalOnline, got.Status)
}

func TestWatchdogSkipsMaintenance(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()

	registerTerminal(t, s, "T-1")
	require.NoError(t, s.SetMaintenance(ctx, "T-1", true))

	s.sweepOffline(ctx)

	terminal, err := store.GetTerminal(ctx, "T-1")
	require.NoError(t, err)
	assert.Equal(t, models.TerminalMaintenance, terminal.Status)
}
