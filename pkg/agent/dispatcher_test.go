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

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steelpos/termfleet/pkg/device"
	"github.com/steelpos/termfleet/pkg/logger"
	"github.com/steelpos/termfleet/pkg/models"
)

type fakeFetcher struct {
	dir  string
	fail bool
}

func (f *fakeFetcher) DownloadFirmware(_ context.Context, payload *models.FirmwarePayload) (string, error) {
	if f.fail {
		return "", errors.New("download refused")
	}

	path := filepath.Join(f.dir, payload.Version+".bin")
	if err := os.WriteFile(path, []byte("image"), 0o600); err != nil {
		return "", err
	}

	return path, nil
}

func newTestDispatcher(t *testing.T, mock *device.MockAdapter, fetcher firmwareFetcher) *Dispatcher {
	t.Helper()

	require.NoError(t, mock.Connect(context.Background(), "mock:0"))

	return NewDispatcher(mock, &sync.Mutex{}, fetcher, "T-1", nil, logger.NewTestLogger())
}

func TestDispatchRunsInOrder(t *testing.T) {
	mock := device.NewMockAdapter(device.Info{Serial: "T-1"})
	fetcher := &fakeFetcher{dir: t.TempDir()}
	d := newTestDispatcher(t, mock, fetcher)

	commands := []models.Command{
		{ID: "c1", Kind: models.TaskFirmware, Firmware: &models.FirmwarePayload{Version: "2.0.0"}},
		{ID: "c2", Kind: models.TaskReboot},
		{ID: "c3", Kind: models.TaskDiagnostic},
	}

	results := d.Dispatch(context.Background(), commands)
	require.Len(t, results, 3)

	for i, result := range results {
		assert.Equal(t, commands[i].ID, result.CommandID)
		assert.Equal(t, models.TaskCompleted, result.State)
		assert.Equal(t, "T-1", result.TerminalSerial)
		assert.False(t, result.CompletedAt.Before(result.StartedAt))
	}

	require.Len(t, mock.FlashedImages(), 1)
	assert.Equal(t, 1, mock.Resets())

	// Diagnostic results carry the device status snapshot.
	var status device.Status
	require.NoError(t, json.Unmarshal(results[2].Result, &status))
	assert.Equal(t, device.LinkUp, status.Link)
}

func TestDispatchIsolatesFailures(t *testing.T) {
	mock := device.NewMockAdapter(device.Info{Serial: "T-1"})
	fetcher := &fakeFetcher{dir: t.TempDir(), fail: true}
	d := newTestDispatcher(t, mock, fetcher)

	commands := []models.Command{
		{ID: "c1", Kind: models.TaskFirmware, Firmware: &models.FirmwarePayload{Version: "2.0.0"}},
		{ID: "c2", Kind: models.TaskReboot},
	}

	results := d.Dispatch(context.Background(), commands)
	require.Len(t, results, 2)

	assert.Equal(t, models.TaskFailed, results[0].State)
	assert.Contains(t, results[0].ErrorDetail, "download refused")

	// The failed flash did not stop the reboot behind it.
	assert.Equal(t, models.TaskCompleted, results[1].State)
	assert.Equal(t, 1, mock.Resets())
}

func TestDispatchUnknownKind(t *testing.T) {
	mock := device.NewMockAdapter(device.Info{Serial: "T-1"})
	d := newTestDispatcher(t, mock, &fakeFetcher{dir: t.TempDir()})

	results := d.Dispatch(context.Background(), []models.Command{
		{ID: "c1", Kind: "selfdestruct"},
	})

	require.Len(t, results, 1)
	assert.Equal(t, models.TaskFailed, results[0].State)
	assert.Contains(t, results[0].ErrorDetail, "unknown command kind")
}

func TestDispatchFirmwareWithoutPayload(t *testing.T) {
	mock := device.NewMockAdapter(device.Info{Serial: "T-1"})
	d := newTestDispatcher(t, mock, &fakeFetcher{dir: t.TempDir()})

	results := d.Dispatch(context.Background(), []models.Command{
		{ID: "c1", Kind: models.TaskFirmware},
	})

	require.Len(t, results, 1)
	assert.Equal(t, models.TaskFailed, results[0].State)
	assert.Empty(t, mock.FlashedImages())
}

func TestDispatchConfigCommand(t *testing.T) {
	mock := device.NewMockAdapter(device.Info{Serial: "T-1"})
	require.NoError(t, mock.Connect(context.Background(), "mock:0"))

	var applied map[string]json.RawMessage

	d := NewDispatcher(mock, &sync.Mutex{}, &fakeFetcher{dir: t.TempDir()}, "T-1",
		func(settings map[string]json.RawMessage) { applied = settings },
		logger.NewTestLogger())

	params, err := json.Marshal(map[string]any{"heartbeat_interval": "60s"})
	require.NoError(t, err)

	results := d.Dispatch(context.Background(), []models.Command{
		{ID: "c1", Kind: models.TaskConfig, Parameters: params},
	})

	require.Len(t, results, 1)
	assert.Equal(t, models.TaskCompleted, results[0].State)
	require.Contains(t, applied, "heartbeat_interval")
}
