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
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/steelpos/termfleet/pkg/device"
	"github.com/steelpos/termfleet/pkg/logger"
	"github.com/steelpos/termfleet/pkg/models"
)

var (
	errUnknownCommandKind = errors.New("unknown command kind")
	errMissingFirmware    = errors.New("firmware command without payload")
)

// firmwareFetcher is the slice of Client the dispatcher needs.
type firmwareFetcher interface {
	DownloadFirmware(ctx context.Context, payload *models.FirmwarePayload) (string, error)
}

// Dispatcher executes command batches against the device. Commands run
// strictly in the order received; one command's failure never stops the
// rest of the batch.
type Dispatcher struct {
	adapter device.Adapter
	link    *sync.Mutex
	fetcher firmwareFetcher
	serial  string
	// applySettings receives config-command key/value pairs for hot
	// application to the running agent.
	applySettings func(map[string]json.RawMessage)
	logger        logger.Logger
}

// NewDispatcher wires a dispatcher over the shared device link.
func NewDispatcher(adapter device.Adapter, link *sync.Mutex, fetcher firmwareFetcher,
	serial string, applySettings func(map[string]json.RawMessage), log logger.Logger) *Dispatcher {
	return &Dispatcher{
		adapter:       adapter,
		link:          link,
		fetcher:       fetcher,
		serial:        serial,
		applySettings: applySettings,
		logger:        log,
	}
}

// Dispatch runs every command in order and returns exactly one result per
// command.
func (d *Dispatcher) Dispatch(ctx context.Context, commands []models.Command) []models.CommandResult {
	results := make([]models.CommandResult, 0, len(commands))

	for i := range commands {
		cmd := &commands[i]
		started := time.Now().UTC()

		payload, err := d.execute(ctx, cmd)

		result := models.CommandResult{
			CommandID:      cmd.ID,
			TerminalSerial: d.serial,
			StartedAt:      started,
			CompletedAt:    time.Now().UTC(),
			Result:         payload,
		}

		if err != nil {
			result.State = models.TaskFailed
			result.ErrorDetail = err.Error()

			d.logger.Error().Err(err).
				Str("command_id", cmd.ID).
				Str("kind", string(cmd.Kind)).
				Msg("Command failed")
		} else {
			result.State = models.TaskCompleted

			d.logger.Info().
				Str("command_id", cmd.ID).
				Str("kind", string(cmd.Kind)).
				Msg("Command completed")
		}

		results = append(results, result)
	}

	return results
}

func (d *Dispatcher) execute(ctx context.Context, cmd *models.Command) (json.RawMessage, error) {
	switch cmd.Kind {
	case models.TaskFirmware:
		return nil, d.executeFirmware(ctx, cmd)
	case models.TaskReboot:
		return nil, d.withLink(func() error { return d.adapter.Reset(ctx) })
	case models.TaskConfig:
		return nil, d.executeConfig(cmd)
	case models.TaskDiagnostic:
		return d.executeDiagnostic(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownCommandKind, cmd.Kind)
	}
}

func (d *Dispatcher) executeFirmware(ctx context.Context, cmd *models.Command) error {
	if cmd.Firmware == nil {
		return errMissingFirmware
	}

	// Download happens off the link; only the flash itself holds it.
	path, err := d.fetcher.DownloadFirmware(ctx, cmd.Firmware)
	if err != nil {
		return fmt.Errorf("fetch firmware %s: %w", cmd.Firmware.Version, err)
	}
	defer func() {
		_ = os.Remove(path)
	}()

	if err := d.withLink(func() error { return d.adapter.ApplyFirmware(ctx, path) }); err != nil {
		return fmt.Errorf("apply firmware %s: %w", cmd.Firmware.Version, err)
	}

	return nil
}

func (d *Dispatcher) executeConfig(cmd *models.Command) error {
	settings := make(map[string]json.RawMessage)

	if err := json.Unmarshal(cmd.Parameters, &settings); err != nil {
		return fmt.Errorf("decode config parameters: %w", err)
	}

	if d.applySettings != nil {
		d.applySettings(settings)
	}

	return nil
}

func (d *Dispatcher) executeDiagnostic(ctx context.Context) (json.RawMessage, error) {
	var status *device.Status

	err := d.withLink(func() error {
		var statusErr error
		status, statusErr = d.adapter.Status(ctx)

		return statusErr
	})
	if err != nil {
		return nil, fmt.Errorf("collect device status: %w", err)
	}

	payload, err := json.Marshal(status)
	if err != nil {
		return nil, fmt.Errorf("encode device status: %w", err)
	}

	return payload, nil
}

func (d *Dispatcher) withLink(fn func() error) error {
	d.link.Lock()
	defer d.link.Unlock()

	return fn()
}
