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

// Package agent is the terminal-side daemon: it keeps the device link
// alive, reports health to the coordinator, and executes the commands the
// coordinator hands back.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/steelpos/termfleet/pkg/device"
	"github.com/steelpos/termfleet/pkg/logger"
	"github.com/steelpos/termfleet/pkg/models"
)

const shutdownFlushTimeout = 10 * time.Second

// Agent is the terminal daemon. It implements lifecycle.Service.
type Agent struct {
	config     *Config
	adapter    device.Adapter
	linkMu     sync.Mutex
	client     *Client
	monitor    *Monitor
	supervisor *Supervisor
	dispatcher *Dispatcher
	journal    *journal
	logger     logger.Logger

	mu                sync.Mutex
	serial            string
	firmwareVersion   string
	heartbeatInterval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds an agent from a validated config, probing the device driver
// once for the process lifetime.
func New(ctx context.Context, config *Config, log logger.Logger) (*Agent, error) {
	adapter, err := device.Probe(ctx, &config.Device, log)
	if err != nil {
		return nil, fmt.Errorf("probe device driver: %w", err)
	}

	a := &Agent{
		config:            config,
		adapter:           adapter,
		client:            NewClient(config.CoordinatorURL, config.APIKey, log),
		monitor:           NewMonitor(log),
		journal:           &journal{},
		logger:            log,
		heartbeatInterval: time.Duration(config.HeartbeatInterval),
	}

	a.supervisor = NewSupervisor(adapter, &a.linkMu, config.FailureThreshold, log)

	return a, nil
}

// Start connects to the device, registers with the coordinator, and
// launches the heartbeat, probe, flush and event loops. A rejected
// registration is fatal: an unidentified agent has nothing to report.
func (a *Agent) Start(ctx context.Context) error {
	a.supervisor.Tick(ctx)

	info, err := a.deviceIdentity(ctx)
	if err != nil {
		return fmt.Errorf("read device identity: %w", err)
	}

	a.mu.Lock()
	a.serial = info.Serial
	a.firmwareVersion = info.FirmwareVersion
	a.mu.Unlock()

	hostname, _ := os.Hostname()

	resp, err := a.client.Register(ctx, &models.RegisterRequest{
		SerialNumber:    info.Serial,
		Model:           info.Model,
		FirmwareVersion: info.FirmwareVersion,
		AgentVersion:    a.config.AgentVersion,
		Hostname:        hostname,
		IPAddress:       a.monitor.LocalAddress(ctx),
	})
	if err != nil {
		return fmt.Errorf("register terminal %s: %w", info.Serial, err)
	}

	if interval := time.Duration(resp.HeartbeatInterval); interval > 0 {
		a.setHeartbeatInterval(interval)
	}

	a.dispatcher = NewDispatcher(a.adapter, &a.linkMu, a.client, info.Serial, a.applySettings, a.logger)

	a.journal.record(models.LogInfo, models.LogCatSystem, "agent started")
	a.logger.Info().Str("serial_number", info.Serial).Msg("Agent registered with coordinator")

	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.wg.Add(4)

	go a.heartbeatLoop(runCtx)
	go a.probeLoop(runCtx)
	go a.flushLoop(runCtx)
	go a.eventLoop(runCtx)

	return nil
}

// Stop halts the loops, reports the shutdown, and releases the device.
func (a *Agent) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}

	a.wg.Wait()

	a.journal.record(models.LogInfo, models.LogCatSystem, "agent shutting down")

	flushCtx, cancel := context.WithTimeout(ctx, shutdownFlushTimeout)
	defer cancel()

	a.flush(flushCtx)

	if err := a.adapter.Disconnect(flushCtx); err != nil {
		a.logger.Warn().Err(err).Msg("Device disconnect on shutdown failed")
	}

	return nil
}

// deviceIdentity reads identity from the device, falling back to nothing:
// without a serial the agent cannot register.
func (a *Agent) deviceIdentity(ctx context.Context) (*device.Info, error) {
	a.linkMu.Lock()
	defer a.linkMu.Unlock()

	return a.adapter.Info(ctx)
}

func (a *Agent) heartbeatLoop(ctx context.Context) {
	defer a.wg.Done()

	timer := time.NewTimer(a.currentHeartbeatInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		a.heartbeat(ctx)

		// Re-arm with the current interval so coordinator overrides and
		// config commands take effect on the next tick.
		timer.Reset(a.currentHeartbeatInterval())
	}
}

// heartbeat sends one report and runs any returned commands to completion
// before the caller re-arms the timer. A failed heartbeat is not retried;
// the next tick comes anyway.
func (a *Agent) heartbeat(ctx context.Context) {
	metrics := a.monitor.Collect(ctx)
	metrics.Temperature = a.supervisor.Temperature()

	a.mu.Lock()
	serial := a.serial
	firmware := a.firmwareVersion
	a.mu.Unlock()

	req := &models.HeartbeatRequest{
		SerialNumber:    serial,
		Timestamp:       time.Now().UTC(),
		Status:          a.reportedStatus(),
		Metrics:         metrics,
		FirmwareVersion: firmware,
		AgentVersion:    a.config.AgentVersion,
		IPAddress:       a.monitor.LocalAddress(ctx),
	}

	resp, err := a.client.Heartbeat(ctx, req)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Heartbeat failed")
		a.journal.record(models.LogWarning, models.LogCatCommunication, "heartbeat failed: "+err.Error())

		return
	}

	if interval := time.Duration(resp.NextInterval); interval > 0 {
		a.setHeartbeatInterval(interval)
	}

	if len(resp.Commands) == 0 {
		return
	}

	a.logger.Info().Int("commands", len(resp.Commands)).Msg("Dispatching command batch")

	results := a.dispatcher.Dispatch(ctx, resp.Commands)
	a.noteFirmwareResults(resp.Commands, results)

	if err := a.client.SubmitResults(ctx, results); err != nil {
		// A lost report leaves the tasks to their retry accounting on
		// the coordinator; nothing here is worth crashing over.
		a.logger.Error().Err(err).Msg("Result submission failed")
		a.journal.record(models.LogError, models.LogCatCommunication, "result submission failed: "+err.Error())
	}
}

// reportedStatus is the agent's own view of terminal health, derived from
// the link state. The coordinator has the final word.
func (a *Agent) reportedStatus() models.TerminalStatus {
	switch a.supervisor.State() {
	case StateConnected:
		return models.TerminalOnline
	case StateDegraded, StateConnecting, StateDisconnected:
		return models.TerminalError
	default:
		return models.TerminalError
	}
}

// noteFirmwareResults updates the locally tracked firmware version after a
// successful flash so the next heartbeat reports it.
func (a *Agent) noteFirmwareResults(commands []models.Command, results []models.CommandResult) {
	for i := range results {
		if results[i].State != models.TaskCompleted {
			continue
		}

		cmd := commands[i]
		if cmd.Kind == models.TaskFirmware && cmd.Firmware != nil {
			a.mu.Lock()
			a.firmwareVersion = cmd.Firmware.Version
			a.mu.Unlock()

			a.journal.record(models.LogInfo, models.LogCatUpdate, "firmware updated to "+cmd.Firmware.Version)
		}
	}
}

func (a *Agent) probeLoop(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(time.Duration(a.config.ProbeInterval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.supervisor.Tick(ctx)
		}
	}
}

func (a *Agent) flushLoop(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(time.Duration(a.config.LogFlushInterval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.flush(ctx)
		}
	}
}

func (a *Agent) flush(ctx context.Context) {
	entries := a.journal.drain()
	if len(entries) == 0 {
		return
	}

	if err := a.client.SubmitLogs(ctx, &models.LogBatch{Entries: entries}); err != nil {
		a.logger.Warn().Err(err).Int("entries", len(entries)).Msg("Log upload failed, requeueing")
		a.journal.requeue(entries)
	}
}

// eventLoop turns supervisor notifications into journal entries. Error
// level entries become alerts when the coordinator ingests them.
func (a *Agent) eventLoop(ctx context.Context) {
	defer a.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-a.supervisor.Events():
			switch event.Type {
			case EventConnectionLost:
				a.journal.record(models.LogError, models.LogCatCommunication,
					"device connection lost: "+event.Detail)
			case EventDeviceError:
				a.journal.record(models.LogError, models.LogCatError,
					"device fault: "+event.Detail)
			case EventReconnected:
				a.journal.record(models.LogInfo, models.LogCatCommunication,
					"device reconnected: "+event.Detail)
			}
		}
	}
}

// applySettings handles config commands. Unknown keys are ignored so a
// newer coordinator can ship settings an older agent does not know.
func (a *Agent) applySettings(settings map[string]json.RawMessage) {
	if raw, ok := settings["heartbeat_interval"]; ok {
		var d models.Duration
		if err := json.Unmarshal(raw, &d); err != nil {
			a.logger.Warn().Err(err).Msg("Invalid heartbeat_interval in config command")
		} else if d > 0 {
			a.setHeartbeatInterval(time.Duration(d))
			a.journal.record(models.LogInfo, models.LogCatSystem,
				"heartbeat interval set to "+time.Duration(d).String())
		}
	}

	if raw, ok := settings["log_level"]; ok {
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return
		}

		level, err := zerolog.ParseLevel(name)
		if err != nil {
			a.logger.Warn().Str("level", name).Msg("Invalid log_level in config command")
			return
		}

		a.logger.SetLevel(level)
		a.journal.record(models.LogInfo, models.LogCatSystem, "log level set to "+name)
	}
}

func (a *Agent) currentHeartbeatInterval() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.heartbeatInterval
}

func (a *Agent) setHeartbeatInterval(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.heartbeatInterval = d
}
