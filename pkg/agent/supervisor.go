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
	"sync"
	"time"

	"github.com/steelpos/termfleet/pkg/device"
	"github.com/steelpos/termfleet/pkg/logger"
)

// LinkState is the supervisor's view of the device link.
type LinkState string

const (
	StateDisconnected LinkState = "disconnected"
	StateConnecting   LinkState = "connecting"
	StateConnected    LinkState = "connected"
	// StateDegraded means the link is up but the device reports a fault.
	StateDegraded LinkState = "degraded"
)

// EventType classifies supervisor events delivered to the agent loop.
type EventType string

const (
	// EventReconnected fires when the link comes back after being lost.
	EventReconnected EventType = "reconnected"
	// EventConnectionLost fires each time the consecutive-failure counter
	// reaches the threshold.
	EventConnectionLost EventType = "connection_lost"
	// EventDeviceError fires on entering the degraded state.
	EventDeviceError EventType = "device_error"
)

// Event is one supervisor notification. Events are advisory; the local log
// record written before the send is the durable account.
type Event struct {
	Type   EventType
	Detail string
	At     time.Time
}

const eventBuffer = 16

// Supervisor owns the device link. It is the only component that mutates
// link state; the dispatcher borrows the link through the shared mutex.
type Supervisor struct {
	adapter   device.Adapter
	link      *sync.Mutex
	threshold int
	logger    logger.Logger

	mu           sync.Mutex
	state        LinkState
	failures     int
	wasConnected bool
	temperature  *int

	events chan Event
}

// NewSupervisor builds a supervisor over the given adapter. The link mutex
// is shared with the command dispatcher.
func NewSupervisor(adapter device.Adapter, link *sync.Mutex, threshold int, log logger.Logger) *Supervisor {
	return &Supervisor{
		adapter:   adapter,
		link:      link,
		threshold: threshold,
		logger:    log,
		state:     StateDisconnected,
		events:    make(chan Event, eventBuffer),
	}
}

// State reports the current link state.
func (s *Supervisor) State() LinkState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Events delivers supervisor notifications to the agent loop.
func (s *Supervisor) Events() <-chan Event {
	return s.events
}

// Temperature reports the device temperature from the latest liveness
// probe, nil while the link is down.
func (s *Supervisor) Temperature() *int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.temperature
}

// Tick runs one supervision cycle: a liveness probe when connected, a
// reconnect attempt otherwise. If a command currently holds the link the
// probe yields rather than queueing behind a long flash.
func (s *Supervisor) Tick(ctx context.Context) {
	if !s.link.TryLock() {
		s.logger.Debug().Msg("Link busy, skipping probe cycle")
		return
	}
	defer s.link.Unlock()

	switch s.State() {
	case StateConnected, StateDegraded:
		s.probe(ctx)
	case StateDisconnected, StateConnecting:
		s.reconnect(ctx)
	}
}

func (s *Supervisor) probe(ctx context.Context) {
	status, err := s.adapter.Status(ctx)
	if err != nil || status.Link != device.LinkUp {
		_ = s.adapter.Disconnect(ctx)
		s.transition(StateDisconnected, "liveness probe found link gone")

		s.mu.Lock()
		s.wasConnected = true
		s.temperature = nil
		s.mu.Unlock()

		return
	}

	s.mu.Lock()
	s.temperature = status.Temperature
	s.mu.Unlock()

	if status.ErrorCode != "" {
		if s.State() != StateDegraded {
			s.transition(StateDegraded, status.ErrorMessage)
			s.emit(Event{Type: EventDeviceError, Detail: status.ErrorCode + ": " + status.ErrorMessage, At: time.Now()})
		}

		return
	}

	if s.State() == StateDegraded {
		s.transition(StateConnected, "device fault cleared")
	}
}

func (s *Supervisor) reconnect(ctx context.Context) {
	candidates, err := s.adapter.Scan(ctx)
	if err != nil || len(candidates) == 0 {
		s.recordFailure("scan found no devices")
		return
	}

	// First candidate, stable order: reconnects land on the same device.
	s.transition(StateConnecting, candidates[0])

	if err := s.adapter.Connect(ctx, candidates[0]); err != nil {
		s.transition(StateDisconnected, err.Error())
		s.recordFailure(err.Error())

		return
	}

	s.mu.Lock()
	s.failures = 0
	reconnected := s.wasConnected
	s.wasConnected = false
	s.mu.Unlock()

	s.transition(StateConnected, candidates[0])

	if reconnected {
		s.emit(Event{Type: EventReconnected, Detail: candidates[0], At: time.Now()})
	}
}

func (s *Supervisor) recordFailure(detail string) {
	s.mu.Lock()
	s.failures++
	hitThreshold := s.failures >= s.threshold
	if hitThreshold {
		// Reset so the alert repeats every threshold cycles instead of
		// firing on every failure of a dead link.
		s.failures = 0
	}
	count := s.failures
	s.mu.Unlock()

	s.logger.Warn().
		Str("detail", detail).
		Int("consecutive_failures", count).
		Msg("Device connection attempt failed")

	if hitThreshold {
		s.emit(Event{Type: EventConnectionLost, Detail: detail, At: time.Now()})
	}
}

// transition logs the state change before anyone outside hears about it.
func (s *Supervisor) transition(to LinkState, detail string) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()

	s.logger.Info().
		Str("from", string(from)).
		Str("to", string(to)).
		Str("detail", detail).
		Msg("Link state transition")
}

func (s *Supervisor) emit(event Event) {
	select {
	case s.events <- event:
	default:
		// The local log already has the record; dropping the
		// notification is safe.
		s.logger.Warn().Str("type", string(event.Type)).Msg("Event channel full, dropping notification")
	}
}
