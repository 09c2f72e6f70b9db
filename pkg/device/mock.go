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

package device

import (
	"context"
	"fmt"
)

// MockAdapter is a deterministic in-process device for development and
// tests. It answers every operation successfully unless failure fields
// are set, which lets supervisor and dispatcher tests script the link.
type MockAdapter struct {
	DeviceInfo Info
	Endpoints  []string

	// Failure injection. A positive FailConnects count makes that many
	// Connect calls fail before one succeeds.
	FailConnects int
	FailScan     bool
	FailFlash    bool
	StatusError  string
	Temperature  *int

	connected     bool
	connectCalls  int
	flashedImages []string
	resets        int
}

// NewMockAdapter returns a mock presenting the given identity on a single
// synthetic endpoint.
func NewMockAdapter(info Info) *MockAdapter {
	return &MockAdapter{
		DeviceInfo: info,
		Endpoints:  []string{"mock:0"},
	}
}

func (m *MockAdapter) Scan(_ context.Context) ([]string, error) {
	if m.FailScan || len(m.Endpoints) == 0 {
		return nil, ErrNoDevices
	}

	out := make([]string, len(m.Endpoints))
	copy(out, m.Endpoints)

	return out, nil
}

func (m *MockAdapter) Connect(_ context.Context, endpoint string) error {
	m.connectCalls++

	if m.FailConnects > 0 {
		m.FailConnects--
		return fmt.Errorf("connect %s: %w", endpoint, ErrNoDevices)
	}

	m.connected = true

	return nil
}

func (m *MockAdapter) Disconnect(_ context.Context) error {
	m.connected = false
	return nil
}

func (m *MockAdapter) Connected() bool {
	return m.connected
}

func (m *MockAdapter) Info(_ context.Context) (*Info, error) {
	if !m.connected {
		return nil, ErrNotConnected
	}

	info := m.DeviceInfo

	return &info, nil
}

func (m *MockAdapter) Status(_ context.Context) (*Status, error) {
	if !m.connected {
		return &Status{Link: LinkDown}, nil
	}

	status := &Status{Link: LinkUp, Temperature: m.Temperature}
	if m.StatusError != "" {
		status.ErrorCode = "E01"
		status.ErrorMessage = m.StatusError
	}

	return status, nil
}

func (m *MockAdapter) ApplyFirmware(_ context.Context, path string) error {
	if !m.connected {
		return ErrNotConnected
	}

	if m.FailFlash {
		return fmt.Errorf("%w: flash rejected", errDeviceFault)
	}

	m.flashedImages = append(m.flashedImages, path)

	return nil
}

func (m *MockAdapter) Reset(_ context.Context) error {
	if !m.connected {
		return ErrNotConnected
	}

	m.resets++

	return nil
}

// FlashedImages reports the firmware image paths applied, in order.
func (m *MockAdapter) FlashedImages() []string { return m.flashedImages }

// Resets reports how many reset operations ran.
func (m *MockAdapter) Resets() int { return m.resets }

// ConnectCalls reports how many connection attempts were made.
func (m *MockAdapter) ConnectCalls() int { return m.connectCalls }
