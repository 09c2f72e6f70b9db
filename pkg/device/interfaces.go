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

// Package device is the capability boundary between the agent and the POS
// hardware it manages. Everything above this package treats the device as
// an opaque Adapter; the vendor link details stay here.
package device

import "context"

// Info is the static identity a device reports once connected.
type Info struct {
	Serial          string `json:"serial_number"`
	Model           string `json:"model"`
	FirmwareVersion string `json:"firmware_version"`
}

// LinkState is the adapter's view of the physical link.
type LinkState string

const (
	LinkUp   LinkState = "up"
	LinkDown LinkState = "down"
)

// Status is a point-in-time device health snapshot.
type Status struct {
	Link         LinkState `json:"link"`
	ErrorCode    string    `json:"error_code,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Temperature  *int      `json:"temperature,omitempty"`
}

// Adapter is the operation surface of one physical or simulated device.
// Implementations are not safe for concurrent use; the connection
// supervisor owns serialization of access to the link.
type Adapter interface {
	// Scan discovers candidate device endpoints in a stable order.
	Scan(ctx context.Context) ([]string, error)
	// Connect establishes the link to one scanned endpoint.
	Connect(ctx context.Context, endpoint string) error
	Disconnect(ctx context.Context) error
	Connected() bool
	Info(ctx context.Context) (*Info, error)
	Status(ctx context.Context) (*Status, error)
	// ApplyFirmware flashes a verified local image file onto the device.
	ApplyFirmware(ctx context.Context, path string) error
	Reset(ctx context.Context) error
}
