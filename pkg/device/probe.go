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

	"github.com/steelpos/termfleet/pkg/logger"
)

// Config selects and parameterizes the device driver.
type Config struct {
	// Driver is "serial" or "mock".
	Driver string `json:"driver"`
	// Endpoints are the candidate bridge sockets for the serial driver,
	// in preference order.
	Endpoints []string `json:"endpoints,omitempty"`
	// MockSerial and MockModel seed the mock driver's identity.
	MockSerial string `json:"mock_serial,omitempty"`
	MockModel  string `json:"mock_model,omitempty"`
}

// Probe builds the adapter the configuration names. Driver selection
// happens once at agent startup; callers hold the returned Adapter for
// the process lifetime.
func Probe(_ context.Context, cfg *Config, log logger.Logger) (Adapter, error) {
	switch cfg.Driver {
	case "serial", "":
		endpoints := cfg.Endpoints
		if len(endpoints) == 0 {
			endpoints = []string{"/var/run/steelpos/bridge.sock"}
		}

		return newSerialAdapter(endpoints, log), nil
	case "mock":
		return NewMockAdapter(Info{
			Serial:          cfg.MockSerial,
			Model:           cfg.MockModel,
			FirmwareVersion: "0.0.0-mock",
		}), nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownDriver, cfg.Driver)
	}
}
