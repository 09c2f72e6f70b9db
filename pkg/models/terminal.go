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

package models

import "time"

// TerminalStatus is the coordinator-derived connectivity state of a terminal.
type TerminalStatus string

const (
	TerminalOnline      TerminalStatus = "online"
	TerminalOffline     TerminalStatus = "offline"
	TerminalError       TerminalStatus = "error"
	TerminalMaintenance TerminalStatus = "maintenance"
)

// Valid reports whether s is one of the known terminal statuses.
func (s TerminalStatus) Valid() bool {
	switch s {
	case TerminalOnline, TerminalOffline, TerminalError, TerminalMaintenance:
		return true
	default:
		return false
	}
}

// Metrics is a point-in-time resource snapshot reported in a heartbeat.
// Utilization values are integer percentages; a failed metric source
// reports zero rather than omitting the field.
type Metrics struct {
	CPUUsage    int  `json:"cpu_usage"`
	MemoryUsage int  `json:"memory_usage"`
	DiskUsage   int  `json:"disk_usage"`
	Temperature *int `json:"temperature,omitempty"`
}

// Terminal is the coordinator's durable record of one managed device.
// Serial is the immutable identity; everything else is refreshed from
// heartbeats or operator actions. Status never changes without
// LastContact being refreshed in the same write.
type Terminal struct {
	Serial            string         `json:"serial_number"`
	Model             string         `json:"model"`
	CustomerID        string         `json:"customer_id,omitempty"`
	StoreName         string         `json:"store_name,omitempty"`
	Status            TerminalStatus `json:"status"`
	LastContact       time.Time      `json:"last_contact"`
	Metrics           Metrics        `json:"metrics"`
	FirmwareVersion   string         `json:"firmware_version"`
	AgentVersion      string         `json:"agent_version,omitempty"`
	IPAddress         string         `json:"ip_address,omitempty"`
	HeartbeatInterval Duration       `json:"heartbeat_interval,omitempty"`
	MaintenanceMode   bool           `json:"maintenance_mode"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}
