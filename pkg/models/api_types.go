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

import (
	"encoding/json"
	"time"
)

// HeartbeatRequest is the periodic agent -> coordinator health report.
// It doubles as the pull trigger for pending work.
type HeartbeatRequest struct {
	SerialNumber    string         `json:"serial_number"`
	Timestamp       time.Time      `json:"timestamp"`
	Status          TerminalStatus `json:"status"`
	Metrics         Metrics        `json:"metrics"`
	FirmwareVersion string         `json:"firmware_version"`
	AgentVersion    string         `json:"agent_version"`
	IPAddress       string         `json:"ip_address"`
}

// Command is one unit of work handed to an agent in a heartbeat response.
// Delivery is at-least-once; application must be idempotent.
type Command struct {
	ID         string           `json:"id"`
	Kind       TaskKind         `json:"kind"`
	Priority   int              `json:"priority"`
	Parameters json.RawMessage  `json:"parameters,omitempty"`
	Firmware   *FirmwarePayload `json:"firmware,omitempty"`
}

// HeartbeatAck is the acknowledgement status in a heartbeat response.
const HeartbeatAck = "acknowledged"

// HeartbeatResponse carries the ack plus up to MaxCommandBatch commands,
// already ordered for execution.
type HeartbeatResponse struct {
	Status       string    `json:"status"`
	ServerTime   time.Time `json:"server_time"`
	Commands     []Command `json:"commands"`
	NextInterval Duration  `json:"next_interval"`
}

// CommandResult is the agent's report on one executed command. Exactly one
// result is emitted per dispatched command, success or failure.
type CommandResult struct {
	CommandID      string          `json:"command_id"`
	TerminalSerial string          `json:"serial_number"`
	State          TaskState       `json:"state"`
	StartedAt      time.Time       `json:"started_at"`
	CompletedAt    time.Time       `json:"completed_at"`
	Result         json.RawMessage `json:"result,omitempty"`
	ErrorDetail    string          `json:"error_detail,omitempty"`
}

// RegisterRequest enrolls a terminal with the coordinator.
type RegisterRequest struct {
	SerialNumber    string `json:"serial_number"`
	Model           string `json:"model"`
	FirmwareVersion string `json:"firmware_version"`
	AgentVersion    string `json:"agent_version"`
	Hostname        string `json:"hostname,omitempty"`
	IPAddress       string `json:"ip_address,omitempty"`
}

// RegisterResponse returns the terminal identity and an opaque token for
// subsequent exchanges.
type RegisterResponse struct {
	SerialNumber      string   `json:"serial_number"`
	Token             string   `json:"token"`
	HeartbeatInterval Duration `json:"heartbeat_interval"`
}

// LogSubmission is one entry in a batched log upload.
type LogSubmission struct {
	Timestamp time.Time       `json:"timestamp"`
	Level     LogLevel        `json:"level"`
	Category  LogCategory     `json:"category"`
	Message   string          `json:"message"`
	Details   json.RawMessage `json:"details,omitempty"`
}

// LogBatch is a batched agent -> coordinator log upload.
type LogBatch struct {
	Entries []LogSubmission `json:"entries"`
}

// SelectionMode chooses which terminals a deployment targets.
type SelectionMode string

const (
	SelectAllOnline   SelectionMode = "all"
	SelectByCustomer  SelectionMode = "by-group"
	SelectExplicitSet SelectionMode = "explicit-list"
)

// DeployRequest asks the orchestrator to roll a firmware artifact out to a
// selection of terminals.
type DeployRequest struct {
	Version     string        `json:"version"`
	Model       string        `json:"model"`
	Selection   SelectionMode `json:"selection"`
	CustomerID  string        `json:"customer_id,omitempty"`
	Serials     []string      `json:"serial_numbers,omitempty"`
	ScheduledAt *time.Time    `json:"scheduled_at,omitempty"`
}

// DeployResponse summarizes a batch-create. Partial failures reduce
// TasksCreated; they never roll back tasks already created.
type DeployResponse struct {
	BatchID      string    `json:"batch_id"`
	TasksCreated int       `json:"tasks_created"`
	ScheduledAt  time.Time `json:"scheduled_at"`
}

// ErrorResponse is the structured error body for rejected requests.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}
