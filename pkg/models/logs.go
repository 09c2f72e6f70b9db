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

// LogLevel is the severity of a terminal-submitted log entry.
type LogLevel string

const (
	LogDebug    LogLevel = "debug"
	LogInfo     LogLevel = "info"
	LogWarning  LogLevel = "warning"
	LogError    LogLevel = "error"
	LogCritical LogLevel = "critical"
)

var logLevelRank = map[LogLevel]int{
	LogDebug:    0,
	LogInfo:     1,
	LogWarning:  2,
	LogError:    3,
	LogCritical: 4,
}

// AtLeast reports whether l is at or above the given severity. Unknown
// levels compare below everything.
func (l LogLevel) AtLeast(min LogLevel) bool {
	lr, ok := logLevelRank[l]
	if !ok {
		return false
	}

	return lr >= logLevelRank[min]
}

// LogCategory classifies terminal log entries.
type LogCategory string

const (
	LogCatHeartbeat     LogCategory = "heartbeat"
	LogCatTransaction   LogCategory = "transaction"
	LogCatError         LogCategory = "error"
	LogCatCommunication LogCategory = "communication"
	LogCatSystem        LogCategory = "system"
	LogCatUpdate        LogCategory = "update"
)

// LogEntry is one terminal log record ingested by the coordinator.
// Entries at error severity or above trigger alert creation.
type LogEntry struct {
	TerminalSerial string          `json:"serial_number"`
	Timestamp      time.Time       `json:"timestamp"`
	Level          LogLevel        `json:"level"`
	Category       LogCategory     `json:"category"`
	Message        string          `json:"message"`
	Details        json.RawMessage `json:"details,omitempty"`
}
