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

// TaskKind is the closed set of remote operations a terminal can be asked
// to perform. Unknown kinds are a validation error, never a silent skip.
type TaskKind string

const (
	TaskFirmware   TaskKind = "firmware"
	TaskConfig     TaskKind = "config"
	TaskReboot     TaskKind = "reboot"
	TaskDiagnostic TaskKind = "diagnostic"
)

func (k TaskKind) Valid() bool {
	switch k {
	case TaskFirmware, TaskConfig, TaskReboot, TaskDiagnostic:
		return true
	default:
		return false
	}
}

// TaskState is the lifecycle state of a task. Transitions are monotonic
// except for the single failed->pending requeue path.
type TaskState string

const (
	TaskPending   TaskState = "pending"
	TaskRunning   TaskState = "running"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
	TaskCancelled TaskState = "cancelled"
)

// Final reports whether the state admits no further transitions.
// A failed task is terminal only once its retry budget is spent; the
// lifecycle engine decides that, not the state itself.
func (s TaskState) Final() bool {
	switch s {
	case TaskCompleted, TaskCancelled:
		return true
	default:
		return false
	}
}

const (
	// DefaultTaskPriority is the priority assigned when none is given.
	// Lower numbers are more urgent.
	DefaultTaskPriority = 5

	// DefaultRetryLimit bounds automatic requeues of a failed task.
	DefaultRetryLimit = 3
)

// Task is one unit of remote work targeting one terminal. Tasks are never
// deleted; they terminate in a final state for audit continuity.
type Task struct {
	ID             string          `json:"id"`
	TerminalSerial string          `json:"serial_number"`
	Kind           TaskKind        `json:"kind"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Priority       int             `json:"priority"`
	ScheduledAt    *time.Time      `json:"scheduled_at,omitempty"`
	State          TaskState       `json:"state"`
	RetryCount     int             `json:"retry_count"`
	RetryLimit     int             `json:"retry_limit"`
	ErrorDetail    string          `json:"error_detail,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	StartedAt      *time.Time      `json:"started_at,omitempty"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	CreatedBy      string          `json:"created_by,omitempty"`
}

// Due reports whether the task is eligible for dispatch at now.
func (t *Task) Due(now time.Time) bool {
	if t.State != TaskPending {
		return false
	}

	return t.ScheduledAt == nil || !t.ScheduledAt.After(now)
}

// FirmwarePayload is the content descriptor carried by firmware tasks,
// resolved from a published FirmwareArtifact at task-creation time.
type FirmwarePayload struct {
	Version   string `json:"version"`
	FileURL   string `json:"file_url"`
	SHA256    string `json:"sha256"`
	SizeBytes int64  `json:"size_bytes"`
}
