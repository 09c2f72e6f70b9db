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
	"errors"
	"time"

	"github.com/steelpos/termfleet/pkg/device"
	"github.com/steelpos/termfleet/pkg/logger"
	"github.com/steelpos/termfleet/pkg/models"
)

const (
	defaultHeartbeatInterval = 300 * time.Second
	defaultProbeInterval     = 30 * time.Second
	defaultLogFlushInterval  = 60 * time.Second
	defaultFailureThreshold  = 5
)

var (
	errCoordinatorURLRequired = errors.New("coordinator_url is required")
	errAPIKeyRequired         = errors.New("api_key is required")
)

// Config is the agent's JSON configuration file.
type Config struct {
	CoordinatorURL    string          `json:"coordinator_url"`
	APIKey            string          `json:"api_key"`
	AgentVersion      string          `json:"agent_version,omitempty"`
	HeartbeatInterval models.Duration `json:"heartbeat_interval,omitempty"`
	ProbeInterval     models.Duration `json:"probe_interval,omitempty"`
	LogFlushInterval  models.Duration `json:"log_flush_interval,omitempty"`
	FailureThreshold  int             `json:"failure_threshold,omitempty"`
	Device            device.Config   `json:"device"`
	Logging           *logger.Config  `json:"logging,omitempty"`
}

// Validate fills defaults and rejects unusable configs. Satisfies
// config.Validator.
func (c *Config) Validate() error {
	if c.CoordinatorURL == "" {
		return errCoordinatorURLRequired
	}

	if c.APIKey == "" {
		return errAPIKeyRequired
	}

	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = models.Duration(defaultHeartbeatInterval)
	}

	if c.ProbeInterval == 0 {
		c.ProbeInterval = models.Duration(defaultProbeInterval)
	}

	if c.LogFlushInterval == 0 {
		c.LogFlushInterval = models.Duration(defaultLogFlushInterval)
	}

	if c.FailureThreshold <= 0 {
		c.FailureThreshold = defaultFailureThreshold
	}

	return nil
}
