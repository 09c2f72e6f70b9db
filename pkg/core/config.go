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

package core

import (
	"errors"
	"time"

	"github.com/steelpos/termfleet/pkg/db"
	"github.com/steelpos/termfleet/pkg/logger"
	"github.com/steelpos/termfleet/pkg/models"
)

const (
	defaultHeartbeatInterval = 300 * time.Second
	defaultOfflineGrace      = 60 * time.Second
	defaultWatchdogInterval  = 60 * time.Second
	defaultDeployPriority    = 3

	// maxCommandBatch bounds how many commands ride one heartbeat
	// response.
	maxCommandBatch = 5
)

var (
	errListenAddrRequired = errors.New("listen_addr is required")
	errAPIKeyRequired     = errors.New("api_key is required")
)

// Config is the coordinator's JSON configuration file.
type Config struct {
	ListenAddr        string             `json:"listen_addr"`
	APIKey            string             `json:"api_key"`
	HeartbeatInterval models.Duration    `json:"heartbeat_interval,omitempty"`
	OfflineGrace      models.Duration    `json:"offline_grace,omitempty"`
	WatchdogInterval  models.Duration    `json:"watchdog_interval,omitempty"`
	DeployPriority    int                `json:"deploy_priority,omitempty"`
	Database          *db.PostgresConfig `json:"database,omitempty"`
	Logging           *logger.Config     `json:"logging,omitempty"`
}

// Validate fills defaults and rejects unusable configs. Satisfies
// config.Validator.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return errListenAddrRequired
	}

	if c.APIKey == "" {
		return errAPIKeyRequired
	}

	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = models.Duration(defaultHeartbeatInterval)
	}

	if c.OfflineGrace == 0 {
		c.OfflineGrace = models.Duration(defaultOfflineGrace)
	}

	if c.WatchdogInterval == 0 {
		c.WatchdogInterval = models.Duration(defaultWatchdogInterval)
	}

	if c.DeployPriority <= 0 {
		c.DeployPriority = defaultDeployPriority
	}

	return nil
}
