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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steelpos/termfleet/pkg/models"
)

func TestConfigValidateDefaults(t *testing.T) {
	cfg := &Config{CoordinatorURL: "http://core:8090", APIKey: "secret"}

	require.NoError(t, cfg.Validate())

	assert.Equal(t, defaultHeartbeatInterval, time.Duration(cfg.HeartbeatInterval))
	assert.Equal(t, defaultProbeInterval, time.Duration(cfg.ProbeInterval))
	assert.Equal(t, defaultFailureThreshold, cfg.FailureThreshold)
}

func TestConfigValidateRejectsMissing(t *testing.T) {
	assert.ErrorIs(t, (&Config{APIKey: "secret"}).Validate(), errCoordinatorURLRequired)
	assert.ErrorIs(t, (&Config{CoordinatorURL: "http://core"}).Validate(), errAPIKeyRequired)
}

func TestJournalDrainAndRequeue(t *testing.T) {
	j := &journal{}

	j.record(models.LogInfo, models.LogCatSystem, "first")
	j.record(models.LogError, models.LogCatError, "second")

	entries := j.drain()
	require.Len(t, entries, 2)
	assert.Empty(t, j.drain())

	// A failed upload puts entries back ahead of newer ones.
	j.record(models.LogInfo, models.LogCatSystem, "third")
	j.requeue(entries)

	replay := j.drain()
	require.Len(t, replay, 3)
	assert.Equal(t, "first", replay[0].Message)
	assert.Equal(t, "third", replay[2].Message)
}

func TestJournalBounded(t *testing.T) {
	j := &journal{}

	for i := 0; i < journalCap+50; i++ {
		j.record(models.LogInfo, models.LogCatSystem, "entry")
	}

	assert.Len(t, j.drain(), journalCap)
}
