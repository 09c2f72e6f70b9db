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
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steelpos/termfleet/pkg/models"
)

func publishTestArtifact(t *testing.T, s *Server, version string) {
	t.Helper()

	require.NoError(t, s.PublishArtifact(context.Background(), &models.FirmwareArtifact{
		Version:   version,
		Model:     "SP-900",
		FileURL:   "http://core/fw/" + version + ".bin",
		SHA256:    "abc123",
		SizeBytes: 64,
		Latest:    true,
	}))
}

func TestPublishArtifactValidation(t *testing.T) {
	s, _ := newTestServer(t)

	err := s.PublishArtifact(context.Background(), &models.FirmwareArtifact{Model: "SP-900"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestDeploySkipsFailedTargets(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()

	serials := make([]string, 0, 10)

	for i := 1; i <= 10; i++ {
		serial := fmt.Sprintf("T-%d", i)
		serials = append(serials, serial)

		if i == 7 {
			// Terminal #7 was never registered; its task cannot be
			// created.
			continue
		}

		registerTerminal(t, s, serial)
	}

	publishTestArtifact(t, s, "2.0.0")

	resp, err := s.Deploy(ctx, &models.DeployRequest{
		Version:   "2.0.0",
		Model:     "SP-900",
		Selection: models.SelectExplicitSet,
		Serials:   serials,
	})
	require.NoError(t, err)

	assert.Equal(t, 9, resp.TasksCreated)
	assert.NotEmpty(t, resp.BatchID)

	// The failure skipped #7 only; the others all have their task.
	for i := 1; i <= 10; i++ {
		tasks, err := store.ListTasksForTerminal(ctx, fmt.Sprintf("T-%d", i))
		require.NoError(t, err)

		if i == 7 {
			assert.Empty(t, tasks)
		} else {
			require.Len(t, tasks, 1)
			assert.Equal(t, models.TaskFirmware, tasks[0].Kind)
			assert.Equal(t, defaultDeployPriority, tasks[0].Priority)
		}
	}
}

func TestDeploySharedSchedule(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()

	registerTerminal(t, s, "T-1")
	registerTerminal(t, s, "T-2")
	publishTestArtifact(t, s, "2.0.0")

	scheduled := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Second)

	resp, err := s.Deploy(ctx, &models.DeployRequest{
		Version:     "2.0.0",
		Model:       "SP-900",
		Selection:   models.SelectAllOnline,
		ScheduledAt: &scheduled,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.TasksCreated)
	assert.True(t, resp.ScheduledAt.Equal(scheduled))

	for _, serial := range []string{"T-1", "T-2"} {
		tasks, err := store.ListTasksForTerminal(ctx, serial)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		require.NotNil(t, tasks[0].ScheduledAt)
		assert.True(t, tasks[0].ScheduledAt.Equal(scheduled))
	}
}

func TestDeployUnknownArtifact(t *testing.T) {
	s, _ := newTestServer(t)
	registerTerminal(t, s, "T-1")

	_, err := s.Deploy(context.Background(), &models.DeployRequest{
		Version:   "9.9.9",
		Model:     "SP-900",
		Selection: models.SelectAllOnline,
	})
	require.Error(t, err)
}

func TestDeployByCustomer(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()

	registerTerminal(t, s, "T-1")
	registerTerminal(t, s, "T-2")

	terminal, err := store.GetTerminal(ctx, "T-1")
	require.NoError(t, err)
	terminal.CustomerID = "cust-9"
	require.NoError(t, store.UpsertTerminal(ctx, terminal))

	publishTestArtifact(t, s, "2.0.0")

	resp, err := s.Deploy(ctx, &models.DeployRequest{
		Version:    "2.0.0",
		Model:      "SP-900",
		Selection:  models.SelectByCustomer,
		CustomerID: "cust-9",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.TasksCreated)

	tasks, err := store.ListTasksForTerminal(ctx, "T-2")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}
