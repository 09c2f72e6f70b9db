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
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/assert"

	"github.com/steelpos/termfleet/pkg/logger"
)

func newStubMonitor() *Monitor {
	m := NewMonitor(logger.NewTestLogger())
	m.cpuPercent = func(context.Context, time.Duration, bool) ([]float64, error) {
		return []float64{45.2}, nil
	}
	m.virtualMem = func(context.Context) (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{UsedPercent: 60.9}, nil
	}
	m.diskUsage = func(context.Context, string) (*disk.UsageStat, error) {
		return &disk.UsageStat{UsedPercent: 30.0}, nil
	}

	return m
}

func TestCollectSamplesAllSources(t *testing.T) {
	m := newStubMonitor()

	metrics := m.Collect(context.Background())

	assert.Equal(t, 45, metrics.CPUUsage)
	assert.Equal(t, 60, metrics.MemoryUsage)
	assert.Equal(t, 30, metrics.DiskUsage)
}

func TestCollectZeroesFailedSource(t *testing.T) {
	m := newStubMonitor()
	m.virtualMem = func(context.Context) (*mem.VirtualMemoryStat, error) {
		return nil, errors.New("procfs unavailable")
	}

	metrics := m.Collect(context.Background())

	// One failed source zeroes only its own field.
	assert.Equal(t, 45, metrics.CPUUsage)
	assert.Zero(t, metrics.MemoryUsage)
	assert.Equal(t, 30, metrics.DiskUsage)
}

func TestClampPercent(t *testing.T) {
	assert.Zero(t, clampPercent(-3))
	assert.Equal(t, 100, clampPercent(412.7))
	assert.Equal(t, 99, clampPercent(99.9))
}
