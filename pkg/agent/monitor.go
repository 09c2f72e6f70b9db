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
	"net"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/steelpos/termfleet/pkg/logger"
	"github.com/steelpos/termfleet/pkg/models"
)

const (
	cpuSampleWindow = time.Second
	maxUtilization  = 100
)

// Monitor samples local host resources for heartbeat payloads. Any metric
// source that fails contributes a zero; partial telemetry beats none.
type Monitor struct {
	diskPath string
	logger   logger.Logger

	// Swappable for tests.
	cpuPercent  func(ctx context.Context, interval time.Duration, percpu bool) ([]float64, error)
	virtualMem  func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	diskUsage   func(ctx context.Context, path string) (*disk.UsageStat, error)
	resolveAddr func(ctx context.Context) string
}

// NewMonitor returns a Monitor sampling the root filesystem.
func NewMonitor(log logger.Logger) *Monitor {
	return &Monitor{
		diskPath:    "/",
		logger:      log,
		cpuPercent:  cpu.PercentWithContext,
		virtualMem:  mem.VirtualMemoryWithContext,
		diskUsage:   disk.UsageWithContext,
		resolveAddr: localIP,
	}
}

// Collect samples CPU, memory and disk utilization as integer percentages.
func (m *Monitor) Collect(ctx context.Context) models.Metrics {
	var metrics models.Metrics

	if percent, err := m.cpuPercent(ctx, cpuSampleWindow, false); err != nil || len(percent) == 0 {
		m.logger.Warn().Err(err).Msg("CPU collection failed; reporting zero")
	} else {
		metrics.CPUUsage = clampPercent(percent[0])
	}

	if vmStats, err := m.virtualMem(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("Memory collection failed; reporting zero")
	} else {
		metrics.MemoryUsage = clampPercent(vmStats.UsedPercent)
	}

	if usage, err := m.diskUsage(ctx, m.diskPath); err != nil {
		m.logger.Warn().Err(err).Msg("Disk collection failed; reporting zero")
	} else {
		metrics.DiskUsage = clampPercent(usage.UsedPercent)
	}

	return metrics
}

// LocalAddress resolves the outbound IPv4 address, "unknown" on failure.
func (m *Monitor) LocalAddress(ctx context.Context) string {
	return m.resolveAddr(ctx)
}

func clampPercent(v float64) int {
	if v < 0 {
		return 0
	}

	if v > maxUtilization {
		return maxUtilization
	}

	return int(v)
}

// localIP prefers a stable non-loopback IPv4 and falls back to the UDP
// dial trick when the interface walk yields nothing usable.
func localIP(ctx context.Context) string {
	if ip := firstUsableIPv4(); ip != "" {
		return ip
	}

	dialer := &net.Dialer{Timeout: time.Second}

	conn, err := dialer.DialContext(ctx, "udp", "8.8.8.8:80")
	if err != nil {
		return "unknown"
	}
	defer func() {
		_ = conn.Close()
	}()

	localAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "unknown"
	}

	return localAddr.IP.String()
}

func firstUsableIPv4() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}

	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}

		ip := ipNet.IP.To4()
		if ip == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
			continue
		}

		return ip.String()
	}

	return ""
}
