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

// Package core is the coordinator: fleet registry, task queue and
// lifecycle engine, firmware orchestration, and alert ingestion. All
// persistence goes through db.Service.
package core

import (
	"context"
	"sync"
	"time"

	"github.com/steelpos/termfleet/pkg/db"
	"github.com/steelpos/termfleet/pkg/logger"
	"github.com/steelpos/termfleet/pkg/models"
)

// Server is the coordinator core. It implements lifecycle.Service; the
// HTTP surface lives in pkg/core/api and calls into it.
type Server struct {
	config *Config
	store  db.Service
	locks  *keyedMutex
	logger logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer builds the coordinator core over an opened store.
func NewServer(config *Config, store db.Service, log logger.Logger) *Server {
	return &Server{
		config: config,
		store:  store,
		locks:  newKeyedMutex(),
		logger: log,
	}
}

// Start launches the offline watchdog.
func (s *Server) Start(_ context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)

	go s.watchdogLoop(runCtx)

	s.logger.Info().
		Dur("watchdog_interval", time.Duration(s.config.WatchdogInterval)).
		Msg("Coordinator core started")

	return nil
}

// Stop halts the watchdog and closes the store.
func (s *Server) Stop(_ context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	s.wg.Wait()

	return s.store.Close()
}

func (s *Server) watchdogLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Duration(s.config.WatchdogInterval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOffline(ctx)
		}
	}
}

// sweepOffline flips online terminals whose last contact is older than
// their heartbeat interval plus grace. One missed heartbeat never flips
// status; one alert per transition, cleared by the next heartbeat.
func (s *Server) sweepOffline(ctx context.Context) {
	terminals, err := s.store.ListTerminalsByStatus(ctx, models.TerminalOnline)
	if err != nil {
		s.logger.Error().Err(err).Msg("Offline sweep query failed")
		return
	}

	now := time.Now().UTC()

	for i := range terminals {
		t := &terminals[i]

		if now.Sub(t.LastContact) <= s.missThreshold(t) {
			continue
		}

		if err := s.store.MarkTerminalStatus(ctx, t.Serial, models.TerminalOffline); err != nil {
			s.logger.Error().Err(err).Str("serial_number", t.Serial).Msg("Offline flip failed")
			continue
		}

		s.logger.Warn().
			Str("serial_number", t.Serial).
			Time("last_contact", t.LastContact).
			Msg("Terminal marked offline")

		s.raiseAlert(ctx, t.Serial, models.AlertOffline, models.SeverityHigh,
			"Terminal offline",
			"no heartbeat since "+t.LastContact.Format(time.RFC3339), nil)
	}
}

// missThreshold is one heartbeat interval (per-terminal override or fleet
// default) plus the configured grace.
func (s *Server) missThreshold(t *models.Terminal) time.Duration {
	interval := time.Duration(t.HeartbeatInterval)
	if interval <= 0 {
		interval = time.Duration(s.config.HeartbeatInterval)
	}

	return interval + time.Duration(s.config.OfflineGrace)
}
