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

// Package lifecycle manages service startup, shutdown, and signal handling.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const shutdownTimeout = 10 * time.Second

// Service is a long-running component with a blocking Start and a bounded
// Stop. Start returns when the service exits or ctx is cancelled.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Options configures Run.
type Options struct {
	ServiceName string
	Services    []Service
}

// Run starts every service and blocks until one of them fails or the
// process receives SIGINT/SIGTERM, then stops them all in reverse order.
func Run(ctx context.Context, opts *Options) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, len(opts.Services))

	for _, svc := range opts.Services {
		go func(s Service) {
			if err := s.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
				return
			}

			errCh <- nil
		}(svc)
	}

	var runErr error

wait:
	for {
		select {
		case <-ctx.Done():
			break wait
		case err := <-errCh:
			if err != nil {
				runErr = fmt.Errorf("service %s failed: %w", opts.ServiceName, err)
				break wait
			}
			// A clean Start return means the service is running in the
			// background; keep waiting for a failure or a signal.
		}
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for i := len(opts.Services) - 1; i >= 0; i-- {
		if err := opts.Services[i].Stop(stopCtx); err != nil && runErr == nil {
			runErr = fmt.Errorf("service %s stop failed: %w", opts.ServiceName, err)
		}
	}

	return runErr
}
