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

package device

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/steelpos/termfleet/pkg/logger"
)

const (
	serialDialTimeout = 5 * time.Second
	serialOpTimeout   = 10 * time.Second
	// Flashing holds the line for much longer than a normal exchange.
	serialFlashTimeout = 5 * time.Minute

	maxFrameBytes = 1 << 20
)

// serialAdapter speaks the vendor line protocol over a local unix socket
// exposed by the terminal's hardware bridge. Frames are newline-delimited
// JSON request/response pairs.
type serialAdapter struct {
	endpoints []string
	conn      net.Conn
	reader    *bufio.Reader
	logger    logger.Logger
}

type frameRequest struct {
	Op   string          `json:"op"`
	Args json.RawMessage `json:"args,omitempty"`
}

type frameResponse struct {
	OK        bool            `json:"ok"`
	ErrorCode string          `json:"error_code,omitempty"`
	ErrorMsg  string          `json:"error_message,omitempty"`
	Body      json.RawMessage `json:"body,omitempty"`
}

func newSerialAdapter(endpoints []string, log logger.Logger) *serialAdapter {
	return &serialAdapter{endpoints: endpoints, logger: log}
}

// Scan reports configured endpoints whose sockets exist, preserving the
// configured order so reconnects pick the same device first.
func (s *serialAdapter) Scan(_ context.Context) ([]string, error) {
	var found []string

	for _, ep := range s.endpoints {
		if _, err := os.Stat(ep); err != nil {
			continue
		}

		found = append(found, ep)
	}

	if len(found) == 0 {
		return nil, ErrNoDevices
	}

	return found, nil
}

func (s *serialAdapter) Connect(ctx context.Context, endpoint string) error {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}

	dialer := net.Dialer{Timeout: serialDialTimeout}

	conn, err := dialer.DialContext(ctx, "unix", endpoint)
	if err != nil {
		return fmt.Errorf("dial %s: %w", endpoint, err)
	}

	s.conn = conn
	s.reader = bufio.NewReaderSize(conn, maxFrameBytes)

	s.logger.Info().Str("endpoint", endpoint).Msg("Device link established")

	return nil
}

func (s *serialAdapter) Disconnect(_ context.Context) error {
	if s.conn == nil {
		return nil
	}

	err := s.conn.Close()
	s.conn = nil
	s.reader = nil

	return err
}

func (s *serialAdapter) Connected() bool {
	return s.conn != nil
}

func (s *serialAdapter) Info(ctx context.Context) (*Info, error) {
	resp, err := s.exchange(ctx, "info", nil, serialOpTimeout)
	if err != nil {
		return nil, err
	}

	var info Info
	if err := json.Unmarshal(resp.Body, &info); err != nil {
		return nil, fmt.Errorf("decode device info: %w", err)
	}

	return &info, nil
}

func (s *serialAdapter) Status(ctx context.Context) (*Status, error) {
	resp, err := s.exchange(ctx, "status", nil, serialOpTimeout)
	if err != nil {
		return nil, err
	}

	var status Status
	if err := json.Unmarshal(resp.Body, &status); err != nil {
		return nil, fmt.Errorf("decode device status: %w", err)
	}

	return &status, nil
}

func (s *serialAdapter) ApplyFirmware(ctx context.Context, path string) error {
	args, err := json.Marshal(map[string]string{"image_path": path})
	if err != nil {
		return fmt.Errorf("encode flash args: %w", err)
	}

	_, err = s.exchange(ctx, "flash", args, serialFlashTimeout)

	return err
}

func (s *serialAdapter) Reset(ctx context.Context) error {
	_, err := s.exchange(ctx, "reset", nil, serialOpTimeout)

	return err
}

func (s *serialAdapter) exchange(ctx context.Context, op string, args json.RawMessage, timeout time.Duration) (*frameResponse, error) {
	if s.conn == nil {
		return nil, ErrNotConnected
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := s.conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	payload, err := json.Marshal(frameRequest{Op: op, Args: args})
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", op, err)
	}

	if _, err := s.conn.Write(append(payload, '\n')); err != nil {
		s.dropLink()
		return nil, fmt.Errorf("write %s frame: %w", op, err)
	}

	line, err := s.reader.ReadBytes('\n')
	if err != nil {
		s.dropLink()
		return nil, fmt.Errorf("read %s response: %w", op, err)
	}

	var resp frameResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", op, err)
	}

	if !resp.OK {
		return nil, fmt.Errorf("%w: %s: %s (%s)", errDeviceFault, op, resp.ErrorMsg, resp.ErrorCode)
	}

	return &resp, nil
}

// dropLink closes the connection after an I/O failure so the supervisor's
// next liveness probe sees a dead link instead of a wedged one.
func (s *serialAdapter) dropLink() {
	if s.conn != nil {
		_ = s.conn.Close()
	}

	s.conn = nil
	s.reader = nil
}
