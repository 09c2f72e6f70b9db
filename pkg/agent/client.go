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
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/steelpos/termfleet/pkg/logger"
	"github.com/steelpos/termfleet/pkg/models"
)

const (
	requestTimeout  = 30 * time.Second
	downloadTimeout = 10 * time.Minute

	submitInitialBackoff = 2 * time.Second
	submitMaxBackoff     = 30 * time.Second
	submitMaxElapsed     = 2 * time.Minute
)

var (
	errServerRejected = errors.New("coordinator rejected request")
	errDigestMismatch = errors.New("firmware digest mismatch")
	errSizeMismatch   = errors.New("firmware size mismatch")
	errNotRegistered  = errors.New("terminal not registered")
)

// Client wraps the coordinator's HTTP API for one terminal. Heartbeats are
// fire-once per tick; result and log submissions retry with backoff because
// losing them costs a redelivered batch or a delayed alert.
type Client struct {
	baseURL    string
	apiKey     string
	serial     string
	token      string
	httpClient *http.Client
	downloader *http.Client
	logger     logger.Logger
}

// NewClient builds a coordinator client. The serial is set after the
// adapter reports device identity, the token after registration.
func NewClient(baseURL, apiKey string, log logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: requestTimeout},
		downloader: &http.Client{Timeout: downloadTimeout},
		logger:     log,
	}
}

// Register enrolls the terminal and stores the returned session token.
func (c *Client) Register(ctx context.Context, req *models.RegisterRequest) (*models.RegisterResponse, error) {
	var resp models.RegisterResponse

	if err := c.post(ctx, "/api/terminals/register", req, &resp); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	c.serial = resp.SerialNumber
	c.token = resp.Token

	return &resp, nil
}

// Heartbeat submits one health report and returns the command batch. Not
// retried on failure: the next tick comes regardless.
func (c *Client) Heartbeat(ctx context.Context, req *models.HeartbeatRequest) (*models.HeartbeatResponse, error) {
	if c.serial == "" {
		return nil, errNotRegistered
	}

	var resp models.HeartbeatResponse

	if err := c.post(ctx, "/api/terminals/"+c.serial+"/heartbeat", req, &resp); err != nil {
		return nil, fmt.Errorf("heartbeat: %w", err)
	}

	return &resp, nil
}

// SubmitResults delivers command results, retrying transient failures. The
// coordinator applies results idempotently, so a duplicate delivery after
// an ambiguous failure is harmless.
func (c *Client) SubmitResults(ctx context.Context, results []models.CommandResult) error {
	if len(results) == 0 {
		return nil
	}

	return c.submitWithRetry(ctx, "/api/terminals/"+c.serial+"/results", results)
}

// SubmitLogs uploads a journal batch, retrying transient failures.
func (c *Client) SubmitLogs(ctx context.Context, batch *models.LogBatch) error {
	if len(batch.Entries) == 0 {
		return nil
	}

	return c.submitWithRetry(ctx, "/api/terminals/"+c.serial+"/logs", batch)
}

func (c *Client) submitWithRetry(ctx context.Context, path string, payload any) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = submitInitialBackoff
	bo.MaxInterval = submitMaxBackoff

	operation := func() (struct{}, error) {
		err := c.post(ctx, path, payload, nil)
		if err == nil {
			return struct{}{}, nil
		}

		if errors.Is(err, errServerRejected) {
			// A 4xx will not get better with retries.
			return struct{}{}, backoff.Permanent(err)
		}

		return struct{}{}, err
	}

	if _, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo), backoff.WithMaxElapsedTime(submitMaxElapsed)); err != nil {
		return fmt.Errorf("submit %s: %w", path, err)
	}

	return nil
}

// DownloadFirmware fetches an artifact to a temp file and verifies its
// digest and size before handing the path back. The caller removes the
// file once flashed.
func (c *Client) DownloadFirmware(ctx context.Context, payload *models.FirmwarePayload) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, payload.FileURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}

	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.downloader.Do(req)
	if err != nil {
		return "", fmt.Errorf("download firmware: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: download status %d", errServerRejected, resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "termfleet-fw-*.bin")
	if err != nil {
		return "", fmt.Errorf("create firmware temp file: %w", err)
	}

	hasher := sha256.New()

	written, err := io.Copy(io.MultiWriter(tmp, hasher), io.LimitReader(resp.Body, payload.SizeBytes+1))
	closeErr := tmp.Close()

	if err != nil || closeErr != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write firmware image: %w", errors.Join(err, closeErr))
	}

	if payload.SizeBytes > 0 && written != payload.SizeBytes {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: got %d bytes, want %d", errSizeMismatch, written, payload.SizeBytes)
	}

	if digest := hex.EncodeToString(hasher.Sum(nil)); !strings.EqualFold(digest, payload.SHA256) {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: got %s", errDigestMismatch, digest)
	}

	c.logger.Info().
		Str("version", payload.Version).
		Int64("bytes", written).
		Str("path", filepath.Base(tmp.Name())).
		Msg("Firmware image downloaded and verified")

	return tmp.Name(), nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		var errBody models.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errBody)

		if resp.StatusCode < http.StatusInternalServerError {
			return fmt.Errorf("%w: %d %s", errServerRejected, resp.StatusCode, errBody.Error)
		}

		return fmt.Errorf("server error %d: %s", resp.StatusCode, errBody.Error)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
