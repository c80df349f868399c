// Package gateway talks to the remote gateway that receives deploy hand-offs
// and bridge callbacks.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// KeyHeader carries the shared secret on outbound calls.
const KeyHeader = "X-Bridge-Key"

// ErrNotConfigured is returned when no gateway URL is set.
var ErrNotConfigured = errors.New("gateway not configured")

// Config configures a Client.
type Config struct {
	BaseURL      string
	SharedSecret string
	Timeout      time.Duration

	// ProbeAttempts bounds Probe retries. Zero means 5.
	ProbeAttempts int
	// ProbeInitialInterval is the first backoff delay. Zero means 500ms.
	ProbeInitialInterval time.Duration
}

// Client is safe for concurrent use.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// DeployRequest is the body posted by the deploy stage.
type DeployRequest struct {
	TaskID string `json:"task_id"`
	Query  string `json:"query"`
	Output any    `json:"output"`
	Route  string `json:"route"`
}

// DeployAck is the gateway's acknowledgement of a deploy hand-off.
type DeployAck struct {
	StatusCode int
}

func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ProbeAttempts <= 0 {
		cfg.ProbeAttempts = 5
	}
	if cfg.ProbeInitialInterval <= 0 {
		cfg.ProbeInitialInterval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Configured reports whether a gateway URL is set.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.BaseURL != ""
}

// BaseURL returns the normalized gateway URL.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// Resolve turns a callback path into an absolute URL. Absolute URLs pass
// through; relative paths are joined to the gateway URL.
func (c *Client) Resolve(target string) string {
	if target == "" {
		return c.cfg.BaseURL
	}
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	if c.cfg.BaseURL == "" {
		return target
	}
	return c.cfg.BaseURL + "/" + strings.TrimLeft(target, "/")
}

// PostDeploy hands a task's aggregated output to the gateway. Any HTTP
// response is an acknowledgement, whatever its status; only failing to
// reach the gateway is an error.
func (c *Client) PostDeploy(ctx context.Context, req DeployRequest) (DeployAck, error) {
	if !c.Configured() {
		return DeployAck{}, ErrNotConfigured
	}
	if req.Route == "" {
		req.Route = "deploy"
	}

	body, err := json.Marshal(req)
	if err != nil {
		return DeployAck{}, fmt.Errorf("marshal deploy request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/agent/callback", bytes.NewReader(body))
	if err != nil {
		return DeployAck{}, fmt.Errorf("build deploy request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.SharedSecret != "" {
		httpReq.Header.Set(KeyHeader, c.cfg.SharedSecret)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return DeployAck{}, fmt.Errorf("post deploy: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("gateway answered deploy with non-2xx", "task_id", req.TaskID, "status", resp.StatusCode)
	}
	return DeployAck{StatusCode: resp.StatusCode}, nil
}

// Probe checks GET {gateway}/health with bounded exponential backoff.
// 4xx responses are not retried.
func (c *Client) Probe(ctx context.Context) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	attempt := 0
	op := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/health", nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			c.logger.Debug("gateway probe failed", "attempt", attempt, "error", err)
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode <= 299:
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode <= 499:
			return backoff.Permanent(fmt.Errorf("gateway health returned %d", resp.StatusCode))
		default:
			c.logger.Debug("gateway probe unhealthy", "attempt", attempt, "status", resp.StatusCode)
			return fmt.Errorf("gateway health returned %d", resp.StatusCode)
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.ProbeInitialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.ProbeAttempts-1)), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		return fmt.Errorf("gateway unreachable after %d attempts: %w", attempt, err)
	}
	return nil
}
