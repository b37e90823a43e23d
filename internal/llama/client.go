// Package llama is a client for the DeFi Llama yields API.
package llama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/snowblind5/defi-yield-risk-analyzer/internal/model"
)

// ErrNotFound marks a per-pool miss: a 404, an unrecognizable payload, or an
// empty history. Callers treat it as a pool-scoped failure, never fatal.
var ErrNotFound = errors.New("not found upstream")

// Config holds client settings.
type Config struct {
	YieldsURL    string
	MaxRetries   int
	RetryBackoff time.Duration
	Timeout      time.Duration
}

// Client fetches pool listings and per-pool history with bounded
// retry/backoff. Rate-limit responses and transport failures share the same
// backoff schedule.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// ListPools fetches the full current pool catalog.
func (c *Client) ListPools(ctx context.Context) ([]model.PoolSummary, error) {
	body, err := c.get(ctx, c.cfg.YieldsURL+"/pools")
	if err != nil {
		return nil, fmt.Errorf("fetch pools: %w", err)
	}

	items, err := unwrapData(body)
	if err != nil {
		return nil, fmt.Errorf("parse pools: %w", err)
	}

	var pools []model.PoolSummary
	if err := json.Unmarshal(items, &pools); err != nil {
		return nil, fmt.Errorf("parse pools: %w", err)
	}
	return pools, nil
}

// History fetches the historical chart for one pool. Malformed payloads are
// logged and reported as ErrNotFound so a single bad pool cannot abort a run.
func (c *Client) History(ctx context.Context, externalID string) ([]model.HistoryPoint, error) {
	target := fmt.Sprintf("%s/chart/%s", c.cfg.YieldsURL, url.PathEscape(externalID))
	body, err := c.get(ctx, target)
	if err != nil {
		return nil, err
	}

	items, err := unwrapData(body)
	if err != nil {
		c.logger.Warn("unexpected history payload", zap.String("pool", externalID), zap.Error(err))
		return nil, ErrNotFound
	}

	var points []model.HistoryPoint
	if err := json.Unmarshal(items, &points); err != nil {
		c.logger.Warn("unexpected history payload", zap.String("pool", externalID), zap.Error(err))
		return nil, ErrNotFound
	}
	return points, nil
}

// get performs a GET with a bounded retry loop: delays start at the configured
// backoff and double each attempt. 404 is returned immediately as ErrNotFound.
func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	delay := c.cfg.RetryBackoff

	var lastErr error
	for attempt := 0; ; attempt++ {
		body, err := c.fetchOnce(ctx, target)
		if err == nil {
			return body, nil
		}
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}

		lastErr = err
		if attempt >= c.cfg.MaxRetries {
			return nil, fmt.Errorf("after %d retries: %w", c.cfg.MaxRetries, lastErr)
		}

		c.logger.Warn("request failed, backing off",
			zap.String("url", target),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Bool("rate_limited", isRateLimited(err)),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}

func (c *Client) fetchOnce(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &statusError{code: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &statusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return body, nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

func isRateLimited(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == http.StatusTooManyRequests
}

// unwrapData normalizes the two upstream payload shapes: a bare array, or an
// object wrapping the array under a "data" key.
func unwrapData(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.RawMessage(trimmed), nil
	}

	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, err
	}
	if len(wrapper.Data) == 0 {
		return nil, fmt.Errorf("payload has no data array")
	}
	return wrapper.Data, nil
}
