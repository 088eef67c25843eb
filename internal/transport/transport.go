// Package transport is the shared HTTP layer for all upstream sources:
// JSON GET for REST endpoints and JSON POST for query-language endpoints.
// Requests retry with backoff and run behind a per-host circuit breaker.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/PAYCY-LLC/xrates-kit-go/internal/httputil"
)

// Error carries a non-2xx upstream response. It is surfaced to the
// caller as-is; no retry happens above this layer.
type Error struct {
	Status int
	Body   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Body)
}

type Client struct {
	httpClient *http.Client
	retry      httputil.RetryConfig
	breaker    *gobreaker.CircuitBreaker
	log        *zap.SugaredLogger
}

// New builds a transport for one upstream host. The name tags breaker
// state changes in the log.
func New(name string, timeout time.Duration, log *zap.SugaredLogger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Infof("[TRANSPORT] %s breaker %s -> %s", name, from, to)
		},
	})
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			MaxDelay:    10 * time.Second,
			Log:         log,
		},
		breaker: breaker,
		log:     log,
	}
}

// GetJSON fetches url and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	return c.do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}, out)
}

// PostJSON marshals payload, posts it to url and decodes the JSON body
// into out.
func (c *Client) PostJSON(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, out)
}

func (c *Client) do(ctx context.Context, buildReq func() (*http.Request, error), out any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		resp, err := httputil.Do(ctx, c.httpClient, c.retry, buildReq)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, &Error{Status: resp.StatusCode, Body: string(body)}
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		return nil, nil
	})
	return err
}
