// Package adapter implements the Tool Adapter Clients: thin HTTP wrappers
// around the terraform/kubernetes/helm/fs/generator/state tool services the
// engine delegates to. The engine itself never shells out to these tools.
package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

const (
	// probeTimeout bounds health-check style calls, kept short so a dead
	// tool service is detected without blocking a caller's request budget.
	probeTimeout = 5 * time.Second

	// operationTimeout bounds plan/apply/destroy calls, which may run real
	// provisioning work on the other side of the adapter.
	operationTimeout = 2 * time.Minute

	breakerMaxFailures  = 5
	breakerOpenInterval = 60 * time.Second
	breakerOpenTimeout  = 30 * time.Second
)

// Client is a base HTTP client for one tool adapter, circuit-broken per
// base URL so a stalled tool service fails fast instead of exhausting every
// retry attempt on socket timeouts.
type Client struct {
	baseURL      string
	probeClient  *http.Client
	opClient     *http.Client
	breaker      *gobreaker.CircuitBreaker
}

// NewClient builds a Tool Adapter Client for the given base URL.
func NewClient(name, baseURL string) *Client {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    breakerOpenInterval,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerMaxFailures
		},
	}

	return &Client{
		baseURL:     baseURL,
		probeClient: &http.Client{Timeout: probeTimeout},
		opClient:    &http.Client{Timeout: operationTimeout},
		breaker:     gobreaker.NewCircuitBreaker(settings),
	}
}

// Probe checks the adapter's /health endpoint using the short-timeout client.
func (c *Client) Probe(ctx context.Context) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.probeClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("adapter %s unhealthy: %d", c.baseURL, resp.StatusCode)
		}
		return nil, nil
	})
	return err
}

// doJSON POSTs req as JSON to path and decodes the response into out,
// running the round trip through the circuit breaker.
func (c *Client) doJSON(ctx context.Context, path string, req interface{}, out interface{}) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		body, err := json.Marshal(req)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.opClient.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("adapter request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			return nil, fmt.Errorf("adapter %s returned %d: %s", c.baseURL, resp.StatusCode, string(respBody))
		}

		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return nil, fmt.Errorf("failed to decode adapter response: %w", err)
			}
		}
		return nil, nil
	})
	return err
}
