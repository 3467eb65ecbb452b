// Package codeforces implements the Codeforces API client.
// This package handles all communication with the Codeforces platform:
// profile snapshots, rating history and submission history.
//
// The public API tolerates roughly one request per two seconds per
// client, so every outbound request is paced through a single
// per-client minimum interval. The client itself never retries; callers
// decide what a failed cycle means.
package codeforces

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cf-hub/progress-tracker/internal/domain/student"
	"github.com/cf-hub/progress-tracker/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the Codeforces API client.
type ClientConfig struct {
	// BaseURL is the API base URL, e.g. "https://codeforces.com/api"
	BaseURL string

	// MinInterval is the minimum time between the start of two
	// consecutive requests issued by this client
	MinInterval time.Duration

	// SubmissionPageSize is how many recent submissions user.status
	// fetches per student
	SubmissionPageSize int

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// Logger for structured logging
	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:            baseURL,
		MinInterval:        2 * time.Second,
		SubmissionPageSize: 1000,
		Timeout:            30 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the Codeforces API client.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
	breaker    *circuitbreaker.CircuitBreaker
	mapper     *Mapper

	// Pacing state. lastRequest is the reserved start time of the most
	// recently admitted request; it belongs to this client instance,
	// not to the process.
	mu          sync.Mutex
	lastRequest time.Time
}

// NewClient creates a new Codeforces API client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.MinInterval <= 0 {
		config.MinInterval = 2 * time.Second
	}
	if config.SubmissionPageSize <= 0 {
		config.SubmissionPageSize = 1000
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	c := &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: config.Logger,
		mapper: NewMapper(),
	}

	c.breaker = circuitbreaker.New(
		"codeforces-api",
		circuitbreaker.WithFailureThreshold(3),
		circuitbreaker.WithSuccessThreshold(2),
		circuitbreaker.WithTimeout(60*time.Second),
		// Only infrastructure failures should trip the breaker; a
		// missing handle is a healthy upstream saying no.
		circuitbreaker.WithIsFailure(IsTransient),
		circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
			config.Logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		}),
	)

	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// FetchIdentity fetches the profile snapshot for a handle via user.info.
// An unknown handle yields a NotFoundError.
func (c *Client) FetchIdentity(ctx context.Context, handle student.Handle) (student.Identity, error) {
	params := url.Values{}
	params.Set("handles", handle.String())

	var users []UserDTO
	if err := c.call(ctx, "user.info", params, &users); err != nil {
		return student.Identity{}, fmt.Errorf("fetch identity %s: %w", handle, err)
	}

	if len(users) == 0 {
		return student.Identity{}, &NotFoundError{Handle: handle.String()}
	}

	return c.mapper.IdentityFromDTO(users[0]), nil
}

// FetchContestHistory fetches the full rated contest history for a
// handle via user.rating, oldest first as the API returns it.
func (c *Client) FetchContestHistory(ctx context.Context, handle student.Handle) ([]student.ContestResult, error) {
	params := url.Values{}
	params.Set("handle", handle.String())

	var changes []RatingChangeDTO
	if err := c.call(ctx, "user.rating", params, &changes); err != nil {
		return nil, fmt.Errorf("fetch contest history %s: %w", handle, err)
	}

	return c.mapper.ContestsFromDTO(changes), nil
}

// FetchSubmissions fetches the most recent submissions for a handle via
// user.status. The page size comes from configuration.
func (c *Client) FetchSubmissions(ctx context.Context, handle student.Handle) ([]student.Submission, error) {
	params := url.Values{}
	params.Set("handle", handle.String())
	params.Set("from", "1")
	params.Set("count", strconv.Itoa(c.config.SubmissionPageSize))

	var subs []SubmissionDTO
	if err := c.call(ctx, "user.status", params, &subs); err != nil {
		return nil, fmt.Errorf("fetch submissions %s: %w", handle, err)
	}

	return c.mapper.SubmissionsFromDTO(subs), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// call performs one paced request through the circuit breaker and
// decodes the result payload into result. No retries happen here.
func (c *Client) call(ctx context.Context, method string, params url.Values, result any) error {
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.doOnce(ctx, method, params, result)
	})

	// An open circuit is a transient condition: skip this cycle, the
	// breaker will let a probe through later.
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return &TransientError{Err: err}
	}
	return err
}

// doOnce waits for its pacing slot and performs a single HTTP request.
func (c *Client) doOnce(ctx context.Context, method string, params url.Values, result any) error {
	if err := c.waitTurn(ctx); err != nil {
		return err
	}

	fullURL := strings.TrimRight(c.config.BaseURL, "/") + "/" + method
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("codeforces api request", "method", method)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransientError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransientError{Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return &TransientError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("upstream returned status %d", resp.StatusCode),
		}
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return &ValidationError{Message: "malformed envelope", Err: err}
	}

	if env.Status != statusOK {
		if strings.Contains(strings.ToLower(env.Comment), "not found") {
			handle := params.Get("handle")
			if handle == "" {
				handle = params.Get("handles")
			}
			return &NotFoundError{Handle: handle}
		}
		return &APIError{Comment: env.Comment}
	}

	if result != nil {
		if err := json.Unmarshal(env.Result, result); err != nil {
			return &ValidationError{Message: "malformed result payload", Err: err}
		}
	}

	return nil
}

// waitTurn reserves the next pacing slot and sleeps until it arrives.
// The reservation happens under the lock; the sleep does not, so
// concurrent callers queue up on successive slots instead of
// serializing their whole requests.
func (c *Client) waitTurn(ctx context.Context) error {
	c.mu.Lock()
	now := time.Now()
	slot := now
	if !c.lastRequest.IsZero() {
		if earliest := c.lastRequest.Add(c.config.MinInterval); earliest.After(now) {
			slot = earliest
		}
	}
	prev := c.lastRequest
	c.lastRequest = slot
	c.mu.Unlock()

	// Defensive assertion, unreachable unless the bookkeeping above
	// regresses.
	if !prev.IsZero() && slot.Sub(prev) < c.config.MinInterval {
		return ErrRateLimitViolation
	}

	if wait := time.Until(slot); wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH AND STATUS
// ══════════════════════════════════════════════════════════════════════════════

// BreakerState returns the current circuit breaker state, for status
// reporting.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}

// Reset clears the circuit breaker and the pacing state.
func (c *Client) Reset() {
	c.breaker.Reset()
	c.mu.Lock()
	c.lastRequest = time.Time{}
	c.mu.Unlock()
}
