// Package external provides the anti-corruption layer between airwatch domain
// logic and third-party HTTP APIs. All outbound HTTP calls are routed through
// the BaseClient, which enforces consistent resilience patterns: circuit
// breaking, trace propagation, and error mapping.
//
// The BaseClient never retries. A failed call surfaces immediately and the
// next sampling cycle is the retry.
package external

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"airwatch/internal/types"
)

// DefaultTimeout bounds every outbound call made through NewBaseClient when
// the caller passes a nil http.Client.
const DefaultTimeout = 10 * time.Second

// BaseClient wraps an *http.Client and a circuit breaker. Provider adapters
// (weather, telemetry) share one BaseClient each.
type BaseClient struct {
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[*http.Response]
	userAgent string
}

// NewBaseClient creates a BaseClient with the given http client, circuit
// breaker name and user agent string. A nil httpClient gets DefaultTimeout.
func NewBaseClient(httpClient *http.Client, breakerName string, userAgent string) *BaseClient {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})
	return NewBaseClientWithBreaker(httpClient, cb, userAgent)
}

// NewBaseClientWithBreaker creates a BaseClient with a caller-provided circuit
// breaker. This is useful for testing or when sharing a breaker across clients.
func NewBaseClientWithBreaker(
	httpClient *http.Client,
	breaker *gobreaker.CircuitBreaker[*http.Response],
	userAgent string,
) *BaseClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &BaseClient{
		client:    httpClient,
		breaker:   breaker,
		userAgent: userAgent,
	}
}

// Do executes the HTTP request with:
//  1. Trace ID injection (X-B3-TraceId from the cycle ID in context)
//  2. User-Agent header injection
//  3. Circuit breaker wrapping
//  4. Error mapping to types.AppError
//
// Responses with status below 500 (other than 429) are returned as-is and the
// caller closes the body. 5xx, 429, transport failures and an open breaker
// return a types.AppError with an upstream error code.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	if traceID := types.GetCycleID(req.Context()); traceID != "" {
		req.Header.Set("X-B3-TraceId", traceID)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		r, doErr := c.client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		// 5xx and 429 count against the breaker.
		if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
			return r, fmt.Errorf("upstream returned %d", r.StatusCode)
		}
		return r, nil
	})
	if err == nil {
		return resp, nil
	}

	if resp != nil {
		resp.Body.Close()
	}
	return nil, mapError(resp, err)
}

// mapError translates HTTP-level failures into upstream AppErrors.
func mapError(resp *http.Response, err error) *types.AppError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			"circuit breaker is open; upstream service unavailable",
			err,
		)
	}

	if resp != nil {
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return types.NewAppError(types.ErrCodeUpstreamRateLimited, "upstream rate limit exceeded", err).
				WithDetails(map[string]any{"status": resp.StatusCode})
		case resp.StatusCode >= 500:
			return types.NewAppError(types.ErrCodeUpstreamUnavailable,
				fmt.Sprintf("upstream returned %d", resp.StatusCode), err).
				WithDetails(map[string]any{"status": resp.StatusCode})
		}
	}

	if isTimeout(err) {
		return types.NewAppError(types.ErrCodeUpstreamTimeout, "upstream request timed out", err)
	}

	// Generic transport failure (connection refused, DNS, TLS, reset).
	return types.NewAppError(types.ErrCodeUpstreamUnavailable, "upstream request failed", err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// StatusOf returns the HTTP status recorded on an upstream AppError, or 0.
func StatusOf(err error) int {
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Details == nil {
		return 0
	}
	status, _ := appErr.Details["status"].(int)
	return status
}
