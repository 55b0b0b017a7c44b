package external

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"airwatch/internal/types"
)

func newTestClient(t *testing.T) *BaseClient {
	t.Helper()
	return NewBaseClient(&http.Client{Timeout: 5 * time.Second}, "test-breaker", "Airwatch-Test/1.0")
}

func mustRequest(t *testing.T, ctx context.Context, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	return req
}

func TestDo_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	resp, err := newTestClient(t).Do(mustRequest(t, context.Background(), server.URL+"/test"))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"status":"ok"}` {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestDo_InjectsTraceIDAndUserAgent(t *testing.T) {
	var receivedTraceID, receivedUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedTraceID = r.Header.Get("X-B3-TraceId")
		receivedUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx := types.WithCycleID(context.Background(), "cycle-abc-123")
	resp, err := newTestClient(t).Do(mustRequest(t, ctx, server.URL))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	resp.Body.Close()

	if receivedTraceID != "cycle-abc-123" {
		t.Errorf("expected trace ID 'cycle-abc-123', got '%s'", receivedTraceID)
	}
	if receivedUA != "Airwatch-Test/1.0" {
		t.Errorf("expected User-Agent 'Airwatch-Test/1.0', got '%s'", receivedUA)
	}
}

func TestDo_ClientErrorReturnedAsIs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	resp, err := newTestClient(t).Do(mustRequest(t, context.Background(), server.URL))
	if err != nil {
		t.Fatalf("expected no error for 403, got: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", resp.StatusCode)
	}
}

func TestDo_DoesNotRetry(t *testing.T) {
	var callCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestClient(t).Do(mustRequest(t, context.Background(), server.URL))
	if err == nil {
		t.Fatal("expected error for 503, got nil")
	}

	if got := callCount.Load(); got != 1 {
		t.Errorf("expected exactly 1 call, got %d", got)
	}
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T: %v", err, err)
	}
	if appErr.Code != types.ErrCodeUpstreamUnavailable {
		t.Errorf("expected error code %s, got %s", types.ErrCodeUpstreamUnavailable, appErr.Code)
	}
	if StatusOf(err) != http.StatusServiceUnavailable {
		t.Errorf("expected status detail 503, got %d", StatusOf(err))
	}
}

func TestDo_429MapsToRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(t).Do(mustRequest(t, context.Background(), server.URL))

	if types.CodeOf(err) != types.ErrCodeUpstreamRateLimited {
		t.Errorf("expected %s, got %s", types.ErrCodeUpstreamRateLimited, types.CodeOf(err))
	}
}

func TestDo_TimeoutMapsToUpstreamTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewBaseClient(&http.Client{Timeout: 50 * time.Millisecond}, "timeout", "")
	_, err := client.Do(mustRequest(t, context.Background(), server.URL))

	if types.CodeOf(err) != types.ErrCodeUpstreamTimeout {
		t.Errorf("expected %s, got %s (%v)", types.ErrCodeUpstreamTimeout, types.CodeOf(err), err)
	}
}

func TestDo_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestClient(t).Do(mustRequest(t, context.Background(), url))

	if types.CodeOf(err) != types.ErrCodeUpstreamUnavailable {
		t.Errorf("expected %s, got %s", types.ErrCodeUpstreamUnavailable, types.CodeOf(err))
	}
}

func TestDo_CircuitBreakerOpensAfterThreshold(t *testing.T) {
	var callCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "test-open",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
	})
	client := NewBaseClientWithBreaker(&http.Client{Timeout: 5 * time.Second}, breaker, "")

	for i := 0; i < 4; i++ {
		_, _ = client.Do(mustRequest(t, context.Background(), server.URL))
	}
	serverCallsBefore := callCount.Load()

	resp, err := client.Do(mustRequest(t, context.Background(), server.URL))
	if resp != nil {
		resp.Body.Close()
		t.Error("expected nil response when circuit breaker is open")
	}
	if err == nil {
		t.Fatal("expected error when circuit breaker is open, got nil")
	}
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected ErrOpenState in chain, got %v", err)
	}
	if types.CodeOf(err) != types.ErrCodeUpstreamUnavailable {
		t.Errorf("expected %s, got %s", types.ErrCodeUpstreamUnavailable, types.CodeOf(err))
	}
	if callCount.Load() != serverCallsBefore {
		t.Errorf("expected no additional server calls when breaker is open")
	}
}
