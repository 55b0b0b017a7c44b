package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airwatch/internal/api"
	"airwatch/internal/state"
)

func TestServe_ServesUntilCancelled(t *testing.T) {
	srv, err := api.NewServer(state.NewFileStore(filepath.Join(t.TempDir(), "current_state.json")),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	srv.MountRoutes()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, srv.Handler(), ln, slog.New(slog.NewTextHandler(io.Discard, nil))) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/current")
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "No Data", body["status"])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRun_MissingSettingsFails(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("APP_ENV", "local")
	t.Setenv("STATE_PATH", filepath.Join(dir, "current_state.json"))

	var out bytes.Buffer
	code := run(context.Background(), []string{"-config", filepath.Join(dir, "missing.json")}, &out)

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "failed to load settings")
}

func TestRun_StopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("APP_ENV", "local")
	t.Setenv("STATE_PATH", filepath.Join(dir, "current_state.json"))
	t.Setenv("PORT", "0")
	settings := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(settings,
		[]byte(`{"device_name":"lab-1","data_file":"data.csv"}`), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() { done <- run(ctx, []string{"-config", settings}, io.Discard) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case code := <-done:
		assert.Equal(t, 0, code)
	case <-time.After(5 * time.Second):
		t.Fatal("dashboard did not stop")
	}
}
