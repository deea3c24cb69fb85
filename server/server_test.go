package server

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fileindex/config"
)

func TestNewLogsRequests(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	app, reg := New(cfg, logger)
	defer reg.Close()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/databases", nil), -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/nowhere", nil), -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	logs := buf.String()
	assert.Contains(t, logs, `"path":"/databases"`)
	assert.Contains(t, logs, `"status":200`)
	assert.Contains(t, logs, `"path":"/nowhere"`)
	assert.Contains(t, logs, `"status":404`)
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.ListenAddr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, cfg, nil)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not shut down")
	}
}
