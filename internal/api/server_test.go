package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type stubProvider struct {
	running     bool
	hasPosition bool
	lastCheck   time.Time
	uptime      time.Duration
}

func (s *stubProvider) IsRunning() bool       { return s.running }
func (s *stubProvider) HasPosition() bool     { return s.hasPosition }
func (s *stubProvider) LastCheck() time.Time  { return s.lastCheck }
func (s *stubProvider) Uptime() time.Duration { return s.uptime }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv, err := NewServer(Config{Port: 8080, Logger: &mockLogger{}})
	require.NoError(t, err)
	return srv
}

func doGet(t *testing.T, handler http.Handler, path string) (int, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	handler.ServeHTTP(rec, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestNewServerValidation(t *testing.T) {
	_, err := NewServer(Config{Port: 8080})
	assert.Error(t, err, "nil logger must be rejected")

	_, err = NewServer(Config{Port: 0, Logger: &mockLogger{}})
	assert.Error(t, err, "zero port must be rejected")
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()

	// Before the worker exists the endpoint still answers, but inactive
	code, body := doGet(t, handler, "/")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, false, body["bot_active"])
	assert.NotEmpty(t, body["timestamp"])

	srv.SetProvider(&stubProvider{running: true})
	code, body = doGet(t, handler, "/")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["bot_active"])
}

func TestStatusEndpointBeforeInit(t *testing.T) {
	srv := newTestServer(t)

	code, body := doGet(t, srv.Handler(), "/status")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "bot not initialized", body["error"])
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t)
	lastCheck := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	srv.SetProvider(&stubProvider{
		running:     true,
		hasPosition: true,
		lastCheck:   lastCheck,
		uptime:      90 * time.Second,
	})

	code, body := doGet(t, srv.Handler(), "/status")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["is_running"])
	assert.Equal(t, true, body["has_position"])
	assert.Equal(t, "2025-06-01T12:00:00Z", body["last_check"])
	assert.Equal(t, 90.0, body["uptime_seconds"])
}

func TestStatusEndpointZeroLastCheck(t *testing.T) {
	srv := newTestServer(t)
	srv.SetProvider(&stubProvider{running: true})

	code, body := doGet(t, srv.Handler(), "/status")
	assert.Equal(t, http.StatusOK, code)
	assert.Nil(t, body["last_check"], "no cycle yet must serialize as null")
}
