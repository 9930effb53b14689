package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedwagon-io/wificonnector/internal/lib/logger/sl"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthAggregatesComponents(t *testing.T) {
	s := NewServer(sl.Discard(), ":0")
	s.AddChecker(NewStoreHealthChecker(func(context.Context) error { return nil }))
	s.AddChecker(NewBufferHealthChecker(func(context.Context) (int64, error) { return 5000, nil }))

	rec := get(t, s.Router(), "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, StatusDegraded, resp.Status)
	require.Len(t, resp.Components, 2)
	assert.Equal(t, "store", resp.Components[0].Name)
	assert.Equal(t, StatusHealthy, resp.Components[0].Status)
	assert.Equal(t, "high buffer count: 5000", resp.Components[1].Message)
}

func TestHealthUnhealthy(t *testing.T) {
	s := NewServer(sl.Discard(), ":0")
	s.AddChecker(NewBufferHealthChecker(func(context.Context) (int64, error) { return 0, errors.New("db locked") }))

	assert.Equal(t, http.StatusServiceUnavailable, get(t, s.Router(), "/health").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, s.Router(), "/ready").Code)
	assert.Equal(t, http.StatusOK, get(t, s.Router(), "/live").Code)
}

func TestStoreCheckerDegrades(t *testing.T) {
	c := NewStoreHealthChecker(func(context.Context) error { return errors.New("timeout") })
	status, msg := c.Check(context.Background())
	assert.Equal(t, StatusDegraded, status)
	assert.Equal(t, "timeout", msg)
}

func TestCycleHealthChecker(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var last time.Time

	c := NewCycleHealthChecker(func() time.Time { return last }, 3*time.Minute)
	c.now = func() time.Time { return now }

	status, _ := c.Check(context.Background())
	assert.Equal(t, StatusDegraded, status)

	last = now.Add(-time.Minute)
	status, _ = c.Check(context.Background())
	assert.Equal(t, StatusHealthy, status)

	last = now.Add(-10 * time.Minute)
	status, msg := c.Check(context.Background())
	assert.Equal(t, StatusDegraded, status)
	assert.Contains(t, msg, "10m0s")
}

func TestMetricsRoute(t *testing.T) {
	s := NewServer(sl.Discard(), ":0", WithMetrics(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("metric 1\n"))
	})))

	rec := get(t, s.Router(), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "metric 1\n", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, get(t, NewServer(sl.Discard(), ":0").Router(), "/metrics").Code)
}
