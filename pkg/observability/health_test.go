package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthRegistry_OverallStatus(t *testing.T) {
	r := NewHealthRegistry()
	r.Register("database", PingChecker("database", true, func(context.Context) error { return nil }))
	r.Register("redis", PingChecker("redis", false, func(context.Context) error { return errors.New("refused") }))

	health := r.GetOverallHealth(context.Background())
	assert.Equal(t, HealthStatusDegraded, health.Status)
	assert.Equal(t, HealthStatusHealthy, health.Checks["database"].Status)
	assert.Contains(t, health.Checks["redis"].Message, "refused")

	r.Register("worker", RunningChecker("sync worker", func() bool { return false }))
	assert.Equal(t, HealthStatusUnhealthy, r.GetOverallHealth(context.Background()).Status)
}

func TestReadyHandler(t *testing.T) {
	r := NewHealthRegistry()
	up := true
	r.Register("database", PingChecker("database", true, func(context.Context) error {
		if up {
			return nil
		}
		return errors.New("down")
	}))

	rec := httptest.NewRecorder()
	r.ReadyHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	up = false
	rec = httptest.NewRecorder()
	r.ReadyHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	LiveHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHealthRegistry_CheckTimeout(t *testing.T) {
	r := NewHealthRegistry()
	r.timeout = 10 * time.Millisecond
	r.Register("redis", PingChecker("redis", false, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	health := r.GetOverallHealth(context.Background())
	assert.Equal(t, HealthStatusDegraded, health.Status)
	assert.Contains(t, health.Checks["redis"].Message, "deadline exceeded")
}

func TestHealthRegistry_Empty(t *testing.T) {
	health := NewHealthRegistry().GetOverallHealth(context.Background())
	assert.Equal(t, HealthStatusHealthy, health.Status)
	assert.Empty(t, health.Checks)
}
