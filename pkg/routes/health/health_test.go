package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error { return nil }

func serve(t *testing.T, checker *Checker, path string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	checker.RegisterRoutes(e)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		rec := serve(t, NewChecker(PingFunc(ok), PingFunc(ok), "1.0.0"), "/api/v1/health")
		require.Equal(t, http.StatusOK, rec.Code)

		var status HealthStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, "healthy", status.Status)
		assert.Equal(t, "1.0.0", status.Version)
		assert.Equal(t, "healthy", status.Checks["database"].Status)
		assert.Equal(t, "healthy", status.Checks["redis"].Status)
	})

	t.Run("database down", func(t *testing.T) {
		down := PingFunc(func(context.Context) error { return errors.New("connection refused") })
		rec := serve(t, NewChecker(down, nil, "1.0.0"), "/api/v1/health")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var status HealthStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, "unhealthy", status.Status)
		assert.Equal(t, "connection refused", status.Checks["database"].Message)
		assert.NotContains(t, status.Checks, "redis")
	})
}

func TestLiveAndReady(t *testing.T) {
	checker := NewChecker(PingFunc(ok), nil, "dev")

	assert.Equal(t, http.StatusOK, serve(t, checker, "/api/v1/health/live").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, checker, "/api/v1/health/ready").Code)

	checker.SetReady(true)
	assert.Equal(t, http.StatusOK, serve(t, checker, "/api/v1/health/ready").Code)
}

func TestMetrics(t *testing.T) {
	rec := serve(t, NewChecker(PingFunc(ok), nil, "dev"), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}
