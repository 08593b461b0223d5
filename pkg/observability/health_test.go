package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error { return nil }

func TestHealthChecker_Status(t *testing.T) {
	down := errors.New("connection refused")

	tests := []struct {
		name    string
		store   error
		backend error
		want    HealthStatus
	}{
		{"all up", nil, nil, HealthStatusHealthy},
		{"backend down", nil, down, HealthStatusDegraded},
		{"store down", down, nil, HealthStatusUnhealthy},
		{"both down", down, down, HealthStatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker("1.2.3")
			store, backend := tt.store, tt.backend
			hc.RegisterCheck(StoreCheck(func(context.Context) error { return store }))
			hc.RegisterCheck(BackendCheck("model_backend", func(context.Context) error { return backend }))

			resp := hc.Check(context.Background())
			assert.Equal(t, tt.want, resp.Status)
			assert.Equal(t, "1.2.3", resp.Version)
			require.Len(t, resp.Checks, 2)
			assert.True(t, resp.Checks["session_store"].Critical)
			assert.False(t, resp.Checks["model_backend"].Critical)
			if backend != nil {
				assert.Equal(t, "connection refused", resp.Checks["model_backend"].Message)
			}
		})
	}
}

func TestHealthChecker_Timeout(t *testing.T) {
	hc := NewHealthChecker("dev")
	hc.RegisterCheck(&HealthCheck{
		Name:     "slow",
		Timeout:  20 * time.Millisecond,
		Critical: true,
		CheckFunc: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})

	resp := hc.Check(context.Background())
	assert.Equal(t, HealthStatusUnhealthy, resp.Status)
	assert.Contains(t, resp.Checks["slow"].Message, "deadline exceeded")
}

func TestHealthChecker_Names(t *testing.T) {
	hc := NewHealthChecker("dev")
	hc.RegisterCheck(BackendCheck("model_backend", ok))
	hc.RegisterCheck(StoreCheck(ok))
	assert.Equal(t, []string{"model_backend", "session_store"}, hc.Names())

	check := &HealthCheck{Name: "defaulted", CheckFunc: ok}
	hc.RegisterCheck(check)
	assert.Equal(t, 5*time.Second, check.Timeout)
}

func TestHandlers(t *testing.T) {
	up := NewHealthChecker("dev")
	up.RegisterCheck(StoreCheck(ok))
	failing := NewHealthChecker("dev")
	failing.RegisterCheck(StoreCheck(func(context.Context) error { return errors.New("disk full") }))

	tests := []struct {
		name    string
		handler http.HandlerFunc
		code    int
		status  string
	}{
		{"live", LivenessHandler(), http.StatusOK, "alive"},
		{"ready", up.ReadinessHandler(), http.StatusOK, "ready"},
		{"not ready", failing.ReadinessHandler(), http.StatusServiceUnavailable, "not ready"},
		{"health", up.HealthHandler(), http.StatusOK, "healthy"},
		{"unhealthy", failing.HealthHandler(), http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body["status"])
		})
	}
}

func TestServer_Routes(t *testing.T) {
	InitMetrics()
	hc := NewHealthChecker("dev")
	hc.RegisterCheck(StoreCheck(ok))
	srv := NewServer("127.0.0.1:0", hc)

	for _, path := range []string{"/health", "/health/live", "/health/ready", "/metrics"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRecorders(t *testing.T) {
	InitMetrics()

	before := testutil.ToFloat64(turnsTotal.WithLabelValues("irrelevant"))
	RecordTurn(false, 10*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(turnsTotal.WithLabelValues("irrelevant")))

	before = testutil.ToFloat64(storeErrorsTotal.WithLabelValues("save"))
	RecordStoreError("save")
	assert.Equal(t, before+1, testutil.ToFloat64(storeErrorsTotal.WithLabelValues("save")))

	SetCachedSessions(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(cachedSessions))

	AddPoolWaiting(2)
	AddPoolWaiting(-2)
	assert.Equal(t, float64(0), testutil.ToFloat64(poolWaiting))

	before = testutil.ToFloat64(rateLimitedTotal)
	RecordRateLimited()
	assert.Equal(t, before+1, testutil.ToFloat64(rateLimitedTotal))
}
