package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestHandlerExposesSyncAndRuntimeMetrics(t *testing.T) {
	m := NewMetrics()
	_ = m.Sync().Track("delta").End(errors.New("boom"))
	m.Sync().ObservePath("direct", "transport")

	body := scrape(t, m)
	assert.Contains(t, body, `stocksync_sync_runs_total{status="failure",workflow="delta"} 1`)
	assert.Contains(t, body, `stocksync_sync_failures_total{workflow="delta"} 1`)
	assert.Contains(t, body, `stocksync_gateway_path_total{outcome="transport",path="direct"} 1`)
	assert.Contains(t, body, "go_goroutines")
	assert.Contains(t, body, "promhttp_metric_handler_requests_total")
}

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	m := NewMetrics()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Post("/sync/export/{itemID}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/sync/export/item-42", nil))
	require.Equal(t, http.StatusAccepted, rr.Code)

	body := scrape(t, m)
	assert.Contains(t, body, `stocksync_http_requests_total{code="202",method="POST",route="/sync/export/{itemID}"} 1`)
	assert.Contains(t, body, `stocksync_http_request_duration_seconds_count{route="/sync/export/{itemID}"} 1`)
	assert.Contains(t, body, "stocksync_http_requests_in_flight 0")
	assert.NotContains(t, body, "item-42")
}

func TestMiddlewareWithoutRouteContext(t *testing.T) {
	m := NewMetrics()
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/anything", nil).WithContext(context.Background())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	assert.Contains(t, scrape(t, m), `stocksync_http_requests_total{code="418",method="GET",route="unmatched"} 1`)
}

func TestNilMetricsDegradeGracefully(t *testing.T) {
	var m *Metrics
	assert.Nil(t, m.Sync())

	called := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })
	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
