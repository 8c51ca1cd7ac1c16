package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialogueMetrics(t *testing.T) {
	var m Dialogue

	m.Transition("idle", "general_query")
	assert.Equal(t, 1.0, testutil.ToFloat64(transitionsTotal.WithLabelValues("idle", "general_query")))

	before := testutil.ToFloat64(overridesTotal)
	m.Override()
	assert.Equal(t, before+1, testutil.ToFloat64(overridesTotal))

	m.Stale("load_cases")
	assert.Equal(t, 1.0, testutil.ToFloat64(staleResultsTotal.WithLabelValues("load_cases")))
}

func TestGatewayCallStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status string
	}{
		{"success", nil, "success"},
		{"failure", errors.New("boom"), "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Dialogue{}.GatewayCall("case_directory_"+tt.name, 20*time.Millisecond, tt.err)
			count := testutil.ToFloat64(gatewayCallsTotal.WithLabelValues("case_directory_"+tt.name, tt.status))
			assert.Equal(t, 1.0, count)
		})
	}
}

func TestSessionGauge(t *testing.T) {
	before := testutil.ToFloat64(activeSessions)
	SessionOpened()
	SessionOpened()
	SessionClosed()
	assert.Equal(t, before+1, testutil.ToFloat64(activeSessions))
	SessionClosed()
}

func TestHTTPMetricsUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(HTTPMetrics)
	r.Get("/api/assistant/sessions/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/assistant/sessions/abc", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTeapot, rec.Code)

	count := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/api/assistant/sessions/{id}", "GET", "418"))
	assert.Equal(t, 1.0, count)
}
