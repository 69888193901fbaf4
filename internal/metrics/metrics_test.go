package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Gatherer().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	metrics:
		for _, metric := range f.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metrics
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}

func TestRecorders(t *testing.T) {
	m := New()
	m.AuthEvent("login", OutcomeSuccess)
	m.AuthEvent("login", OutcomeSuccess)
	m.AuthEvent("login", OutcomeFailure)
	m.Transaction("MOBILE_CHECKOUT", "INITIATED")
	m.Callback("africas_talking", "confirmation", OutcomeDropped)

	assert.Equal(t, 2.0, counterValue(t, m, "auth_events_total", map[string]string{"event": "login", "outcome": "success"}))
	assert.Equal(t, 1.0, counterValue(t, m, "auth_events_total", map[string]string{"event": "login", "outcome": "failure"}))
	assert.Equal(t, 1.0, counterValue(t, m, "payment_transactions_total", map[string]string{"type": "MOBILE_CHECKOUT"}))
	assert.Equal(t, 1.0, counterValue(t, m, "payment_callbacks_total", map[string]string{"outcome": "dropped"}))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.AuthEvent("login", OutcomeSuccess)
	m.Transaction("x", "y")
	m.Callback("a", "b", "c")

	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	rec := httptest.NewRecorder()
	m.Instrument(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestInstrumentUsesRouteTemplate(t *testing.T) {
	m := New()
	r := mux.NewRouter()
	r.Use(m.Instrument)
	r.HandleFunc("/{provider}/confirm_payment", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/daraja/confirm_payment", nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, 1.0, counterValue(t, m, "http_requests_total",
		map[string]string{"path": "/{provider}/confirm_payment", "status": "201"}))

	out := httptest.NewRecorder()
	m.Handler().ServeHTTP(out, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.True(t, strings.Contains(out.Body.String(), "http_requests_total"))
}
