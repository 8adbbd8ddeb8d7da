package observability

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/api/health", "200", time.Millisecond)
	m.IncSearch("exact")
	m.IncFallback("default_style")
	m.ObserveExternal("graph", "match", "ok", time.Millisecond)
	m.ApiInflightInc()
	m.ApiInflightDec()
	assert.Nil(t, m.Registry())
}

func TestMetricsInstancesDoNotShareRegistries(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.IncSearch("partial")
	a.IncSearch("partial")
	b.IncSearch("partial")

	assert.Equal(t, 2.0, testutil.ToFloat64(a.searches.WithLabelValues("partial")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.searches.WithLabelValues("partial")))
}

func TestMetricsHandlerExposesCounters(t *testing.T) {
	m := NewMetrics()
	m.IncFallback("filter_fail_open")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `outfitmatch_fallbacks_total{kind="filter_fail_open"} 1`))
}

func TestParseHeaders(t *testing.T) {
	h := ParseHeaders("api-key=abc, x-team = fashion ,broken")
	assert.Equal(t, map[string]string{"api-key": "abc", "x-team": "fashion"}, h)
	assert.Nil(t, ParseHeaders(" "))
}
