package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMetrics_Counters(t *testing.T) {
	m := New(nil)

	m.Lookup("flightview", "found")
	m.Lookup("flightview", "found")
	m.Lookup("flightstats", "error")
	m.Row("updated")
	m.ObserveList(1500 * time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, `jcsy_lookups_total{result="found",source="flightview"} 2`)
	assert.Contains(t, body, `jcsy_lookups_total{result="error",source="flightstats"} 1`)
	assert.Contains(t, body, `jcsy_rows_processed_total{status="updated"} 1`)
	assert.Contains(t, body, `jcsy_list_process_seconds_count 1`)
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Lookup("flightview", "found")
		m.Row("error")
		m.ObserveList(time.Second)
	})
}
