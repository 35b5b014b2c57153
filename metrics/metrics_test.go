package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, reg *prometheus.Registry, name string) []*dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()
		}
	}
	t.Fatalf("metric %s not found", name)
	return nil
}

func TestCollector_IssueCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.IssueCreated("high")
	c.IssueCreated("high")
	c.IssueCreated("low")
	c.IssueResolved()
	c.XPAwarded(200)
	c.XPAwarded(200)
	c.ResolveConflict()

	created := gather(t, reg, "civichero_issues_created_total")
	require.Len(t, created, 2)
	bySeverity := map[string]float64{}
	for _, m := range created {
		bySeverity[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
	}
	assert.Equal(t, map[string]float64{"high": 2, "low": 1}, bySeverity)

	assert.Equal(t, 1.0, gather(t, reg, "civichero_issues_resolved_total")[0].GetCounter().GetValue())
	assert.Equal(t, 400.0, gather(t, reg, "civichero_xp_awarded_total")[0].GetCounter().GetValue())
	assert.Equal(t, 1.0, gather(t, reg, "civichero_resolve_conflicts_total")[0].GetCounter().GetValue())
}

func TestCollector_ObserveRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveRequest("GET", "/api/issues", 200, 15*time.Millisecond)

	reqs := gather(t, reg, "civichero_http_requests_total")
	require.Len(t, reqs, 1)
	assert.Equal(t, 1.0, reqs[0].GetCounter().GetValue())

	lat := gather(t, reg, "civichero_http_request_duration_seconds")
	require.Len(t, lat, 1)
	assert.Equal(t, uint64(1), lat[0].GetHistogram().GetSampleCount())
}

func TestHandler_ServesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg).IssueResolved()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), "civichero_issues_resolved_total 1")
}
