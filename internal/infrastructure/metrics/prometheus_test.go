package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_CountsOutcomes(t *testing.T) {
	rec, err := NewRecorder(prometheus.NewRegistry())
	require.NoError(t, err)

	rec.ObserveDecision("view_company", true)
	rec.ObserveDecision("view_company", true)
	rec.ObserveDecision("delete_sale", false)
	rec.ObserveProvisioning("company", nil)
	rec.ObserveProvisioning("sale", errors.New("boom"))

	assert.InDelta(t, 2, testutil.ToFloat64(rec.decisions.WithLabelValues("view_company", "allowed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(rec.decisions.WithLabelValues("delete_sale", "denied")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(rec.provisioning.WithLabelValues("company", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(rec.provisioning.WithLabelValues("sale", "error")), 0)
}

func TestRecorder_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewRecorder(reg)
	require.NoError(t, err)
	second, err := NewRecorder(reg)
	require.NoError(t, err)

	first.ObserveDecision("view_media", true)
	second.ObserveDecision("view_media", true)
	assert.InDelta(t, 2, testutil.ToFloat64(first.decisions.WithLabelValues("view_media", "allowed")), 0)
}

func TestRecorder_Handler(t *testing.T) {
	rec, err := NewRecorder(nil)
	require.NoError(t, err)
	rec.ObserveDecision("change_group", false)

	srv := httptest.NewServer(rec.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `accountx_permission_decisions_total{outcome="denied",permission="change_group"} 1`)
}
