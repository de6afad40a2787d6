package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CacheLookup(true)
		m.ProviderRequest("textsearch", "ok", time.Millisecond)
		m.RecordCreated()
		m.EnrichmentFailed()
		m.Classification("completed")
		m.QueueDepth(3)
		m.SearchUpdate("local")
		m.StaleDropped()
	})
}

func TestCountersAccumulate(t *testing.T) {
	m := New(nil)

	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)
	m.ProviderRequest("details", "denied", 20*time.Millisecond)
	m.Classification("failed")
	m.QueueDepth(4)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerRequests.WithLabelValues("details", "denied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.classifications.WithLabelValues("failed")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.queueDepth))
}

func TestRegistersWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.RecordCreated()
	m.SearchUpdate("external")

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["placefinder_enrichment_records_created_total"])
	assert.True(t, names["placefinder_search_updates_total"])
}
