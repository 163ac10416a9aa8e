package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.ObserveIngest("user", "create", "accepted", time.Now())
	m.ObserveIngest("user", "create", "rejected", time.Now())
	m.ObserveIngest("user", "create", "accepted", time.Now())
	m.ObserveChangeSet("user", "update", 3)
	m.IncrementStoreError("group", "update")
	m.IncrementReload("ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.IngestTotal.WithLabelValues("user", "create", "accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IngestTotal.WithLabelValues("user", "create", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreErrors.WithLabelValues("group", "update")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CatalogReloads.WithLabelValues("ok")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ChangeSetSize))
	assert.Equal(t, 1, testutil.CollectAndCount(m.IngestDuration))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveIngest("user", "create", "accepted", time.Now())
		m.ObserveChangeSet("user", "create", 1)
		m.IncrementStoreError("user", "create")
		m.IncrementReload("failed")
	})
}
