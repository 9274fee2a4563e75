package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncRegistration("created")
	m.IncRegistration("created")
	m.IncRegistration("already_registered")
	m.AddSyncResult(3, 1)
	m.ObserveGatewayCall("get_group_info", errors.New("boom"), 20*time.Millisecond)
	m.SetBulkActive(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Registrations.WithLabelValues("created")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SyncGroupUpdates))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncGroupFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BulkJobActive))
	assert.Equal(t, 1, testutil.CollectAndCount(m.GatewayCallDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncRegistration("created")
		m.IncCascadeRun("ran")
		m.ObserveHTTP("GET", "/healthz", "200", time.Millisecond)
		m.SetBulkActive(false)
	})
}
