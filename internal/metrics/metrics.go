package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors of the distributor.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Gateway metrics
	GatewayCallDuration *prometheus.HistogramVec

	// Engine metrics
	Registrations     *prometheus.CounterVec
	SyncRuns          *prometheus.CounterVec
	SyncGroupUpdates  prometheus.Counter
	SyncGroupFailures prometheus.Counter
	CascadeRuns       *prometheus.CounterVec
	GroupsCreated     prometheus.Counter
	BulkGroups        *prometheus.CounterVec
	BulkJobActive     prometheus.Gauge
}

// New registers every collector on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		GatewayCallDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_call_duration_seconds",
				Help:    "Messaging gateway call latency in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
			},
			[]string{"operation", "outcome"},
		),
		Registrations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "distributor_registrations_total",
				Help: "Signups handled by the registrar",
			},
			[]string{"result"},
		),
		SyncRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "distributor_sync_runs_total",
				Help: "Membership sync sweeps",
			},
			[]string{"result"},
		),
		SyncGroupUpdates: f.NewCounter(prometheus.CounterOpts{
			Name: "distributor_sync_group_updates_total",
			Help: "Groups whose cached member count changed during sync",
		}),
		SyncGroupFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "distributor_sync_group_failures_total",
			Help: "Groups that failed to sync",
		}),
		CascadeRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "distributor_cascade_runs_total",
				Help: "Auto-scaling cascade invocations",
			},
			[]string{"result"},
		),
		GroupsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "distributor_groups_created_total",
			Help: "Groups created on the gateway",
		}),
		BulkGroups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "distributor_bulk_groups_total",
				Help: "Groups processed by bulk reconfiguration",
			},
			[]string{"result"},
		),
		BulkJobActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "distributor_bulk_job_active",
			Help: "1 while a bulk reconfiguration job is running",
		}),
	}
}

func (m *Metrics) ObserveHTTP(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func (m *Metrics) ObserveGatewayCall(op string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.GatewayCallDuration.WithLabelValues(op, outcome).Observe(d.Seconds())
}

func (m *Metrics) IncRegistration(result string) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(result).Inc()
}

func (m *Metrics) IncSyncRun(result string) {
	if m == nil {
		return
	}
	m.SyncRuns.WithLabelValues(result).Inc()
}

func (m *Metrics) AddSyncResult(updated, failed int) {
	if m == nil {
		return
	}
	m.SyncGroupUpdates.Add(float64(updated))
	m.SyncGroupFailures.Add(float64(failed))
}

func (m *Metrics) IncCascadeRun(result string) {
	if m == nil {
		return
	}
	m.CascadeRuns.WithLabelValues(result).Inc()
}

func (m *Metrics) IncGroupsCreated() {
	if m == nil {
		return
	}
	m.GroupsCreated.Inc()
}

func (m *Metrics) IncBulkGroup(result string) {
	if m == nil {
		return
	}
	m.BulkGroups.WithLabelValues(result).Inc()
}

func (m *Metrics) SetBulkActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.BulkJobActive.Set(1)
		return
	}
	m.BulkJobActive.Set(0)
}
