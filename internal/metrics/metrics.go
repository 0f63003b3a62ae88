package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Registry *prometheus.Registry

	MatchesFormed       *prometheus.CounterVec
	MatchFormationFails *prometheus.CounterVec
	QueueOperations     *prometheus.CounterVec
	Provisioning        *prometheus.CounterVec
	ProvisionLatency    prometheus.Histogram
	Settlements         *prometheus.CounterVec
	AnomalyFlags        *prometheus.CounterVec
	HeartbeatScore      prometheus.Histogram
	BusMessages         *prometheus.CounterVec
	OutboxPublished     prometheus.Counter
	OutboxFailures      prometheus.Counter
}

// New registers every collector on a fresh registry, so tests can build as
// many instances as they like.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		MatchesFormed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "matchcore_matches_formed_total",
			Help: "Matches created by the matchmaker",
		}, []string{"ladder", "region"}),

		MatchFormationFails: f.NewCounterVec(prometheus.CounterOpts{
			Name: "matchcore_match_formation_failures_total",
			Help: "Match formation attempts that created nothing",
		}, []string{"reason"}),

		QueueOperations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "matchcore_queue_operations_total",
			Help: "Queue joins and leaves",
		}, []string{"op", "result"}),

		Provisioning: f.NewCounterVec(prometheus.CounterOpts{
			Name: "matchcore_provisioning_total",
			Help: "Provisioning outcomes",
		}, []string{"result"}),

		ProvisionLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "matchcore_provision_latency_seconds",
			Help:    "Time spent in the compute provider create call",
			Buckets: prometheus.DefBuckets,
		}),

		Settlements: f.NewCounterVec(prometheus.CounterOpts{
			Name: "matchcore_settlements_total",
			Help: "Settlement outcomes per match.completed delivery",
		}, []string{"result"}),

		AnomalyFlags: f.NewCounterVec(prometheus.CounterOpts{
			Name: "matchcore_anomaly_flags_total",
			Help: "Anomaly flags written",
		}, []string{"label"}),

		HeartbeatScore: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "matchcore_heartbeat_score",
			Help:    "Anti-cheat heartbeat scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),

		BusMessages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "matchcore_bus_messages_total",
			Help: "Bus deliveries by topic and outcome",
		}, []string{"topic", "outcome"}),

		OutboxPublished: f.NewCounter(prometheus.CounterOpts{
			Name: "matchcore_outbox_published_total",
			Help: "Outbox rows published to the bus",
		}),

		OutboxFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "matchcore_outbox_failures_total",
			Help: "Outbox publish attempts that failed",
		}),
	}
}
