package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catnotif_outbox_events_total",
			Help: "Outbox event lifecycle counter by stage",
		},
		[]string{"stage"}, // published|publish_failed|state_write_failed|pruned|dlq_migrated|archived|firehose_dropped
	)

	RelayCycleSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catnotif_relay_cycle_seconds",
			Help:    "Wall time of one relay poll cycle across all tenants",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		EventsTotal,
		RelayCycleSeconds,
	)
}
