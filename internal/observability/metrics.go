// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Cycle metrics
	CyclesTotal          *prometheus.CounterVec
	CycleDuration        prometheus.Histogram
	CycleTriggers        *prometheus.CounterVec
	LastSuccessfulCycle  prometheus.Gauge
	WeightSum            prometheus.Gauge
	ParticipantsRewarded prometheus.Gauge

	// Campaign metrics
	CampaignsFetched   prometheus.Gauge
	CampaignsEligible  prometheus.Gauge
	CampaignsEvaluated prometheus.Counter
	SnapshotsReused    prometheus.Counter
	CampaignsSkipped   *prometheus.CounterVec

	// Publisher metrics
	PublisherFetchErrors prometheus.Counter

	// Storage metrics
	SnapshotWrites     prometheus.Counter
	CorruptSnapshots   prometheus.Counter
	AuditAppendErrors  prometheus.Counter
	AuditRecordsStored prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "reward_engine"
	}

	return &Metrics{
		// Cycle metrics
		CyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "runs_total",
			Help:      "Total number of reward cycles by status",
		}, []string{"status"}),
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "duration_seconds",
			Help:      "Reward cycle execution duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		CycleTriggers: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "triggers_total",
			Help:      "Total number of cycle triggers by source",
		}, []string{"source"}),
		LastSuccessfulCycle: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "last_successful_timestamp",
			Help:      "Unix timestamp of last successful reward cycle",
		}),
		WeightSum: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "weight_sum",
			Help:      "Sum of the final weight vector from the last cycle",
		}),
		ParticipantsRewarded: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "participants_rewarded",
			Help:      "Number of participants with nonzero weight in the last cycle",
		}),

		// Campaign metrics
		CampaignsFetched: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "campaigns",
			Name:      "fetched",
			Help:      "Number of campaigns returned by the publisher in the last cycle",
		}),
		CampaignsEligible: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "campaigns",
			Name:      "eligible",
			Help:      "Number of campaigns inside the reward window in the last cycle",
		}),
		CampaignsEvaluated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "campaigns",
			Name:      "evaluated_total",
			Help:      "Total number of campaigns evaluated (fresh snapshots created)",
		}),
		SnapshotsReused: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "campaigns",
			Name:      "snapshots_reused_total",
			Help:      "Total number of cycles that reused an existing snapshot",
		}),
		CampaignsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "campaigns",
			Name:      "skipped_total",
			Help:      "Total number of campaigns skipped by reason",
		}, []string{"reason"}),

		// Publisher metrics
		PublisherFetchErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publisher",
			Name:      "fetch_errors_total",
			Help:      "Total number of failed campaign fetches",
		}),

		// Storage metrics
		SnapshotWrites: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "snapshot_writes_total",
			Help:      "Total number of snapshots persisted",
		}),
		CorruptSnapshots: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "corrupt_snapshots_total",
			Help:      "Total number of corrupt snapshots detected and replaced",
		}),
		AuditAppendErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "audit_append_errors_total",
			Help:      "Total number of failed audit appends",
		}),
		AuditRecordsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "audit_records_stored_total",
			Help:      "Total number of cycle audit records stored",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
