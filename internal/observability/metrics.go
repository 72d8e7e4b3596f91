package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the feed engine.
type Metrics struct {
	// --- Deal processing ---
	DealsProcessed *prometheus.CounterVec
	DealsFailed    *prometheus.CounterVec
	DealDuration   *prometheus.HistogramVec
	FeedsWritten   *prometheus.CounterVec
	FeedsClosed    prometheus.Counter
	TradesWritten  prometheus.Counter
	DealsUnhandled *prometheus.CounterVec

	// --- Invalidation ---
	InvalidationsEmitted   *prometheus.CounterVec
	InvalidationsConsumed  *prometheus.CounterVec
	InvalidationsCoalesced prometheus.Counter
	RebuildDuration        *prometheus.HistogramVec
	RebuildDaysReplayed    *prometheus.CounterVec
	RebuildEarlyStops      *prometheus.CounterVec

	// --- Snapshots ---
	SnapshotsSaved   *prometheus.CounterVec
	SnapshotsSkipped *prometheus.CounterVec
	SnapshotDuration *prometheus.HistogramVec

	// --- Ingestion ---
	PullPages    prometheus.Counter
	PullDeals    prometheus.Counter
	PullFailures prometheus.Counter
	PullDuration prometheus.Histogram
	ParseErrors  *prometheus.CounterVec

	// --- Channel backpressure ---
	ChannelSize     *prometheus.GaugeVec
	ChannelCapacity *prometheus.GaugeVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	dealBuckets := []float64{
		0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0,
	}

	rebuildBuckets := []float64{
		0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0,
	}

	return &Metrics{
		// Deal processing
		DealsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ace_deals_processed_total",
			Help: "Deal revisions processed",
		}, []string{"deal_type"}),

		DealsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ace_deals_failed_total",
			Help: "Deal revisions that failed processing",
		}, []string{"deal_type", "error_type"}),

		DealDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ace_deal_process_duration_seconds",
			Help:    "Time to process one deal revision end to end",
			Buckets: dealBuckets,
		}, []string{"deal_type"}),

		FeedsWritten: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ace_feeds_written_total",
			Help: "Feed rows inserted",
		}, []string{"record_type"}),

		FeedsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ace_feeds_closed_total",
			Help: "Open feed rows closed by supersede or cancel",
		}),

		TradesWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ace_trades_written_total",
			Help: "Trade rows inserted",
		}),

		DealsUnhandled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ace_deals_unhandled_total",
			Help: "Deals with no rule set for their type",
		}, []string{"deal_type"}),

		// Invalidation
		InvalidationsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ace_invalidations_emitted_total",
			Help: "Invalidation messages published after feed writes",
		}, []string{"type"}),

		InvalidationsConsumed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ace_invalidations_consumed_total",
			Help: "Invalidation messages handled by the rebuild consumer",
		}, []string{"type"}),

		InvalidationsCoalesced: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ace_invalidations_coalesced_total",
			Help: "Messages merged away by coalescing",
		}),

		RebuildDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ace_rebuild_duration_seconds",
			Help:    "Time to rebuild one snapshot series",
			Buckets: rebuildBuckets,
		}, []string{"kind"}),

		RebuildDaysReplayed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ace_rebuild_days_replayed_total",
			Help: "Batch days replayed during rebuilds",
		}, []string{"kind"}),

		RebuildEarlyStops: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ace_rebuild_early_stops_total",
			Help: "Rebuild passes stopped by an unchanged day",
		}, []string{"kind"}),

		// Snapshots
		SnapshotsSaved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ace_snapshots_saved_total",
			Help: "Snapshot versions written",
		}, []string{"kind"}),

		SnapshotsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ace_snapshots_skipped_total",
			Help: "Snapshot saves skipped because values were unchanged",
		}, []string{"kind"}),

		SnapshotDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ace_snapshot_build_duration_seconds",
			Help:    "Time to load and save one snapshot",
			Buckets: dealBuckets,
		}, []string{"kind"}),

		// Ingestion
		PullPages: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ace_pull_pages_total",
			Help: "Pages fetched from the upstream deal API",
		}),

		PullDeals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ace_pull_deals_total",
			Help: "Deals fetched from the upstream deal API",
		}),

		PullFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ace_pull_failures_total",
			Help: "Pull cycles that failed against the upstream deal API",
		}),

		PullDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ace_pull_duration_seconds",
			Help:    "Full pull cycle duration",
			Buckets: rebuildBuckets,
		}),

		ParseErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ace_parse_errors_total",
			Help: "Messages that failed to parse",
		}, []string{"subject"}),

		// Channel backpressure
		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ace_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ace_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),
	}
}
