package feed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	kindMessages      = "messages"
	kindConversations = "conversations"
)

var (
	activeSubscriptions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "feed_active_subscriptions",
			Help: "Number of open change-feed subscriptions",
		},
		[]string{"kind"},
	)

	snapshotsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_snapshots_delivered_total",
			Help: "Total number of snapshots delivered to subscribers",
		},
		[]string{"kind"},
	)

	snapshotErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_snapshot_errors_total",
			Help: "Total number of snapshot reloads that failed",
		},
		[]string{"kind"},
	)

	recordsDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_records_discarded_total",
			Help: "Total number of stored records dropped for failing the message schema",
		},
	)
)
