package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Toggles 成员关系切换次数，result: changed / noop / error
	Toggles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "engagement",
		Name:      "toggles_total",
		Help:      "Membership toggle attempts by kind and result.",
	}, []string{"kind", "result"})

	TxRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "engagement",
		Name:      "tx_retries_total",
		Help:      "Transactions retried after a transient store error.",
	})

	PopularityClips = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "engagement",
		Subsystem: "popularity",
		Name:      "clips_total",
		Help:      "Clips visited by the popularity job by outcome.",
	}, []string{"outcome"})

	PopularityRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "engagement",
		Subsystem: "popularity",
		Name:      "runs_total",
		Help:      "Popularity job runs by status.",
	}, []string{"status"})

	PopularityDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "engagement",
		Subsystem: "popularity",
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of popularity job runs.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 540},
	})

	MessagesRead = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "engagement",
		Name:      "messages_read_total",
		Help:      "Messages flipped to read by read receipts.",
	})

	Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "engagement",
		Name:      "notifications_total",
		Help:      "Notification dispatch outcomes: written, dropped, failed.",
	}, []string{"outcome"})
)

// Registry 独立 registry，避免测试重复注册 panic
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		Toggles,
		TxRetries,
		PopularityClips,
		PopularityRuns,
		PopularityDuration,
		MessagesRead,
		Notifications,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}
