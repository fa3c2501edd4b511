package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ApplicationMetrics tracks social activity and third-party calls
type ApplicationMetrics struct {
	TweetsCreated  prometheus.Counter
	TweetsDeleted  prometheus.Counter
	Toggles        *prometheus.CounterVec // kind: like|retweet|bookmark|follow, state: on|off|pending
	FollowRequests *prometheus.CounterVec // outcome: accepted|rejected
	MessagesSent   *prometheus.CounterVec // conversation status after send

	// Fire-and-forget integrations
	RealtimePublishFailures *prometheus.CounterVec // broker: stream|websocket
	SideEffectFailures      *prometheus.CounterVec // target: s3|feeds|search

	CaptionRequests *prometheus.CounterVec // outcome: ok|error
	CaptionDuration prometheus.Histogram

	SearchQueries *prometheus.CounterVec // type, backend

	RowsPurged *prometheus.CounterVec // table
}

func newApplicationMetrics() *ApplicationMetrics {
	return &ApplicationMetrics{
		TweetsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tweets_created_total",
			Help: "Tweets created",
		}),
		TweetsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tweets_deleted_total",
			Help: "Tweets deleted",
		}),
		Toggles: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "social_toggles_total",
			Help: "Toggle actions by kind and resulting state",
		}, []string{"kind", "state"}),
		FollowRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "follow_requests_resolved_total",
			Help: "Follow requests resolved by outcome",
		}, []string{"outcome"}),
		MessagesSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "direct_messages_sent_total",
			Help: "Direct messages sent by resulting conversation status",
		}, []string{"status"}),
		RealtimePublishFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "realtime_publish_failures_total",
			Help: "Realtime events that could not be delivered",
		}, []string{"broker", "event"}),
		SideEffectFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "side_effect_failures_total",
			Help: "Best-effort side effects that failed after the primary write",
		}, []string{"target"}),
		CaptionRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_caption_requests_total",
			Help: "AI caption generation requests",
		}, []string{"outcome"}),
		CaptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ai_caption_duration_seconds",
			Help:    "AI caption generation latency",
			Buckets: []float64{.25, .5, 1, 2, 4, 8, 16, 32},
		}),
		SearchQueries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "search_queries_total",
			Help: "Search queries by type and backend",
		}, []string{"type", "backend"}),
		RowsPurged: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cleanup_rows_purged_total",
			Help: "Rows removed by the retention job",
		}, []string{"table"}),
	}
}
