// Package metrics exposes Prometheus counters and gauges for the
// story pipeline and chat subsystems. All collectors are registered on
// the default registry and served by the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoriesSubmitted counts accepted story submissions by type.
	StoriesSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ananse_stories_submitted_total",
		Help: "Story submissions accepted, by submission type.",
	}, []string{"type"})

	// StoriesProcessed counts pipeline completions by terminal status.
	StoriesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ananse_stories_processed_total",
		Help: "Stories that reached a terminal state, by status.",
	}, []string{"status"})

	// StoryProcessingSeconds observes end-to-end pipeline latency.
	StoryProcessingSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ananse_story_processing_seconds",
		Help:    "End-to-end story pipeline duration in seconds.",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
	})

	// PanelImages counts panel image generation attempts by outcome.
	PanelImages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ananse_panel_images_total",
		Help: "Panel image generation attempts, by provider and outcome.",
	}, []string{"provider", "outcome"})

	// VideosGenerated counts story video renders by outcome.
	VideosGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ananse_videos_generated_total",
		Help: "Story video render attempts, by outcome.",
	}, []string{"outcome"})

	// VisualMessages counts visual chat messages by outcome.
	VisualMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ananse_visual_messages_total",
		Help: "Visual chat message generations, by outcome.",
	}, []string{"outcome"})

	// WSConnections tracks currently registered websocket clients.
	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ananse_ws_connections",
		Help: "Currently registered websocket clients.",
	})

	// MatchQueueDepth tracks users waiting for a random match.
	MatchQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ananse_match_queue_depth",
		Help: "Users currently waiting in the matchmaking queue.",
	})

	// ProviderRequests counts outbound generative provider calls.
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ananse_provider_requests_total",
		Help: "Outbound generative provider requests, by provider and outcome.",
	}, []string{"provider", "outcome"})
)
