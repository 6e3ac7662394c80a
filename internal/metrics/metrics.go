package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Webhook intake metrics
	WebhookRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookline_webhook_requests_total",
			Help: "Total number of webhook callbacks received, by outcome",
		},
		[]string{"outcome"},
	)

	Events = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookline_events_total",
			Help: "Total number of webhook events routed, by classified type",
		},
		[]string{"type"},
	)

	// Forwarding metrics
	Forwards = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookline_forwards_total",
			Help: "Total number of forward attempts, by destination and outcome",
		},
		[]string{"destination", "outcome"},
	)

	ForwardDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hookline_forward_duration_seconds",
			Help:    "Forward round-trip duration in seconds, by destination",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"destination"},
	)

	// Media pipeline metrics
	MediaPipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookline_media_pipeline_total",
			Help: "Total number of media pipeline runs, by outcome",
		},
		[]string{"outcome"},
	)

	MediaStageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookline_media_pipeline_stage_errors_total",
			Help: "Total number of media pipeline stage failures, by stage",
		},
		[]string{"stage"},
	)

	// Staged object janitor metrics
	StagedSweeps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hookline_staged_sweeps_total",
			Help: "Total number of completed staged-object sweeps",
		},
	)

	StagedObjectsRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hookline_staged_objects_removed_total",
			Help: "Total number of staged objects removed by the janitor",
		},
	)
)
