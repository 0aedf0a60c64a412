// Package metrics defines the Prometheus instrumentation for dmflow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dmflow_http_requests_total",
		Help: "Total HTTP requests processed, by method, path and status code.",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration observes request latency by path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dmflow_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})

	// MessagesProcessed counts pipeline runs by intent.
	MessagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dmflow_messages_processed_total",
		Help: "Messages run through the decision pipeline, by intent.",
	}, []string{"agent_id", "intent"})

	// Escalations counts human handoffs.
	Escalations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dmflow_escalations_total",
		Help: "Conversations escalated to a human.",
	}, []string{"agent_id"})

	// LeadsQualified counts followers crossing the lead threshold.
	LeadsQualified = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dmflow_leads_qualified_total",
		Help: "Followers qualified as leads.",
	}, []string{"agent_id"})

	// GenerationFallbacks counts replies served from the templated fallback.
	GenerationFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dmflow_generation_fallbacks_total",
		Help: "Replies that fell back to a template after a generation failure.",
	}, []string{"agent_id"})

	// CacheHits counts response cache hits.
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dmflow_response_cache_hits_total",
		Help: "Generation pipeline cache hits.",
	}, []string{"agent_id"})
)
