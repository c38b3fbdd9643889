package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus views of the same deltas the aggregator applies; exported
// at /metrics by the operator API server.
var (
	messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inboxd_messages_total",
		Help: "Messages stored, by platform and direction.",
	}, []string{"platform", "direction"})

	threadsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inboxd_threads_created_total",
		Help: "Threads created on first contact, by platform.",
	}, []string{"platform"})

	dedupHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inboxd_dedup_hits_total",
		Help: "Inbound messages suppressed as duplicates, by platform.",
	}, []string{"platform"})

	unreadGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inboxd_unread_messages",
		Help: "Current unread inbound messages across all threads.",
	})

	// DispatchAttempts counts connector send attempts by outcome
	// ("ok", "error").
	DispatchAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inboxd_dispatch_attempts_total",
		Help: "Outbound connector send attempts, by outcome.",
	}, []string{"outcome"})

	// DeliveriesFailed counts messages whose retries were exhausted.
	DeliveriesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inboxd_deliveries_failed_total",
		Help: "Outbound messages permanently marked failed.",
	})

	// SuggestionResults counts suggestion gateway outcomes
	// ("cache_hit", "fetched", "timeout", "error").
	SuggestionResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inboxd_suggestion_results_total",
		Help: "Suggestion gateway call outcomes.",
	}, []string{"outcome"})

	// WebhookDropped counts payloads rejected because the ingest queue
	// was full.
	WebhookDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inboxd_webhook_dropped_total",
		Help: "Webhook payloads dropped due to a full ingest queue.",
	})

	// QueueDepth reports the current ingest queue length.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inboxd_ingest_queue_depth",
		Help: "Current depth of the ingest queue.",
	})
)
