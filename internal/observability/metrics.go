package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Domain counters, complementing the HTTP metrics registered by the
// middleware layer.
var (
	// CreditsCharged accumulates billed credits per route.
	CreditsCharged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_credits_charged_total",
		Help: "Credits charged to user ledgers, by route.",
	}, []string{"route"})

	// UpstreamFailures counts non-2xx or transport failures from the local
	// inference server, by HTTP status class ("4xx", "5xx", "network").
	UpstreamFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_upstream_failures_total",
		Help: "Local inference call failures, by status class.",
	}, []string{"class"})

	// RerankFallbacks counts retrieval requests answered by each ranking
	// tier ("rerank", "embeddings", "lexical").
	RerankFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_rerank_tier_total",
		Help: "Retrieval requests answered, by ranking tier.",
	}, []string{"tier"})
)
