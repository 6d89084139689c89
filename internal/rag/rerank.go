// Package rag ranks caller-supplied documents against a query so the best
// few can be folded into a model's context window. Ranking runs through an
// ordered list of strategies (dedicated reranker, then embedding cosine
// similarity, then lexical overlap) and degrades silently: a strategy that is
// unavailable (network error, non-2xx, malformed or empty payload) simply
// hands over to the next one. Only the final result says which tier answered.
//
// Like the rest of the retrieval code, this package does no logging; callers
// decide whether a fallback is worth a log line or a metric.
package rag

import (
	"context"
	"net/http"
	"sort"
)

// Fallback identifies which ranking tier produced a result.
type Fallback string

const (
	// FallbackNone means the dedicated reranker answered.
	FallbackNone Fallback = ""
	// FallbackEmbeddings means cosine similarity over embeddings answered.
	FallbackEmbeddings Fallback = "embeddings"
	// FallbackLexical means token-overlap scoring answered.
	FallbackLexical Fallback = "lexical"
)

// Ranked is one document's position in the ranking, by original index.
type Ranked struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Result is the outcome of one Rerank call. Results are sorted by score
// descending; ties keep original document order.
type Result struct {
	Results      []Ranked `json:"results"`
	Model        string   `json:"model"`
	UsedFallback Fallback `json:"usedFallback"`
}

// Options tunes one Rerank call.
type Options struct {
	// TopK caps the number of returned results. <= 0 means all documents.
	TopK int
	// MinScore, when non-nil, drops results scoring below it.
	MinScore *float64
	// Model overrides the configured rerank model for this call.
	Model string
}

// Config holds the endpoints and models for the remote ranking tiers.
type Config struct {
	RerankURL   string
	RerankModel string
	EmbedURL    string
	EmbedModel  string
	APIKey      string
	// EmbedBatchSize bounds one embeddings request; clamped to [1,256].
	EmbedBatchSize int
}

// strategy is one ranking tier. An error return means "unavailable, try the
// next tier"; it never reaches the end caller.
type strategy interface {
	tier() Fallback
	rank(ctx context.Context, query string, docs []string, opts Options) ([]Ranked, string, error)
}

// Reranker runs the strategy cascade. Safe for concurrent use.
type Reranker struct {
	strategies []strategy
}

// NewReranker builds the three-tier cascade for the given config. When
// httpClient is nil a default client without a timeout is used; cancellation
// comes from the request context.
func NewReranker(cfg Config, httpClient *http.Client) *Reranker {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	batch := cfg.EmbedBatchSize
	if batch < 1 {
		batch = 32
	}
	if batch > 256 {
		batch = 256
	}
	return &Reranker{
		strategies: []strategy{
			&rerankAPI{url: cfg.RerankURL, model: cfg.RerankModel, apiKey: cfg.APIKey, http: httpClient},
			&embedCosine{url: cfg.EmbedURL, model: cfg.EmbedModel, apiKey: cfg.APIKey, batch: batch, http: httpClient},
			lexical{},
		},
	}
}

// Rerank orders docs by relevance to query. An empty docs slice returns an
// empty result without any network call. The lexical tier cannot fail, so a
// non-nil error is only possible if the cascade is misconfigured to exclude
// it.
func (r *Reranker) Rerank(ctx context.Context, query string, docs []string, opts Options) (*Result, error) {
	if len(docs) == 0 {
		return &Result{Results: []Ranked{}, UsedFallback: FallbackNone}, nil
	}

	var lastErr error
	for _, s := range r.strategies {
		ranked, model, err := s.rank(ctx, query, docs, opts)
		if err != nil {
			lastErr = err
			continue
		}
		return &Result{
			Results:      finalize(ranked, len(docs), opts),
			Model:        model,
			UsedFallback: s.tier(),
		}, nil
	}
	return nil, lastErr
}

// finalize sorts descending (original order on ties), truncates to topK, and
// applies the minScore filter.
func finalize(ranked []Ranked, docCount int, opts Options) []Ranked {
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Index < ranked[j].Index
	})

	topK := opts.TopK
	if topK <= 0 || topK > docCount {
		topK = docCount
	}
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	if opts.MinScore != nil {
		kept := ranked[:0]
		for _, r := range ranked {
			if r.Score >= *opts.MinScore {
				kept = append(kept, r)
			}
		}
		ranked = kept
	}
	return ranked
}
