package rag

import "context"

// Doc is a retrievable unit of context with an opaque caller-side identity.
type Doc struct {
	ID   string         `json:"id"`
	Text string         `json:"text"`
	Meta map[string]any `json:"meta,omitempty"`
}

// ScoredDoc is a Doc after ranking.
type ScoredDoc struct {
	ID    string         `json:"id"`
	Text  string         `json:"text"`
	Meta  map[string]any `json:"meta,omitempty"`
	Score float64        `json:"score"`
}

// RankDocuments runs the cascade over full documents instead of bare texts,
// carrying ID and Meta through so callers do not have to track indices.
func (r *Reranker) RankDocuments(ctx context.Context, query string, docs []Doc, opts Options) ([]ScoredDoc, Fallback, error) {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}

	res, err := r.Rerank(ctx, query, texts, opts)
	if err != nil {
		return nil, FallbackNone, err
	}

	out := make([]ScoredDoc, 0, len(res.Results))
	for _, rk := range res.Results {
		d := docs[rk.Index]
		out = append(out, ScoredDoc{ID: d.ID, Text: d.Text, Meta: d.Meta, Score: rk.Score})
	}
	return out, res.UsedFallback, nil
}

// TopTexts returns the texts of the topK best documents, best first. Handy
// for building a prompt context block.
func (r *Reranker) TopTexts(ctx context.Context, query string, docs []Doc, topK int) ([]string, Fallback, error) {
	scored, fb, err := r.RankDocuments(ctx, query, docs, Options{TopK: topK})
	if err != nil {
		return nil, fb, err
	}
	texts := make([]string, len(scored))
	for i, s := range scored {
		texts[i] = s.Text
	}
	return texts, fb, nil
}
