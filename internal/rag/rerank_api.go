package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// rerankAPI calls a Cohere-compatible /v1/rerank endpoint.
type rerankAPI struct {
	url    string
	model  string
	apiKey string
	http   *http.Client
}

func (s *rerankAPI) tier() Fallback { return FallbackNone }

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

// rerankEnvelope tolerates the two payload shapes seen in the wild: results
// under "results" or "data", and the score under "relevance_score" or
// "score".
type rerankEnvelope struct {
	Results []rerankItem `json:"results"`
	Data    []rerankItem `json:"data"`
}

type rerankItem struct {
	Index          int      `json:"index"`
	RelevanceScore *float64 `json:"relevance_score"`
	Score          *float64 `json:"score"`
}

func (s *rerankAPI) rank(ctx context.Context, query string, docs []string, opts Options) ([]Ranked, string, error) {
	if s.url == "" {
		return nil, "", fmt.Errorf("rerank: no endpoint configured")
	}
	model := opts.Model
	if model == "" {
		model = s.model
	}

	body, err := json.Marshal(rerankRequest{Model: model, Query: query, Documents: docs, TopN: opts.TopK})
	if err != nil {
		return nil, "", fmt.Errorf("rerank: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("rerank: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("rerank: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("rerank: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("rerank: upstream status %d", resp.StatusCode)
	}

	var env rerankEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, "", fmt.Errorf("rerank: decode response: %w", err)
	}
	items := env.Results
	if len(items) == 0 {
		items = env.Data
	}
	if len(items) == 0 {
		return nil, "", fmt.Errorf("rerank: empty result set")
	}

	ranked := make([]Ranked, 0, len(items))
	for _, it := range items {
		if it.Index < 0 || it.Index >= len(docs) {
			return nil, "", fmt.Errorf("rerank: index %d out of range", it.Index)
		}
		score := 0.0
		switch {
		case it.RelevanceScore != nil:
			score = *it.RelevanceScore
		case it.Score != nil:
			score = *it.Score
		}
		ranked = append(ranked, Ranked{Index: it.Index, Score: score})
	}
	return ranked, model, nil
}
