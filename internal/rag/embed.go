package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
)

// embedCosine ranks by cosine similarity between the query embedding and
// each document embedding, fetched from an OpenAI-compatible /v1/embeddings
// endpoint in batches.
type embedCosine struct {
	url    string
	model  string
	apiKey string
	batch  int
	http   *http.Client
}

func (s *embedCosine) tier() Fallback { return FallbackEmbeddings }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func (s *embedCosine) rank(ctx context.Context, query string, docs []string, _ Options) ([]Ranked, string, error) {
	if s.url == "" {
		return nil, "", fmt.Errorf("embed: no endpoint configured")
	}

	inputs := make([]string, 0, len(docs)+1)
	inputs = append(inputs, query)
	inputs = append(inputs, docs...)

	vectors, err := s.embedAll(ctx, inputs)
	if err != nil {
		return nil, "", err
	}

	qv := vectors[0]
	ranked := make([]Ranked, 0, len(docs))
	for i, dv := range vectors[1:] {
		if len(dv) != len(qv) {
			return nil, "", fmt.Errorf("embed: dimension mismatch for document %d", i)
		}
		ranked = append(ranked, Ranked{Index: i, Score: dot(qv, dv)})
	}
	return ranked, s.model, nil
}

// embedAll fetches embeddings for all inputs, batch by batch, and normalizes
// each vector to unit length so cosine similarity reduces to a dot product.
func (s *embedCosine) embedAll(ctx context.Context, inputs []string) ([][]float64, error) {
	out := make([][]float64, 0, len(inputs))
	for start := 0; start < len(inputs); start += s.batch {
		end := start + s.batch
		if end > len(inputs) {
			end = len(inputs)
		}
		vecs, err := s.embedBatch(ctx, inputs[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (s *embedCosine) embedBatch(ctx context.Context, batch []string) ([][]float64, error) {
	body, err := json.Marshal(embedRequest{Model: s.model, Input: batch})
	if err != nil {
		return nil, fmt.Errorf("embed: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embed: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embed: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embed: upstream status %d", resp.StatusCode)
	}

	var env embedResponse
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("embed: decode response: %w", err)
	}
	if len(env.Data) != len(batch) {
		return nil, fmt.Errorf("embed: got %d vectors for %d inputs", len(env.Data), len(batch))
	}

	// The API may return entries out of order; place by index.
	vecs := make([][]float64, len(batch))
	for _, d := range env.Data {
		if d.Index < 0 || d.Index >= len(batch) {
			return nil, fmt.Errorf("embed: index %d out of range", d.Index)
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("embed: empty vector at index %d", d.Index)
		}
		vecs[d.Index] = normalize(d.Embedding)
	}
	for i, v := range vecs {
		if v == nil {
			return nil, fmt.Errorf("embed: missing vector at index %d", i)
		}
	}
	return vecs, nil
}

func normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x * inv
	}
	return out
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
