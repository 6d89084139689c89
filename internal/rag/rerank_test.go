package rag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newRerankServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

// failingURL points at a closed port so requests fail at dial time.
const failingURL = "http://127.0.0.1:1/unreachable"

func TestRerank_DedicatedRerankerWins(t *testing.T) {
	srv := newRerankServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"index": 1, "relevance_score": 0.9},
				{"index": 0, "relevance_score": 0.1},
			},
		})
	})

	r := NewReranker(Config{RerankURL: srv.URL, RerankModel: "rr"}, nil)
	res, err := r.Rerank(context.Background(), "q", []string{"a", "b"}, Options{})
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if res.UsedFallback != FallbackNone {
		t.Errorf("usedFallback: got %q", res.UsedFallback)
	}
	if res.Model != "rr" {
		t.Errorf("model: got %q", res.Model)
	}
	if len(res.Results) != 2 || res.Results[0].Index != 1 || res.Results[1].Index != 0 {
		t.Errorf("ordering: got %+v", res.Results)
	}
}

func TestRerank_ScoreUnderDataAndScoreKeys(t *testing.T) {
	srv := newRerankServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 0, "score": 0.7},
			},
		})
	})

	r := NewReranker(Config{RerankURL: srv.URL}, nil)
	res, err := r.Rerank(context.Background(), "q", []string{"a"}, Options{})
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if res.UsedFallback != FallbackNone || res.Results[0].Score != 0.7 {
		t.Errorf("got %+v", res)
	}
}

func TestRerank_FallsBackToEmbeddingsOn500(t *testing.T) {
	rerankSrv := newRerankServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	embedSrv := newRerankServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		data := make([]map[string]any, len(req.Input))
		for i, s := range req.Input {
			// The query and the matching doc share a direction.
			vec := []float64{1, 0}
			if s == "unrelated" {
				vec = []float64{0, 1}
			}
			data[i] = map[string]any{"index": i, "embedding": vec}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	})

	r := NewReranker(Config{
		RerankURL:  rerankSrv.URL,
		EmbedURL:   embedSrv.URL,
		EmbedModel: "emb",
	}, nil)
	res, err := r.Rerank(context.Background(), "query", []string{"query", "unrelated"}, Options{})
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if res.UsedFallback != FallbackEmbeddings {
		t.Fatalf("usedFallback: got %q", res.UsedFallback)
	}
	if res.Results[0].Index != 0 {
		t.Errorf("expected matching doc ranked first, got %+v", res.Results)
	}
}

func TestRerank_EmptyResultArrayTriggersFallback(t *testing.T) {
	rerankSrv := newRerankServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results": []}`))
	})

	r := NewReranker(Config{RerankURL: rerankSrv.URL, EmbedURL: failingURL}, nil)
	res, err := r.Rerank(context.Background(), "create menu", []string{"create a navigation menu"}, Options{})
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if res.UsedFallback != FallbackLexical {
		t.Errorf("usedFallback: got %q", res.UsedFallback)
	}
}

func TestRerank_LexicalWhenBothTiersUnreachable(t *testing.T) {
	r := NewReranker(Config{RerankURL: failingURL, EmbedURL: failingURL}, nil)
	docs := []string{"create a navigation menu", "unrelated text", "menu of the day"}

	res, err := r.Rerank(context.Background(), "create menu", docs, Options{})
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if res.UsedFallback != FallbackLexical {
		t.Fatalf("usedFallback: got %q", res.UsedFallback)
	}
	if len(res.Results) != 3 {
		t.Fatalf("expected all docs ranked, got %d", len(res.Results))
	}
	if res.Results[0].Index != 0 {
		t.Errorf("expected doc 0 first, got %+v", res.Results)
	}
	for i := 1; i < len(res.Results); i++ {
		if res.Results[i].Score > res.Results[i-1].Score {
			t.Errorf("not sorted descending at %d: %+v", i, res.Results)
		}
	}
}

func TestRerank_EmptyDocsNoNetworkCall(t *testing.T) {
	var calls int32
	srv := newRerankServer(t, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
	})

	r := NewReranker(Config{RerankURL: srv.URL, EmbedURL: srv.URL}, nil)
	res, err := r.Rerank(context.Background(), "q", nil, Options{})
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if len(res.Results) != 0 || res.UsedFallback != FallbackNone {
		t.Errorf("got %+v", res)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Errorf("expected no network calls, got %d", calls)
	}
}

func TestRerank_TopKTruncation(t *testing.T) {
	r := NewReranker(Config{RerankURL: failingURL, EmbedURL: failingURL}, nil)
	docs := []string{"alpha", "beta", "gamma", "delta"}

	res, err := r.Rerank(context.Background(), "alpha", docs, Options{TopK: 2})
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if len(res.Results) != 2 {
		t.Errorf("topK: got %d results", len(res.Results))
	}

	// topK larger than the candidate set returns everything.
	res, err = r.Rerank(context.Background(), "alpha", docs, Options{TopK: 100})
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if len(res.Results) != len(docs) {
		t.Errorf("topK overshoot: got %d results", len(res.Results))
	}
}

func TestRerank_MinScoreFilter(t *testing.T) {
	r := NewReranker(Config{}, nil)
	min := 0.1
	res, err := r.Rerank(context.Background(), "create menu",
		[]string{"create a navigation menu", "zzz yyy xxx"}, Options{MinScore: &min})
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	for _, rk := range res.Results {
		if rk.Score < min {
			t.Errorf("result below minScore: %+v", rk)
		}
	}
	if len(res.Results) != 1 {
		t.Errorf("expected the unrelated doc filtered, got %+v", res.Results)
	}
}

func TestRerank_OutOfRangeIndexFallsBack(t *testing.T) {
	srv := newRerankServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"index": 9, "relevance_score": 1.0}]}`))
	})

	r := NewReranker(Config{RerankURL: srv.URL, EmbedURL: failingURL}, nil)
	res, err := r.Rerank(context.Background(), "q", []string{"only doc"}, Options{})
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if res.UsedFallback != FallbackLexical {
		t.Errorf("expected lexical fallback on bad index, got %q", res.UsedFallback)
	}
}
