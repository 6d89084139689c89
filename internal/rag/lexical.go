package rag

import (
	"context"
	"math"
	"strings"
)

// lexical is the last-resort ranking tier: token overlap between query and
// document, dampened by document length. It is fully local and cannot fail.
type lexical struct{}

func (lexical) tier() Fallback { return FallbackLexical }

func (lexical) rank(_ context.Context, query string, docs []string, _ Options) ([]Ranked, string, error) {
	queryTokens := uniqueTokens(query)
	ranked := make([]Ranked, len(docs))
	for i, doc := range docs {
		ranked[i] = Ranked{Index: i, Score: lexicalScore(queryTokens, doc)}
	}
	return ranked, "", nil
}

// lexicalScore counts how many distinct query tokens appear in the document
// and divides by sqrt of the document's token count, so long documents do
// not win on bulk alone.
func lexicalScore(queryTokens map[string]struct{}, doc string) float64 {
	docTokens := tokenize(doc)
	seen := make(map[string]struct{}, len(docTokens))
	for _, t := range docTokens {
		seen[t] = struct{}{}
	}
	hits := 0
	for t := range queryTokens {
		if _, ok := seen[t]; ok {
			hits++
		}
	}
	return float64(hits) / math.Sqrt(float64(max(1, len(docTokens))))
}

func uniqueTokens(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, t := range tokenize(s) {
		out[t] = struct{}{}
	}
	return out
}

// tokenize lowercases, strips everything outside [a-z0-9] and whitespace,
// then splits on whitespace. Stripped characters are deleted rather than
// replaced, so "don't" tokenizes as "dont" and "v2.0" as "v20".
func tokenize(s string) []string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}
