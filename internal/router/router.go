// Package router selects a model tier for a request by cheap, deterministic
// inspection of its text. No I/O and no randomness: the same input always
// yields the same choice, which keeps tier selection unit-testable and free
// of an extra classification call.
//
// The heuristics over-select the quality tier. Sending a simple
// prompt to the stronger model wastes a little compute; sending a structured
// or code-heavy prompt to the fast model wastes the whole request.
package router

import (
	"regexp"
	"strings"
)

// Tier names the two model presets.
type Tier string

const (
	TierFast    Tier = "fast"
	TierQuality Tier = "quality"
)

// Default model names used when the operator configures none.
const (
	defaultFastModel    = "llama-3.1-8b-instruct"
	defaultQualityModel = "qwen2.5-32b-instruct"
)

// Tier presets. Temperature drops and the token budget grows on the quality
// path; both budgets are clamped by the caller-supplied context ceiling.
const (
	fastTemperature    = 0.5
	qualityTemperature = 0.2
	fastMaxTokens      = 1024
	qualityMaxTokens   = 2048
	defaultMaxContext  = 8192
	longishThreshold   = 2000
)

// Input is everything PickModel looks at.
type Input struct {
	Prompt         string
	System         string
	JoinedMessages string
	Tools          []string // rendered tool specs; presence alone matters
	MaxContext     int      // 0 means the 8192 default
}

// Choice is the selected preset for one request. It is computed per request
// and never persisted.
type Choice struct {
	Provider    string
	Model       string
	Tier        Tier
	Temperature float64
	MaxTokens   int
}

// Presets carries the operator-configured model names.
type Presets struct {
	FastModel    string
	QualityModel string
}

var (
	jsonSchemaTypeRE = regexp.MustCompile(`"type"\s*:\s*"object"`)
	requiredKeyRE    = regexp.MustCompile(`"required"\s*:`)
)

// codeTokens are substrings whose presence marks a prompt as code-bearing.
var codeTokens = []string{"```", "import ", "function ", "class ", "interface ", "type "}

// structuredHints are phrases asking for schema-constrained output.
var structuredHints = []string{"json schema", "jsonschema", "strict json"}

// PickModel selects the fast or quality preset for the given input.
//
// The quality tier wins when any of these hold over the concatenation of
// prompt, system, and joined messages:
//   - structured: a fenced-json block, a JSON-schema "type":"object", a
//     "required": key, or an explicit schema phrase;
//   - tools: a non-empty tools list, or a `tools: [` substring;
//   - code: a fence or common declaration keyword;
//   - length: strictly more than 2000 bytes.
func PickModel(in Input, p Presets) Choice {
	s := in.Prompt + in.System + in.JoinedMessages
	lower := strings.ToLower(s)

	structured := strings.Contains(lower, "```json") ||
		jsonSchemaTypeRE.MatchString(s) ||
		requiredKeyRE.MatchString(s) ||
		containsAny(lower, structuredHints)

	withTools := len(in.Tools) > 0 || strings.Contains(s, "tools: [")

	codey := containsAny(s, codeTokens)

	longish := len(s) > longishThreshold

	maxContext := in.MaxContext
	if maxContext <= 0 {
		maxContext = defaultMaxContext
	}

	if structured || withTools || codey || longish {
		return Choice{
			Provider:    "local",
			Model:       nonEmpty(p.QualityModel, defaultQualityModel),
			Tier:        TierQuality,
			Temperature: qualityTemperature,
			MaxTokens:   minInt(qualityMaxTokens, maxContext),
		}
	}
	return Choice{
		Provider:    "local",
		Model:       nonEmpty(p.FastModel, defaultFastModel),
		Tier:        TierFast,
		Temperature: fastTemperature,
		MaxTokens:   minInt(fastMaxTokens, maxContext),
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func nonEmpty(v, def string) string {
	if strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
