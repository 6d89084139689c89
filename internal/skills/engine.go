package skills

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

var (
	// ErrUnknownSkill is returned when the requested key is not registered.
	ErrUnknownSkill = errors.New("unknown skill")
	// ErrEmptyInput is returned when the skill key or input text is blank.
	ErrEmptyInput = errors.New("empty input")
)

// Completer executes one framed prompt against whatever model the caller's
// routing picked. Implementations live outside this package.
type Completer interface {
	Complete(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// Input is one skill invocation.
type Input struct {
	Skill  string
	Text   string
	Locale string
	// ContextTexts are pre-ranked documents for context-using skills,
	// best first. Ignored by skills that do not use context.
	ContextTexts []string
}

// Usage is the estimated token footprint of one run. Estimates come from a
// length heuristic, not a tokenizer, so they are approximate.
type Usage struct {
	TokensIn  int `json:"tokens_in"`
	TokensOut int `json:"tokens_out"`
}

// Result is a tagged skill outcome.
type Result struct {
	Kind    Kind   `json:"kind"`
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// Engine runs skills from an injected registry against an injected backend.
type Engine struct {
	Registry  *Registry
	Completer Completer
}

// Run resolves the skill, frames the prompt, executes it, and estimates
// usage from the prompt and completion lengths.
func (e *Engine) Run(ctx context.Context, in Input) (*Result, error) {
	key := strings.TrimSpace(in.Skill)
	text := strings.TrimSpace(in.Text)
	if key == "" || text == "" {
		return nil, ErrEmptyInput
	}
	sk, ok := e.Registry.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSkill, key)
	}

	system := sk.System
	if sk.Kind == KindTranslation {
		system = system + " Target language: " + targetLanguage(in.Locale) + "."
	}

	user := text
	if sk.UsesContext && len(in.ContextTexts) > 0 {
		var b strings.Builder
		b.WriteString("Context:\n")
		for _, t := range in.ContextTexts {
			b.WriteString("- ")
			b.WriteString(t)
			b.WriteString("\n")
		}
		b.WriteString("\nQuestion: ")
		b.WriteString(text)
		user = b.String()
	}

	content, err := e.Completer.Complete(ctx, system, user, sk.MaxTokens)
	if err != nil {
		return nil, err
	}

	return &Result{
		Kind:    sk.Kind,
		Content: content,
		Usage: Usage{
			TokensIn:  EstimateTokens(system + "\n" + user),
			TokensOut: EstimateTokens(content),
		},
	}, nil
}

// targetLanguage canonicalizes a BCP 47 locale tag, falling back to English
// when the tag is missing or unparseable. A bad locale degrades the
// translation rather than failing the request.
func targetLanguage(locale string) string {
	if strings.TrimSpace(locale) == "" {
		return language.English.String()
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return language.English.String()
	}
	return tag.String()
}
