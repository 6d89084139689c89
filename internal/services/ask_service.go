// Package services – AskService
//
// This file implements AskService, the orchestrator behind the ask endpoint.
// It handles two request shapes: raw completions (messages or prompt/system
// pairs forwarded to the local inference server after tier routing) and
// billed skill runs (skill resolution, optional retrieval context, routed
// execution, usage estimation). Billing itself stays in BillingService; this
// service only reports what a run consumed.
//
// Observability: public methods are OpenTelemetry-instrumented; retrieval
// degradation and upstream failures increment domain counters.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-skill-gateway/internal/llm"
	"github.com/tbourn/go-skill-gateway/internal/observability"
	"github.com/tbourn/go-skill-gateway/internal/provider"
	"github.com/tbourn/go-skill-gateway/internal/rag"
	"github.com/tbourn/go-skill-gateway/internal/router"
	"github.com/tbourn/go-skill-gateway/internal/skills"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RawAsk is an unbilled pass-through completion request.
type RawAsk struct {
	Messages  []llm.Message
	Prompt    string
	System    string
	Tools     []string
	MaxTokens int
}

// RawAnswer is the result of a raw completion.
type RawAnswer struct {
	Provider string
	Model    string
	Content  string
	Usage    skills.Usage
}

// SkillAsk is a billed skill invocation.
type SkillAsk struct {
	Skill     string
	Input     string
	Locale    string
	Documents []rag.Doc
}

// SkillAnswer is the result of a billed skill run.
type SkillAnswer struct {
	Result       *skills.Result
	UsedFallback rag.Fallback
}

// AskService routes, guards, and executes completions.
type AskService struct {
	LLM      *llm.Client
	Reranker *rag.Reranker
	Registry *skills.Registry
	Presets  router.Presets

	// AllowProviders is the comma-separated provider allow-list.
	AllowProviders string
	// TopK caps how many retrieved documents feed a context-using skill.
	TopK int
}

// Raw performs one pass-through completion: route to a tier, assert the
// provider policy, call the inference server.
func (s *AskService) Raw(ctx context.Context, in RawAsk) (*RawAnswer, error) {
	tr := otel.Tracer("services/AskService")
	ctx, span := tr.Start(ctx, "Raw")
	defer span.End()

	msgs, joined, err := buildMessages(in)
	if err != nil {
		return nil, err
	}

	choice := router.PickModel(router.Input{
		Prompt:         in.Prompt,
		System:         in.System,
		JoinedMessages: joined,
		Tools:          in.Tools,
	}, s.Presets)
	span.SetAttributes(attribute.String("llm.model", choice.Model), attribute.String("llm.tier", string(choice.Tier)))

	if err := provider.AssertAllowed(choice.Provider, s.AllowProviders); err != nil {
		return nil, err
	}

	maxTokens := choice.MaxTokens
	if in.MaxTokens > 0 && in.MaxTokens < maxTokens {
		maxTokens = in.MaxTokens
	}

	comp, err := s.LLM.Complete(ctx, llm.Request{
		Model:       choice.Model,
		Messages:    msgs,
		Temperature: choice.Temperature,
		MaxTokens:   maxTokens,
		Tools:       rawTools(in.Tools),
	})
	if err != nil {
		countUpstreamFailure(err)
		return nil, err
	}

	usage := usageFrom(comp, joined, comp.Text)
	return &RawAnswer{Provider: choice.Provider, Model: choice.Model, Content: comp.Text, Usage: usage}, nil
}

// RunSkill executes one billed skill: resolve it, rank any supplied
// documents into context, route and run the completion, estimate usage.
func (s *AskService) RunSkill(ctx context.Context, in SkillAsk) (*SkillAnswer, error) {
	tr := otel.Tracer("services/AskService")
	ctx, span := tr.Start(ctx, "RunSkill",
		trace.WithAttributes(attribute.String("skill.key", in.Skill)),
	)
	defer span.End()

	sk, ok := s.Registry.Get(strings.TrimSpace(in.Skill))
	if !ok {
		return nil, fmt.Errorf("%w: %q", skills.ErrUnknownSkill, in.Skill)
	}

	var contextTexts []string
	usedFallback := rag.FallbackNone
	if sk.UsesContext && len(in.Documents) > 0 {
		texts, fb, err := s.Reranker.TopTexts(ctx, in.Input, in.Documents, s.TopK)
		if err != nil {
			// The lexical tier cannot fail, so this is a wiring problem;
			// run the skill without context rather than failing the request.
			log.Warn().Err(err).Msg("retrieval cascade returned no ranking")
		} else {
			contextTexts = texts
			usedFallback = fb
		}
		countRerankTier(usedFallback)
		if usedFallback != rag.FallbackNone {
			log.Info().Str("tier", string(usedFallback)).Msg("retrieval degraded to fallback tier")
		}
	}

	eng := &skills.Engine{Registry: s.Registry, Completer: completerFunc(s.complete)}
	result, err := eng.Run(ctx, skills.Input{
		Skill:        in.Skill,
		Text:         in.Input,
		Locale:       in.Locale,
		ContextTexts: contextTexts,
	})
	if err != nil {
		return nil, err
	}
	return &SkillAnswer{Result: result, UsedFallback: usedFallback}, nil
}

// complete is the completion backend handed to the skill engine: route the
// framed prompt, assert policy, call the inference server.
func (s *AskService) complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	choice := router.PickModel(router.Input{Prompt: user, System: system}, s.Presets)
	if err := provider.AssertAllowed(choice.Provider, s.AllowProviders); err != nil {
		return "", err
	}
	if maxTokens <= 0 || maxTokens > choice.MaxTokens {
		maxTokens = choice.MaxTokens
	}
	comp, err := s.LLM.Complete(ctx, llm.Request{
		Model: choice.Model,
		Messages: []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: choice.Temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		countUpstreamFailure(err)
		return "", err
	}
	return comp.Text, nil
}

// rawTools forwards caller-supplied tool specs that are themselves valid
// JSON; anything else still counts for routing but is not sent upstream.
func rawTools(tools []string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(tools))
	for _, t := range tools {
		if json.Valid([]byte(t)) {
			out = append(out, json.RawMessage(t))
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

type completerFunc func(ctx context.Context, system, user string, maxTokens int) (string, error)

func (f completerFunc) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	return f(ctx, system, user, maxTokens)
}

// buildMessages normalizes the two raw request shapes into a message list
// and a joined text view for the router.
func buildMessages(in RawAsk) ([]llm.Message, string, error) {
	if len(in.Messages) > 0 {
		var b strings.Builder
		for _, m := range in.Messages {
			b.WriteString(m.Content)
			b.WriteString("\n")
		}
		return in.Messages, b.String(), nil
	}

	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return nil, "", ErrEmptyPrompt
	}
	msgs := make([]llm.Message, 0, 2)
	if s := strings.TrimSpace(in.System); s != "" {
		msgs = append(msgs, llm.Message{Role: "system", Content: s})
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: prompt})
	return msgs, in.System + "\n" + prompt, nil
}

// usageFrom prefers the upstream's own token accounting and falls back to
// the length heuristic when the upstream omits it.
func usageFrom(comp *llm.Completion, promptText, outputText string) skills.Usage {
	if comp.Usage != nil && (comp.Usage.PromptTokens > 0 || comp.Usage.CompletionTokens > 0) {
		return skills.Usage{TokensIn: comp.Usage.PromptTokens, TokensOut: comp.Usage.CompletionTokens}
	}
	return skills.Usage{
		TokensIn:  skills.EstimateTokens(promptText),
		TokensOut: skills.EstimateTokens(outputText),
	}
}

func countUpstreamFailure(err error) {
	var ue *llm.UpstreamError
	class := "network"
	if errors.As(err, &ue) {
		switch {
		case ue.Status >= 500:
			class = "5xx"
		case ue.Status >= 400:
			class = "4xx"
		}
	}
	observability.UpstreamFailures.WithLabelValues(class).Inc()
}

func countRerankTier(fb rag.Fallback) {
	tier := "rerank"
	if fb != rag.FallbackNone {
		tier = string(fb)
	}
	observability.RerankFallbacks.WithLabelValues(tier).Inc()
}
