package skills

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// recordingCompleter captures what the engine actually sends to the backend.
type recordingCompleter struct {
	system    string
	user      string
	maxTokens int
	reply     string
	err       error
}

func (r *recordingCompleter) Complete(_ context.Context, system, user string, maxTokens int) (string, error) {
	r.system = system
	r.user = user
	r.maxTokens = maxTokens
	return r.reply, r.err
}

func newEngine(c Completer) *Engine {
	return &Engine{Registry: NewRegistry(), Completer: c}
}

func TestRun_EmptySkillOrText(t *testing.T) {
	e := newEngine(&recordingCompleter{})

	cases := []Input{
		{Skill: "", Text: "hello"},
		{Skill: "summarize", Text: ""},
		{Skill: "   ", Text: "hello"},
		{Skill: "summarize", Text: "   "},
	}
	for _, in := range cases {
		if _, err := e.Run(context.Background(), in); !errors.Is(err, ErrEmptyInput) {
			t.Errorf("Run(%q, %q): got %v, want ErrEmptyInput", in.Skill, in.Text, err)
		}
	}
}

func TestRun_UnknownSkill(t *testing.T) {
	e := newEngine(&recordingCompleter{})

	_, err := e.Run(context.Background(), Input{Skill: "make-coffee", Text: "now"})
	if !errors.Is(err, ErrUnknownSkill) {
		t.Fatalf("got %v, want ErrUnknownSkill", err)
	}
	if !strings.Contains(err.Error(), "make-coffee") {
		t.Errorf("error should name the key: %v", err)
	}
}

func TestRun_TagsResultWithSkillKind(t *testing.T) {
	c := &recordingCompleter{reply: "short version"}
	e := newEngine(c)

	res, err := e.Run(context.Background(), Input{Skill: "summarize", Text: "a long story"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Kind != KindSummary {
		t.Errorf("kind: got %q", res.Kind)
	}
	if res.Content != "short version" {
		t.Errorf("content: got %q", res.Content)
	}
	if c.maxTokens != 512 {
		t.Errorf("maxTokens: got %d", c.maxTokens)
	}
	if res.Usage.TokensIn == 0 || res.Usage.TokensOut == 0 {
		t.Errorf("usage should be estimated, got %+v", res.Usage)
	}
}

func TestRun_TranslationTargetsLocale(t *testing.T) {
	cases := []struct {
		locale string
		want   string
	}{
		{"el", "el"},
		{"pt-BR", "pt-BR"},
		{"", "en"},
		{"not a locale!!", "en"},
	}
	for _, tc := range cases {
		c := &recordingCompleter{reply: "done"}
		e := newEngine(c)
		if _, err := e.Run(context.Background(), Input{Skill: "translate", Text: "good morning", Locale: tc.locale}); err != nil {
			t.Fatalf("Run(locale=%q): %v", tc.locale, err)
		}
		if !strings.Contains(c.system, "Target language: "+tc.want+".") {
			t.Errorf("locale %q: system prompt %q does not target %q", tc.locale, c.system, tc.want)
		}
	}
}

func TestRun_AnswerSkillFramesContext(t *testing.T) {
	c := &recordingCompleter{reply: "42"}
	e := newEngine(c)

	_, err := e.Run(context.Background(), Input{
		Skill:        "answer",
		Text:         "what is the meaning of life?",
		ContextTexts: []string{"first doc", "second doc"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasPrefix(c.user, "Context:\n- first doc\n- second doc\n") {
		t.Errorf("context block missing or misordered:\n%s", c.user)
	}
	if !strings.Contains(c.user, "Question: what is the meaning of life?") {
		t.Errorf("question missing:\n%s", c.user)
	}
}

func TestRun_ContextIgnoredByContextFreeSkills(t *testing.T) {
	c := &recordingCompleter{reply: "summary"}
	e := newEngine(c)

	_, err := e.Run(context.Background(), Input{
		Skill:        "summarize",
		Text:         "plain text",
		ContextTexts: []string{"should not appear"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if c.user != "plain text" {
		t.Errorf("user prompt: got %q", c.user)
	}
}

func TestRun_CompleterErrorBubbles(t *testing.T) {
	boom := errors.New("backend down")
	e := newEngine(&recordingCompleter{err: boom})

	if _, err := e.Run(context.Background(), Input{Skill: "explain", Text: "x"}); !errors.Is(err, boom) {
		t.Fatalf("got %v, want backend error", err)
	}
}

func TestRegistry_ListIsStableAndComplete(t *testing.T) {
	r := NewRegistry()
	list := r.List()
	if len(list) != 7 {
		t.Fatalf("len: got %d", len(list))
	}
	if list[0].Key != "summarize" || list[len(list)-1].Key != "speech" {
		t.Errorf("order: got %q..%q", list[0].Key, list[len(list)-1].Key)
	}
	for _, s := range list {
		got, ok := r.Get(s.Key)
		if !ok || got.Key != s.Key {
			t.Errorf("Get(%q): ok=%v", s.Key, ok)
		}
		if s.UsesContext != (s.Key == "answer") {
			t.Errorf("%q: UsesContext=%v", s.Key, s.UsesContext)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("empty: got %d", got)
	}
	// "hello world" has 2 words and 11 chars: (2 + 11/4) / 2 = 2.
	if got := EstimateTokens("hello world"); got != 2 {
		t.Errorf("hello world: got %d", got)
	}
	short := EstimateTokens("one two three")
	long := EstimateTokens(strings.Repeat("one two three ", 50))
	if long <= short {
		t.Errorf("estimate should grow with input: %d <= %d", long, short)
	}
}
