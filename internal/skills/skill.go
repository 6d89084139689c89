// Package skills holds the closed set of text skills the gateway can run:
// what each one asks of the model, how its output is tagged, and how its
// token usage is estimated.
package skills

// Kind tags a skill result so callers can render it without sniffing the
// text. The set is closed; adding a skill means adding a constant here.
type Kind string

const (
	KindSummary     Kind = "summary"
	KindBullets     Kind = "bullets"
	KindExplanation Kind = "explanation"
	KindTasks       Kind = "tasks"
	KindTranslation Kind = "translation"
	KindAnswer      Kind = "answer"
	KindSpeechText  Kind = "speech_text"
)

// Skill is one registered capability. System is the prompt that frames the
// model call; MaxTokens caps the completion; UsesContext marks skills whose
// prompt is built from retrieved documents.
type Skill struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Kind        Kind   `json:"kind"`
	System      string `json:"-"`
	MaxTokens   int    `json:"-"`
	UsesContext bool   `json:"-"`
}

// Registry is the set of available skills, fixed at construction. It is
// read-only after NewRegistry and safe for concurrent use.
type Registry struct {
	byKey map[string]Skill
	order []string
}

// NewRegistry returns the default skill set.
func NewRegistry() *Registry {
	r := &Registry{byKey: map[string]Skill{}}
	for _, s := range []Skill{
		{
			Key:       "summarize",
			Title:     "Summarize text",
			Kind:      KindSummary,
			System:    "You are a precise summarizer. Produce a short, faithful summary of the user's text. Do not add information that is not in the text.",
			MaxTokens: 512,
		},
		{
			Key:       "bullets",
			Title:     "Key points as bullets",
			Kind:      KindBullets,
			System:    "Extract the key points from the user's text as a flat bullet list, one point per line, most important first.",
			MaxTokens: 512,
		},
		{
			Key:       "explain",
			Title:     "Explain simply",
			Kind:      KindExplanation,
			System:    "Explain the user's text in plain language a newcomer can follow. Keep technical terms only where they are essential, and define them.",
			MaxTokens: 768,
		},
		{
			Key:       "tasks",
			Title:     "Extract action items",
			Kind:      KindTasks,
			System:    "Extract concrete action items from the user's text. Output one task per line, starting with a verb. Skip anything that is not actionable.",
			MaxTokens: 512,
		},
		{
			Key:       "translate",
			Title:     "Translate",
			Kind:      KindTranslation,
			System:    "Translate the user's text into the target language. Preserve tone and formatting. Output only the translation.",
			MaxTokens: 1024,
		},
		{
			Key:         "answer",
			Title:       "Answer from context",
			Kind:        KindAnswer,
			System:      "Answer the user's question using only the provided context. If the context does not contain the answer, say so briefly instead of guessing.",
			MaxTokens:   768,
			UsesContext: true,
		},
		{
			Key:       "speech",
			Title:     "Prepare for speech",
			Kind:      KindSpeechText,
			System:    "Rewrite the user's text so it reads naturally when spoken aloud: expand abbreviations, spell out numbers, and remove markup.",
			MaxTokens: 768,
		},
	} {
		r.byKey[s.Key] = s
		r.order = append(r.order, s.Key)
	}
	return r
}

// Get returns the skill for key. ok is false for unknown keys.
func (r *Registry) Get(key string) (Skill, bool) {
	s, ok := r.byKey[key]
	return s, ok
}

// List returns all skills in registration order.
func (r *Registry) List() []Skill {
	out := make([]Skill, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.byKey[k])
	}
	return out
}
