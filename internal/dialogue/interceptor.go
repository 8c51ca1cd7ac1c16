package dialogue

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Verdict is the result of classifying raw user text.
type Verdict int

const (
	// Passthrough forwards the text to the transition table.
	Passthrough Verdict = iota
	// Override preempts the current flow with the safety disclaimer.
	Override
)

func (v Verdict) String() string {
	if v == Override {
		return "override"
	}
	return "passthrough"
}

// DefaultPhrases are the phrases that signal a request for professional
// advice.
var DefaultPhrases = []string{
	"should i",
	"can i",
	"is it legal to",
	"opinion",
	"advice",
	"what do you think",
	"draft a response",
}

// Disclaimer is appended after an override.
const Disclaimer = "I'm not able to give legal, tax or financial advice. I've notified your advisor, and a human will follow up with you shortly."

// Interceptor flags advice-seeking text by case-insensitive substring match
// against a fixed phrase list.
type Interceptor struct {
	phrases []string
}

// NewInterceptor builds an interceptor. An empty list falls back to
// DefaultPhrases.
func NewInterceptor(phrases []string) *Interceptor {
	if len(phrases) == 0 {
		phrases = DefaultPhrases
	}
	normalized := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			normalized = append(normalized, p)
		}
	}
	return &Interceptor{phrases: normalized}
}

// Classify returns Override when raw contains any of the phrases.
func (i *Interceptor) Classify(raw string) Verdict {
	text := strings.ToLower(raw)
	for _, p := range i.phrases {
		if strings.Contains(text, p) {
			return Override
		}
	}
	return Passthrough
}

// Phrases returns a copy of the configured phrase list.
func (i *Interceptor) Phrases() []string {
	out := make([]string, len(i.phrases))
	copy(out, i.phrases)
	return out
}

type phraseFile struct {
	Phrases []string `yaml:"phrases"`
}

// LoadPhrases reads a YAML file of the form `phrases: [...]`.
func LoadPhrases(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read phrase file: %w", err)
	}
	var f phraseFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse phrase file: %w", err)
	}
	if len(f.Phrases) == 0 {
		return nil, fmt.Errorf("phrase file %s lists no phrases", path)
	}
	return f.Phrases, nil
}
