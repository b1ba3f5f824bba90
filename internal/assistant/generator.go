// Package assistant holds the AI gateways: category suggestion and the
// financial chat agent. Both talk to a text-generation backend through the
// Generator port and degrade to fixed answers when it fails.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bizbalance/internal/core"
)

// ErrDisabled is returned by the generator used when no backend is set up.
var ErrDisabled = errors.New("text generation disabled")

// Request is one generation call. History holds the prior turns, oldest
// first; Prompt is the newest user message.
type Request struct {
	System  string
	History []core.Message
	Prompt  string
}

// Generator is the port implemented by text-generation backends.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Backend names accepted by NewGenerator.
const (
	BackendOpenAI = "openai"
	BackendOllama = "ollama"
	BackendNone   = "none"
)

// Settings selects and configures a backend.
type Settings struct {
	Backend   string
	APIKey    string
	BaseURL   string
	Model     string
	OllamaURL string
	Timeout   time.Duration
}

// NewGenerator builds the configured backend.
func NewGenerator(s Settings) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(s.Backend)) {
	case "", BackendOpenAI:
		if s.APIKey == "" {
			return nil, errors.New("openai backend requires AI_API_KEY")
		}
		return NewOpenAIGenerator(s.APIKey, s.BaseURL, s.Model), nil
	case BackendOllama:
		if s.OllamaURL == "" {
			return nil, errors.New("ollama backend requires OLLAMA_URL")
		}
		return NewOllamaGenerator(s.OllamaURL, s.Model, s.Timeout), nil
	case BackendNone:
		return Disabled{}, nil
	}
	return nil, fmt.Errorf("unknown AI backend %q", s.Backend)
}

// Disabled always fails with ErrDisabled.
type Disabled struct{}

func (Disabled) Generate(context.Context, Request) (string, error) {
	return "", ErrDisabled
}

// GeneratorFunc adapts a function to the Generator port.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
