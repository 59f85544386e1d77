// Package model wraps the LLM providers behind one request/response
// contract: plain text completions, image inputs, and declared tool
// calls. Provider choice follows the configured model name.
package model

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNoAPIKey      = errors.New("API key not configured")
	ErrProviderError = errors.New("provider error")
)

// Image is an inline image input.
type Image struct {
	MIME string
	Data []byte
}

// Tool declares one callable function with a JSON schema for its
// parameters.
type Tool struct {
	Name        string
	Description string
	// Parameters is a JSON schema object: {"type":"object","properties":...}.
	Parameters map[string]any
}

// Call is one function call returned by the model.
type Call struct {
	Name string
	Args map[string]any
}

// Request is a single model invocation.
type Request struct {
	System string
	Prompt string
	Images []Image
	Tools  []Tool
}

// Result carries the model's text and any function calls, in the
// order the model emitted them.
type Result struct {
	Text  string
	Calls []Call
}

// Invoker sends requests to one concrete model.
type Invoker interface {
	Name() string
	Model() string
	Invoke(ctx context.Context, req Request) (*Result, error)
}

// Provider kinds, keyed off model-name prefixes.
const (
	KindAnthropic = "anthropic"
	KindGoogle    = "google"
	KindOpenAI    = "openai"
)

// kindForModel maps a model name to its provider kind. Unrecognized
// names default to Google, the family the default configuration uses.
func kindForModel(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimPrefix(n, "models/")
	switch {
	case strings.HasPrefix(n, "claude"):
		return KindAnthropic
	case strings.HasPrefix(n, "gpt"), strings.HasPrefix(n, "chatgpt"),
		strings.HasPrefix(n, "o1"), strings.HasPrefix(n, "o3"), strings.HasPrefix(n, "o4"):
		return KindOpenAI
	case strings.HasPrefix(n, "gemini"):
		return KindGoogle
	default:
		return KindGoogle
	}
}

// ForModel builds an invoker for the named model. Construction fails
// fast when the matching provider has no API key.
func ForModel(ctx context.Context, name string) (Invoker, error) {
	switch kindForModel(name) {
	case KindAnthropic:
		return NewAnthropic(name)
	case KindOpenAI:
		return NewOpenAI(name)
	default:
		return NewGoogle(ctx, name)
	}
}
