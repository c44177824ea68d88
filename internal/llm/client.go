// Package llm defines the narrow LLM collaborator boundary every stage
// drafts, evaluates and repairs through. spec.md treats the model provider
// as an external collaborator; this package is the seam, not an
// implementation of a provider. internal/llm/anthropic supplies the one
// concrete binding, grounded on pkg/llm/client.go's env-configured wrapper
// idiom with the bespoke gRPC streaming protocol stripped out.
package llm

import (
	"context"
	"errors"
)

// Error wraps any failure a Client implementation returns, mirroring the
// original pipeline's LLMError distinction between "provider misconfigured"
// and "provider call failed".
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string {
	if e.Stage != "" {
		return "llm: " + e.Stage + ": " + e.Err.Error()
	}
	return "llm: " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// ErrNotConfigured is returned by a Client when no credentials/provider are
// available, matching original_source's get_llm_client "unavailable"
// outcome that every node must treat as fatal, not a soft skip.
var ErrNotConfigured = errors.New("llm: provider not configured")

// ResponseFormat asks the provider to constrain output to a named JSON
// schema, grounded on original_source's json_response_format helper used by
// every node prompt.
type ResponseFormat struct {
	Name   string
	Schema map[string]any
}

// Request is one single-turn generation call. Stages never hold a
// multi-turn conversation; each node builds one complete prompt.
type Request struct {
	System         string
	Prompt         string
	MaxTokens      int
	Temperature    float64
	ResponseFormat *ResponseFormat
}

// Response is the raw text returned by the provider. Stages are
// responsible for extracting/validating JSON out of it themselves (the
// provider is not trusted to return clean JSON even when ResponseFormat is
// set), mirroring original_source's _extract_json_payload pattern.
type Response struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Client is the seam every stage drafts, evaluates, and repairs through.
type Client interface {
	Generate(ctx context.Context, req Request) (Response, error)
}
