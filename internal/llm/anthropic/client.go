// Package anthropic is the one concrete internal/llm.Client binding,
// wired against github.com/anthropics/anthropic-sdk-go the way
// pkg/llm/client.go wires its provider: environment-configured model name,
// and max-tokens defaults, constructed once at startup.
package anthropic

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/researchops/runcore/internal/llm"
)

// Config configures the default model/max-tokens a Client falls
// back to when a Request leaves them zero-valued.
type Config struct {
	APIKey         string
	Model          string
	DefaultMaxTokens int
}

// Client adapts anthropic-sdk-go's Messages API to llm.Client.
type Client struct {
	sdk   anthropic.Client
	model string
	defaultMaxTokens int
}

// NewClient builds a Client from explicit config, falling back to
// ANTHROPIC_API_KEY/ANTHROPIC_MODEL env vars the way pkg/llm.NewClient reads
// GEMINI_MODEL/GEMINI_TEMPERATURE, so deployments can configure the
// provider without code changes.
func NewClient(cfg Config) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY not set", llm.ErrNotConfigured)
	}

	model := cfg.Model
	if model == "" {
		model = os.Getenv("ANTHROPIC_MODEL")
	}
	if model == "" {
		model = "claude-sonnet-4-5"
	}

	maxTokens := cfg.DefaultMaxTokens
	if maxTokens <= 0 {
		if raw := os.Getenv("ANTHROPIC_MAX_TOKENS"); raw != "" {
			if v, err := strconv.Atoi(raw); err == nil && v > 0 {
				maxTokens = v
			}
		}
	}
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	return &Client{
		sdk:              anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:            model,
		defaultMaxTokens: maxTokens,
	}, nil
}

// Generate sends one single-turn message and returns the concatenated text
// blocks of the reply. ResponseFormat is relayed as a prompt instruction
// (the Anthropic Messages API has no native structured-output mode at the
// time this adapter was written), matching the way every orchestrator node
// prompt already asks for "ONLY valid JSON" rather than relying on the
// provider to enforce a schema.
func (c *Client) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = int64(c.defaultMaxTokens)
	}

	prompt := req.Prompt
	if req.ResponseFormat != nil {
		prompt += fmt.Sprintf("\n\nRespond with ONLY valid JSON matching the %q schema. No commentary, no markdown fences.", req.ResponseFormat.Name)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	msg, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return llm.Response{}, &llm.Error{Err: fmt.Errorf("anthropic generate: %w", err)}
	}

	var text string
	for _, block := range msg.Content {
		if tb := block.AsText(); tb.Text != "" {
			text += tb.Text
		}
	}

	return llm.Response{
		Text:         text,
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}

var _ llm.Client = (*Client)(nil)
