package agent

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultMaxTokens = 8192

// AnthropicRunner calls the Messages API.
type AnthropicRunner struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	timeout   time.Duration
}

func NewAnthropicRunner(m Model, extra ...option.RequestOption) (*AnthropicRunner, error) {
	apiKey := m.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("model %q: anthropic api key is not set", m.Name)
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if m.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(m.BaseURL))
	}
	opts = append(opts, extra...)

	model := anthropic.Model(m.Model)
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}
	maxTokens := m.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &AnthropicRunner{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: int64(maxTokens),
		timeout:   timeoutOr(m.Timeout, 10*time.Minute),
	}, nil
}

func (r *AnthropicRunner) Run(ctx context.Context, req Request) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     r.model,
		MaxTokens: r.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	resp, err := r.client.Messages.New(ctx, params)
	if err != nil {
		return Result{}, fmt.Errorf("anthropic messages: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			out.WriteString(text.Text)
		}
	}
	return Result{Output: strings.TrimSpace(out.String())}, nil
}
