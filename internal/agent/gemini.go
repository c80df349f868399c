package agent

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiRunner calls Models.GenerateContent.
type GeminiRunner struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

func NewGeminiRunner(ctx context.Context, m Model) (*GeminiRunner, error) {
	apiKey := m.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("model %q: gemini api key is not set", m.Name)
	}

	cfg := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if m.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: m.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("model %q: create genai client: %w", m.Name, err)
	}

	model := m.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiRunner{
		client:  client,
		model:   model,
		timeout: timeoutOr(m.Timeout, 10*time.Minute),
	}, nil
}

func (r *GeminiRunner) Run(ctx context.Context, req Request) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var cfg *genai.GenerateContentConfig
	if req.SystemPrompt != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(req.SystemPrompt, genai.RoleUser),
		}
	}

	resp, err := r.client.Models.GenerateContent(ctx, r.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return Result{}, fmt.Errorf("gemini generate: %w", err)
	}
	return Result{Output: strings.TrimSpace(resp.Text())}, nil
}
