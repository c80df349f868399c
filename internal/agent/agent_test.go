package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveModel(t *testing.T) {
	t.Parallel()

	models := map[string]Model{
		"zeta":  {Name: "zeta"},
		"alpha": {Name: "alpha"},
	}

	m, err := ResolveModel(models, "zeta")
	require.NoError(t, err)
	assert.Equal(t, "zeta", m.Name)

	m, err = ResolveModel(models, "unknown")
	require.NoError(t, err)
	assert.Equal(t, "alpha", m.Name, "falls back to first sorted name")

	m, err = ResolveModel(models, "")
	require.NoError(t, err)
	assert.Equal(t, "alpha", m.Name)

	_, err = ResolveModel(nil, "zeta")
	assert.True(t, errors.Is(err, ErrNoModelConfigured))
}

func TestAnthropicRunner(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "  all done  "}],
			"stop_reason": "end_turn",
			"stop_sequence": null,
			"usage": {"input_tokens": 3, "output_tokens": 2}
		}`)
	}))
	defer srv.Close()

	r, err := NewAnthropicRunner(Model{
		Name:    "claude",
		Model:   "claude-test",
		APIKey:  "test-key",
		BaseURL: srv.URL,
	}, option.WithMaxRetries(0))
	require.NoError(t, err)

	res, err := r.Run(context.Background(), Request{SystemPrompt: "be brief", Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "all done", res.Output)
	assert.False(t, res.IsError)

	assert.Equal(t, "claude-test", body["model"])
	assert.NotNil(t, body["system"])
}

func TestAnthropicRunnerRequiresKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := NewAnthropicRunner(Model{Name: "claude"})
	assert.Error(t, err)
}

func TestGeminiRunner(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-test:generateContent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"candidates": [{
				"content": {"role": "model", "parts": [{"text": "gemini says hi"}]},
				"finishReason": "STOP"
			}]
		}`)
	}))
	defer srv.Close()

	r, err := NewGeminiRunner(context.Background(), Model{
		Name:    "gem",
		Model:   "gemini-test",
		APIKey:  "test-key",
		BaseURL: srv.URL,
	})
	require.NoError(t, err)

	res, err := r.Run(context.Background(), Request{SystemPrompt: "sys", Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "gemini says hi", res.Output)
}

type staticRunner struct{ out string }

func (s staticRunner) Run(context.Context, Request) (Result, error) {
	return Result{Output: s.out}, nil
}

func TestMux(t *testing.T) {
	t.Parallel()

	_, err := NewMux(context.Background(), map[string]Model{"x": {Provider: "carrier-pigeon"}}, nil)
	assert.ErrorContains(t, err, "unknown provider")

	mux, err := NewMux(context.Background(), map[string]Model{
		"local": {Provider: ProviderExec, Entrypoint: "/bin/true"},
	}, nil)
	require.NoError(t, err)
	mux.register(Model{Name: "static"}, staticRunner{out: "ok"})

	assert.Equal(t, []string{"local", "static"}, mux.Models())

	m, err := mux.Resolve("static")
	require.NoError(t, err)
	assert.Equal(t, "static", m.Name)

	res, err := mux.Run(context.Background(), Request{Model: "static"})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Output)

	_, err = mux.Run(context.Background(), Request{Model: "missing"})
	assert.Error(t, err)
}
