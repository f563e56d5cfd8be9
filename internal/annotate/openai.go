// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package annotate enriches papers with generated text: a short summary
// in a configurable language and a project-relevance note. Both call an
// OpenAI-compatible chat completions endpoint through a Completer.
package annotate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/arxiv-notifier/internal/httputil"
	"github.com/pdiddy/arxiv-notifier/pkg/types"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-3.5-turbo"
)

// Annotator produces one optional annotation per paper. An empty result
// with a nil error means no annotation.
type Annotator interface {
	Name() string
	Annotate(ctx context.Context, p types.Paper) (string, error)
}

// CompletionOptions tune a single completion call.
type CompletionOptions struct {
	MaxTokens   int
	Temperature float64
}

// Completer sends a system and user prompt and returns the reply text.
type Completer interface {
	Complete(ctx context.Context, system, user string, opts CompletionOptions) (string, error)
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// OpenAIClient calls the Chat Completions API.
type OpenAIClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
	log        zerolog.Logger
}

// NewOpenAIClient builds a client from the AI settings. Empty model and
// base URL fall back to the defaults.
func NewOpenAIClient(cfg types.AIConfig, timeout time.Duration, log zerolog.Logger) *OpenAIClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIClient{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     cfg.APIKey,
		model:      model,
		baseURL:    baseURL,
		log:        log.With().Str("component", "openai").Logger(),
	}
}

// Model returns the model identifier being used.
func (c *OpenAIClient) Model() string { return c.model }

// Complete sends one chat completion request and returns the trimmed
// content of the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, system, user string, opts CompletionOptions) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai: marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("openai: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, 0, c.log)
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("openai: decoding response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("openai: response %s has no choices", out.ID)
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
