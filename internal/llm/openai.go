package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// Z.AI defaults. Any OpenAI-compatible endpoint works with a different
// base URL and model.
const (
	DefaultZAIBaseURL = "https://api.z.ai/api/paas/v4"
	DefaultZAIModel   = "glm-4.7"
)

// OpenAICompatProvider implements Provider for any OpenAI-compatible API.
// Works with Z.AI, Moonshot, DeepSeek, and others.
type OpenAICompatProvider struct {
	name       string
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	// sem bounds concurrent requests; nil means unbounded.
	sem chan struct{}
}

// OpenAICompatOptions tunes an OpenAICompatProvider.
type OpenAICompatOptions struct {
	Timeout       time.Duration
	MaxConcurrent int
	HTTPClient    *http.Client
}

// NewOpenAICompat creates a provider for OpenAI-compatible APIs.
func NewOpenAICompat(name, baseURL, apiKey, model string, opts OpenAICompatOptions) *OpenAICompatProvider {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 2 * time.Minute
		}
		client = &http.Client{Timeout: timeout}
	}
	p := &OpenAICompatProvider{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: client,
	}
	if opts.MaxConcurrent > 0 {
		p.sem = make(chan struct{}, opts.MaxConcurrent)
	}
	return p
}

// NewZAI creates an OpenAI-compatible provider with Z.AI defaults.
func NewZAI(apiKey, model string, opts OpenAICompatOptions) *OpenAICompatProvider {
	if model == "" {
		model = DefaultZAIModel
	}
	return NewOpenAICompat("zai", DefaultZAIBaseURL, apiKey, model, opts)
}

func (p *OpenAICompatProvider) Name() string { return p.name }

func (p *OpenAICompatProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if p.sem != nil {
		select {
		case p.sem <- struct{}{}:
			defer func() { <-p.sem }()
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	// System prompt first, then the conversation as-is.
	messages := make([]Message, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, Message{Role: "system", Content: req.System})
	}
	messages = append(messages, req.Messages...)

	body := openAIRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      false,
	}

	resp, err := p.do(ctx, body)
	if err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) {
			return nil, pe
		}
		return nil, &ProviderError{
			Message:  err.Error(),
			Provider: p.name,
		}
	}
	return resp, nil
}

type openAIRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Stream      bool      `json:"stream"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// do makes one HTTP request to the chat completions endpoint.
func (p *OpenAICompatProvider) do(ctx context.Context, body openAIRequest) (*CompletionResponse, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(string(respBody), 500)),
			StatusCode: resp.StatusCode,
			Provider:   p.name,
		}
	}

	var oaiResp openAIResponse
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(oaiResp.Choices) == 0 {
		return nil, fmt.Errorf("response has no choices")
	}

	return &CompletionResponse{
		Content:      oaiResp.Choices[0].Message.Content,
		Model:        oaiResp.Model,
		InputTokens:  oaiResp.Usage.PromptTokens,
		OutputTokens: oaiResp.Usage.CompletionTokens,
		StopReason:   oaiResp.Choices[0].FinishReason,
	}, nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
