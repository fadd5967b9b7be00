package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	claudeBaseURL      = "https://api.anthropic.com"
	claudeAPIVersion   = "2023-06-01"
	claudeDefaultModel = "claude-sonnet-4-5"
)

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float32         `json:"temperature"`
	Messages    []claudeMessage `json:"messages"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type claudeErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// ClaudeProvider completes prompts with the Anthropic Messages API
type ClaudeProvider struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClaude creates a provider for the Anthropic Messages API
func NewClaude(opts Options, logger *zap.Logger) *ClaudeProvider {
	p := &ClaudeProvider{
		apiKey:     opts.APIKey,
		baseURL:    claudeBaseURL,
		model:      claudeDefaultModel,
		maxTokens:  opts.maxTokens(),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		logger:     logger,
	}
	if opts.BaseURL != "" {
		p.baseURL = strings.TrimSuffix(opts.BaseURL, "/")
	}
	if opts.Model != "" {
		p.model = opts.Model
	}
	return p
}

// Complete sends prompt as a single user message
func (p *ClaudeProvider) Complete(ctx context.Context, prompt string) (string, error) {
	text, err := p.complete(ctx, prompt)
	if err != nil {
		return "", &Error{Provider: "claude", Err: err}
	}
	return text, nil
}

func (p *ClaudeProvider) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(claudeRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		Temperature: defaultTemperature,
		Messages:    []claudeMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", claudeAPIVersion)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr claudeErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("status %d: %s: %s", resp.StatusCode, apiErr.Error.Type, apiErr.Error.Message)
		}
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	var out claudeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	var sb strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty completion")
	}

	p.logger.Info("received completion",
		zap.String("provider", "claude"),
		zap.String("model", p.model),
		zap.Int("input_tokens", out.Usage.InputTokens),
		zap.Int("output_tokens", out.Usage.OutputTokens),
	)

	return text, nil
}
