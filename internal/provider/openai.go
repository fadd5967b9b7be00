package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const copilotBaseURL = "https://api.githubcopilot.com"

// ChatProvider completes prompts against an OpenAI-compatible chat endpoint
type ChatProvider struct {
	name      string
	client    *openai.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

// NewOpenAI creates a provider for the OpenAI API
func NewOpenAI(opts Options, logger *zap.Logger) *ChatProvider {
	return newChat("openai", opts, "", openai.GPT4o, logger)
}

// NewCopilot creates a provider for the GitHub Copilot chat API. The API key
// is a GitHub personal access token.
func NewCopilot(opts Options, logger *zap.Logger) *ChatProvider {
	return newChat("copilot", opts, copilotBaseURL, openai.GPT4o, logger)
}

func newChat(name string, opts Options, baseURL, model string, logger *zap.Logger) *ChatProvider {
	config := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		baseURL = opts.BaseURL
	}
	if baseURL != "" {
		config.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	if opts.Model != "" {
		model = opts.Model
	}

	return &ChatProvider{
		name:      name,
		client:    openai.NewClientWithConfig(config),
		model:     model,
		maxTokens: opts.maxTokens(),
		logger:    logger,
	}
}

// Complete sends prompt as a single user message
func (p *ChatProvider) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   p.maxTokens,
		Temperature: defaultTemperature,
	})
	if err != nil {
		return "", &Error{Provider: p.name, Err: fmt.Errorf("failed to create chat completion: %w", err)}
	}

	if len(resp.Choices) == 0 {
		return "", &Error{Provider: p.name, Err: fmt.Errorf("no choices in response")}
	}

	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return "", &Error{Provider: p.name, Err: fmt.Errorf("empty completion")}
	}

	p.logger.Info("received completion",
		zap.String("provider", p.name),
		zap.String("model", p.model),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)

	return text, nil
}
