package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

const (
	defaultMaxTokens   = 1024
	defaultTemperature = 0.7
)

// CompletionProvider turns a prompt into completion text
type CompletionProvider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Error is returned for every failed completion
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s completion failed: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Options configure a provider. Empty fields take the provider's defaults.
type Options struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
}

func (o Options) maxTokens() int {
	if o.MaxTokens > 0 {
		return o.MaxTokens
	}
	return defaultMaxTokens
}

type factory func(opts Options, logger *zap.Logger) CompletionProvider

var registry = map[string]factory{
	"openai": func(opts Options, logger *zap.Logger) CompletionProvider {
		return NewOpenAI(opts, logger)
	},
	"copilot": func(opts Options, logger *zap.Logger) CompletionProvider {
		return NewCopilot(opts, logger)
	},
	"claude": func(opts Options, logger *zap.Logger) CompletionProvider {
		return NewClaude(opts, logger)
	},
}

// Names returns the supported provider tags in sorted order
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates the provider registered under tag
func New(tag string, opts Options, logger *zap.Logger) (CompletionProvider, error) {
	create, ok := registry[strings.ToLower(tag)]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (supported: %s)", tag, strings.Join(Names(), ", "))
	}
	if opts.APIKey == "" {
		return nil, &Error{Provider: tag, Err: fmt.Errorf("no API key configured")}
	}
	return create(opts, logger), nil
}
