package claude

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	hrerrors "github.com/marqode/hybridrag/errors"
	"github.com/marqode/hybridrag/message"
)

// Config holds Claude provider configuration
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int64
	Temperature float64
}

// DefaultConfig returns default Claude configuration
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:      apiKey,
		Model:       "claude-3-5-sonnet-20241022",
		MaxTokens:   4096,
		Temperature: 0.7,
	}
}

// Provider implements provider.Generator for Anthropic Claude.
type Provider struct {
	config *Config
	client anthropic.Client
}

// New creates a new Claude provider using the official SDK.
func New(config *Config) (*Provider, error) {
	if config == nil || config.APIKey == "" {
		return nil, fmt.Errorf("claude API key not configured: %w", hrerrors.ErrInvalidInput)
	}
	if config.Model == "" {
		config.Model = "claude-3-5-sonnet-20241022"
	}

	options := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
	}
	if config.BaseURL != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}

	return &Provider{
		config: config,
		client: anthropic.NewClient(options...),
	}, nil
}

// Name implements provider.Generator.
func (p *Provider) Name() string {
	return "claude"
}

// Generate implements provider.Generator.
func (p *Provider) Generate(ctx context.Context, messages []*message.Message) (*message.Message, error) {
	var systemPrompts []string
	conversation := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case message.RoleSystem:
			systemPrompts = append(systemPrompts, msg.Content)
		case message.RoleUser:
			conversation = append(conversation,
				anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case message.RoleAssistant:
			conversation = append(conversation,
				anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.config.Model),
		Messages:  conversation,
		MaxTokens: p.config.MaxTokens,
	}
	if len(systemPrompts) > 0 {
		params.System = []anthropic.TextBlockParam{
			{Text: strings.Join(systemPrompts, "\n")},
		}
	}
	if p.config.Temperature > 0 {
		params.Temperature = param.NewOpt(p.config.Temperature)
	}

	apiMessage, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, mapError(err)
	}

	var b strings.Builder
	for _, content := range apiMessage.Content {
		if content.Type == "text" {
			b.WriteString(content.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return nil, fmt.Errorf("claude: %w", hrerrors.ErrEmptyResponse)
	}

	return message.NewMessage(message.RoleAssistant, text), nil
}

func mapError(err error) error {
	var apiErr *anthropic.Error
	if hrerrors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			return fmt.Errorf("claude: %v: %w", apiErr, hrerrors.ErrQuotaExceeded)
		case http.StatusServiceUnavailable, http.StatusBadGateway:
			return fmt.Errorf("claude: %v: %w", apiErr, hrerrors.ErrBackendUnavailable)
		}
		return fmt.Errorf("claude API error: %w", apiErr)
	}
	return fmt.Errorf("claude request failed: %v: %w", err, hrerrors.ErrBackendUnavailable)
}
