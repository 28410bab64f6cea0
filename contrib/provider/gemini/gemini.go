package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	hrerrors "github.com/marqode/hybridrag/errors"
	"github.com/marqode/hybridrag/message"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Config holds Gemini provider configuration
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int32
	Temperature float32
}

// DefaultConfig returns default Gemini configuration
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:      apiKey,
		Model:       "gemini-1.5-flash",
		MaxTokens:   2048,
		Temperature: 0.7,
	}
}

// Provider implements provider.Generator for Google Gemini.
type Provider struct {
	config *Config
	client *genai.Client
}

// New creates a new Gemini provider using the official SDK.
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil || config.APIKey == "" {
		return nil, fmt.Errorf("gemini API key not configured: %w", hrerrors.ErrInvalidInput)
	}
	if config.Model == "" {
		config.Model = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Provider{
		config: config,
		client: client,
	}, nil
}

// Name implements provider.Generator.
func (p *Provider) Name() string {
	return "gemini"
}

// Generate implements provider.Generator. System messages become the model's
// system instruction; the remaining messages are concatenated into one turn.
func (p *Provider) Generate(ctx context.Context, messages []*message.Message) (*message.Message, error) {
	model := p.client.GenerativeModel(p.config.Model)
	model.SetTemperature(p.config.Temperature)
	if p.config.MaxTokens > 0 {
		model.SetMaxOutputTokens(p.config.MaxTokens)
	}

	var systemParts []genai.Part
	var userParts []genai.Part
	for _, msg := range messages {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		if msg.Role == message.RoleSystem {
			systemParts = append(systemParts, genai.Text(msg.Content))
		} else {
			userParts = append(userParts, genai.Text(msg.Content))
		}
	}
	if len(systemParts) > 0 {
		model.SystemInstruction = &genai.Content{Parts: systemParts}
	}
	if len(userParts) == 0 {
		return nil, fmt.Errorf("no user content to send: %w", hrerrors.ErrInvalidInput)
	}

	resp, err := model.GenerateContent(ctx, userParts...)
	if err != nil {
		return nil, mapError(err)
	}

	text := extractText(resp)
	if text == "" {
		return nil, fmt.Errorf("gemini: %w", hrerrors.ErrEmptyResponse)
	}
	return message.NewMessage(message.RoleAssistant, text), nil
}

// Close releases the underlying API client.
func (p *Provider) Close() error {
	return p.client.Close()
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func mapError(err error) error {
	var apiErr *googleapi.Error
	if hrerrors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("gemini request timed out: %w", hrerrors.ErrBackendUnavailable)
	}
	if hrerrors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests:
			return fmt.Errorf("gemini: %s: %w", apiErr.Message, hrerrors.ErrQuotaExceeded)
		case http.StatusServiceUnavailable, http.StatusBadGateway:
			return fmt.Errorf("gemini: %s: %w", apiErr.Message, hrerrors.ErrBackendUnavailable)
		}
		return fmt.Errorf("gemini API error (status %d): %s", apiErr.Code, apiErr.Message)
	}
	return fmt.Errorf("gemini request failed: %v: %w", err, hrerrors.ErrBackendUnavailable)
}
