package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	hrerrors "github.com/marqode/hybridrag/errors"
	"github.com/marqode/hybridrag/message"
	"github.com/ollama/ollama/api"
)

// Config holds Ollama provider configuration
type Config struct {
	Host        string // empty means OLLAMA_HOST or the default local port
	Model       string
	Temperature float64
	NumPredict  int
}

// DefaultConfig returns default Ollama configuration
func DefaultConfig() *Config {
	return &Config{
		Model:       "llama3",
		Temperature: 0.2,
		NumPredict:  1024,
	}
}

// Provider implements provider.Generator for a local Ollama server.
type Provider struct {
	config *Config
	client *api.Client
}

// New creates a new Ollama provider.
func New(config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Model == "" {
		config.Model = "llama3"
	}

	client, err := newClient(config.Host)
	if err != nil {
		return nil, err
	}
	return &Provider{
		config: config,
		client: client,
	}, nil
}

func newClient(host string) (*api.Client, error) {
	if host == "" {
		return api.ClientFromEnvironment()
	}
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parse ollama host: %w", err)
	}
	return api.NewClient(base, http.DefaultClient), nil
}

// Name implements provider.Generator.
func (p *Provider) Name() string {
	return "ollama"
}

// Generate implements provider.Generator.
func (p *Provider) Generate(ctx context.Context, messages []*message.Message) (*message.Message, error) {
	chatMessages := make([]api.Message, 0, len(messages))
	for _, msg := range messages {
		chatMessages = append(chatMessages, api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	stream := false
	req := &api.ChatRequest{
		Model:    p.config.Model,
		Messages: chatMessages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": p.config.Temperature,
			"num_predict": p.config.NumPredict,
		},
	}

	var b strings.Builder
	err := p.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		_, werr := b.WriteString(resp.Message.Content)
		return werr
	})
	if err != nil {
		return nil, mapError(err)
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return nil, fmt.Errorf("ollama: %w", hrerrors.ErrEmptyResponse)
	}
	return message.NewMessage(message.RoleAssistant, text), nil
}

func mapError(err error) error {
	var urlErr *url.Error
	if hrerrors.As(err, &urlErr) {
		return fmt.Errorf("ollama not reachable: %v: %w", urlErr, hrerrors.ErrBackendUnavailable)
	}
	var statusErr api.StatusError
	if hrerrors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusServiceUnavailable {
			return fmt.Errorf("ollama: %v: %w", statusErr, hrerrors.ErrBackendUnavailable)
		}
		return fmt.Errorf("ollama API error: %w", err)
	}
	return fmt.Errorf("ollama request failed: %v: %w", err, hrerrors.ErrBackendUnavailable)
}
