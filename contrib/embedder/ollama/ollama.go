package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/marqode/hybridrag/vector"
	"github.com/ollama/ollama/api"
)

// Embedder implements vector.Embedder using a local Ollama server.
type Embedder struct {
	client    *api.Client
	model     string
	dimension int
}

// New creates an Ollama embedder. host may be empty, in which case the
// OLLAMA_HOST environment variable (or the default localhost port) is used.
func New(host, model string, dimension int) (*Embedder, error) {
	client, err := newClient(host)
	if err != nil {
		return nil, err
	}
	return &Embedder{
		client:    client,
		model:     model,
		dimension: dimension,
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

// Dimension return number of embedding dimensions
func (e *Embedder) Dimension() int {
	return e.dimension
}

// Embed converts text to a vector embedding
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings(ctx, &api.EmbeddingRequest{
		Model:  e.model,
		Prompt: text,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}

	vec := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// EmbedBatch converts multiple texts to embeddings
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

var _ vector.Embedder = (*Embedder)(nil)
