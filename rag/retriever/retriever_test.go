package retriever

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/marqode/hybridrag/contrib/vector/inmemory"
	"github.com/marqode/hybridrag/errors"
	"github.com/marqode/hybridrag/rag/chunking"
	"github.com/marqode/hybridrag/rag/document"
	"github.com/marqode/hybridrag/rag/reranker"
)

func newTestRetriever(opts ...Option) *Retriever {
	return New(
		inmemory.NewInMemoryVectorStore(),
		&keywordEmbedder{},
		chunking.NewWordChunker(chunking.WithChunkWords(12), chunking.WithOverlapWords(2)),
		reranker.NewCosineReranker(),
		opts...,
	)
}

func TestRetrieverIndexAndSearch(t *testing.T) {
	ctx := context.Background()
	ret := newTestRetriever(WithRerankTopK(2))

	err := ret.IndexDocuments(ctx,
		document.Document{ID: "shipping", Title: "Shipping", Content: "All shipping policy details and delivery timelines."},
		document.Document{ID: "returns", Title: "Returns", Content: "Return windows and refund handling."},
	)
	if err != nil {
		t.Fatalf("IndexDocuments error: %v", err)
	}

	count, err := ret.Count(ctx)
	if err != nil {
		t.Fatalf("Count error: %v", err)
	}
	if count == 0 {
		t.Fatal("expected indexed chunks")
	}

	results, err := ret.Search(ctx, "What is the shipping policy?")
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected search results")
	}
	if results[0].Chunk.DocumentID != "shipping" {
		t.Errorf("top chunk from %q, want shipping document", results[0].Chunk.DocumentID)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not sorted by score at %d", i)
		}
	}

	doc, ok := ret.Document("shipping")
	if !ok || doc.Title != "Shipping" {
		t.Errorf("Document lookup = (%v, %v)", doc.Title, ok)
	}
}

func TestRetrieverSearchFailureWrapsSentinel(t *testing.T) {
	ctx := context.Background()
	ret := New(
		inmemory.NewInMemoryVectorStore(),
		&failingEmbedder{},
		chunking.NewWordChunker(),
		reranker.NewCosineReranker(),
	)

	if err := ret.IndexDocuments(ctx, document.Document{ID: "d", Content: "content"}); !errors.Is(err, errors.ErrRetrievalFailure) {
		t.Errorf("IndexDocuments error = %v, want ErrRetrievalFailure", err)
	}
	if _, err := ret.Search(ctx, "query"); !errors.Is(err, errors.ErrRetrievalFailure) {
		t.Errorf("Search error = %v, want ErrRetrievalFailure", err)
	}
}

func TestRetrieverClear(t *testing.T) {
	ctx := context.Background()
	ret := newTestRetriever()

	if err := ret.IndexDocuments(ctx, document.Document{ID: "d", Content: "shipping policy content"}); err != nil {
		t.Fatalf("IndexDocuments error: %v", err)
	}
	if err := ret.Clear(ctx); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	count, err := ret.Count(ctx)
	if err != nil {
		t.Fatalf("Count error: %v", err)
	}
	if count != 0 {
		t.Errorf("Count after clear = %d, want 0", count)
	}
}

type keywordEmbedder struct{}

var keywordSpace = []string{"shipping", "policy", "delivery", "return", "refund"}

func (k *keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, len(keywordSpace))
	lower := strings.ToLower(text)
	for idx, kw := range keywordSpace {
		if strings.Contains(lower, kw) {
			vec[idx] = 1
		}
	}
	return vec, nil
}

func (k *keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := k.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (k *keywordEmbedder) Dimension() int { return len(keywordSpace) }

type failingEmbedder struct{}

func (f *failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("embedder offline")
}

func (f *failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("embedder offline")
}

func (f *failingEmbedder) Dimension() int { return 0 }
