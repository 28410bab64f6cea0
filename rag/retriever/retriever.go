package retriever

import (
	"context"
	"fmt"
	"sync"

	"github.com/marqode/hybridrag/errors"
	"github.com/marqode/hybridrag/rag/chunking"
	"github.com/marqode/hybridrag/rag/document"
	"github.com/marqode/hybridrag/rag/reranker"
	"github.com/marqode/hybridrag/vector"
)

// Config controls retrieval behaviour.
type Config struct {
	SearchTopK int
	RerankTopK int
}

// Option customizes retriever config.
type Option func(*Config)

// WithSearchTopK sets the number of neighbors fetched from the vector store.
func WithSearchTopK(k int) Option {
	return func(cfg *Config) {
		if k > 0 {
			cfg.SearchTopK = k
		}
	}
}

// WithRerankTopK sets how many chunks survive reranking.
func WithRerankTopK(k int) Option {
	return func(cfg *Config) {
		if k > 0 {
			cfg.RerankTopK = k
		}
	}
}

// Retriever coordinates chunking, embedding, similarity search, and reranking.
// Failures during indexing or search wrap errors.ErrRetrievalFailure so the
// pipeline can degrade to ungrounded mode.
type Retriever struct {
	store    vector.VectorStore
	embedder vector.Embedder
	chunker  chunking.Chunker
	reranker reranker.Reranker
	cfg      Config

	mu        sync.RWMutex
	documents map[string]document.Document
	chunks    map[string]document.Chunk
}

// New creates a retriever.
func New(store vector.VectorStore, emb vector.Embedder, chunker chunking.Chunker, rer reranker.Reranker, opts ...Option) *Retriever {
	cfg := Config{
		SearchTopK: 8,
		RerankTopK: 5,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Retriever{
		store:     store,
		embedder:  emb,
		chunker:   chunker,
		reranker:  rer,
		cfg:       cfg,
		documents: make(map[string]document.Document),
		chunks:    make(map[string]document.Chunk),
	}
}

// IndexDocuments ingests documents -> chunks -> embeddings -> vector store.
func (r *Retriever) IndexDocuments(ctx context.Context, docs ...document.Document) error {
	if r.store == nil || r.embedder == nil || r.chunker == nil {
		return fmt.Errorf("retriever not fully configured: %w", errors.ErrRetrievalFailure)
	}

	for _, doc := range docs {
		document.EnsureDocumentID(&doc)
		chunks, err := r.chunker.Chunk(ctx, doc)
		if err != nil {
			return fmt.Errorf("chunk document %s: %v: %w", doc.ID, err, errors.ErrRetrievalFailure)
		}

		for _, chunk := range chunks {
			vec, err := r.embedder.Embed(ctx, chunk.Content)
			if err != nil {
				return fmt.Errorf("embed chunk %s: %v: %w", chunk.ID, err, errors.ErrRetrievalFailure)
			}
			embedding := &vector.Embedding{
				ID:     chunk.ID,
				Vector: vec,
				Text:   chunk.Content,
			}
			if err := r.store.AddEmbedding(ctx, embedding); err != nil {
				return fmt.Errorf("store chunk %s: %v: %w", chunk.ID, err, errors.ErrRetrievalFailure)
			}

			r.mu.Lock()
			r.chunks[chunk.ID] = chunk
			r.documents[doc.ID] = doc.Clone()
			r.mu.Unlock()
		}
	}
	return nil
}

// Search executes semantic search followed by reranking.
func (r *Retriever) Search(ctx context.Context, query string) ([]reranker.Result, error) {
	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %v: %w", err, errors.ErrRetrievalFailure)
	}
	hits, err := r.store.Search(ctx, queryVec, r.cfg.SearchTopK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %v: %w", err, errors.ErrRetrievalFailure)
	}

	candidates := make([]reranker.Candidate, 0, len(hits))
	for _, hit := range hits {
		chunk, ok := r.lookupChunk(hit.ID)
		if !ok {
			continue
		}
		candidates = append(candidates, reranker.Candidate{
			Chunk:  chunk,
			Vector: hit.Vector,
		})
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	if r.reranker == nil {
		output := make([]reranker.Result, 0, len(candidates))
		for _, cand := range candidates {
			output = append(output, reranker.Result{Chunk: cand.Chunk})
		}
		return output, nil
	}

	reranked, err := r.reranker.Rank(ctx, queryVec, candidates)
	if err != nil {
		return nil, fmt.Errorf("rerank: %v: %w", err, errors.ErrRetrievalFailure)
	}

	if r.cfg.RerankTopK > 0 && len(reranked) > r.cfg.RerankTopK {
		reranked = reranked[:r.cfg.RerankTopK]
	}
	return reranked, nil
}

// Document fetches a document by ID.
func (r *Retriever) Document(id string) (document.Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.documents[id]
	return doc.Clone(), ok
}

func (r *Retriever) lookupChunk(id string) (document.Chunk, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chunk, ok := r.chunks[id]
	return chunk, ok
}

// Clear drops all indexed state.
func (r *Retriever) Clear(ctx context.Context) error {
	if r.store != nil {
		if err := r.store.Clear(ctx); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = make(map[string]document.Chunk)
	r.documents = make(map[string]document.Document)
	return nil
}

// Count returns number of chunks indexed.
func (r *Retriever) Count(ctx context.Context) (int, error) {
	if r.store == nil {
		return 0, nil
	}
	return r.store.Count(ctx)
}
