package token

import (
	"context"

	"github.com/marqode/hybridrag/rag/document"
	"github.com/marqode/hybridrag/rag/tokenizer"
)

// Chunker splits documents into token windows using a real tokenizer, so
// chunk sizes line up with model context budgets instead of word counts.
type Chunker struct {
	tok           tokenizer.Tokenizer
	maxTokens     int
	overlapTokens int
}

// Option customises the token chunker.
type Option func(*Chunker)

// WithMaxTokens sets the maximum allowed tokens per chunk (default 512).
func WithMaxTokens(tokens int) Option {
	return func(c *Chunker) {
		if tokens > 0 {
			c.maxTokens = tokens
		}
	}
}

// WithOverlapTokens sets how many tokens are shared between consecutive chunks.
func WithOverlapTokens(tokens int) Option {
	return func(c *Chunker) {
		if tokens >= 0 {
			c.overlapTokens = tokens
		}
	}
}

// New creates a token-window chunker backed by the given tokenizer.
func New(tok tokenizer.Tokenizer, opts ...Option) *Chunker {
	ch := &Chunker{
		tok:           tok,
		maxTokens:     512,
		overlapTokens: 64,
	}
	for _, opt := range opts {
		opt(ch)
	}
	if ch.overlapTokens >= ch.maxTokens {
		ch.overlapTokens = ch.maxTokens / 4
	}
	return ch
}

// Chunk implements chunking.Chunker.
func (c *Chunker) Chunk(ctx context.Context, doc document.Document) ([]document.Chunk, error) {
	document.EnsureDocumentID(&doc)

	ids := c.tok.Encode(doc.Content)
	if len(ids) == 0 {
		return nil, nil
	}

	var chunks []document.Chunk
	ordinal := 0
	start := 0
	for start < len(ids) {
		end := start + c.maxTokens
		if end > len(ids) {
			end = len(ids)
		}
		ordinal++
		chunks = append(chunks, document.Chunk{
			ID:         document.NextChunkID(doc.ID),
			DocumentID: doc.ID,
			Content:    c.tok.DecodeIds(ids[start:end]),
			Ordinal:    ordinal,
		})
		if end == len(ids) {
			break
		}
		start = end - c.overlapTokens
	}

	return chunks, nil
}
