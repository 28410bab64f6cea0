package chunking

import (
	"context"
	"strings"

	"github.com/marqode/hybridrag/rag/document"
)

// Chunker splits documents into chunks that can be embedded and indexed.
type Chunker interface {
	Chunk(ctx context.Context, doc document.Document) ([]document.Chunk, error)
}

// Options configures the word chunker.
type Options struct {
	ChunkWords   int
	OverlapWords int
}

// Option customizes the word chunker.
type Option func(*Options)

// WithChunkWords overrides the default chunk size (words).
func WithChunkWords(size int) Option {
	return func(o *Options) {
		if size > 0 {
			o.ChunkWords = size
		}
	}
}

// WithOverlapWords configures overlap (words) between consecutive chunks.
func WithOverlapWords(overlap int) Option {
	return func(o *Options) {
		if overlap >= 0 {
			o.OverlapWords = overlap
		}
	}
}

// WordChunker splits document text into overlapping word windows. Word
// boundaries keep sentences mostly intact, which suits the plain text that
// comes out of PDF extraction.
type WordChunker struct {
	size    int
	overlap int
}

// NewWordChunker constructs a chunker with defaults tuned for PDF text.
func NewWordChunker(opts ...Option) *WordChunker {
	cfg := &Options{
		ChunkWords:   800,
		OverlapWords: 200,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.OverlapWords >= cfg.ChunkWords {
		cfg.OverlapWords = cfg.ChunkWords / 4
	}
	return &WordChunker{
		size:    cfg.ChunkWords,
		overlap: cfg.OverlapWords,
	}
}

// Chunk splits the document into overlapping word windows.
func (c *WordChunker) Chunk(ctx context.Context, doc document.Document) ([]document.Chunk, error) {
	document.EnsureDocumentID(&doc)

	words := strings.Fields(doc.Content)
	n := len(words)
	if n == 0 {
		return nil, nil
	}

	chunks := make([]document.Chunk, 0, n/c.size+1)
	ordinal := 0
	start := 0
	for start < n {
		end := start + c.size
		if end > n {
			end = n
		}
		text := strings.Join(words[start:end], " ")
		if strings.TrimSpace(text) != "" {
			ordinal++
			chunks = append(chunks, document.Chunk{
				ID:         document.NextChunkID(doc.ID),
				DocumentID: doc.ID,
				Content:    text,
				Ordinal:    ordinal,
			})
		}
		if end == n {
			break
		}
		start = end - c.overlap
		if start < 0 {
			start = 0
		}
	}

	return chunks, nil
}
