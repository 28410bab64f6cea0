package inmemory

import (
	"context"
	"testing"

	"github.com/marqode/hybridrag/errors"
	"github.com/marqode/hybridrag/vector"
)

func TestInMemoryVectorStore(t *testing.T) {
	store := NewInMemoryVectorStore()
	ctx := context.Background()

	t.Run("add and retrieve", func(t *testing.T) {
		emb := &vector.Embedding{
			ID:     "chunk-1",
			Text:   "shipping policy details",
			Vector: []float32{0.1, 0.2, 0.3},
		}
		if err := store.AddEmbedding(ctx, emb); err != nil {
			t.Fatalf("AddEmbedding failed: %v", err)
		}

		got, err := store.GetEmbedding(ctx, "chunk-1")
		if err != nil {
			t.Fatalf("GetEmbedding failed: %v", err)
		}
		if got.Text != emb.Text {
			t.Errorf("Text = %q, want %q", got.Text, emb.Text)
		}
	})

	t.Run("search ranks by similarity", func(t *testing.T) {
		store.Clear(ctx)
		for _, emb := range []*vector.Embedding{
			{ID: "a", Text: "first axis", Vector: []float32{1, 0, 0}},
			{ID: "b", Text: "second axis", Vector: []float32{0, 1, 0}},
			{ID: "c", Text: "diagonal", Vector: []float32{0.7, 0.7, 0}},
		} {
			if err := store.AddEmbedding(ctx, emb); err != nil {
				t.Fatalf("AddEmbedding failed: %v", err)
			}
		}

		results, err := store.Search(ctx, []float32{1, 0, 0}, 2)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("got %d results, want 2", len(results))
		}
		if results[0].ID != "a" {
			t.Errorf("top result = %q, want %q", results[0].ID, "a")
		}
	})

	t.Run("delete and missing lookup", func(t *testing.T) {
		if err := store.DeleteEmbedding(ctx, "a"); err != nil {
			t.Fatalf("DeleteEmbedding failed: %v", err)
		}
		if _, err := store.GetEmbedding(ctx, "a"); !errors.Is(err, errors.ErrNotFound) {
			t.Errorf("GetEmbedding error = %v, want ErrNotFound", err)
		}
	})

	t.Run("count and clear", func(t *testing.T) {
		count, err := store.Count(ctx)
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if count != 2 {
			t.Errorf("Count = %d, want 2", count)
		}
		if err := store.Clear(ctx); err != nil {
			t.Fatalf("Clear failed: %v", err)
		}
		count, _ = store.Count(ctx)
		if count != 0 {
			t.Errorf("Count after clear = %d, want 0", count)
		}
	})
}
