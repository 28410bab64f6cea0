package store

import (
	"context"
	"testing"

	"github.com/marqode/hybridrag/history"
)

func TestInMemoryStoreAppendRecent(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	for _, q := range []string{"first", "second", "third"} {
		if err := store.Append(ctx, &history.Record{Question: q, FinalAnswer: "a"}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	records, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Question != "third" || records[1].Question != "second" {
		t.Errorf("records not newest-first: %q, %q", records[0].Question, records[1].Question)
	}

	all, err := store.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Recent(0) returned %d records, want all 3", len(all))
	}
}

func TestInMemoryStoreAssignsID(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	rec := &history.Record{Question: "q"}
	if err := store.Append(ctx, rec); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if rec.ID == "" {
		t.Error("expected ID to be assigned on append")
	}

	if err := store.Append(ctx, nil); err == nil {
		t.Error("expected error for nil record")
	}
}

func TestInMemoryStoreClear(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	store.Append(ctx, &history.Record{Question: "q"})
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	records, _ := store.Recent(ctx, 10)
	if len(records) != 0 {
		t.Errorf("got %d records after clear, want 0", len(records))
	}
}
