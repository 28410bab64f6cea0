package middleware

import (
	"context"
	"testing"

	"github.com/marqode/hybridrag/errors"
	"github.com/marqode/hybridrag/message"
	"github.com/marqode/hybridrag/provider"
)

type countingGenerator struct {
	calls int
}

func (c *countingGenerator) Name() string { return "counting" }

func (c *countingGenerator) Generate(ctx context.Context, messages []*message.Message) (*message.Message, error) {
	c.calls++
	return message.NewMessage(message.RoleAssistant, "ok"), nil
}

func TestCallCap(t *testing.T) {
	inner := &countingGenerator{}
	capped := Chain(inner, CallCap(2))

	ctx := context.Background()
	msgs := []*message.Message{message.NewMessage(message.RoleUser, "hi")}

	for i := 0; i < 2; i++ {
		if _, err := capped.Generate(ctx, msgs); err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
	}

	_, err := capped.Generate(ctx, msgs)
	if !errors.Is(err, errors.ErrQuotaExceeded) {
		t.Errorf("error = %v, want ErrQuotaExceeded once cap reached", err)
	}
	if inner.calls != 2 {
		t.Errorf("inner calls = %d, want 2", inner.calls)
	}
}

func TestChainOrderAndNamePassthrough(t *testing.T) {
	inner := &countingGenerator{}
	wrapped := Chain(inner, Logging(), CallCap(1))

	if wrapped.Name() != "counting" {
		t.Errorf("Name() = %q, want passthrough", wrapped.Name())
	}

	var _ provider.Generator = wrapped

	ctx := context.Background()
	msgs := []*message.Message{message.NewMessage(message.RoleUser, "hi")}
	if _, err := wrapped.Generate(ctx, msgs); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if _, err := wrapped.Generate(ctx, msgs); !errors.Is(err, errors.ErrQuotaExceeded) {
		t.Errorf("error = %v, want cap error through logging layer", err)
	}
}
