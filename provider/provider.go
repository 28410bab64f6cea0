package provider

import (
	"context"

	"github.com/marqode/hybridrag/message"
)

// Generator is the contract every generation backend satisfies. A backend
// receives the full prompt as messages and returns one assistant message.
type Generator interface {
	// Name identifies the backend in stage results and logs.
	Name() string

	// Generate performs a single blocking completion call.
	Generate(ctx context.Context, messages []*message.Message) (*message.Message, error)
}
