// Package middleware decorates provider backends with cross-cutting
// behavior such as logging and request caps.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/marqode/hybridrag/errors"
	"github.com/marqode/hybridrag/message"
	"github.com/marqode/hybridrag/pkg/logging"
	"github.com/marqode/hybridrag/provider"
)

// Wrapper decorates a Generator with additional behavior.
type Wrapper func(provider.Generator) provider.Generator

// Chain applies wrappers in order, the first wrapper becoming outermost.
func Chain(g provider.Generator, wrappers ...Wrapper) provider.Generator {
	for i := len(wrappers) - 1; i >= 0; i-- {
		g = wrappers[i](g)
	}
	return g
}

type loggingGenerator struct {
	inner  provider.Generator
	logger *slog.Logger
}

// Logging wraps a backend so every generation is logged with its timing
// and outcome. Prompt and response bodies are not logged.
func Logging() Wrapper {
	return func(g provider.Generator) provider.Generator {
		return &loggingGenerator{
			inner:  g,
			logger: logging.WithComponent("provider"),
		}
	}
}

func (l *loggingGenerator) Name() string { return l.inner.Name() }

func (l *loggingGenerator) Generate(ctx context.Context, messages []*message.Message) (*message.Message, error) {
	start := time.Now()
	reply, err := l.inner.Generate(ctx, messages)
	elapsed := time.Since(start)
	if err != nil {
		l.logger.Warn("generation failed",
			"backend", l.inner.Name(), "messages", len(messages),
			"elapsed", elapsed, "error", err)
		return nil, err
	}
	l.logger.Debug("generation complete",
		"backend", l.inner.Name(), "messages", len(messages), "elapsed", elapsed)
	return reply, nil
}

type cappedGenerator struct {
	inner provider.Generator

	mu       sync.Mutex
	maxCalls int
	calls    int
}

// CallCap limits how many generations a backend may serve in this process.
// Exhausting the cap reports quota exhaustion, which the pipeline treats
// the same as a provider-side rate limit.
func CallCap(maxCalls int) Wrapper {
	return func(g provider.Generator) provider.Generator {
		return &cappedGenerator{inner: g, maxCalls: maxCalls}
	}
}

func (c *cappedGenerator) Name() string { return c.inner.Name() }

func (c *cappedGenerator) Generate(ctx context.Context, messages []*message.Message) (*message.Message, error) {
	c.mu.Lock()
	if c.calls >= c.maxCalls {
		c.mu.Unlock()
		return nil, fmt.Errorf("backend %s call cap %d reached: %w",
			c.inner.Name(), c.maxCalls, errors.ErrQuotaExceeded)
	}
	c.calls++
	c.mu.Unlock()
	return c.inner.Generate(ctx, messages)
}

// Calls returns how many generations passed the cap so far.
func (c *cappedGenerator) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
