package ai

import (
	"context"

	"delta-backend/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.LLMProvider = (*limitedLLM)(nil)

type limitedLLM struct {
	inner adapter.LLMProvider
	sem   chan struct{}
}

// NewLimitedLLM bounds the number of in-flight provider calls.
func NewLimitedLLM(inner adapter.LLMProvider, maxConcurrent int) adapter.LLMProvider {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedLLM{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedLLM) Generate(ctx context.Context, req adapter.GenerateRequest) (*adapter.Reply, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.inner.Generate(ctx, req)
}

// GenerateStream holds its slot until the inner stream closes, not until the
// call returns. The inner provider hands back its channel immediately and
// generates in the background, so releasing on return would let an unbounded
// number of streams run at once.
func (l *limitedLLM) GenerateStream(ctx context.Context, req adapter.GenerateRequest) (<-chan adapter.StreamChunk, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	inner, err := l.inner.GenerateStream(ctx, req)
	if err != nil {
		<-l.sem
		return nil, err
	}
	out := make(chan adapter.StreamChunk)
	go func() {
		defer func() { <-l.sem }()
		defer close(out)
		for chunk := range inner {
			out <- chunk
		}
	}()
	return out, nil
}
