package textgen

import (
	"context"
	"sync"
)

// Func adapts a function to Generator. Tests use it as a scripted provider.
type Func func(ctx context.Context, req Request) (string, error)

func (f Func) Generate(ctx context.Context, req Request) (string, error) { return f(ctx, req) }

// Recorder wraps a Generator and keeps every request it saw.
type Recorder struct {
	Next Generator

	mu       sync.Mutex
	requests []Request
}

func (r *Recorder) Generate(ctx context.Context, req Request) (string, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	return r.Next.Generate(ctx, req)
}

func (r *Recorder) Requests() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Request(nil), r.requests...)
}
