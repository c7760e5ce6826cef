package engine

import (
	"context"
	"errors"
	"time"
)

// WithRetry wraps an engine so transient Generate failures are retried up
// to maxAttempts with exponential backoff starting at baseDelay. Permanent
// errors and context cancellation stop immediately. Load is never retried
// here; the Manager latches load failures.
func WithRetry(next Engine, maxAttempts int, baseDelay time.Duration) Engine {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 300 * time.Millisecond
	}
	return &retrying{next: next, max: maxAttempts, base: baseDelay}
}

type retrying struct {
	next Engine
	max  int
	base time.Duration
}

func (r *retrying) Name() string                   { return r.next.Name() }
func (r *retrying) Load(ctx context.Context) error { return r.next.Load(ctx) }
func (r *retrying) Close() error                   { return r.next.Close() }

func (r *retrying) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	var last error
	for i := 0; i < r.max; i++ {
		out, err := r.next.Generate(ctx, prompt, opts)
		if err == nil {
			return out, nil
		}
		var pErr *PermanentError
		if errors.As(err, &pErr) {
			return "", err
		}
		last = err
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(r.base * time.Duration(1<<i)):
		}
	}
	return "", last
}
