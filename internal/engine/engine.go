package engine

import (
	"context"
	"errors"
)

// ErrResourceExhausted reports that the model could not be loaded or run
// because the underlying process cannot allocate the memory it needs.
// The pipeline treats it as fatal for the remainder of a run.
var ErrResourceExhausted = errors.New("engine: model resource exhausted")

// ErrInferenceTimeout reports that a single generation exceeded the
// configured wall-clock budget.
var ErrInferenceTimeout = errors.New("engine: inference timed out")

// GenerateOptions bound a single generation call.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
}

// Engine is an opaque text-generation capability. Load may take minutes;
// Generate is not safe for concurrent use — callers go through Manager,
// which serializes.
type Engine interface {
	Name() string
	Load(ctx context.Context) error
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
	Close() error
}

// PermanentError marks an engine error that will not resolve with retries.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}
