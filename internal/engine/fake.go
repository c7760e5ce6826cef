package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// FakeEngine returns deterministic output for offline runs and tests.
type FakeEngine struct {
	mu        sync.Mutex
	loadErr   error
	loadDelay time.Duration
	genDelay  time.Duration

	LoadCalls int
	GenCalls  int
	Prompts   []string
}

func NewFakeEngine() *FakeEngine { return &FakeEngine{} }

// FailLoad makes every Load attempt fail with err.
func (f *FakeEngine) FailLoad(err error) { f.loadErr = err }

// Delay slows Load and Generate, for exercising timeouts and ordering.
func (f *FakeEngine) Delay(load, gen time.Duration) {
	f.loadDelay = load
	f.genDelay = gen
}

func (f *FakeEngine) Name() string { return "fake" }

func (f *FakeEngine) Load(ctx context.Context) error {
	f.mu.Lock()
	f.LoadCalls++
	f.mu.Unlock()
	if f.loadDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.loadDelay):
		}
	}
	return f.loadErr
}

func (f *FakeEngine) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	if f.genDelay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(f.genDelay):
		}
	}
	f.mu.Lock()
	f.GenCalls++
	n := f.GenCalls
	f.Prompts = append(f.Prompts, prompt)
	f.mu.Unlock()

	first := prompt
	if idx := strings.IndexByte(first, '\n'); idx > 0 {
		first = first[:idx]
	}
	if len(first) > 60 {
		first = first[:60]
	}
	return fmt.Sprintf("HEADLINE: fake headline %d\nSUMMARY: fake summary of %q", n, first), nil
}

func (f *FakeEngine) Close() error { return nil }
