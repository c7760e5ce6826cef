package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestManagerLoadsLazilyAndOnce(t *testing.T) {
	fake := NewFakeEngine()
	mgr, err := NewManager(fake, ManagerConfig{})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if fake.LoadCalls != 0 {
		t.Fatalf("engine loaded at construction time")
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := mgr.Generate(ctx, "p", GenerateOptions{}); err != nil {
			t.Fatalf("generate %d: %v", i, err)
		}
	}
	if fake.LoadCalls != 1 {
		t.Fatalf("expected exactly one load, got %d", fake.LoadCalls)
	}
}

func TestManagerLatchesLoadFailure(t *testing.T) {
	fake := NewFakeEngine()
	fake.FailLoad(errors.New("cuda out of memory"))
	mgr, err := NewManager(fake, ManagerConfig{})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := mgr.Generate(ctx, "p", GenerateOptions{})
		if !errors.Is(err, ErrResourceExhausted) {
			t.Fatalf("call %d: want ErrResourceExhausted, got %v", i, err)
		}
	}
	if fake.LoadCalls != 1 {
		t.Fatalf("doomed load retried: %d attempts", fake.LoadCalls)
	}
}

func TestManagerSerializesFIFO(t *testing.T) {
	fake := NewFakeEngine()
	fake.Delay(0, 10*time.Millisecond)
	mgr, err := NewManager(fake, ManagerConfig{})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	ctx := context.Background()

	// Occupy the engine so later callers must queue.
	started := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		close(started)
		if _, err := mgr.Generate(ctx, "first", GenerateOptions{}); err != nil {
			t.Errorf("first: %v", err)
		}
	}()
	<-started
	time.Sleep(2 * time.Millisecond)

	const n = 5
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := mgr.Generate(ctx, fmt.Sprintf("queued-%d", i), GenerateOptions{}); err != nil {
				t.Errorf("queued-%d: %v", i, err)
			}
		}()
		// Stagger arrivals so queue order is deterministic.
		time.Sleep(2 * time.Millisecond)
	}
	wg.Wait()

	if len(fake.Prompts) != n+1 {
		t.Fatalf("expected %d prompts, got %d", n+1, len(fake.Prompts))
	}
	if fake.Prompts[0] != "first" {
		t.Fatalf("first prompt out of order: %q", fake.Prompts[0])
	}
	for i := 0; i < n; i++ {
		want := fmt.Sprintf("queued-%d", i)
		if fake.Prompts[i+1] != want {
			t.Fatalf("prompt %d: want %q got %q (FIFO violated)", i+1, want, fake.Prompts[i+1])
		}
	}
}

func TestManagerInferenceTimeout(t *testing.T) {
	fake := NewFakeEngine()
	fake.Delay(0, 100*time.Millisecond)
	mgr, err := NewManager(fake, ManagerConfig{Budget: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	_, err = mgr.Generate(context.Background(), "slow", GenerateOptions{})
	if !errors.Is(err, ErrInferenceTimeout) {
		t.Fatalf("want ErrInferenceTimeout, got %v", err)
	}
}

func TestManagerQueueWithdrawOnCancel(t *testing.T) {
	fake := NewFakeEngine()
	fake.Delay(0, 50*time.Millisecond)
	mgr, err := NewManager(fake, ManagerConfig{})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := mgr.Generate(context.Background(), "holder", GenerateOptions{}); err != nil {
			t.Errorf("holder: %v", err)
		}
	}()
	time.Sleep(5 * time.Millisecond)

	cancelCtx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := mgr.Generate(cancelCtx, "canceled", GenerateOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	wg.Wait()

	// The manager must still admit new work after a withdrawn waiter.
	if _, err := mgr.Generate(context.Background(), "after", GenerateOptions{}); err != nil {
		t.Fatalf("after cancel: %v", err)
	}
}

func TestParseSummaryMarkers(t *testing.T) {
	got := ParseSummary("HEADLINE: Parks levy renewed\nSUMMARY: The council renewed the parks levy.")
	if got.Headline != "Parks levy renewed" {
		t.Fatalf("headline: %q", got.Headline)
	}
	if got.Body != "The council renewed the parks levy." {
		t.Fatalf("body: %q", got.Body)
	}
}

func TestParseSummaryFallback(t *testing.T) {
	got := ParseSummary("The levy passed. It funds maintenance.")
	if got.Headline != "The levy passed" {
		t.Fatalf("headline fallback: %q", got.Headline)
	}
	if got.Body != "The levy passed. It funds maintenance." {
		t.Fatalf("body fallback: %q", got.Body)
	}
}
