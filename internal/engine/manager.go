package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// Manager owns the single model instance for the whole process. The engine
// is loaded lazily on the first Generate call, never as a side effect of
// construction, and is loaded at most once: a failed load is latched and
// every later call fails fast instead of re-attempting a doomed load.
//
// Generate calls are strictly serialized. Concurrent callers queue in the
// order they arrived (FIFO); the model resource is not reentrant and
// re-instantiating it is prohibitively expensive.
type Manager struct {
	eng    Engine
	budget time.Duration

	loadOnce sync.Once
	loadErr  error

	mu    sync.Mutex
	queue []chan struct{}
	busy  bool
}

// ManagerConfig configures the resource manager.
type ManagerConfig struct {
	// Budget is the wall-clock limit for one generation. Zero disables
	// the limit.
	Budget time.Duration
}

func NewManager(eng Engine, cfg ManagerConfig) (*Manager, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine is required")
	}
	return &Manager{eng: eng, budget: cfg.Budget}, nil
}

func (m *Manager) Name() string {
	if m == nil || m.eng == nil {
		return ""
	}
	return m.eng.Name()
}

// EnsureLoaded performs the one-time engine load. Idempotent; safe to call
// from any goroutine. The first failure is latched and returned forever.
func (m *Manager) EnsureLoaded(ctx context.Context) error {
	if m == nil || m.eng == nil {
		return fmt.Errorf("manager is nil")
	}
	m.loadOnce.Do(func() {
		log.Printf("engine: loading %s", m.eng.Name())
		start := time.Now()
		if err := m.eng.Load(ctx); err != nil {
			m.loadErr = fmt.Errorf("%w: %v", ErrResourceExhausted, err)
			log.Printf("engine: load failed after %s: %v", time.Since(start).Round(time.Millisecond), err)
			return
		}
		log.Printf("engine: %s loaded in %s", m.eng.Name(), time.Since(start).Round(time.Millisecond))
	})
	return m.loadErr
}

// Generate runs one inference call. Callers are admitted one at a time in
// arrival order; the engine is loaded on the first admitted call.
func (m *Manager) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	if m == nil || m.eng == nil {
		return "", fmt.Errorf("manager is nil")
	}
	if err := m.acquire(ctx); err != nil {
		return "", err
	}
	defer m.release()

	if err := m.EnsureLoaded(ctx); err != nil {
		return "", err
	}

	genCtx := ctx
	if m.budget > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, m.budget)
		defer cancel()
	}
	out, err := m.eng.Generate(genCtx, prompt, opts)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("%w after %s", ErrInferenceTimeout, m.budget)
		}
		return "", err
	}
	return out, nil
}

// Close releases the engine. Pending callers receive the context error of
// their own contexts; Close does not interrupt an in-flight generation.
func (m *Manager) Close() error {
	if m == nil || m.eng == nil {
		return nil
	}
	return m.eng.Close()
}

func (m *Manager) acquire(ctx context.Context) error {
	m.mu.Lock()
	if !m.busy && len(m.queue) == 0 {
		m.busy = true
		m.mu.Unlock()
		return nil
	}
	turn := make(chan struct{})
	m.queue = append(m.queue, turn)
	m.mu.Unlock()

	select {
	case <-turn:
		return nil
	case <-ctx.Done():
		// Withdraw from the queue; if the turn raced in, pass it on.
		m.mu.Lock()
		for i, ch := range m.queue {
			if ch == turn {
				m.queue = append(m.queue[:i], m.queue[i+1:]...)
				m.mu.Unlock()
				return ctx.Err()
			}
		}
		m.mu.Unlock()
		m.release()
		return ctx.Err()
	}
}

func (m *Manager) release() {
	m.mu.Lock()
	if len(m.queue) > 0 {
		next := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		close(next)
		return
	}
	m.busy = false
	m.mu.Unlock()
}
