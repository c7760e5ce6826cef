// Package summary is the idempotence layer: the single write path for
// summary records. Every generation goes through GetOrCreate, which
// enforces claim-then-commit semantics so interrupted runs leave no
// partial rows and concurrent workers never generate the same
// (entity, style) pair twice.
package summary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"legisum/internal/model"
	"legisum/internal/store"
)

// ErrClaimHeld reports that another worker holds the live generation claim
// for the pair. Callers treat it as in-progress, not as failure.
var ErrClaimHeld = errors.New("summary: generation claim held by another worker")

// Outcome tells the caller what GetOrCreate did.
type Outcome string

const (
	OutcomeCreated        Outcome = "created"
	OutcomeAlreadyCurrent Outcome = "already_current"
)

// Content is what a generator produces. Partial marks degraded-mode
// summaries built from incomplete lower-tier input.
type Content struct {
	Headline string
	Body     string
	Partial  bool
}

// Generator produces the summary content for one pair. It runs only while
// this process holds the pair's claim.
type Generator func(ctx context.Context) (Content, error)

const defaultClaimTTL = 10 * time.Minute

// Cache wraps a Store with the get-or-create contract. Each Cache carries
// a process-unique owner token; claims it acquires are heartbeated while
// the generator runs and released on every exit path.
type Cache struct {
	store store.Store
	owner string
	ttl   time.Duration
}

func NewCache(st store.Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultClaimTTL
	}
	return &Cache{store: st, owner: uuid.NewString(), ttl: ttl}
}

// Owner returns the claim token, for logging.
func (c *Cache) Owner() string { return c.owner }

// GetOrCreate returns the stored summary when it is current, otherwise
// claims the pair, runs gen, and commits the result. A summary is stale
// only when the entity's content version has advanced past the summary's
// SourceVersion; stale rows are overwritten, never served.
func (c *Cache) GetOrCreate(ctx context.Context, ref model.EntityRef, style string, sourceVersion int64, gen Generator) (model.Summary, Outcome, error) {
	if c == nil || c.store == nil {
		return model.Summary{}, "", fmt.Errorf("summary cache is not configured")
	}
	if err := ref.Validate(); err != nil {
		return model.Summary{}, "", err
	}
	if gen == nil {
		return model.Summary{}, "", fmt.Errorf("summary %s: generator is required", ref)
	}

	if sum, ok, err := c.lookupCurrent(ctx, ref, style, sourceVersion); err != nil {
		return model.Summary{}, "", err
	} else if ok {
		return sum, OutcomeAlreadyCurrent, nil
	}

	ok, err := c.store.AcquireClaim(ctx, ref, style, c.owner, c.ttl)
	if err != nil {
		return model.Summary{}, "", fmt.Errorf("summary %s: acquire claim: %w", ref, err)
	}
	if !ok {
		return model.Summary{}, "", fmt.Errorf("summary %s (%s): %w", ref, style, ErrClaimHeld)
	}
	defer func() {
		// Release with a background context so cancellation of the run
		// cannot strand the claim until TTL expiry.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.store.ReleaseClaim(releaseCtx, ref, style, c.owner)
	}()

	// Another worker may have committed between our lookup and the claim.
	if sum, ok, err := c.lookupCurrent(ctx, ref, style, sourceVersion); err != nil {
		return model.Summary{}, "", err
	} else if ok {
		return sum, OutcomeAlreadyCurrent, nil
	}

	stopHeartbeat := c.startHeartbeat(ref, style)
	content, genErr := gen(ctx)
	stopHeartbeat()
	if genErr != nil {
		// No partial writes: the claim is released by the deferred call
		// and no summary row is touched.
		return model.Summary{}, "", fmt.Errorf("summary %s (%s): generate: %w", ref, style, genErr)
	}

	sum := model.Summary{
		Entity:        ref,
		Style:         style,
		Headline:      content.Headline,
		Body:          content.Body,
		SourceVersion: sourceVersion,
		Partial:       content.Partial,
		CreatedAt:     time.Now().UTC(),
	}
	if err := c.store.PutSummary(ctx, sum); err != nil {
		return model.Summary{}, "", fmt.Errorf("summary %s (%s): persist: %w", ref, style, err)
	}
	return sum, OutcomeCreated, nil
}

// lookupCurrent reports whether a stored summary exists and is not stale
// against sourceVersion.
func (c *Cache) lookupCurrent(ctx context.Context, ref model.EntityRef, style string, sourceVersion int64) (model.Summary, bool, error) {
	sum, err := c.store.GetSummary(ctx, ref, style)
	if errors.Is(err, store.ErrNotFound) {
		return model.Summary{}, false, nil
	}
	if err != nil {
		return model.Summary{}, false, fmt.Errorf("summary %s (%s): lookup: %w", ref, style, err)
	}
	if sum.SourceVersion < sourceVersion {
		return model.Summary{}, false, nil
	}
	return sum, true, nil
}

// startHeartbeat extends the claim while a long generation runs, at a
// third of the TTL so two missed beats still leave the claim live.
func (c *Cache) startHeartbeat(ref model.EntityRef, style string) (stop func()) {
	interval := c.ttl / 3
	if interval <= 0 {
		interval = time.Second
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				hbCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				_, _ = c.store.HeartbeatClaim(hbCtx, ref, style, c.owner, c.ttl)
				cancel()
			}
		}
	}()
	return func() { close(done) }
}
