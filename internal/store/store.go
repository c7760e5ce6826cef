// Package store persists entities, summaries, and generation claims.
//
// Three backends share one interface: an in-memory store for tests, an
// embedded SQLite database (the default; the whole corpus is tens of
// entities), and Postgres for shared deployments. The SQL backends share
// the same statements, parameterized per dialect.
package store

import (
	"context"
	"errors"
	"time"

	"legisum/internal/model"
)

// ErrNotFound reports a missing entity or summary.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence contract the pipeline runs against. The
// idempotence layer is the sole writer of summary rows; claims guard
// in-flight generations across processes.
type Store interface {
	PutDocument(ctx context.Context, doc model.Document) error
	GetDocument(ctx context.Context, id string) (model.Document, error)
	ListDocuments(ctx context.Context) ([]model.Document, error)
	DocumentsForLegislation(ctx context.Context, legislationID string) ([]model.Document, error)

	PutLegislation(ctx context.Context, leg model.Legislation) error
	GetLegislation(ctx context.Context, id string) (model.Legislation, error)
	ListLegislation(ctx context.Context) ([]model.Legislation, error)
	LegislationForMeeting(ctx context.Context, meetingID string) ([]model.Legislation, error)

	PutMeeting(ctx context.Context, m model.Meeting) error
	GetMeeting(ctx context.Context, id string) (model.Meeting, error)
	ListMeetings(ctx context.Context) ([]model.Meeting, error)

	// GetSummary returns ErrNotFound when no summary exists for the pair.
	GetSummary(ctx context.Context, ref model.EntityRef, style string) (model.Summary, error)
	// PutSummary upserts the unique (entity, style) row atomically.
	PutSummary(ctx context.Context, s model.Summary) error

	// AcquireClaim obtains the exclusive generation claim for
	// (ref, style). It returns false when a live claim is held by
	// another owner; claims past their expiry are silently reclaimed.
	AcquireClaim(ctx context.Context, ref model.EntityRef, style, owner string, ttl time.Duration) (bool, error)
	ReleaseClaim(ctx context.Context, ref model.EntityRef, style, owner string) error
	HeartbeatClaim(ctx context.Context, ref model.EntityRef, style, owner string, ttl time.Duration) (bool, error)

	Close() error
}

// nextDocumentVersion implements the content-version rule: the counter
// advances when extracted text changes, otherwise the stored version is
// kept.
func nextDocumentVersion(old *model.Document, doc model.Document) int64 {
	if old == nil {
		if doc.Version > 0 {
			return doc.Version
		}
		return 1
	}
	if old.ExtractedText != doc.ExtractedText {
		return old.Version + 1
	}
	return old.Version
}

func nextLegislationVersion(old *model.Legislation, leg model.Legislation) int64 {
	if old == nil {
		if leg.Version > 0 {
			return leg.Version
		}
		return 1
	}
	if old.FullText != leg.FullText || old.FinalText != leg.FinalText || !equalActions(old.Actions, leg.Actions) {
		return old.Version + 1
	}
	return old.Version
}

func nextMeetingVersion(old *model.Meeting, m model.Meeting) int64 {
	if old == nil {
		if m.Version > 0 {
			return m.Version
		}
		return 1
	}
	if old.Status != m.Status || !old.Date.Equal(m.Date) {
		return old.Version + 1
	}
	return old.Version
}

func equalActions(a, b []model.ActionRecord) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].VersionNo != b[i].VersionNo ||
			a[i].ActionText != b[i].ActionText ||
			a[i].Actor != b[i].Actor ||
			a[i].Result != b[i].Result ||
			!a[i].Date.Equal(b[i].Date) ||
			a[i].VoteDetail != b[i].VoteDetail {
			return false
		}
	}
	return true
}
