package model

import (
	"fmt"
	"strings"
	"time"
)

// EntityKind names the three summarizable record kinds.
type EntityKind string

const (
	KindDocument    EntityKind = "document"
	KindLegislation EntityKind = "legislation"
	KindMeeting     EntityKind = "meeting"
)

// EntityRef identifies one summarizable entity.
type EntityRef struct {
	Kind EntityKind
	ID   string
}

func (r EntityRef) String() string { return string(r.Kind) + ":" + r.ID }

func (r EntityRef) Validate() error {
	switch r.Kind {
	case KindDocument, KindLegislation, KindMeeting:
	default:
		return fmt.Errorf("unknown entity kind %q", r.Kind)
	}
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("entity id is required")
	}
	return nil
}

// ParseEntityRef parses "kind:id" notation used by scopes and the API.
func ParseEntityRef(s string) (EntityRef, error) {
	kind, id, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return EntityRef{}, fmt.Errorf("entity ref %q: want kind:id", s)
	}
	ref := EntityRef{Kind: EntityKind(strings.ToLower(kind)), ID: strings.TrimSpace(id)}
	if err := ref.Validate(); err != nil {
		return EntityRef{}, err
	}
	return ref, nil
}

type DocumentKind string

const (
	DocumentAttachment DocumentKind = "attachment"
	DocumentSupporting DocumentKind = "supporting"
)

// Document is one attached or supporting file of a legislation item.
// ExtractedText is populated by the external extraction service and is
// empty until extraction completes.
type Document struct {
	ID            string
	Kind          DocumentKind
	Title         string
	SourceURL     string
	ExtractedText string
	LegislationID string

	// Version increases whenever ExtractedText changes; summaries record
	// the version they were generated from.
	Version int64
}

func (d Document) Ref() EntityRef { return EntityRef{Kind: KindDocument, ID: d.ID} }

func (d Document) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("document id is required")
	}
	switch d.Kind {
	case DocumentAttachment, DocumentSupporting:
	default:
		return fmt.Errorf("document %s: unknown kind %q", d.ID, d.Kind)
	}
	return nil
}

type ActionResult string

const (
	ResultPassed  ActionResult = "passed"
	ResultFailed  ActionResult = "failed"
	ResultUnknown ActionResult = "unknown"
)

// ActionRecord is one row of a legislation item's raw action log, supplied
// by the crawler. Ordering by VersionNo is authoritative; Date is
// informational only.
type ActionRecord struct {
	VersionNo  int
	ActionText string
	Actor      string
	Result     ActionResult
	Date       time.Time
	VoteDetail string
}

func (a ActionRecord) Validate() error {
	if strings.TrimSpace(a.ActionText) == "" {
		return fmt.Errorf("action record v%d: action_text is required", a.VersionNo)
	}
	if a.VersionNo < 0 {
		return fmt.Errorf("action record: negative version_no %d", a.VersionNo)
	}
	return nil
}

// Legislation is one bill, appointment, or information item.
type Legislation struct {
	ID          string
	RecordNo    string
	Type        string
	Status      string
	Title       string
	FullText    string
	FinalText   string
	Actions     []ActionRecord
	DocumentIDs []string
	MeetingID   string

	Version int64
}

func (l Legislation) Ref() EntityRef { return EntityRef{Kind: KindLegislation, ID: l.ID} }

func (l Legislation) Validate() error {
	if strings.TrimSpace(l.ID) == "" {
		return fmt.Errorf("legislation id is required")
	}
	if strings.TrimSpace(l.RecordNo) == "" {
		return fmt.Errorf("legislation %s: record_no is required", l.ID)
	}
	return nil
}

type MeetingStatus string

const (
	MeetingActive   MeetingStatus = "active"
	MeetingCanceled MeetingStatus = "canceled"
)

type Meeting struct {
	ID             string
	Department     string
	Date           time.Time
	Status         MeetingStatus
	LegislationIDs []string

	Version int64
}

func (m Meeting) Ref() EntityRef { return EntityRef{Kind: KindMeeting, ID: m.ID} }

func (m Meeting) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("meeting id is required")
	}
	switch m.Status {
	case MeetingActive, MeetingCanceled:
	default:
		return fmt.Errorf("meeting %s: unknown status %q", m.ID, m.Status)
	}
	return nil
}

// Summary is one generated summary of an entity under a style. Unique per
// (Entity, Style); regeneration replaces the row wholesale.
type Summary struct {
	Entity   EntityRef
	Style    string
	Headline string
	Body     string

	// SourceVersion is the entity version the summary was generated from.
	// The summary is stale once the entity's version moves past it.
	SourceVersion int64

	// Partial marks a meeting summary generated in degraded mode, i.e.
	// with only part of its legislation summarized.
	Partial bool

	CreatedAt time.Time
}
