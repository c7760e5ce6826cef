package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"legisum/internal/model"
)

// MemoryStore keeps everything in process memory. Used by tests and ad-hoc
// runs; semantics match the SQL backends, including claim expiry.
type MemoryStore struct {
	mu          sync.Mutex
	documents   map[string]model.Document
	legislation map[string]model.Legislation
	meetings    map[string]model.Meeting
	summaries   map[string]model.Summary
	claims      map[string]memClaim
}

type memClaim struct {
	owner     string
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents:   map[string]model.Document{},
		legislation: map[string]model.Legislation{},
		meetings:    map[string]model.Meeting{},
		summaries:   map[string]model.Summary{},
		claims:      map[string]memClaim{},
	}
}

func pairKey(ref model.EntityRef, style string) string {
	return ref.String() + "|" + strings.ToLower(style)
}

func (s *MemoryStore) PutDocument(_ context.Context, doc model.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var old *model.Document
	if prev, ok := s.documents[doc.ID]; ok {
		old = &prev
	}
	doc.Version = nextDocumentVersion(old, doc)
	s.documents[doc.ID] = doc
	return nil
}

func (s *MemoryStore) GetDocument(_ context.Context, id string) (model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return model.Document{}, ErrNotFound
	}
	return doc, nil
}

func (s *MemoryStore) ListDocuments(_ context.Context) ([]model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) DocumentsForLegislation(_ context.Context, legislationID string) ([]model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Document
	for _, doc := range s.documents {
		if doc.LegislationID == legislationID {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) PutLegislation(_ context.Context, leg model.Legislation) error {
	if err := leg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var old *model.Legislation
	if prev, ok := s.legislation[leg.ID]; ok {
		old = &prev
	}
	leg.Version = nextLegislationVersion(old, leg)
	s.legislation[leg.ID] = leg
	return nil
}

func (s *MemoryStore) GetLegislation(_ context.Context, id string) (model.Legislation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	leg, ok := s.legislation[id]
	if !ok {
		return model.Legislation{}, ErrNotFound
	}
	return leg, nil
}

func (s *MemoryStore) ListLegislation(_ context.Context) ([]model.Legislation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Legislation, 0, len(s.legislation))
	for _, leg := range s.legislation {
		out = append(out, leg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordNo < out[j].RecordNo })
	return out, nil
}

func (s *MemoryStore) LegislationForMeeting(_ context.Context, meetingID string) ([]model.Legislation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Legislation
	for _, leg := range s.legislation {
		if leg.MeetingID == meetingID {
			out = append(out, leg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordNo < out[j].RecordNo })
	return out, nil
}

func (s *MemoryStore) PutMeeting(_ context.Context, m model.Meeting) error {
	if err := m.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var old *model.Meeting
	if prev, ok := s.meetings[m.ID]; ok {
		old = &prev
	}
	m.Version = nextMeetingVersion(old, m)
	s.meetings[m.ID] = m
	return nil
}

func (s *MemoryStore) GetMeeting(_ context.Context, id string) (model.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return model.Meeting{}, ErrNotFound
	}
	return m, nil
}

func (s *MemoryStore) ListMeetings(_ context.Context) ([]model.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Meeting, 0, len(s.meetings))
	for _, m := range s.meetings {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetSummary(_ context.Context, ref model.EntityRef, style string) (model.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum, ok := s.summaries[pairKey(ref, style)]
	if !ok {
		return model.Summary{}, ErrNotFound
	}
	return sum, nil
}

func (s *MemoryStore) PutSummary(_ context.Context, sum model.Summary) error {
	if err := sum.Entity.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sum.CreatedAt.IsZero() {
		sum.CreatedAt = time.Now().UTC()
	}
	s.summaries[pairKey(sum.Entity, sum.Style)] = sum
	return nil
}

func (s *MemoryStore) AcquireClaim(_ context.Context, ref model.EntityRef, style, owner string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(ref, style)
	now := time.Now()
	if c, ok := s.claims[key]; ok && c.owner != owner && now.Before(c.expiresAt) {
		return false, nil
	}
	s.claims[key] = memClaim{owner: owner, expiresAt: now.Add(ttl)}
	return true, nil
}

func (s *MemoryStore) ReleaseClaim(_ context.Context, ref model.EntityRef, style, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(ref, style)
	if c, ok := s.claims[key]; ok && c.owner == owner {
		delete(s.claims, key)
	}
	return nil
}

func (s *MemoryStore) HeartbeatClaim(_ context.Context, ref model.EntityRef, style, owner string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(ref, style)
	c, ok := s.claims[key]
	if !ok || c.owner != owner {
		return false, nil
	}
	c.expiresAt = time.Now().Add(ttl)
	s.claims[key] = c
	return true, nil
}

func (s *MemoryStore) Close() error { return nil }
