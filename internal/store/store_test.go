package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"legisum/internal/model"
)

func openBackends(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "legisum.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func eachBackend(t *testing.T, fn func(t *testing.T, st Store)) {
	for name, st := range openBackends(t) {
		t.Run(name, func(t *testing.T) { fn(t, st) })
	}
}

func TestDocumentRoundTripAndVersioning(t *testing.T) {
	eachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		doc := model.Document{
			ID:            "doc-1",
			Kind:          model.DocumentAttachment,
			Title:         "Fiscal note",
			SourceURL:     "https://example.org/fiscal.pdf",
			ExtractedText: "Projected cost is 1.2 million.",
			LegislationID: "leg-1",
		}
		if err := st.PutDocument(ctx, doc); err != nil {
			t.Fatalf("put: %v", err)
		}
		got, err := st.GetDocument(ctx, "doc-1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Version != 1 {
			t.Fatalf("initial version = %d, want 1", got.Version)
		}
		if got.Title != doc.Title || got.ExtractedText != doc.ExtractedText {
			t.Fatalf("round trip mismatch: %+v", got)
		}

		// Re-put with identical text keeps the version.
		if err := st.PutDocument(ctx, doc); err != nil {
			t.Fatalf("re-put: %v", err)
		}
		got, _ = st.GetDocument(ctx, "doc-1")
		if got.Version != 1 {
			t.Fatalf("version after no-op put = %d, want 1", got.Version)
		}

		// Changed extracted text bumps it.
		doc.ExtractedText = "Projected cost is 2.4 million."
		if err := st.PutDocument(ctx, doc); err != nil {
			t.Fatalf("changed put: %v", err)
		}
		got, _ = st.GetDocument(ctx, "doc-1")
		if got.Version != 2 {
			t.Fatalf("version after text change = %d, want 2", got.Version)
		}
	})
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	eachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		if _, err := st.GetDocument(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("GetDocument err = %v, want ErrNotFound", err)
		}
		if _, err := st.GetLegislation(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("GetLegislation err = %v, want ErrNotFound", err)
		}
		if _, err := st.GetMeeting(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("GetMeeting err = %v, want ErrNotFound", err)
		}
		ref := model.EntityRef{Kind: model.KindDocument, ID: "nope"}
		if _, err := st.GetSummary(ctx, ref, "concise"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("GetSummary err = %v, want ErrNotFound", err)
		}
	})
}

func TestLegislationActionsAndVersioning(t *testing.T) {
	eachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		leg := model.Legislation{
			ID:       "leg-1",
			RecordNo: "CB 120001",
			Type:     "Council Bill",
			Status:   "Passed",
			Title:    "An ordinance relating to bridges",
			FullText: "Section 1. Funds are appropriated.",
			Actions: []model.ActionRecord{
				{VersionNo: 1, ActionText: "introduced", Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)},
				{VersionNo: 2, ActionText: "amended in committee", Actor: "Transportation Committee",
					Date: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)},
			},
			MeetingID: "mtg-1",
		}
		if err := st.PutLegislation(ctx, leg); err != nil {
			t.Fatalf("put: %v", err)
		}
		got, err := st.GetLegislation(ctx, "leg-1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Version != 1 {
			t.Fatalf("initial version = %d, want 1", got.Version)
		}
		if len(got.Actions) != 2 || got.Actions[1].Actor != "Transportation Committee" {
			t.Fatalf("actions round trip mismatch: %+v", got.Actions)
		}
		if !got.Actions[0].Date.Equal(leg.Actions[0].Date) {
			t.Fatalf("action date = %v, want %v", got.Actions[0].Date, leg.Actions[0].Date)
		}

		if err := st.PutLegislation(ctx, leg); err != nil {
			t.Fatalf("re-put: %v", err)
		}
		got, _ = st.GetLegislation(ctx, "leg-1")
		if got.Version != 1 {
			t.Fatalf("version after no-op put = %d, want 1", got.Version)
		}

		leg.Actions = append(leg.Actions, model.ActionRecord{
			VersionNo: 3, ActionText: "passed", Result: model.ResultPassed,
			Date: time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
		})
		if err := st.PutLegislation(ctx, leg); err != nil {
			t.Fatalf("put with new action: %v", err)
		}
		got, _ = st.GetLegislation(ctx, "leg-1")
		if got.Version != 2 {
			t.Fatalf("version after action change = %d, want 2", got.Version)
		}
	})
}

func TestRelationQueriesAreOrdered(t *testing.T) {
	eachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		for _, id := range []string{"doc-b", "doc-a", "doc-c"} {
			doc := model.Document{ID: id, Kind: model.DocumentSupporting, LegislationID: "leg-1"}
			if err := st.PutDocument(ctx, doc); err != nil {
				t.Fatalf("put %s: %v", id, err)
			}
		}
		stray := model.Document{ID: "doc-z", Kind: model.DocumentSupporting, LegislationID: "leg-other"}
		if err := st.PutDocument(ctx, stray); err != nil {
			t.Fatalf("put stray: %v", err)
		}

		docs, err := st.DocumentsForLegislation(ctx, "leg-1")
		if err != nil {
			t.Fatalf("documents for legislation: %v", err)
		}
		if len(docs) != 3 {
			t.Fatalf("got %d documents, want 3", len(docs))
		}
		for i, want := range []string{"doc-a", "doc-b", "doc-c"} {
			if docs[i].ID != want {
				t.Fatalf("docs[%d] = %s, want %s", i, docs[i].ID, want)
			}
		}

		for _, rn := range []string{"CB 120003", "CB 120001", "CB 120002"} {
			leg := model.Legislation{ID: "leg-" + rn[len(rn)-1:], RecordNo: rn, MeetingID: "mtg-1", Title: rn}
			if err := st.PutLegislation(ctx, leg); err != nil {
				t.Fatalf("put %s: %v", rn, err)
			}
		}
		legs, err := st.LegislationForMeeting(ctx, "mtg-1")
		if err != nil {
			t.Fatalf("legislation for meeting: %v", err)
		}
		if len(legs) != 3 || legs[0].RecordNo != "CB 120001" || legs[2].RecordNo != "CB 120003" {
			t.Fatalf("meeting legislation out of order: %+v", legs)
		}
	})
}

func TestMeetingVersionBumpsOnStatusChange(t *testing.T) {
	eachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		m := model.Meeting{
			ID:         "mtg-1",
			Department: "City Council",
			Date:       time.Date(2026, 4, 6, 14, 0, 0, 0, time.UTC),
			Status:     model.MeetingActive,
		}
		if err := st.PutMeeting(ctx, m); err != nil {
			t.Fatalf("put: %v", err)
		}
		if err := st.PutMeeting(ctx, m); err != nil {
			t.Fatalf("re-put: %v", err)
		}
		got, err := st.GetMeeting(ctx, "mtg-1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Version != 1 {
			t.Fatalf("version after no-op put = %d, want 1", got.Version)
		}
		m.Status = model.MeetingCanceled
		if err := st.PutMeeting(ctx, m); err != nil {
			t.Fatalf("status put: %v", err)
		}
		got, _ = st.GetMeeting(ctx, "mtg-1")
		if got.Version != 2 {
			t.Fatalf("version after status change = %d, want 2", got.Version)
		}
	})
}

func TestSummaryUpsertIsPerEntityAndStyle(t *testing.T) {
	eachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		ref := model.EntityRef{Kind: model.KindLegislation, ID: "leg-1"}
		first := model.Summary{
			Entity:        ref,
			Style:         "concise",
			Headline:      "Bridge funding approved",
			Body:          "The bill appropriates funds.",
			SourceVersion: 1,
		}
		if err := st.PutSummary(ctx, first); err != nil {
			t.Fatalf("put: %v", err)
		}
		detailed := first
		detailed.Style = "detailed"
		detailed.Body = "The bill appropriates funds for bridge maintenance across two years."
		if err := st.PutSummary(ctx, detailed); err != nil {
			t.Fatalf("put detailed: %v", err)
		}

		got, err := st.GetSummary(ctx, ref, "concise")
		if err != nil {
			t.Fatalf("get concise: %v", err)
		}
		if got.Body != first.Body {
			t.Fatalf("concise body = %q", got.Body)
		}
		if got.CreatedAt.IsZero() {
			t.Fatal("CreatedAt not stamped")
		}

		// Upsert replaces the row for the same pair.
		first.Body = "Amended: the bill appropriates more funds."
		first.SourceVersion = 2
		if err := st.PutSummary(ctx, first); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		got, _ = st.GetSummary(ctx, ref, "concise")
		if got.SourceVersion != 2 || got.Body != first.Body {
			t.Fatalf("upsert not applied: %+v", got)
		}
		// Style lookups are case-insensitive, including any read caching:
		// a mixed-case read must see a later upsert.
		if _, err := st.GetSummary(ctx, ref, "CONCISE"); err != nil {
			t.Fatalf("mixed-case get: %v", err)
		}
		first.Body = "Third revision."
		first.SourceVersion = 3
		if err := st.PutSummary(ctx, first); err != nil {
			t.Fatalf("third upsert: %v", err)
		}
		got, err = st.GetSummary(ctx, ref, "Concise")
		if err != nil {
			t.Fatalf("mixed-case get after upsert: %v", err)
		}
		if got.SourceVersion != 3 || got.Body != first.Body {
			t.Fatalf("mixed-case read served stale summary: %+v", got)
		}

		// The other style is untouched.
		other, _ := st.GetSummary(ctx, ref, "detailed")
		if other.Body != detailed.Body {
			t.Fatalf("detailed row clobbered: %+v", other)
		}
	})
}

func TestClaimLifecycle(t *testing.T) {
	eachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		ref := model.EntityRef{Kind: model.KindDocument, ID: "doc-1"}
		ttl := time.Minute

		ok, err := st.AcquireClaim(ctx, ref, "concise", "worker-a", ttl)
		if err != nil || !ok {
			t.Fatalf("first acquire: ok=%v err=%v", ok, err)
		}
		// Another owner is rejected while the claim is live.
		ok, err = st.AcquireClaim(ctx, ref, "concise", "worker-b", ttl)
		if err != nil {
			t.Fatalf("contending acquire: %v", err)
		}
		if ok {
			t.Fatal("contending owner acquired a live claim")
		}
		// Same owner may re-acquire.
		ok, _ = st.AcquireClaim(ctx, ref, "concise", "worker-a", ttl)
		if !ok {
			t.Fatal("owner could not re-acquire its own claim")
		}
		// A different style is an independent claim.
		ok, _ = st.AcquireClaim(ctx, ref, "detailed", "worker-b", ttl)
		if !ok {
			t.Fatal("different style should not contend")
		}

		ok, _ = st.HeartbeatClaim(ctx, ref, "concise", "worker-a", ttl)
		if !ok {
			t.Fatal("heartbeat by owner failed")
		}
		ok, _ = st.HeartbeatClaim(ctx, ref, "concise", "worker-b", ttl)
		if ok {
			t.Fatal("heartbeat by non-owner succeeded")
		}

		if err := st.ReleaseClaim(ctx, ref, "concise", "worker-b"); err != nil {
			t.Fatalf("release by non-owner: %v", err)
		}
		// Non-owner release is a no-op; the claim still blocks worker-b.
		ok, _ = st.AcquireClaim(ctx, ref, "concise", "worker-b", ttl)
		if ok {
			t.Fatal("claim acquired after non-owner release")
		}
		if err := st.ReleaseClaim(ctx, ref, "concise", "worker-a"); err != nil {
			t.Fatalf("release: %v", err)
		}
		ok, _ = st.AcquireClaim(ctx, ref, "concise", "worker-b", ttl)
		if !ok {
			t.Fatal("claim not acquirable after owner release")
		}
	})
}

func TestExpiredClaimIsReclaimed(t *testing.T) {
	eachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		ref := model.EntityRef{Kind: model.KindMeeting, ID: "mtg-1"}

		// A claim whose TTL has already elapsed.
		ok, err := st.AcquireClaim(ctx, ref, "concise", "worker-dead", -time.Minute)
		if err != nil || !ok {
			t.Fatalf("seed acquire: ok=%v err=%v", ok, err)
		}
		ok, err = st.AcquireClaim(ctx, ref, "concise", "worker-live", time.Minute)
		if err != nil {
			t.Fatalf("reclaim: %v", err)
		}
		if !ok {
			t.Fatal("expired claim was not reclaimed")
		}
		// Heartbeat by the dead owner must fail after the takeover.
		ok, _ = st.HeartbeatClaim(ctx, ref, "concise", "worker-dead", time.Minute)
		if ok {
			t.Fatal("stale owner heartbeat succeeded after reclaim")
		}
	})
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legisum.db")
	ctx := context.Background()

	st, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	doc := model.Document{ID: "doc-1", Kind: model.DocumentAttachment, Title: "Exhibit A", ExtractedText: "text"}
	if err := st.PutDocument(ctx, doc); err != nil {
		t.Fatalf("put: %v", err)
	}
	sum := model.Summary{
		Entity:        model.EntityRef{Kind: model.KindDocument, ID: "doc-1"},
		Style:         "concise",
		Headline:      "Exhibit A filed",
		Body:          "A short account of the exhibit.",
		SourceVersion: 1,
	}
	if err := st.PutSummary(ctx, sum); err != nil {
		t.Fatalf("put summary: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	st, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	got, err := st.GetSummary(ctx, sum.Entity, "concise")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.Headline != sum.Headline || got.SourceVersion != 1 {
		t.Fatalf("summary did not survive reopen: %+v", got)
	}
}
