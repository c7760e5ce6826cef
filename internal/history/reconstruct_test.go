package history

import (
	"errors"
	"strings"
	"testing"
	"time"

	"legisum/internal/model"
)

func day(n int) time.Time {
	return time.Date(2026, 3, n, 0, 0, 0, 0, time.UTC)
}

func TestClassifyPrecedence(t *testing.T) {
	cases := []struct {
		text   string
		result model.ActionResult
		want   Category
	}{
		{"amended in committee", model.ResultPassed, CategoryAmendment},
		{"substitute version adopted", model.ResultUnknown, CategoryAmendment},
		{"passed as presented", model.ResultPassed, CategoryVote},
		{"referred to full council", model.ResultUnknown, CategoryProcedural},
		{"heard in committee", model.ResultUnknown, CategoryOther},
	}
	for _, c := range cases {
		rec := model.ActionRecord{VersionNo: 2, ActionText: c.text, Result: c.result}
		if got := Classify(rec); got != c.want {
			t.Fatalf("Classify(%q, %s) = %s, want %s", c.text, c.result, got, c.want)
		}
	}
}

func TestClassifyWholeWordOnly(t *testing.T) {
	rec := model.ActionRecord{VersionNo: 2, ActionText: "text retained unmodified"}
	if got := Classify(rec); got == CategoryAmendment {
		t.Fatalf("substring \"modified\" inside \"unmodified\" classified as amendment")
	}
}

func TestReconstructOrderingByVersionNotDate(t *testing.T) {
	leg := model.Legislation{
		ID: "L1", RecordNo: "CB 1001", FullText: "text",
		Actions: []model.ActionRecord{
			{VersionNo: 1, ActionText: "introduced", Date: day(4)},
			{VersionNo: 2, ActionText: "amend section 2", Actor: "CM Alpha", Date: day(9)},
			{VersionNo: 3, ActionText: "passed", Result: model.ResultPassed, Date: day(2)},
			{VersionNo: 4, ActionText: "substitute adopted", Actor: "CM Beta", Date: day(1)},
		},
	}
	h, err := Reconstruct(leg)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if len(h.Amendments) != 2 {
		t.Fatalf("amendments: got %d, want 2", len(h.Amendments))
	}
	if h.Amendments[0].VersionNo != 2 || h.Amendments[1].VersionNo != 4 {
		t.Fatalf("amendment order: got v%d, v%d; want v2, v4",
			h.Amendments[0].VersionNo, h.Amendments[1].VersionNo)
	}
	if h.Amendments[0].Actor != "CM Alpha" {
		t.Fatalf("amendment actor: %q", h.Amendments[0].Actor)
	}
}

func TestReconstructMinVersionIsOriginal(t *testing.T) {
	// The first version mentions "substitute" but still counts as the
	// original filing.
	leg := model.Legislation{
		ID: "L2", RecordNo: "CB 1002", FullText: "text",
		Actions: []model.ActionRecord{
			{VersionNo: 1, ActionText: "substitute bill introduced"},
			{VersionNo: 2, ActionText: "amended on the floor"},
		},
	}
	h, err := Reconstruct(leg)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if len(h.Amendments) != 1 || h.Amendments[0].VersionNo != 2 {
		t.Fatalf("amendments: %+v", h.Amendments)
	}
}

func TestReconstructEmptyActionsSynthesizesOriginal(t *testing.T) {
	leg := model.Legislation{ID: "L3", RecordNo: "CB 1003", FullText: "Ordinance X"}
	h, err := Reconstruct(leg)
	if err != nil {
		t.Fatalf("reconstruct must not fail on empty actions: %v", err)
	}
	if h.OriginalInput != "Ordinance X" {
		t.Fatalf("original input: %q", h.OriginalInput)
	}
	if len(h.Amendments) != 0 {
		t.Fatalf("amendments on empty log: %+v", h.Amendments)
	}
	if h.Delta.Summary != NoSubstantiveChange {
		t.Fatalf("delta: %q", h.Delta.Summary)
	}
}

func TestReconstructMalformedAction(t *testing.T) {
	leg := model.Legislation{
		ID: "L4", RecordNo: "CB 1004", FullText: "text",
		Actions: []model.ActionRecord{{VersionNo: 1, ActionText: "   "}},
	}
	_, err := Reconstruct(leg)
	if err == nil {
		t.Fatalf("expected malformed history error")
	}
	var mErr *MalformedHistoryError
	if !errors.As(err, &mErr) {
		t.Fatalf("error type: %T %v", err, err)
	}
	if mErr.LegislationID != "L4" {
		t.Fatalf("legislation id on error: %q", mErr.LegislationID)
	}
}

func TestComputeDeltaIdentical(t *testing.T) {
	d := ComputeDelta("same text", "same text")
	if d.Changed || d.Summary != NoSubstantiveChange {
		t.Fatalf("delta: %+v", d)
	}
}

func TestComputeDeltaParagraphCounts(t *testing.T) {
	orig := "alpha\n\nbeta\n\ngamma"
	final := "alpha\n\ndelta\n\ngamma\n\nepsilon"
	d := ComputeDelta(orig, final)
	if !d.Changed {
		t.Fatalf("expected change: %+v", d)
	}
	if d.AddedParagraphs != 2 || d.RemovedParagraphs != 1 {
		t.Fatalf("counts: +%d -%d, want +2 -1", d.AddedParagraphs, d.RemovedParagraphs)
	}
	if !strings.Contains(d.Summary, "2 paragraph(s) added") {
		t.Fatalf("summary: %q", d.Summary)
	}
}

func TestReconstructVotesIncludeAmendmentVotes(t *testing.T) {
	leg := model.Legislation{
		ID: "L5", RecordNo: "CB 1005", FullText: "text",
		Actions: []model.ActionRecord{
			{VersionNo: 1, ActionText: "introduced"},
			{VersionNo: 2, ActionText: "amendment 1 adopted", Result: model.ResultPassed, VoteDetail: "7-2"},
		},
	}
	h, err := Reconstruct(leg)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if len(h.Amendments) != 1 || len(h.Votes) != 1 {
		t.Fatalf("amendments=%d votes=%d, want 1/1", len(h.Amendments), len(h.Votes))
	}
	if h.Votes[0].VoteDetail != "7-2" {
		t.Fatalf("vote detail: %q", h.Votes[0].VoteDetail)
	}
}
