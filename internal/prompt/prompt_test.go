package prompt

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"legisum/internal/history"
)

func mustStyle(t *testing.T, name string) Style {
	t.Helper()
	s, err := StyleByName(name)
	if err != nil {
		t.Fatalf("style %s: %v", name, err)
	}
	return s
}

func TestStyleByNameUnknown(t *testing.T) {
	if _, err := StyleByName("breezy"); err == nil {
		t.Fatalf("expected error for unknown style")
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	// No spaces, so the cut lands mid-string; it must not split a rune.
	s := strings.Repeat("政", 10)
	for n := 1; n < len(s); n++ {
		got := truncate(s, n)
		if !utf8.ValidString(got) {
			t.Fatalf("truncate(%d) produced invalid UTF-8: %q", n, got)
		}
		if len(got) > n {
			t.Fatalf("truncate(%d) returned %d bytes", n, len(got))
		}
	}
	if got := truncate("short", 100); got != "short" {
		t.Fatalf("truncate left input alone, got %q", got)
	}
	if got := truncate("alpha beta gamma", 12); got != "alpha beta" {
		t.Fatalf("space-aligned cut = %q", got)
	}
}

func TestLegislationSectionsInOrder(t *testing.T) {
	h := history.History{
		OriginalInput: "original proposal text",
		FinalText:     "final proposal text",
		Delta:         history.ComputeDelta("original proposal text", "final proposal text"),
		Amendments: []history.AmendmentEvent{
			{VersionNo: 2, Description: "amend section 2", Actor: "CM Alpha"},
		},
	}
	p := Legislation("CB 1001 parks levy", h, nil, mustStyle(t, "concise"))

	idx := func(s string) int { return strings.Index(p, s) }
	s1 := idx("SECTION 1 - WHAT WAS ORIGINALLY PROPOSED")
	s2 := idx("SECTION 2 - AMENDMENTS AND VOTES")
	s3 := idx("SECTION 3 - WHAT THE FINAL TEXT DOES")
	s4 := idx("SECTION 4 - KEY CHANGES FROM THE ORIGINAL")
	if s1 < 0 || s2 < 0 || s3 < 0 || s4 < 0 {
		t.Fatalf("missing section header(s): %d %d %d %d", s1, s2, s3, s4)
	}
	if !(s1 < s2 && s2 < s3 && s3 < s4) {
		t.Fatalf("sections out of order: %d %d %d %d", s1, s2, s3, s4)
	}
	if !strings.Contains(p, "amend section 2") {
		t.Fatalf("amendment missing from prompt")
	}
}

func TestLegislationDeltaTrivialWithoutModel(t *testing.T) {
	h := history.History{
		OriginalInput: "same text",
		FinalText:     "same text",
		Delta:         history.ComputeDelta("same text", "same text"),
	}
	p := Legislation("CB 1002", h, nil, mustStyle(t, "concise"))
	if !strings.Contains(p, history.NoSubstantiveChange) {
		t.Fatalf("key changes section should carry %q", history.NoSubstantiveChange)
	}
}

func TestLegislationDocSummariesOrderedAndBudgeted(t *testing.T) {
	h := history.History{OriginalInput: "o", FinalText: "o"}
	var docs []DocumentSummaryInput
	for i := 9; i >= 0; i-- {
		docs = append(docs, DocumentSummaryInput{
			DocumentID: fmt.Sprintf("doc-%02d", i),
			Headline:   fmt.Sprintf("headline %d", i),
			Body:       strings.Repeat("x", 900),
		})
	}
	p := Legislation("CB 1003", h, docs, mustStyle(t, "concise"))

	if len(p) > mustStyle(t, "concise").MaxPromptLen {
		t.Fatalf("prompt exceeds budget: %d", len(p))
	}
	// Low-numbered document ids survive; the tail is dropped.
	if !strings.Contains(p, "doc-00") {
		t.Fatalf("doc-00 should be included")
	}
	if strings.Contains(p, "doc-09") {
		t.Fatalf("doc-09 should have been dropped by the budget")
	}
	if i0, i1 := strings.Index(p, "doc-00"), strings.Index(p, "doc-01"); i1 >= 0 && i1 < i0 {
		t.Fatalf("document summaries out of id order")
	}
}

func TestMeetingPreambleAndOrder(t *testing.T) {
	items := []LegislationSummaryInput{
		{RecordNo: "CB 1002", Headline: "h2", Body: "b2"},
		{RecordNo: "CB 1001", Headline: "h1", Body: "b1"},
	}
	p := Meeting("Transportation Committee", items, mustStyle(t, "concise"))
	if !strings.Contains(p, "single cohesive overview") {
		t.Fatalf("preamble missing")
	}
	if i1, i2 := strings.Index(p, "CB 1001"), strings.Index(p, "CB 1002"); i1 < 0 || i2 < 0 || i2 < i1 {
		t.Fatalf("items not in record-number order: %d %d", i1, i2)
	}
}

func TestDocumentPromptBounded(t *testing.T) {
	style := mustStyle(t, "concise")
	p := Document("Attachment A", strings.Repeat("long text ", 5000), style)
	if len(p) > style.MaxPromptLen {
		t.Fatalf("document prompt exceeds budget: %d > %d", len(p), style.MaxPromptLen)
	}
	if !strings.Contains(p, "HEADLINE:") || !strings.Contains(p, "SUMMARY:") {
		t.Fatalf("response format markers missing")
	}
}

func TestAssemblersArePure(t *testing.T) {
	h := history.History{OriginalInput: "o", FinalText: "f", Delta: history.ComputeDelta("o", "f")}
	a := Legislation("CB 1004", h, nil, mustStyle(t, "detailed"))
	b := Legislation("CB 1004", h, nil, mustStyle(t, "detailed"))
	if a != b {
		t.Fatalf("legislation assembler is not deterministic")
	}
}
