package prompt

import (
	"fmt"
	"sort"
	"strings"

	"legisum/internal/history"
)

// DocumentSummaryInput is one already-generated document summary offered to
// the legislation assembler.
type DocumentSummaryInput struct {
	DocumentID string
	Headline   string
	Body       string
}

// Legislation assembles the four-section prompt for one legislation item:
// original proposal, amendments list, final-text analysis, and the
// delta-derived key changes. Document summaries are included in document-id
// order; whole summaries are dropped from the end once the style's prompt
// budget is reached.
func Legislation(title string, h history.History, docSummaries []DocumentSummaryInput, style Style) string {
	sorted := append([]DocumentSummaryInput(nil), docSummaries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].DocumentID < sorted[j].DocumentID })

	var b strings.Builder
	b.WriteString("Summarize this city council legislation. Address each section in order.\n\n")
	fmt.Fprintf(&b, "Title: %s\n\n", truncate(title, 200))

	b.WriteString("SECTION 1 - WHAT WAS ORIGINALLY PROPOSED\n")
	b.WriteString(truncate(h.OriginalInput, style.MaxPromptLen/4))
	b.WriteString("\n\n")

	b.WriteString("SECTION 2 - AMENDMENTS AND VOTES\n")
	b.WriteString(formatAmendments(h))
	b.WriteString("\n\n")

	b.WriteString("SECTION 3 - WHAT THE FINAL TEXT DOES\n")
	b.WriteString(truncate(h.FinalText, style.MaxPromptLen/4))
	b.WriteString("\n\n")

	b.WriteString("SECTION 4 - KEY CHANGES FROM THE ORIGINAL\n")
	b.WriteString(keyChanges(h))
	b.WriteString("\n")

	// Document summaries fill whatever budget remains.
	remaining := style.MaxPromptLen - b.Len() - 160
	if len(sorted) > 0 && remaining > 0 {
		var docs strings.Builder
		docs.WriteString("\nRelated document summaries:\n")
		for _, ds := range sorted {
			entry := fmt.Sprintf("- [%s] %s: %s\n", ds.DocumentID, ds.Headline, ds.Body)
			if docs.Len()+len(entry) > remaining {
				break
			}
			docs.WriteString(entry)
		}
		b.WriteString(docs.String())
	}

	b.WriteString("\nFormat your response as:\nHEADLINE: [your headline here]\nSUMMARY: [your summary covering all four sections]")
	return b.String()
}

func formatAmendments(h history.History) string {
	var lines []string
	if len(h.Amendments) == 0 {
		lines = append(lines, "No amendments have been proposed to this legislation.")
	} else {
		for i, a := range h.Amendments {
			line := fmt.Sprintf("Amendment %d (v%d): %s", i+1, a.VersionNo, a.Description)
			if a.Actor != "" {
				line += fmt.Sprintf(" (by %s)", a.Actor)
			}
			if !a.Date.IsZero() {
				line += fmt.Sprintf(" on %s", a.Date.Format("2006-01-02"))
			}
			if a.Result != "" && a.Result != "unknown" {
				line += fmt.Sprintf(" - result: %s", a.Result)
			}
			lines = append(lines, line)
		}
	}
	if len(h.Votes) > 0 {
		lines = append(lines, "", "Vote history:")
		for _, v := range h.Votes {
			line := fmt.Sprintf("- v%d %s: %s", v.VersionNo, v.ActionText, v.Result)
			if v.VoteDetail != "" {
				line += fmt.Sprintf(" (%s)", v.VoteDetail)
			}
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func keyChanges(h history.History) string {
	if !h.Delta.Changed {
		return history.NoSubstantiveChange
	}
	return fmt.Sprintf("The final text differs from the original: %s.", h.Delta.Summary)
}
