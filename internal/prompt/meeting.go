package prompt

import (
	"fmt"
	"sort"
	"strings"
)

// LegislationSummaryInput is one already-generated legislation summary
// offered to the meeting assembler.
type LegislationSummaryInput struct {
	RecordNo string
	Headline string
	Body     string
}

// Meeting assembles the agenda-overview prompt from the meeting's
// legislation summaries, ordered by record number. The preamble instructs
// the model to write one cohesive overview rather than an item list.
func Meeting(department string, items []LegislationSummaryInput, style Style) string {
	sorted := append([]LegislationSummaryInput(nil), items...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RecordNo < sorted[j].RecordNo })

	var b strings.Builder
	fmt.Fprintf(&b, "The following are summaries of items on the agenda for a %s meeting. ", department)
	b.WriteString("Write a single cohesive overview of the meeting, not a list of items. ")
	b.WriteString("Capture the most important legislative actions and how they relate.\n\n")

	budget := style.MaxPromptLen - b.Len() - 160
	for i, item := range sorted {
		entry := fmt.Sprintf("%d. %s - %s: %s\n\n", i+1, item.RecordNo, item.Headline, item.Body)
		if budget-len(entry) < 0 {
			break
		}
		budget -= len(entry)
		b.WriteString(entry)
	}

	b.WriteString("Format your response as:\nHEADLINE: [your headline here]\nSUMMARY: [your cohesive overview here]")
	return b.String()
}
