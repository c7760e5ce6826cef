package history

import (
	"fmt"
	"strings"
)

// NoSubstantiveChange is the delta summary when original and final text are
// identical.
const NoSubstantiveChange = "no substantive change"

// Delta is a coarse, paragraph-level comparison of the original and final
// text. Character-level diffing is deliberately out of scope.
type Delta struct {
	Changed           bool
	AddedParagraphs   int
	RemovedParagraphs int
	Summary           string
}

// ComputeDelta compares two texts paragraph by paragraph. Paragraphs are
// blank-line separated blocks; a paragraph counts as added when it appears
// in the final text but not the original, and removed in the reverse case.
func ComputeDelta(original, final string) Delta {
	if original == final {
		return Delta{Summary: NoSubstantiveChange}
	}
	origSet := paragraphSet(original)
	finalSet := paragraphSet(final)

	added := 0
	for p := range finalSet {
		if _, ok := origSet[p]; !ok {
			added++
		}
	}
	removed := 0
	for p := range origSet {
		if _, ok := finalSet[p]; !ok {
			removed++
		}
	}
	if added == 0 && removed == 0 {
		// Whitespace-only reflow: same paragraphs, different layout.
		return Delta{Summary: NoSubstantiveChange}
	}
	return Delta{
		Changed:           true,
		AddedParagraphs:   added,
		RemovedParagraphs: removed,
		Summary:           fmt.Sprintf("%d paragraph(s) added, %d paragraph(s) removed", added, removed),
	}
}

func paragraphSet(text string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		set[block] = struct{}{}
	}
	return set
}
