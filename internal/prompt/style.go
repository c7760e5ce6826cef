package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Style is a named summarization profile: prompt template selection plus
// length budgets.
type Style struct {
	Name string

	// MaxPromptLen caps assembled prompt length in bytes. Assemblers trim
	// source material, never the instructions, to stay under it.
	MaxPromptLen int

	// MaxSummaryTokens and MaxHeadlineTokens are generation budgets
	// handed to the engine.
	MaxSummaryTokens  int
	MaxHeadlineTokens int
}

var styles = map[string]Style{
	"concise": {
		Name:              "concise",
		MaxPromptLen:      8000,
		MaxSummaryTokens:  256,
		MaxHeadlineTokens: 30,
	},
	"detailed": {
		Name:              "detailed",
		MaxPromptLen:      16000,
		MaxSummaryTokens:  512,
		MaxHeadlineTokens: 30,
	},
}

// StyleByName resolves a style. Unknown names are an error, not a default:
// callers pass user input here.
func StyleByName(name string) (Style, error) {
	s, ok := styles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Style{}, fmt.Errorf("unknown summarization style %q", name)
	}
	return s, nil
}

// StyleNames lists the registered styles.
func StyleNames() []string {
	return []string{"concise", "detailed"}
}

// truncate cuts s to at most n bytes, backing up to a space when one is
// close enough. Budgets are coarse; rune-exact cutting is not required.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := s[:n]
	if idx := strings.LastIndexByte(cut, ' '); idx > n/2 {
		return cut[:idx]
	}
	// No usable space; make sure the cut did not split a rune.
	for len(cut) > 0 {
		if r, size := utf8.DecodeLastRuneInString(cut); r != utf8.RuneError || size > 1 {
			break
		}
		cut = cut[:len(cut)-1]
	}
	return cut
}
