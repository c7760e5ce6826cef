package engine

import (
	"context"
	"strings"
)

// SummaryText is the parsed output of a headline+body generation.
type SummaryText struct {
	Headline string
	Body     string
}

// ParseSummary splits model output on the HEADLINE:/SUMMARY: markers the
// prompts ask for. Output that ignores the format is kept wholesale as the
// body, with the first sentence promoted to the headline.
func ParseSummary(raw string) SummaryText {
	raw = strings.TrimSpace(raw)
	if hIdx := strings.Index(raw, "HEADLINE:"); hIdx >= 0 {
		if sIdx := strings.Index(raw, "SUMMARY:"); sIdx > hIdx {
			headline := strings.TrimSpace(raw[hIdx+len("HEADLINE:") : sIdx])
			body := strings.TrimSpace(raw[sIdx+len("SUMMARY:"):])
			return SummaryText{Headline: headline, Body: body}
		}
	}
	headline := raw
	if dot := strings.Index(raw, "."); dot > 0 {
		headline = strings.TrimSpace(raw[:dot])
	}
	return SummaryText{Headline: headline, Body: raw}
}

// Generator is the subset of Manager the summarization call sites need.
// Prompt assembly stays pure; this is the single impure step.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}
