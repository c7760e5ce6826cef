package history

import (
	"fmt"
	"sort"
	"time"

	"legisum/internal/model"
)

// AmendmentEvent is one action record classified as an amendment, in
// version order.
type AmendmentEvent struct {
	VersionNo   int
	Description string
	Actor       string
	Result      model.ActionResult
	Date        time.Time
}

// VoteEvent is one recorded vote, in version order.
type VoteEvent struct {
	VersionNo  int
	ActionText string
	Actor      string
	Result     model.ActionResult
	Date       time.Time
	VoteDetail string
}

// History is the reconstructed chronology of one legislation item.
type History struct {
	// OriginalInput is the text standing in for the original proposal:
	// the full text when present, otherwise the title.
	OriginalInput string
	Amendments    []AmendmentEvent
	Votes         []VoteEvent
	FinalText     string
	Delta         Delta
}

// MalformedHistoryError wraps a validation failure on an action record.
// The orchestrator records the entity and moves on; it never crashes a
// tier.
type MalformedHistoryError struct {
	LegislationID string
	Err           error
}

func (e *MalformedHistoryError) Error() string {
	return fmt.Sprintf("legislation %s: malformed history: %v", e.LegislationID, e.Err)
}
func (e *MalformedHistoryError) Unwrap() error { return e.Err }

// Reconstruct classifies the legislation's action records and derives the
// amendment sequence, vote history, and original-vs-final delta.
//
// Ordering by version number is authoritative; the date field never
// reorders records. An empty action log is not an error: the original
// marker is synthesized from the full text and the amendment list is
// empty.
func Reconstruct(leg model.Legislation) (History, error) {
	for _, rec := range leg.Actions {
		if err := rec.Validate(); err != nil {
			return History{}, &MalformedHistoryError{LegislationID: leg.ID, Err: err}
		}
	}

	records := append([]model.ActionRecord(nil), leg.Actions...)
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].VersionNo < records[j].VersionNo
	})

	original := leg.FullText
	if original == "" {
		original = leg.Title
	}
	finalText := leg.FinalText
	if finalText == "" {
		finalText = leg.FullText
	}

	h := History{
		OriginalInput: original,
		FinalText:     finalText,
		Delta:         ComputeDelta(leg.FullText, finalText),
	}
	if len(records) == 0 {
		return h, nil
	}

	minVersion := records[0].VersionNo
	for _, rec := range records {
		cat := Classify(rec)
		if rec.VersionNo == minVersion {
			cat = CategoryOriginal
		}
		switch cat {
		case CategoryAmendment:
			h.Amendments = append(h.Amendments, AmendmentEvent{
				VersionNo:   rec.VersionNo,
				Description: rec.ActionText,
				Actor:       rec.Actor,
				Result:      rec.Result,
				Date:        rec.Date,
			})
		}
		// Votes are tracked independently of the category: an amendment
		// that was voted on appears in both sequences.
		if rec.Result == model.ResultPassed || rec.Result == model.ResultFailed {
			h.Votes = append(h.Votes, VoteEvent{
				VersionNo:  rec.VersionNo,
				ActionText: rec.ActionText,
				Actor:      rec.Actor,
				Result:     rec.Result,
				Date:       rec.Date,
				VoteDetail: rec.VoteDetail,
			})
		}
	}
	return h, nil
}
