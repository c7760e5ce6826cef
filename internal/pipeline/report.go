package pipeline

import (
	"errors"
	"time"

	"legisum/internal/model"
)

// Reason codes recorded for skipped and failed entities.
const (
	ReasonMissingInput      = "missing_input"
	ReasonMeetingCanceled   = "meeting_canceled"
	ReasonDeferredDocuments = "deferred_missing_document_summaries"
	ReasonClaimHeld         = "claim_held"
	ReasonMalformedHistory  = "malformed_history"
	ReasonGenerationFailed  = "generation_failed"
)

// ErrTierFailures is returned when a tier's failure rate exceeded the
// configured threshold and the run was cut short.
var ErrTierFailures = errors.New("pipeline: tier failure rate exceeded threshold")

// TierCounts is the per-tier accounting of a run.
type TierCounts struct {
	Created        int `json:"created"`
	AlreadyCurrent int `json:"already_current"`
	Skipped        int `json:"skipped"`
	Failed         int `json:"failed"`
}

func (c TierCounts) processed() int {
	return c.Created + c.AlreadyCurrent + c.Skipped + c.Failed
}

// Failure records one entity the run could not summarize.
type Failure struct {
	Entity model.EntityRef `json:"entity"`
	Reason string          `json:"reason"`
	Err    string          `json:"error,omitempty"`
}

// RunReport is the result of one pipeline run.
type RunReport struct {
	RunID    string    `json:"run_id"`
	Style    string    `json:"style"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`

	Documents   TierCounts `json:"documents"`
	Legislation TierCounts `json:"legislation"`
	Meetings    TierCounts `json:"meetings"`

	Failures []Failure `json:"failures,omitempty"`

	// Aborted is set when the run stopped early; AbortReason names the
	// cause (resource exhaustion or failure-rate threshold).
	Aborted     bool   `json:"aborted,omitempty"`
	AbortReason string `json:"abort_reason,omitempty"`
}

func (r *RunReport) tier(kind model.EntityKind) *TierCounts {
	switch kind {
	case model.KindDocument:
		return &r.Documents
	case model.KindLegislation:
		return &r.Legislation
	default:
		return &r.Meetings
	}
}
