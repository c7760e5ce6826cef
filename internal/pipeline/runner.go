// Package pipeline orchestrates summarization across the three tiers.
// Tiers run strictly in order: every document gets its pass before any
// legislation item, and every legislation item before any meeting, so a
// higher tier only ever reads committed lower-tier summaries.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"legisum/internal/artifact"
	"legisum/internal/engine"
	"legisum/internal/history"
	"legisum/internal/model"
	"legisum/internal/prompt"
	"legisum/internal/store"
	"legisum/internal/summary"
)

// Config wires a Runner. Store, Engine, and Cache are required; Archive
// and Emitter are optional.
type Config struct {
	Store   store.Store
	Engine  engine.Generator
	Cache   *summary.Cache
	Archive artifact.Archive
	Emitter Emitter

	// FailureRateThreshold cuts a tier short when failed/processed
	// exceeds it (0 disables the check; entities always accumulate
	// individually otherwise).
	FailureRateThreshold float64
}

type Runner struct {
	store     store.Store
	engine    engine.Generator
	cache     *summary.Cache
	archive   artifact.Archive
	emitter   Emitter
	threshold float64
}

func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("pipeline: store is required")
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("pipeline: engine is required")
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("pipeline: summary cache is required")
	}
	return &Runner{
		store:     cfg.Store,
		engine:    cfg.Engine,
		cache:     cfg.Cache,
		archive:   cfg.Archive,
		emitter:   cfg.Emitter,
		threshold: cfg.FailureRateThreshold,
	}, nil
}

var tierOrder = []model.EntityKind{model.KindDocument, model.KindLegislation, model.KindMeeting}

// Run processes every in-scope entity lacking a current summary for the
// style. Individual failures are recorded and the tier continues; only
// model resource exhaustion (or the failure-rate threshold) aborts.
func (r *Runner) Run(ctx context.Context, styleName string, scope Scope) (RunReport, error) {
	return r.RunWithID(ctx, uuid.NewString(), styleName, scope)
}

// RunWithID is Run with a caller-chosen run id, for callers that need the
// id before the run finishes.
func (r *Runner) RunWithID(ctx context.Context, runID, styleName string, scope Scope) (RunReport, error) {
	style, err := prompt.StyleByName(styleName)
	if err != nil {
		return RunReport{}, err
	}
	report := RunReport{
		RunID:   runID,
		Style:   style.Name,
		Started: time.Now().UTC(),
	}
	r.emit(Event{Kind: EventRunStarted, RunID: report.RunID, Time: report.Started})
	log.Printf("pipeline: run %s started (style=%s scope=%s)", report.RunID, style.Name, scope)

	for _, tier := range tierOrder {
		if err := r.runTier(ctx, &report, tier, style, scope); err != nil {
			report.Aborted = true
			report.AbortReason = err.Error()
			r.finish(&report)
			return report, err
		}
	}
	r.finish(&report)
	return report, nil
}

func (r *Runner) finish(report *RunReport) {
	report.Finished = time.Now().UTC()
	r.emit(Event{Kind: EventRunFinished, RunID: report.RunID, Time: report.Finished})
	log.Printf("pipeline: run %s finished (docs=%+v leg=%+v mtg=%+v aborted=%v)",
		report.RunID, report.Documents, report.Legislation, report.Meetings, report.Aborted)
}

func (r *Runner) runTier(ctx context.Context, report *RunReport, tier model.EntityKind, style prompt.Style, scope Scope) error {
	r.emit(Event{Kind: EventTierStarted, RunID: report.RunID, Tier: tier, Time: time.Now().UTC()})
	counts := report.tier(tier)

	refs, err := r.tierRefs(ctx, tier, scope)
	if err != nil {
		return fmt.Errorf("list %s tier: %w", tier, err)
	}
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}
		res := r.processOne(ctx, report.RunID, ref, style)
		r.record(report, counts, tier, ref, res)

		if errors.Is(res.err, engine.ErrResourceExhausted) {
			return fmt.Errorf("%s tier: %w", tier, engine.ErrResourceExhausted)
		}
		if r.threshold > 0 && counts.processed() > 0 {
			rate := float64(counts.Failed) / float64(counts.processed())
			if rate > r.threshold {
				return fmt.Errorf("%w: %s tier at %.0f%%", ErrTierFailures, tier, rate*100)
			}
		}
	}
	r.emit(Event{Kind: EventTierDone, RunID: report.RunID, Tier: tier, Time: time.Now().UTC()})
	return nil
}

func (r *Runner) tierRefs(ctx context.Context, tier model.EntityKind, scope Scope) ([]model.EntityRef, error) {
	var refs []model.EntityRef
	switch tier {
	case model.KindDocument:
		docs, err := r.store.ListDocuments(ctx)
		if err != nil {
			return nil, err
		}
		for _, d := range docs {
			refs = append(refs, d.Ref())
		}
	case model.KindLegislation:
		legs, err := r.store.ListLegislation(ctx)
		if err != nil {
			return nil, err
		}
		for _, l := range legs {
			refs = append(refs, l.Ref())
		}
	default:
		meetings, err := r.store.ListMeetings(ctx)
		if err != nil {
			return nil, err
		}
		for _, m := range meetings {
			refs = append(refs, m.Ref())
		}
	}
	filtered := refs[:0]
	for _, ref := range refs {
		if scope.Includes(ref) {
			filtered = append(filtered, ref)
		}
	}
	return filtered, nil
}

type entityResult struct {
	outcome string // created | already_current | skipped | failed
	reason  string
	err     error
}

func (r *Runner) record(report *RunReport, counts *TierCounts, tier model.EntityKind, ref model.EntityRef, res entityResult) {
	switch res.outcome {
	case "created":
		counts.Created++
	case "already_current":
		counts.AlreadyCurrent++
	case "skipped":
		counts.Skipped++
	default:
		counts.Failed++
		failure := Failure{Entity: ref, Reason: res.reason}
		if res.err != nil {
			failure.Err = res.err.Error()
		}
		report.Failures = append(report.Failures, failure)
		log.Printf("pipeline: %s failed (%s): %v", ref, res.reason, res.err)
	}
	r.emit(Event{
		Kind: EventEntityDone, RunID: report.RunID, Tier: tier,
		Entity: ref, Outcome: res.outcome, Reason: res.reason,
		Time: time.Now().UTC(),
	})
}

// SummarizeOne runs the pipeline for a single entity, outside of a full
// run. Tier preconditions still apply.
func (r *Runner) SummarizeOne(ctx context.Context, ref model.EntityRef, styleName string) (model.Summary, error) {
	style, err := prompt.StyleByName(styleName)
	if err != nil {
		return model.Summary{}, err
	}
	res := r.processOne(ctx, "adhoc-"+uuid.NewString(), ref, style)
	if res.err != nil {
		return model.Summary{}, res.err
	}
	switch res.outcome {
	case "created", "already_current":
		return r.store.GetSummary(ctx, ref, style.Name)
	default:
		return model.Summary{}, fmt.Errorf("summarize %s: %s (%s)", ref, res.outcome, res.reason)
	}
}

func (r *Runner) processOne(ctx context.Context, runID string, ref model.EntityRef, style prompt.Style) entityResult {
	switch ref.Kind {
	case model.KindDocument:
		return r.processDocument(ctx, runID, ref, style)
	case model.KindLegislation:
		return r.processLegislation(ctx, runID, ref, style)
	default:
		return r.processMeeting(ctx, runID, ref, style)
	}
}

func (r *Runner) processDocument(ctx context.Context, runID string, ref model.EntityRef, style prompt.Style) entityResult {
	doc, err := r.store.GetDocument(ctx, ref.ID)
	if err != nil {
		return entityResult{outcome: "failed", reason: ReasonGenerationFailed, err: err}
	}
	// Absent extracted text means the extraction service could not read
	// the file; not an error here.
	if strings.TrimSpace(doc.ExtractedText) == "" {
		return entityResult{outcome: "skipped", reason: ReasonMissingInput}
	}
	_, outcome, err := r.cache.GetOrCreate(ctx, ref, style.Name, doc.Version, func(ctx context.Context) (summary.Content, error) {
		return r.generate(ctx, runID, ref, prompt.Document(doc.Title, doc.ExtractedText, style), style, false)
	})
	return r.toResult(outcome, err)
}

func (r *Runner) processLegislation(ctx context.Context, runID string, ref model.EntityRef, style prompt.Style) entityResult {
	leg, err := r.store.GetLegislation(ctx, ref.ID)
	if err != nil {
		return entityResult{outcome: "failed", reason: ReasonGenerationFailed, err: err}
	}
	docs, err := r.store.DocumentsForLegislation(ctx, leg.ID)
	if err != nil {
		return entityResult{outcome: "failed", reason: ReasonGenerationFailed, err: err}
	}

	// Every readable document must already be summarized; otherwise the
	// item is deferred to a later pass to respect tier ordering.
	var docSummaries []prompt.DocumentSummaryInput
	for _, doc := range docs {
		if strings.TrimSpace(doc.ExtractedText) == "" {
			continue
		}
		sum, err := r.store.GetSummary(ctx, doc.Ref(), style.Name)
		if errors.Is(err, store.ErrNotFound) {
			return entityResult{outcome: "skipped", reason: ReasonDeferredDocuments}
		}
		if err != nil {
			return entityResult{outcome: "failed", reason: ReasonGenerationFailed, err: err}
		}
		docSummaries = append(docSummaries, prompt.DocumentSummaryInput{
			DocumentID: doc.ID,
			Headline:   sum.Headline,
			Body:       sum.Body,
		})
	}

	hist, err := history.Reconstruct(leg)
	if err != nil {
		return entityResult{outcome: "failed", reason: ReasonMalformedHistory, err: err}
	}
	_, outcome, err := r.cache.GetOrCreate(ctx, ref, style.Name, leg.Version, func(ctx context.Context) (summary.Content, error) {
		return r.generate(ctx, runID, ref, prompt.Legislation(leg.Title, hist, docSummaries, style), style, false)
	})
	return r.toResult(outcome, err)
}

func (r *Runner) processMeeting(ctx context.Context, runID string, ref model.EntityRef, style prompt.Style) entityResult {
	meeting, err := r.store.GetMeeting(ctx, ref.ID)
	if err != nil {
		return entityResult{outcome: "failed", reason: ReasonGenerationFailed, err: err}
	}
	// Canceled meetings never happened; only active ones get summaries.
	if meeting.Status == model.MeetingCanceled {
		return entityResult{outcome: "skipped", reason: ReasonMeetingCanceled}
	}
	legs, err := r.store.LegislationForMeeting(ctx, meeting.ID)
	if err != nil {
		return entityResult{outcome: "failed", reason: ReasonGenerationFailed, err: err}
	}

	var items []prompt.LegislationSummaryInput
	for _, leg := range legs {
		sum, err := r.store.GetSummary(ctx, leg.Ref(), style.Name)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return entityResult{outcome: "failed", reason: ReasonGenerationFailed, err: err}
		}
		items = append(items, prompt.LegislationSummaryInput{
			RecordNo: leg.RecordNo,
			Headline: sum.Headline,
			Body:     sum.Body,
		})
	}
	if len(items) == 0 {
		return entityResult{outcome: "skipped", reason: ReasonMissingInput}
	}
	// Partial coverage proceeds in degraded mode; the summary is flagged.
	partial := len(items) < len(legs)
	_, outcome, err := r.cache.GetOrCreate(ctx, ref, style.Name, meeting.Version, func(ctx context.Context) (summary.Content, error) {
		return r.generate(ctx, runID, ref, prompt.Meeting(meeting.Department, items, style), style, partial)
	})
	return r.toResult(outcome, err)
}

func (r *Runner) toResult(outcome summary.Outcome, err error) entityResult {
	if errors.Is(err, summary.ErrClaimHeld) {
		return entityResult{outcome: "skipped", reason: ReasonClaimHeld}
	}
	if err != nil {
		return entityResult{outcome: "failed", reason: ReasonGenerationFailed, err: err}
	}
	if outcome == summary.OutcomeAlreadyCurrent {
		return entityResult{outcome: "already_current"}
	}
	return entityResult{outcome: "created"}
}

// generate runs one model call and parses the marker format. Prompt and
// raw output are archived when an archive is configured.
func (r *Runner) generate(ctx context.Context, runID string, ref model.EntityRef, promptText string, style prompt.Style, partial bool) (summary.Content, error) {
	r.archiveFile(ctx, runID, ref, "prompt.txt", promptText)
	raw, err := r.engine.Generate(ctx, promptText, engine.GenerateOptions{
		MaxTokens:   style.MaxSummaryTokens,
		Temperature: 0.3,
	})
	if err != nil {
		return summary.Content{}, err
	}
	r.archiveFile(ctx, runID, ref, "output.txt", raw)
	parsed := engine.ParseSummary(raw)
	return summary.Content{Headline: parsed.Headline, Body: parsed.Body, Partial: partial}, nil
}

func (r *Runner) archiveFile(ctx context.Context, runID string, ref model.EntityRef, name, content string) {
	if r.archive == nil {
		return
	}
	path := string(ref.Kind) + "/" + ref.ID + "/" + name
	if err := r.archive.Save(ctx, runID, path, []byte(content)); err != nil {
		log.Printf("pipeline: archive %s/%s: %v", runID, path, err)
	}
}

func (r *Runner) emit(ev Event) {
	if r.emitter != nil {
		r.emitter.Emit(ev)
	}
}
