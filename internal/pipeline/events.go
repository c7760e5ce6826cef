package pipeline

import (
	"time"

	"legisum/internal/model"
)

type EventKind string

const (
	EventRunStarted  EventKind = "run_started"
	EventTierStarted EventKind = "tier_started"
	EventEntityDone  EventKind = "entity_done"
	EventTierDone    EventKind = "tier_done"
	EventRunFinished EventKind = "run_finished"
)

// Event is one progress notification from a run. Entity and Outcome are
// set only on EntityDone; Tier on tier events and EntityDone.
type Event struct {
	Kind    EventKind        `json:"kind"`
	RunID   string           `json:"run_id"`
	Tier    model.EntityKind `json:"tier,omitempty"`
	Entity  model.EntityRef  `json:"entity,omitempty"`
	Outcome string           `json:"outcome,omitempty"`
	Reason  string           `json:"reason,omitempty"`
	Time    time.Time        `json:"time"`
}

// Emitter receives progress events. Implementations must not block; the
// runner calls Emit inline.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(Event)

func (f EmitterFunc) Emit(ev Event) { f(ev) }
