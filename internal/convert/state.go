// Package convert is the Converter/Rebuilder/Exporter (C8): it moves a
// Romfile between format equivalence classes by staging the decoded
// source into TMP_DIRECTORY, invoking the right External Tool Adapter
// (C9) adapter, verifying the output via the Hash Engine (C3), publishing
// it into ROM_DIRECTORY (or an Exporter target), and reconciling the
// result into the Catalog Store (C1).
//
// The pipeline shape (stage, invoke, verify, publish, record) is grounded
// on the teacher's internal/app/upload.go stage-then-upload-then-record
// structure; the explicit state enum below has no direct teacher
// precedent beyond that general "stage-then-commit" shape, per
// SPEC_FULL.md §4.8.
package convert

import "fmt"

// ConversionState is one stage of a single conversion's lifecycle,
// spec.md §4.8's state machine:
//
//	Planned → Staged(tmp) → Encoded(tmp) → Verified(optional) → Published(target) → Reconciled(C1)
//	         ↑                                                                   ↓
//	         └──────────────────── Failed (scoped cleanup, no C1 write) ─────────┘
type ConversionState string

const (
	StatePlanned    ConversionState = "planned"
	StateStaged     ConversionState = "staged"
	StateEncoded    ConversionState = "encoded"
	StateVerified   ConversionState = "verified"
	StatePublished  ConversionState = "published"
	StateReconciled ConversionState = "reconciled"
	StateFailed     ConversionState = "failed"
)

// Event names a transition trigger.
type Event string

const (
	EventStage      Event = "stage"
	EventEncode     Event = "encode"
	EventVerify     Event = "verify"
	EventSkipVerify Event = "skip_verify"
	EventPublish    Event = "publish"
	EventReconcile  Event = "reconcile"
	EventFail       Event = "fail"
)

var transitions = map[ConversionState]map[Event]ConversionState{
	StatePlanned: {
		EventStage: StateStaged,
		EventFail:  StateFailed,
	},
	StateStaged: {
		EventEncode: StateEncoded,
		EventFail:   StateFailed,
	},
	StateEncoded: {
		EventVerify:     StateVerified,
		EventSkipVerify: StatePublished,
		EventFail:       StateFailed,
	},
	StateVerified: {
		EventPublish: StatePublished,
		EventFail:    StateFailed,
	},
	StatePublished: {
		EventReconcile: StateReconciled,
		EventFail:      StateFailed,
	},
}

// Transition returns the next state for event, or an error if event is
// not valid from the current state. Failed and Reconciled are terminal:
// every event from them is rejected.
func (s ConversionState) Transition(e Event) (ConversionState, error) {
	next, ok := transitions[s][e]
	if !ok {
		return s, fmt.Errorf("convert: %s has no %s transition", s, e)
	}
	return next, nil
}
