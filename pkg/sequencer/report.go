// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package sequencer

import (
	"time"

	"github.com/platform-engineering-labs/formae-sequencer/pkg/model"
)

// Outcome is the result recorded for one report entry.
type Outcome string

const (
	OutcomeSucceeded  Outcome = "Succeeded"
	OutcomeFailed     Outcome = "Failed"
	OutcomeSkipped    Outcome = "Skipped"
	OutcomeRolledBack Outcome = "RolledBack"
)

// Phase separates entries produced by the main loop from teardown entries.
type Phase string

const (
	PhaseExecute  Phase = "execute"
	PhaseTeardown Phase = "teardown"
)

// Entry is one append-only record in a Report.
//
// Teardown entries carry the id of the descriptor that created the handle.
type Entry struct {
	OperationID string
	Phase       Phase
	Kind        model.OperationKind
	Handle      string
	Outcome     Outcome
	Err         error
	Reason      string
	Duration    time.Duration
}

// Observation holds the handles returned by a List operation.
type Observation struct {
	OperationID string
	Handles     []model.Handle
}

// Report is the record of one Execute call.
type Report struct {
	RunID        string
	StartedAt    time.Time
	FinishedAt   time.Time
	Entries      []Entry
	Observations []Observation
}

// Execution returns the main-loop entries, in execution order.
func (r *Report) Execution() []Entry {
	return r.phase(PhaseExecute)
}

// Teardown returns the teardown entries, in the order deletes were issued.
func (r *Report) Teardown() []Entry {
	return r.phase(PhaseTeardown)
}

func (r *Report) phase(p Phase) []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.Phase == p {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the number of entries with the given outcome.
func (r *Report) Count(outcome Outcome) int {
	n := 0
	for _, e := range r.Entries {
		if e.Outcome == outcome {
			n++
		}
	}
	return n
}

// Entry returns the entry for an operation id in the given phase.
func (r *Report) Entry(phase Phase, operationID string) (Entry, bool) {
	for _, e := range r.Entries {
		if e.Phase == phase && e.OperationID == operationID {
			return e, true
		}
	}
	return Entry{}, false
}

// Observed returns the handles listed by an operation.
func (r *Report) Observed(operationID string) []model.Handle {
	for _, o := range r.Observations {
		if o.OperationID == operationID {
			return o.Handles
		}
	}
	return nil
}

// Succeeded reports whether no entry failed.
func (r *Report) Succeeded() bool {
	return r.Count(OutcomeFailed) == 0 && r.Count(OutcomeSkipped) == 0
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
