package dispatch

import (
	"errors"

	"github.com/aretw0/fieldwatch/pkg/core"
)

// OutcomeKind classifies what happened to a rule during a dispatch.
type OutcomeKind string

const (
	// OutcomeRewritten: the header line was rewritten and written back.
	OutcomeRewritten OutcomeKind = "rewritten"
	// OutcomeUnchanged: the header already carried the value, nothing written.
	OutcomeUnchanged OutcomeKind = "unchanged"
	// OutcomeHeaderMissing: no line starts with the header, nothing written.
	OutcomeHeaderMissing OutcomeKind = "header-missing"
	// OutcomeInvoked: the action ran successfully.
	OutcomeInvoked OutcomeKind = "invoked"
	// OutcomeSuppressed: first observation of the field, the action did not run.
	OutcomeSuppressed OutcomeKind = "suppressed"
	// OutcomeFailed: the reaction failed; Err holds the cause.
	OutcomeFailed OutcomeKind = "failed"
)

// Outcome records the reaction of a single rule whose field changed.
// Rules that were skipped or saw no change produce no Outcome.
type Outcome struct {
	Rule     core.Rule
	Kind     OutcomeKind
	Previous any
	Current  any
	Err      error
}

// Report summarises one Open or Change call.
type Report struct {
	DocumentID string
	// Seeded counts cache entries written by Open.
	Seeded   int
	Outcomes []Outcome
	// Errors that are not tied to a single rule (rule source failure, panic).
	Failures []error
}

// Count returns the number of outcomes of the given kind.
func (r Report) Count(kind OutcomeKind) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Kind == kind {
			n++
		}
	}
	return n
}

// Err joins every failure of the dispatch, or returns nil.
func (r Report) Err() error {
	errs := append([]error(nil), r.Failures...)
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errors.Join(errs...)
}

func (r *Report) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}
