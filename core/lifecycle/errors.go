package lifecycle

import (
	"fmt"

	"github.com/aidline/aidline/core/model"
)

// InvalidTransitionError reports a requested edge that does not exist from
// the case's current status. The case is left untouched.
type InvalidTransitionError struct {
	From model.CaseStatus
	To   model.CaseStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: current=%s requested=%s", e.From, e.To)
}

// PreconditionError reports a transition whose required option was missing
// or referenced an ineligible organization.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed: %s", e.Reason)
}
