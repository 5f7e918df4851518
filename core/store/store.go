package store

import (
	"context"
	"errors"

	"github.com/aidline/aidline/core/model"
)

// ErrCaseNotFound is returned when a case id is unknown to the repository.
var ErrCaseNotFound = errors.New("case not found")

// ErrConcurrencyConflict is returned when a compare-and-swap on a case lost
// a race. The operation is retryable after re-reading the case.
var ErrConcurrencyConflict = errors.New("case was modified concurrently")

// ErrOrganizationNotFound is returned when an organization id is unknown.
var ErrOrganizationNotFound = errors.New("organization not found")

// ErrCaseExists is returned when Create is called with an id already taken.
var ErrCaseExists = errors.New("case already exists")

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status     model.CaseStatus
	ReporterID string
}

// CaseRepository is the durable store for case records. Save performs a
// compare-and-swap on Case.Version: the write succeeds only if the stored
// version still equals the version the caller read, and the stored version
// is incremented on success.
type CaseRepository interface {
	Create(ctx context.Context, c *model.Case) error
	Save(ctx context.Context, c *model.Case) error
	Load(ctx context.Context, id string) (*model.Case, error)
	List(ctx context.Context, f Filter) ([]*model.Case, error)
}

// ResponderDirectory exposes responder organizations and their locations.
type ResponderDirectory interface {
	ListResponders(ctx context.Context, kind model.ResponderKind) ([]model.ResponderLocation, error)
	Organization(ctx context.Context, id string) (*model.ResponderLocation, error)
}
