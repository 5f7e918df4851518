// Package lifecycle implements the case state machine. Every status change
// flows through Engine.Transition: it validates the edge, appends the audit
// entry, persists and broadcasts. No other mutation path exists.
package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aidline/aidline/core/logger"
	"github.com/aidline/aidline/core/model"
	"github.com/aidline/aidline/core/store"
)

// edges is the allowed transition table. PENDING is the sole initial
// status; COMPLETED and CANCELLED have no outgoing edges.
var edges = map[model.CaseStatus][]model.CaseStatus{
	model.StatusPending:    {model.StatusAssigned, model.StatusCancelled},
	model.StatusAssigned:   {model.StatusInProgress, model.StatusCancelled},
	model.StatusInProgress: {model.StatusCompleted, model.StatusCancelled},
}

func edgeAllowed(from, to model.CaseStatus) bool {
	for _, s := range edges[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Broadcaster delivers domain events after a commit. Implemented by the
// event router.
type Broadcaster interface {
	BroadcastCaseCreated(c *model.Case)
	BroadcastStatusChanged(ctx context.Context, c *model.Case, prev model.CaseStatus)
}

// Option carries optional transition data.
type Option func(*transitionOpts)

type transitionOpts struct {
	assignedOrganizationID string
	reason                 string
}

// WithAssignedOrganization sets the organization receiving the case.
// Required for transitions into ASSIGNED.
func WithAssignedOrganization(orgID string) Option {
	return func(o *transitionOpts) { o.assignedOrganizationID = orgID }
}

// WithReason attaches a free-form note to the transition, e.g. a
// cancellation reason.
func WithReason(reason string) Option {
	return func(o *transitionOpts) { o.reason = reason }
}

// Engine governs case statuses. Transitions on the same case are
// serialized by a per-case lock held from the read through the broadcast,
// so events leave in commit order; the repository's compare-and-swap is
// the second line of defense.
type Engine struct {
	repo      store.CaseRepository
	broadcast Broadcaster
	locks     *keyLocks
	log       logger.Logger
	now       func() time.Time
	newID     func() string
}

// NewEngine creates an Engine.
func NewEngine(repo store.CaseRepository, b Broadcaster, log logger.Logger) *Engine {
	return &Engine{
		repo:      repo,
		broadcast: b,
		locks:     newKeyLocks(),
		log:       log,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
}

// SetClock overrides the time source. Used in tests.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Create allocates a new case in PENDING, persists it and broadcasts
// case.created. History starts empty; the audit trail records transitions,
// not the birth of the case.
func (e *Engine) Create(ctx context.Context, reporterID string, severity int, loc model.Location) (*model.Case, error) {
	if reporterID == "" {
		return nil, &PreconditionError{Reason: "reporter id is required"}
	}
	if severity < 1 || severity > 4 {
		return nil, &PreconditionError{Reason: "severity must be between 1 and 4"}
	}
	now := e.now()
	c := &model.Case{
		ID:         e.newID(),
		ReporterID: reporterID,
		Status:     model.StatusPending,
		Severity:   severity,
		Location:   loc,
		CreatedAt:  now,
		UpdatedAt:  now,
		History:    []model.StatusChange{},
	}
	if err := e.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	e.log.Infof("case %s created by %s severity=%d", c.ID, reporterID, severity)
	e.broadcast.BroadcastCaseCreated(c)
	return c.Clone(), nil
}

// Transition moves the case along one allowed edge. On success the new
// status is committed, one history entry is appended and exactly one
// case.status-changed broadcast fires. On any failure the case is left
// unmodified and nothing is broadcast.
//
// The per-case lock is held through the broadcast, not just the write:
// clients must observe one case's transitions in commit order.
func (e *Engine) Transition(ctx context.Context, caseID string, to model.CaseStatus, actorID string, opts ...Option) (*model.Case, error) {
	var o transitionOpts
	for _, opt := range opts {
		opt(&o)
	}

	release := e.locks.acquire(caseID)
	defer release()
	c, prev, err := e.commit(ctx, caseID, to, actorID, o)
	if err != nil {
		return nil, err
	}

	e.log.Infof("case %s: %s -> %s by %s", c.ID, prev, c.Status, actorID)
	e.broadcast.BroadcastStatusChanged(ctx, c, prev)
	return c.Clone(), nil
}

// commit performs the read-validate-write span under the per-case lock.
func (e *Engine) commit(ctx context.Context, caseID string, to model.CaseStatus, actorID string, o transitionOpts) (*model.Case, model.CaseStatus, error) {
	c, err := e.repo.Load(ctx, caseID)
	if err != nil {
		return nil, "", err
	}
	prev := c.Status
	if !edgeAllowed(prev, to) {
		return nil, "", &InvalidTransitionError{From: prev, To: to}
	}
	if to == model.StatusAssigned {
		if o.assignedOrganizationID == "" {
			return nil, "", &PreconditionError{Reason: "assigned organization id is required for ASSIGNED"}
		}
		c.AssignedOrganizationID = o.assignedOrganizationID
	}
	if o.reason != "" {
		c.Notes = o.reason
	}
	now := e.now()
	c.Status = to
	c.UpdatedAt = now
	c.History = append(c.History, model.StatusChange{
		From:    prev,
		To:      to,
		At:      now,
		ActorID: actorID,
	})
	if err := e.repo.Save(ctx, c); err != nil {
		return nil, "", err
	}
	return c, prev, nil
}
