// Package dispatch orchestrates case intake and assignment: geosearch picks
// a target organization, the lifecycle engine commits the transition and
// the event router tells everyone who needs to know. It is the only caller
// allowed to assign an organization that no human dispatcher chose.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aidline/aidline/core/geo"
	"github.com/aidline/aidline/core/lifecycle"
	"github.com/aidline/aidline/core/logger"
	"github.com/aidline/aidline/core/metrics"
	"github.com/aidline/aidline/core/model"
	"github.com/aidline/aidline/core/store"
)

// ErrNoCandidates is returned when auto-assignment finds no AVAILABLE
// responder within the search radius. The case stays PENDING; callers may
// retry with a larger radius or fall back to manual assignment.
var ErrNoCandidates = errors.New("no candidates available")

// Planner coordinates intake, assignment, cancellation and completion.
type Planner struct {
	engine  *lifecycle.Engine
	dir     store.ResponderDirectory
	repo    store.CaseRepository
	cfg     Config
	log     logger.Logger
	metrics metrics.MetricsSink
	now     func() time.Time
}

// NewPlanner creates a Planner. A nil sink disables metrics recording.
func NewPlanner(engine *lifecycle.Engine, repo store.CaseRepository, dir store.ResponderDirectory, cfg Config, sink metrics.MetricsSink, log logger.Logger) (*Planner, error) {
	if engine == nil || repo == nil || dir == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewPlanner")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Planner{
		engine:  engine,
		dir:     dir,
		repo:    repo,
		cfg:     cfg,
		log:     log,
		metrics: sink,
		now:     time.Now,
	}, nil
}

// Intake registers a newly reported case. The case starts in PENDING and
// case.created is broadcast to all responder roles.
func (p *Planner) Intake(ctx context.Context, reporterID string, severity int, loc model.Location) (*model.Case, error) {
	return p.engine.Create(ctx, reporterID, severity, loc)
}

// AutoAssign picks the nearest AVAILABLE responder of the kind matching the
// case severity and assigns the case to it. radiusKm <= 0 uses the
// configured default. The case must be PENDING; when geosearch comes up
// empty the case is left untouched and ErrNoCandidates is returned.
func (p *Planner) AutoAssign(ctx context.Context, caseID string, radiusKm float64) (*model.Case, error) {
	start := p.now()
	if radiusKm <= 0 {
		radiusKm = p.cfg.DefaultRadiusKm
	}
	c, err := p.repo.Load(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.Status != model.StatusPending {
		return nil, &lifecycle.InvalidTransitionError{From: c.Status, To: model.StatusAssigned}
	}

	kind := p.cfg.kindFor(c.Severity)
	cands, err := geo.FindNearby(ctx, p.dir, geo.Point{Lat: c.Location.Lat, Lng: c.Location.Lng}, radiusKm, kind)
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		p.log.Warnf("case %s: no %s within %.1f km", caseID, kind, radiusKm)
		return nil, ErrNoCandidates
	}
	best := cands[0]
	mean, std := geo.Summary(cands)
	p.log.Debugw("auto-assign candidates", map[string]any{
		"case_id":    caseID,
		"kind":       string(kind),
		"candidates": len(cands),
		"nearest_km": best.DistanceKm,
		"mean_km":    mean,
	})

	assigned, err := p.engine.Transition(ctx, caseID, model.StatusAssigned, p.cfg.SystemActorID,
		lifecycle.WithAssignedOrganization(best.OrganizationID))
	if err != nil {
		return nil, err
	}
	p.record(assigned, best.DistanceKm, mean, std, true, p.now().Sub(start))
	return assigned, nil
}

// ManualAssign assigns the case to an organization chosen by a dispatcher.
// The organization must exist and be of a kind that can receive cases;
// geosearch is not consulted.
func (p *Planner) ManualAssign(ctx context.Context, caseID, organizationID, actorID string) (*model.Case, error) {
	start := p.now()
	org, err := p.dir.Organization(ctx, organizationID)
	if err != nil {
		if errors.Is(err, store.ErrOrganizationNotFound) {
			return nil, &lifecycle.PreconditionError{Reason: fmt.Sprintf("organization %s does not exist", organizationID)}
		}
		return nil, err
	}
	if !org.Assignable() {
		return nil, &lifecycle.PreconditionError{Reason: fmt.Sprintf("organization %s cannot receive cases", organizationID)}
	}
	assigned, err := p.engine.Transition(ctx, caseID, model.StatusAssigned, actorID,
		lifecycle.WithAssignedOrganization(organizationID))
	if err != nil {
		return nil, err
	}
	p.record(assigned, 0, 0, 0, false, p.now().Sub(start))
	return assigned, nil
}

// Start marks an assigned case as being worked on.
func (p *Planner) Start(ctx context.Context, caseID, actorID string) (*model.Case, error) {
	return p.engine.Transition(ctx, caseID, model.StatusInProgress, actorID)
}

// Complete resolves a case that is IN_PROGRESS.
func (p *Planner) Complete(ctx context.Context, caseID, actorID string) (*model.Case, error) {
	return p.engine.Transition(ctx, caseID, model.StatusCompleted, actorID)
}

// Cancel cancels the case. Legal from PENDING, ASSIGNED and IN_PROGRESS;
// the last assignment is preserved for audit.
func (p *Planner) Cancel(ctx context.Context, caseID, actorID, reason string) (*model.Case, error) {
	opts := []lifecycle.Option{}
	if reason != "" {
		opts = append(opts, lifecycle.WithReason(reason))
	}
	return p.engine.Transition(ctx, caseID, model.StatusCancelled, actorID, opts...)
}

func (p *Planner) record(c *model.Case, distKm, mean, std float64, auto bool, latency time.Duration) {
	err := p.metrics.RecordAssignment([]metrics.AssignmentResult{{
		CaseID:         c.ID,
		OrganizationID: c.AssignedOrganizationID,
		Severity:       c.Severity,
		DistanceKm:     distKm,
		CandidateMean:  mean,
		CandidateStd:   std,
		Auto:           auto,
		Latency:        latency,
		Time:           p.now(),
	}})
	if err != nil {
		p.log.Errorf("metrics error: %v", err)
	}
}
