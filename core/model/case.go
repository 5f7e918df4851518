package model

import "time"

// CaseStatus is the lifecycle state of an emergency case.
type CaseStatus string

const (
	StatusPending    CaseStatus = "PENDING"
	StatusAssigned   CaseStatus = "ASSIGNED"
	StatusInProgress CaseStatus = "IN_PROGRESS"
	StatusCompleted  CaseStatus = "COMPLETED"
	StatusCancelled  CaseStatus = "CANCELLED"
)

// Terminal reports whether the status has no outgoing transitions.
func (s CaseStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Grade is a display label derived from the numeric severity.
type Grade string

const (
	GradeCritical  Grade = "CRITICAL"
	GradeUrgent    Grade = "URGENT"
	GradeNonUrgent Grade = "NON_URGENT"
)

// Location is a reported incident position.
type Location struct {
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// StatusChange is one entry of a case's append-only audit trail.
type StatusChange struct {
	From    CaseStatus `json:"from"`
	To      CaseStatus `json:"to"`
	At      time.Time  `json:"at"`
	ActorID string     `json:"actor_id"`
}

// Case is one emergency incident tracked from report to resolution.
type Case struct {
	ID                     string         `json:"id"`
	ReporterID             string         `json:"reporter_id"`
	Status                 CaseStatus     `json:"status"`
	Severity               int            `json:"severity"` // 1..4, 4 is most critical
	Location               Location       `json:"location"`
	AssignedOrganizationID string         `json:"assigned_organization_id,omitempty"`
	Notes                  string         `json:"notes,omitempty"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
	History                []StatusChange `json:"history"`

	// Version counts committed writes and backs the repository's
	// compare-and-swap. It is owned by the store, not by callers.
	Version int64 `json:"version"`
}

// Grade maps the numeric severity onto its display label.
// Severity 3 and 4 are treated as critical dispatches.
func (c *Case) Grade() Grade {
	switch {
	case c.Severity >= 3:
		return GradeCritical
	case c.Severity == 2:
		return GradeUrgent
	default:
		return GradeNonUrgent
	}
}

// Clone returns a deep copy so store implementations can hand out
// snapshots without sharing the history slice.
func (c *Case) Clone() *Case {
	cp := *c
	cp.History = make([]StatusChange, len(c.History))
	copy(cp.History, c.History)
	return &cp
}
