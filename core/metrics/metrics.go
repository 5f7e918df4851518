package metrics

import (
	"time"

	"github.com/aidline/aidline/core/model"
)

// AssignmentResult represents one committed case assignment to be recorded.
type AssignmentResult struct {
	CaseID         string
	OrganizationID string
	Severity       int
	DistanceKm     float64
	CandidateMean  float64
	CandidateStd   float64
	Auto           bool
	Latency        time.Duration
	Time           time.Time
}

// MetricsSink records assignment results for observability purposes.
type MetricsSink interface {
	RecordAssignment(results []AssignmentResult) error
}

// TransitionEvent captures one committed status change.
type TransitionEvent struct {
	CaseID   string
	From     model.CaseStatus
	To       model.CaseStatus
	Severity int
	Time     time.Time
}

// TransitionRecorder records case status transitions.
type TransitionRecorder interface {
	RecordTransition(ev TransitionEvent) error
}

// CaseCreatedEvent captures a case intake.
type CaseCreatedEvent struct {
	CaseID   string
	Severity int
	Time     time.Time
}

// CaseCreatedRecorder records case intakes.
type CaseCreatedRecorder interface {
	RecordCaseCreated(ev CaseCreatedEvent) error
}

// ConnectionRecorder records the live connection count.
type ConnectionRecorder interface {
	RecordConnectionCount(n int) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordAssignment([]AssignmentResult) error { return nil }

func (NopSink) RecordTransition(TransitionEvent) error { return nil }

func (NopSink) RecordCaseCreated(CaseCreatedEvent) error { return nil }

func (NopSink) RecordConnectionCount(int) error { return nil }
