package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/aidline/aidline/core/metrics"
)

// PromSink records dispatch and lifecycle events in Prometheus metrics.
type PromSink struct {
	assignments *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	transitions *prometheus.CounterVec
	created     *prometheus.CounterVec
	connections prometheus.Gauge
}

// NewPromSink registers case metrics on the default Prometheus registerer.
// The Prometheus server should be started separately via StartPromServer.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	assignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "case_assignments_total",
		Help: "Total number of case assignments",
	}, []string{"organization_id", "severity", "auto"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "case_assignment_latency_seconds",
		Help:    "Time between assignment request and commit",
		Buckets: prometheus.DefBuckets,
	}, []string{"severity", "auto"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "case_transitions_total",
		Help: "Total number of committed case status transitions",
	}, []string{"from", "to"})
	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cases_created_total",
		Help: "Total number of cases reported",
	}, []string{"severity"})
	connections := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_connections",
		Help: "Number of live realtime connections",
	})

	if err := reg.Register(assignments); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			assignments = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(latency); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			latency = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(transitions); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			transitions = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(created); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			created = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(connections); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			connections = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}

	return &PromSink{
		assignments: assignments,
		latency:     latency,
		transitions: transitions,
		created:     created,
		connections: connections,
	}, nil
}

// RecordAssignment increments the counter and observes latency for each result.
func (s *PromSink) RecordAssignment(res []coremetrics.AssignmentResult) error {
	for _, r := range res {
		sev := strconv.Itoa(r.Severity)
		auto := strconv.FormatBool(r.Auto)
		s.assignments.WithLabelValues(r.OrganizationID, sev, auto).Inc()
		s.latency.WithLabelValues(sev, auto).Observe(r.Latency.Seconds())
	}
	return nil
}

// RecordTransition increments the transition counter.
func (s *PromSink) RecordTransition(ev coremetrics.TransitionEvent) error {
	s.transitions.WithLabelValues(string(ev.From), string(ev.To)).Inc()
	return nil
}

// RecordCaseCreated increments the intake counter.
func (s *PromSink) RecordCaseCreated(ev coremetrics.CaseCreatedEvent) error {
	s.created.WithLabelValues(strconv.Itoa(ev.Severity)).Inc()
	return nil
}

// RecordConnectionCount sets the gauge to the live connection count.
func (s *PromSink) RecordConnectionCount(n int) error {
	if s.connections != nil {
		s.connections.Set(float64(n))
	}
	return nil
}
