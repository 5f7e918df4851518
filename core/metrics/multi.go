package metrics

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordAssignment forwards the records to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordAssignment(res []AssignmentResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordAssignment(res); err != nil {
			return err
		}
	}
	return nil
}

// RecordTransition forwards transition events to sinks that record them.
func (m *MultiSink) RecordTransition(ev TransitionEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(TransitionRecorder); ok {
			if err := rec.RecordTransition(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordCaseCreated forwards intake events to sinks that record them.
func (m *MultiSink) RecordCaseCreated(ev CaseCreatedEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(CaseCreatedRecorder); ok {
			if err := rec.RecordCaseCreated(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordConnectionCount forwards the gauge value to sinks that record it.
func (m *MultiSink) RecordConnectionCount(n int) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ConnectionRecorder); ok {
			if err := rec.RecordConnectionCount(n); err != nil {
				return err
			}
		}
	}
	return nil
}
