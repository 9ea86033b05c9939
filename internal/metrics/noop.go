package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct                                          {}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink                                             {}
}

func (n *NoopSink) JobScheduled()                             {}
func (n *NoopSink) ScheduleRejected(reason string)            {}
func (n *NoopSink) JobOutcome(outcome string)                 {}
func (n *NoopSink) ActiveJobsUpdate(count int)                {}
func (n *NoopSink) WakeDrift(drift time.Duration)             {}
func (n *NoopSink) CommandHandled(accepted bool)              {}
func (n *NoopSink) ParseRejected(reason string)               {}
func (n *NoopSink) OutcomeRecorded(outcome string)            {}
func (n *NoopSink) RecordError()                              {}
func (n *NoopSink) EventsInFlightIncr()                       {}
func (n *NoopSink) EventsInFlightDecr()                       {}
func (n *NoopSink) BufferSizeUpdate(size int)                 {}
func (n *NoopSink) BufferCapacitySet(capacity int)            {}
func (n *NoopSink) BufferSaturationUpdate(saturation float64) {}
func (n *NoopSink) EmitError()                                {}
