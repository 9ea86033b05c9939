package metrics

import "time"

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate errors.
// If the metrics backend is unavailable, implementations log warnings and continue.
type Sink interface {
	// Scheduler metrics
	JobScheduled()
	ScheduleRejected(reason string)
	JobOutcome(outcome string)
	ActiveJobsUpdate(count int)
	WakeDrift(drift time.Duration)

	// Dispatcher metrics
	CommandHandled(accepted bool)
	ParseRejected(reason string)

	// Recorder metrics
	OutcomeRecorded(outcome string)
	RecordError()
	EventsInFlightIncr()
	EventsInFlightDecr()

	// EventBus metrics
	BufferSizeUpdate(size int)
	BufferCapacitySet(capacity int)
	BufferSaturationUpdate(saturation float64)
	EmitError()
}
