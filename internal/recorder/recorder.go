// Package recorder consumes outcome events from the bus and records
// them: terminal state in the store, fire counters in analytics, and
// outcome metrics. Recording is downstream of delivery; a recording
// failure never affects whether a reminder fired.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/easy-remind/internal/domain"
)

// ErrStateTransitionDenied is returned when a state update would regress
// from a terminal state (fired/cancelled/failed).
var ErrStateTransitionDenied = errors.New("state transition denied: reminder already in terminal state")

type Store interface {
	// MarkTerminal sets the reminder's terminal state. Implementations
	// MUST reject transitions from terminal states and return
	// ErrStateTransitionDenied. This ensures idempotency on replay.
	MarkTerminal(ctx context.Context, id uuid.UUID, state domain.JobState, firedAt time.Time) error
}

type AnalyticsSink interface {
	Record(ctx context.Context, event domain.OutcomeEvent)
}

// MetricsSink defines the interface for recording recorder metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	OutcomeRecorded(outcome string)
	RecordError()
	EventsInFlightIncr()
	EventsInFlightDecr()
}

type Recorder struct {
	store     Store
	analytics AnalyticsSink // optional, nil = disabled
	metrics   MetricsSink   // optional, nil = disabled

	drainTimeout time.Duration
}

// DefaultDrainTimeout is the maximum time to wait for buffered events
// during shutdown.
const DefaultDrainTimeout = 30 * time.Second

func New(store Store) *Recorder {
	return &Recorder{
		store:        store,
		drainTimeout: DefaultDrainTimeout,
	}
}

func (r *Recorder) WithAnalytics(sink AnalyticsSink) *Recorder {
	r.analytics = sink
	return r
}

// WithMetrics attaches a metrics sink to the recorder.
func (r *Recorder) WithMetrics(sink MetricsSink) *Recorder {
	r.metrics = sink
	return r
}

// WithDrainTimeout overrides the shutdown drain timeout.
func (r *Recorder) WithDrainTimeout(d time.Duration) *Recorder {
	if d > 0 {
		r.drainTimeout = d
	}
	return r
}

// Run processes events from the channel until context is cancelled.
// After cancellation, it drains remaining buffered events with a timeout.
func (r *Recorder) Run(ctx context.Context, ch <-chan domain.OutcomeEvent) {
	for {
		select {
		case <-ctx.Done():
			r.drain(ch)
			return
		case event := <-ch:
			if err := r.Record(ctx, event); err != nil {
				log.Printf("recorder: error: %v", err)
			}
		}
	}
}

// drain processes remaining events in the channel buffer after shutdown
// signal. Uses a background context since the main context is already
// cancelled.
func (r *Recorder) drain(ch <-chan domain.OutcomeEvent) {
	drainCtx, cancel := context.WithTimeout(context.Background(), r.drainTimeout)
	defer cancel()

	count := 0
	for {
		select {
		case <-drainCtx.Done():
			if count > 0 {
				log.Printf("recorder: drain timeout, processed %d events", count)
			}
			return
		case event, ok := <-ch:
			if !ok {
				log.Printf("recorder: drain complete, processed %d events", count)
				return
			}
			if err := r.Record(drainCtx, event); err != nil {
				log.Printf("recorder: drain error: %v", err)
			}
			count++
		default:
			if count > 0 {
				log.Printf("recorder: drain complete, processed %d events", count)
			}
			return
		}
	}
}

// Record persists one outcome event. Analytics and metrics are written
// regardless of whether the store update succeeds.
func (r *Recorder) Record(ctx context.Context, event domain.OutcomeEvent) error {
	if r.metrics != nil {
		r.metrics.EventsInFlightIncr()
		defer r.metrics.EventsInFlightDecr()
	}

	r.writeAnalytics(ctx, event)

	if r.metrics != nil {
		r.metrics.OutcomeRecorded(string(event.Outcome))
	}

	if r.store == nil {
		return nil
	}

	state, err := stateFor(event.Outcome)
	if err != nil {
		if r.metrics != nil {
			r.metrics.RecordError()
		}
		return err
	}

	if err := r.store.MarkTerminal(ctx, event.JobID, state, event.FiredAt); err != nil {
		if errors.Is(err, ErrStateTransitionDenied) {
			// Already terminal (likely reprocessing). Safe to ignore.
			log.Printf("recorder: reminder=%s already terminal, skipping", event.JobID)
			return nil
		}
		if r.metrics != nil {
			r.metrics.RecordError()
		}
		return fmt.Errorf("mark terminal: %w", err)
	}
	return nil
}

// writeAnalytics records fire counters as a best-effort side-effect.
// The sink handles errors internally; analytics never affects recording
// correctness.
func (r *Recorder) writeAnalytics(ctx context.Context, event domain.OutcomeEvent) {
	if r.analytics == nil {
		return
	}
	r.analytics.Record(ctx, event)
}

func stateFor(outcome domain.Outcome) (domain.JobState, error) {
	switch outcome {
	case domain.OutcomeFired:
		return domain.JobStateFired, nil
	case domain.OutcomeCancelled:
		return domain.JobStateCancelled, nil
	case domain.OutcomeFailed:
		return domain.JobStateFailed, nil
	default:
		return "", fmt.Errorf("unknown outcome %q", outcome)
	}
}
