// Package channel provides the in-process event bus carrying reminder
// outcome events from the scheduler to the recorder.
package channel

import (
	"context"
	"errors"
	"time"

	"github.com/djlord-it/easy-remind/internal/domain"
)

// DefaultEmitTimeout bounds how long Emit blocks on a full buffer.
const DefaultEmitTimeout = 5 * time.Second

// ErrBufferFull is returned when the buffer stays full past the emit
// timeout. The event is dropped; delivery already happened, only the
// outcome record is lost.
var ErrBufferFull = errors.New("event bus buffer full")

// MetricsSink defines the interface for bus buffer metrics. All methods
// must be non-blocking.
type MetricsSink interface {
	BufferSizeUpdate(size int)
	BufferCapacitySet(capacity int)
	BufferSaturationUpdate(saturation float64)
	EmitError()
}

type Option func(*EventBus)

func WithEmitTimeout(d time.Duration) Option {
	return func(b *EventBus) {
		b.emitTimeout = d
	}
}

func WithMetrics(sink MetricsSink) Option {
	return func(b *EventBus) {
		b.metrics = sink
	}
}

type EventBus struct {
	ch          chan domain.OutcomeEvent
	emitTimeout time.Duration
	metrics     MetricsSink // optional, nil = disabled
}

func NewEventBus(buffer int, opts ...Option) *EventBus {
	b := &EventBus{
		ch:          make(chan domain.OutcomeEvent, buffer),
		emitTimeout: DefaultEmitTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.metrics != nil {
		b.metrics.BufferCapacitySet(buffer)
	}
	return b
}

// Emit places the event on the bus, blocking up to the emit timeout
// when the buffer is full.
func (b *EventBus) Emit(ctx context.Context, event domain.OutcomeEvent) error {
	select {
	case b.ch <- event:
		b.observeBuffer()
		return nil
	default:
	}

	timer := time.NewTimer(b.emitTimeout)
	defer timer.Stop()

	select {
	case b.ch <- event:
		b.observeBuffer()
		return nil
	case <-ctx.Done():
		if b.metrics != nil {
			b.metrics.EmitError()
		}
		return ctx.Err()
	case <-timer.C:
		if b.metrics != nil {
			b.metrics.EmitError()
		}
		return ErrBufferFull
	}
}

// Channel exposes the consumer side of the bus.
func (b *EventBus) Channel() <-chan domain.OutcomeEvent {
	return b.ch
}

func (b *EventBus) observeBuffer() {
	if b.metrics == nil {
		return
	}
	size := len(b.ch)
	b.metrics.BufferSizeUpdate(size)
	if cap(b.ch) > 0 {
		b.metrics.BufferSaturationUpdate(float64(size) / float64(cap(b.ch)))
	}
}
