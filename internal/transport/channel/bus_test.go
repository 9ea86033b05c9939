package channel

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/easy-remind/internal/domain"
)

// outcomeEvent builds a delivery outcome the way the scheduler emits them:
// fired reminders carry a FiredAt, cancelled ones do not.
func outcomeEvent(outcome domain.Outcome) domain.OutcomeEvent {
	ev := domain.OutcomeEvent{
		JobID:     uuid.New(),
		Requester: "u1",
		Recipient: "u2",
		Outcome:   outcome,
		TargetAt:  time.Date(2025, 6, 1, 13, 30, 0, 0, time.UTC),
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	if outcome == domain.OutcomeFired {
		ev.FiredAt = ev.TargetAt.Add(12 * time.Millisecond)
	}
	return ev
}

func TestEventBus_CarriesOutcomeIntact(t *testing.T) {
	bus := NewEventBus(4)

	for _, outcome := range []domain.Outcome{domain.OutcomeFired, domain.OutcomeCancelled, domain.OutcomeFailed} {
		t.Run(string(outcome), func(t *testing.T) {
			sent := outcomeEvent(outcome)
			if err := bus.Emit(context.Background(), sent); err != nil {
				t.Fatalf("Emit failed: %v", err)
			}

			select {
			case got := <-bus.Channel():
				if got.JobID != sent.JobID {
					t.Errorf("JobID = %v, want %v", got.JobID, sent.JobID)
				}
				if got.Outcome != outcome {
					t.Errorf("Outcome = %q, want %q", got.Outcome, outcome)
				}
				if got.Recipient != "u2" {
					t.Errorf("Recipient = %q, want u2", got.Recipient)
				}
				if !got.FiredAt.Equal(sent.FiredAt) {
					t.Errorf("FiredAt = %v, want %v", got.FiredAt, sent.FiredAt)
				}
			case <-time.After(time.Second):
				t.Fatal("timeout waiting for outcome on channel")
			}
		})
	}
}

func TestEventBus_FullBufferRejectsAfterTimeout(t *testing.T) {
	// Nobody drains the channel: the second emit must give up quickly
	// rather than park the delivering goroutine forever.
	bus := NewEventBus(1, WithEmitTimeout(50*time.Millisecond))

	if err := bus.Emit(context.Background(), outcomeEvent(domain.OutcomeFired)); err != nil {
		t.Fatalf("emit into free buffer failed: %v", err)
	}

	start := time.Now()
	err := bus.Emit(context.Background(), outcomeEvent(domain.OutcomeFired))
	if err != ErrBufferFull {
		t.Fatalf("expected ErrBufferFull, got: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("emit blocked %v before giving up", elapsed)
	}
}

func TestEventBus_EmitHonorsCallerContext(t *testing.T) {
	bus := NewEventBus(1, WithEmitTimeout(5*time.Second))

	if err := bus.Emit(context.Background(), outcomeEvent(domain.OutcomeFired)); err != nil {
		t.Fatalf("emit into free buffer failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := bus.Emit(ctx, outcomeEvent(domain.OutcomeCancelled)); err != context.Canceled {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
}

func TestEventBus_ManyRemindersFiringAtOnce(t *testing.T) {
	// A burst of reminders sharing a target instant all deliver within
	// moments of each other; every outcome must reach the single consumer.
	const firing = 8
	const perGoroutine = 50

	bus := NewEventBus(firing * perGoroutine)

	var drained atomic.Int64
	done := make(chan struct{})
	go func() {
		for range bus.Channel() {
			if drained.Add(1) == firing*perGoroutine {
				close(done)
				return
			}
		}
	}()

	var wg sync.WaitGroup
	var lost atomic.Int64
	for i := 0; i < firing; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				if err := bus.Emit(context.Background(), outcomeEvent(domain.OutcomeFired)); err != nil {
					lost.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("drained %d of %d outcomes", drained.Load(), firing*perGoroutine)
	}
	if lost.Load() != 0 {
		t.Errorf("%d outcomes failed to emit", lost.Load())
	}
}

func TestEventBus_DefaultEmitTimeout(t *testing.T) {
	bus := NewEventBus(10)

	if bus.emitTimeout != DefaultEmitTimeout {
		t.Errorf("emitTimeout = %v, want %v", bus.emitTimeout, DefaultEmitTimeout)
	}
}

type recordingBusMetrics struct {
	mu          sync.Mutex
	sizes       []int
	capacities  []int
	saturations []float64
	emitErrors  int
}

func (m *recordingBusMetrics) BufferSizeUpdate(size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sizes = append(m.sizes, size)
}

func (m *recordingBusMetrics) BufferCapacitySet(capacity int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capacities = append(m.capacities, capacity)
}

func (m *recordingBusMetrics) BufferSaturationUpdate(saturation float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saturations = append(m.saturations, saturation)
}

func (m *recordingBusMetrics) EmitError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emitErrors++
}

func TestEventBus_ReportsBufferPressure(t *testing.T) {
	metrics := &recordingBusMetrics{}
	bus := NewEventBus(2, WithMetrics(metrics))

	metrics.mu.Lock()
	capacities := append([]int(nil), metrics.capacities...)
	metrics.mu.Unlock()
	if len(capacities) != 1 || capacities[0] != 2 {
		t.Fatalf("expected capacity reported once at init, got %v", capacities)
	}

	if err := bus.Emit(context.Background(), outcomeEvent(domain.OutcomeFired)); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	metrics.mu.Lock()
	sizes := append([]int(nil), metrics.sizes...)
	saturations := append([]float64(nil), metrics.saturations...)
	metrics.mu.Unlock()

	if len(sizes) != 1 || sizes[0] != 1 {
		t.Errorf("expected buffer size 1 reported after emit, got %v", sizes)
	}
	if len(saturations) != 1 || saturations[0] != 0.5 {
		t.Errorf("expected saturation 0.5 with one of two slots used, got %v", saturations)
	}
}

func TestEventBus_CountsDroppedOutcomes(t *testing.T) {
	metrics := &recordingBusMetrics{}
	bus := NewEventBus(1, WithEmitTimeout(50*time.Millisecond), WithMetrics(metrics))

	bus.Emit(context.Background(), outcomeEvent(domain.OutcomeFired))
	bus.Emit(context.Background(), outcomeEvent(domain.OutcomeFired))

	metrics.mu.Lock()
	errs := metrics.emitErrors
	metrics.mu.Unlock()
	if errs != 1 {
		t.Errorf("expected one dropped outcome recorded, got %d", errs)
	}
}
