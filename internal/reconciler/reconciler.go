// Package reconciler detects and re-arms lost reminders.
//
// A reminder is lost when its store row is still 'scheduled' but no
// in-memory timer is tracking it (e.g., after a crash between the store
// insert and the arm, or a missed boot re-arm).
//
// The reconciler periodically scans pending rows and re-arms any the
// scheduler does not track. Past-due reminders deliver immediately on
// re-arm; the store's terminal state guard keeps replays idempotent.
package reconciler

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/easy-remind/internal/domain"
)

// Store defines the interface for fetching pending reminders.
type Store interface {
	GetPendingReminders(ctx context.Context, limit, offset int) ([]domain.ReminderJob, error)
}

// Rearmer defines the scheduler surface the reconciler needs.
type Rearmer interface {
	Rearm(job domain.ReminderJob) error
	Jobs() []domain.ReminderJob
}

// Config holds reconciler configuration.
type Config struct {
	// Interval is how often the reconciler runs.
	// Default: 5 minutes.
	Interval time.Duration

	// Threshold is the minimum age of a pending row before it is
	// considered lost. Guards against racing a row whose arm is still
	// in flight. Default: 1 minute.
	Threshold time.Duration

	// BatchSize is the maximum number of rows to scan per cycle.
	// Default: 100.
	BatchSize int
}

// DefaultConfig returns the default reconciler configuration.
func DefaultConfig() Config {
	return Config{
		Interval:  5 * time.Minute,
		Threshold: time.Minute,
		BatchSize: 100,
	}
}

// Reconciler detects lost reminders and re-arms them.
type Reconciler struct {
	config  Config
	store   Store
	rearmer Rearmer
	clock   func() time.Time
}

// New creates a new Reconciler.
func New(config Config, store Store, rearmer Rearmer) *Reconciler {
	return &Reconciler{
		config:  config,
		store:   store,
		rearmer: rearmer,
		clock:   time.Now,
	}
}

// Run starts the reconciliation loop. It blocks until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	log.Printf("reconciler: started (interval=%s, threshold=%s, batch=%d)",
		r.config.Interval, r.config.Threshold, r.config.BatchSize)

	// Run immediately on startup, then on ticker
	r.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("reconciler: stopped")
			return
		case <-ticker.C:
			r.runCycle(ctx)
		}
	}
}

// runCycle executes one reconciliation cycle.
func (r *Reconciler) runCycle(ctx context.Context) {
	now := r.clock().UTC()
	cutoff := now.Add(-r.config.Threshold)

	pending, err := r.store.GetPendingReminders(ctx, r.config.BatchSize, 0)
	if err != nil {
		// DB error: log and abort cycle. Will retry next interval.
		log.Printf("reconciler: failed to fetch pending reminders: %v", err)
		return
	}

	armed := make(map[uuid.UUID]struct{})
	for _, job := range r.rearmer.Jobs() {
		armed[job.ID] = struct{}{}
	}

	rearmed := 0
	failed := 0

	for _, job := range pending {
		// Check context before each re-arm to allow graceful shutdown
		if ctx.Err() != nil {
			log.Printf("reconciler: cycle interrupted, processed %d/%d rows", rearmed+failed, len(pending))
			return
		}

		if _, ok := armed[job.ID]; ok {
			continue
		}
		if job.CreatedAt.After(cutoff) {
			// Too fresh; its arm may still be in flight.
			continue
		}

		if err := r.rearmer.Rearm(job); err != nil {
			log.Printf("reconciler: failed to re-arm reminder=%s: %v", job.ID, err)
			failed++
			continue
		}

		log.Printf("reconciler: re-armed reminder=%s target=%s (age=%s)",
			job.ID, job.Resolved.TargetAt.Format(time.RFC3339),
			now.Sub(job.CreatedAt).Round(time.Second))
		rearmed++
	}

	if rearmed > 0 || failed > 0 {
		log.Printf("reconciler: cycle complete, re-armed=%d, failed=%d", rearmed, failed)
	}
}
