// Package scheduler owns the wait-then-deliver lifecycle of reminder jobs.
//
// Each accepted job occupies one goroutine suspended in Clock.SleepUntil
// until its target instant; there are no polling loops. Jobs fire once:
// delivery failures are reported or logged, never retried.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/easy-remind/internal/domain"
	"github.com/djlord-it/easy-remind/internal/notify"
)

const deliveryTimeout = 30 * time.Second

// RateLimitedError is returned by Schedule when the requester is still
// inside the cooldown window for the command class.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter)
}

// Clock is the scheduler's only suspension point between acceptance and
// delivery.
type Clock interface {
	Now() time.Time
	// SleepUntil blocks until t or until ctx is cancelled, returning
	// ctx.Err() in the latter case. A target in the past returns
	// immediately.
	SleepUntil(ctx context.Context, t time.Time) error
}

// RateLimiter gates scheduling per (actor, command class). Allow must
// check and record atomically.
type RateLimiter interface {
	Allow(actor, class string) (time.Duration, bool)
}

// EventEmitter receives an OutcomeEvent for every terminal transition.
type EventEmitter interface {
	Emit(ctx context.Context, event domain.OutcomeEvent) error
}

// Store persists accepted jobs so they can be re-armed after a restart.
type Store interface {
	InsertReminder(ctx context.Context, job domain.ReminderJob) error
}

// MetricsSink defines the interface for recording scheduler metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	JobScheduled()
	ScheduleRejected(reason string)
	JobOutcome(outcome string)
	ActiveJobsUpdate(count int)
	WakeDrift(drift time.Duration)
}

// Request describes one reminder to schedule.
type Request struct {
	Requester string
	Recipient string
	ChannelID string
	Class     string // command class for rate limiting ("remind", "remindyou")
	Resolved  domain.ResolvedReminder
}

type tracked struct {
	job     domain.ReminderJob
	cancel  context.CancelFunc
	claimed bool // delivery in flight; cancel no longer possible
}

type Scheduler struct {
	limiter  RateLimiter
	notifier notify.Notifier
	clock    Clock

	emitter EventEmitter // optional, nil = disabled
	store   Store        // optional, nil = in-memory only
	metrics MetricsSink  // optional, nil = disabled

	mu   sync.Mutex
	jobs map[uuid.UUID]*tracked

	rootCtx    context.Context
	cancelRoot context.CancelFunc
	wg         sync.WaitGroup
}

func New(limiter RateLimiter, notifier notify.Notifier, clock Clock) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		limiter:    limiter,
		notifier:   notifier,
		clock:      clock,
		jobs:       make(map[uuid.UUID]*tracked),
		rootCtx:    ctx,
		cancelRoot: cancel,
	}
}

// WithEmitter attaches an outcome event emitter.
func (s *Scheduler) WithEmitter(emitter EventEmitter) *Scheduler {
	s.emitter = emitter
	return s
}

// WithStore attaches a durability store. Persistence is best-effort: a
// failed insert is logged and the job still runs in memory.
func (s *Scheduler) WithStore(store Store) *Scheduler {
	s.store = store
	return s
}

// WithMetrics attaches a metrics sink.
func (s *Scheduler) WithMetrics(sink MetricsSink) *Scheduler {
	s.metrics = sink
	return s
}

// Schedule accepts a reminder and returns its job id. It returns
// *RateLimitedError if the requester is inside the cooldown window.
// Delivery proceeds asynchronously; Schedule never blocks on it.
func (s *Scheduler) Schedule(ctx context.Context, req Request) (uuid.UUID, error) {
	if wait, ok := s.limiter.Allow(req.Requester, req.Class); !ok {
		if s.metrics != nil {
			s.metrics.ScheduleRejected("rate_limited")
		}
		return uuid.Nil, &RateLimitedError{RetryAfter: wait}
	}

	job := domain.ReminderJob{
		ID:        uuid.New(),
		Requester: req.Requester,
		Recipient: req.Recipient,
		ChannelID: req.ChannelID,
		Resolved:  req.Resolved,
		State:     domain.JobStateScheduled,
		CreatedAt: s.clock.Now().UTC(),
	}

	if s.store != nil {
		if err := s.store.InsertReminder(ctx, job); err != nil {
			log.Printf("scheduler: persist job %s failed: %v", job.ID, err)
		}
	}

	s.arm(job)

	if s.metrics != nil {
		s.metrics.JobScheduled()
	}
	log.Printf("scheduler: job=%s scheduled target=%s recipient=%s",
		job.ID, job.Resolved.TargetAt.Format(time.RFC3339), job.Recipient)
	return job.ID, nil
}

// Rearm re-registers a persisted job after a restart, bypassing rate
// limiting and persistence. Past-due jobs deliver immediately.
func (s *Scheduler) Rearm(job domain.ReminderJob) error {
	if job.State != domain.JobStateScheduled {
		return fmt.Errorf("rearm job %s: state %q is not schedulable", job.ID, job.State)
	}

	s.mu.Lock()
	_, exists := s.jobs[job.ID]
	s.mu.Unlock()
	if exists {
		return nil // already armed
	}

	s.arm(job)
	log.Printf("scheduler: job=%s re-armed target=%s", job.ID, job.Resolved.TargetAt.Format(time.RFC3339))
	return nil
}

func (s *Scheduler) arm(job domain.ReminderJob) {
	jobCtx, cancel := context.WithCancel(s.rootCtx)
	t := &tracked{job: job, cancel: cancel}

	s.mu.Lock()
	s.jobs[job.ID] = t
	active := len(s.jobs)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ActiveJobsUpdate(active)
	}

	s.wg.Add(1)
	go s.wait(jobCtx, t)
}

// Cancel transitions a scheduled job to Cancelled and prevents delivery.
// It returns false if the job is unknown, already terminal, or its
// delivery is in flight. Cancelling concurrently with the wake is a
// documented race: once delivery has been claimed, Cancel has no effect.
func (s *Scheduler) Cancel(id uuid.UUID) bool {
	s.mu.Lock()
	t, ok := s.jobs[id]
	if !ok || t.claimed {
		s.mu.Unlock()
		return false
	}
	t.job.State = domain.JobStateCancelled
	job := t.job
	delete(s.jobs, id)
	active := len(s.jobs)
	s.mu.Unlock()

	t.cancel()

	if s.metrics != nil {
		s.metrics.ActiveJobsUpdate(active)
		s.metrics.JobOutcome(string(domain.OutcomeCancelled))
	}
	s.emit(job, domain.OutcomeCancelled, time.Time{})
	log.Printf("scheduler: job=%s cancelled", id)
	return true
}

// Jobs returns a snapshot of pending jobs.
func (s *Scheduler) Jobs() []domain.ReminderJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.ReminderJob, 0, len(s.jobs))
	for _, t := range s.jobs {
		out = append(out, t.job)
	}
	return out
}

// Shutdown cancels all pending waits and blocks until in-flight
// deliveries complete. Pending jobs stay Scheduled in the store and are
// re-armed on the next start.
func (s *Scheduler) Shutdown() {
	s.cancelRoot()
	s.wg.Wait()
	log.Println("scheduler: stopped")
}

func (s *Scheduler) wait(ctx context.Context, t *tracked) {
	defer s.wg.Done()

	if err := s.clock.SleepUntil(ctx, t.job.Resolved.TargetAt); err != nil {
		// Cancelled or shutting down; Cancel already handled the transition.
		return
	}
	s.deliver(t)
}

func (s *Scheduler) deliver(t *tracked) {
	s.mu.Lock()
	if t.job.State != domain.JobStateScheduled || t.claimed {
		s.mu.Unlock()
		return
	}
	t.claimed = true
	job := t.job
	s.mu.Unlock()

	firedAt := s.clock.Now().UTC()
	if s.metrics != nil {
		s.metrics.WakeDrift(firedAt.Sub(job.Resolved.TargetAt))
	}

	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	outcome := s.send(ctx, job)

	state := domain.JobStateFired
	if outcome == domain.OutcomeFailed {
		state = domain.JobStateFailed
	}

	s.mu.Lock()
	t.job.State = state
	delete(s.jobs, job.ID)
	active := len(s.jobs)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ActiveJobsUpdate(active)
		s.metrics.JobOutcome(string(outcome))
	}
	s.emit(job, outcome, firedAt)
}

// send performs the single delivery attempt and the documented fallback.
// Self-reminders post to the originating channel; other-user reminders go
// by DM, and an unreachable recipient is reported back to the requester's
// channel rather than silently dropped.
func (s *Scheduler) send(ctx context.Context, job domain.ReminderJob) domain.Outcome {
	if job.SelfReminder() {
		text := fmt.Sprintf("@%s Reminder: %s", job.Recipient, job.Resolved.Message)
		if err := s.notifier.SendToChannel(ctx, job.ChannelID, text); err != nil {
			log.Printf("scheduler: job=%s channel delivery failed: %v", job.ID, err)
			return domain.OutcomeFailed
		}
		log.Printf("scheduler: job=%s fired (channel=%s)", job.ID, job.ChannelID)
		return domain.OutcomeFired
	}

	text := fmt.Sprintf("Reminder from @%s: %s", job.Requester, job.Resolved.Message)
	err := s.notifier.SendDirect(ctx, job.Recipient, text)
	if err == nil {
		log.Printf("scheduler: job=%s fired (dm=%s)", job.ID, job.Recipient)
		return domain.OutcomeFired
	}

	if errors.Is(err, notify.ErrUnreachable) {
		notice := fmt.Sprintf("@%s I couldn't send a DM to @%s. They might have DMs disabled.",
			job.Requester, job.Recipient)
		if nerr := s.notifier.SendToChannel(ctx, job.ChannelID, notice); nerr != nil {
			log.Printf("scheduler: job=%s fallback notice failed: %v", job.ID, nerr)
		}
		log.Printf("scheduler: job=%s recipient unreachable, requester notified", job.ID)
		return domain.OutcomeFailed
	}

	log.Printf("scheduler: job=%s dm delivery failed: %v", job.ID, err)
	return domain.OutcomeFailed
}

func (s *Scheduler) emit(job domain.ReminderJob, outcome domain.Outcome, firedAt time.Time) {
	if s.emitter == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	event := domain.OutcomeEvent{
		JobID:     job.ID,
		Requester: job.Requester,
		Recipient: job.Recipient,
		Outcome:   outcome,
		TargetAt:  job.Resolved.TargetAt,
		FiredAt:   firedAt,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.emitter.Emit(ctx, event); err != nil {
		log.Printf("scheduler: emit outcome for job %s: %v", job.ID, err)
	}
}
