// Package postgres persists reminders so they survive restarts. The
// scheduler inserts on acceptance, the recorder marks terminal states,
// and boot re-arms whatever is still pending.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/easy-remind/internal/api"
	"github.com/djlord-it/easy-remind/internal/digest"
	"github.com/djlord-it/easy-remind/internal/domain"
	"github.com/djlord-it/easy-remind/internal/reconciler"
	"github.com/djlord-it/easy-remind/internal/recorder"
	"github.com/djlord-it/easy-remind/internal/scheduler"
)

// ErrDuplicateReminder is returned when a reminder ID already exists.
var ErrDuplicateReminder = errors.New("reminder already exists")

// Store implements scheduler.Store, recorder.Store and api.Store using
// PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL store with the given database connection.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// InsertReminder inserts a new reminder record.
func (s *Store) InsertReminder(ctx context.Context, job domain.ReminderJob) error {
	_, err := s.db.ExecContext(ctx, queryInsertReminder,
		job.ID,
		job.Requester,
		job.Recipient,
		job.ChannelID,
		job.Resolved.TargetAt,
		job.Resolved.Message,
		string(job.Resolved.Source),
		string(job.State),
		job.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateReminder
		}
		return err
	}
	return nil
}

// MarkTerminal sets the reminder's terminal state.
// Returns recorder.ErrStateTransitionDenied if the reminder is already in
// a terminal state. This uses an atomic UPDATE with a WHERE guard to
// prevent TOCTOU race conditions.
func (s *Store) MarkTerminal(ctx context.Context, id uuid.UUID, state domain.JobState, firedAt time.Time) error {
	var fired sql.NullTime
	if !firedAt.IsZero() {
		fired = sql.NullTime{Time: firedAt.UTC(), Valid: true}
	}

	// Single atomic update with guard in WHERE clause. PostgreSQL
	// acquires the row lock before evaluating WHERE, serializing access
	// under concurrency.
	result, err := s.db.ExecContext(ctx, queryMarkTerminal, string(state), fired, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		// Either: (a) reminder not found, or (b) already terminal.
		// Distinguish by checking if the row exists.
		var currentState string
		err := s.db.QueryRowContext(ctx, queryGetReminderState, id).Scan(&currentState)
		if err == sql.ErrNoRows {
			return sql.ErrNoRows
		}
		if err != nil {
			return err
		}
		return recorder.ErrStateTransitionDenied
	}

	return nil
}

// GetPendingReminders returns reminders still in scheduled state,
// paginated by limit and offset. Used at boot to re-arm and by the
// reconciler to find rows the in-memory scheduler lost track of.
func (s *Store) GetPendingReminders(ctx context.Context, limit, offset int) ([]domain.ReminderJob, error) {
	rows, err := s.db.QueryContext(ctx, queryGetPendingReminders, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReminders(rows)
}

// ListForActor returns reminders requested by the given actor, newest
// first, paginated by limit and offset.
func (s *Store) ListForActor(ctx context.Context, actor string, limit, offset int) ([]domain.ReminderJob, error) {
	rows, err := s.db.QueryContext(ctx, queryListForActor, actor, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReminders(rows)
}

// GetReminderByID returns a reminder by its ID.
func (s *Store) GetReminderByID(ctx context.Context, id uuid.UUID) (domain.ReminderJob, error) {
	row := s.db.QueryRowContext(ctx, queryGetReminderByID, id)

	var job domain.ReminderJob
	var source, state string
	err := row.Scan(
		&job.ID,
		&job.Requester,
		&job.Recipient,
		&job.ChannelID,
		&job.Resolved.TargetAt,
		&job.Resolved.Message,
		&source,
		&state,
		&job.CreatedAt,
	)
	if err != nil {
		return domain.ReminderJob{}, err
	}
	job.Resolved.Source = domain.SourceFormat(source)
	job.State = domain.JobState(state)
	return job, nil
}

func scanReminders(rows *sql.Rows) ([]domain.ReminderJob, error) {
	var result []domain.ReminderJob
	for rows.Next() {
		var job domain.ReminderJob
		var source, state string

		err := rows.Scan(
			&job.ID,
			&job.Requester,
			&job.Recipient,
			&job.ChannelID,
			&job.Resolved.TargetAt,
			&job.Resolved.Message,
			&source,
			&state,
			&job.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		job.Resolved.Source = domain.SourceFormat(source)
		job.State = domain.JobState(state)
		result = append(result, job)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// isDuplicateKeyError checks if the error is a PostgreSQL unique violation.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	// PostgreSQL unique violation error code is 23505.
	errStr := err.Error()
	return strings.Contains(errStr, "23505") ||
		strings.Contains(errStr, "unique constraint") ||
		strings.Contains(errStr, "duplicate key")
}

// Compile-time interface assertions
var (
	_ scheduler.Store  = (*Store)(nil)
	_ recorder.Store   = (*Store)(nil)
	_ reconciler.Store = (*Store)(nil)
	_ digest.Store     = (*Store)(nil)
	_ api.Store        = (*Store)(nil)
)
