package domain

import (
	"time"

	"github.com/google/uuid"
)

// SourceFormat identifies which grammar produced a resolved reminder.
// Retained for diagnostics only; delivery behavior never branches on it.
type SourceFormat string

const (
	SourceIncrement SourceFormat = "increment"
	SourceAbsolute  SourceFormat = "absolute-datetime"
	SourceNatural   SourceFormat = "natural-language"
)

// ResolvedReminder is the output of the time-expression parser: an absolute,
// timezone-qualified target instant plus the remaining free text.
type ResolvedReminder struct {
	TargetAt time.Time
	Message  string
	Source   SourceFormat
}

type JobState string

const (
	JobStateScheduled JobState = "scheduled"
	JobStateFired     JobState = "fired"
	JobStateCancelled JobState = "cancelled"
	JobStateFailed    JobState = "failed"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobStateFired, JobStateCancelled, JobStateFailed:
		return true
	}
	return false
}

// ReminderJob is a pending (or completed) reminder. The scheduler owns the
// job exclusively from creation until it reaches a terminal state.
type ReminderJob struct {
	ID uuid.UUID

	Requester string // actor who issued the command
	Recipient string // user to notify; equals Requester for self-reminders
	ChannelID string // channel the command came from

	Resolved ResolvedReminder
	State    JobState

	CreatedAt time.Time
}

// SelfReminder reports whether the job delivers back to its requester.
// Self-reminders go to the originating channel; others go by direct message.
func (j ReminderJob) SelfReminder() bool {
	return j.Recipient == j.Requester
}
