package domain

import (
	"time"

	"github.com/google/uuid"
)

type Outcome string

const (
	OutcomeFired     Outcome = "fired"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// OutcomeEvent is emitted by the scheduler when a job reaches a terminal
// state. Consumers (store recorder, analytics) must tolerate replays.
type OutcomeEvent struct {
	JobID uuid.UUID

	Requester string
	Recipient string
	Outcome   Outcome

	TargetAt time.Time // intended fire time (UTC)
	FiredAt  time.Time // actual wake time; zero for cancellations

	CreatedAt time.Time
}
