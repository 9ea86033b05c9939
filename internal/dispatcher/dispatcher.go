// Package dispatcher is the command-facing facade: it validates raw
// command input, runs the time-expression parser, submits to the
// scheduler, and turns every failure into a single user-facing reply.
// Nothing here ever propagates an error to the command router.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/easy-remind/internal/domain"
	"github.com/djlord-it/easy-remind/internal/scheduler"
	"github.com/djlord-it/easy-remind/internal/timeparse"
)

// Command classes, used for per-class rate limiting.
const (
	ClassRemind    = "remind"    // self-reminder
	ClassRemindYou = "remindyou" // remind another user
)

const confirmLayout = "Mon, 02 Jan 2006 15:04 MST"

// Command is one raw invocation from the external command router.
type Command struct {
	Actor     string // required
	Recipient string // optional; empty means self-reminder
	ChannelID string
	Text      string // time expression followed by the message
}

// Reply is rendered back to the user by the command router.
type Reply struct {
	Text     string
	Accepted bool
	JobID    uuid.UUID // set only when Accepted
}

// Parser resolves a time expression against now in the default zone.
type Parser interface {
	Parse(text string, now time.Time, loc *time.Location) (domain.ResolvedReminder, error)
}

// Scheduler accepts resolved reminders.
type Scheduler interface {
	Schedule(ctx context.Context, req scheduler.Request) (uuid.UUID, error)
}

// MetricsSink defines the interface for recording dispatcher metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	CommandHandled(accepted bool)
	ParseRejected(reason string)
}

type Config struct {
	// DefaultZone resolves wall-clock expressions and renders
	// confirmations.
	DefaultZone *time.Location

	// MaxHorizon caps how far ahead a reminder may be set.
	// Zero disables the cap.
	MaxHorizon time.Duration
}

type Dispatcher struct {
	config  Config
	parser  Parser
	sched   Scheduler
	metrics MetricsSink // optional, nil = disabled
	clock   func() time.Time
}

func New(config Config, parser Parser, sched Scheduler) *Dispatcher {
	if config.DefaultZone == nil {
		config.DefaultZone = time.UTC
	}
	return &Dispatcher{
		config: config,
		parser: parser,
		sched:  sched,
		clock:  time.Now,
	}
}

// WithMetrics attaches a metrics sink.
func (d *Dispatcher) WithMetrics(sink MetricsSink) *Dispatcher {
	d.metrics = sink
	return d
}

// Handle processes one command and always produces a reply. The reminder
// itself proceeds asynchronously; Handle never blocks on delivery.
func (d *Dispatcher) Handle(ctx context.Context, cmd Command) Reply {
	actor := strings.TrimSpace(cmd.Actor)
	if actor == "" {
		return d.reject("I couldn't tell who sent that command.")
	}

	text := strings.TrimSpace(cmd.Text)
	if text == "" {
		return d.reject("You need to specify a time and message! Example: '1h30m Check the oven'.")
	}

	now := d.clock()
	resolved, err := d.parser.Parse(text, now, d.config.DefaultZone)
	if err != nil {
		return d.parseReject(err)
	}

	if d.config.MaxHorizon > 0 && resolved.TargetAt.Sub(now) > d.config.MaxHorizon {
		if d.metrics != nil {
			d.metrics.ParseRejected(string(timeparse.ReasonBeyondMaxHorizon))
		}
		return d.horizonReject()
	}

	recipient := strings.TrimSpace(cmd.Recipient)
	class := ClassRemindYou
	if recipient == "" || recipient == actor {
		recipient = actor
		class = ClassRemind
	}

	id, err := d.sched.Schedule(ctx, scheduler.Request{
		Requester: actor,
		Recipient: recipient,
		ChannelID: cmd.ChannelID,
		Class:     class,
		Resolved:  resolved,
	})
	if err != nil {
		var rle *scheduler.RateLimitedError
		if errors.As(err, &rle) {
			return d.reject(fmt.Sprintf(
				"You're using this command too frequently. Try again in %.1f seconds.",
				rle.RetryAfter.Seconds()))
		}
		log.Printf("dispatcher: schedule failed for actor=%s: %v", actor, err)
		return d.reject("Something went wrong setting that reminder. Please try again.")
	}

	if d.metrics != nil {
		d.metrics.CommandHandled(true)
	}
	return Reply{
		Text:     d.confirmation(actor, recipient, text, resolved),
		Accepted: true,
		JobID:    id,
	}
}

// confirmation echoes the resolved time, the matched expression, and the
// final message text.
func (d *Dispatcher) confirmation(actor, recipient, text string, resolved domain.ResolvedReminder) string {
	expr := strings.TrimSpace(strings.TrimSuffix(text, resolved.Message))
	if expr == "" {
		// The whole input was the time expression; the message is the
		// default placeholder.
		expr = text
	}
	when := resolved.TargetAt.In(d.config.DefaultZone).Format(confirmLayout)

	if recipient == actor {
		return fmt.Sprintf("Reminder set for %s (%s): %s", when, expr, resolved.Message)
	}
	return fmt.Sprintf("Reminder set! I'll remind @%s at %s (%s): %s", recipient, when, expr, resolved.Message)
}

// parseReject maps each rejection reason to its canned message. Raw
// parser internals are never exposed.
func (d *Dispatcher) parseReject(err error) Reply {
	reason, ok := timeparse.ReasonOf(err)
	if !ok {
		log.Printf("dispatcher: unexpected parse failure: %v", err)
		reason = timeparse.ReasonNoMatch
	}
	if d.metrics != nil {
		d.metrics.ParseRejected(string(reason))
	}

	switch reason {
	case timeparse.ReasonZeroDuration:
		return d.reject("Please specify a non-zero time (e.g. 1h30m).")
	case timeparse.ReasonPastInstant:
		return d.reject("The specified time is in the past. Please provide a future time.")
	case timeparse.ReasonBeyondMaxHorizon:
		return d.horizonReject()
	default:
		return d.reject("I couldn't read that time. Use an increment like '1h30m' " +
			"(combinations of NdNhNmNs), an absolute time like 'YYYY-MM-DD HH:MM', " +
			"or a phrase like 'tomorrow 3pm'.")
	}
}

// horizonReject covers both the configured-horizon check and the parser's
// own cap on absurdly large increment counts.
func (d *Dispatcher) horizonReject() Reply {
	if d.config.MaxHorizon > 0 {
		days := int(d.config.MaxHorizon.Hours() / 24)
		return d.reject(fmt.Sprintf("That's too far out. Reminders can be set at most %d days ahead.", days))
	}
	return d.reject("That's too far out. Please pick a nearer time.")
}

func (d *Dispatcher) reject(text string) Reply {
	if d.metrics != nil {
		d.metrics.CommandHandled(false)
	}
	return Reply{Text: text}
}
