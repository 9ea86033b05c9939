// Package digest posts a periodic summary of upcoming reminders to a
// channel. The schedule is a cron expression, daily by default, and the
// summary covers reminders due inside a lookahead window.
package digest

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/djlord-it/easy-remind/internal/cron"
	"github.com/djlord-it/easy-remind/internal/domain"
)

const maxEntries = 25

// Store defines the interface for fetching pending reminders.
type Store interface {
	GetPendingReminders(ctx context.Context, limit, offset int) ([]domain.ReminderJob, error)
}

// Notifier posts the digest message.
type Notifier interface {
	SendToChannel(ctx context.Context, channelID, text string) error
}

// Config holds digest configuration.
type Config struct {
	// Schedule is a five-field cron expression. Default: "0 9 * * *".
	Schedule string

	// Timezone the schedule is evaluated in. Default: "UTC".
	Timezone string

	// ChannelID the digest is posted to.
	ChannelID string

	// Window is the lookahead for "upcoming". Default: 24h.
	Window time.Duration
}

// DefaultConfig returns the default digest configuration.
func DefaultConfig() Config {
	return Config{
		Schedule: "0 9 * * *",
		Timezone: "UTC",
		Window:   24 * time.Hour,
	}
}

// Digest runs the summary loop.
type Digest struct {
	config   Config
	schedule cron.Schedule
	store    Store
	notifier Notifier
	clock    func() time.Time
}

// New creates a Digest, validating the schedule and timezone up front.
func New(config Config, store Store, notifier Notifier) (*Digest, error) {
	if config.Window <= 0 {
		config.Window = 24 * time.Hour
	}
	schedule, err := cron.NewParser().Parse(config.Schedule, config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("digest schedule: %w", err)
	}
	return &Digest{
		config:   config,
		schedule: schedule,
		store:    store,
		notifier: notifier,
		clock:    time.Now,
	}, nil
}

// Run posts digests on schedule until ctx is cancelled.
func (d *Digest) Run(ctx context.Context) {
	log.Printf("digest: started (schedule=%q tz=%s channel=%s window=%s)",
		d.config.Schedule, d.config.Timezone, d.config.ChannelID, d.config.Window)

	for {
		next := d.schedule.Next(d.clock())
		timer := time.NewTimer(next.Sub(d.clock()))

		select {
		case <-ctx.Done():
			timer.Stop()
			log.Println("digest: stopped")
			return
		case <-timer.C:
			d.post(ctx)
		}
	}
}

// post builds and sends one digest. Empty digests are skipped.
func (d *Digest) post(ctx context.Context) {
	now := d.clock().UTC()

	pending, err := d.store.GetPendingReminders(ctx, maxEntries, 0)
	if err != nil {
		log.Printf("digest: failed to fetch pending reminders: %v", err)
		return
	}

	text := d.render(now, pending)
	if text == "" {
		return
	}

	if err := d.notifier.SendToChannel(ctx, d.config.ChannelID, text); err != nil {
		log.Printf("digest: failed to post: %v", err)
		return
	}
	log.Printf("digest: posted for %d reminders", strings.Count(text, "\n"))
}

// render formats reminders due within the window, soonest first. Rows
// arrive ordered by target time. Returns "" when nothing is due.
func (d *Digest) render(now time.Time, pending []domain.ReminderJob) string {
	cutoff := now.Add(d.config.Window)

	var b strings.Builder
	count := 0
	for _, job := range pending {
		target := job.Resolved.TargetAt
		if target.Before(now) || target.After(cutoff) {
			continue
		}
		fmt.Fprintf(&b, "\n- @%s at %s: %s",
			job.Recipient, target.UTC().Format("15:04 MST"), job.Resolved.Message)
		count++
	}
	if count == 0 {
		return ""
	}

	hours := int(d.config.Window.Hours())
	return fmt.Sprintf("Upcoming reminders (next %dh):%s", hours, b.String())
}
