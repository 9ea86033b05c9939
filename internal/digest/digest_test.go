package digest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/easy-remind/internal/domain"
)

var digestNow = time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)

type mockStore struct {
	pending []domain.ReminderJob
	err     error
}

func (s *mockStore) GetPendingReminders(context.Context, int, int) ([]domain.ReminderJob, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.pending, nil
}

type mockNotifier struct {
	mu    sync.Mutex
	posts []string
	err   error
}

func (n *mockNotifier) SendToChannel(_ context.Context, _ string, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.posts = append(n.posts, text)
	return nil
}

func (n *mockNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.posts))
	copy(out, n.posts)
	return out
}

func pendingAt(target time.Time, recipient, message string) domain.ReminderJob {
	return domain.ReminderJob{
		ID:        uuid.New(),
		Requester: recipient,
		Recipient: recipient,
		ChannelID: "c1",
		Resolved: domain.ResolvedReminder{
			TargetAt: target,
			Message:  message,
			Source:   domain.SourceIncrement,
		},
		State:     domain.JobStateScheduled,
		CreatedAt: digestNow.Add(-time.Hour),
	}
}

func newTestDigest(t *testing.T, store Store, notifier Notifier) *Digest {
	t.Helper()
	d, err := New(Config{
		Schedule:  "0 9 * * *",
		Timezone:  "UTC",
		ChannelID: "c1",
		Window:    24 * time.Hour,
	}, store, notifier)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	d.clock = func() time.Time { return digestNow }
	return d
}

func TestNewRejectsBadSchedule(t *testing.T) {
	_, err := New(Config{Schedule: "not a cron", Timezone: "UTC"}, &mockStore{}, &mockNotifier{})
	if err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestPostSummarizesUpcoming(t *testing.T) {
	store := &mockStore{pending: []domain.ReminderJob{
		pendingAt(digestNow.Add(2*time.Hour), "u1", "check oven"),
		pendingAt(digestNow.Add(5*time.Hour), "u2", "standup"),
	}}
	notifier := &mockNotifier{}

	newTestDigest(t, store, notifier).post(context.Background())

	posts := notifier.all()
	if len(posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(posts))
	}
	text := posts[0]
	if !strings.Contains(text, "next 24h") {
		t.Errorf("expected window in header, got %q", text)
	}
	for _, want := range []string{"@u1", "check oven", "@u2", "standup", "11:00"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in digest, got %q", want, text)
		}
	}
}

func TestPostSkipsOutsideWindow(t *testing.T) {
	store := &mockStore{pending: []domain.ReminderJob{
		pendingAt(digestNow.Add(-time.Hour), "u1", "already due"),
		pendingAt(digestNow.Add(48*time.Hour), "u2", "far out"),
	}}
	notifier := &mockNotifier{}

	newTestDigest(t, store, notifier).post(context.Background())

	if got := len(notifier.all()); got != 0 {
		t.Errorf("expected no post for empty digest, got %d", got)
	}
}

func TestPostStoreErrorSilent(t *testing.T) {
	store := &mockStore{err: errors.New("connection refused")}
	notifier := &mockNotifier{}

	// Logs and skips; next scheduled run retries.
	newTestDigest(t, store, notifier).post(context.Background())

	if got := len(notifier.all()); got != 0 {
		t.Errorf("expected no post on store error, got %d", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	d := newTestDigest(t, &mockStore{}, &mockNotifier{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}
