package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/easy-remind/internal/dispatcher"
	"github.com/djlord-it/easy-remind/internal/domain"
)

type mockDispatcher struct {
	reply dispatcher.Reply
	last  dispatcher.Command
}

func (m *mockDispatcher) Handle(_ context.Context, cmd dispatcher.Command) dispatcher.Reply {
	m.last = cmd
	return m.reply
}

type mockCanceller struct {
	cancelled []uuid.UUID
	ok        bool
}

func (m *mockCanceller) Cancel(id uuid.UUID) bool {
	m.cancelled = append(m.cancelled, id)
	return m.ok
}

type mockListStore struct {
	reminders []domain.ReminderJob
	err       error
	lastActor string
	lastLimit int
}

func (m *mockListStore) ListForActor(_ context.Context, actor string, limit, _ int) ([]domain.ReminderJob, error) {
	m.lastActor = actor
	m.lastLimit = limit
	return m.reminders, m.err
}

type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(context.Context) error {
	return m.err
}

func postCommand(t *testing.T, h *Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatalf("encode body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/commands", &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandleCommandAccepted(t *testing.T) {
	id := uuid.New()
	disp := &mockDispatcher{reply: dispatcher.Reply{
		Text:     "Reminder set for Sun, 01 Jun 2025 13:30 UTC (1h30m): check oven",
		Accepted: true,
		JobID:    id,
	}}
	h := NewHandler(disp, &mockCanceller{ok: true})

	w := postCommand(t, h, CommandRequest{
		Actor:     "u1",
		ChannelID: "c1",
		Text:      "1h30m check oven",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp CommandResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Accepted {
		t.Error("expected accepted response")
	}
	if resp.ReminderID != id.String() {
		t.Errorf("reminder_id = %q, want %q", resp.ReminderID, id)
	}
	if disp.last.Actor != "u1" || disp.last.Text != "1h30m check oven" {
		t.Errorf("unexpected command passed through: %+v", disp.last)
	}
}

func TestHandleCommandRejectionIs200(t *testing.T) {
	disp := &mockDispatcher{reply: dispatcher.Reply{
		Text: "The specified time is in the past. Please provide a future time.",
	}}
	h := NewHandler(disp, &mockCanceller{})

	w := postCommand(t, h, CommandRequest{Actor: "u1", ChannelID: "c1", Text: "2020-01-01 00:00 x"})

	// The router relays the rejection text; not an HTTP error.
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp CommandResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Accepted {
		t.Error("expected rejected response")
	}
	if resp.ReminderID != "" {
		t.Errorf("rejected response must not carry an id, got %q", resp.ReminderID)
	}
}

func TestHandleCommandInvalidJSON(t *testing.T) {
	h := NewHandler(&mockDispatcher{}, &mockCanceller{})

	w := postCommand(t, h, "{not json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleCommandValidation(t *testing.T) {
	tests := []struct {
		name string
		req  CommandRequest
	}{
		{"missing actor", CommandRequest{ChannelID: "c1", Text: "10m tea"}},
		{"missing text", CommandRequest{Actor: "u1", ChannelID: "c1"}},
		{"oversized text", CommandRequest{Actor: "u1", Text: strings.Repeat("x", maxTextLen+1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&mockDispatcher{}, &mockCanceller{})
			w := postCommand(t, h, tt.req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestListReminders(t *testing.T) {
	store := &mockListStore{reminders: []domain.ReminderJob{{
		ID:        uuid.New(),
		Requester: "u1",
		Recipient: "u2",
		ChannelID: "c1",
		Resolved: domain.ResolvedReminder{
			TargetAt: time.Date(2025, 6, 1, 13, 30, 0, 0, time.UTC),
			Message:  "standup",
			Source:   domain.SourceIncrement,
		},
		State:     domain.JobStateScheduled,
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}}}
	h := NewHandler(&mockDispatcher{}, &mockCanceller{}).WithStore(store)

	req := httptest.NewRequest(http.MethodGet, "/reminders?actor=u1&limit=10", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if store.lastActor != "u1" || store.lastLimit != 10 {
		t.Errorf("store called with actor=%q limit=%d", store.lastActor, store.lastLimit)
	}
	var resp ListRemindersResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Reminders) != 1 {
		t.Fatalf("expected 1 reminder, got %d", len(resp.Reminders))
	}
	got := resp.Reminders[0]
	if got.TargetAt != "2025-06-01T13:30:00Z" {
		t.Errorf("target_at = %q", got.TargetAt)
	}
	if got.Status != "scheduled" {
		t.Errorf("status = %q, want scheduled", got.Status)
	}
}

func TestListRemindersRequiresActor(t *testing.T) {
	h := NewHandler(&mockDispatcher{}, &mockCanceller{}).WithStore(&mockListStore{})

	req := httptest.NewRequest(http.MethodGet, "/reminders", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestListRemindersWithoutStore(t *testing.T) {
	h := NewHandler(&mockDispatcher{}, &mockCanceller{})

	req := httptest.NewRequest(http.MethodGet, "/reminders?actor=u1", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", w.Code)
	}
}

func TestListRemindersPaginationLimits(t *testing.T) {
	h := NewHandler(&mockDispatcher{}, &mockCanceller{}).WithStore(&mockListStore{})

	tests := []struct {
		query string
		want  int
	}{
		{"actor=u1&limit=5000", http.StatusBadRequest},
		{"actor=u1&limit=-1", http.StatusBadRequest},
		{"actor=u1&offset=-2", http.StatusBadRequest},
		{"actor=u1&limit=abc", http.StatusBadRequest},
		{"actor=u1", http.StatusOK},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/reminders?"+tt.query, nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != tt.want {
			t.Errorf("query %q: status = %d, want %d", tt.query, w.Code, tt.want)
		}
	}
}

func TestListRemindersStoreError(t *testing.T) {
	store := &mockListStore{err: errors.New("connection refused")}
	h := NewHandler(&mockDispatcher{}, &mockCanceller{}).WithStore(store)

	req := httptest.NewRequest(http.MethodGet, "/reminders?actor=u1", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if strings.Contains(w.Body.String(), "connection refused") {
		t.Error("raw store error leaked into response")
	}
}

func TestCancelReminder(t *testing.T) {
	canceller := &mockCanceller{ok: true}
	h := NewHandler(&mockDispatcher{}, canceller)

	id := uuid.New()
	req := httptest.NewRequest(http.MethodDelete, "/reminders/"+id.String(), nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if len(canceller.cancelled) != 1 || canceller.cancelled[0] != id {
		t.Errorf("cancel called with %v, want %s", canceller.cancelled, id)
	}
}

func TestCancelReminderNotFound(t *testing.T) {
	h := NewHandler(&mockDispatcher{}, &mockCanceller{ok: false})

	req := httptest.NewRequest(http.MethodDelete, "/reminders/"+uuid.NewString(), nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestCancelReminderInvalidID(t *testing.T) {
	h := NewHandler(&mockDispatcher{}, &mockCanceller{ok: true})

	req := httptest.NewRequest(http.MethodDelete, "/reminders/not-a-uuid", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHealthSimple(t *testing.T) {
	h := NewHandler(&mockDispatcher{}, &mockCanceller{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp HealthResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
}

func TestHealthVerboseDegraded(t *testing.T) {
	h := NewHandler(&mockDispatcher{}, &mockCanceller{}).
		WithHealthChecker(&mockPinger{err: errors.New("connection refused")})

	req := httptest.NewRequest(http.MethodGet, "/health?verbose=true", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	var resp HealthResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Status != "degraded" {
		t.Errorf("status = %q, want degraded", resp.Status)
	}
	if !strings.Contains(resp.Components["database"], "unhealthy") {
		t.Errorf("database component = %q", resp.Components["database"])
	}
}

func TestUnknownRoute(t *testing.T) {
	h := NewHandler(&mockDispatcher{}, &mockCanceller{})

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
