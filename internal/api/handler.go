// Package api exposes the HTTP surface: command submission for chat
// router integrations, reminder listing, cancellation, and health.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/easy-remind/internal/dispatcher"
	"github.com/djlord-it/easy-remind/internal/domain"
)

// Pagination defaults and limits.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Dispatcher handles reminder commands.
type Dispatcher interface {
	Handle(ctx context.Context, cmd dispatcher.Command) dispatcher.Reply
}

// Canceller cancels scheduled reminders.
type Canceller interface {
	Cancel(id uuid.UUID) bool
}

type Store interface {
	ListForActor(ctx context.Context, actor string, limit, offset int) ([]domain.ReminderJob, error)
}

// HealthChecker provides database health status for the /health endpoint.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	dispatcher Dispatcher
	canceller  Canceller
	store      Store // optional, nil = listing disabled
	db         HealthChecker
}

func NewHandler(dispatcher Dispatcher, canceller Canceller) *Handler {
	return &Handler{dispatcher: dispatcher, canceller: canceller}
}

// WithStore enables the reminder listing endpoint.
func (h *Handler) WithStore(store Store) *Handler {
	h.store = store
	return h
}

// WithHealthChecker sets the database health checker for verbose /health responses.
func (h *Handler) WithHealthChecker(db HealthChecker) *Handler {
	h.db = db
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case path == "/health" && r.Method == http.MethodGet:
		h.health(w, r)

	case path == "/commands" && r.Method == http.MethodPost:
		h.handleCommand(w, r)

	case path == "/reminders" && r.Method == http.MethodGet:
		h.listReminders(w, r)

	case strings.HasPrefix(path, "/reminders/") && r.Method == http.MethodDelete:
		h.cancelReminder(w, r)

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	// Check if verbose mode requested via ?verbose=true
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || h.db == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	// Check database connectivity with timeout
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		resp.Status = "degraded"
		resp.Components["database"] = "unhealthy: " + err.Error()
	} else {
		resp.Components["database"] = "healthy"
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, resp)
}

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

func (h *Handler) handleCommand(w http.ResponseWriter, r *http.Request) {
	// Limit request body size to prevent DoS via large payloads
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := validateCommand(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply := h.dispatcher.Handle(r.Context(), dispatcher.Command{
		Actor:     req.Actor,
		Recipient: req.Recipient,
		ChannelID: req.ChannelID,
		Text:      req.Text,
	})

	resp := CommandResponse{
		Reply:    reply.Text,
		Accepted: reply.Accepted,
	}
	if reply.Accepted {
		resp.ReminderID = reply.JobID.String()
	}

	// Rejections are valid replies, not HTTP errors: the router relays
	// the text to the user either way.
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) listReminders(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotImplemented, "reminder listing requires a database")
		return
	}

	actor := r.URL.Query().Get("actor")
	if actor == "" {
		writeError(w, http.StatusBadRequest, "actor is required")
		return
	}

	limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reminders, err := h.store.ListForActor(r.Context(), actor, limit, offset)
	if err != nil {
		log.Printf("api: list reminders error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list reminders")
		return
	}

	resp := ListRemindersResponse{Reminders: make([]ReminderResponse, len(reminders))}
	for i, job := range reminders {
		resp.Reminders[i] = ReminderResponse{
			ID:        job.ID.String(),
			Requester: job.Requester,
			Recipient: job.Recipient,
			ChannelID: job.ChannelID,
			TargetAt:  formatTime(job.Resolved.TargetAt),
			Message:   job.Resolved.Message,
			Source:    string(job.Resolved.Source),
			Status:    string(job.State),
			CreatedAt: formatTime(job.CreatedAt),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) cancelReminder(w http.ResponseWriter, r *http.Request) {
	// Extract reminder ID from path: /reminders/{id}
	path := r.URL.Path
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[0] != "reminders" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	id, err := uuid.Parse(parts[1])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid reminder id")
		return
	}

	if !h.canceller.Cancel(id) {
		writeError(w, http.StatusNotFound, "reminder not found or already completed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// parsePagination extracts and validates limit/offset query parameters.
// Returns DefaultLimit if limit is not specified, and 0 for offset if not specified.
// Returns an error if limit exceeds MaxLimit or if values are negative/invalid.
func parsePagination(r *http.Request) (limit, offset int, err error) {
	limit = DefaultLimit
	offset = 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			return 0, 0, err
		}
		if limit < 0 {
			return 0, 0, strconv.ErrRange
		}
		if limit > MaxLimit {
			return 0, 0, &limitExceededError{max: MaxLimit}
		}
		if limit == 0 {
			limit = DefaultLimit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil {
			return 0, 0, err
		}
		if offset < 0 {
			return 0, 0, strconv.ErrRange
		}
	}

	return limit, offset, nil
}

type limitExceededError struct {
	max int
}

func (e *limitExceededError) Error() string {
	return "limit exceeds maximum of " + strconv.Itoa(e.max)
}
