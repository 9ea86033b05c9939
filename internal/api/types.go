package api

import "time"

type CommandRequest struct {
	Actor     string `json:"actor"`
	Recipient string `json:"recipient,omitempty"`
	ChannelID string `json:"channel_id"`
	Text      string `json:"text"`
}

type CommandResponse struct {
	Reply      string `json:"reply"`
	Accepted   bool   `json:"accepted"`
	ReminderID string `json:"reminder_id,omitempty"`
}

type ReminderResponse struct {
	ID        string `json:"id"`
	Requester string `json:"requester"`
	Recipient string `json:"recipient"`
	ChannelID string `json:"channel_id"`
	TargetAt  string `json:"target_at"`
	Message   string `json:"message"`
	Source    string `json:"source"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

type ListRemindersResponse struct {
	Reminders []ReminderResponse `json:"reminders"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
