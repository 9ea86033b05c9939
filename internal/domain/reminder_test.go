package domain

import "testing"

func TestJobState_Values(t *testing.T) {
	tests := []struct {
		state JobState
		want  string
	}{
		{JobStateScheduled, "scheduled"},
		{JobStateFired, "fired"},
		{JobStateCancelled, "cancelled"},
		{JobStateFailed, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if string(tt.state) != tt.want {
				t.Errorf("JobState = %q, want %q", tt.state, tt.want)
			}
		})
	}
}

func TestJobState_IsTerminal(t *testing.T) {
	tests := []struct {
		state JobState
		want  bool
	}{
		{JobStateScheduled, false},
		{JobStateFired, true},
		{JobStateCancelled, true},
		{JobStateFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.want {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReminderJob_SelfReminder(t *testing.T) {
	self := ReminderJob{Requester: "u1", Recipient: "u1"}
	if !self.SelfReminder() {
		t.Error("job with requester == recipient should be a self-reminder")
	}

	other := ReminderJob{Requester: "u1", Recipient: "u2"}
	if other.SelfReminder() {
		t.Error("job with requester != recipient should not be a self-reminder")
	}
}
