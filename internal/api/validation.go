package api

import "fmt"

// Field length caps. The dispatcher produces its own user-facing
// rejections; validation here only guards the transport layer.
const (
	maxActorLen = 256
	maxTextLen  = 2048
)

func validateCommand(req CommandRequest) error {
	if req.Actor == "" {
		return fmt.Errorf("actor is required")
	}
	if len(req.Actor) > maxActorLen {
		return fmt.Errorf("actor exceeds %d characters", maxActorLen)
	}
	if len(req.Recipient) > maxActorLen {
		return fmt.Errorf("recipient exceeds %d characters", maxActorLen)
	}
	if req.Text == "" {
		return fmt.Errorf("text is required")
	}
	if len(req.Text) > maxTextLen {
		return fmt.Errorf("text exceeds %d characters", maxTextLen)
	}
	return nil
}
