// Package notify defines the outbound delivery boundary. The scheduler only
// sees the Notifier interface; transport details stay behind it.
package notify

import (
	"context"
	"errors"
)

// ErrUnreachable means the recipient cannot receive direct messages
// (DMs disabled, unknown user). Callers use this to trigger fallback
// delivery instead of treating it as a transient transport failure.
var ErrUnreachable = errors.New("recipient unreachable")

type Notifier interface {
	// SendToChannel posts text to a channel.
	SendToChannel(ctx context.Context, channelID, text string) error

	// SendDirect sends text to a user as a direct message. Returns
	// ErrUnreachable when the platform refuses delivery to this user.
	SendDirect(ctx context.Context, userID, text string) error
}
