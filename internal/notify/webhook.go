package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const defaultSendTimeout = 30 * time.Second

// Payload is the JSON body posted to the chat-platform bridge.
type Payload struct {
	Kind      string `json:"kind"` // "channel" or "direct"
	ChannelID string `json:"channel_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Text      string `json:"text"`
	SentAt    string `json:"sent_at"`
}

// WebhookNotifier delivers messages by posting HMAC-signed JSON to a
// chat-platform bridge: one endpoint for channel posts, one for DMs.
// Headers: X-EasyRemind-Delivery-ID, X-EasyRemind-Signature.
type WebhookNotifier struct {
	client     *http.Client
	channelURL string
	directURL  string
	secret     string
	timeout    time.Duration
}

func NewWebhookNotifier(channelURL, directURL, secret string) *WebhookNotifier {
	return &WebhookNotifier{
		client:     &http.Client{},
		channelURL: channelURL,
		directURL:  directURL,
		secret:     secret,
		timeout:    defaultSendTimeout,
	}
}

// WithTimeout overrides the per-send timeout.
func (n *WebhookNotifier) WithTimeout(d time.Duration) *WebhookNotifier {
	if d > 0 {
		n.timeout = d
	}
	return n
}

func (n *WebhookNotifier) SendToChannel(ctx context.Context, channelID, text string) error {
	_, err := n.post(ctx, n.channelURL, Payload{
		Kind:      "channel",
		ChannelID: channelID,
		Text:      text,
		SentAt:    time.Now().UTC().Format(time.RFC3339),
	})
	return err
}

func (n *WebhookNotifier) SendDirect(ctx context.Context, userID, text string) error {
	status, err := n.post(ctx, n.directURL, Payload{
		Kind:   "direct",
		UserID: userID,
		Text:   text,
		SentAt: time.Now().UTC().Format(time.RFC3339),
	})
	// The bridge signals "user refuses DMs" with 403, "unknown user" with 404.
	if status == http.StatusForbidden || status == http.StatusNotFound {
		return ErrUnreachable
	}
	return err
}

func (n *WebhookNotifier) post(ctx context.Context, url string, payload Payload) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal: %w", err)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctxTimeout, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-EasyRemind-Delivery-ID", uuid.New().String())
	req.Header.Set("X-EasyRemind-Signature", computeSignature(n.secret, body))

	resp, err := n.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("send: unexpected status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func computeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature is for bridge implementations to verify incoming posts.
func VerifySignature(secret string, body []byte, signature string) bool {
	expected := computeSignature(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
