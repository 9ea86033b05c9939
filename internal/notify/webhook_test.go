package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebhookNotifier_SendToChannel(t *testing.T) {
	var gotBody []byte
	var gotSig string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-EasyRemind-Signature")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, srv.URL, "topsecret")
	if err := n.SendToChannel(context.Background(), "c1", "hello"); err != nil {
		t.Fatalf("SendToChannel returned error: %v", err)
	}

	var p Payload
	if err := json.Unmarshal(gotBody, &p); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if p.Kind != "channel" || p.ChannelID != "c1" || p.Text != "hello" {
		t.Errorf("unexpected payload: %+v", p)
	}

	if !VerifySignature("topsecret", gotBody, gotSig) {
		t.Error("signature should verify with the shared secret")
	}
	if VerifySignature("wrong", gotBody, gotSig) {
		t.Error("signature should not verify with the wrong secret")
	}
}

func TestWebhookNotifier_SendDirect_Unreachable(t *testing.T) {
	for _, status := range []int{http.StatusForbidden, http.StatusNotFound} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		n := NewWebhookNotifier(srv.URL, srv.URL, "s")
		err := n.SendDirect(context.Background(), "u1", "hi")
		if !errors.Is(err, ErrUnreachable) {
			t.Errorf("status %d: err = %v, want ErrUnreachable", status, err)
		}
		srv.Close()
	}
}

func TestWebhookNotifier_SendDirect_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, srv.URL, "s")
	err := n.SendDirect(context.Background(), "u1", "hi")
	if err == nil {
		t.Fatal("5xx should surface as an error")
	}
	if errors.Is(err, ErrUnreachable) {
		t.Error("5xx is a transient failure, not unreachable")
	}
}

func TestWebhookNotifier_ConnectionRefused(t *testing.T) {
	// Closed server: connection refused.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	n := NewWebhookNotifier(srv.URL, srv.URL, "s")
	if err := n.SendToChannel(context.Background(), "c1", "x"); err == nil {
		t.Error("connection failure should surface as an error")
	}
}
