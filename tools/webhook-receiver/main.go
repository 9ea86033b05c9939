// webhook-receiver is a standalone bridge stand-in for local testing. It
// accepts the channel and DM posts easyremind sends, verifies their HMAC
// signatures when SECRET is set, and keeps a rolling window of deliveries
// for inspection via /stats.
package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"
)

type delivery struct {
	Timestamp  string `json:"timestamp"`
	Path       string `json:"path"`
	DeliveryID string `json:"delivery_id"`
	Signed     bool   `json:"signed"`
	Body       string `json:"body"`
}

type stats struct {
	Count          int64      `json:"count"`
	BadSignatures  int64      `json:"bad_signatures"`
	LastDeliveries []delivery `json:"last_deliveries"`
	Since          string     `json:"since"`
}

var (
	mu             sync.Mutex
	count          int64
	badSignatures  int64
	lastDeliveries []delivery
	since          time.Time
	secret         string
	maxStored      = 50
)

func main() {
	since = time.Now().UTC()
	secret = os.Getenv("SECRET")

	addr := ":8090"
	if v := os.Getenv("ADDR"); v != "" {
		addr = v
	}

	http.HandleFunc("/channel", hookHandler)
	http.HandleFunc("/dm", hookHandler)
	http.HandleFunc("/stats", statsHandler)
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	http.HandleFunc("/reset", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		count = 0
		badSignatures = 0
		lastDeliveries = nil
		since = time.Now().UTC()
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "reset")
	})

	if secret == "" {
		log.Println("webhook-receiver: SECRET not set; signatures are not checked")
	}
	log.Printf("webhook-receiver listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}

func hookHandler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	signed := false
	if secret != "" {
		signature := r.Header.Get("X-EasyRemind-Signature")
		if !verifySignature(secret, body, signature) {
			mu.Lock()
			badSignatures++
			mu.Unlock()
			log.Printf("webhook-receiver: bad signature on %s: %s", r.URL.Path, string(body))
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprintln(w, `{"error":"bad signature"}`)
			return
		}
		signed = true
	}

	d := delivery{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Path:       r.URL.Path,
		DeliveryID: r.Header.Get("X-EasyRemind-Delivery-ID"),
		Signed:     signed,
		Body:       string(body),
	}

	mu.Lock()
	count++
	lastDeliveries = append(lastDeliveries, d)
	if len(lastDeliveries) > maxStored {
		lastDeliveries = lastDeliveries[len(lastDeliveries)-maxStored:]
	}
	current := count
	mu.Unlock()

	log.Printf("delivery #%d on %s: %s", current, r.URL.Path, string(body))
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"received":%d}`, current)
}

func statsHandler(w http.ResponseWriter, _ *http.Request) {
	mu.Lock()
	s := stats{
		Count:          count,
		BadSignatures:  badSignatures,
		LastDeliveries: lastDeliveries,
		Since:          since.Format(time.RFC3339),
	}
	mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}

// verifySignature mirrors the hex-encoded HMAC-SHA256 easyremind attaches
// to outgoing posts.
func verifySignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
