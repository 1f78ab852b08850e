package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func testNote() Notification {
	return Notification{
		Bucket:         time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC),
		Denom:          "stuatom",
		BaseDenom:      "ibc/ATOM",
		RedemptionRate: decimal.RequireFromString("1.25"),
		MarketRate:     decimal.RequireFromString("1.2"),
		DeviationPct:   decimal.RequireFromString("-4"),
		ThresholdPct:   decimal.RequireFromString("0.4"),
		Direction:      "down",
		Notional:       decimal.NewFromInt(1000),
		BlockHeight:    42,
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("path should contain sendMessage, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), testNote()); err != nil {
		t.Fatalf("Notify should succeed: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("wrong chat_id: %#v", received)
	}
	if !strings.Contains(received["text"], "stuatom/ibc/ATOM") {
		t.Fatalf("text should name the pair: %q", received["text"])
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), testNote()); err == nil {
		t.Fatal("ok=false should fail")
	}
}

func TestRenderMessage(t *testing.T) {
	msg := renderMessage(testNote())
	for _, want := range []string{
		"[Oracle Alert stuatom/ibc/ATOM]",
		"Bucket: 2026-01-02T03:00:00Z UTC",
		"Block: 42",
		"Redemption: 1.250000",
		"Deviation: -4.000% (threshold 0.400%)",
		"Notional: 1000 stuatom",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestLogNotifier(t *testing.T) {
	if err := NewLogNotifier(testLogger()).Notify(context.Background(), testNote()); err != nil {
		t.Fatalf("log notifier should not fail: %v", err)
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
