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

	notifier := NewTelegramNotifier("token", srv.URL, time.Second, testLogger())
	note := Notification{
		UserID:       42,
		CurrentUSD:   decimal.NewFromInt(90),
		AnchorUSD:    decimal.NewFromInt(100),
		DropPct:      decimal.NewFromInt(10),
		ThresholdPct: decimal.NewFromInt(5),
		ObservedAt:   time.Now(),
	}

	if err := notifier.Notify(context.Background(), note); err != nil {
		t.Fatalf("Notify should succeed: %v", err)
	}

	if received["chat_id"] != "42" {
		t.Fatalf("chat_id should be the user id: %#v", received)
	}
	if !strings.Contains(received["text"], "10.0%") {
		t.Fatalf("message should contain the drop percentage: %q", received["text"])
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", srv.URL, time.Second, testLogger())
	note := Notification{UserID: 1, DropPct: decimal.NewFromInt(10)}

	if err := notifier.Notify(context.Background(), note); err == nil {
		t.Fatal("ok=false should be an error")
	}
}

func TestRenderMessageIncludesAdvisory(t *testing.T) {
	note := Notification{
		UserID:       1,
		CurrentUSD:   decimal.NewFromInt(850),
		AnchorUSD:    decimal.NewFromInt(1000),
		DropPct:      decimal.NewFromInt(15),
		ThresholdPct: decimal.NewFromInt(10),
		Advisory:     "Markets are choppy today.",
	}

	text := renderMessage(note)
	if !strings.Contains(text, "Insight: Markets are choppy today.") {
		t.Fatalf("advisory line missing: %q", text)
	}

	note.Advisory = ""
	if strings.Contains(renderMessage(note), "Insight:") {
		t.Fatal("empty advisory should not render an Insight line")
	}
}

func TestNotifyTransactionSendsRenderedText(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", srv.URL, time.Second, testLogger())
	note := TxNotification{
		UserID:      7,
		Address:     "0x1234567890abcdef1234567890abcdef12345678",
		Hash:        "0xdeadbeefcafe0000000000000000000000000000",
		Kind:        "EVM",
		Direction:   "incoming",
		Block:       "123",
		AmountSEI:   decimal.NewFromFloat(2.5),
		ExplorerURL: "https://seitrace.com/tx/0xdeadbeefcafe?chain=atlantic-2",
	}

	if err := notifier.NotifyTransaction(context.Background(), note); err != nil {
		t.Fatalf("NotifyTransaction should succeed: %v", err)
	}

	if received["chat_id"] != "7" {
		t.Fatalf("chat_id should be the user id: %#v", received)
	}
	text := received["text"]
	for _, want := range []string{
		"[Transaction Alert]",
		"Address: 0x12345678...",
		"Direction: incoming",
		"Amount: 2.5 SEI",
		"Block: 123",
		"Hash: 0xdeadbeef...",
		"https://seitrace.com/tx/",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("message missing %q: %q", want, text)
		}
	}
}

func TestRenderTxMessageOmitsEmptyFields(t *testing.T) {
	note := TxNotification{
		UserID:  1,
		Address: "sei1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqq",
		Hash:    "SHORT",
		Kind:    "SEI",
	}

	text := renderTxMessage(note)
	if strings.Contains(text, "Direction:") || strings.Contains(text, "Amount:") ||
		strings.Contains(text, "Block:") || strings.Contains(text, "Explorer:") {
		t.Fatalf("empty fields should not render: %q", text)
	}
	if !strings.Contains(text, "Hash: SHORT...") {
		t.Fatalf("short hashes render whole: %q", text)
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
