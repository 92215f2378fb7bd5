package advisor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestAdviseSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/advise" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["prompt"] == "" {
			t.Fatal("prompt should not be empty")
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"advice": "Volume is thin today."})
	}))
	defer srv.Close()

	client := NewClient(Options{BaseURL: srv.URL, APIKey: "key", Timeout: time.Second}, zerolog.Nop())
	got := client.Advise(context.Background(), AlertPrompt(), DropContext(12.5, 100, 87.5, 10))
	if got != "Volume is thin today." {
		t.Fatalf("unexpected advice %q", got)
	}
}

func TestAdviseFallsBackOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(Options{BaseURL: srv.URL, APIKey: "key", Timeout: time.Second}, zerolog.Nop())
	if got := client.Advise(context.Background(), AlertPrompt(), nil); got != FallbackAdvice {
		t.Fatalf("failure should fall back, got %q", got)
	}
}

func TestAdviseFallsBackOnEmptyAdvice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"advice": "  "})
	}))
	defer srv.Close()

	client := NewClient(Options{BaseURL: srv.URL, APIKey: "key", Timeout: time.Second}, zerolog.Nop())
	if got := client.Advise(context.Background(), AlertPrompt(), nil); got != FallbackAdvice {
		t.Fatalf("blank advice should fall back, got %q", got)
	}
}

func TestAdviseWithoutConfiguration(t *testing.T) {
	client := NewClient(Options{}, zerolog.Nop())
	if got := client.Advise(context.Background(), AlertPrompt(), nil); got != FallbackAdvice {
		t.Fatalf("unconfigured client should fall back, got %q", got)
	}
}
