package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func newTestOracle(baseURL string) *Oracle {
	return NewOracle(OracleOptions{
		BaseURL: baseURL,
		APIKey:  "test-key",
		Timeout: time.Second,
	}, zerolog.Nop())
}

func TestOracleQuoteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/price/SEI" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Fatalf("missing bearer token: %q", r.Header.Get("Authorization"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"price": 0.85})
	}))
	defer srv.Close()

	price, err := newTestOracle(srv.URL).Quote(context.Background(), "sei")
	if err != nil {
		t.Fatalf("quote should succeed: %v", err)
	}
	if !price.Equal(decimal.NewFromFloat(0.85)) {
		t.Fatalf("expected 0.85, got %s", price.String())
	}
}

func TestOracleQuoteNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestOracle(srv.URL).Quote(context.Background(), "DOGE")
	if !errors.Is(err, ErrUnknownSymbol) {
		t.Fatalf("404 should map to ErrUnknownSymbol, got %v", err)
	}
	if !IsPermanent(err) {
		t.Fatal("unknown symbol should be permanent")
	}
}

func TestOracleQuoteServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "upstream down"})
	}))
	defer srv.Close()

	_, err := newTestOracle(srv.URL).Quote(context.Background(), "SEI")
	if err == nil {
		t.Fatal("HTTP 500 should be an error")
	}
	if IsPermanent(err) {
		t.Fatal("server errors should stay retryable")
	}
}

func TestOracleQuoteUnusablePrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"price": 0})
	}))
	defer srv.Close()

	_, err := newTestOracle(srv.URL).Quote(context.Background(), "SEI")
	if err == nil || !IsPermanent(err) {
		t.Fatalf("non-positive price should be a permanent error, got %v", err)
	}
}

func TestOracleQuoteWithoutAPIKey(t *testing.T) {
	oracle := NewOracle(OracleOptions{BaseURL: "http://localhost:1"}, zerolog.Nop())
	_, err := oracle.Quote(context.Background(), "SEI")
	if err == nil || !IsPermanent(err) {
		t.Fatalf("missing api key should fail permanently, got %v", err)
	}
}
