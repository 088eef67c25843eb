package fiat

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/PAYCY-LLC/xrates-kit-go/internal/transport"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *int) {
	t.Helper()
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	log := zap.NewNop().Sugar()
	c := New(server.URL, transport.New("test", 5*time.Second, log), 10*time.Minute, log)
	return c, &requests
}

func TestRate_SameCurrencyIdentity(t *testing.T) {
	c, requests := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

	rate, err := c.Rate(context.Background(), "USD", "usd")
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if !rate.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("rate = %s, want 1", rate)
	}
	if *requests != 0 {
		t.Fatalf("made %d requests for identity rate, want 0", *requests)
	}
}

func TestRate_FetchAndCache(t *testing.T) {
	c, requests := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("base"); got != "USD" {
			t.Errorf("base = %q, want USD", got)
		}
		fmt.Fprint(w, `{"rates": {"EUR": 0.92}}`)
	})

	rate, err := c.Rate(context.Background(), "usd", "eur")
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if !rate.Equal(decimal.NewFromFloat(0.92)) {
		t.Fatalf("rate = %s, want 0.92", rate)
	}

	// Second lookup within the ttl hits the cache.
	if _, err := c.Rate(context.Background(), "usd", "eur"); err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if *requests != 1 {
		t.Fatalf("made %d requests, want 1", *requests)
	}
}

func TestRate_ExpiredCacheRefetches(t *testing.T) {
	c, requests := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"rates": {"EUR": 0.92}}`)
	})

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if _, err := c.Rate(context.Background(), "usd", "eur"); err != nil {
		t.Fatalf("Rate: %v", err)
	}

	now = now.Add(11 * time.Minute)
	if _, err := c.Rate(context.Background(), "usd", "eur"); err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if *requests != 2 {
		t.Fatalf("made %d requests, want 2 after ttl", *requests)
	}
}

func TestRate_MissingSymbol(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"rates": {}}`)
	})

	if _, err := c.Rate(context.Background(), "usd", "eur"); err == nil {
		t.Fatal("expected error for missing symbol")
	}
}

func TestRate_NonPositiveRejected(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"rates": {"EUR": 0}}`)
	})

	if _, err := c.Rate(context.Background(), "usd", "eur"); err == nil {
		t.Fatal("expected error for non-positive rate")
	}
}
