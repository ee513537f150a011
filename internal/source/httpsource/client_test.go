package httpsource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nucleus/sync-core/internal/source"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{
		BaseURL:   server.URL,
		APIToken:  "test-token",
		RateLimit: 1000,
		RateBurst: 1000,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestSalesFetcher_FetchWindow(t *testing.T) {
	var gotQuery string
	var gotAuth string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/export/sales/lines" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"lines":[
			{"invoice_id":"inv-1","sku":"sku-a","quantity":2,"unit_price":9.5,"line_total":19,"currency":"USD","sold_at":"2026-08-01T10:00:00Z"},
			{"invoice_id":"inv-1","sku":"sku-b","quantity":1,"unit_price":3,"line_total":3,"currency":"USD","sold_at":"2026-08-01T11:00:00Z"}
		]}`))
	}))

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)
	records, err := NewSalesFetcher(client).FetchWindow(context.Background(), start, end, 500)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Kind != source.KindSalesLine {
		t.Errorf("kind %s", records[0].Kind)
	}
	if records[0].Sales.InvoiceID != "inv-1" || records[0].Sales.Quantity != 2 {
		t.Errorf("decoded record wrong: %+v", records[0].Sales)
	}
	if records[0].Key() != (source.Key{InvoiceID: "inv-1", SKU: "sku-a"}) {
		t.Errorf("key wrong: %+v", records[0].Key())
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("auth header %q", gotAuth)
	}
	for _, want := range []string{"since=2026-08-01T00%3A00%3A00Z", "until=2026-08-02T00%3A00%3A00Z", "limit=500"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}
}

func TestCatalogFetcher_FetchActiveKeys(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/export/catalog/keys" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"keys":[{"sku":"sku-1"},{"sku":"sku-2"}]}`))
	}))

	keys, err := NewCatalogFetcher(client).FetchActiveKeys(context.Background())
	if err != nil {
		t.Fatalf("fetch keys: %v", err)
	}
	if len(keys) != 2 || keys[0].SKU != "sku-1" || keys[1].SKU != "sku-2" {
		t.Errorf("keys wrong: %+v", keys)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "flaky", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"products":[]}`))
	}))

	_, err := NewCatalogFetcher(client).FetchWindow(context.Background(), time.Now().Add(-time.Hour), time.Now(), 0)
	if err != nil {
		t.Fatalf("expected success after retries: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("got %d calls, want 3", got)
	}
}

func TestClient_RetriesHonorRateLimit(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "flaky", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	// One burst token and a refill rate so slow the next token never
	// arrives within the deadline: a retry has to go through the limiter,
	// not straight back to the server.
	client, err := NewClient(ClientConfig{
		BaseURL:   server.URL,
		RateLimit: 0.001,
		RateBurst: 1,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = NewCatalogFetcher(client).FetchWindow(ctx, time.Now().Add(-time.Hour), time.Now(), 0)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "rate limiter") {
		t.Errorf("error should surface the limiter wait: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("got %d calls, want 1: retries must not bypass the rate limit", got)
	}
}

func TestClient_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))

	_, err := NewSalesFetcher(client).FetchActiveKeys(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("401 retried: %d calls", got)
	}
}

func TestClient_EmptyWindowIsNotAnError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"lines":[]}`))
	}))

	records, err := NewSalesFetcher(client).FetchWindow(context.Background(), time.Now().Add(-time.Hour), time.Now(), 0)
	if err != nil {
		t.Fatalf("empty window must not error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
}

func TestClient_BadTimestampFailsDecode(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"lines":[{"invoice_id":"i","sku":"s","sold_at":"yesterday"}]}`))
	}))

	if _, err := NewSalesFetcher(client).FetchWindow(context.Background(), time.Now().Add(-time.Hour), time.Now(), 0); err == nil {
		t.Error("expected decode error for malformed timestamp")
	}
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Error("expected error for missing base url")
	}
}
