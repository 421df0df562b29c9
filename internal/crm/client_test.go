package crm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

// newTestClient creates a client pointed at a test server with no page delay.
func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()

	client, err := NewClient(&Config{
		BaseURL:   serverURL,
		Token:     "test-token",
		PageSize:  2,
		PageDelay: 0,
		Timeout:   5 * time.Second,
		Logger:    log.New(os.Stderr, "[test] ", 0),
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

// pagedHandler serves two pages of companies: P1 with a cursor, P2 without.
func pagedHandler(t *testing.T, requests *int) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		*requests++

		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("expected bearer token header, got %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("after") == "" {
			fmt.Fprint(w, `{
				"results": [
					{"id": "c-1", "properties": {"name": "Acme", "domain": "acme.com"}},
					{"id": "c-2", "properties": {"name": "Globex", "domain": "globex.com"}}
				],
				"paging": {"next": {"after": "cursor-1"}}
			}`)
			return
		}

		if got := r.URL.Query().Get("after"); got != "cursor-1" {
			t.Errorf("expected cursor-1, got %q", got)
		}
		fmt.Fprint(w, `{
			"results": [
				{"id": "c-3", "properties": {"name": "Initech", "domain": "initech.com"}}
			]
		}`)
	}
}

func TestForEachPage_Termination(t *testing.T) {
	requests := 0
	server := httptest.NewServer(pagedHandler(t, &requests))
	defer server.Close()

	client := newTestClient(t, server.URL)

	var pages int
	var records int
	err := client.ForEachPage(context.Background(), KindCompanies, CompanyProperties, func(recs []Record) error {
		pages++
		records += len(recs)
		return nil
	})
	if err != nil {
		t.Fatalf("ForEachPage failed: %v", err)
	}

	if pages != 2 {
		t.Errorf("expected 2 pages, got %d", pages)
	}
	if records != 3 {
		t.Errorf("expected 3 records, got %d", records)
	}
	if requests != 2 {
		t.Errorf("expected exactly 2 requests (no request after final page), got %d", requests)
	}
}

func TestFetchAll(t *testing.T) {
	requests := 0
	server := httptest.NewServer(pagedHandler(t, &requests))
	defer server.Close()

	client := newTestClient(t, server.URL)

	records, err := client.FetchAll(context.Background(), KindCompanies, CompanyProperties)
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].ID != "c-1" || records[2].ID != "c-3" {
		t.Errorf("records out of fetch order: %v", records)
	}
	if got := records[0].Property("name"); got != "Acme" {
		t.Errorf("expected property name=Acme, got %q", got)
	}
}

func TestForEachPage_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	err := client.ForEachPage(context.Background(), KindContacts, ContactProperties, func([]Record) error {
		t.Error("callback should not run on a failed fetch")
		return nil
	})
	if err == nil {
		t.Fatal("expected an error for a 500 response")
	}

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected *UpstreamError, got %T: %v", err, err)
	}
	if upstream.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", upstream.StatusCode)
	}
}

func TestForEachPage_ErrorMidTraversal(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json")
		if requests == 1 {
			fmt.Fprint(w, `{"results": [{"id": "c-1", "properties": {}}], "paging": {"next": {"after": "x"}}}`)
			return
		}
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	pages := 0
	err := client.ForEachPage(context.Background(), KindCompanies, nil, func([]Record) error {
		pages++
		return nil
	})
	if err == nil {
		t.Fatal("expected mid-traversal failure to abort the fetch")
	}
	if pages != 1 {
		t.Errorf("expected 1 page before abort, got %d", pages)
	}
}

func TestForEachPage_CallbackError(t *testing.T) {
	requests := 0
	server := httptest.NewServer(pagedHandler(t, &requests))
	defer server.Close()

	client := newTestClient(t, server.URL)

	wantErr := errors.New("stop here")
	err := client.ForEachPage(context.Background(), KindCompanies, nil, func([]Record) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected callback error to propagate, got %v", err)
	}
	if requests != 1 {
		t.Errorf("expected traversal to stop after first page, got %d requests", requests)
	}
}

func TestHealthCheck(t *testing.T) {
	healthy := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"results": []}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	if !client.HealthCheck(context.Background()) {
		t.Error("expected health check to pass against a healthy server")
	}

	healthy = false
	if client.HealthCheck(context.Background()) {
		t.Error("expected health check to fail against a 503 server")
	}
}

func TestHealthCheck_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // shut down immediately

	client := newTestClient(t, server.URL)

	if client.HealthCheck(context.Background()) {
		t.Error("expected health check to fail against a closed server")
	}
}

func TestNewClient_Validation(t *testing.T) {
	if _, err := NewClient(&Config{Token: "t"}); err == nil {
		t.Error("expected error for missing base URL")
	}
	if _, err := NewClient(&Config{BaseURL: "http://localhost"}); err == nil {
		t.Error("expected error for missing token")
	}
}

func TestForEachPage_SinglePageNoDelay(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"results": [{"id": "c-1", "properties": {}}]}`)
	}))
	defer server.Close()

	client, err := NewClient(&Config{
		BaseURL:   server.URL,
		Token:     "test-token",
		PageDelay: 2 * time.Second,
		Logger:    log.New(os.Stderr, "[test] ", 0),
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	// A single-page fetch must not pay the inter-page delay at all.
	start := time.Now()
	if err := client.ForEachPage(context.Background(), KindCompanies, nil, func([]Record) error {
		return nil
	}); err != nil {
		t.Fatalf("ForEachPage failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("single-page fetch took %v, delay should be skipped", elapsed)
	}
}
