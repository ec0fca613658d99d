package ingest

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestHTTPFetcher_RetriesRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, "Title,ID\nPaving,1\n")
	}))
	defer srv.Close()

	f := NewHTTPFetcher(FetchConfig{RateLimitRPS: 100, MaxRetries: 2}, WithPrivateNetworks())
	doc, err := f.Fetch(context.Background(), srv.URL+"/export.csv")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	defer doc.Body.Close()

	body, _ := io.ReadAll(doc.Body)
	if !strings.HasPrefix(string(body), "Title,ID") {
		t.Errorf("unexpected body %q", body)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}

func TestHTTPFetcher_NonRetryableStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(FetchConfig{RateLimitRPS: 100}, WithPrivateNetworks())
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected a 404 error, got %v", err)
	}
}

func TestHTTPFetcher_BlocksPrivateAddresses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "secret")
	}))
	defer srv.Close()

	f := NewHTTPFetcher(FetchConfig{RateLimitRPS: 100, MaxRetries: 1})
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil || !strings.Contains(err.Error(), "blocked private IP") {
		t.Fatalf("expected loopback feed to be blocked, got %v", err)
	}
	if _, err := f.Fetch(context.Background(), "file:///etc/passwd"); err == nil {
		t.Fatal("expected non-http scheme to be rejected")
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := map[string]bool{
		"127.0.0.1":       true,
		"10.1.2.3":        true,
		"172.20.0.1":      true,
		"192.168.1.1":     true,
		"169.254.169.254": true,
		"100.64.0.1":      true,
		"::1":             true,
		"fd00::1":         true,
		"8.8.8.8":         false,
		"2606:4700::1111": false,
	}
	for in, want := range tests {
		if got := isPrivateIP(net.ParseIP(in)); got != want {
			t.Errorf("isPrivateIP(%s) = %v, want %v", in, got, want)
		}
	}
}
