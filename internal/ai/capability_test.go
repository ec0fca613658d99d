package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type countingCapability struct {
	calls  int
	result *CapabilityResult
	err    error
}

func (c *countingCapability) Invoke(context.Context, string, bool) (*CapabilityResult, error) {
	c.calls++
	return c.result, c.err
}

func TestCachedCapability(t *testing.T) {
	inner := &countingCapability{result: &CapabilityResult{TextBlocks: []string{"x"}}}
	cached := NewCachedCapability(inner, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := cached.Invoke(ctx, "same prompt", true); err != nil {
			t.Fatalf("Invoke: %v", err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", inner.calls)
	}

	// Tool mode is part of the key.
	_, _ = cached.Invoke(ctx, "same prompt", false)
	if inner.calls != 2 {
		t.Errorf("expected a second upstream call for text mode, got %d", inner.calls)
	}
}

func TestCachedCapability_SkipsErrorsAndEmpty(t *testing.T) {
	ctx := context.Background()

	failing := &countingCapability{err: errors.New("down")}
	cached := NewCachedCapability(failing, time.Minute)
	_, _ = cached.Invoke(ctx, "p", true)
	_, _ = cached.Invoke(ctx, "p", true)
	if failing.calls != 2 {
		t.Errorf("errors must not be cached, got %d calls", failing.calls)
	}

	empty := &countingCapability{result: &CapabilityResult{}}
	cached = NewCachedCapability(empty, time.Minute)
	_, _ = cached.Invoke(ctx, "p", true)
	_, _ = cached.Invoke(ctx, "p", true)
	if empty.calls != 2 {
		t.Errorf("empty results must not be cached, got %d calls", empty.calls)
	}
}

func TestOllamaCapability_Invoke(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req generateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "llama3.2:latest" || req.Stream {
			t.Errorf("unexpected request %+v", req)
		}
		_ = json.NewEncoder(w).Encode(generateResponse{Response: `  [{"title":"RFP Paving"}]  `, Done: true})
	}))
	defer server.Close()

	capability := NewOllamaCapability(Config{BaseURL: server.URL + "/"})
	res, err := capability.Invoke(context.Background(), "paving", true)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(res.StructuredItems) != 0 {
		t.Errorf("ollama must not return structured items: %+v", res.StructuredItems)
	}
	if len(res.TextBlocks) != 1 || res.TextBlocks[0] != `[{"title":"RFP Paving"}]` {
		t.Errorf("unexpected text blocks %q", res.TextBlocks)
	}
}

func TestOllamaCapability_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	if _, err := NewOllamaCapability(Config{BaseURL: server.URL}).Invoke(context.Background(), "p", false); err == nil {
		t.Fatal("expected an error for a 503")
	}
}

func TestNewCapability(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantNil bool
		wantErr bool
		check   func(SearchCapability) bool
	}{
		{name: "disabled", cfg: Config{}, wantNil: true},
		{name: "none", cfg: Config{Provider: "none"}, wantNil: true},
		{name: "ollama", cfg: Config{Provider: "Ollama"}, check: func(c SearchCapability) bool { _, ok := c.(*OllamaCapability); return ok }},
		{name: "openai cached", cfg: Config{Provider: "openai", APIKey: "k", CacheTTL: time.Minute}, check: func(c SearchCapability) bool { _, ok := c.(*CachedCapability); return ok }},
		{name: "openai without key", cfg: Config{Provider: "openai"}, wantErr: true},
		{name: "unknown", cfg: Config{Provider: "bard"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCapability(tt.cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if (c == nil) != tt.wantNil {
				t.Fatalf("capability = %v, wantNil %v", c, tt.wantNil)
			}
			if tt.check != nil && !tt.check(c) {
				t.Errorf("unexpected capability type %T", c)
			}
		})
	}
}
