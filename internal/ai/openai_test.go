package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
)

func TestOpenAICapability_Invoke_ToolCallsAndText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected path /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected Authorization header Bearer test-key, got %s", r.Header.Get("Authorization"))
		}

		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Tools) != 1 || req.Tools[0].Function.Name != webResultTool {
			t.Errorf("expected the %s tool to be offered, got %+v", webResultTool, req.Tools)
		}

		resp := openai.ChatCompletionResponse{
			ID:    "chatcmpl-123",
			Model: "gpt-4o-mini",
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: `Also found: [{"title":"Grant for Parks","url":"https://example.gov/parks"}]`,
					ToolCalls: []openai.ToolCall{
						{
							ID:   "call_1",
							Type: openai.ToolTypeFunction,
							Function: openai.FunctionCall{
								Name:      webResultTool,
								Arguments: `{"title":"RFP Janitorial Services","url":"https://example.gov/rfp/1","due_date":"2030-01-15","agency":"City of Springfield"}`,
							},
						},
						{
							ID:       "call_2",
							Type:     openai.ToolTypeFunction,
							Function: openai.FunctionCall{Name: webResultTool, Arguments: `{"title": "trunc`},
						},
						{
							ID:       "call_3",
							Type:     openai.ToolTypeFunction,
							Function: openai.FunctionCall{Name: "other_tool", Arguments: `{"title":"ignored"}`},
						},
					},
				},
				FinishReason: openai.FinishReasonToolCalls,
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	capability, err := NewOpenAICapability(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5 * time.Second}, nil)
	if err != nil {
		t.Fatalf("NewOpenAICapability: %v", err)
	}

	res, err := capability.Invoke(context.Background(), "janitorial RFP", true)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(res.StructuredItems) != 1 {
		t.Fatalf("expected 1 structured item, got %+v", res.StructuredItems)
	}
	item := res.StructuredItems[0]
	if item.Title != "RFP Janitorial Services" || item.DueDate != "2030-01-15" || item.Agency != "City of Springfield" {
		t.Errorf("unexpected item: %+v", item)
	}
	if item.EstimatedValue != "" {
		t.Errorf("estimated value should stay empty, got %q", item.EstimatedValue)
	}
	if len(res.TextBlocks) != 1 {
		t.Errorf("expected the message text as one block, got %v", res.TextBlocks)
	}
}

func TestOpenAICapability_Invoke_NoToolsWhenDisabled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Tools) != 0 {
			t.Errorf("tools offered with toolsEnabled=false: %+v", req.Tools)
		}
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "nothing found"}}},
		})
	}))
	defer server.Close()

	capability, err := NewOpenAICapability(Config{APIKey: "test-key", BaseURL: server.URL}, nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := capability.Invoke(context.Background(), "q", false)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(res.StructuredItems) != 0 || len(res.TextBlocks) != 1 || res.TextBlocks[0] != "nothing found" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestOpenAICapability_Invoke_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer server.Close()

	capability, err := NewOpenAICapability(Config{APIKey: "test-key", BaseURL: server.URL}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := capability.Invoke(context.Background(), "q", true); err == nil {
		t.Fatal("expected an error from a failing upstream")
	}
}

func TestOpenAICapability_Invoke_HonorsTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	capability, err := NewOpenAICapability(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 50 * time.Millisecond}, nil)
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if _, err := capability.Invoke(context.Background(), "q", true); err == nil {
		t.Fatal("expected a timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Invoke took %v, timeout not applied", elapsed)
	}
}

func TestNewOpenAICapability_RequiresKey(t *testing.T) {
	if _, err := NewOpenAICapability(Config{}, nil); err == nil {
		t.Fatal("expected an error without an api key")
	}
}
