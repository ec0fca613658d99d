package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// OllamaCapability runs prompts against a local Ollama server. Ollama has no tool
// calling here, so every answer comes back as a single text block.
type OllamaCapability struct {
	BaseURL string
	Model   string
	client  *http.Client
}

func NewOllamaCapability(cfg Config) *OllamaCapability {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	model := cfg.Model
	if model == "" {
		model = "llama3.2:latest"
	}
	return &OllamaCapability{
		BaseURL: baseURL,
		Model:   model,
		client:  &http.Client{Timeout: cfg.timeout()},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Invoke ignores toolsEnabled. The prompt asks for a JSON array, which the caller
// digs out of the text.
func (c *OllamaCapability) Invoke(ctx context.Context, prompt string, _ bool) (*CapabilityResult, error) {
	body, err := json.Marshal(generateRequest{Model: c.Model, Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status: %d", resp.StatusCode)
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	result := &CapabilityResult{}
	if text := strings.TrimSpace(parsed.Response); text != "" {
		result.TextBlocks = []string{text}
	}
	return result, nil
}
