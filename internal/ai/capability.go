package ai

import (
	"context"
	"time"
)

// SearchCapability is an LLM that can look things up on the web for a prompt.
type SearchCapability interface {
	// Invoke runs prompt once. With toolsEnabled the model may report findings through
	// the structured web-result tool; everything else it says comes back as text blocks.
	Invoke(ctx context.Context, prompt string, toolsEnabled bool) (*CapabilityResult, error)
}

// WebItem is one structured finding reported by the model. Optional fields are empty
// when the model did not supply them.
type WebItem struct {
	Title          string `json:"title"`
	URL            string `json:"url"`
	Snippet        string `json:"snippet,omitempty"`
	DueDate        string `json:"due_date,omitempty"`
	EstimatedValue string `json:"estimated_value,omitempty"`
	Agency         string `json:"agency,omitempty"`
}

type CapabilityResult struct {
	StructuredItems []WebItem
	TextBlocks      []string
}

// Empty reports a result with nothing usable in it.
func (r *CapabilityResult) Empty() bool {
	return r == nil || (len(r.StructuredItems) == 0 && len(r.TextBlocks) == 0)
}

// Config selects and tunes a capability provider.
type Config struct {
	Provider  string        // openai, ollama, none
	Model     string
	APIKey    string
	BaseURL   string
	Timeout   time.Duration // per call; 0 means 30s
	MaxTokens int
	CacheTTL  time.Duration // 0 disables the response cache
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 30 * time.Second
	}
	return c.Timeout
}
