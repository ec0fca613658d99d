package ai

import (
	"fmt"
	"strings"

	"github.com/david/govmatch/internal/logger"
)

// NewCapability builds the configured provider, wrapped in a response cache when
// cfg.CacheTTL is set. It returns nil, nil when web search is disabled.
func NewCapability(cfg Config, log *logger.Logger) (SearchCapability, error) {
	var (
		capability SearchCapability
		err        error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "openai":
		capability, err = NewOpenAICapability(cfg, log)
	case "ollama":
		capability = NewOllamaCapability(cfg)
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown search provider: %s (supported: openai, ollama, none)", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.CacheTTL > 0 {
		capability = NewCachedCapability(capability, cfg.CacheTTL)
	}
	return capability, nil
}
