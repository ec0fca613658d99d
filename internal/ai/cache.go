package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// CachedCapability remembers successful answers per prompt so repeated searches do not
// pay for another model call.
type CachedCapability struct {
	inner SearchCapability
	cache *gocache.Cache
}

func NewCachedCapability(inner SearchCapability, ttl time.Duration) *CachedCapability {
	return &CachedCapability{
		inner: inner,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (c *CachedCapability) Invoke(ctx context.Context, prompt string, toolsEnabled bool) (*CapabilityResult, error) {
	key := cacheKey(prompt, toolsEnabled)
	if v, found := c.cache.Get(key); found {
		return v.(*CapabilityResult), nil
	}

	res, err := c.inner.Invoke(ctx, prompt, toolsEnabled)
	if err != nil {
		return nil, err
	}
	// Empty answers are usually transient.
	if !res.Empty() {
		c.cache.SetDefault(key, res)
	}
	return res, nil
}

func cacheKey(prompt string, toolsEnabled bool) string {
	mode := "text"
	if toolsEnabled {
		mode = "tools"
	}
	sum := sha256.Sum256([]byte(mode + "\x00" + prompt))
	return hex.EncodeToString(sum[:])
}
