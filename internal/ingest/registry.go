package ingest

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/david/govmatch/internal/models"
)

//go:embed config/sources.yaml
var sourcesYAML embed.FS

// Registry holds the configuration for all import sources.
type Registry struct {
	Sources []SourceConfig `yaml:"sources"`

	byID map[string]SourceConfig
}

// FetchConfig defines HTTP fetching configuration for a source feed.
type FetchConfig struct {
	Strategy       string  `yaml:"strategy,omitempty"`        // "http" (default) or "colly"
	TimeoutSeconds int     `yaml:"timeout_seconds,omitempty"` // Default: 30
	MaxRetries     int     `yaml:"max_retries,omitempty"`     // Default: 3
	RateLimitRPS   float64 `yaml:"rate_limit_rps,omitempty"`  // Requests per second, default: 1.0
	ProxyURL       string  `yaml:"proxy_url,omitempty"`
	AcceptLanguage string  `yaml:"accept_language,omitempty"`
}

// SourceConfig defines a single portal whose exports are imported into the catalog.
type SourceConfig struct {
	ID              string `yaml:"id"`
	Name            string `yaml:"name"`
	Format          string `yaml:"format"` // county_bid, federal_contract, federal_grant, state_procurement, generic
	Kind            string `yaml:"kind,omitempty"`
	State           string `yaml:"state,omitempty"`
	County          string `yaml:"county,omitempty"`
	Delimiter       string `yaml:"delimiter,omitempty"`
	FeedURL         string `yaml:"feed_url,omitempty"`
	ScheduleEnabled bool   `yaml:"schedule_enabled,omitempty"`
	Description     string `yaml:"description,omitempty"`

	Fetch FetchConfig `yaml:"fetch,omitempty"`
}

// SourceFormat returns the validated format. Invalid values were rejected at load time.
func (c SourceConfig) SourceFormat() SourceFormat {
	f, err := ParseSourceFormat(c.Format)
	if err != nil {
		return FormatGeneric
	}
	return f
}

// SourceKind returns the configured kind, or the one implied by the format.
func (c SourceConfig) SourceKind() models.SourceKind {
	if k, ok := models.ParseSourceKind(c.Kind); ok {
		return k
	}
	return c.SourceFormat().DefaultKind()
}

// MapContext is what a mapper needs to know about this source.
func (c SourceConfig) MapContext() MapContext {
	return MapContext{Source: c.ID, Kind: c.SourceKind(), State: c.State, County: c.County}
}

// LoadRegistry reads sources from path, or from the embedded sources.yaml when path is
// empty. ${VAR} references are expanded from the environment.
func LoadRegistry(path string) (*Registry, error) {
	var (
		data []byte
		err  error
	)
	if path != "" {
		data, err = os.ReadFile(path)
	} else {
		data, err = sourcesYAML.ReadFile("config/sources.yaml")
	}
	if err != nil {
		return nil, fmt.Errorf("read source registry: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry decodes and validates registry YAML.
func ParseRegistry(data []byte) (*Registry, error) {
	expanded := os.ExpandEnv(string(data))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, fmt.Errorf("parse source registry: %w", err)
	}

	reg.byID = make(map[string]SourceConfig, len(reg.Sources))
	for i, src := range reg.Sources {
		src.ID = strings.TrimSpace(src.ID)
		if src.ID == "" {
			return nil, fmt.Errorf("source #%d has no id", i+1)
		}
		if _, dup := reg.byID[src.ID]; dup {
			return nil, fmt.Errorf("duplicate source id %q", src.ID)
		}
		if _, err := ParseSourceFormat(src.Format); err != nil {
			return nil, fmt.Errorf("source %q: %w", src.ID, err)
		}
		if src.Kind != "" {
			if _, ok := models.ParseSourceKind(src.Kind); !ok {
				return nil, fmt.Errorf("source %q: unknown kind %q", src.ID, src.Kind)
			}
		}
		reg.Sources[i] = src
		reg.byID[src.ID] = src
	}
	return &reg, nil
}

// Lookup returns the configuration for a source id.
func (r *Registry) Lookup(id string) (SourceConfig, bool) {
	if r == nil {
		return SourceConfig{}, false
	}
	src, ok := r.byID[id]
	return src, ok
}

// Resolve returns the configured source, or a generic entry for ids the registry does
// not know. Ad-hoc imports are accepted under any id.
func (r *Registry) Resolve(id string) SourceConfig {
	if src, ok := r.Lookup(id); ok {
		return src
	}
	return SourceConfig{ID: id, Name: id, Format: string(FormatGeneric), Kind: string(models.KindOther)}
}

// Scheduled returns the sources the scheduler should poll.
func (r *Registry) Scheduled() []SourceConfig {
	if r == nil {
		return nil
	}
	var out []SourceConfig
	for _, src := range r.Sources {
		if src.ScheduleEnabled && src.FeedURL != "" {
			out = append(out, src)
		}
	}
	return out
}
