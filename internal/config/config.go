package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration. Precedence, highest first: environment
// (GOVMATCH_* or the plain names bound below), the config file, defaults.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Search    SearchConfig    `mapstructure:"search"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port        string   `mapstructure:"port"`
	AdminSecret string   `mapstructure:"admin_secret"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	// MaxImportBytes caps the body of an import request.
	MaxImportBytes int64 `mapstructure:"max_import_bytes"`
}

type DatabaseConfig struct {
	// URL is a postgres connection string. Empty runs on the in-memory catalog.
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	Migrate  bool   `mapstructure:"migrate"`
}

type SearchConfig struct {
	Provider    string        `mapstructure:"provider"` // openai, ollama, none
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	ResultLimit int           `mapstructure:"result_limit"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

type ScoringConfig struct {
	Base            int `mapstructure:"base"`
	NAICS           int `mapstructure:"naics"`
	Certification   int `mapstructure:"certification"`
	Provenance      int `mapstructure:"provenance"`
	HighThreshold   int `mapstructure:"high_threshold"`
	MediumThreshold int `mapstructure:"medium_threshold"`
}

type SchedulerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interval    time.Duration `mapstructure:"interval"`
	Parallelism int           `mapstructure:"parallelism"`
}

type SourcesConfig struct {
	// Registry is a path to a sources YAML file. Empty uses the built-in registry.
	Registry string `mapstructure:"registry"`
}

type LogConfig struct {
	Mode string `mapstructure:"mode"` // dev or prod
}

// plainEnv are the unprefixed variable names deployments already use.
var plainEnv = map[string]string{
	"server.port":         "PORT",
	"server.admin_secret": "ADMIN_SECRET",
	"server.cors_origins": "CORS_ORIGINS",
	"database.url":        "DATABASE_URL",
	"search.api_key":      "OPENAI_API_KEY",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8081")
	v.SetDefault("server.admin_secret", "")
	v.SetDefault("server.cors_origins", []string{"http://localhost:4200"})
	v.SetDefault("server.max_import_bytes", 32<<20)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.migrate", true)

	v.SetDefault("search.provider", "")
	v.SetDefault("search.model", "")
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.base_url", "")
	v.SetDefault("search.timeout", 45*time.Second)
	v.SetDefault("search.max_tokens", 2000)
	v.SetDefault("search.result_limit", 20)
	v.SetDefault("search.cache_ttl", 15*time.Minute)

	v.SetDefault("scoring.base", 50)
	v.SetDefault("scoring.naics", 20)
	v.SetDefault("scoring.certification", 15)
	v.SetDefault("scoring.provenance", 10)
	v.SetDefault("scoring.high_threshold", 80)
	v.SetDefault("scoring.medium_threshold", 60)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.interval", 6*time.Hour)
	v.SetDefault("scheduler.parallelism", 2)

	v.SetDefault("sources.registry", "")

	v.SetDefault("log.mode", "dev")
}

// Load reads configuration from path (or $GOVMATCH_CONFIG, or ./govmatch.yaml when
// present) and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GOVMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range plainEnv {
		prefixed := "GOVMATCH_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path == "" {
		path = os.Getenv("GOVMATCH_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("govmatch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyImplicit()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyImplicit fills settings that follow from others.
func (c *Config) applyImplicit() {
	c.Search.Provider = strings.ToLower(strings.TrimSpace(c.Search.Provider))
	if c.Search.Provider == "" && c.Search.APIKey != "" {
		c.Search.Provider = "openai"
	}
	if c.Search.Provider == "ollama" && c.Search.BaseURL == "" {
		c.Search.BaseURL = os.Getenv("OLLAMA_HOST")
	}
	var origins []string
	for _, o := range c.Server.CORSOrigins {
		for _, part := range strings.Split(o, ",") {
			if part = strings.TrimSpace(part); part != "" {
				origins = append(origins, part)
			}
		}
	}
	c.Server.CORSOrigins = origins
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Server.MaxImportBytes <= 0 {
		errs = append(errs, errors.New("server.max_import_bytes must be positive"))
	}
	switch c.Search.Provider {
	case "", "none", "ollama":
	case "openai":
		if c.Search.APIKey == "" {
			errs = append(errs, errors.New("search.api_key (OPENAI_API_KEY) is required for the openai provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("search.provider %q is not one of openai, ollama, none", c.Search.Provider))
	}
	if c.Search.ResultLimit < 1 || c.Search.ResultLimit > 20 {
		errs = append(errs, fmt.Errorf("search.result_limit must be between 1 and 20, got %d", c.Search.ResultLimit))
	}
	if c.Search.Timeout <= 0 {
		errs = append(errs, errors.New("search.timeout must be positive"))
	}
	if c.Scoring.MediumThreshold > c.Scoring.HighThreshold {
		errs = append(errs, errors.New("scoring.medium_threshold must not exceed scoring.high_threshold"))
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval < time.Minute {
		errs = append(errs, fmt.Errorf("scheduler.interval must be at least 1m, got %s", c.Scheduler.Interval))
	}
	switch strings.ToLower(c.Log.Mode) {
	case "dev", "development", "prod", "production":
	default:
		errs = append(errs, fmt.Errorf("log.mode %q is not dev or prod", c.Log.Mode))
	}
	return errors.Join(errs...)
}
