package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"OW_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"OW_DB_MAX_CONNS" default:"8"`

	// Timezone is the location extracted dates and clock times are read in.
	Timezone string `envconfig:"TIMEZONE" default:"Asia/Manila"`

	OpenAIAPIKey        string        `envconfig:"OPENAI_API_KEY" default:""`
	OpenAIBaseURL       string        `envconfig:"OPENAI_BASE_URL" default:""`
	OpenAIModel         string        `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	ExtractionMaxImages int           `envconfig:"EXTRACTION_MAX_IMAGES" default:"10"`
	ExtractionTimeout   time.Duration `envconfig:"EXTRACTION_TIMEOUT" default:"60s"`

	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("OW_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("OW_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("OW_DB_MIN_CONNS (%d) cannot exceed OW_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if _, err := time.LoadLocation(strings.TrimSpace(c.Timezone)); err != nil {
		return fmt.Errorf("TIMEZONE=%q is not a valid location: %w", c.Timezone, err)
	}
	if c.ExtractionMaxImages < 0 {
		return fmt.Errorf("EXTRACTION_MAX_IMAGES must be >= 0")
	}
	if c.ExtractionTimeout <= 0 {
		return fmt.Errorf("EXTRACTION_TIMEOUT must be > 0")
	}
	return nil
}

// Location returns the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c == nil {
		return time.UTC
	}
	loc, err := time.LoadLocation(strings.TrimSpace(c.Timezone))
	if err != nil {
		return time.UTC
	}
	return loc
}

// ExtractionEnabled reports whether an OpenAI key is configured.
func (c *Config) ExtractionEnabled() bool {
	return c != nil && strings.TrimSpace(c.OpenAIAPIKey) != ""
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}
