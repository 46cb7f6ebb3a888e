package api

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/clinbrief/clinbrief/ocr"
	"github.com/clinbrief/clinbrief/shield"
	"github.com/clinbrief/clinbrief/summarize"
)

// Config holds the full server configuration.
type Config struct {
	Listen           string                 `yaml:"listen"`
	DBPath           string                 `yaml:"db_path"`
	JWTAccessSecret  string                 `yaml:"jwt_access_secret"`
	JWTRefreshSecret string                 `yaml:"jwt_refresh_secret"`
	SecureCookies    bool                   `yaml:"secure_cookies"`
	MaxUploadMB      int                    `yaml:"max_upload_mb"`
	RateLimit        shield.RateLimitConfig `yaml:"rate_limit"`
	OCR              ocr.Config             `yaml:"ocr"`
	Summarizer       summarize.Config       `yaml:"summarizer"`
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:      ":8080",
		DBPath:      "clinbrief.db",
		MaxUploadMB: 20,
		RateLimit:   shield.DefaultRateLimit(),
	}
}

// LoadConfig reads and parses a YAML config file. Returns DefaultConfig
// merged with the file. Secrets can be supplied via the environment
// (CLINBRIEF_JWT_ACCESS_SECRET, CLINBRIEF_JWT_REFRESH_SECRET), which takes
// precedence over the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if v := os.Getenv("CLINBRIEF_JWT_ACCESS_SECRET"); v != "" {
		cfg.JWTAccessSecret = v
	}
	if v := os.Getenv("CLINBRIEF_JWT_REFRESH_SECRET"); v != "" {
		cfg.JWTRefreshSecret = v
	}
	return cfg, cfg.Validate()
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if len(c.JWTAccessSecret) < 32 {
		return fmt.Errorf("jwt_access_secret must be at least 32 bytes")
	}
	if len(c.JWTRefreshSecret) < 32 {
		return fmt.Errorf("jwt_refresh_secret must be at least 32 bytes")
	}
	if c.JWTAccessSecret == c.JWTRefreshSecret {
		return fmt.Errorf("jwt_access_secret and jwt_refresh_secret must differ")
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be > 0")
	}
	return nil
}

// MaxUploadBytes returns the upload cap in bytes.
func (c *Config) MaxUploadBytes() int64 { return int64(c.MaxUploadMB) * 1024 * 1024 }
