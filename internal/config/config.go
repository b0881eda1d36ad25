package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	API         APIConfig     `yaml:"api"`
	SessionPath string        `yaml:"session_path"`
	Logging     LoggingConfig `yaml:"logging"`
}

// APIConfig holds settings for the marketplace API client.
type APIConfig struct {
	// BaseURL is the HTTP endpoint of the marketplace backend, e.g. http://localhost:3001/api
	BaseURL string `yaml:"base_url"`
	// Timeout is the per-request timeout
	Timeout time.Duration `yaml:"timeout"`
	// Retries is number of retry attempts for idempotent reads
	Retries int `yaml:"retries"`
	// Backoff is the base backoff between retries
	Backoff time.Duration `yaml:"backoff"`
	// CircuitFailureThreshold opens the circuit after this many consecutive transport failures
	CircuitFailureThreshold int `yaml:"circuit_failure_threshold"`
	// CircuitReset is the duration after which the circuit attempts to half-open
	CircuitReset time.Duration `yaml:"circuit_reset"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultAPIConfig returns a sensible default client configuration.
func DefaultAPIConfig() APIConfig {
	return APIConfig{
		BaseURL:                 "http://localhost:3001/api",
		Timeout:                 15 * time.Second,
		Retries:                 2,
		Backoff:                 300 * time.Millisecond,
		CircuitFailureThreshold: 5,
		CircuitReset:            30 * time.Second,
	}
}

// Load builds the configuration from defaults, GIG_* environment variables,
// and finally the YAML file at path when one is given.
func Load(path string) (*Config, error) {
	cfg := &Config{
		API:         DefaultAPIConfig(),
		SessionPath: getEnv("GIG_SESSION_PATH", "gigboard.db"),
		Logging: LoggingConfig{
			Level:  getEnv("GIG_LOG_LEVEL", "info"),
			Format: getEnv("GIG_LOG_FORMAT", "console"),
		},
	}
	cfg.API.BaseURL = getEnv("GIG_API_URL", cfg.API.BaseURL)

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url must not be empty")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive, got %s", c.API.Timeout)
	}
	if c.API.Retries < 0 {
		return fmt.Errorf("api.retries must not be negative, got %d", c.API.Retries)
	}
	if c.SessionPath == "" {
		return fmt.Errorf("session_path must not be empty")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}
