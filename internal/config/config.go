// Configuration loading and validation for the mailbox client.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the corresponding option is absent. The call-budget
// defaults are deliberately conservative so an unconfigured caller cannot
// burn remote quota by accident.
const (
	DefaultMaxAPICalls    = 3
	DefaultAPIAwaitPeriod = 10 // seconds
)

// Config enumerates every recognized option. Unknown keys in the config
// file are rejected at load time.
type Config struct {
	// TokenFile is the path where the OAuth token is persisted.
	TokenFile string `yaml:"token_file"`

	// CredentialsFile is the path to the OAuth client credentials.
	CredentialsFile string `yaml:"credentials_file"`

	// Scopes is the space-separated list of OAuth scopes to request.
	Scopes string `yaml:"scopes"`

	// ProtectedLabels is the comma-separated list of labels that destructive
	// operations must never touch.
	ProtectedLabels string `yaml:"protected_labels"`

	// WarningsOn controls whether non-fatal fallbacks (e.g. an undecodable
	// header) are logged as warnings.
	WarningsOn *bool `yaml:"warnings_on"`

	// MaxAPICalls caps the number of remote calls a session may make.
	MaxAPICalls int `yaml:"max_api_calls"`

	// APIAwaitPeriod is the minimum spacing between remote calls, in seconds.
	APIAwaitPeriod int `yaml:"api_await_period"`

	// LogLevel selects the slog level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// MetricsEnabled turns on the prometheus-backed call metrics.
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// MetricsAddr is the listen address for the Prometheus scrape
	// endpoint. Empty keeps the endpoint off even when metrics are
	// being collected.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	on := true
	return &Config{
		WarningsOn:     &on,
		MaxAPICalls:    DefaultMaxAPICalls,
		APIAwaitPeriod: DefaultAPIAwaitPeriod,
	}
}

// Load reads the YAML file at path on top of the defaults and validates the
// result. Unknown keys are an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks option values and required fields.
func (c *Config) Validate() error {
	if c.TokenFile == "" {
		return fmt.Errorf("config: token_file is required")
	}
	if c.CredentialsFile == "" {
		return fmt.Errorf("config: credentials_file is required")
	}
	if c.Scopes == "" {
		return fmt.Errorf("config: scopes is required")
	}
	if c.MaxAPICalls <= 0 {
		return fmt.Errorf("config: max_api_calls must be a positive integer, got %d", c.MaxAPICalls)
	}
	if c.APIAwaitPeriod <= 0 {
		return fmt.Errorf("config: api_await_period must be a positive integer, got %d", c.APIAwaitPeriod)
	}
	return nil
}

// ScopeList splits the space-separated scopes string.
func (c *Config) ScopeList() []string {
	return strings.Fields(c.Scopes)
}

// ProtectedLabelList splits the comma-separated protected labels string,
// trimming whitespace and dropping empty entries.
func (c *Config) ProtectedLabelList() []string {
	var out []string
	for _, l := range strings.Split(c.ProtectedLabels, ",") {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

// Warnings reports whether warning output is enabled (default true).
func (c *Config) Warnings() bool {
	return c.WarningsOn == nil || *c.WarningsOn
}
