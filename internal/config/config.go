// Package config loads the application's YAML configuration.
package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/argo-portfolio/internal/ledger"
	"github.com/rxtech-lab/argo-portfolio/pkg/errors"
)

// Duration decodes YAML duration strings like "30s" or "5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid duration %q", raw)
	}

	*d = Duration(parsed)

	return nil
}

// APIConfig selects the venue endpoint and credential.
type APIConfig struct {
	// BaseURL overrides the production REST endpoint, mainly for tests.
	BaseURL string `yaml:"base_url" json:"base_url"`

	// AccessToken is the bearer token used for REST and streaming auth.
	AccessToken string `yaml:"access_token" json:"access_token" validate:"required"`
}

// LedgerConfig mirrors ledger.Config with YAML-friendly durations.
type LedgerConfig struct {
	SnapshotPath      string   `yaml:"snapshot_path" json:"snapshot_path"`
	MonitorInterval   Duration `yaml:"monitor_interval" json:"monitor_interval"`
	RefreshInterval   Duration `yaml:"refresh_interval" json:"refresh_interval"`
	CorrelationWindow Duration `yaml:"correlation_window" json:"correlation_window"`
	QuoteBuffer       int      `yaml:"quote_buffer" json:"quote_buffer"`
}

// ToLedger converts to the ledger's own config type.
func (c LedgerConfig) ToLedger() ledger.Config {
	return ledger.Config{
		SnapshotPath:      c.SnapshotPath,
		MonitorInterval:   time.Duration(c.MonitorInterval),
		RefreshInterval:   time.Duration(c.RefreshInterval),
		CorrelationWindow: time.Duration(c.CorrelationWindow),
		QuoteBuffer:       c.QuoteBuffer,
	}
}

// Config is the application configuration.
type Config struct {
	API APIConfig `yaml:"api" json:"api" validate:"required"`

	// Accounts are the account numbers to track.
	Accounts []string `yaml:"accounts" json:"accounts" validate:"required,min=1"`

	// Symbols are streamed for live price updates. Optional.
	Symbols []string `yaml:"symbols" json:"symbols"`

	Ledger LedgerConfig `yaml:"ledger" json:"ledger"`
}

// Load reads and validates a YAML configuration file.
func Load(path string) (Config, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config %s", path)
	}

	var cfg Config
	if err := yaml.Unmarshal(payload, &cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate validates the Config struct.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	return nil
}
