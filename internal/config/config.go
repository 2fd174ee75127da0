// Package config provides environment-variable-first configuration loading
// with optional YAML file fallback for the Mailpit client.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultBaseURL     = "http://localhost:8025"
	defaultSMTPDSN     = "smtp://localhost:1025"
	defaultPageSize    = 50
	defaultTimeout     = 30 * time.Second
	defaultConcurrency = 1
)

// Config holds the complete client configuration.
type Config struct {
	Mailpit MailpitConfig `yaml:"mailpit"`
	Relay   RelayConfig   `yaml:"relay"`
	Logging LoggingConfig `yaml:"logging"`
}

// MailpitConfig holds the Mailpit server endpoints and client tuning.
type MailpitConfig struct {
	BaseURL     string        `yaml:"base_url"`
	SMTPDSN     string        `yaml:"smtp_dsn"`
	PageSize    int           `yaml:"page_size"`
	Timeout     time.Duration `yaml:"timeout"`
	Concurrency int           `yaml:"concurrency"`
}

// RelayConfig selects the outbound provider used to forward messages.
type RelayConfig struct {
	Provider string    `yaml:"provider"`
	SES      SESConfig `yaml:"ses"`
}

// SESConfig holds AWS SES configuration.
type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Sender          string `yaml:"sender"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load loads configuration from environment variables with sensible defaults.
// Environment variables always take precedence.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvVars()
	return cfg, cfg.validate()
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the
// specified file path does not exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables always override YAML values
	cfg.applyEnvVars()

	return cfg, cfg.validate()
}

// SESConfigured returns true if the SES region and sender are set.
func (c *Config) SESConfigured() bool {
	return c.Relay.SES.Region != "" && c.Relay.SES.Sender != ""
}

// SMTPAddr returns the host:port of the Mailpit SMTP listener parsed from
// the SMTP DSN.
func (c *Config) SMTPAddr() (string, error) {
	u, err := url.Parse(c.Mailpit.SMTPDSN)
	if err != nil {
		return "", fmt.Errorf("failed to parse SMTP DSN: %w", err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("SMTP DSN %q has no host", c.Mailpit.SMTPDSN)
	}
	if u.Port() == "" {
		return "", fmt.Errorf("SMTP DSN %q has no port", c.Mailpit.SMTPDSN)
	}
	return u.Host, nil
}

// SMTPCredentials returns the user info embedded in the SMTP DSN, if any.
func (c *Config) SMTPCredentials() (username, password string, ok bool) {
	u, err := url.Parse(c.Mailpit.SMTPDSN)
	if err != nil || u.User == nil {
		return "", "", false
	}
	password, _ = u.User.Password()
	return u.User.Username(), password, u.User.Username() != ""
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.Mailpit.BaseURL = defaultBaseURL
	c.Mailpit.SMTPDSN = defaultSMTPDSN
	c.Mailpit.PageSize = defaultPageSize
	c.Mailpit.Timeout = defaultTimeout
	c.Mailpit.Concurrency = defaultConcurrency
	c.Logging.Level = "info"
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() {
	if v := os.Getenv("MAILPIT_URL"); v != "" {
		c.Mailpit.BaseURL = v
	}
	if v := os.Getenv("MAILPIT_SMTP_DSN"); v != "" {
		c.Mailpit.SMTPDSN = v
	}
	if v := os.Getenv("MAILPIT_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Mailpit.PageSize = n
		}
	}
	if v := os.Getenv("MAILPIT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Mailpit.Timeout = d
		}
	}
	if v := os.Getenv("MAILPIT_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Mailpit.Concurrency = n
		}
	}

	if v := os.Getenv("RELAY_PROVIDER"); v != "" {
		c.Relay.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("SES_REGION"); v != "" {
		c.Relay.SES.Region = v
	}
	if v := os.Getenv("SES_ACCESS_KEY_ID"); v != "" {
		c.Relay.SES.AccessKeyID = v
	}
	if v := os.Getenv("SES_SECRET_ACCESS_KEY"); v != "" {
		c.Relay.SES.SecretAccessKey = v
	}
	if v := os.Getenv("SES_SENDER"); v != "" {
		c.Relay.SES.Sender = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

// validate rejects values the client cannot work with.
func (c *Config) validate() error {
	if c.Mailpit.BaseURL == "" {
		return fmt.Errorf("mailpit base URL is required")
	}
	if c.Mailpit.PageSize <= 0 {
		return fmt.Errorf("page size must be positive, got %d", c.Mailpit.PageSize)
	}
	if c.Mailpit.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Mailpit.Concurrency)
	}
	return nil
}
