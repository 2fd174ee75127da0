package mailpit

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/shineum/mailpit-go/internal/config"
	"github.com/shineum/mailpit-go/internal/logging"
	"github.com/shineum/mailpit-go/relay"
	"github.com/shineum/mailpit-go/relay/ses"
	"github.com/shineum/mailpit-go/relay/stdout"
)

// NewFromEnv creates a Client configured from MAILPIT_*, RELAY_PROVIDER,
// SES_* and LOG_LEVEL environment variables. Options are applied after the
// configuration and take precedence over it.
func NewFromEnv(ctx context.Context, opts ...Option) (*Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return newFromConfig(ctx, cfg, opts...)
}

// NewFromFile is like NewFromEnv but reads a YAML file first. Environment
// variables override values from the file.
func NewFromFile(ctx context.Context, path string, opts ...Option) (*Client, error) {
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return newFromConfig(ctx, cfg, opts...)
}

func newFromConfig(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	logger := logging.New(cfg.Logging.Level, os.Stderr)

	prov, err := selectRelay(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	base := []Option{
		WithHTTPClient(&http.Client{Timeout: cfg.Mailpit.Timeout}),
		WithLogger(logger),
		WithPageSize(cfg.Mailpit.PageSize),
		WithConcurrency(cfg.Mailpit.Concurrency),
		WithRelay(prov),
	}
	return New(cfg.Mailpit.BaseURL, append(base, opts...)...), nil
}

// selectRelay chooses the forwarding backend. An explicit RELAY_PROVIDER
// wins; otherwise SES is used when configured and stdout as the fallback.
func selectRelay(ctx context.Context, cfg *config.Config, logger *slog.Logger) (relay.Provider, error) {
	switch cfg.Relay.Provider {
	case "ses":
		if !cfg.SESConfigured() {
			return nil, fmt.Errorf("SES relay selected but SES_REGION and SES_SENDER are required")
		}
		return newSESRelay(ctx, cfg, logger)

	case "stdout":
		logger.Debug("using stdout relay")
		return stdout.New(), nil

	case "":
		if cfg.SESConfigured() {
			return newSESRelay(ctx, cfg, logger)
		}
		logger.Debug("no relay configured, using stdout relay")
		return stdout.New(), nil

	default:
		return nil, fmt.Errorf("unknown relay provider %q", cfg.Relay.Provider)
	}
}

func newSESRelay(ctx context.Context, cfg *config.Config, logger *slog.Logger) (relay.Provider, error) {
	logger.Debug("using AWS SES relay",
		"region", cfg.Relay.SES.Region,
		"sender", cfg.Relay.SES.Sender,
	)
	p, err := ses.New(ctx, ses.ProviderConfig{
		Region:          cfg.Relay.SES.Region,
		AccessKeyID:     cfg.Relay.SES.AccessKeyID,
		SecretAccessKey: cfg.Relay.SES.SecretAccessKey,
		Sender:          cfg.Relay.SES.Sender,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create SES relay: %w", err)
	}
	return p, nil
}
