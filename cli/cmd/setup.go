package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/copperline-io/ferry/adapter"
	"github.com/copperline-io/ferry/adapter/redis"
	"github.com/copperline-io/ferry/adapter/webhook"
	"github.com/copperline-io/ferry/archive"
	"github.com/copperline-io/ferry/cli/config"
	"github.com/copperline-io/ferry/engine"
	"github.com/copperline-io/ferry/store"
)

// Exit codes.
const (
	exitSuccess = 0
	exitUsage   = 1
	exitAuth    = 2
	exitIO      = 3
)

// exitCodeFor maps an error to the ferry exit code.
func exitCodeFor(err error) int {
	if err == nil {
		return exitSuccess
	}
	var configErr *engine.ConfigError
	var mappingErr *engine.MappingError
	switch {
	case errors.As(err, &configErr), errors.As(err, &mappingErr):
		return exitUsage
	case errors.Is(err, store.ErrAuth):
		return exitAuth
	case errors.Is(err, store.ErrQuery), errors.Is(err, store.ErrNotFound):
		return exitUsage
	default:
		return exitIO
	}
}

// loadConfig loads ferry.yaml from the --config path, falling back to
// built-in defaults when the file does not exist.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(c.String("config"))
	if err != nil {
		return nil, cli.Exit(err.Error(), exitUsage)
	}
	return cfg, nil
}

// buildStore builds the session provider and REST client from config
// and SALESFORCE_* environment variables.
func buildStore(cfg *config.Config) (*store.RESTClient, *store.OAuthSessionProvider, error) {
	creds, err := store.CredentialsFromEnv()
	if err != nil {
		return nil, nil, err
	}
	if cfg.API.LoginURL != "" && os.Getenv("SALESFORCE_LOGIN_URL") == "" {
		creds.LoginURL = cfg.API.LoginURL
	}

	sessions := store.NewOAuthSessionProvider(creds, cfg.API.Timeout.Duration)
	client := store.NewRESTClient(sessions, store.RESTConfig{
		APIVersion: cfg.API.Version,
		Timeout:    cfg.API.Timeout.Duration,
	})
	return client, sessions, nil
}

// buildAdapter builds the completion-event adapter, or nil when none
// is configured.
func buildAdapter(cfg *config.Config) (adapter.Adapter, error) {
	retries := 0
	if cfg.Adapter.Retries != nil {
		retries = *cfg.Adapter.Retries
	}

	switch cfg.Adapter.Type {
	case "":
		return nil, nil
	case "webhook":
		return webhook.New(webhook.Config{
			URL:     cfg.Adapter.URL,
			Headers: cfg.Adapter.Headers,
			Timeout: cfg.Adapter.Timeout.Duration,
			Retries: retries,
		})
	case "redis":
		return redis.New(redis.Config{
			URL:     cfg.Adapter.URL,
			Channel: cfg.Adapter.Channel,
			Timeout: cfg.Adapter.Timeout.Duration,
			Retries: retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter type: %s", cfg.Adapter.Type)
	}
}

// buildArchiver builds the error-file archiver from storage config.
func buildArchiver(ctx context.Context, cfg *config.Config) (archive.Archiver, error) {
	switch cfg.Storage.Backend {
	case "", "none":
		return archive.Noop{}, nil
	case "fs":
		if cfg.Storage.Path == "" {
			return nil, fmt.Errorf("storage.path required for fs backend")
		}
		return archive.NewFS(cfg.Storage.Path), nil
	case "s3":
		bucket, prefix := archive.ParseS3Path(cfg.Storage.Path)
		return archive.NewS3(ctx, archive.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       cfg.Storage.Region,
			Endpoint:     cfg.Storage.Endpoint,
			UsePathStyle: cfg.Storage.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return ctx, cancel
}

// isTTY returns true if the file is a terminal.
func isTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
