// Package main runs the catalog watcher: it polls shop catalog pages and emails
// an alert the first time a product matching the configured keywords appears.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/mail"
	"os"
	"os/signal"
	"syscall"

	"catalog-watcher/config"
	"catalog-watcher/email"
	"catalog-watcher/ledger"
	"catalog-watcher/metrics"
	"catalog-watcher/poll"
	"catalog-watcher/scraper"
	"catalog-watcher/server"

	"cloud.google.com/go/storage"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	cfg := config.FromEnv()

	logger := newLogger(cfg, os.Stdout)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Catalog watcher stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, w := range cfg.Warnings() {
		logger.Warn("Configuration incomplete", "detail", w)
	}

	sites, err := config.LoadSites(cfg.SitesPath, logger)
	if err != nil {
		return err
	}

	backend, closeBackend, err := newLedgerBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	notified, err := ledger.Load(ctx, backend, logger)
	if err != nil {
		return err
	}
	m := metrics.New()

	fetcher := scraper.NewFetcher(
		&http.Client{Timeout: cfg.FetchTimeout},
		logger,
		scraper.WithAttempts(uint(cfg.FetchAttempts)),
	)
	sender := email.New(newProvider(ctx, cfg, logger), logger, cfg.EmailTo)

	monitor := poll.New(sites, fetcher, scraper.NewExtractor(), sender, notified, m, logger)

	if cfg.HTTPAddr != "" {
		srv := server.New(&server.Config{
			Poller:   monitor,
			Ledger:   notified,
			Registry: m.Registry,
			Logger:   logger,
		})
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.HTTPAddr); err != nil {
				logger.Error("HTTP server failed", "error", err)
			}
		}()
	}

	logger.Info("Catalog watcher starting",
		"sites", len(sites),
		"check_interval", cfg.CheckInterval.String(),
		"email_provider", cfg.Provider,
		"ledger_entries", notified.Len())

	return monitor.Run(ctx, cfg.CheckInterval, cfg.RetryInterval)
}

// newLogger builds the JSON logger, writing to a rotating file when LOG_FILE is set.
func newLogger(cfg config.Config, stdout io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	out := stdout
	if cfg.LogFile != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		}
	}

	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))
}

// newLedgerBackend picks GCS when a bucket is configured, then Redis, then the local file.
func newLedgerBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (ledger.Backend, func(), error) {
	switch {
	case cfg.LedgerBucket != "":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("create storage client: %w", err)
		}
		logger.Info("Using Cloud Storage ledger", "bucket", cfg.LedgerBucket, "object", cfg.LedgerObject)
		return ledger.NewGCSBackend(client, cfg.LedgerBucket, cfg.LedgerObject, logger), func() {
			if err := client.Close(); err != nil {
				logger.Warn("Failed to close storage client", "error", err)
			}
		}, nil

	case cfg.RedisURL != "":
		backend, err := ledger.NewRedisBackend(cfg.RedisURL, ledger.DefaultRedisKey)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using Redis ledger", "key", ledger.DefaultRedisKey)
		return backend, func() {}, nil

	default:
		logger.Info("Using local file ledger", "path", cfg.LedgerPath)
		return ledger.NewFileBackend(cfg.LedgerPath), func() {}, nil
	}
}

// newProvider builds the configured email provider. Missing credentials or an
// unknown provider name still yield a provider; its sends fail with
// email.ErrNotConfigured.
func newProvider(ctx context.Context, cfg config.Config, logger *slog.Logger) email.Provider {
	switch cfg.Provider {
	case "resend":
		return email.NewResendProvider(cfg.ResendAPIKey, cfg.EmailFrom, logger)

	case "brevo":
		name, addr := splitAddress(cfg.EmailFrom)
		return email.NewBrevoProvider(cfg.BrevoAPIKey, addr, name, logger)

	case "gmail":
		svc, err := email.NewGmailService(ctx, cfg.GoogleCredentials)
		if err != nil && !errors.Is(err, email.ErrNotConfigured) {
			logger.Warn("Failed to initialize Gmail service", "error", err)
		}
		return email.NewGmailProvider(svc, logger)

	case "smtp":
		return email.NewSMTPProvider(email.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
		}, logger)

	case "mock":
		logger.Info("Mock email mode enabled")
		return email.NewMockProvider(logger)

	default:
		logger.Warn("Unknown email provider, alerts will fail", "provider", cfg.Provider)
		return email.UnconfiguredProvider{Name: cfg.Provider}
	}
}

// splitAddress splits "Name <addr>" into its parts, returning the input as the
// address when it does not parse.
func splitAddress(from string) (name, addr string) {
	parsed, err := mail.ParseAddress(from)
	if err != nil {
		return "", from
	}
	return parsed.Name, parsed.Address
}
