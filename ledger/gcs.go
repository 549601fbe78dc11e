package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"
)

// GCSBackend keeps the ledger as a single Cloud Storage object.
type GCSBackend struct {
	client *storage.Client
	logger *slog.Logger
	bucket string
	object string
}

// NewGCSBackend creates a backend for bucket/object.
func NewGCSBackend(client *storage.Client, bucket, object string, logger *slog.Logger) *GCSBackend {
	return &GCSBackend{
		client: client,
		logger: logger,
		bucket: bucket,
		object: object,
	}
}

// Read downloads the ledger object.
func (g *GCSBackend) Read(ctx context.Context) ([]byte, error) {
	var data []byte
	notFound := false
	err := retry.Do(
		func() error {
			r, err := g.client.Bucket(g.bucket).Object(g.object).NewReader(ctx)
			if err != nil {
				// Don't retry on "not found" errors
				if errors.Is(err, storage.ErrObjectNotExist) {
					notFound = true
					return retry.Unrecoverable(err)
				}
				return fmt.Errorf("open storage reader: %w", err)
			}
			defer func() {
				if closeErr := r.Close(); closeErr != nil {
					g.logger.Warn("Failed to close storage reader", "error", closeErr)
				}
			}()

			data, err = io.ReadAll(r)
			if err != nil {
				return fmt.Errorf("read from storage: %w", err)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			g.logger.Info("Retrying ledger load after error", "attempt", n, "object", g.object, "error", err)
		}),
	)
	if notFound {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("load after retries: %w", err)
	}
	return data, nil
}

// Write uploads the ledger object, replacing any previous version.
func (g *GCSBackend) Write(ctx context.Context, data []byte) error {
	err := retry.Do(
		func() error {
			w := g.client.Bucket(g.bucket).Object(g.object).NewWriter(ctx)
			w.ContentType = "application/json"
			if _, err := w.Write(data); err != nil {
				if closeErr := w.Close(); closeErr != nil {
					g.logger.Warn("Failed to close writer after error", "error", closeErr)
				}
				return fmt.Errorf("write to storage: %w", err)
			}
			if err := w.Close(); err != nil {
				return fmt.Errorf("close storage writer: %w", err)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			g.logger.Info("Retrying ledger save after error", "attempt", n, "object", g.object, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("save after retries: %w", err)
	}

	g.logger.Info("Ledger saved", "bucket", g.bucket, "object", g.object, "bytes", len(data))
	return nil
}
