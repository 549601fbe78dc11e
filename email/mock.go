package email

import (
	"context"
	"fmt"
	"log/slog"
)

// MockProvider is a mock email provider for local development.
type MockProvider struct {
	logger *slog.Logger
}

// NewMockProvider creates a new mock email provider.
func NewMockProvider(logger *slog.Logger) *MockProvider {
	return &MockProvider{
		logger: logger,
	}
}

// Send logs the email instead of sending it.
func (m *MockProvider) Send(_ context.Context, to, subject, htmlBody string) error {
	m.logger.Info("MOCK EMAIL",
		"to", to,
		"subject", subject,
		"body_length", len(htmlBody))
	return nil
}

// UnconfiguredProvider stands in for an unrecognised provider name. Every send fails.
type UnconfiguredProvider struct {
	Name string
}

// Send always returns an error wrapping ErrNotConfigured.
func (p UnconfiguredProvider) Send(context.Context, string, string, string) error {
	return fmt.Errorf("%w: unknown provider %q", ErrNotConfigured, p.Name)
}
