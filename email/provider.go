// Package email delivers product alerts through pluggable email providers.
package email

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"unicode/utf8"

	"catalog-watcher/pkg/watcher"
)

const maxSubjectTitle = 50

// ErrNotConfigured is returned by providers that are missing credentials or a recipient.
var ErrNotConfigured = errors.New("email: provider not configured")

// Provider defines the interface for email sending implementations.
type Provider interface {
	// Send sends an email with the given parameters.
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Sender sends product alerts using a pluggable provider.
type Sender struct {
	provider Provider
	logger   *slog.Logger
	now      func() time.Time
	to       string
}

// New creates a sender delivering every alert to the address to.
func New(provider Provider, logger *slog.Logger, to string) *Sender {
	return &Sender{
		provider: provider,
		logger:   logger,
		now:      time.Now,
		to:       to,
	}
}

// Notify sends an alert for product. It returns nil only when the provider accepted the message.
func (s *Sender) Notify(ctx context.Context, product watcher.Product, keywords []string) error {
	if s.to == "" {
		return ErrNotConfigured
	}

	subject := alertSubject(product.Title)
	body := s.formatAlertBody(product, keywords)

	s.logger.Info("Sending product alert",
		"to", s.to,
		"subject", subject,
		"title", product.Title)

	return s.provider.Send(ctx, s.to, subject, body)
}

func alertSubject(title string) string {
	if utf8.RuneCountInString(title) > maxSubjectTitle {
		title = string([]rune(title)[:maxSubjectTitle]) + "..."
	}
	return "Product available: " + title
}
