package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

const resendEndpoint = "https://api.resend.com/emails"

// ResendProvider sends emails via the Resend API.
type ResendProvider struct {
	client   *http.Client
	logger   *slog.Logger
	apiKey   string
	fromAddr string
	endpoint string
}

// NewResendProvider creates a new Resend email provider.
func NewResendProvider(apiKey, fromAddr string, logger *slog.Logger) *ResendProvider {
	return &ResendProvider{
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
		apiKey:   apiKey,
		fromAddr: fromAddr,
		endpoint: resendEndpoint,
	}
}

type resendSendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Send sends an email via the Resend API.
func (p *ResendProvider) Send(ctx context.Context, to, subject, htmlBody string) error {
	if p.apiKey == "" {
		return ErrNotConfigured
	}

	jsonData, err := json.Marshal(resendSendRequest{
		From:    p.fromAddr,
		To:      []string{sanitizeEmailHeader(to)},
		Subject: sanitizeEmailHeader(subject),
		HTML:    htmlBody,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	return retry.Do(
		func() error {
			p.logger.Info("Resend API request starting",
				"method", "POST",
				"endpoint", "emails",
				"to", to,
				"subject", subject)

			startTime := time.Now()
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(jsonData))
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			req.Header.Set("Authorization", "Bearer "+p.apiKey)
			req.Header.Set("Content-Type", "application/json")

			resp, err := p.client.Do(req)
			duration := time.Since(startTime)
			if err != nil {
				p.logger.Warn("Resend API request failed, will retry",
					"to", to,
					"duration_ms", duration.Milliseconds(),
					"error", err)
				return err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					p.logger.Warn("Failed to close response body", "error", closeErr)
				}
			}()

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024)) //nolint:errcheck // diagnostic only
				statusErr := fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
				if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
					p.logger.Error("Resend API rejected email", "status_code", resp.StatusCode, "to", to)
					return retry.Unrecoverable(statusErr)
				}
				p.logger.Warn("Resend API returned non-2xx status, will retry",
					"status_code", resp.StatusCode,
					"to", to)
				return statusErr
			}

			p.logger.Info("Resend API request completed",
				"endpoint", "emails",
				"to", to,
				"duration_ms", duration.Milliseconds(),
				"status", "success")

			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			p.logger.Info("Retrying Resend email send after error", "attempt", n, "error", err)
		}),
	)
}
