package email

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// SMTPConfig holds SMTP relay settings.
type SMTPConfig struct {
	Host     string
	Username string
	Password string
	From     string
	Port     int
}

// SMTPProvider sends emails through an SMTP relay using STARTTLS when offered.
type SMTPProvider struct {
	logger   *slog.Logger
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	cfg      SMTPConfig
}

// NewSMTPProvider creates a new SMTP email provider.
func NewSMTPProvider(cfg SMTPConfig, logger *slog.Logger) *SMTPProvider {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPProvider{
		logger:   logger,
		sendMail: smtp.SendMail,
		cfg:      cfg,
	}
}

// Send sends an email via SMTP. net/smtp has no context support, so ctx is only
// checked before dialing.
func (p *SMTPProvider) Send(ctx context.Context, to, subject, htmlBody string) error {
	if p.cfg.Host == "" || p.cfg.From == "" {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if p.cfg.Username != "" {
		auth = smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)
	}

	addr := net.JoinHostPort(p.cfg.Host, strconv.Itoa(p.cfg.Port))
	msg := buildSMTPMessage(p.cfg.From, to, subject, htmlBody)

	p.logger.Info("SMTP send starting", "addr", addr, "to", to, "subject", subject)
	startTime := time.Now()
	if err := p.sendMail(addr, auth, addressOnly(p.cfg.From), []string{sanitizeEmailHeader(to)}, msg); err != nil {
		p.logger.Warn("SMTP send failed",
			"addr", addr,
			"to", to,
			"duration_ms", time.Since(startTime).Milliseconds(),
			"error", err)
		return fmt.Errorf("smtp send: %w", err)
	}

	p.logger.Info("SMTP send completed", "addr", addr, "to", to, "duration_ms", time.Since(startTime).Milliseconds())
	return nil
}

func buildSMTPMessage(from, to, subject, htmlBody string) []byte {
	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", sanitizeEmailHeader(from)))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", sanitizeEmailHeader(to)))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", sanitizeEmailHeader(subject)))
	msg.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)
	return []byte(msg.String())
}

// addressOnly extracts the bare address from "Name <addr>".
func addressOnly(from string) string {
	if start := strings.LastIndex(from, "<"); start >= 0 {
		if end := strings.LastIndex(from, ">"); end > start {
			return from[start+1 : end]
		}
	}
	return strings.TrimSpace(from)
}
