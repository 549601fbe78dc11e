package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"catalog-watcher/config"
	"catalog-watcher/email"
	"catalog-watcher/ledger"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSplitAddress(t *testing.T) {
	tests := []struct {
		in       string
		wantName string
		wantAddr string
	}{
		{in: "Monitor <onboarding@resend.dev>", wantName: "Monitor", wantAddr: "onboarding@resend.dev"},
		{in: "alerts@example.com", wantAddr: "alerts@example.com"},
		{in: "not an address", wantAddr: "not an address"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			name, addr := splitAddress(tt.in)
			if name != tt.wantName || addr != tt.wantAddr {
				t.Errorf("splitAddress(%q) = (%q, %q), want (%q, %q)", tt.in, name, addr, tt.wantName, tt.wantAddr)
			}
		})
	}
}

func TestNewProvider(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		provider string
		check    func(email.Provider) bool
	}{
		{provider: "resend", check: func(p email.Provider) bool { _, ok := p.(*email.ResendProvider); return ok }},
		{provider: "brevo", check: func(p email.Provider) bool { _, ok := p.(*email.BrevoProvider); return ok }},
		{provider: "gmail", check: func(p email.Provider) bool { _, ok := p.(*email.GmailProvider); return ok }},
		{provider: "smtp", check: func(p email.Provider) bool { _, ok := p.(*email.SMTPProvider); return ok }},
		{provider: "mock", check: func(p email.Provider) bool { _, ok := p.(*email.MockProvider); return ok }},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p := newProvider(ctx, config.Config{Provider: tt.provider, EmailFrom: config.DefaultEmailFrom}, quietLogger())
			if !tt.check(p) {
				t.Errorf("newProvider(%q) = %T", tt.provider, p)
			}
		})
	}
}

func TestNewLedgerBackendDefaultsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notified_products.json")
	backend, closeFn, err := newLedgerBackend(context.Background(), config.Config{LedgerPath: path}, quietLogger())
	if err != nil {
		t.Fatalf("newLedgerBackend() error: %v", err)
	}
	defer closeFn()

	if _, ok := backend.(*ledger.FileBackend); !ok {
		t.Fatalf("backend = %T, want *ledger.FileBackend", backend)
	}
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.Config{LogLevel: "warn"}, &buf)

	logger.Info("Hidden")
	logger.Warn("Shown", "site", "Gameria")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "Shown" || entry["site"] != "Gameria" {
		t.Errorf("entry = %v", entry)
	}
}

func TestNewLoggerInvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	newLogger(config.Config{LogLevel: "loud"}, &buf).Info("Visible")
	if buf.Len() == 0 {
		t.Error("info message dropped with invalid level")
	}
}

func TestNewProviderUnknownNameFailsSends(t *testing.T) {
	ctx := context.Background()
	p := newProvider(ctx, config.Config{Provider: "sendgrid", EmailFrom: config.DefaultEmailFrom}, quietLogger())

	if _, ok := p.(*email.MockProvider); ok {
		t.Fatal("unknown provider fell back to the mock provider")
	}
	if err := p.Send(ctx, "alerts@example.com", "s", "b"); !errors.Is(err, email.ErrNotConfigured) {
		t.Errorf("Send() error = %v, want ErrNotConfigured", err)
	}
}
