// Package config loads runtime settings from the environment and the site list from disk.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults applied when the environment leaves a setting empty or invalid.
const (
	DefaultEmailFrom     = "Monitor <onboarding@resend.dev>"
	DefaultProvider      = "resend"
	DefaultSitesPath     = "sites_config.json"
	DefaultLedgerPath    = "notified_products.json"
	DefaultLedgerObject  = "notified_products.json"
	DefaultCheckInterval = 300 * time.Second
	DefaultRetryInterval = 60 * time.Second
	DefaultFetchTimeout  = 30 * time.Second
	DefaultFetchAttempts = 3
	DefaultSMTPPort      = 587
)

// Config holds the process configuration read from the environment.
type Config struct {
	EmailTo           string
	EmailFrom         string
	Provider          string // resend, brevo, gmail, smtp or mock
	ResendAPIKey      string
	BrevoAPIKey       string
	GoogleCredentials string // GOOGLE_CREDENTIALS_JSON contents
	SMTPHost          string
	SMTPUsername      string
	SMTPPassword      string
	SitesPath         string
	LedgerPath        string
	LedgerBucket      string // empty keeps the ledger on local disk
	LedgerObject      string
	RedisURL          string
	HTTPAddr          string // empty disables the ops server
	LogLevel          string
	LogFile           string // empty logs to stdout
	CheckInterval     time.Duration
	RetryInterval     time.Duration
	FetchTimeout      time.Duration
	FetchAttempts     int
	SMTPPort          int
}

// FromEnv reads the configuration. Invalid numbers fall back to their defaults.
func FromEnv() Config {
	return Config{
		EmailTo:           strings.TrimSpace(os.Getenv("EMAIL_TO")),
		EmailFrom:         envOr("EMAIL_FROM", DefaultEmailFrom),
		Provider:          strings.ToLower(envOr("EMAIL_PROVIDER", DefaultProvider)),
		ResendAPIKey:      os.Getenv("RESEND_API_KEY"),
		BrevoAPIKey:       os.Getenv("BREVO_API_KEY"),
		GoogleCredentials: os.Getenv("GOOGLE_CREDENTIALS_JSON"),
		SMTPHost:          os.Getenv("SMTP_HOST"),
		SMTPUsername:      os.Getenv("SMTP_USERNAME"),
		SMTPPassword:      os.Getenv("SMTP_PASSWORD"),
		SitesPath:         envOr("SITES_CONFIG", DefaultSitesPath),
		LedgerPath:        envOr("LEDGER_PATH", DefaultLedgerPath),
		LedgerBucket:      os.Getenv("LEDGER_BUCKET"),
		LedgerObject:      envOr("LEDGER_OBJECT", DefaultLedgerObject),
		RedisURL:          os.Getenv("REDIS_URL"),
		HTTPAddr:          os.Getenv("HTTP_ADDR"),
		LogLevel:          envOr("LOG_LEVEL", "info"),
		LogFile:           os.Getenv("LOG_FILE"),
		CheckInterval:     seconds("CHECK_INTERVAL", DefaultCheckInterval),
		RetryInterval:     seconds("RETRY_INTERVAL", DefaultRetryInterval),
		FetchTimeout:      seconds("FETCH_TIMEOUT", DefaultFetchTimeout),
		FetchAttempts:     positiveInt("FETCH_ATTEMPTS", DefaultFetchAttempts),
		SMTPPort:          positiveInt("SMTP_PORT", DefaultSMTPPort),
	}
}

// Warnings lists configuration gaps that disable notifications without stopping the monitor.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.EmailTo == "" {
		warnings = append(warnings, "EMAIL_TO is not set; alerts cannot be delivered")
	}

	switch c.Provider {
	case "resend":
		if c.ResendAPIKey == "" {
			warnings = append(warnings, "RESEND_API_KEY is not set; the resend provider will reject every alert")
		}
	case "brevo":
		if c.BrevoAPIKey == "" {
			warnings = append(warnings, "BREVO_API_KEY is not set; the brevo provider will reject every alert")
		}
	case "gmail":
		if c.GoogleCredentials == "" {
			warnings = append(warnings, "GOOGLE_CREDENTIALS_JSON is not set; the gmail provider will reject every alert")
		}
	case "smtp":
		if c.SMTPHost == "" {
			warnings = append(warnings, "SMTP_HOST is not set; the smtp provider will reject every alert")
		}
	case "mock":
	default:
		warnings = append(warnings, fmt.Sprintf("unknown EMAIL_PROVIDER %q; alerts will fail to send", c.Provider))
	}

	return warnings
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func seconds(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}

func positiveInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
