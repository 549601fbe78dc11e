package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"catalog-watcher/pkg/watcher"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"EMAIL_TO", "EMAIL_FROM", "EMAIL_PROVIDER", "CHECK_INTERVAL", "RETRY_INTERVAL",
		"FETCH_TIMEOUT", "FETCH_ATTEMPTS", "SITES_CONFIG", "LEDGER_PATH", "LEDGER_OBJECT",
		"SMTP_PORT", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()

	if cfg.EmailFrom != DefaultEmailFrom {
		t.Errorf("EmailFrom = %q", cfg.EmailFrom)
	}
	if cfg.Provider != "resend" {
		t.Errorf("Provider = %q", cfg.Provider)
	}
	if cfg.CheckInterval != 300*time.Second || cfg.RetryInterval != 60*time.Second || cfg.FetchTimeout != 30*time.Second {
		t.Errorf("intervals = %v %v %v", cfg.CheckInterval, cfg.RetryInterval, cfg.FetchTimeout)
	}
	if cfg.FetchAttempts != 3 || cfg.SMTPPort != 587 {
		t.Errorf("FetchAttempts = %d, SMTPPort = %d", cfg.FetchAttempts, cfg.SMTPPort)
	}
	if cfg.SitesPath != "sites_config.json" || cfg.LedgerPath != "notified_products.json" {
		t.Errorf("paths = %q %q", cfg.SitesPath, cfg.LedgerPath)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestFromEnvNumbers(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "valid", value: "120", want: 120 * time.Second},
		{name: "padded", value: " 45 ", want: 45 * time.Second},
		{name: "not a number", value: "five minutes", want: DefaultCheckInterval},
		{name: "zero", value: "0", want: DefaultCheckInterval},
		{name: "negative", value: "-10", want: DefaultCheckInterval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CHECK_INTERVAL", tt.value)
			if got := FromEnv().CheckInterval; got != tt.want {
				t.Errorf("CheckInterval = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWarnings(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want []string
	}{
		{
			name: "complete resend",
			cfg:  Config{EmailTo: "a@example.com", Provider: "resend", ResendAPIKey: "re_x"},
		},
		{
			name: "missing everything",
			cfg:  Config{Provider: "resend"},
			want: []string{"EMAIL_TO", "RESEND_API_KEY"},
		},
		{
			name: "smtp without host",
			cfg:  Config{EmailTo: "a@example.com", Provider: "smtp"},
			want: []string{"SMTP_HOST"},
		},
		{
			name: "gmail without credentials",
			cfg:  Config{EmailTo: "a@example.com", Provider: "gmail"},
			want: []string{"GOOGLE_CREDENTIALS_JSON"},
		},
		{
			name: "mock",
			cfg:  Config{EmailTo: "a@example.com", Provider: "mock"},
		},
		{
			name: "unknown provider",
			cfg:  Config{EmailTo: "a@example.com", Provider: "pigeon"},
			want: []string{"EMAIL_PROVIDER"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.Warnings()
			if len(got) != len(tt.want) {
				t.Fatalf("Warnings() = %v, want %d entries", got, len(tt.want))
			}
			for i, fragment := range tt.want {
				if !strings.Contains(got[i], fragment) {
					t.Errorf("warning %d = %q, want mention of %s", i, got[i], fragment)
				}
			}
		})
	}
}

func TestLoadSitesCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites_config.json")

	sites, err := LoadSites(path, testLogger())
	if err != nil {
		t.Fatalf("LoadSites() error: %v", err)
	}
	if len(sites) != 1 || sites[0].Name != "Gameria - One Piece Card Game" {
		t.Fatalf("sites = %+v", sites)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("default file not written: %v", err)
	}
	if !strings.Contains(string(data), "current_page=1&lasIdP=18477") {
		t.Errorf("URL was escaped in written file:\n%s", data)
	}

	again, err := LoadSites(path, testLogger())
	if err != nil {
		t.Fatalf("LoadSites() reload error: %v", err)
	}
	if again[0].URL != sites[0].URL || !slices.Equal(again[0].Keywords, sites[0].Keywords) {
		t.Errorf("reloaded = %+v, want %+v", again[0], sites[0])
	}
}

func TestLoadSitesUnwritableDirectoryStillReturnsDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "sites_config.json")

	sites, err := LoadSites(path, testLogger())
	if err != nil {
		t.Fatalf("LoadSites() error: %v", err)
	}
	if len(sites) != 1 {
		t.Errorf("sites = %+v, want default", sites)
	}
}

func TestLoadSitesValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "not json", content: `{`, wantErr: "parse"},
		{name: "empty list", content: `[]`, wantErr: "no sites"},
		{name: "missing url", content: `[{"name":"A","keywords":"x"}]`, wantErr: "url is required"},
		{name: "relative url", content: `[{"url":"/cards","keywords":"x"}]`, wantErr: "absolute"},
		{name: "ftp url", content: `[{"url":"ftp://shop.example/","keywords":"x"}]`, wantErr: "absolute"},
		{name: "no keywords", content: `[{"url":"https://shop.example/"}]`, wantErr: "keywords must not be empty"},
		{name: "empty keyword list", content: `[{"url":"https://shop.example/","keywords":[]}]`, wantErr: "keywords must not be empty"},
		{name: "blank keyword", content: `[{"url":"https://shop.example/","keywords":["OP-17","  "]}]`, wantErr: "blank"},
		{name: "keywords wrong type", content: `[{"url":"https://shop.example/","keywords":7}]`, wantErr: "keywords must be a string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sites.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := LoadSites(path, testLogger())
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadSites() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadSitesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites.json")
	content := `[
  {"url": "https://shop.example/cards", "keywords": "OP-17"},
  {"name": "Exact", "url": "http://other.example/", "keywords": ["Booster Box"], "exact_match": true}
]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	sites, err := LoadSites(path, testLogger())
	if err != nil {
		t.Fatalf("LoadSites() error: %v", err)
	}

	want := []watcher.SiteConfig{
		{Name: "Site", URL: "https://shop.example/cards", Keywords: watcher.Keywords{"OP-17"}},
		{Name: "Exact", URL: "http://other.example/", Keywords: watcher.Keywords{"Booster Box"}, ExactMatch: true},
	}
	if len(sites) != len(want) {
		t.Fatalf("sites = %+v", sites)
	}
	for i := range want {
		if sites[i].Name != want[i].Name || sites[i].URL != want[i].URL ||
			sites[i].ExactMatch != want[i].ExactMatch || !slices.Equal(sites[i].Keywords, want[i].Keywords) {
			t.Errorf("site %d = %+v, want %+v", i, sites[i], want[i])
		}
	}
}

func TestLoadSitesWarnsWhenFileMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites_config.json")
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	if _, err := LoadSites(path, logger); err != nil {
		t.Fatalf("LoadSites() error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "missing") {
		t.Errorf("log output = %q, want a warning about the missing file", out)
	}
}

func TestValidateSitesNames(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty becomes default", in: "", want: watcher.DefaultSiteName},
		{name: "surrounding spaces kept", in: " Spaced ", want: " Spaced "},
		{name: "whitespace only kept", in: "   ", want: "   "},
		{name: "plain", in: "Gameria", want: "Gameria"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sites := []watcher.SiteConfig{{Name: tt.in, URL: "https://shop.example/", Keywords: watcher.Keywords{"OP-17"}}}
			if err := ValidateSites(sites); err != nil {
				t.Fatalf("ValidateSites() error: %v", err)
			}
			if sites[0].Name != tt.want {
				t.Errorf("Name = %q, want %q", sites[0].Name, tt.want)
			}
		})
	}
}
