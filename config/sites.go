package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"catalog-watcher/pkg/watcher"
)

// DefaultSites is written to the site file when none exists.
func DefaultSites() []watcher.SiteConfig {
	return []watcher.SiteConfig{{
		Name:     "Gameria - One Piece Card Game",
		URL:      "https://gameria.es/4-juegos-de-cartas/s-6/juegos_de_cartas-one_piece_card_game?current_page=1&lasIdP=18477",
		Keywords: watcher.Keywords{"One Piece Card Game", "OP-17"},
	}}
}

// LoadSites reads the site list at path. A missing file is replaced by the
// default list, which is written back so it can be edited; a failed write is
// logged and the default is still returned.
func LoadSites(path string, logger *slog.Logger) ([]watcher.SiteConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		sites := DefaultSites()
		if werr := writeSites(path, sites); werr != nil {
			logger.Warn("Site configuration missing and default could not be written", "path", path, "error", werr)
		} else {
			logger.Warn("Site configuration missing, wrote default", "path", path)
		}
		return sites, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read site configuration: %w", err)
	}

	var sites []watcher.SiteConfig
	if err := json.Unmarshal(data, &sites); err != nil {
		return nil, fmt.Errorf("parse site configuration %s: %w", path, err)
	}
	if err := ValidateSites(sites); err != nil {
		return nil, fmt.Errorf("invalid site configuration %s: %w", path, err)
	}

	logger.Info("Site configuration loaded", "path", path, "sites", len(sites))
	return sites, nil
}

// ValidateSites checks every entry and fills in default names.
func ValidateSites(sites []watcher.SiteConfig) error {
	if len(sites) == 0 {
		return errors.New("no sites configured")
	}
	var errs []error
	for i := range sites {
		site := &sites[i]
		if site.Name == "" {
			site.Name = watcher.DefaultSiteName
		}
		if err := validateSite(site); err != nil {
			errs = append(errs, fmt.Errorf("site %d (%s): %w", i, site.Name, err))
		}
	}
	return errors.Join(errs...)
}

func validateSite(site *watcher.SiteConfig) error {
	if strings.TrimSpace(site.URL) == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(site.URL)
	if err != nil {
		return fmt.Errorf("url: %w", err)
	}
	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url %q must be an absolute http or https URL", site.URL)
	}
	if len(site.Keywords) == 0 {
		return errors.New("keywords must not be empty")
	}
	for _, kw := range site.Keywords {
		if strings.TrimSpace(kw) == "" {
			return errors.New("keywords must not be blank")
		}
	}
	return nil
}

func writeSites(path string, sites []watcher.SiteConfig) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sites); err != nil {
		return fmt.Errorf("marshal sites: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
