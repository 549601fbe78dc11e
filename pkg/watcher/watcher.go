// Package watcher contains the core domain types for the catalog watcher service.
package watcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DefaultSiteName is used when a site configuration omits its name.
const DefaultSiteName = "Site"

// Keywords is a match rule. In JSON it may be a single string or an array of strings.
type Keywords []string

// MarshalJSON writes a one-element rule as a bare string.
func (k Keywords) MarshalJSON() ([]byte, error) {
	if len(k) == 1 {
		return json.Marshal(k[0])
	}
	return json.Marshal([]string(k))
}

// UnmarshalJSON accepts either "kw" or ["kw1", "kw2"].
func (k *Keywords) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*k = Keywords{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return errors.New("keywords must be a string or an array of strings")
	}
	*k = Keywords(list)
	return nil
}

// SiteConfig describes one monitored catalog page.
type SiteConfig struct {
	Name       string   `json:"name"`
	URL        string   `json:"url"`
	Keywords   Keywords `json:"keywords"`
	ExactMatch bool     `json:"exact_match,omitempty"`
}

// Availability is the stock state reported by a listing.
type Availability string

const (
	Available  Availability = "available"
	OutOfStock Availability = "out_of_stock"
)

// Label returns a human readable availability.
func (a Availability) Label() string {
	if a == OutOfStock {
		return "Out of stock"
	}
	return "Available"
}

// Product is a single listing extracted from a catalog page during one poll.
type Product struct {
	Title        string
	Link         string
	Price        string
	Availability Availability
}

// ProductKey identifies a product for deduplication.
type ProductKey string

// Key derives the ledger key for a product title seen on a site.
// The encoding is a flat "site_title" string, so a site name containing "_" can in
// principle collide with another site/title pair. Existing ledger files use this
// format, so the collision risk is accepted.
func Key(siteName, title string) ProductKey {
	return ProductKey(siteName + "_" + title)
}

// NotificationRecord is persisted once an alert for a product was delivered.
type NotificationRecord struct {
	NotifiedAt time.Time `json:"notified_at"`
	Title      string    `json:"title"`
	Link       string    `json:"link"`
}

// Layouts accepted for notified_at. Ledgers written by earlier versions of the
// monitor carry a local timestamp without zone, e.g. "2025-11-02T10:15:30.123456".
var notifiedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON decodes a record, accepting both RFC 3339 and zone-less
// notified_at values. Zone-less values are read as local time.
func (r *NotificationRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		NotifiedAt *string `json:"notified_at"`
		Title      string  `json:"title"`
		Link       string  `json:"link"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var at time.Time
	if raw.NotifiedAt != nil && *raw.NotifiedAt != "" {
		var err error
		if at, err = parseNotifiedAt(*raw.NotifiedAt); err != nil {
			return err
		}
	}

	*r = NotificationRecord{NotifiedAt: at, Title: raw.Title, Link: raw.Link}
	return nil
}

func parseNotifiedAt(s string) (time.Time, error) {
	for _, layout := range notifiedAtLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("notified_at %q is not a recognised timestamp", s)
}
