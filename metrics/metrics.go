// Package metrics exposes Prometheus collectors for the catalog watcher.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Notification outcomes.
const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
)

// Metrics bundles Prometheus collectors for the monitor loop.
type Metrics struct {
	Registry           *prometheus.Registry
	CyclesTotal        prometheus.Counter
	CyclePanicsTotal   prometheus.Counter
	CycleDuration      prometheus.Histogram
	FetchErrorsTotal   *prometheus.CounterVec
	ProductsExtracted  *prometheus.CounterVec
	ExtractionErrors   *prometheus.CounterVec
	MatchesTotal       *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec
	LedgerEntries      prometheus.Gauge
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	cycles := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "watcher_cycles_total",
		Help: "Total monitoring cycles started.",
	})
	panics := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "watcher_cycle_panics_total",
		Help: "Total monitoring cycles aborted by a panic.",
	})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "watcher_cycle_duration_seconds",
		Help:    "Wall time spent in a monitoring cycle.",
		Buckets: prometheus.DefBuckets,
	})
	fetchErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "watcher_fetch_errors_total",
		Help: "Catalog page fetch failures by site and error type.",
	}, []string{"site", "error_type"})
	extracted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "watcher_products_extracted_total",
		Help: "Products successfully extracted from catalog pages.",
	}, []string{"site"})
	extractionErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "watcher_extraction_errors_total",
		Help: "Product records skipped because extraction failed.",
	}, []string{"site"})
	matches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "watcher_matches_total",
		Help: "Products whose title matched the site keywords.",
	}, []string{"site"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "watcher_notifications_total",
		Help: "Notification attempts by outcome.",
	}, []string{"outcome"})
	entries := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "watcher_ledger_entries",
		Help: "Products currently recorded as notified.",
	})

	registry.MustRegister(cycles, panics, duration, fetchErrors, extracted, extractionErrors, matches, notifications, entries)

	return &Metrics{
		Registry:           registry,
		CyclesTotal:        cycles,
		CyclePanicsTotal:   panics,
		CycleDuration:      duration,
		FetchErrorsTotal:   fetchErrors,
		ProductsExtracted:  extracted,
		ExtractionErrors:   extractionErrors,
		MatchesTotal:       matches,
		NotificationsTotal: notifications,
		LedgerEntries:      entries,
	}
}

// IncCycle increments the cycles counter.
func (m *Metrics) IncCycle() {
	if m == nil {
		return
	}
	m.CyclesTotal.Inc()
}

// IncPanic increments the aborted cycles counter.
func (m *Metrics) IncPanic() {
	if m == nil {
		return
	}
	m.CyclePanicsTotal.Inc()
}

// ObserveCycle records how long a cycle took.
func (m *Metrics) ObserveCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.CycleDuration.Observe(d.Seconds())
}

// IncFetchError increments the fetch error counter for a site.
func (m *Metrics) IncFetchError(site, errorType string) {
	if m == nil {
		return
	}
	m.FetchErrorsTotal.WithLabelValues(site, errorType).Inc()
}

// AddExtracted adds n extracted products for a site.
func (m *Metrics) AddExtracted(site string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ProductsExtracted.WithLabelValues(site).Add(float64(n))
}

// IncExtractionError increments the skipped record counter for a site.
func (m *Metrics) IncExtractionError(site string) {
	if m == nil {
		return
	}
	m.ExtractionErrors.WithLabelValues(site).Inc()
}

// IncMatch increments the keyword match counter for a site.
func (m *Metrics) IncMatch(site string) {
	if m == nil {
		return
	}
	m.MatchesTotal.WithLabelValues(site).Inc()
}

// IncNotification increments the notification counter for an outcome.
func (m *Metrics) IncNotification(outcome string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(outcome).Inc()
}

// SetLedgerEntries sets the ledger size gauge.
func (m *Metrics) SetLedgerEntries(n int) {
	if m == nil {
		return
	}
	m.LedgerEntries.Set(float64(n))
}
