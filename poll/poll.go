// Package poll runs the catalog monitoring cycle: fetch, extract, match, deduplicate, notify.
package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"catalog-watcher/ledger"
	"catalog-watcher/match"
	"catalog-watcher/metrics"
	"catalog-watcher/pkg/watcher"
	"catalog-watcher/scraper"

	"github.com/google/uuid"
)

// DefaultFallback is how long Run waits after a cycle aborted by a panic.
const DefaultFallback = 60 * time.Second

// ErrCycleRunning is returned by TryCheckAll when another cycle holds the monitor.
var ErrCycleRunning = errors.New("poll: cycle already running")

// Fetcher retrieves a catalog page body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Extractor turns a catalog page into per-record results.
type Extractor interface {
	Extract(pageURL string, body []byte) ([]scraper.Result, error)
}

// Notifier delivers an alert for a matching product.
type Notifier interface {
	Notify(ctx context.Context, product watcher.Product, keywords []string) error
}

// Monitor handles catalog polling logic.
type Monitor struct {
	fetcher   Fetcher
	extractor Extractor
	notifier  Notifier
	ledger    *ledger.Ledger
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
	sites     []watcher.SiteConfig
	cycleMu   sync.Mutex
}

// New creates a new poll monitor. m may be nil.
func New(sites []watcher.SiteConfig, fetcher Fetcher, extractor Extractor, notifier Notifier,
	l *ledger.Ledger, m *metrics.Metrics, logger *slog.Logger,
) *Monitor {
	m.SetLedgerEntries(l.Len())
	return &Monitor{
		fetcher:   fetcher,
		extractor: extractor,
		notifier:  notifier,
		ledger:    l,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
		sites:     sites,
	}
}

// Sites returns the monitored site configurations.
func (m *Monitor) Sites() []watcher.SiteConfig {
	return m.sites
}

// CheckAll runs one monitoring cycle over every site in configuration order,
// waiting for any cycle already in progress. Site and product failures are
// logged and never abort the cycle; only cancellation is returned.
func (m *Monitor) CheckAll(ctx context.Context) error {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()
	return m.checkAll(ctx)
}

// TryCheckAll runs a cycle unless one is already running, in which case it
// returns ErrCycleRunning immediately.
func (m *Monitor) TryCheckAll(ctx context.Context) error {
	if !m.cycleMu.TryLock() {
		return ErrCycleRunning
	}
	defer m.cycleMu.Unlock()
	return m.checkAll(ctx)
}

func (m *Monitor) checkAll(ctx context.Context) error {
	logger := m.logger.With("cycle_id", uuid.NewString())
	start := time.Now()
	m.metrics.IncCycle()

	logger.Info("Checking sites", "count", len(m.sites), "timestamp", start.Format(time.RFC3339))

	var notified int
	for i := range m.sites {
		select {
		case <-ctx.Done():
			logger.Info("Context cancelled, stopping poll check", "error", ctx.Err())
			return ctx.Err()
		default:
		}

		n, err := m.checkSite(ctx, logger, m.sites[i])
		notified += n
		if err != nil {
			logger.Warn("Site check failed", "site", m.sites[i].Name, "url", m.sites[i].URL, "error", err)
		}
	}

	elapsed := time.Since(start)
	m.metrics.ObserveCycle(elapsed)
	logger.Info("Site check completed",
		"sites", len(m.sites),
		"notified", notified,
		"ledger_entries", m.ledger.Len(),
		"duration_ms", elapsed.Milliseconds())
	return ctx.Err()
}

// checkSite processes one site and returns how many products were newly notified.
func (m *Monitor) checkSite(ctx context.Context, logger *slog.Logger, site watcher.SiteConfig) (int, error) {
	logger = logger.With("site", site.Name)
	logger.Info("Starting site check", "url", site.URL)

	body, err := m.fetcher.Fetch(ctx, site.URL)
	if err != nil {
		m.metrics.IncFetchError(site.Name, scraper.ErrorType(err))
		return 0, fmt.Errorf("fetch catalog page: %w", err)
	}

	results, err := m.extractor.Extract(site.URL, body)
	if err != nil {
		m.metrics.IncExtractionError(site.Name)
		return 0, fmt.Errorf("extract products: %w", err)
	}

	var extracted, notified int
	for _, res := range results {
		if res.Err != nil {
			m.metrics.IncExtractionError(site.Name)
			logger.Warn("Skipping product record", "index", res.Index, "error", res.Err)
			continue
		}
		extracted++

		product := res.Product
		if !match.Matches(product.Title, site.Keywords, site.ExactMatch) {
			continue
		}
		m.metrics.IncMatch(site.Name)

		key := watcher.Key(site.Name, product.Title)
		if m.ledger.Contains(key) {
			logger.Debug("Product already notified", "title", product.Title)
			continue
		}

		if ctx.Err() != nil {
			break
		}
		if m.notifyProduct(ctx, logger, site, key, product) {
			notified++
		}
	}

	m.metrics.AddExtracted(site.Name, extracted)
	logger.Info("Products extracted", "count", extracted, "records", len(results), "notified", notified)
	return notified, nil
}

// notifyProduct alerts on a new product and records it. A product is recorded
// only after the notifier accepted it.
func (m *Monitor) notifyProduct(ctx context.Context, logger *slog.Logger, site watcher.SiteConfig, key watcher.ProductKey, product watcher.Product) bool {
	logger.Info("New product found",
		"title", product.Title,
		"price", product.Price,
		"availability", string(product.Availability),
		"link", product.Link)

	if err := m.notifier.Notify(ctx, product, site.Keywords); err != nil {
		m.metrics.IncNotification(metrics.OutcomeFailed)
		logger.Warn("Notification failed, product will be retried next cycle", "title", product.Title, "error", err)
		return false
	}
	m.metrics.IncNotification(metrics.OutcomeSent)

	rec := watcher.NotificationRecord{
		NotifiedAt: m.now(),
		Title:      product.Title,
		Link:       product.Link,
	}
	if err := m.ledger.Record(ctx, key, rec); err != nil {
		logger.Error("Failed to record notified product", "key", string(key), "error", err)
		return false
	}
	m.metrics.SetLedgerEntries(m.ledger.Len())
	return true
}

// Run repeats monitoring cycles until ctx is cancelled. A cycle that panics is
// logged and followed by a fallback sleep instead of the normal interval.
func (m *Monitor) Run(ctx context.Context, interval, fallback time.Duration) error {
	if fallback <= 0 {
		fallback = DefaultFallback
	}

	m.logger.Info("Starting monitor",
		"sites", len(m.sites),
		"interval", interval.String(),
		"fallback", fallback.String())

	for {
		wait := interval
		if m.safeCheckAll(ctx) {
			wait = fallback
		}
		if ctx.Err() != nil {
			m.logger.Info("Monitor stopped", "reason", ctx.Err())
			return nil
		}

		m.logger.Info("Waiting for next check", "wait", wait.String())
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			m.logger.Info("Monitor stopped", "reason", ctx.Err())
			return nil
		case <-timer.C:
		}
	}
}

// safeCheckAll runs a cycle and reports whether it panicked.
func (m *Monitor) safeCheckAll(ctx context.Context) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			m.metrics.IncPanic()
			m.logger.Error("Monitor cycle panicked",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
			panicked = true
		}
	}()

	if err := m.CheckAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Warn("Monitor cycle ended with error", "error", err)
	}
	return false
}
