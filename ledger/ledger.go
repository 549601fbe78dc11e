// Package ledger persists which products have already triggered a notification.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"catalog-watcher/pkg/watcher"
)

// ErrNotExist is returned by a Backend when nothing has been persisted yet.
var ErrNotExist = errors.New("ledger: object doesn't exist")

// Backend stores the serialized ledger as a single document.
type Backend interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
}

// Ledger maps product keys to the record of their delivered notification.
// A key is present only once its record has been written through the backend.
type Ledger struct {
	backend Backend
	logger  *slog.Logger
	records map[watcher.ProductKey]watcher.NotificationRecord
	mu      sync.RWMutex
}

// Load reads the persisted ledger. A missing, empty or undecodable document yields
// an empty ledger and is only logged. Any other read failure is returned: starting
// empty would let the next Record overwrite every stored entry.
func Load(ctx context.Context, backend Backend, logger *slog.Logger) (*Ledger, error) {
	l := &Ledger{
		backend: backend,
		logger:  logger,
		records: make(map[watcher.ProductKey]watcher.NotificationRecord),
	}

	data, err := backend.Read(ctx)
	if errors.Is(err, ErrNotExist) {
		logger.Info("No notification ledger found, starting empty")
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read notification ledger: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		logger.Info("Notification ledger is empty")
		return l, nil
	}

	var records map[watcher.ProductKey]watcher.NotificationRecord
	if err := json.Unmarshal(data, &records); err != nil {
		logger.Warn("Notification ledger is corrupt, starting empty", "error", err)
		return l, nil
	}
	if records != nil {
		l.records = records
	}

	logger.Info("Notification ledger loaded", "entries", len(l.records))
	return l, nil
}

// Contains reports whether key has already been notified.
func (l *Ledger) Contains(key watcher.ProductKey) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.records[key]
	return ok
}

// Record inserts rec under key and persists the whole ledger before returning.
// If persisting fails the insertion is undone and the error returned, so a failed
// call leaves no observable change. The write is not cancelled by ctx.
func (l *Ledger) Record(ctx context.Context, key watcher.ProductKey, rec watcher.NotificationRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev, existed := l.records[key]
	l.records[key] = rec

	if err := l.persist(context.WithoutCancel(ctx)); err != nil {
		if existed {
			l.records[key] = prev
		} else {
			delete(l.records, key)
		}
		return err
	}

	l.logger.Debug("Notification recorded", "key", key, "entries", len(l.records))
	return nil
}

// persist must be called with mu held.
func (l *Ledger) persist(ctx context.Context) error {
	data, err := json.MarshalIndent(l.records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	if err := l.backend.Write(ctx, data); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	return nil
}

// Snapshot returns a copy of all records.
func (l *Ledger) Snapshot() map[watcher.ProductKey]watcher.NotificationRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return maps.Clone(l.records)
}

// Len returns the number of recorded notifications.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}
