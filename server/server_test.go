package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"catalog-watcher/metrics"
	"catalog-watcher/pkg/watcher"
	"catalog-watcher/poll"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type stubPoller struct {
	err   error
	calls int
}

func (p *stubPoller) TryCheckAll(context.Context) error {
	p.calls++
	return p.err
}

type stubLedger map[watcher.ProductKey]watcher.NotificationRecord

func (l stubLedger) Snapshot() map[watcher.ProductKey]watcher.NotificationRecord {
	return l
}

func newTestServer(p Poller, l Ledger) http.Handler {
	m := metrics.New()
	m.IncCycle()
	return New(&Config{Poller: p, Ledger: l, Registry: m.Registry, Logger: testLogger()}).Router()
}

func TestPollEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		err        error
		wantStatus int
		wantCalls  int
	}{
		{name: "completed", method: http.MethodPost, wantStatus: http.StatusOK, wantCalls: 1},
		{name: "already running", method: http.MethodPost, err: poll.ErrCycleRunning, wantStatus: http.StatusConflict, wantCalls: 1},
		{name: "cancelled", method: http.MethodPost, err: context.Canceled, wantStatus: http.StatusInternalServerError, wantCalls: 1},
		{name: "wrong method", method: http.MethodGet, wantStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			poller := &stubPoller{err: tt.err}
			handler := newTestServer(poller, stubLedger{})

			req := httptest.NewRequest(tt.method, "/pollz", nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if poller.calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", poller.calls, tt.wantCalls)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(&stubPoller{}, stubLedger{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestNotified(t *testing.T) {
	at := time.Date(2025, 10, 13, 10, 0, 0, 0, time.UTC)
	ledger := stubLedger{
		"Gameria_OP-17 Booster": {NotifiedAt: at, Title: "OP-17 Booster", Link: "https://shop.example/op17"},
	}

	rec := httptest.NewRecorder()
	newTestServer(&stubPoller{}, ledger).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notified", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got notifiedResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Count != 1 {
		t.Errorf("count = %d", got.Count)
	}
	rec1, ok := got.Products["Gameria_OP-17 Booster"]
	if !ok || !rec1.NotifiedAt.Equal(at) || rec1.Title != "OP-17 Booster" {
		t.Errorf("products = %+v", got.Products)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(&stubPoller{}, stubLedger{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "watcher_cycles_total 1") {
		t.Errorf("metrics body missing cycle counter:\n%s", rec.Body.String())
	}
}

func TestMetricsDisabledWithoutRegistry(t *testing.T) {
	handler := New(&Config{Poller: &stubPoller{}, Ledger: stubLedger{}, Logger: testLogger()}).Router()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListenAndServeShutsDown(t *testing.T) {
	srv := New(&Config{Poller: &stubPoller{}, Ledger: stubLedger{}, Logger: testLogger()})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("ListenAndServe() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
