package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"backtest-blotter/internal/backtest"
	"backtest-blotter/internal/blotter"
	"backtest-blotter/internal/bundle"
	"backtest-blotter/internal/config"
	"backtest-blotter/internal/journal"
	"backtest-blotter/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		App:        config.AppConfig{Environment: "test"},
		Blotter:    config.BlotterConfig{DataFrequency: "daily", HeldFillPolicy: "reopen_on_fill"},
		Slippage:   config.SlippageConfig{Model: config.SlippageVolumeShare, VolumeLimit: 0.25},
		Commission: config.CommissionConfig{Model: config.CommissionPerShare, Cost: 0.0075, MinTradeCost: 1},
		Bundle:     config.BundleConfig{Default: "csvdir", IngestWorkers: 2},
		Exchange:   config.ExchangeConfig{Name: "binanceusdm", Timeframe: "1d", Limit: 10},
		Database:   config.DatabaseConfig{InMemory: true},
	}
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	st, err := store.NewSQLite(config.DatabaseConfig{InMemory: true})
	if err != nil {
		t.Fatalf("NewSQLite returned error: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	a, err := New(testConfig(), nil, st)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return a
}

func writeCSVDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	body := "date,open,high,low,close,volume\n" +
		"2006-01-05,50,50,50,50,100\n" +
		"2006-01-06,50,50,50,50,400\n" +
		"2006-01-09,50,50,50,50,400\n"
	if err := os.WriteFile(filepath.Join(dir, "24.csv"), []byte(body), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return dir
}

func TestRunEndToEnd(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)

	if _, err := a.Ingest(ctx, IngestRequest{CSVDir: writeCSVDir(t)}); err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}

	plan, err := backtest.ParsePlanString("2006-01-05 order 24 150\n2006-01-06 hold 24 review\n")
	if err != nil {
		t.Fatalf("parse plan: %v", err)
	}
	result, err := a.Run(ctx, RunRequest{
		Plan:  plan,
		Start: time.Date(2006, 1, 5, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2006, 1, 9, 0, 0, 0, 0, time.UTC),
		RunID: "run-1",
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Stats.SharesTraded != 150 || result.Stats.OrdersFilled != 1 {
		t.Fatalf("unexpected stats %+v", result.Stats)
	}

	handler := newJournalHandler(a.Journal(), a.logger)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/run-1/transactions", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var txns []journal.TransactionRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &txns); err != nil {
		t.Fatalf("decode transactions: %v", err)
	}
	if len(txns) != 2 || txns[0].Amount != 100 || txns[1].Amount != 50 {
		t.Fatalf("unexpected transactions %+v", txns)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/run-1/orders", nil))
	var events []journal.OrderEvent
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	statuses := make([]string, 0, len(events))
	for _, ev := range events {
		statuses = append(statuses, ev.Status)
	}
	if got := strings.Join(statuses, ","); got != "OPEN,HELD,FILLED" {
		t.Fatalf("unexpected statuses %s", got)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/unknown/orders", nil))
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty list, got %s", rec.Body.String())
	}
}

func TestRun_FrequencyMismatch(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)
	if _, err := a.Ingest(ctx, IngestRequest{CSVDir: writeCSVDir(t)}); err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}

	_, err := a.Run(ctx, RunRequest{
		Start:         time.Date(2006, 1, 5, 0, 0, 0, 0, time.UTC),
		End:           time.Date(2006, 1, 9, 0, 0, 0, 0, time.UTC),
		DataFrequency: "minute",
	})
	if !errors.Is(err, blotter.ErrFrequencyMismatch) {
		t.Fatalf("expected frequency mismatch, got %v", err)
	}
}

func TestRun_UnknownBundle(t *testing.T) {
	a := newTestApp(t)
	_, err := a.Run(context.Background(), RunRequest{
		Bundle: "missing",
		Start:  time.Date(2006, 1, 5, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2006, 1, 9, 0, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, bundle.ErrNoIngestions) {
		t.Fatalf("expected ErrNoIngestions, got %v", err)
	}
}

func TestIngest_RequiresExactlyOneSource(t *testing.T) {
	a := newTestApp(t)
	if _, err := a.Ingest(context.Background(), IngestRequest{}); err == nil {
		t.Errorf("expected error without source")
	}
	if _, err := a.Ingest(context.Background(), IngestRequest{CSVDir: "x", Markets: []string{"BTC/USDT"}}); err == nil {
		t.Errorf("expected error with two sources")
	}
}

func TestWriteBundlesAndClean(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)

	var buf bytes.Buffer
	if err := a.WriteBundles(ctx, &buf); err != nil {
		t.Fatalf("WriteBundles returned error: %v", err)
	}
	if buf.String() != "csvdir <no ingestions>\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}

	dir := writeCSVDir(t)
	for i := 0; i < 2; i++ {
		if _, err := a.Ingest(ctx, IngestRequest{CSVDir: dir}); err != nil {
			t.Fatalf("Ingest returned error: %v", err)
		}
	}
	buf.Reset()
	if err := a.WriteBundles(ctx, &buf); err != nil {
		t.Fatalf("WriteBundles returned error: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(buf.String()), "\n"); len(lines) != 2 || !strings.HasPrefix(lines[0], "csvdir ") {
		t.Fatalf("unexpected output %q", buf.String())
	}

	keep := 1
	removed, err := a.Clean(ctx, "", bundle.CleanOptions{KeepLast: &keep})
	if err != nil {
		t.Fatalf("Clean returned error: %v", err)
	}
	if len(removed) != 1 {
		t.Fatalf("expected 1 removed, got %d", len(removed))
	}
}

func TestComponentsFromConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Slippage = config.SlippageConfig{Model: "bogus"}
	if _, err := newBlotter(cfg, "daily", nil); err == nil {
		t.Errorf("expected error for unknown slippage model")
	}

	cfg = testConfig()
	cfg.Commission = config.CommissionConfig{Model: config.CommissionPerDollar, Cost: 0.001}
	cfg.Blotter.HeldFillPolicy = "keep_held"
	b, err := newBlotter(cfg, "daily", nil)
	if err != nil {
		t.Fatalf("newBlotter returned error: %v", err)
	}
	if b.HeldFillPolicy().String() != "keep_held" {
		t.Errorf("unexpected policy %s", b.HeldFillPolicy())
	}
}
