package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"carousel/internal/logging"
	"carousel/internal/queue"
	"carousel/internal/testsupport"
)

func newScannerDaemon(t *testing.T) *Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	d, err := New(cfg, store, logging.NewNop(), newManagerForTest(t, cfg, store))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func TestScanIncomingQueuesCompleteExport(t *testing.T) {
	d := newScannerDaemon(t)
	dir := d.cfg.Paths.IncomingDir
	testsupport.WriteZip(t, filepath.Join(dir, "takeout-20240427T195310Z-001.zip"), map[string]string{
		"Takeout/Google Photos/album/a.jpg": "a",
	})
	testsupport.WriteZip(t, filepath.Join(dir, "takeout-20240427T195310Z-002.zip"), map[string]string{
		"Takeout/Google Photos/album/b.jpg": "b",
	})

	queued, err := d.ScanIncoming(context.Background())
	if err != nil {
		t.Fatalf("ScanIncoming: %v", err)
	}
	if queued != 1 {
		t.Fatalf("queued = %d, want 1", queued)
	}

	items, err := d.store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	item := items[0]
	if item.ExportName != "takeout-20240427T195310Z" {
		t.Fatalf("export name = %q", item.ExportName)
	}
	if item.SourceType != queue.SourceTakeout {
		t.Fatalf("source type = %q, want %q", item.SourceType, queue.SourceTakeout)
	}
	if item.Status != queue.StatusPending {
		t.Fatalf("status = %q", item.Status)
	}
	if item.Fingerprint == "" {
		t.Fatal("expected fingerprint to be recorded")
	}
	if item.PartsJSON == "" {
		t.Fatal("expected encoded parts")
	}
}

func TestScanIncomingSkipsDuplicates(t *testing.T) {
	d := newScannerDaemon(t)
	testsupport.WriteZip(t, filepath.Join(d.cfg.Paths.IncomingDir, "takeout-20240101T000000Z-001.zip"), map[string]string{
		"Takeout/archive_browser.html": "x",
	})

	if queued, err := d.ScanIncoming(context.Background()); err != nil || queued != 1 {
		t.Fatalf("first scan queued=%d err=%v", queued, err)
	}
	if queued, err := d.ScanIncoming(context.Background()); err != nil || queued != 0 {
		t.Fatalf("second scan queued=%d err=%v", queued, err)
	}

	items, err := d.store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
}

func TestScanIncomingSkipsPartialDownloads(t *testing.T) {
	d := newScannerDaemon(t)
	dir := d.cfg.Paths.IncomingDir
	testsupport.WriteZip(t, filepath.Join(dir, "takeout-20240427T195310Z-001.zip"), map[string]string{
		"Takeout/a.txt": "a",
	})
	if err := os.WriteFile(filepath.Join(dir, "takeout-20240427T195310Z-002.zip.partial"), []byte("half"), 0o644); err != nil {
		t.Fatal(err)
	}

	queued, err := d.ScanIncoming(context.Background())
	if err != nil {
		t.Fatalf("ScanIncoming: %v", err)
	}
	if queued != 0 {
		t.Fatalf("queued = %d, want 0 while a part is still downloading", queued)
	}
}

func TestScanIncomingTypesStandaloneArchive(t *testing.T) {
	d := newScannerDaemon(t)
	testsupport.WriteZip(t, filepath.Join(d.cfg.Paths.IncomingDir, "takeout-drive-docs.zip"), map[string]string{
		"Takeout/Drive/notes.txt": "n",
	})

	queued, err := d.ScanIncoming(context.Background())
	if err != nil {
		t.Fatalf("ScanIncoming: %v", err)
	}
	if queued != 1 {
		t.Fatalf("queued = %d, want 1", queued)
	}
	items, err := d.store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if items[0].SourceType != queue.SourceArchive {
		t.Fatalf("source type = %q, want %q", items[0].SourceType, queue.SourceArchive)
	}
}

func TestScanIncomingEmptyDir(t *testing.T) {
	d := newScannerDaemon(t)
	queued, err := d.ScanIncoming(context.Background())
	if err != nil {
		t.Fatalf("ScanIncoming: %v", err)
	}
	if queued != 0 {
		t.Fatalf("queued = %d, want 0", queued)
	}
}
