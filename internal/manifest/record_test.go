package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sampleFiles() []File {
	return []File{
		{Path: "Takeout/Google Photos/2024/IMG_0001.jpg", Filename: "IMG_0001.jpg", Size: 100, IsMedia: true, IsGooglePhotos: true, Archive: "takeout-x-001.zip"},
		{Path: "Takeout/Google Photos/2024/IMG_0001.jpg.json", Filename: "IMG_0001.jpg.json", Size: 10, IsJSON: true, IsGooglePhotos: true, Archive: "takeout-x-001.zip"},
		{Path: "Takeout/Drive/notes.txt", Filename: "notes.txt", Size: 50, Archive: "takeout-x-002.zip"},
	}
}

func TestNewArchiveImportDefaults(t *testing.T) {
	dir := t.TempDir()
	archives := []Archive{
		{Name: "takeout-x-001.zip", Size: 1000},
		{Name: "takeout-x-002.zip", Size: 2000},
	}

	rec := NewArchiveImport(dir, "takeout-x", archives, sampleFiles())

	if rec.Status != StatusRunning {
		t.Fatalf("expected running status, got %q", rec.Status)
	}
	if rec.TotalSize != 3000 {
		t.Fatalf("expected total size from archives, got %d", rec.TotalSize)
	}
	if rec.FileCount != 3 {
		t.Fatalf("expected 3 files, got %d", rec.FileCount)
	}
	for _, f := range rec.Files {
		if f.Disposition != DispositionPending {
			t.Fatalf("expected pending disposition, got %q", f.Disposition)
		}
	}
	if !strings.HasPrefix(filepath.Base(rec.Path()), "takeout-x.") {
		t.Fatalf("unexpected record path %q", rec.Path())
	}
	if !strings.HasPrefix(rec.ImportLog, "logs/takeout-x.immich-go.") {
		t.Fatalf("unexpected import log %q", rec.ImportLog)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	rec := NewFolderImport(dir, TypeSDImport, "sd-card", "/mnt/sdcard/DCIM", sampleFiles(), "SD/CANON/2024-05-01", "CANON")

	if err := rec.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(rec.Path())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Tag != "SD/CANON/2024-05-01" {
		t.Fatalf("tag not preserved: %q", loaded.Tag)
	}
	if loaded.DeviceLabel != "CANON" {
		t.Fatalf("device label not preserved: %q", loaded.DeviceLabel)
	}
	if loaded.FileCount != 3 {
		t.Fatalf("file count not preserved: %d", loaded.FileCount)
	}
	if loaded.TotalSize != 160 {
		t.Fatalf("expected total size from files, got %d", loaded.TotalSize)
	}

	// Loaded records save back to the same path.
	loaded.Status = StatusCompleted
	if err := loaded.Save(); err != nil {
		t.Fatalf("re-save failed: %v", err)
	}
}

func TestFinishComputesSummary(t *testing.T) {
	dir := t.TempDir()
	files := sampleFiles()
	files[0].UploadStatus = UploadUploaded
	files[0].Disposition = DispositionImported
	files[1].Disposition = DispositionSkippedJSON
	files[2].Disposition = DispositionExtracted

	rec := NewArchiveImport(dir, "takeout-x", []Archive{{Name: "takeout-x-001.zip", Size: 100}}, files)
	rec.StartTime = time.Now().UTC().Add(-2 * time.Second)

	if err := rec.Finish(StatusCompleted, ""); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	if rec.Summary == nil {
		t.Fatal("expected summary")
	}
	if rec.Summary.Uploaded != 1 {
		t.Fatalf("expected 1 uploaded, got %d", rec.Summary.Uploaded)
	}
	if rec.Summary.Extracted != 1 {
		t.Fatalf("expected 1 extracted, got %d", rec.Summary.Extracted)
	}
	if rec.Summary.MediaFiles != 1 || rec.Summary.JSONFiles != 1 {
		t.Fatalf("unexpected media/json counts: %+v", rec.Summary)
	}
	if rec.DurationSeconds <= 0 {
		t.Fatalf("expected positive duration, got %f", rec.DurationSeconds)
	}
	if rec.EndTime.IsZero() || rec.UpdateTime.IsZero() {
		t.Fatal("expected end and update times to be set")
	}
}

func TestImported(t *testing.T) {
	cases := []struct {
		status string
		want   bool
	}{
		{UploadUploaded, true},
		{UploadUpgraded, true},
		{UploadServerDuplicate, true},
		{UploadLocalDuplicate, true},
		{UploadServerBetter, true},
		{UploadError, false},
		{"", false},
	}
	for _, tc := range cases {
		f := File{UploadStatus: tc.status}
		if got := f.Imported(); got != tc.want {
			t.Errorf("Imported() with status %q = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestListReturnsNewestFirst(t *testing.T) {
	dir := t.TempDir()

	old := filepath.Join(dir, "takeout-a.20240101_000000.metadata.json")
	recent := filepath.Join(dir, "takeout-b.20240601_000000.metadata.json")
	if err := os.WriteFile(old, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(recent, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}
	// Non-record files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	infos, err := List(dir)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 records, got %d", len(infos))
	}
	if infos[0].Name != filepath.Base(recent) {
		t.Fatalf("expected newest first, got %q", infos[0].Name)
	}
}

func TestListMissingDir(t *testing.T) {
	infos, err := List(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("expected nil error for missing dir, got %v", err)
	}
	if infos != nil {
		t.Fatalf("expected nil infos, got %v", infos)
	}
}

func TestCopyLog(t *testing.T) {
	metadataDir := t.TempDir()
	logDir := t.TempDir()
	logPath := filepath.Join(logDir, "takeout-x.immich-go.20240101_000000.log")
	if err := os.WriteFile(logPath, []byte(`{"msg":"uploaded successfully"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	rel, err := CopyLog(logPath, metadataDir)
	if err != nil {
		t.Fatalf("CopyLog failed: %v", err)
	}
	if rel != filepath.Join("logs", filepath.Base(logPath)) {
		t.Fatalf("unexpected relative path %q", rel)
	}
	if _, err := os.Stat(filepath.Join(metadataDir, rel)); err != nil {
		t.Fatalf("copied log missing: %v", err)
	}

	// Missing source is not an error.
	rel, err = CopyLog(filepath.Join(logDir, "missing.log"), metadataDir)
	if err != nil {
		t.Fatalf("expected nil error for missing log, got %v", err)
	}
	if rel != "" {
		t.Fatalf("expected empty path for missing log, got %q", rel)
	}
}
