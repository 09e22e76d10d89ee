package extractor_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"carousel/internal/config"
	"carousel/internal/extractor"
	"carousel/internal/logging"
	"carousel/internal/manifest"
	"carousel/internal/notifications"
	"carousel/internal/queue"
	"carousel/internal/stage"
	"carousel/internal/takeout"
	"carousel/internal/testsupport"
)

func newArchiveItem(t *testing.T, cfg *config.Config, store *queue.Store, name string, zipPath string, files []manifest.File) *queue.Item {
	t.Helper()
	info, err := os.Stat(zipPath)
	if err != nil {
		t.Fatalf("stat zip: %v", err)
	}
	parts := []takeout.Part{{
		Path: zipPath, Name: filepath.Base(zipPath), Size: info.Size(), ModTime: time.Now(), Valid: true,
	}}
	encoded, err := stage.EncodeParts(parts)
	if err != nil {
		t.Fatalf("EncodeParts: %v", err)
	}
	for i := range files {
		if files[i].Archive == "" {
			files[i].Archive = parts[0].Name
		}
	}
	rec := manifest.NewArchiveImport(cfg.Paths.MetadataDir, name, []manifest.Archive{{Name: parts[0].Name, Size: parts[0].Size}}, files)
	if err := rec.Save(); err != nil {
		t.Fatalf("save record: %v", err)
	}
	item, err := store.NewExport(context.Background(), name, queue.SourceTakeout, filepath.Dir(zipPath), "fp-"+name, encoded)
	if err != nil {
		t.Fatalf("NewExport: %v", err)
	}
	item.RecordPath = rec.Path()
	return item
}

func TestExtractSkipsImportedAndUnpacksRest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Imports.DeleteAfterImport = true
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)

	zipPath := filepath.Join(cfg.Paths.IncomingDir, "takeout-e-001.zip")
	testsupport.WriteZip(t, zipPath, map[string]string{
		"Takeout/Google Photos/IMG_1.jpg":      "uploaded-photo",
		"Takeout/Google Photos/IMG_1.jpg.json": "{}",
		"Takeout/Drive/notes.txt":              "document body",
	})
	files := []manifest.File{
		{Path: "Takeout/Google Photos/IMG_1.jpg", Filename: "IMG_1.jpg", Size: 14, IsMedia: true, IsGooglePhotos: true,
			UploadStatus: manifest.UploadUploaded, Disposition: manifest.DispositionImported},
		{Path: "Takeout/Google Photos/IMG_1.jpg.json", Filename: "IMG_1.jpg.json", Size: 2, IsJSON: true,
			Disposition: manifest.DispositionSkippedJSON},
		{Path: "Takeout/Drive/notes.txt", Filename: "notes.txt", Size: 13},
	}
	item := newArchiveItem(t, cfg, store, "takeout-e", zipPath, files)

	ext := extractor.NewExtractorWithNotifier(cfg, store, logging.NewNop(), notifications.NewService(cfg))
	if err := ext.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	extracted := filepath.Join(cfg.Paths.ExtractDir, "takeout-e", "Takeout", "Drive", "notes.txt")
	if _, err := os.Stat(extracted); err != nil {
		t.Fatalf("extracted file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.ExtractDir, "takeout-e", "Takeout", "Google Photos", "IMG_1.jpg")); !os.IsNotExist(err) {
		t.Fatal("imported photo should not be extracted")
	}
	if _, err := os.Stat(zipPath); !os.IsNotExist(err) {
		t.Fatal("archive should be deleted after verified extraction")
	}
	if item.Status == queue.StatusExtracted || item.Status == queue.StatusReview {
		t.Fatalf("unexpected status %s", item.Status)
	}

	rec, err := manifest.Load(item.RecordPath)
	if err != nil {
		t.Fatalf("load record: %v", err)
	}
	if rec.Status != manifest.StatusCompleted {
		t.Fatalf("record status = %s", rec.Status)
	}
	if rec.ExtractedCount != 1 || rec.ExtractFailed != 0 {
		t.Fatalf("extracted=%d failed=%d", rec.ExtractedCount, rec.ExtractFailed)
	}
	for _, f := range rec.Files {
		if f.Filename == "notes.txt" && f.Disposition != manifest.DispositionExtracted {
			t.Fatalf("notes.txt disposition = %s", f.Disposition)
		}
	}
}

func TestExtractKeepsArchivesWhenDeleteDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Imports.DeleteAfterImport = false
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)

	zipPath := filepath.Join(cfg.Paths.IncomingDir, "takeout-k-001.zip")
	testsupport.WriteZip(t, zipPath, map[string]string{
		"Takeout/Drive/a.txt": "hello",
	})
	files := []manifest.File{
		{Path: "Takeout/Drive/a.txt", Filename: "a.txt", Size: 5},
	}
	item := newArchiveItem(t, cfg, store, "takeout-k", zipPath, files)

	ext := extractor.NewExtractorWithNotifier(cfg, store, logging.NewNop(), notifications.NewService(cfg))
	if err := ext.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if _, err := os.Stat(zipPath); err != nil {
		t.Fatalf("archive should remain: %v", err)
	}
	if item.Status != queue.StatusExtracted {
		t.Fatalf("status = %s, want extracted", item.Status)
	}
}

func TestExtractKeepsArchivesAfterUploadErrors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Imports.DeleteAfterImport = true
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)

	zipPath := filepath.Join(cfg.Paths.IncomingDir, "takeout-u-001.zip")
	testsupport.WriteZip(t, zipPath, map[string]string{
		"Takeout/Drive/a.txt": "hello",
	})
	files := []manifest.File{
		{Path: "Takeout/Drive/a.txt", Filename: "a.txt", Size: 5},
		{Path: "Takeout/Google Photos/IMG_2.jpg", Filename: "IMG_2.jpg", Size: 3, IsMedia: true, IsGooglePhotos: true,
			UploadStatus: manifest.UploadError, Disposition: manifest.DispositionError},
	}
	item := newArchiveItem(t, cfg, store, "takeout-u", zipPath, files)
	rec, err := manifest.Load(item.RecordPath)
	if err != nil {
		t.Fatalf("load record: %v", err)
	}
	rec.RecomputeSummary()
	if err := rec.Save(); err != nil {
		t.Fatalf("save record: %v", err)
	}

	ext := extractor.NewExtractorWithNotifier(cfg, store, logging.NewNop(), notifications.NewService(cfg))
	if err := ext.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if _, err := os.Stat(zipPath); err != nil {
		t.Fatalf("archive should remain after upload errors: %v", err)
	}
	if item.Status != queue.StatusExtracted {
		t.Fatalf("status = %s", item.Status)
	}
	reloaded, err := manifest.Load(item.RecordPath)
	if err != nil {
		t.Fatalf("load record: %v", err)
	}
	if reloaded.Status != manifest.StatusCompletedWithErrors {
		t.Fatalf("record status = %s", reloaded.Status)
	}
}

func TestExtractFlagsSizeMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Imports.DeleteAfterImport = true
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)

	zipPath := filepath.Join(cfg.Paths.IncomingDir, "takeout-m-001.zip")
	testsupport.WriteZip(t, zipPath, map[string]string{
		"Takeout/Drive/a.txt": "short",
	})
	files := []manifest.File{
		{Path: "Takeout/Drive/a.txt", Filename: "a.txt", Size: 5},
	}
	item := newArchiveItem(t, cfg, store, "takeout-m", zipPath, files)

	// Extraction target already exists as a directory, so the file
	// cannot be created and verification fails.
	blocked := filepath.Join(cfg.Paths.ExtractDir, "takeout-m", "Takeout", "Drive", "a.txt")
	if err := os.MkdirAll(blocked, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	ext := extractor.NewExtractorWithNotifier(cfg, store, logging.NewNop(), notifications.NewService(cfg))
	if err := ext.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.Status != queue.StatusReview {
		t.Fatalf("status = %s, want review", item.Status)
	}
	if _, err := os.Stat(zipPath); err != nil {
		t.Fatalf("archive should remain: %v", err)
	}
	rec, err := manifest.Load(item.RecordPath)
	if err != nil {
		t.Fatalf("load record: %v", err)
	}
	if rec.ExtractFailed != 1 {
		t.Fatalf("extract failed = %d", rec.ExtractFailed)
	}
}

func TestExtractCopiesDuplicatesForReview(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Imports.DeleteAfterImport = false
	cfg.Imports.CopySkippedForReview = true
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)

	zipPath := filepath.Join(cfg.Paths.IncomingDir, "takeout-d-001.zip")
	testsupport.WriteZip(t, zipPath, map[string]string{
		"Takeout/Google Photos/IMG_3.jpg": "dupe",
	})
	files := []manifest.File{
		{Path: "Takeout/Google Photos/IMG_3.jpg", Filename: "IMG_3.jpg", Size: 4, IsMedia: true, IsGooglePhotos: true,
			UploadStatus: manifest.UploadServerDuplicate, Disposition: manifest.DispositionSkippedDupe},
	}
	item := newArchiveItem(t, cfg, store, "takeout-d", zipPath, files)

	ext := extractor.NewExtractorWithNotifier(cfg, store, logging.NewNop(), notifications.NewService(cfg))
	if err := ext.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	copied := filepath.Join(cfg.Paths.ReviewDir, "Takeout", "Google Photos", "IMG_3.jpg")
	if _, err := os.Stat(copied); err != nil {
		t.Fatalf("review copy missing: %v", err)
	}
	rec, err := manifest.Load(item.RecordPath)
	if err != nil {
		t.Fatalf("load record: %v", err)
	}
	if rec.Files[0].Disposition != manifest.DispositionCopiedForReview {
		t.Fatalf("disposition = %s", rec.Files[0].Disposition)
	}
}

func TestFinishFolderCopiesSkippedForReview(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Imports.CopySkippedForReview = true
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)

	root := filepath.Join(testsupport.BaseDir(cfg), "DCIM")
	if err := os.MkdirAll(filepath.Join(root, "100CANON"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	src := filepath.Join(root, "100CANON", "IMG_5.jpg")
	if err := os.WriteFile(src, []byte("photo"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	files := []manifest.File{
		{Path: "100CANON/IMG_5.jpg", Filename: "IMG_5.jpg", Size: 5, IsMedia: true,
			UploadStatus: manifest.UploadServerDuplicate, Disposition: manifest.DispositionSkippedDupe},
	}
	rec := manifest.NewFolderImport(cfg.Paths.MetadataDir, manifest.TypeSDImport, queue.SourceSDCard, root, files, "import/2024-04-27", "")
	if err := rec.Save(); err != nil {
		t.Fatalf("save record: %v", err)
	}
	item, err := store.NewFolder(context.Background(), "DCIM", queue.SourceSDCard, root, "")
	if err != nil {
		t.Fatalf("NewFolder: %v", err)
	}
	item.RecordPath = rec.Path()

	ext := extractor.NewExtractorWithNotifier(cfg, store, logging.NewNop(), notifications.NewService(cfg))
	if err := ext.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	copied := filepath.Join(cfg.Paths.ReviewDir, "100CANON", "IMG_5.jpg")
	if _, err := os.Stat(copied); err != nil {
		t.Fatalf("review copy missing: %v", err)
	}
	reloaded, err := manifest.Load(item.RecordPath)
	if err != nil {
		t.Fatalf("load record: %v", err)
	}
	if reloaded.Status != manifest.StatusCompleted {
		t.Fatalf("record status = %s", reloaded.Status)
	}
	if reloaded.Files[0].Disposition != manifest.DispositionCopiedForReview {
		t.Fatalf("disposition = %s", reloaded.Files[0].Disposition)
	}
}

func TestExtractMultiPartSharedEntryPaths(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Imports.DeleteAfterImport = false
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)

	zipA := filepath.Join(cfg.Paths.IncomingDir, "takeout-m-001.zip")
	zipB := filepath.Join(cfg.Paths.IncomingDir, "takeout-m-002.zip")
	testsupport.WriteZip(t, zipA, map[string]string{
		"Takeout/archive_browser.html": "<html>one</html>",
		"Takeout/Drive/a.txt":          "alpha",
	})
	testsupport.WriteZip(t, zipB, map[string]string{
		"Takeout/archive_browser.html": "<html>two</html>",
		"Takeout/Drive/b.txt":          "bravo",
	})

	var parts []takeout.Part
	var archives []manifest.Archive
	var files []manifest.File
	for _, path := range []string{zipA, zipB} {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat zip: %v", err)
		}
		parts = append(parts, takeout.Part{
			Path: path, Name: filepath.Base(path), Size: info.Size(), ModTime: time.Now(), Valid: true,
		})
		archives = append(archives, manifest.Archive{Name: filepath.Base(path), Size: info.Size()})
		listed, err := takeout.ListArchive(path)
		if err != nil {
			t.Fatalf("ListArchive(%s): %v", path, err)
		}
		files = append(files, listed...)
	}
	encoded, err := stage.EncodeParts(parts)
	if err != nil {
		t.Fatalf("EncodeParts: %v", err)
	}
	rec := manifest.NewArchiveImport(cfg.Paths.MetadataDir, "takeout-m", archives, files)
	if err := rec.Save(); err != nil {
		t.Fatalf("save record: %v", err)
	}
	item, err := store.NewExport(context.Background(), "takeout-m", queue.SourceTakeout, cfg.Paths.IncomingDir, "fp-takeout-m", encoded)
	if err != nil {
		t.Fatalf("NewExport: %v", err)
	}
	item.RecordPath = rec.Path()

	ext := extractor.NewExtractorWithNotifier(cfg, store, logging.NewNop(), notifications.NewService(cfg))
	if err := ext.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	reloaded, err := manifest.Load(item.RecordPath)
	if err != nil {
		t.Fatalf("load record: %v", err)
	}
	if reloaded.ExtractedCount != 4 || reloaded.ExtractFailed != 0 {
		t.Fatalf("extracted=%d failed=%d", reloaded.ExtractedCount, reloaded.ExtractFailed)
	}
	for _, f := range reloaded.Files {
		if f.Disposition != manifest.DispositionExtracted {
			t.Fatalf("%s in %s disposition = %s", f.Path, f.Archive, f.Disposition)
		}
	}
}
