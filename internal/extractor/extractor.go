package extractor

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"carousel/internal/config"
	"carousel/internal/fileutil"
	"carousel/internal/logging"
	"carousel/internal/manifest"
	"carousel/internal/notifications"
	"carousel/internal/queue"
	"carousel/internal/services"
	"carousel/internal/stage"
)

// Extractor unpacks non-imported archive content and closes out the
// metadata record.
type Extractor struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	notifier notifications.Service
}

// NewExtractor creates the stage handler with the default notifier.
func NewExtractor(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Extractor {
	return NewExtractorWithNotifier(cfg, store, logger, notifications.NewService(cfg))
}

// NewExtractorWithNotifier allows injecting the notification service (used in tests).
func NewExtractorWithNotifier(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Extractor {
	return &Extractor{
		cfg:      cfg,
		store:    store,
		logger:   logging.NewComponentLogger(logger, "extractor"),
		notifier: notifier,
	}
}

// Prepare initializes progress messaging prior to Execute.
func (e *Extractor) Prepare(ctx context.Context, item *queue.Item) error {
	if item.ProgressStage == "" {
		item.ProgressStage = "Extracting"
	}
	item.ProgressMessage = "Extracting remaining content"
	item.ProgressPercent = 0
	return nil
}

// Execute extracts what the import left behind and finalizes the record.
func (e *Extractor) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, e.logger)
	rec, err := stage.LoadRecord(item.RecordPath)
	if err != nil {
		return err
	}

	switch item.SourceType {
	case queue.SourceTakeout, queue.SourceArchive:
		return e.extractArchives(ctx, logger, item, rec)
	case queue.SourceFolder, queue.SourceSDCard:
		return e.finishFolder(ctx, logger, item, rec)
	default:
		return services.Wrap(services.ErrValidation, "extract", "classify source",
			fmt.Sprintf("Unknown source type %q", item.SourceType), nil)
	}
}

// HealthCheck verifies the extract directory is configured.
func (e *Extractor) HealthCheck(ctx context.Context) stage.Health {
	const name = "extractor"
	if e.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(e.cfg.Paths.ExtractDir) == "" {
		return stage.Unhealthy(name, "extract directory not configured")
	}
	return stage.Healthy(name)
}

type extractTally struct {
	extracted int
	failed    int
	copied    int
	bytes     int64
}

func (e *Extractor) extractArchives(ctx context.Context, logger *slog.Logger, item *queue.Item, rec *manifest.Record) error {
	parts, err := stage.ParseParts(item.PartsJSON)
	if err != nil {
		return err
	}
	if len(parts) == 0 {
		return services.Wrap(services.ErrValidation, "extract", "resolve archives",
			"Archive part list missing; rerun inspection", nil)
	}

	destRoot := filepath.Join(e.cfg.Paths.ExtractDir, item.ExportName)
	if err := os.MkdirAll(destRoot, 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "extract", "create destination",
			fmt.Sprintf("Failed to create %s", destRoot), err)
	}
	rec.ExtractDest = destRoot

	byEntry := make(map[entryKey]*manifest.File, len(rec.Files))
	for i := range rec.Files {
		f := &rec.Files[i]
		byEntry[entryKey{f.Archive, f.Path}] = f
	}

	var tally extractTally
	sampler := logging.NewProgressSampler(0)
	for idx, part := range parts {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		percent := float64(idx) / float64(len(parts)) * 90
		item.SetProgress("Extracting",
			fmt.Sprintf("Extracting %s (%d/%d)", part.Name, idx+1, len(parts)),
			percent)
		if sampler.ShouldLog(percent, "Extracting", "") {
			logger.Info("extraction progress",
				logging.String("part", part.Name),
				logging.Int("part_index", idx+1),
				logging.Int("part_count", len(parts)))
		}
		if err := e.extractPart(ctx, part.Path, destRoot, byEntry, &tally); err != nil {
			return err
		}
	}

	rec.ExtractedCount = tally.extracted
	rec.ExtractFailed = tally.failed

	cleanImport := rec.Summary == nil || rec.Summary.Errors == 0
	deleteArchives := e.cfg.Imports.DeleteAfterImport && cleanImport && tally.failed == 0
	if deleteArchives {
		for _, part := range parts {
			if err := os.Remove(part.Path); err != nil && !os.IsNotExist(err) {
				logger.Warn("archive delete failed",
					logging.String("archive", part.Name), logging.Error(err))
				deleteArchives = false
			}
		}
	}

	status := manifest.StatusCompleted
	if tally.failed > 0 || !cleanImport {
		status = manifest.StatusCompletedWithErrors
	}
	if err := rec.Finish(status, ""); err != nil {
		return services.Wrap(services.ErrTransient, "extract", "save record", "Failed to finalize metadata record", err)
	}

	logger.Info(
		"extraction completed",
		logging.String(logging.FieldEventType, "extraction_complete"),
		logging.Int("extracted", tally.extracted),
		logging.Int("failed", tally.failed),
		logging.Int("copied_for_review", tally.copied),
		logging.Int64("bytes", tally.bytes),
		logging.Bool("archives_deleted", deleteArchives),
	)
	if e.notifier != nil && tally.extracted > 0 {
		if err := e.notifier.NotifyExtractionCompleted(ctx, item.ExportName, tally.extracted, tally.bytes); err != nil {
			logger.Warn("extraction notification failed", logging.Error(err))
		}
	}

	if tally.failed > 0 {
		reason := fmt.Sprintf("%d of %d entries failed size verification; archives kept", tally.failed, tally.failed+tally.extracted)
		item.SetReview(reason)
		if e.notifier != nil {
			if err := e.notifier.NotifyReviewRequired(ctx, item.ExportName, reason); err != nil {
				logger.Warn("review notification failed", logging.Error(err))
			}
		}
		return nil
	}
	if !deleteArchives {
		item.Status = queue.StatusExtracted
		item.SetProgressComplete("Extracted", fmt.Sprintf("%d files extracted; archives kept", tally.extracted))
		return nil
	}
	item.SetProgressComplete("Completed", fmt.Sprintf("%d files extracted, archives removed", tally.extracted))
	return nil
}

// entryKey identifies a manifest row by its owning archive part. The same
// entry path can appear in several parts of a multi-part export, so the
// path alone is ambiguous.
type entryKey struct {
	archive string
	path    string
}

func (e *Extractor) extractPart(ctx context.Context, zipPath, destRoot string, byEntry map[entryKey]*manifest.File, tally *extractTally) error {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return services.Wrap(services.ErrValidation, "extract", "open archive",
			fmt.Sprintf("Failed to open %s", filepath.Base(zipPath)), err)
	}
	defer reader.Close()

	archiveName := filepath.Base(zipPath)
	for _, entry := range reader.File {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.FileInfo().IsDir() {
			continue
		}
		f := byEntry[entryKey{archiveName, entry.Name}]
		if f == nil {
			continue
		}
		switch {
		case f.Disposition == manifest.DispositionSkippedJSON:
			continue
		case f.Imported():
			if f.UploadStatus != manifest.UploadUploaded && f.UploadStatus != manifest.UploadUpgraded && e.cfg.Imports.CopySkippedForReview {
				e.copyForReview(entry, f, tally)
			}
			continue
		}
		target, err := safeJoin(destRoot, entry.Name)
		if err != nil {
			f.Disposition = manifest.DispositionExtractFailed
			tally.failed++
			continue
		}
		if err := extractEntry(entry, target); err != nil {
			f.Disposition = manifest.DispositionExtractFailed
			tally.failed++
			continue
		}
		if !verifyEntry(target, int64(entry.UncompressedSize64)) {
			f.Disposition = manifest.DispositionExtractFailed
			tally.failed++
			continue
		}
		f.Disposition = manifest.DispositionExtracted
		tally.extracted++
		tally.bytes += int64(entry.UncompressedSize64)
	}
	return nil
}

// copyForReview extracts a server-duplicate photo under the review
// directory so it can be compared against the asset Immich kept.
func (e *Extractor) copyForReview(entry *zip.File, f *manifest.File, tally *extractTally) {
	target, err := safeJoin(e.cfg.Paths.ReviewDir, entry.Name)
	if err != nil {
		f.Disposition = manifest.DispositionCopyFailed
		return
	}
	if err := extractEntry(entry, target); err != nil {
		f.Disposition = manifest.DispositionCopyFailed
		return
	}
	f.Disposition = manifest.DispositionCopiedForReview
	tally.copied++
}

func (e *Extractor) finishFolder(ctx context.Context, logger *slog.Logger, item *queue.Item, rec *manifest.Record) error {
	var copied, copyFailed int
	if e.cfg.Imports.CopySkippedForReview {
		for i := range rec.Files {
			f := &rec.Files[i]
			if f.Disposition != manifest.DispositionSkippedDupe {
				continue
			}
			src := filepath.Join(item.SourcePath, filepath.FromSlash(f.Path))
			dst, err := safeJoin(e.cfg.Paths.ReviewDir, f.Path)
			if err == nil {
				err = os.MkdirAll(filepath.Dir(dst), 0o755)
			}
			if err == nil {
				err = fileutil.CopyFile(src, dst)
			}
			if err != nil {
				logger.Warn("review copy failed", logging.String("file", f.Path), logging.Error(err))
				f.Disposition = manifest.DispositionCopyFailed
				copyFailed++
				continue
			}
			f.Disposition = manifest.DispositionCopiedForReview
			copied++
		}
	}

	status := manifest.StatusCompleted
	if rec.Summary != nil && rec.Summary.Errors > 0 {
		status = manifest.StatusCompletedWithErrors
	}
	if err := rec.Finish(status, ""); err != nil {
		return services.Wrap(services.ErrTransient, "extract", "save record", "Failed to finalize metadata record", err)
	}

	logger.Info(
		"folder import finalized",
		logging.String(logging.FieldEventType, "folder_finalized"),
		logging.Int("copied_for_review", copied),
		logging.Int("copy_failed", copyFailed),
	)
	item.SetProgressComplete("Completed", "Folder import finalized")
	return nil
}

func extractEntry(entry *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	src, err := entry.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(target)
		return err
	}
	return dst.Close()
}

func verifyEntry(path string, wantSize int64) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Size() == wantSize
}

// safeJoin resolves an archive entry name under root, rejecting paths
// that escape it.
func safeJoin(root, name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("entry path %q escapes destination", name)
	}
	return filepath.Join(root, cleaned), nil
}
