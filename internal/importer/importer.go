package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"carousel/internal/config"
	"carousel/internal/logging"
	"carousel/internal/manifest"
	"carousel/internal/notifications"
	"carousel/internal/queue"
	"carousel/internal/services"
	"carousel/internal/services/immich"
	"carousel/internal/services/immichgo"
	"carousel/internal/stage"
)

// JobResumer resumes paused Immich background jobs after an upload.
type JobResumer interface {
	ResumePausedJobs(ctx context.Context) (*immich.ResumeReport, error)
}

// Importer uploads queued sources to Immich and records the outcome.
type Importer struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	uploader immichgo.Uploader
	jobs     JobResumer
	notifier notifications.Service
}

// NewImporter creates the stage handler with real immich-go and Immich
// clients built from configuration.
func NewImporter(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*Importer, error) {
	apiKey, err := cfg.ImmichAPIKey()
	if err != nil {
		return nil, err
	}
	uploader, err := immichgo.New(
		cfg.ImmichGoBinary(),
		cfg.Immich.URL,
		apiKey,
		cfg.ImmichGo.MaxAttempts,
		cfg.ImmichGo.RetryDelay,
		cfg.ImmichGo.UploadTimeout,
	)
	if err != nil {
		return nil, fmt.Errorf("immich-go client: %w", err)
	}
	var jobs JobResumer
	if cfg.Immich.ResumeJobs {
		client, err := immich.New(cfg.Immich.URL, apiKey, cfg.Immich.RequestTimeout, nil)
		if err != nil {
			return nil, fmt.Errorf("immich client: %w", err)
		}
		jobs = client
	}
	return NewImporterWithDependencies(cfg, store, logger, uploader, jobs, notifications.NewService(cfg)), nil
}

// NewImporterWithDependencies allows injecting the uploader, job resumer,
// and notifier (used in tests).
func NewImporterWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, uploader immichgo.Uploader, jobs JobResumer, notifier notifications.Service) *Importer {
	return &Importer{
		cfg:      cfg,
		store:    store,
		logger:   logging.NewComponentLogger(logger, "importer"),
		uploader: uploader,
		jobs:     jobs,
		notifier: notifier,
	}
}

// Prepare initializes progress messaging prior to Execute.
func (imp *Importer) Prepare(ctx context.Context, item *queue.Item) error {
	if item.ProgressStage == "" {
		item.ProgressStage = "Importing"
	}
	item.ProgressMessage = "Uploading to Immich"
	item.ProgressPercent = 0
	return nil
}

// Execute uploads the item's photo content and applies the results to
// its metadata record.
func (imp *Importer) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, imp.logger)

	if !item.HasPhotos {
		logger.Info("no photo content; skipping upload",
			logging.String(logging.FieldEventType, "upload_skipped"))
		item.SetProgressComplete("Imported", "No Google Photos content; nothing to upload")
		return nil
	}

	rec, err := stage.LoadRecord(item.RecordPath)
	if err != nil {
		return err
	}

	run, err := imp.upload(ctx, item, rec)
	if err != nil {
		return err
	}
	rec.Command = run.Command
	rec.ExitCode = exitCode(run)

	googleOnly := item.SourceType == queue.SourceTakeout || item.SourceType == queue.SourceArchive
	counts := applyOutcomes(rec, run.Result, googleOnly)
	rec.RecomputeSummary()
	if copied, copyErr := manifest.CopyLog(item.ImportLogPath, imp.cfg.Paths.MetadataDir); copyErr != nil {
		logger.Warn("import log copy failed", logging.Error(copyErr))
	} else if copied != "" {
		rec.ImportLog = copied
	}

	if !run.Succeeded() {
		detail := fmt.Sprintf("upload failed after %d attempts", run.Attempts)
		if run.ExitErr != nil {
			detail = fmt.Sprintf("%s: %v", detail, run.ExitErr)
		} else if counts.Errors > 0 {
			detail = fmt.Sprintf("%s: %d file errors", detail, counts.Errors)
		}
		if finishErr := rec.Finish(manifest.StatusFailed, detail); finishErr != nil {
			logger.Warn("record finish failed", logging.Error(finishErr))
		}
		return services.Wrap(services.ErrExternalTool, "import", "immich-go upload", detail, run.ExitErr)
	}

	if err := rec.Save(); err != nil {
		return services.Wrap(services.ErrTransient, "import", "save record", "Failed to persist upload results", err)
	}
	if summary, err := json.Marshal(rec.Summary); err == nil {
		item.SummaryJSON = string(summary)
	}

	imp.resumeJobs(ctx, logger)

	logger.Info(
		"upload completed",
		logging.String(logging.FieldEventType, "upload_complete"),
		logging.Int("attempts", run.Attempts),
		logging.Int("uploaded", counts.Uploaded),
		logging.Int("duplicates", counts.Duplicates),
		logging.Int("errors", counts.Errors),
	)
	if imp.notifier != nil {
		if err := imp.notifier.NotifyImportCompleted(ctx, item.ExportName, counts.Uploaded, counts.Duplicates, counts.Errors); err != nil {
			logger.Warn("import notification failed", logging.Error(err))
		}
	}

	item.SetProgressComplete("Imported", fmt.Sprintf(
		"%d uploaded, %d duplicates, %d errors", counts.Uploaded, counts.Duplicates, counts.Errors))
	return nil
}

// HealthCheck verifies upload dependencies are configured.
func (imp *Importer) HealthCheck(ctx context.Context) stage.Health {
	const name = "importer"
	if imp.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if imp.uploader == nil {
		return stage.Unhealthy(name, "immich-go client unavailable")
	}
	if strings.TrimSpace(imp.cfg.Immich.URL) == "" {
		return stage.Unhealthy(name, "immich url not configured")
	}
	if key, err := imp.cfg.ImmichAPIKey(); err != nil || strings.TrimSpace(key) == "" {
		return stage.Unhealthy(name, "immich api key missing")
	}
	return stage.Healthy(name)
}

func (imp *Importer) upload(ctx context.Context, item *queue.Item, rec *manifest.Record) (*immichgo.RunResult, error) {
	switch item.SourceType {
	case queue.SourceTakeout, queue.SourceArchive:
		glob, err := zipGlob(item)
		if err != nil {
			return nil, err
		}
		run, err := imp.uploader.UploadGooglePhotos(ctx, immichgo.GooglePhotosUpload{
			ZipGlob:    glob,
			LogFile:    item.ImportLogPath,
			SyncAlbums: imp.cfg.ImmichGo.SyncAlbums,
			PeopleTag:  imp.cfg.ImmichGo.PeopleTag,
			TakeoutTag: imp.cfg.ImmichGo.TakeoutTag,
			SessionTag: imp.cfg.ImmichGo.SessionTag,
		})
		return wrapUploadErr(run, err)
	case queue.SourceFolder, queue.SourceSDCard:
		run, err := imp.uploader.UploadFolder(ctx, immichgo.FolderUpload{
			Path:       item.SourcePath,
			Tag:        rec.Tag,
			LogFile:    item.ImportLogPath,
			SessionTag: imp.cfg.ImmichGo.SessionTag,
		})
		return wrapUploadErr(run, err)
	default:
		return nil, services.Wrap(services.ErrValidation, "import", "classify source",
			fmt.Sprintf("Unknown source type %q", item.SourceType), nil)
	}
}

// wrapUploadErr keeps the RunResult for metadata even when the upload
// ultimately failed; hard errors without a result propagate as-is.
func wrapUploadErr(run *immichgo.RunResult, err error) (*immichgo.RunResult, error) {
	if run != nil {
		return run, nil
	}
	if err == nil {
		err = fmt.Errorf("upload returned no result")
	}
	return nil, services.Wrap(services.ErrExternalTool, "import", "immich-go upload", "immich-go invocation failed", err)
}

func (imp *Importer) resumeJobs(ctx context.Context, logger *slog.Logger) {
	if imp.jobs == nil {
		return
	}
	report, err := imp.jobs.ResumePausedJobs(ctx)
	if err != nil {
		logger.Warn("immich job resume failed", logging.Error(err))
		return
	}
	if len(report.Resumed) > 0 || len(report.Failed) > 0 {
		logger.Info("immich jobs resumed",
			logging.Int("resumed", len(report.Resumed)),
			logging.Int("failed", len(report.Failed)))
	}
}

// zipGlob returns the path expression covering every archive part of
// the item. Single archives use their exact path; multi-part exports
// match every part sharing the export prefix.
func zipGlob(item *queue.Item) (string, error) {
	parts, err := stage.ParseParts(item.PartsJSON)
	if err != nil {
		return "", err
	}
	if len(parts) == 0 {
		return "", services.Wrap(services.ErrValidation, "import", "resolve archives",
			"Archive part list missing; rerun inspection", nil)
	}
	if len(parts) == 1 {
		return parts[0].Path, nil
	}
	return filepath.Join(filepath.Dir(parts[0].Path), item.ExportName+"-*.zip"), nil
}

type outcomeCounts struct {
	Uploaded   int
	Duplicates int
	Errors     int
}

// applyOutcomes folds the per-file upload results into the record's
// file manifest, matching log entries to manifest rows by basename.
// Takeout uploads only cover Google Photos media; folder uploads cover
// every media file under the source.
func applyOutcomes(rec *manifest.Record, result *immichgo.Result, googleOnly bool) outcomeCounts {
	var counts outcomeCounts
	if result != nil {
		counts.Uploaded = result.Summary.Uploaded + result.Summary.Upgraded
		counts.Duplicates = result.Summary.ServerDuplicates + result.Summary.LocalDuplicates + result.Summary.ServerBetter
		counts.Errors = result.Summary.Errors
	}
	for i := range rec.Files {
		f := &rec.Files[i]
		if f.IsJSON {
			f.Disposition = manifest.DispositionSkippedJSON
			continue
		}
		if !f.IsMedia || (googleOnly && !f.IsGooglePhotos) {
			continue
		}
		var outcome *immichgo.Outcome
		if result != nil {
			outcome = result.Files[f.Filename]
		}
		if outcome == nil {
			f.Disposition = manifest.DispositionNotProcessed
			continue
		}
		f.UploadStatus = outcome.Status
		f.UploadReason = outcome.Reason
		f.Albums = outcome.Albums
		f.Tags = outcome.Tags
		switch outcome.Status {
		case manifest.UploadUploaded, manifest.UploadUpgraded:
			f.Disposition = manifest.DispositionImported
		case manifest.UploadServerDuplicate, manifest.UploadLocalDuplicate, manifest.UploadServerBetter:
			f.Disposition = manifest.DispositionSkippedDupe
		case manifest.UploadError:
			f.Disposition = manifest.DispositionError
		default:
			f.Disposition = manifest.DispositionNotProcessed
		}
	}
	return counts
}

func exitCode(run *immichgo.RunResult) int {
	if run == nil || run.ExitErr == nil {
		return 0
	}
	return 1
}
