package inspect

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"carousel/internal/config"
	"carousel/internal/logging"
	"carousel/internal/manifest"
	"carousel/internal/notifications"
	"carousel/internal/queue"
	"carousel/internal/services"
	"carousel/internal/stage"
	"carousel/internal/takeout"
)

// Inspector validates queued sources and writes their metadata records.
type Inspector struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	notifier notifications.Service
	now      func() time.Time
}

// NewInspector creates the stage handler with the default notifier.
func NewInspector(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Inspector {
	return NewInspectorWithNotifier(cfg, store, logger, notifications.NewService(cfg))
}

// NewInspectorWithNotifier allows injecting the notification service (used in tests).
func NewInspectorWithNotifier(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Inspector {
	return &Inspector{
		cfg:      cfg,
		store:    store,
		logger:   logging.NewComponentLogger(logger, "inspector"),
		notifier: notifier,
		now:      time.Now,
	}
}

// Prepare initializes progress messaging prior to Execute.
func (i *Inspector) Prepare(ctx context.Context, item *queue.Item) error {
	if item.ProgressStage == "" {
		item.ProgressStage = "Inspecting"
	}
	item.ProgressMessage = "Validating source"
	item.ProgressPercent = 0
	return nil
}

// Execute inspects the item's source and persists its metadata record.
func (i *Inspector) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, i.logger)
	switch item.SourceType {
	case queue.SourceTakeout, queue.SourceArchive:
		return i.inspectExport(ctx, logger, item)
	case queue.SourceFolder, queue.SourceSDCard:
		return i.inspectFolder(ctx, logger, item)
	default:
		return services.Wrap(
			services.ErrValidation,
			"inspect",
			"classify source",
			fmt.Sprintf("Unknown source type %q", item.SourceType),
			nil,
		)
	}
}

// HealthCheck verifies the directories inspection depends on are configured.
func (i *Inspector) HealthCheck(ctx context.Context) stage.Health {
	const name = "inspector"
	if i.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(i.cfg.Paths.IncomingDir) == "" {
		return stage.Unhealthy(name, "incoming directory not configured")
	}
	if strings.TrimSpace(i.cfg.Paths.MetadataDir) == "" {
		return stage.Unhealthy(name, "metadata directory not configured")
	}
	return stage.Healthy(name)
}

func (i *Inspector) inspectExport(ctx context.Context, logger *slog.Logger, item *queue.Item) error {
	dir := strings.TrimSpace(item.SourcePath)
	if dir == "" {
		dir = i.cfg.Paths.IncomingDir
	}
	exports, err := takeout.Scan(dir, i.cfg.Imports.FilterGlob)
	if err != nil {
		return services.Wrap(services.ErrTransient, "inspect", "scan incoming", "Failed to scan incoming directory", err)
	}
	exp := findExport(exports, item.ExportName)
	if exp == nil {
		item.SetReview(fmt.Sprintf("Export %s no longer present in %s", item.ExportName, dir))
		return nil
	}

	item.SetProgress("Inspecting", fmt.Sprintf("Checking %d archive parts", len(exp.Parts)), 20)

	if len(exp.Partials) > 0 {
		item.SetReview(fmt.Sprintf(
			"Export %s still downloading: %s",
			exp.Name, strings.Join(exp.Partials, ", "),
		))
		return nil
	}
	if corrupted := exp.CorruptedParts(); len(corrupted) > 0 {
		item.SetReview(fmt.Sprintf(
			"Export %s has corrupted archives: %s",
			exp.Name, strings.Join(corrupted, ", "),
		))
		return nil
	}

	fingerprint := takeout.Fingerprint(exp)
	item.Fingerprint = fingerprint
	if flagged, err := i.flagDuplicate(ctx, logger, item, fingerprint); err != nil {
		return err
	} else if flagged {
		return nil
	}

	item.SetProgress("Inspecting", "Listing archive contents", 50)
	files, err := takeout.ListExport(exp)
	if err != nil {
		return services.Wrap(services.ErrValidation, "inspect", "list archives", "Failed to list archive contents", err)
	}

	encoded, err := stage.EncodeParts(exp.Parts)
	if err != nil {
		return services.Wrap(services.ErrTransient, "inspect", "encode parts", "Failed to encode archive part list", err)
	}
	item.PartsJSON = encoded
	item.HasPhotos = exp.HasGooglePhotos

	archives := make([]manifest.Archive, 0, len(exp.Parts))
	for _, part := range exp.Parts {
		archives = append(archives, manifest.Archive{Name: part.Name, Size: part.Size})
	}
	var rec *manifest.Record
	if exp.HasGooglePhotos {
		rec = manifest.NewArchiveImport(i.cfg.Paths.MetadataDir, exp.Name, archives, files)
	} else {
		dest := filepath.Join(i.cfg.Paths.ExtractDir, exp.Name)
		rec = manifest.NewExtraction(i.cfg.Paths.MetadataDir, exp.Name, archives, files, dest)
	}
	if err := rec.Save(); err != nil {
		return services.Wrap(services.ErrTransient, "inspect", "save record", "Failed to persist metadata record", err)
	}
	item.RecordPath = rec.Path()
	if rec.ImportLog != "" {
		item.ImportLogPath = filepath.Join(i.cfg.Paths.MetadataDir, rec.ImportLog)
	}

	logger.Info(
		"export inspected",
		logging.String(logging.FieldEventType, "export_inspected"),
		logging.Int("parts", len(exp.Parts)),
		logging.Int("files", len(files)),
		logging.Int64("total_size", exp.TotalSize()),
		logging.Bool("has_google_photos", exp.HasGooglePhotos),
		logging.String("fingerprint", fingerprint),
	)
	if i.notifier != nil {
		if err := i.notifier.NotifyExportDetected(ctx, exp.Name, len(exp.Parts), exp.TotalSize()); err != nil {
			logger.Warn("export detected notification failed", logging.Error(err))
		}
	}

	item.SetProgressComplete("Inspected", fmt.Sprintf("%d files across %d archives", len(files), len(exp.Parts)))
	return nil
}

func (i *Inspector) inspectFolder(ctx context.Context, logger *slog.Logger, item *queue.Item) error {
	root := strings.TrimSpace(item.SourcePath)
	if root == "" {
		return services.Wrap(services.ErrValidation, "inspect", "resolve folder", "Folder source has no path", nil)
	}
	files, err := takeout.ListFolder(root)
	if err != nil {
		return services.Wrap(services.ErrValidation, "inspect", "list folder", fmt.Sprintf("Failed to read folder %s", root), err)
	}
	if len(files) == 0 {
		item.SetReview(fmt.Sprintf("Folder %s contains no files", root))
		return nil
	}

	fingerprint, err := takeout.FolderFingerprint(root)
	if err != nil {
		return services.Wrap(services.ErrTransient, "inspect", "fingerprint folder", "Failed to fingerprint folder", err)
	}
	item.Fingerprint = fingerprint
	if flagged, err := i.flagDuplicate(ctx, logger, item, fingerprint); err != nil {
		return err
	} else if flagged {
		return nil
	}

	importType := manifest.TypeFolderImport
	if item.SourceType == queue.SourceSDCard {
		importType = manifest.TypeSDImport
	}
	tag := ImportTag(i.cfg.Imports.TagPrefix, item.DeviceLabel, i.now())
	rec := manifest.NewFolderImport(i.cfg.Paths.MetadataDir, importType, item.SourceType, root, files, tag, item.DeviceLabel)
	if err := rec.Save(); err != nil {
		return services.Wrap(services.ErrTransient, "inspect", "save record", "Failed to persist metadata record", err)
	}
	item.HasPhotos = true
	item.RecordPath = rec.Path()
	item.ImportLogPath = filepath.Join(i.cfg.Paths.MetadataDir, rec.ImportLog)

	logger.Info(
		"folder inspected",
		logging.String(logging.FieldEventType, "folder_inspected"),
		logging.Int("files", len(files)),
		logging.Int64("total_size", rec.TotalSize),
		logging.String("tag", tag),
		logging.String("fingerprint", fingerprint),
	)
	if item.SourceType == queue.SourceSDCard && i.notifier != nil {
		if err := i.notifier.NotifyDeviceDetected(ctx, item.DeviceLabel); err != nil {
			logger.Warn("device detected notification failed", logging.Error(err))
		}
	}

	item.SetProgressComplete("Inspected", fmt.Sprintf("%d files staged for import", len(files)))
	return nil
}

// flagDuplicate routes the item to review when another queue item already
// carries the same fingerprint.
func (i *Inspector) flagDuplicate(ctx context.Context, logger *slog.Logger, item *queue.Item, fingerprint string) (bool, error) {
	if fingerprint == "" {
		return false, nil
	}
	found, err := i.store.FindByFingerprint(ctx, fingerprint)
	if err != nil {
		return false, services.Wrap(services.ErrTransient, "inspect", "lookup fingerprint", "Failed to query existing fingerprints", err)
	}
	if found == nil || found.ID == item.ID {
		return false, nil
	}
	logger.Info(
		"duplicate source fingerprint detected",
		logging.Int64("existing_item_id", found.ID),
		logging.String("fingerprint", fingerprint),
	)
	item.SetReview(fmt.Sprintf("Source already queued or imported as item #%d", found.ID))
	return true, nil
}

// ImportTag builds the Immich tag applied to folder and removable-device
// imports: prefix, optional device label, and the import date.
func ImportTag(prefix, deviceLabel string, when time.Time) string {
	parts := make([]string, 0, 3)
	if p := strings.TrimSpace(prefix); p != "" {
		parts = append(parts, p)
	}
	if label := strings.TrimSpace(deviceLabel); label != "" {
		parts = append(parts, label)
	}
	parts = append(parts, when.Format("2006-01-02"))
	return strings.Join(parts, "/")
}

func findExport(exports []takeout.Export, name string) *takeout.Export {
	for idx := range exports {
		if exports[idx].Name == name {
			return &exports[idx]
		}
	}
	return nil
}
