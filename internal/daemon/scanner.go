package daemon

import (
	"context"
	"fmt"

	"carousel/internal/logging"
	"carousel/internal/queue"
	"carousel/internal/stage"
	"carousel/internal/takeout"
)

// ScanIncoming walks the incoming directory for completed export groups
// and enqueues any that are not already known by fingerprint. It returns
// the number of newly queued items.
func (d *Daemon) ScanIncoming(ctx context.Context) (int, error) {
	exports, err := takeout.Scan(d.cfg.Paths.IncomingDir, d.cfg.Imports.FilterGlob)
	if err != nil {
		return 0, fmt.Errorf("scan incoming: %w", err)
	}

	queued := 0
	for i := range exports {
		exp := &exports[i]
		if !exp.Complete() {
			d.logger.Debug("export not ready",
				logging.String("export", exp.Name),
				logging.Int("partials", len(exp.Partials)),
				logging.Int("corrupted", len(exp.CorruptedParts())))
			continue
		}

		fingerprint := takeout.Fingerprint(exp)
		existing, err := d.store.FindByFingerprint(ctx, fingerprint)
		if err != nil {
			return queued, fmt.Errorf("fingerprint lookup: %w", err)
		}
		if existing != nil {
			continue
		}

		partsJSON, err := stage.EncodeParts(exp.Parts)
		if err != nil {
			d.logger.Warn("failed to encode export parts",
				logging.String("export", exp.Name), logging.Error(err))
			continue
		}
		item, err := d.store.NewExport(ctx, exp.Name, sourceTypeFor(exp), exp.Dir, fingerprint, partsJSON)
		if err != nil {
			d.logger.Warn("failed to enqueue export",
				logging.String("export", exp.Name), logging.Error(err))
			continue
		}
		queued++
		d.logger.Info("export queued",
			logging.String(logging.FieldEventType, "export_queued"),
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String("export", exp.Name),
			logging.Int("parts", len(exp.Parts)),
			logging.Int64("total_size", exp.TotalSize()))
	}
	return queued, nil
}

// sourceTypeFor distinguishes grouped Takeout exports from standalone
// archives that happen to match the filter glob.
func sourceTypeFor(exp *takeout.Export) string {
	if len(exp.Parts) == 1 && exp.Parts[0].Name == exp.Name+".zip" {
		return queue.SourceArchive
	}
	return queue.SourceTakeout
}
