package preflight

import (
	"context"

	"carousel/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Incoming directory", cfg.Paths.IncomingDir),
		CheckDirectoryAccess("Extract directory", cfg.Paths.ExtractDir),
		CheckDirectoryAccess("Metadata directory", cfg.Paths.MetadataDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("Review directory", cfg.Paths.ReviewDir),
	}

	if cfg.Imports.FreeSpaceMinGiB > 0 {
		results = append(results, CheckFreeSpace("Free space", cfg.Paths.ExtractDir, cfg.Imports.FreeSpaceMinGiB))
	}

	apiKey, err := cfg.ImmichAPIKey()
	if err != nil {
		results = append(results, Result{Name: "Immich", Detail: err.Error()})
	} else {
		results = append(results, CheckImmich(ctx, cfg.Immich.URL, apiKey))
	}

	return results
}
