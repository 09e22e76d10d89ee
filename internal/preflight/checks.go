package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"carousel/internal/config"
	"carousel/internal/deps"
	"carousel/internal/services/immich"
)

// CheckImmich verifies Immich connectivity and authentication.
func CheckImmich(ctx context.Context, baseURL, apiKey string) Result {
	const name = "Immich"

	if strings.TrimSpace(baseURL) == "" {
		return Result{Name: name, Detail: "missing url"}
	}
	if strings.TrimSpace(apiKey) == "" {
		return Result{Name: name, Detail: "missing api key"}
	}

	client, err := immich.New(baseURL, apiKey, 5, nil)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizePingError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies the filesystem holding path has at least minGiB
// gibibytes available. Archive extraction roughly doubles the on-disk
// footprint of an export, so the daemon refuses to start a run without
// headroom.
func CheckFreeSpace(name, path string, minGiB int) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	required := uint64(minGiB) << 30
	if free < required {
		return Result{Name: name, Detail: fmt.Sprintf("%s free on %s (minimum %d GiB)", humanize.IBytes(free), path, minGiB)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s free on %s", humanize.IBytes(free), path)}
}

// CheckSystemDeps evaluates all system-level dependencies for the given config.
// Both the daemon and the CLI status command use this to avoid duplicating
// the requirements list.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "immich-go",
			Command:     cfg.ImmichGoBinary(),
			Description: "Required for uploading Google Photos content to Immich",
		},
		{
			Name:        "rclone",
			Command:     cfg.RcloneBinary(),
			Description: "Required for pulling Takeout exports from Google Drive",
			Optional:    !cfg.Rclone.Enabled,
		},
	}
	return deps.CheckBinaries(requirements)
}

// summarizePingError produces a human-readable summary for Immich ping failures.
func summarizePingError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "ping timed out (Immich unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "ping timed out (Immich unreachable)"
	}
	return err.Error()
}
