package preflight

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"carousel/internal/config"
	"carousel/internal/sdcard"
	"carousel/internal/services/rclone"
)

// CheckImmichFromConfig evaluates Immich status from config and connectivity.
func CheckImmichFromConfig(cfg *config.Config) Result {
	const name = "Immich"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if strings.TrimSpace(cfg.Immich.URL) == "" {
		return Result{Name: name, Detail: "Missing URL"}
	}
	apiKey, err := cfg.ImmichAPIKey()
	if err != nil {
		return Result{Name: name, Detail: "Missing API key"}
	}
	check := CheckImmich(context.Background(), cfg.Immich.URL, apiKey)
	if check.Passed {
		return Result{Name: name, Passed: true, Detail: check.Detail}
	}
	return Result{Name: name, Detail: check.Detail}
}

// CheckRcloneFromConfig evaluates rclone status from config and binary availability.
func CheckRcloneFromConfig(cfg *config.Config) Result {
	const name = "Rclone"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if !cfg.Rclone.Enabled {
		return Result{Name: name, Detail: "Disabled"}
	}
	if strings.TrimSpace(cfg.Rclone.Remote) == "" {
		return Result{Name: name, Detail: "Missing remote"}
	}
	client, err := rclone.New(cfg.RcloneBinary(), cfg.Rclone.Transfers, cfg.Rclone.Checkers, cfg.Rclone.MoveTimeout)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	version, err := client.Version(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("version check failed (%v)", err)}
	}
	return Result{Name: name, Passed: true, Detail: version}
}

// MediaProbe reports the current removable-media detection snapshot.
type MediaProbe struct {
	Detected bool
	Device   string
	Label    string
}

// ProbeMedia scans attached block devices via lsblk for a removable
// partition whose filesystem label matches the configured glob.
func ProbeMedia(labelGlob string) MediaProbe {
	labelGlob = strings.TrimSpace(labelGlob)
	if labelGlob == "" {
		return MediaProbe{}
	}
	if _, err := exec.LookPath("lsblk"); err != nil {
		return MediaProbe{}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "lsblk", "-nro", "PATH,LABEL,RM,TYPE")
	output, err := cmd.Output()
	if err != nil {
		return MediaProbe{}
	}
	return matchMediaLine(string(output), labelGlob)
}

func matchMediaLine(output, labelGlob string) MediaProbe {
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		// Raw lsblk output separates columns with single spaces and leaves
		// empty values blank, so a plain Fields split would misalign rows
		// without a label.
		fields := strings.Split(strings.TrimSpace(line), " ")
		if len(fields) != 4 {
			continue
		}
		node, label, removable, devType := fields[0], fields[1], fields[2], fields[3]
		if devType != "part" || removable != "1" || label == "" {
			continue
		}
		if !sdcard.MatchLabel(labelGlob, label) {
			continue
		}
		return MediaProbe{Detected: true, Device: node, Label: label}
	}
	return MediaProbe{}
}

// MediaDetail renders a display-friendly summary for status UIs.
func (p MediaProbe) MediaDetail() string {
	if !p.Detected {
		return "No removable media detected"
	}
	return fmt.Sprintf("Card '%s' on %s", p.Label, p.Device)
}
