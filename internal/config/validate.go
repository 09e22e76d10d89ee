package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateRclone(); err != nil {
		return err
	}
	if err := c.validateImmich(); err != nil {
		return err
	}
	if err := c.validateImmichGo(); err != nil {
		return err
	}
	if err := c.validateImports(); err != nil {
		return err
	}
	if err := c.validateSDCard(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.IncomingDir) == "" {
		return errors.New("paths.incoming_dir is required")
	}
	if strings.TrimSpace(c.Paths.ExtractDir) == "" {
		return errors.New("paths.extract_dir is required")
	}
	if strings.TrimSpace(c.Paths.MetadataDir) == "" {
		return errors.New("paths.metadata_dir is required")
	}
	return nil
}

func (c *Config) validateRclone() error {
	if !c.Rclone.Enabled {
		return nil
	}
	if !strings.Contains(c.Rclone.Remote, ":") {
		return fmt.Errorf("rclone.remote %q must name a remote (remote:path)", c.Rclone.Remote)
	}
	if c.Rclone.BackupEnabled {
		if !strings.Contains(c.Rclone.BackupRemote, ":") {
			return fmt.Errorf("rclone.backup_remote %q must name a remote (remote:path)", c.Rclone.BackupRemote)
		}
		if c.Rclone.BackupDir == "" {
			return errors.New("rclone.backup_dir is required when backup is enabled")
		}
	}
	return nil
}

func (c *Config) validateImmich() error {
	if strings.TrimSpace(c.Immich.URL) == "" {
		return errors.New("immich.url is required")
	}
	if strings.TrimSpace(c.Immich.APIKey) == "" && strings.TrimSpace(c.Immich.APIKeyFile) == "" {
		return errors.New("immich.api_key or immich.api_key_file is required (or set IMMICH_API_KEY)")
	}
	return nil
}

func (c *Config) validateImmichGo() error {
	if c.ImmichGo.MaxAttempts <= 0 {
		return errors.New("immich_go.max_attempts must be positive")
	}
	if c.ImmichGo.RetryDelay <= 0 {
		return errors.New("immich_go.retry_delay must be positive")
	}
	if c.ImmichGo.UploadTimeout <= 0 {
		return errors.New("immich_go.upload_timeout must be positive")
	}
	return nil
}

func (c *Config) validateImports() error {
	if !doublestar.ValidatePattern(c.Imports.FilterGlob) {
		return fmt.Errorf("imports.filter_glob %q is not a valid pattern", c.Imports.FilterGlob)
	}
	return nil
}

func (c *Config) validateSDCard() error {
	if !c.SDCard.Enabled {
		return nil
	}
	if !doublestar.ValidatePattern(c.SDCard.LabelGlob) {
		return fmt.Errorf("sdcard.label_glob %q is not a valid pattern", c.SDCard.LabelGlob)
	}
	if strings.TrimSpace(c.SDCard.MountBase) == "" {
		return errors.New("sdcard.mount_base is required when sdcard imports are enabled")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.QueuePollInterval <= 0 {
		return errors.New("workflow.queue_poll_interval must be positive")
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		return errors.New("workflow.error_retry_interval must be positive")
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must exceed workflow.heartbeat_interval")
	}
	if c.Workflow.WatcherDebounceSeconds < 0 {
		return errors.New("workflow.watcher_debounce_seconds must not be negative")
	}
	return nil
}
