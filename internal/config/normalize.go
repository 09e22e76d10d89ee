package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRclone()
	if err := c.normalizeImmich(); err != nil {
		return err
	}
	c.normalizeImmichGo()
	c.normalizeImports()
	c.normalizeSDCard()
	if err := c.normalizeExports(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.IncomingDir, err = expandPath(c.Paths.IncomingDir); err != nil {
		return fmt.Errorf("paths.incoming_dir: %w", err)
	}
	if c.Paths.ExtractDir, err = expandPath(c.Paths.ExtractDir); err != nil {
		return fmt.Errorf("paths.extract_dir: %w", err)
	}
	if c.Paths.MetadataDir, err = expandPath(c.Paths.MetadataDir); err != nil {
		return fmt.Errorf("paths.metadata_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.ReviewDir, err = expandPath(c.Paths.ReviewDir); err != nil {
		return fmt.Errorf("paths.review_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeRclone() {
	c.Rclone.Remote = strings.TrimSpace(c.Rclone.Remote)
	if c.Rclone.Remote == "" {
		c.Rclone.Remote = defaultRcloneRemote
	}
	if c.Rclone.Transfers <= 0 {
		c.Rclone.Transfers = defaultRcloneTransfers
	}
	if c.Rclone.Checkers <= 0 {
		c.Rclone.Checkers = defaultRcloneCheckers
	}
	if c.Rclone.SyncInterval <= 0 {
		c.Rclone.SyncInterval = defaultRcloneSyncInterval
	}
	if c.Rclone.MoveTimeout <= 0 {
		c.Rclone.MoveTimeout = defaultRcloneMoveTimeout
	}
	c.Rclone.BackupRemote = strings.TrimSpace(c.Rclone.BackupRemote)
	c.Rclone.BackupDir = strings.TrimSpace(c.Rclone.BackupDir)
	if c.Rclone.BackupDir != "" {
		if expanded, err := expandPath(c.Rclone.BackupDir); err == nil {
			c.Rclone.BackupDir = expanded
		}
	}
}

func (c *Config) normalizeImmich() error {
	c.Immich.URL = strings.TrimRight(strings.TrimSpace(c.Immich.URL), "/")
	c.Immich.APIKey = strings.TrimSpace(c.Immich.APIKey)
	if c.Immich.APIKey == "" {
		if value, ok := os.LookupEnv("IMMICH_API_KEY"); ok {
			c.Immich.APIKey = strings.TrimSpace(value)
		}
	}
	if file := strings.TrimSpace(c.Immich.APIKeyFile); file != "" {
		expanded, err := expandPath(file)
		if err != nil {
			return fmt.Errorf("immich.api_key_file: %w", err)
		}
		c.Immich.APIKeyFile = expanded
	}
	if c.Immich.RequestTimeout <= 0 {
		c.Immich.RequestTimeout = defaultImmichRequestTimeout
	}
	return nil
}

func (c *Config) normalizeImmichGo() {
	c.ImmichGo.Binary = strings.TrimSpace(c.ImmichGo.Binary)
	if c.ImmichGo.MaxAttempts <= 0 {
		c.ImmichGo.MaxAttempts = defaultImmichGoMaxAttempts
	}
	if c.ImmichGo.RetryDelay <= 0 {
		c.ImmichGo.RetryDelay = defaultImmichGoRetryDelay
	}
	if c.ImmichGo.UploadTimeout <= 0 {
		c.ImmichGo.UploadTimeout = defaultImmichGoUploadTimeout
	}
}

func (c *Config) normalizeImports() {
	c.Imports.FilterGlob = strings.TrimSpace(c.Imports.FilterGlob)
	if c.Imports.FilterGlob == "" {
		c.Imports.FilterGlob = defaultImportFilterGlob
	}
	c.Imports.TagPrefix = strings.Trim(strings.TrimSpace(c.Imports.TagPrefix), "/")
	if c.Imports.TagPrefix == "" {
		c.Imports.TagPrefix = defaultImportTagPrefix
	}
	if c.Imports.FreeSpaceMinGiB < 0 {
		c.Imports.FreeSpaceMinGiB = 0
	}
}

func (c *Config) normalizeSDCard() {
	c.SDCard.LabelGlob = strings.TrimSpace(c.SDCard.LabelGlob)
	if c.SDCard.LabelGlob == "" {
		c.SDCard.LabelGlob = defaultSDCardLabelGlob
	}
	c.SDCard.MountBase = strings.TrimSpace(c.SDCard.MountBase)
	if c.SDCard.MountBase == "" {
		c.SDCard.MountBase = defaultSDCardMountBase
	}
}

func (c *Config) normalizeExports() error {
	if strings.TrimSpace(c.Exports.StateFile) == "" {
		c.Exports.StateFile = defaultExportsStateFile
	}
	expanded, err := expandPath(c.Exports.StateFile)
	if err != nil {
		return fmt.Errorf("exports.state_file: %w", err)
	}
	c.Exports.StateFile = expanded

	albums := make([]string, 0, len(c.Exports.Albums))
	seen := make(map[string]struct{}, len(c.Exports.Albums))
	for _, album := range c.Exports.Albums {
		trimmed := strings.TrimSpace(album)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		albums = append(albums, trimmed)
	}
	c.Exports.Albums = albums
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
	if c.Notifications.DedupWindowSeconds < 0 {
		c.Notifications.DedupWindowSeconds = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
