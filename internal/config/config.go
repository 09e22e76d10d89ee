package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	IncomingDir string `toml:"incoming_dir"`
	ExtractDir  string `toml:"extract_dir"`
	MetadataDir string `toml:"metadata_dir"`
	StateDir    string `toml:"state_dir"`
	LogDir      string `toml:"log_dir"`
	ReviewDir   string `toml:"review_dir"`
	APIBind     string `toml:"api_bind"`
}

// Rclone contains configuration for pulling Takeout exports from the remote
// and the optional whole-drive mirror job.
type Rclone struct {
	Enabled       bool   `toml:"enabled"`
	Remote        string `toml:"remote"`
	Transfers     int    `toml:"transfers"`
	Checkers      int    `toml:"checkers"`
	SyncInterval  int    `toml:"sync_interval"`
	MoveTimeout   int    `toml:"move_timeout"`
	BackupEnabled bool   `toml:"backup_enabled"`
	BackupRemote  string `toml:"backup_remote"`
	BackupDir     string `toml:"backup_dir"`
}

// Immich contains connection settings for the Immich server REST API.
type Immich struct {
	URL            string `toml:"url"`
	APIKey         string `toml:"api_key"`
	APIKeyFile     string `toml:"api_key_file"`
	RequestTimeout int    `toml:"request_timeout"`
	ResumeJobs     bool   `toml:"resume_jobs"`
}

// ImmichGo contains settings for the immich-go upload tool.
type ImmichGo struct {
	Binary        string `toml:"binary"`
	MaxAttempts   int    `toml:"max_attempts"`
	RetryDelay    int    `toml:"retry_delay"`
	UploadTimeout int    `toml:"upload_timeout"`
	SessionTag    bool   `toml:"session_tag"`
	PeopleTag     bool   `toml:"people_tag"`
	TakeoutTag    bool   `toml:"takeout_tag"`
	SyncAlbums    bool   `toml:"sync_albums"`
}

// Imports contains settings for archive discovery and post-import handling.
type Imports struct {
	FilterGlob           string `toml:"filter_glob"`
	TagPrefix            string `toml:"tag_prefix"`
	DeleteAfterImport    bool   `toml:"delete_after_import"`
	CopySkippedForReview bool   `toml:"copy_skipped_for_review"`
	FreeSpaceMinGiB      int    `toml:"free_space_min_gib"`
}

// SDCard contains settings for removable-media imports.
type SDCard struct {
	Enabled   bool   `toml:"enabled"`
	LabelGlob string `toml:"label_glob"`
	MountBase string `toml:"mount_base"`
}

// Exports contains settings for Takeout export planning.
type Exports struct {
	StateFile string   `toml:"state_file"`
	Albums    []string `toml:"albums"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic          string `toml:"ntfy_topic"`
	RequestTimeout     int    `toml:"request_timeout"`
	Sync               bool   `toml:"sync"`
	Import             bool   `toml:"import"`
	Extraction         bool   `toml:"extraction"`
	Queue              bool   `toml:"queue"`
	Review             bool   `toml:"review"`
	Errors             bool   `toml:"errors"`
	DedupWindowSeconds int    `toml:"dedup_window_seconds"`
}

// Workflow contains configuration for daemon timing and intervals.
type Workflow struct {
	QueuePollInterval      int `toml:"queue_poll_interval"`
	ErrorRetryInterval     int `toml:"error_retry_interval"`
	HeartbeatInterval      int `toml:"heartbeat_interval"`
	HeartbeatTimeout       int `toml:"heartbeat_timeout"`
	WatcherDebounceSeconds int `toml:"watcher_debounce_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for Carousel.
//
// Configuration sections by subsystem:
//   - Paths: directories and API bind address
//   - Rclone: Takeout pull from Google Drive and the optional drive mirror
//   - Immich: server connection used for job control and health checks
//   - ImmichGo: upload tool invocation, retries, and tagging toggles
//   - Imports: archive discovery filters and post-import disposal
//   - SDCard: removable-media import matching
//   - Exports: Takeout export planning state
//   - Notifications: ntfy push notification settings
//   - Workflow: daemon polling intervals and timeouts
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Rclone        Rclone        `toml:"rclone"`
	Immich        Immich        `toml:"immich"`
	ImmichGo      ImmichGo      `toml:"immich_go"`
	Imports       Imports       `toml:"imports"`
	SDCard        SDCard        `toml:"sdcard"`
	Exports       Exports       `toml:"exports"`
	Notifications Notifications `toml:"notifications"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/carousel/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/carousel/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("carousel.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// The incoming directory is created on a best-effort basis so the daemon
// can start while external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir, c.Paths.MetadataDir, c.Paths.ExtractDir, c.Paths.ReviewDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.IncomingDir) != "" {
		// Best-effort to avoid failing config load when storage is offline.
		_ = os.MkdirAll(c.Paths.IncomingDir, 0o755)
	}
	if c.Rclone.BackupEnabled && strings.TrimSpace(c.Rclone.BackupDir) != "" {
		if err := os.MkdirAll(c.Rclone.BackupDir, 0o755); err != nil {
			return fmt.Errorf("create backup directory %q: %w", c.Rclone.BackupDir, err)
		}
	}
	return nil
}

// RcloneBinary returns the rclone executable name.
func (c *Config) RcloneBinary() string {
	return "rclone"
}

// ImmichGoBinary returns the immich-go executable name.
func (c *Config) ImmichGoBinary() string {
	if bin := strings.TrimSpace(c.ImmichGo.Binary); bin != "" {
		return bin
	}
	return "immich-go"
}

// ImmichAPIKey resolves the Immich API key from config or the configured key file.
// Environment fallback (IMMICH_API_KEY) is applied during normalization.
func (c *Config) ImmichAPIKey() (string, error) {
	if key := strings.TrimSpace(c.Immich.APIKey); key != "" {
		return key, nil
	}
	if file := strings.TrimSpace(c.Immich.APIKeyFile); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read immich api key file: %w", err)
		}
		if key := strings.TrimSpace(string(data)); key != "" {
			return key, nil
		}
	}
	return "", errors.New("immich api key is not configured")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
