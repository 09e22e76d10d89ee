package config

const (
	defaultIncomingDir              = "~/takeout/incoming"
	defaultExtractDir               = "~/takeout/extracted"
	defaultMetadataDir              = "~/takeout/metadata"
	defaultStateDir                 = "~/.local/share/carousel"
	defaultLogDir                   = "~/.local/share/carousel/logs"
	defaultReviewDir                = "~/takeout/review"
	defaultAPIBind                  = "127.0.0.1:7485"
	defaultLogRetentionDays         = 60
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
	defaultRcloneRemote             = "gdrive:Takeout"
	defaultRcloneTransfers          = 4
	defaultRcloneCheckers           = 16
	defaultRcloneSyncInterval       = 360
	defaultRcloneMoveTimeout        = 21600
	defaultBackupTransfers          = 8
	defaultImmichRequestTimeout     = 30
	defaultImmichGoMaxAttempts      = 3
	defaultImmichGoRetryDelay       = 30
	defaultImmichGoUploadTimeout    = 43200
	defaultImportFilterGlob         = "takeout-*.zip"
	defaultImportTagPrefix          = "import"
	defaultImportFreeSpaceMinGiB    = 20
	defaultSDCardLabelGlob          = "*"
	defaultSDCardMountBase          = "/media"
	defaultExportsStateFile         = "~/.config/carousel/albums.yaml"
	defaultNotifyRequestTimeout     = 10
	defaultNotifyDedupWindowSeconds = 600
	defaultWorkflowPollInterval     = 5
	defaultWorkflowErrorRetry       = 10
	defaultHeartbeatInterval        = 15
	defaultHeartbeatTimeout         = 120
	defaultWatcherDebounceSeconds   = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			IncomingDir: defaultIncomingDir,
			ExtractDir:  defaultExtractDir,
			MetadataDir: defaultMetadataDir,
			StateDir:    defaultStateDir,
			LogDir:      defaultLogDir,
			ReviewDir:   defaultReviewDir,
			APIBind:     defaultAPIBind,
		},
		Rclone: Rclone{
			Enabled:      true,
			Remote:       defaultRcloneRemote,
			Transfers:    defaultRcloneTransfers,
			Checkers:     defaultRcloneCheckers,
			SyncInterval: defaultRcloneSyncInterval,
			MoveTimeout:  defaultRcloneMoveTimeout,
		},
		Immich: Immich{
			RequestTimeout: defaultImmichRequestTimeout,
			ResumeJobs:     true,
		},
		ImmichGo: ImmichGo{
			MaxAttempts:   defaultImmichGoMaxAttempts,
			RetryDelay:    defaultImmichGoRetryDelay,
			UploadTimeout: defaultImmichGoUploadTimeout,
			SessionTag:    true,
			PeopleTag:     true,
			TakeoutTag:    true,
			SyncAlbums:    true,
		},
		Imports: Imports{
			FilterGlob:        defaultImportFilterGlob,
			TagPrefix:         defaultImportTagPrefix,
			DeleteAfterImport: true,
			FreeSpaceMinGiB:   defaultImportFreeSpaceMinGiB,
		},
		SDCard: SDCard{
			LabelGlob: defaultSDCardLabelGlob,
			MountBase: defaultSDCardMountBase,
		},
		Exports: Exports{
			StateFile: defaultExportsStateFile,
		},
		Notifications: Notifications{
			RequestTimeout:     defaultNotifyRequestTimeout,
			Sync:               true,
			Import:             true,
			Extraction:         true,
			Queue:              true,
			Review:             true,
			Errors:             true,
			DedupWindowSeconds: defaultNotifyDedupWindowSeconds,
		},
		Workflow: Workflow{
			QueuePollInterval:      defaultWorkflowPollInterval,
			ErrorRetryInterval:     defaultWorkflowErrorRetry,
			HeartbeatInterval:      defaultHeartbeatInterval,
			HeartbeatTimeout:       defaultHeartbeatTimeout,
			WatcherDebounceSeconds: defaultWatcherDebounceSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
