package daemon

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"carousel/internal/config"
	"carousel/internal/logging"
	"carousel/internal/notifications"
	"carousel/internal/services/rclone"
)

// syncScheduler periodically pulls new Takeout exports off the remote
// and optionally mirrors the rest of the drive.
type syncScheduler struct {
	cfg      *config.Config
	daemon   *Daemon
	logger   *slog.Logger
	notifier notifications.Service
	client   rclone.Syncer

	interval time.Duration

	mu      sync.Mutex
	quit    chan struct{}
	running bool
}

func newSyncScheduler(cfg *config.Config, d *Daemon, logger *slog.Logger, notifier notifications.Service) *syncScheduler {
	return &syncScheduler{
		cfg:      cfg,
		daemon:   d,
		logger:   logging.NewComponentLogger(logger, "sync-scheduler"),
		notifier: notifier,
		interval: time.Duration(cfg.Rclone.SyncInterval) * time.Minute,
	}
}

func (s *syncScheduler) start(ctx context.Context) {
	if !s.cfg.Rclone.Enabled {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	if s.client == nil {
		client, err := rclone.New(s.cfg.RcloneBinary(), s.cfg.Rclone.Transfers, s.cfg.Rclone.Checkers, s.cfg.Rclone.MoveTimeout)
		if err != nil {
			s.logger.Warn("rclone unavailable; sync scheduler disabled", logging.Error(err))
			return
		}
		s.client = client
	}

	s.quit = make(chan struct{})
	s.running = true
	go s.loop(ctx, s.quit)
	s.logger.Info("sync scheduler started",
		logging.String("remote", s.cfg.Rclone.Remote),
		logging.String("interval", s.interval.String()))
}

func (s *syncScheduler) loop(ctx context.Context, quit <-chan struct{}) {
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-quit:
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *syncScheduler) runOnce(ctx context.Context) {
	start := time.Now()
	progress := func(update rclone.ProgressUpdate) {
		s.logger.Debug("sync progress",
			logging.String(logging.FieldProgressMessage, update.Transferred),
			logging.String("speed", update.Speed),
			logging.String("eta", update.ETA))
	}

	if err := s.client.Move(ctx, s.cfg.Rclone.Remote, s.cfg.Paths.IncomingDir, progress); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("takeout pull failed", logging.Error(err))
		if notifyErr := s.notifier.NotifyError(ctx, err, "rclone sync"); notifyErr != nil {
			s.logger.Warn("failed to send error notification", logging.Error(notifyErr))
		}
		return
	}
	duration := time.Since(start)
	s.logger.Info("takeout pull completed",
		logging.String(logging.FieldEventType, "sync_completed"),
		logging.String("remote", s.cfg.Rclone.Remote),
		logging.String("duration", duration.Round(time.Second).String()))
	if err := s.notifier.NotifySyncCompleted(ctx, s.cfg.Rclone.Remote, duration); err != nil {
		s.logger.Warn("failed to send sync notification", logging.Error(err))
	}

	if _, err := s.daemon.ScanIncoming(ctx); err != nil {
		s.logger.Warn("post-sync scan failed", logging.Error(err))
	}

	if s.cfg.Rclone.BackupEnabled {
		if err := s.client.Sync(ctx, s.cfg.Rclone.BackupRemote, s.cfg.Rclone.BackupDir, progress); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("drive mirror failed", logging.Error(err))
			return
		}
		s.logger.Info("drive mirror completed",
			logging.String("remote", s.cfg.Rclone.BackupRemote))
	}
}

func (s *syncScheduler) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	close(s.quit)
	s.running = false
}
