package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"

	"carousel/internal/config"
	"carousel/internal/deps"
	"carousel/internal/logging"
	"carousel/internal/notifications"
	"carousel/internal/preflight"
	"carousel/internal/queue"
	"carousel/internal/workflow"
)

// Daemon coordinates the background processing services and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	notifier notifications.Service
	logPath  string

	lockPath string
	lock     *flock.Flock

	watcher *incomingWatcher
	syncer  *syncScheduler
	media   *mediaMonitor
	api     *apiServer

	logStream  *logging.StreamHub
	logArchive *logging.EventArchive

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	Dependencies []deps.Status
	QueueDBPath  string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}

	lockPath := filepath.Join(cfg.Paths.StateDir, "carouseld.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		workflow: wf,
		notifier: notifications.NewService(cfg),
		logPath:  filepath.Join(cfg.Paths.LogDir, "carousel.log"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.watcher = newIncomingWatcher(cfg, d, logger)
	d.syncer = newSyncScheduler(cfg, d, logger, d.notifier)
	d.media = newMediaMonitor(cfg, store, logger)
	return d, nil
}

// SetLogStream wires the in-memory log buffer and on-disk archive that
// back the HTTP log endpoint.
func (d *Daemon) SetLogStream(hub *logging.StreamHub, archive *logging.EventArchive) {
	d.logStream = hub
	d.logArchive = archive
}

// Start launches the background services and acquires the daemon lock.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another carousel daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.workflow.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start workflow: %w", err)
	}

	if err := d.watcher.start(d.ctx); err != nil {
		d.logger.Warn("incoming watcher unavailable", logging.Error(err))
	}
	d.syncer.start(d.ctx)
	d.media.start(d.ctx)

	srv, err := newAPIServer(d.cfg, d, d.logger)
	if err != nil {
		d.logger.Warn("api server unavailable", logging.Error(err))
	} else if srv != nil {
		if err := srv.start(d.ctx); err != nil {
			d.logger.Warn("api server failed to start", logging.Error(err))
		} else {
			d.api = srv
		}
	}

	// Pick up anything already sitting in the incoming directory.
	if _, err := d.ScanIncoming(d.ctx); err != nil {
		d.logger.Warn("initial incoming scan failed", logging.Error(err))
	}

	d.running.Store(true)
	d.logger.Info("carousel daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.api != nil {
		d.api.stop()
		d.api = nil
	}
	d.media.stop()
	d.syncer.stop()
	d.watcher.stop()
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("carousel daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// ListQueue returns queue items filtered by optional statuses.
func (d *Daemon) ListQueue(ctx context.Context, statuses []queue.Status) ([]*queue.Item, error) {
	if d.store == nil {
		return nil, errors.New("queue store unavailable")
	}
	if len(statuses) == 0 {
		return d.store.List(ctx)
	}
	return d.store.List(ctx, statuses...)
}

// GetQueueItem fetches a single queue item by id.
func (d *Daemon) GetQueueItem(ctx context.Context, id int64) (*queue.Item, error) {
	if d.store == nil {
		return nil, errors.New("queue store unavailable")
	}
	return d.store.GetByID(ctx, id)
}

// ClearQueue removes all queue items.
func (d *Daemon) ClearQueue(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.Clear(ctx)
}

// ClearCompleted removes only completed queue items.
func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.ClearCompleted(ctx)
}

// ClearFailed removes only failed queue items.
func (d *Daemon) ClearFailed(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.ClearFailed(ctx)
}

// ResetStuck transitions in-flight items back to pending for retry.
func (d *Daemon) ResetStuck(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.ResetStuckProcessing(ctx)
}

// RetryFailed resets failed items (optionally a subset) back to pending.
func (d *Daemon) RetryFailed(ctx context.Context, ids []int64) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.RetryFailed(ctx, ids...)
}

// QueueHealth returns aggregate queue diagnostics.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	if d.store == nil {
		return queue.HealthSummary{}, errors.New("queue store unavailable")
	}
	return d.store.Health(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	if d.store == nil {
		return queue.DatabaseHealth{}, errors.New("queue store unavailable")
	}
	return d.store.CheckHealth(ctx)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// AddFolder enqueues a directory for import, covering both manual folder
// imports and mounted card paths added from the CLI.
func (d *Daemon) AddFolder(ctx context.Context, sourcePath, deviceLabel string) (*queue.Item, error) {
	if d.store == nil {
		return nil, errors.New("queue store unavailable")
	}
	trimmed := strings.TrimSpace(sourcePath)
	if trimmed == "" {
		return nil, errors.New("source path is required")
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve source path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat source path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source path %q is not a directory", absPath)
	}

	sourceType := queue.SourceFolder
	if strings.TrimSpace(deviceLabel) != "" {
		sourceType = queue.SourceSDCard
	}
	item, err := d.store.NewFolder(ctx, filepath.Base(absPath), sourceType, absPath, strings.TrimSpace(deviceLabel))
	if err != nil {
		return nil, fmt.Errorf("enqueue folder: %w", err)
	}
	d.logger.Info("folder queued",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String("source", absPath))
	return item, nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// LogStream returns the in-memory log event buffer, if wired.
func (d *Daemon) LogStream() *logging.StreamHub {
	return d.logStream
}

// LogArchive returns the on-disk log event archive, if wired.
func (d *Daemon) LogArchive() *logging.EventArchive {
	return d.logArchive
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	summary := d.workflow.Status(ctx)
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     summary,
		Dependencies: preflight.CheckSystemDeps(ctx, d.cfg),
		QueueDBPath:  filepath.Join(d.cfg.Paths.StateDir, "queue.db"),
		LockFilePath: d.lockPath,
	}
}
