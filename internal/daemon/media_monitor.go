package daemon

import (
	"context"
	"path/filepath"
	"time"

	"log/slog"

	"carousel/internal/config"
	"carousel/internal/logging"
	"carousel/internal/queue"
	"carousel/internal/sdcard"
)

// mountWait bounds how long we wait for the desktop automounter to
// mount a freshly inserted card before giving up on it.
const (
	mountWait     = 30 * time.Second
	mountPollStep = 2 * time.Second
)

// mediaMonitor glues the udev monitor to the import queue: matching
// partitions are resolved to mount points, locked per label, and
// enqueued as sd-card folder imports.
type mediaMonitor struct {
	cfg     *config.Config
	store   *queue.Store
	logger  *slog.Logger
	monitor *sdcard.Monitor
}

func newMediaMonitor(cfg *config.Config, store *queue.Store, logger *slog.Logger) *mediaMonitor {
	m := &mediaMonitor{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "media-monitor"),
	}
	m.monitor = sdcard.NewMonitor(cfg, logger, m.handleDevice)
	return m
}

func (m *mediaMonitor) start(ctx context.Context) {
	if m.monitor == nil {
		return
	}
	if err := m.monitor.Start(ctx); err != nil {
		m.logger.Warn("media monitor unavailable", logging.Error(err))
	}
}

func (m *mediaMonitor) stop() {
	if m.monitor != nil {
		m.monitor.Stop()
	}
}

func (m *mediaMonitor) handleDevice(ctx context.Context, dev sdcard.Device) {
	mount, err := m.awaitMount(ctx, dev)
	if err != nil {
		m.logger.Warn("card never mounted",
			logging.String("device", dev.Node),
			logging.String("label", dev.Label),
			logging.Error(err))
		return
	}

	lock, ok, err := sdcard.AcquireLock(m.cfg.Paths.StateDir, dev.Label)
	if err != nil {
		m.logger.Warn("card lock failed", logging.String("label", dev.Label), logging.Error(err))
		return
	}
	if !ok {
		m.logger.Info("card already being imported", logging.String("label", dev.Label))
		return
	}
	defer func() { _ = lock.Unlock() }()

	item, err := m.store.NewFolder(ctx, filepath.Base(mount), queue.SourceSDCard, mount, dev.Label)
	if err != nil {
		m.logger.Warn("failed to enqueue card import",
			logging.String("label", dev.Label), logging.Error(err))
		return
	}
	m.logger.Info("card import queued",
		logging.String(logging.FieldEventType, "sdcard_queued"),
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String("label", dev.Label),
		logging.String("mount", mount))
}

// awaitMount polls for the card's mount point; udev fires on partition
// add, typically before the automounter has finished.
func (m *mediaMonitor) awaitMount(ctx context.Context, dev sdcard.Device) (string, error) {
	deadline := time.Now().Add(mountWait)
	for {
		mount, err := sdcard.ResolveMount(m.cfg.SDCard.MountBase, dev)
		if err == nil {
			return mount, nil
		}
		if time.Now().After(deadline) {
			return "", err
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(mountPollStep):
		}
	}
}
