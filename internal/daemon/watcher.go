package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/fsnotify/fsnotify"

	"carousel/internal/config"
	"carousel/internal/logging"
)

// incomingWatcher triggers an incoming-directory scan when rclone (or a
// human) drops files there. Events are debounced so a multi-gigabyte
// download does not cause a scan per write.
type incomingWatcher struct {
	cfg    *config.Config
	daemon *Daemon
	logger *slog.Logger

	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	quit    chan struct{}
	running bool
}

func newIncomingWatcher(cfg *config.Config, d *Daemon, logger *slog.Logger) *incomingWatcher {
	debounce := time.Duration(cfg.Workflow.WatcherDebounceSeconds) * time.Second
	if debounce <= 0 {
		debounce = 30 * time.Second
	}
	return &incomingWatcher{
		cfg:      cfg,
		daemon:   d,
		logger:   logging.NewComponentLogger(logger, "incoming-watcher"),
		debounce: debounce,
	}
}

func (w *incomingWatcher) start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("incoming watcher already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(w.cfg.Paths.IncomingDir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", w.cfg.Paths.IncomingDir, err)
	}

	w.watcher = watcher
	w.quit = make(chan struct{})
	w.running = true

	go w.loop(ctx, watcher, w.quit)
	w.logger.Info("watching incoming directory",
		logging.String("dir", w.cfg.Paths.IncomingDir),
		logging.String("debounce", w.debounce.String()))
	return nil
}

func (w *incomingWatcher) loop(ctx context.Context, watcher *fsnotify.Watcher, quit <-chan struct{}) {
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-quit:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if pending && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
			pending = true
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", logging.Error(err))
		case <-timer.C:
			pending = false
			if queued, err := w.daemon.ScanIncoming(ctx); err != nil {
				w.logger.Warn("incoming scan failed", logging.Error(err))
			} else if queued > 0 {
				w.logger.Info("incoming scan queued items", logging.Int("queued", queued))
			}
		}
	}
}

func (w *incomingWatcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	close(w.quit)
	if w.watcher != nil {
		_ = w.watcher.Close()
		w.watcher = nil
	}
	w.running = false
}
