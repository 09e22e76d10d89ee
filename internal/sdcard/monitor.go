package sdcard

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"carousel/internal/config"
	"carousel/internal/logging"
)

// Monitor listens for udev netlink events and invokes the handler when
// a partition whose filesystem label matches the configured glob is
// plugged in. This removes the need for udev rules that call the CLI
// as root.
type Monitor struct {
	cfg     *config.Config
	logger  *slog.Logger
	handler func(ctx context.Context, dev Device)

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewMonitor creates a monitor for removable-media insertion events.
// Returns nil when SD-card imports are disabled.
func NewMonitor(cfg *config.Config, logger *slog.Logger, handler func(ctx context.Context, dev Device)) *Monitor {
	if cfg == nil || !cfg.SDCard.Enabled {
		return nil
	}
	if strings.TrimSpace(cfg.SDCard.LabelGlob) == "" {
		return nil
	}
	return &Monitor{
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "sdcard-monitor"),
		handler: handler,
	}
}

// Start begins listening for udev netlink events.
func (m *Monitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; SD-card detection unavailable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
		)
		return nil // Non-fatal - folder imports can still be queued manually
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Info("sdcard monitor started",
		logging.String(logging.FieldEventType, "sdcard_monitor_started"),
		logging.String("label_glob", m.cfg.SDCard.LabelGlob),
	)
	return nil
}

// Stop shuts down the monitor.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("sdcard monitor stopped",
		logging.String(logging.FieldEventType, "sdcard_monitor_stopped"),
	)
}

// Running reports whether the monitor is active.
func (m *Monitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, m.buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(ctx, uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
			)
		}
	}
}

// buildMatcher matches newly added block partitions.
func (m *Monitor) buildMatcher() netlink.Matcher {
	action := "add"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "block",
			"DEVTYPE":   "partition",
		},
	})
	return rules
}

func (m *Monitor) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	dev := deviceFromEvent(uevent)
	if dev.Node == "" || dev.Label == "" {
		m.logger.Debug("ignoring partition event without label",
			logging.String("kobj", uevent.KObj),
		)
		return
	}
	if !MatchLabel(m.cfg.SDCard.LabelGlob, dev.Label) {
		m.logger.Debug("ignoring partition with non-matching label",
			logging.String("label", dev.Label),
			logging.String("label_glob", m.cfg.SDCard.LabelGlob),
		)
		return
	}

	m.logger.Info("removable media detected",
		logging.String(logging.FieldEventType, "sdcard_detected"),
		logging.String("device", dev.Node),
		logging.String("label", dev.Label),
	)
	if m.handler != nil {
		m.handler(ctx, dev)
	}
}

func deviceFromEvent(uevent netlink.UEvent) Device {
	dev := Device{
		Node:  uevent.Env["DEVNAME"],
		Label: uevent.Env["ID_FS_LABEL"],
	}
	if dev.Node != "" && !strings.HasPrefix(dev.Node, "/dev/") {
		dev.Node = "/dev/" + dev.Node
	}
	return dev
}
