package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"carousel/internal/config"
	"carousel/internal/notifications"
	"carousel/internal/queue"
	"carousel/internal/stage"
)

// Manager coordinates queue processing using registered stage handlers.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	pollInterval time.Duration
	notifier     notifications.Service

	heartbeat *HeartbeatMonitor

	stages             []pipelineStage
	stageByStart       map[queue.Status]pipelineStage
	statusOrder        []queue.Status
	processingStatuses []queue.Status

	mu       sync.RWMutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	lastErr  error
	lastItem *queue.Item

	queueActive bool
	queueStart  time.Time
}

// StageSet bundles the concrete workflow handlers the manager orchestrates.
type StageSet struct {
	Inspector stage.Handler
	Importer  stage.Handler
	Extractor stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      queue.Status
	processingStatus queue.Status
	doneStatus       queue.Status
}

// NewManager constructs a new workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Manager {
	return NewManagerWithNotifier(cfg, store, logger, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a workflow manager with a custom notifier (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Manager {
	return &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		notifier:     notifier,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
	}
}

// ConfigureStages registers the concrete stage handlers the workflow will run.
func (m *Manager) ConfigureStages(set StageSet) {
	var stages []pipelineStage
	if set.Inspector != nil {
		stages = append(stages, pipelineStage{
			name:             "inspector",
			handler:          set.Inspector,
			startStatus:      queue.StatusPending,
			processingStatus: queue.StatusInspecting,
			doneStatus:       queue.StatusInspected,
		})
	}
	if set.Importer != nil {
		stages = append(stages, pipelineStage{
			name:             "importer",
			handler:          set.Importer,
			startStatus:      queue.StatusInspected,
			processingStatus: queue.StatusImporting,
			doneStatus:       queue.StatusImported,
		})
	}
	if set.Extractor != nil {
		stages = append(stages, pipelineStage{
			name:             "extractor",
			handler:          set.Extractor,
			startStatus:      queue.StatusImported,
			processingStatus: queue.StatusExtracting,
			doneStatus:       queue.StatusCompleted,
		})
	}

	byStart := make(map[queue.Status]pipelineStage, len(stages))
	order := make([]queue.Status, 0, len(stages))
	var processing []queue.Status
	seen := make(map[queue.Status]struct{})
	for _, stg := range stages {
		byStart[stg.startStatus] = stg
		order = append(order, stg.startStatus)
		if stg.processingStatus != "" {
			if _, ok := seen[stg.processingStatus]; !ok {
				processing = append(processing, stg.processingStatus)
				seen[stg.processingStatus] = struct{}{}
			}
		}
	}

	m.mu.Lock()
	m.stages = stages
	m.stageByStart = byStart
	m.statusOrder = order
	m.processingStatuses = processing
	m.mu.Unlock()
}

func (m *Manager) stageForStatus(status queue.Status) (pipelineStage, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stg, ok := m.stageByStart[status]
	return stg, ok
}
