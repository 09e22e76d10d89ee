package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInspecting Status = "inspecting"
	StatusInspected  Status = "inspected"
	StatusImporting  Status = "importing"
	StatusImported   Status = "imported"
	StatusExtracting Status = "extracting"
	StatusExtracted  Status = "extracted"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusReview     Status = "review"
)

// Source types recorded on queue items.
const (
	SourceTakeout = "takeout"
	SourceArchive = "archive"
	SourceFolder  = "folder"
	SourceSDCard  = "sd-card"
)

// DaemonStopReason is the error message set when items are failed due to daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusPending,
	StatusInspecting,
	StatusInspected,
	StatusImporting,
	StatusImported,
	StatusExtracting,
	StatusExtracted,
	StatusCompleted,
	StatusFailed,
	StatusReview,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusInspecting: {},
	StatusImporting:  {},
	StatusExtracting: {},
}

type statusTransition struct {
	from Status
	to   Status
}

// stageRollbackTransitions map an in-flight status back to the start of its
// stage so reclaimed items re-run the interrupted stage rather than the whole
// pipeline.
var stageRollbackTransitions = []statusTransition{
	{from: StatusInspecting, to: StatusPending},
	{from: StatusImporting, to: StatusInspected},
	{from: StatusExtracting, to: StatusImported},
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalItems       int
	Error            string
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Review     int
	Completed  int
}

// Item represents a queue item persisted in SQLite. One item is one import
// unit: a grouped multi-part Takeout export, a standalone archive, or a
// folder (including removable-media mounts).
type Item struct {
	ID              int64
	ExportName      string
	SourceType      string
	SourcePath      string
	Fingerprint     string
	PartsJSON       string
	HasPhotos       bool
	DeviceLabel     string
	Status          Status
	RecordPath      string
	ImportLogPath   string
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	SummaryJSON     string
	LastHeartbeat   *time.Time
	NeedsReview     bool
	ReviewReason    string
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight operation.
func (i Item) IsProcessing() bool {
	_, ok := processingStatuses[i.Status]
	return ok
}

// IsProcessingStatus reports whether a status reflects an in-flight operation.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal reports whether a status will never progress without operator action.
func IsTerminal(status Status) bool {
	switch status {
	case StatusExtracted, StatusCompleted, StatusFailed, StatusReview:
		return true
	default:
		return false
	}
}

// InitProgress resets progress fields for a new stage.
func (i *Item) InitProgress(stage, message string) {
	if i.ProgressStage == "" {
		i.ProgressStage = stage
	}
	i.ProgressMessage = message
	i.ProgressPercent = 0
	i.ErrorMessage = ""
}

// SetProgress updates all three progress fields together.
func (i *Item) SetProgress(stage, message string, percent float64) {
	i.ProgressStage = stage
	i.ProgressMessage = message
	i.ProgressPercent = percent
}

// SetProgressComplete sets progress to 100% with the given stage and message.
func (i *Item) SetProgressComplete(stage, message string) {
	i.SetProgress(stage, message, 100)
}

// SetFailed marks the item as failed with the given error message.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.ErrorMessage = message
	i.ProgressPercent = 0
	i.ProgressMessage = message
	i.LastHeartbeat = nil
	i.ProgressStage = "Failed"
}

// SetReview routes the item to manual review with the given reason.
func (i *Item) SetReview(reason string) {
	i.Status = StatusReview
	i.NeedsReview = true
	i.ReviewReason = reason
	i.ProgressPercent = 0
	i.ProgressMessage = reason
	i.LastHeartbeat = nil
	i.ProgressStage = "Review"
}

// StageKey returns the normalized stage identifier used in API/CLI presentation.
func (s Status) StageKey() string {
	switch s {
	case "":
		return ""
	case StatusPending:
		return "planned"
	case StatusCompleted:
		return "final"
	default:
		if _, ok := statusSet[s]; ok {
			return string(s)
		}
		return ""
	}
}
