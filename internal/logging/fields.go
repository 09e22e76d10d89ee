package logging

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	// FieldEventType categorizes log lines for downstream filtering (e.g. import_completed).
	FieldEventType = "event_type"
	// FieldErrorCode carries a stable machine-readable error identifier.
	FieldErrorCode = "error_code"
	// FieldErrorHint suggests the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldErrorDetailPath points at a file holding full error output (tool logs, etc.).
	FieldErrorDetailPath = "error_detail_path"
	// FieldDecisionType labels classification and routing decisions.
	FieldDecisionType = "decision_type"
	// FieldProgressStage names the sub-step a long operation is in.
	FieldProgressStage = "progress_stage"
	// FieldProgressPercent reports completion as a float percentage.
	FieldProgressPercent = "progress_percent"
	// FieldProgressMessage carries the human-readable progress line.
	FieldProgressMessage = "progress_message"
	// FieldProgressETA carries the estimated remaining duration.
	FieldProgressETA = "progress_eta"
)

func formatBytes(n int64) string {
	if n < 0 {
		return strconv.FormatInt(n, 10)
	}
	return humanize.IBytes(uint64(n))
}

func formatDurationHuman(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(100 * time.Millisecond).String()
	case d < time.Hour:
		return d.Round(time.Second).String()
	default:
		return d.Round(time.Minute).String()
	}
}

func formatPercent(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", v)
}
