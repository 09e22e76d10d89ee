package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"carousel/internal/ipc"
)

var statusTitler = cases.Title(language.Und)

func buildQueueStatusRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	keys := make([]string, 0, len(stats))
	for key := range stats {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{formatStatusLabel(key), fmt.Sprintf("%d", stats[key])})
	}
	return rows
}

func buildQueueListRows(items []ipc.QueueItem) [][]string {
	if len(items) == 0 {
		return nil
	}
	sorted := make([]ipc.QueueItem, len(items))
	copy(sorted, items)

	sort.Slice(sorted, func(i, j int) bool {
		ti := parseQueueTime(sorted[i].CreatedAt)
		tj := parseQueueTime(sorted[j].CreatedAt)
		if ti.Equal(tj) {
			return sorted[i].ID > sorted[j].ID
		}
		return ti.After(tj)
	})

	rows := make([][]string, 0, len(sorted))
	for _, item := range sorted {
		name := strings.TrimSpace(item.ExportName)
		if name == "" {
			if source := strings.TrimSpace(item.SourcePath); source != "" {
				name = filepath.Base(source)
			} else {
				name = "Unknown"
			}
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", item.ID),
			name,
			item.SourceType,
			formatStatusLabel(item.Status),
			formatDisplayTime(item.CreatedAt),
			formatFingerprint(item.Fingerprint),
		})
	}
	return rows
}

func printQueueItem(out io.Writer, item *ipc.QueueItem) {
	fmt.Fprintf(out, "ID: %d\n", item.ID)
	fmt.Fprintf(out, "Export: %s\n", item.ExportName)
	fmt.Fprintf(out, "Source type: %s\n", item.SourceType)
	if item.SourcePath != "" {
		fmt.Fprintf(out, "Source path: %s\n", item.SourcePath)
	}
	fmt.Fprintf(out, "Status: %s\n", formatStatusLabel(item.Status))
	if item.Progress.Stage != "" || item.Progress.Message != "" {
		fmt.Fprintf(out, "Progress: %s %.0f%% %s\n", item.Progress.Stage, item.Progress.Percent, item.Progress.Message)
	}
	if item.DeviceLabel != "" {
		fmt.Fprintf(out, "Device label: %s\n", item.DeviceLabel)
	}
	fmt.Fprintf(out, "Google Photos content: %s\n", yesNo(item.HasPhotos))
	if item.Fingerprint != "" {
		fmt.Fprintf(out, "Fingerprint: %s\n", item.Fingerprint)
	}
	if item.RecordPath != "" {
		fmt.Fprintf(out, "Record: %s\n", item.RecordPath)
	}
	if item.ImportLogPath != "" {
		fmt.Fprintf(out, "Import log: %s\n", item.ImportLogPath)
	}
	if item.NeedsReview {
		fmt.Fprintf(out, "Needs review: yes (%s)\n", item.ReviewReason)
	}
	if item.ErrorMessage != "" {
		fmt.Fprintf(out, "Error: %s\n", item.ErrorMessage)
	}
	if item.CreatedAt != "" {
		fmt.Fprintf(out, "Created: %s\n", formatDisplayTime(item.CreatedAt))
	}
	if item.UpdatedAt != "" {
		fmt.Fprintf(out, "Updated: %s\n", formatDisplayTime(item.UpdatedAt))
	}
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	return statusTitler.String(strings.ReplaceAll(status, "-", " "))
}

func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC().Format("2006-01-02 15:04")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC().Format("2006-01-02 15:04")
	}
	return value
}

func parseQueueTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}

func formatFingerprint(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	if len(value) > 12 {
		return value[:12]
	}
	return value
}
