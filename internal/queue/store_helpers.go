package queue

import (
	"database/sql"
	"errors"
	"time"
)

const itemColumns = "id, export_name, source_type, source_path, fingerprint, parts_json, has_photos, device_label, status, record_path, import_log_path, error_message, created_at, updated_at, progress_stage, progress_percent, progress_message, summary_json, last_heartbeat, needs_review, review_reason"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id               int64
		exportName       sql.NullString
		sourceType       sql.NullString
		sourcePath       sql.NullString
		fingerprint      sql.NullString
		partsJSON        sql.NullString
		hasPhotos        sql.NullInt64
		deviceLabel      sql.NullString
		statusStr        string
		recordPath       sql.NullString
		importLogPath    sql.NullString
		errorMessage     sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		progressStage    sql.NullString
		progressPercent  sql.NullFloat64
		progressMessage  sql.NullString
		summaryJSON      sql.NullString
		lastHeartbeatRaw sql.NullString
		needsReview      sql.NullInt64
		reviewReason     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&exportName,
		&sourceType,
		&sourcePath,
		&fingerprint,
		&partsJSON,
		&hasPhotos,
		&deviceLabel,
		&statusStr,
		&recordPath,
		&importLogPath,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&summaryJSON,
		&lastHeartbeatRaw,
		&needsReview,
		&reviewReason,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:              id,
		ExportName:      exportName.String,
		SourceType:      sourceType.String,
		SourcePath:      sourcePath.String,
		Fingerprint:     fingerprint.String,
		PartsJSON:       partsJSON.String,
		DeviceLabel:     deviceLabel.String,
		Status:          Status(statusStr),
		RecordPath:      recordPath.String,
		ImportLogPath:   importLogPath.String,
		ErrorMessage:    errorMessage.String,
		ProgressStage:   progressStage.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
		SummaryJSON:     summaryJSON.String,
	}
	if hasPhotos.Valid {
		item.HasPhotos = hasPhotos.Int64 != 0
	}
	if needsReview.Valid {
		item.NeedsReview = needsReview.Int64 != 0
	}
	item.ReviewReason = reviewReason.String

	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			item.LastHeartbeat = &heartbeat
		}
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	v := value.UTC().Format(time.RFC3339Nano)
	return v
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
