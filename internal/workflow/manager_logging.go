package workflow

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"carousel/internal/logging"
	"carousel/internal/queue"
	"carousel/internal/services"
)

func (m *Manager) stageLogger(ctx context.Context, base *slog.Logger, item *queue.Item) *slog.Logger {
	if base == nil {
		base = m.logger
	}
	if base == nil {
		base = logging.NewNop()
	}
	if item != nil {
		base = base.With(
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String(logging.FieldExportName, item.ExportName),
		)
	}
	return logging.WithContext(ctx, base)
}

func withStageContext(ctx context.Context, stageName string, item *queue.Item, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if item != nil {
		ctx = services.WithItemID(ctx, item.ID)
	}
	if stageName != "" {
		ctx = services.WithStage(ctx, stageName)
	}
	if requestID != "" {
		ctx = services.WithRequestID(ctx, requestID)
	}
	return ctx
}

func deriveStageLabel(status queue.Status) string {
	if status == "" {
		return ""
	}
	parts := strings.Fields(strings.ReplaceAll(string(status), "_", " "))
	for i, part := range parts {
		if part == "" {
			continue
		}
		runes := []rune(strings.ToLower(part))
		runes[0] = unicode.ToUpper(runes[0])
		parts[i] = string(runes)
	}
	return strings.Join(parts, " ")
}
