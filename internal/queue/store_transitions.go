package queue

import (
	"context"
	"fmt"
	"strings"
	"time"
)

func rollbackCaseSQL() (string, []any) {
	var b strings.Builder
	args := make([]any, 0, len(stageRollbackTransitions)*2)
	b.WriteString("CASE status")
	for _, tr := range stageRollbackTransitions {
		b.WriteString(" WHEN ? THEN ?")
		args = append(args, tr.from, tr.to)
	}
	b.WriteString(" ELSE status END")
	return b.String(), args
}

// ResetStuckProcessing resets items in processing states back to the start of their current stage.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	caseSQL, args := rollbackCaseSQL()
	args = append(args, time.Now().UTC().Format(time.RFC3339Nano))
	statuses := make([]Status, 0, len(stageRollbackTransitions))
	for _, tr := range stageRollbackTransitions {
		statuses = append(statuses, tr.from)
		args = append(args, tr.from)
	}
	query := `UPDATE queue_items
         SET status = ` + caseSQL + `,
             progress_stage = 'Reset from stuck processing',
             progress_percent = 0, progress_message = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reset stuck items: %w", err)
	}
	return res.RowsAffected()
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight item.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE queue_items SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing returns items stuck in processing back to the start of
// their current stage once heartbeats expire. An optional status filter limits
// the reclaim to specific in-flight states.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time, statuses ...Status) (int64, error) {
	targets := statuses
	if len(targets) == 0 {
		for _, tr := range stageRollbackTransitions {
			targets = append(targets, tr.from)
		}
	}
	caseSQL, args := rollbackCaseSQL()
	args = append(args, time.Now().UTC().Format(time.RFC3339Nano))
	for _, status := range targets {
		args = append(args, status)
	}
	args = append(args, cutoff.UTC().Format(time.RFC3339Nano))
	query := `UPDATE queue_items
        SET status = ` + caseSQL + `,
            progress_stage = 'Reclaimed from stale processing',
            progress_percent = 0, progress_message = NULL, last_heartbeat = NULL, updated_at = ?
        WHERE status IN (` + makePlaceholders(len(targets)) + `) AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale items: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed or review items back to pending for reprocessing.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE queue_items
            SET status = ?, progress_stage = 'Retry requested', progress_percent = 0,
                progress_message = NULL, error_message = NULL, needs_review = 0,
                review_reason = NULL, updated_at = ?
            WHERE status IN (?, ?)`,
			StatusPending,
			time.Now().UTC().Format(time.RFC3339Nano),
			StatusFailed,
			StatusReview,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed items: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+4)
	args = append(args, StatusPending, time.Now().UTC().Format(time.RFC3339Nano))
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, StatusFailed, StatusReview)
	query := `UPDATE queue_items
        SET status = ?, progress_stage = 'Retry requested', progress_percent = 0,
            progress_message = NULL, error_message = NULL, needs_review = 0,
            review_reason = NULL, updated_at = ?
        WHERE id IN (` + placeholders + `) AND status IN (?, ?)`
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected items: %w", err)
	}
	return res.RowsAffected()
}
