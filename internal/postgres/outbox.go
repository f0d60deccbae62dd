package postgres

import (
	"context"
	"fmt"
	"time"

	"tablebook/internal/models"
)

const outboxColumns = `id, event_type, booking_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at`

func (s *Store) CreateOutboxTask(ctx context.Context, task *models.OutboxTask) error {
	if task.Status == "" {
		task.Status = models.OutboxPending
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO outbox (event_type, booking_id, payload, status, retry_count, last_error, next_retry_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		task.EventType, task.BookingID, task.Payload, task.Status, task.RetryCount, task.LastError, task.NextRetryAt,
	).Scan(&task.ID, &task.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create outbox task: %w", err)
	}
	return nil
}

func (s *Store) GetPendingOutboxTasks(ctx context.Context, limit int) ([]models.OutboxTask, error) {
	return s.queryOutbox(ctx, `SELECT `+outboxColumns+` FROM outbox
		WHERE status IN ('pending', 'retry') AND (next_retry_at IS NULL OR next_retry_at <= now())
		ORDER BY created_at, id LIMIT $1`, limit)
}

func (s *Store) GetFailedOutboxTasks(ctx context.Context) ([]models.OutboxTask, error) {
	return s.queryOutbox(ctx, `SELECT `+outboxColumns+` FROM outbox WHERE status = 'failed' ORDER BY created_at DESC`)
}

func (s *Store) queryOutbox(ctx context.Context, query string, args ...any) ([]models.OutboxTask, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.OutboxTask
	for rows.Next() {
		var t models.OutboxTask
		if err := rows.Scan(&t.ID, &t.EventType, &t.BookingID, &t.Payload, &t.Status, &t.RetryCount,
			&t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) UpdateOutboxTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	query := `UPDATE outbox SET status = $1, last_error = $2, next_retry_at = $3 WHERE id = $4`
	switch status {
	case models.OutboxRetry:
		query = `UPDATE outbox SET status = $1, last_error = $2, next_retry_at = $3, retry_count = retry_count + 1 WHERE id = $4`
	case models.OutboxCompleted, models.OutboxFailed:
		query = `UPDATE outbox SET status = $1, last_error = $2, next_retry_at = $3, processed_at = now() WHERE id = $4`
	}
	if _, err := s.pool.Exec(ctx, query, status, errMsg, nextRetryAt, id); err != nil {
		return fmt.Errorf("failed to update outbox task status: %w", err)
	}
	return nil
}
