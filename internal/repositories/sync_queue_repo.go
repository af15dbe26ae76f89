package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmonterroso/budgetsync/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

const syncItemColumns = `id, user_id, operation, entity_type, entity_id, payload,
	          status, retry_count, max_retries, is_conflict, error_message, created_at, updated_at`

type PostgresSyncQueueRepository struct {
	pool *pgxpool.Pool

	// maxRetries is stamped onto every row at enqueue time, so changing
	// the setting never reclassifies items already in the queue.
	maxRetries int
}

func NewPostgresSyncQueueRepository(pool *pgxpool.Pool, maxRetries int) *PostgresSyncQueueRepository {
	if maxRetries < 1 {
		maxRetries = models.DefaultMaxRetries
	}
	return &PostgresSyncQueueRepository{pool: pool, maxRetries: maxRetries}
}

func scanSyncItem(row pgx.Row) (*models.SyncItem, error) {
	var item models.SyncItem
	err := row.Scan(
		&item.ID,
		&item.UserID,
		&item.Operation,
		&item.EntityType,
		&item.EntityID,
		&item.Payload,
		&item.Status,
		&item.RetryCount,
		&item.MaxRetries,
		&item.IsConflict,
		&item.ErrorMessage,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *PostgresSyncQueueRepository) Enqueue(ctx context.Context, userID uuid.UUID, req models.SyncItemRequest) (*models.SyncItem, error) {
	query := `INSERT INTO sync_queue (user_id, operation, entity_type, entity_id, payload, status, max_retries)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          RETURNING ` + syncItemColumns

	item, err := scanSyncItem(r.pool.QueryRow(ctx, query,
		userID,
		req.Operation,
		req.EntityType,
		req.EntityID,
		req.Payload,
		models.StatusPending,
		r.maxRetries,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue sync item: %w", err)
	}
	return item, nil
}

// BatchEnqueue inserts all items inside a single transaction so a batch
// either persists completely or not at all.
func (r *PostgresSyncQueueRepository) BatchEnqueue(ctx context.Context, userID uuid.UUID, reqs []models.SyncItemRequest) ([]*models.SyncItem, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin batch enqueue: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `INSERT INTO sync_queue (user_id, operation, entity_type, entity_id, payload, status, max_retries)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          RETURNING ` + syncItemColumns

	items := make([]*models.SyncItem, 0, len(reqs))
	for _, req := range reqs {
		item, err := scanSyncItem(tx.QueryRow(ctx, query,
			userID,
			req.Operation,
			req.EntityType,
			req.EntityID,
			req.Payload,
			models.StatusPending,
			r.maxRetries,
		))
		if err != nil {
			return nil, fmt.Errorf("failed to enqueue batch item: %w", err)
		}
		items = append(items, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit batch enqueue: %w", err)
	}
	return items, nil
}

func (r *PostgresSyncQueueRepository) queryItems(ctx context.Context, query string, args ...any) ([]*models.SyncItem, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync items: %w", err)
	}
	defer rows.Close()

	var items []*models.SyncItem
	for rows.Next() {
		item, err := scanSyncItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync items: %w", err)
	}
	return items, nil
}

func (r *PostgresSyncQueueRepository) GetPending(ctx context.Context, userID uuid.UUID) ([]*models.SyncItem, error) {
	query := `SELECT ` + syncItemColumns + `
	          FROM sync_queue
	          WHERE user_id = $1 AND status = $2
	          ORDER BY created_at ASC`
	return r.queryItems(ctx, query, userID, models.StatusPending)
}

func (r *PostgresSyncQueueRepository) GetFailedRetryable(ctx context.Context, userID uuid.UUID) ([]*models.SyncItem, error) {
	query := `SELECT ` + syncItemColumns + `
	          FROM sync_queue
	          WHERE user_id = $1 AND status = $2 AND retry_count < max_retries AND NOT is_conflict
	          ORDER BY created_at ASC`
	return r.queryItems(ctx, query, userID, models.StatusFailed)
}

func (r *PostgresSyncQueueRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.SyncItem, error) {
	query := `SELECT ` + syncItemColumns + `
	          FROM sync_queue
	          WHERE id = $1`

	item, err := scanSyncItem(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync item by ID: %w", err)
	}
	return item, nil
}

func (r *PostgresSyncQueueRepository) FindByEntity(ctx context.Context, userID uuid.UUID, entityType models.EntityType, entityID string) ([]*models.SyncItem, error) {
	query := `SELECT ` + syncItemColumns + `
	          FROM sync_queue
	          WHERE user_id = $1 AND entity_type = $2 AND entity_id = $3
	          ORDER BY created_at DESC`
	return r.queryItems(ctx, query, userID, entityType, entityID)
}

func (r *PostgresSyncQueueRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.SyncStatus) error {
	query := `UPDATE sync_queue
	          SET status = $1, updated_at = NOW()
	          WHERE id = $2`

	result, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update sync item status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresSyncQueueRepository) IncrementRetry(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE sync_queue
	          SET retry_count = retry_count + 1, updated_at = NOW()
	          WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment retry count: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresSyncQueueRepository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE sync_queue
	          SET status = $1, is_conflict = FALSE, error_message = NULL, updated_at = NOW()
	          WHERE id = $2`

	result, err := r.pool.Exec(ctx, query, models.StatusCompleted, id)
	if err != nil {
		return fmt.Errorf("failed to mark sync item completed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailed records the failure reason and whether it was a detected
// conflict. The structured flag is what ListConflicts filters on; the
// message is informational only.
func (r *PostgresSyncQueueRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, conflict bool) error {
	query := `UPDATE sync_queue
	          SET status = $1, error_message = $2, is_conflict = $3, updated_at = NOW()
	          WHERE id = $4`

	result, err := r.pool.Exec(ctx, query, models.StatusFailed, reason, conflict, id)
	if err != nil {
		return fmt.Errorf("failed to mark sync item failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresSyncQueueRepository) ListConflicts(ctx context.Context, userID uuid.UUID) ([]*models.SyncItem, error) {
	query := `SELECT ` + syncItemColumns + `
	          FROM sync_queue
	          WHERE user_id = $1 AND status = $2 AND is_conflict
	          ORDER BY created_at ASC`
	return r.queryItems(ctx, query, userID, models.StatusFailed)
}

func (r *PostgresSyncQueueRepository) DeleteCompletedBefore(ctx context.Context, userID uuid.UUID, cutoff time.Time) (int64, error) {
	query := `DELETE FROM sync_queue
	          WHERE user_id = $1 AND status = $2 AND updated_at < $3`

	result, err := r.pool.Exec(ctx, query, userID, models.StatusCompleted, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete completed sync items: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *PostgresSyncQueueRepository) GetStatus(ctx context.Context, userID uuid.UUID) (*models.SyncStatusSummary, error) {
	query := `SELECT
	            COUNT(*) FILTER (WHERE status = $2),
	            COUNT(*) FILTER (WHERE status = $3),
	            COUNT(*) FILTER (WHERE status = $4),
	            MAX(updated_at) FILTER (WHERE status = $5)
	          FROM sync_queue
	          WHERE user_id = $1`

	summary := models.SyncStatusSummary{UserID: userID}
	err := r.pool.QueryRow(ctx, query,
		userID,
		models.StatusPending,
		models.StatusProcessing,
		models.StatusFailed,
		models.StatusCompleted,
	).Scan(
		&summary.PendingItems,
		&summary.ProcessingItems,
		&summary.FailedItems,
		&summary.LastSyncAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get sync status: %w", err)
	}
	return &summary, nil
}
