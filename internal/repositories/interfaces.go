package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dmonterroso/budgetsync/internal/models"
	"github.com/google/uuid"
)

// SyncQueueRepository is durable persistence of sync queue items and their
// status lifecycle. Pure storage; status interpretation lives in services.
type SyncQueueRepository interface {
	Enqueue(ctx context.Context, userID uuid.UUID, req models.SyncItemRequest) (*models.SyncItem, error)
	// BatchEnqueue persists all items in one transaction: all or none.
	BatchEnqueue(ctx context.Context, userID uuid.UUID, reqs []models.SyncItemRequest) ([]*models.SyncItem, error)
	GetPending(ctx context.Context, userID uuid.UUID) ([]*models.SyncItem, error)
	// GetFailedRetryable returns FAILED items with retry budget remaining.
	// Conflicted failures are excluded even when their budget is unspent:
	// replaying a conflict without new information reproduces it on every
	// pass, so those items wait for explicit resolution instead. Do not
	// widen this to all retryable FAILED rows.
	GetFailedRetryable(ctx context.Context, userID uuid.UUID) ([]*models.SyncItem, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.SyncItem, error)
	FindByEntity(ctx context.Context, userID uuid.UUID, entityType models.EntityType, entityID string) ([]*models.SyncItem, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.SyncStatus) error
	IncrementRetry(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, conflict bool) error
	ListConflicts(ctx context.Context, userID uuid.UUID) ([]*models.SyncItem, error)
	DeleteCompletedBefore(ctx context.Context, userID uuid.UUID, cutoff time.Time) (int64, error)
	GetStatus(ctx context.Context, userID uuid.UUID) (*models.SyncStatusSummary, error)
}

// EntityStore is the uniform capability contract an applier needs against
// one authoritative entity table. Payloads are client documents; stores
// decode them into typed columns. Delete reports ErrNotFound on absent
// rows; whether absence counts as success is the applier's call.
type EntityStore interface {
	Create(ctx context.Context, userID uuid.UUID, entityID string, payload json.RawMessage) error
	Update(ctx context.Context, entityID string, payload json.RawMessage) error
	// Upsert applies the payload unconditionally, bypassing existence and
	// timestamp checks. Used by conflict resolution only.
	Upsert(ctx context.Context, userID uuid.UUID, entityID string, payload json.RawMessage) error
	Delete(ctx context.Context, entityID string) error
	Exists(ctx context.Context, entityID string) (bool, error)
	ReadUpdatedAt(ctx context.Context, entityID string) (time.Time, error)
	Get(ctx context.Context, entityID string) (json.RawMessage, error)
}
