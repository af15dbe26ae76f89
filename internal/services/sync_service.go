package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/dmonterroso/budgetsync/internal/models"
	"github.com/dmonterroso/budgetsync/internal/repositories"
	"github.com/google/uuid"
)

// DefaultCleanupDays is the retention threshold for completed queue items.
const DefaultCleanupDays = 7

// SyncService owns the offline-mutation queue: enqueueing, the replay
// pass, conflict resolution, status, and retention cleanup. The entity
// stores behind the applier registry are trusted to enforce their own
// invariants; no domain validation happens here.
type SyncService struct {
	queue    repositories.SyncQueueRepository
	appliers ApplierRegistry
	locker   UserLocker
}

func NewSyncService(
	queue repositories.SyncQueueRepository,
	appliers ApplierRegistry,
	locker UserLocker,
) *SyncService {
	return &SyncService{
		queue:    queue,
		appliers: appliers,
		locker:   locker,
	}
}

// AddToQueue validates and persists a single pending mutation.
func (s *SyncService) AddToQueue(ctx context.Context, userID uuid.UUID, req models.SyncItemRequest) (*models.SyncItem, error) {
	if err := validateItem(req); err != nil {
		return nil, err
	}
	return s.queue.Enqueue(ctx, userID, req)
}

// BatchAddToQueue validates every item up front, then persists the batch
// atomically: one invalid item rejects the whole request, and a storage
// failure persists nothing.
func (s *SyncService) BatchAddToQueue(ctx context.Context, userID uuid.UUID, reqs []models.SyncItemRequest) ([]*models.SyncItem, error) {
	if len(reqs) == 0 {
		return nil, NewValidationError("items array is required")
	}
	for i, req := range reqs {
		if err := validateItem(req); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	return s.queue.BatchEnqueue(ctx, userID, reqs)
}

func validateItem(req models.SyncItemRequest) error {
	if req.Operation == "" || req.EntityType == "" || req.EntityID == "" || len(req.Payload) == 0 {
		return NewValidationError("operation, entityType, entityId and data are required")
	}
	if !req.Operation.Valid() {
		return NewValidationError(fmt.Sprintf("unknown operation: %s", req.Operation))
	}
	if !req.EntityType.Valid() {
		return NewValidationError(fmt.Sprintf("unknown entity type: %s", req.EntityType))
	}

	// The payload's own identifier, when present, must agree with entityId.
	var doc struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(req.Payload, &doc); err != nil {
		return NewValidationError("data must be a JSON object")
	}
	if doc.ID != "" && doc.ID != req.EntityID {
		return NewValidationError(fmt.Sprintf("data.id %q does not match entityId %q", doc.ID, req.EntityID))
	}
	return nil
}

// ProcessQueue runs one replay pass for the user: pending plus
// retry-eligible failed items, strictly in original creation order, one at
// a time. Per-item failures become status transitions and counters; the
// pass itself only fails when it cannot start (lock held, queue
// unreadable).
func (s *SyncService) ProcessQueue(ctx context.Context, userID uuid.UUID) (*models.SyncResult, error) {
	release, err := s.locker.Acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	pending, err := s.queue.GetPending(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending items: %w", err)
	}
	retryable, err := s.queue.GetFailedRetryable(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load retryable items: %w", err)
	}

	// Replay order must match issue order across both sets: two mutations
	// against the same entity diverge from intent if reordered.
	candidates := append(pending, retryable...)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	result := &models.SyncResult{Errors: []string{}}
	for _, item := range candidates {
		s.processItem(ctx, item, result)
	}
	return result, nil
}

func (s *SyncService) processItem(ctx context.Context, item *models.SyncItem, result *models.SyncResult) {
	result.Processed++

	if err := s.queue.UpdateStatus(ctx, item.ID, models.StatusProcessing); err != nil {
		s.failItem(ctx, item.ID, err.Error(), result)
		return
	}

	applier, ok := s.appliers[item.EntityType]
	if !ok {
		s.failItem(ctx, item.ID, fmt.Sprintf("unknown entity type: %s", item.EntityType), result)
		return
	}

	outcome := applier.Apply(ctx, item)
	switch {
	case outcome.Success:
		if err := s.queue.MarkCompleted(ctx, item.ID); err != nil {
			s.failItem(ctx, item.ID, err.Error(), result)
			return
		}
		result.Successful++

	case outcome.Conflict:
		if err := s.queue.MarkFailed(ctx, item.ID, outcome.Err.Error(), true); err != nil {
			s.failItem(ctx, item.ID, err.Error(), result)
			return
		}
		result.Conflicts++

	default:
		reason := "unknown error"
		if outcome.Err != nil {
			reason = outcome.Err.Error()
		}
		s.retryItem(ctx, item, reason, result)
	}
}

// retryItem spends one unit of the item's retry budget. The item goes
// terminal FAILED exactly when the incremented count reaches maxRetries;
// otherwise it returns to PENDING for a later pass.
func (s *SyncService) retryItem(ctx context.Context, item *models.SyncItem, reason string, result *models.SyncResult) {
	if err := s.queue.IncrementRetry(ctx, item.ID); err != nil {
		s.failItem(ctx, item.ID, err.Error(), result)
		return
	}
	updated, err := s.queue.FindByID(ctx, item.ID)
	if err != nil {
		s.failItem(ctx, item.ID, err.Error(), result)
		return
	}

	if updated.RetryCount >= updated.MaxRetries {
		if err := s.queue.MarkFailed(ctx, item.ID, reason, false); err != nil {
			log.Printf("failed to mark sync item %s failed: %v", item.ID, err)
		}
		result.Failed++
	} else {
		if err := s.queue.UpdateStatus(ctx, item.ID, models.StatusPending); err != nil {
			log.Printf("failed to requeue sync item %s: %v", item.ID, err)
		}
	}
	result.Errors = append(result.Errors, reason)
}

// failItem is the terminal path for unexpected per-item errors. It never
// lets one item abort the pass.
func (s *SyncService) failItem(ctx context.Context, id uuid.UUID, reason string, result *models.SyncResult) {
	log.Printf("error processing sync item %s: %s", id, reason)
	if err := s.queue.MarkFailed(ctx, id, reason, false); err != nil {
		log.Printf("failed to mark sync item %s failed: %v", id, err)
	}
	result.Failed++
	result.Errors = append(result.Errors, reason)
}

// GetStatus returns pending/processing/failed counts and the last
// successful sync time for the user.
func (s *SyncService) GetStatus(ctx context.Context, userID uuid.UUID) (*models.SyncStatusSummary, error) {
	return s.queue.GetStatus(ctx, userID)
}

// GetHistory lists the queue entries recorded against one entity, newest
// first.
func (s *SyncService) GetHistory(ctx context.Context, userID uuid.UUID, entityType models.EntityType, entityID string) ([]*models.SyncItem, error) {
	if !entityType.Valid() {
		return nil, NewValidationError(fmt.Sprintf("unknown entity type: %s", entityType))
	}
	return s.queue.FindByEntity(ctx, userID, entityType, entityID)
}

// Cleanup purges COMPLETED items whose last update is older than daysOld
// days (default 7) and returns the number removed.
func (s *SyncService) Cleanup(ctx context.Context, userID uuid.UUID, daysOld int) (int64, error) {
	if daysOld <= 0 {
		daysOld = DefaultCleanupDays
	}
	cutoff := time.Now().AddDate(0, 0, -daysOld)
	return s.queue.DeleteCompletedBefore(ctx, userID, cutoff)
}
