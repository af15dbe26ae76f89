package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/dmonterroso/budgetsync/internal/models"
	"github.com/dmonterroso/budgetsync/internal/repositories"
	"github.com/google/uuid"
)

// GetConflicts lists the user's unresolved conflicts, pairing each stored
// local payload with the current authoritative document. Conflicts whose
// remote entity has since disappeared are omitted; there is nothing left
// to compare against.
func (s *SyncService) GetConflicts(ctx context.Context, userID uuid.UUID) ([]models.ConflictItem, error) {
	items, err := s.queue.ListConflicts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}

	conflicts := make([]models.ConflictItem, 0, len(items))
	for _, item := range items {
		applier, ok := s.appliers[item.EntityType]
		if !ok {
			continue
		}
		remote, err := applier.Remote(ctx, item.EntityID)
		if errors.Is(err, repositories.ErrNotFound) {
			continue
		}
		if err != nil {
			log.Printf("error getting remote data for conflict %s: %v", item.ID, err)
			continue
		}

		reason := "data conflict detected"
		if item.ErrorMessage != nil {
			reason = *item.ErrorMessage
		}
		conflicts = append(conflicts, models.ConflictItem{
			ID:             item.ID,
			EntityType:     item.EntityType,
			EntityID:       item.EntityID,
			LocalData:      item.Payload,
			RemoteData:     remote,
			ConflictReason: reason,
		})
	}
	return conflicts, nil
}

// ResolveConflict applies one of the three strategies to a conflicted
// item. LOCAL force-applies the stored payload, REMOTE keeps the server
// state untouched, MERGE force-applies a caller-supplied document. All
// three end with the item COMPLETED.
func (s *SyncService) ResolveConflict(
	ctx context.Context,
	userID uuid.UUID,
	conflictID uuid.UUID,
	resolution models.ResolutionStrategy,
	mergedData json.RawMessage,
) (bool, error) {
	item, err := s.queue.FindByID(ctx, conflictID)
	if errors.Is(err, repositories.ErrNotFound) {
		return false, ErrConflictNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to load conflict: %w", err)
	}
	if item.UserID != userID {
		return false, ErrConflictNotFound
	}

	switch resolution {
	case models.ResolutionLocal:
		if err := s.forceApply(ctx, item); err != nil {
			return false, fmt.Errorf("failed to apply local data: %w", err)
		}
	case models.ResolutionRemote:
		// Keep the server state; just retire the queue item.
	case models.ResolutionMerge:
		if len(mergedData) == 0 {
			return false, ErrMergeDataRequired
		}
		merged := *item
		merged.Payload = mergedData
		if err := s.forceApply(ctx, &merged); err != nil {
			return false, fmt.Errorf("failed to apply merged data: %w", err)
		}
	default:
		return false, fmt.Errorf("%w: %s", ErrInvalidResolution, resolution)
	}

	if err := s.queue.MarkCompleted(ctx, conflictID); err != nil {
		return false, fmt.Errorf("failed to complete conflict item: %w", err)
	}
	return true, nil
}

func (s *SyncService) forceApply(ctx context.Context, item *models.SyncItem) error {
	applier, ok := s.appliers[item.EntityType]
	if !ok {
		return fmt.Errorf("unknown entity type: %s", item.EntityType)
	}
	return applier.ForceApply(ctx, item)
}

// BatchResolveConflicts applies each resolution independently; one item's
// failure is recorded and the rest proceed.
func (s *SyncService) BatchResolveConflicts(ctx context.Context, userID uuid.UUID, resolutions []models.ConflictResolution) *models.BatchResolutionResult {
	result := &models.BatchResolutionResult{
		Resolved:       []models.ResolvedConflict{},
		Errors:         []models.ResolutionError{},
		TotalProcessed: len(resolutions),
	}

	for _, res := range resolutions {
		resolved, err := s.ResolveConflict(ctx, userID, res.ConflictID, res.Resolution, res.MergedData)
		if err != nil {
			log.Printf("error resolving conflict %s: %v", res.ConflictID, err)
			result.Errors = append(result.Errors, models.ResolutionError{
				ConflictID: res.ConflictID,
				Error:      err.Error(),
			})
			continue
		}
		result.Resolved = append(result.Resolved, models.ResolvedConflict{
			ConflictID: res.ConflictID,
			Resolved:   resolved,
		})
	}

	result.SuccessCount = len(result.Resolved)
	result.ErrorCount = len(result.Errors)
	return result
}
