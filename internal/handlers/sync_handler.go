package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dmonterroso/budgetsync/internal/models"
	"github.com/dmonterroso/budgetsync/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// SyncAPI is the slice of the sync service the HTTP layer needs.
type SyncAPI interface {
	AddToQueue(ctx context.Context, userID uuid.UUID, req models.SyncItemRequest) (*models.SyncItem, error)
	BatchAddToQueue(ctx context.Context, userID uuid.UUID, reqs []models.SyncItemRequest) ([]*models.SyncItem, error)
	ProcessQueue(ctx context.Context, userID uuid.UUID) (*models.SyncResult, error)
	GetStatus(ctx context.Context, userID uuid.UUID) (*models.SyncStatusSummary, error)
	GetHistory(ctx context.Context, userID uuid.UUID, entityType models.EntityType, entityID string) ([]*models.SyncItem, error)
	GetConflicts(ctx context.Context, userID uuid.UUID) ([]models.ConflictItem, error)
	ResolveConflict(ctx context.Context, userID, conflictID uuid.UUID, resolution models.ResolutionStrategy, mergedData json.RawMessage) (bool, error)
	BatchResolveConflicts(ctx context.Context, userID uuid.UUID, resolutions []models.ConflictResolution) *models.BatchResolutionResult
	Cleanup(ctx context.Context, userID uuid.UUID, daysOld int) (int64, error)
}

type SyncHandler struct {
	sync SyncAPI

	// cleanupDays applies when the cleanup request carries no days param.
	cleanupDays int
}

func NewSyncHandler(sync SyncAPI, cleanupDays int) *SyncHandler {
	if cleanupDays < 1 {
		cleanupDays = services.DefaultCleanupDays
	}
	return &SyncHandler{sync: sync, cleanupDays: cleanupDays}
}

func (h *SyncHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/queue", h.AddToQueue)
	r.Post("/batch", h.BatchSync)
	r.Post("/process", h.Process)
	r.Get("/status", h.Status)
	r.Get("/history/{entityType}/{entityID}", h.History)
	r.Get("/conflicts", h.Conflicts)
	r.Post("/conflicts/{conflictID}/resolve", h.ResolveConflict)
	r.Post("/conflicts/resolve-batch", h.BatchResolveConflicts)
	r.Delete("/cleanup", h.Cleanup)
	return r
}

func (h *SyncHandler) AddToQueue(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated")
		return
	}

	var req models.SyncItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body")
		return
	}

	item, err := h.sync.AddToQueue(r.Context(), userID, req)
	if services.IsValidationError(err) {
		respondError(w, http.StatusBadRequest, "MISSING_REQUIRED_FIELD", err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to add item to sync queue")
		return
	}
	respondData(w, http.StatusCreated, item)
}

func (h *SyncHandler) BatchSync(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated")
		return
	}

	var req struct {
		Items []models.SyncItemRequest `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Items array is required")
		return
	}

	items, err := h.sync.BatchAddToQueue(r.Context(), userID, req.Items)
	if services.IsValidationError(err) {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to process batch sync")
		return
	}
	respondData(w, http.StatusCreated, items)
}

func (h *SyncHandler) Process(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated")
		return
	}

	result, err := h.sync.ProcessQueue(r.Context(), userID)
	if errors.Is(err, services.ErrSyncInProgress) {
		respondError(w, http.StatusConflict, "SYNC_IN_PROGRESS", err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "SYNC_ERROR", "Failed to process sync queue")
		return
	}
	respondData(w, http.StatusOK, result)
}

func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated")
		return
	}

	status, err := h.sync.GetStatus(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to get sync status")
		return
	}
	respondData(w, http.StatusOK, status)
}

func (h *SyncHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated")
		return
	}

	entityType := models.EntityType(chi.URLParam(r, "entityType"))
	entityID := chi.URLParam(r, "entityID")

	items, err := h.sync.GetHistory(r.Context(), userID, entityType, entityID)
	if services.IsValidationError(err) {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to get sync history")
		return
	}
	respondData(w, http.StatusOK, items)
}

func (h *SyncHandler) Conflicts(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated")
		return
	}

	conflicts, err := h.sync.GetConflicts(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to get conflicts")
		return
	}
	respondData(w, http.StatusOK, conflicts)
}

func (h *SyncHandler) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated")
		return
	}

	conflictID, err := uuid.Parse(chi.URLParam(r, "conflictID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid conflict ID")
		return
	}

	var req struct {
		Resolution models.ResolutionStrategy `json:"resolution"`
		MergedData json.RawMessage           `json:"mergedData,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body")
		return
	}
	if !req.Resolution.Valid() {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Valid resolution type is required (LOCAL, REMOTE, or MERGE)")
		return
	}
	if req.Resolution == models.ResolutionMerge && len(req.MergedData) == 0 {
		respondError(w, http.StatusBadRequest, "MISSING_REQUIRED_FIELD", "Merged data is required for MERGE resolution")
		return
	}

	resolved, err := h.sync.ResolveConflict(r.Context(), userID, conflictID, req.Resolution, req.MergedData)
	if errors.Is(err, services.ErrConflictNotFound) {
		respondError(w, http.StatusNotFound, "CONFLICT_NOT_FOUND", "Conflict not found or access denied")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "SYNC_ERROR", "Failed to resolve conflict")
		return
	}
	respondData(w, http.StatusOK, map[string]any{"resolved": resolved})
}

func (h *SyncHandler) BatchResolveConflicts(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated")
		return
	}

	var req struct {
		Resolutions []models.ConflictResolution `json:"resolutions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Resolutions == nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Resolutions array is required")
		return
	}

	result := h.sync.BatchResolveConflicts(r.Context(), userID, req.Resolutions)
	respondData(w, http.StatusOK, result)
}

func (h *SyncHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated")
		return
	}

	daysOld := h.cleanupDays
	if days := r.URL.Query().Get("days"); days != "" {
		parsed, err := strconv.Atoi(days)
		if err != nil || parsed < 1 {
			respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Days must be a positive number")
			return
		}
		daysOld = parsed
	}

	deleted, err := h.sync.Cleanup(r.Context(), userID, daysOld)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to cleanup sync queue")
		return
	}
	respondData(w, http.StatusOK, map[string]any{"deletedCount": deleted, "daysOld": daysOld})
}
