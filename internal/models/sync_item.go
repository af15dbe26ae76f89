package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type SyncOperation string

const (
	OpCreate SyncOperation = "CREATE"
	OpUpdate SyncOperation = "UPDATE"
	OpDelete SyncOperation = "DELETE"
)

func (op SyncOperation) Valid() bool {
	switch op {
	case OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}

type EntityType string

const (
	EntityBudget       EntityType = "BUDGET"
	EntityExpense      EntityType = "EXPENSE"
	EntityCreditCard   EntityType = "CREDIT_CARD"
	EntityCategory     EntityType = "CATEGORY"
	EntityBudgetPeriod EntityType = "BUDGET_PERIOD"
)

func (et EntityType) Valid() bool {
	switch et {
	case EntityBudget, EntityExpense, EntityCreditCard, EntityCategory, EntityBudgetPeriod:
		return true
	}
	return false
}

type SyncStatus string

const (
	StatusPending    SyncStatus = "PENDING"
	StatusProcessing SyncStatus = "PROCESSING"
	StatusCompleted  SyncStatus = "COMPLETED"
	StatusFailed     SyncStatus = "FAILED"
)

// DefaultMaxRetries is the retry budget assigned to new queue items.
const DefaultMaxRetries = 3

// SyncItem is one pending mutation recorded while a client was offline.
// Payload is the client's document for the target entity; for UPDATE it
// carries the client's view of updatedAt used for conflict comparison.
type SyncItem struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"userId"`
	Operation    SyncOperation   `json:"operation"`
	EntityType   EntityType      `json:"entityType"`
	EntityID     string          `json:"entityId"`
	Payload      json.RawMessage `json:"data"`
	Status       SyncStatus      `json:"status"`
	RetryCount   int             `json:"retryCount"`
	MaxRetries   int             `json:"maxRetries"`
	IsConflict   bool            `json:"isConflict"`
	ErrorMessage *string         `json:"errorMessage,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// SyncItemRequest is the enqueue request shape.
type SyncItemRequest struct {
	Operation  SyncOperation   `json:"operation"`
	EntityType EntityType      `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Payload    json.RawMessage `json:"data"`
}

// SyncResult aggregates one processing pass. A pass never fails as a whole;
// per-item outcomes are reflected in the counters and Errors.
type SyncResult struct {
	Processed  int      `json:"processed"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Conflicts  int      `json:"conflicts"`
	Errors     []string `json:"errors"`
}

type SyncStatusSummary struct {
	UserID          uuid.UUID  `json:"userId"`
	PendingItems    int        `json:"pendingItems"`
	ProcessingItems int        `json:"processingItems"`
	FailedItems     int        `json:"failedItems"`
	LastSyncAt      *time.Time `json:"lastSyncAt,omitempty"`
}

// ConflictItem pairs a conflicted queue item's local payload with the
// current authoritative entity, for presentation to a resolver.
type ConflictItem struct {
	ID             uuid.UUID       `json:"id"`
	EntityType     EntityType      `json:"entityType"`
	EntityID       string          `json:"entityId"`
	LocalData      json.RawMessage `json:"localData"`
	RemoteData     json.RawMessage `json:"remoteData"`
	ConflictReason string          `json:"conflictReason"`
}

type ResolutionStrategy string

const (
	ResolutionLocal  ResolutionStrategy = "LOCAL"
	ResolutionRemote ResolutionStrategy = "REMOTE"
	ResolutionMerge  ResolutionStrategy = "MERGE"
)

func (r ResolutionStrategy) Valid() bool {
	switch r {
	case ResolutionLocal, ResolutionRemote, ResolutionMerge:
		return true
	}
	return false
}

type ConflictResolution struct {
	ConflictID uuid.UUID          `json:"conflictId"`
	Resolution ResolutionStrategy `json:"resolution"`
	MergedData json.RawMessage    `json:"mergedData,omitempty"`
}

type ResolvedConflict struct {
	ConflictID uuid.UUID `json:"conflictId"`
	Resolved   bool      `json:"resolved"`
}

type ResolutionError struct {
	ConflictID uuid.UUID `json:"conflictId"`
	Error      string    `json:"error"`
}

// BatchResolutionResult reports per-item outcomes of a batch resolution;
// one item's failure never aborts the rest.
type BatchResolutionResult struct {
	Resolved       []ResolvedConflict `json:"resolved"`
	Errors         []ResolutionError  `json:"errors"`
	TotalProcessed int                `json:"totalProcessed"`
	SuccessCount   int                `json:"successCount"`
	ErrorCount     int                `json:"errorCount"`
}
