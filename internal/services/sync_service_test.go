package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dmonterroso/budgetsync/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func budgetCreateReq(entityID string) models.SyncItemRequest {
	return models.SyncItemRequest{
		Operation:  models.OpCreate,
		EntityType: models.EntityBudget,
		EntityID:   entityID,
		Payload:    json.RawMessage(`{"id":"` + entityID + `","month":1,"year":2024,"totalIncome":5000}`),
	}
}

func TestAddToQueue_RoundTrip(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID := uuid.New()

	req := budgetCreateReq("b1")
	item, err := env.svc.AddToQueue(ctx, userID, req)
	require.NoError(t, err)

	pending, err := env.queue.GetPending(ctx, userID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, item.ID, pending[0].ID)
	assert.Equal(t, models.StatusPending, pending[0].Status)
	assert.Equal(t, 0, pending[0].RetryCount)
	assert.Equal(t, models.DefaultMaxRetries, pending[0].MaxRetries)
	assert.JSONEq(t, string(req.Payload), string(pending[0].Payload))
}

func TestAddToQueue_Validation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID := uuid.New()

	cases := []struct {
		name string
		req  models.SyncItemRequest
	}{
		{"missing operation", models.SyncItemRequest{EntityType: models.EntityBudget, EntityID: "b1", Payload: json.RawMessage(`{}`)}},
		{"missing entity type", models.SyncItemRequest{Operation: models.OpCreate, EntityID: "b1", Payload: json.RawMessage(`{}`)}},
		{"missing entity id", models.SyncItemRequest{Operation: models.OpCreate, EntityType: models.EntityBudget, Payload: json.RawMessage(`{}`)}},
		{"missing payload", models.SyncItemRequest{Operation: models.OpCreate, EntityType: models.EntityBudget, EntityID: "b1"}},
		{"unknown operation", models.SyncItemRequest{Operation: "UPSERT", EntityType: models.EntityBudget, EntityID: "b1", Payload: json.RawMessage(`{}`)}},
		{"unknown entity type", models.SyncItemRequest{Operation: models.OpCreate, EntityType: "WALLET", EntityID: "b1", Payload: json.RawMessage(`{}`)}},
		{"payload id mismatch", models.SyncItemRequest{Operation: models.OpCreate, EntityType: models.EntityBudget, EntityID: "b1", Payload: json.RawMessage(`{"id":"b2"}`)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.AddToQueue(ctx, userID, tc.req)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
		})
	}

	// Nothing invalid ever reaches the queue.
	pending, err := env.queue.GetPending(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestBatchAddToQueue_AllOrNothing(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID := uuid.New()

	reqs := []models.SyncItemRequest{
		budgetCreateReq("b1"),
		{Operation: models.OpCreate, EntityType: models.EntityBudget}, // invalid
	}

	_, err := env.svc.BatchAddToQueue(ctx, userID, reqs)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	pending, err := env.queue.GetPending(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, pending, "one invalid item must reject the whole batch")
}

func TestProcessQueue_CreateBudget(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID := uuid.New()

	_, err := env.svc.AddToQueue(ctx, userID, budgetCreateReq("b1"))
	require.NoError(t, err)

	result, err := env.svc.ProcessQueue(ctx, userID)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 0, result.Conflicts)
	assert.Empty(t, result.Errors)

	// The authoritative store now has b1 with the enqueued income.
	doc, err := env.stores[models.EntityBudget].Get(ctx, "b1")
	require.NoError(t, err)
	var budget models.Budget
	require.NoError(t, json.Unmarshal(doc, &budget))
	assert.Equal(t, float64(5000), budget.TotalIncome)
}

func TestProcessQueue_UpdateConflict(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID := uuid.New()
	store := env.stores[models.EntityExpense]

	// Remote e1 was modified after the client captured its copy.
	clientTime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	remoteDoc := json.RawMessage(`{"id":"e1","amount":250}`)
	store.put("e1", remoteDoc, clientTime.Add(time.Hour))

	payload, _ := json.Marshal(map[string]any{"id": "e1", "amount": 100, "updatedAt": clientTime})
	_, err := env.svc.AddToQueue(ctx, userID, models.SyncItemRequest{
		Operation:  models.OpUpdate,
		EntityType: models.EntityExpense,
		EntityID:   "e1",
		Payload:    payload,
	})
	require.NoError(t, err)

	result, err := env.svc.ProcessQueue(ctx, userID)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Conflicts)
	assert.Equal(t, 0, result.Successful)
	assert.Equal(t, 0, result.Failed)

	// Remote entity is untouched.
	doc, err := store.Get(ctx, "e1")
	require.NoError(t, err)
	assert.JSONEq(t, string(remoteDoc), string(doc))

	// And the conflict is visible to the resolver.
	conflicts, err := env.svc.GetConflicts(ctx, userID)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "e1", conflicts[0].EntityID)
	assert.Equal(t, "expense was modified more recently on server", conflicts[0].ConflictReason)
}

func TestProcessQueue_RetryBound(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID := uuid.New()
	store := env.stores[models.EntityCategory]
	store.createErr = errors.New("connection reset")

	item, err := env.svc.AddToQueue(ctx, userID, models.SyncItemRequest{
		Operation:  models.OpCreate,
		EntityType: models.EntityCategory,
		EntityID:   "c1",
		Payload:    json.RawMessage(`{"id":"c1","name":"Food"}`),
	})
	require.NoError(t, err)

	// Passes 1 and 2: transient failure, retry budget remains, item goes
	// back to PENDING and the pass reports the error without a terminal
	// failure.
	for pass := 1; pass <= models.DefaultMaxRetries-1; pass++ {
		result, err := env.svc.ProcessQueue(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Processed)
		assert.Equal(t, 0, result.Failed, "pass %d must not be terminal", pass)
		assert.Equal(t, []string{"connection reset"}, result.Errors)

		stored, err := env.queue.FindByID(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, pass, stored.RetryCount, "each failure spends exactly one retry")
		assert.Equal(t, models.StatusPending, stored.Status)
	}

	// Final pass: retryCount reaches maxRetries, the item goes terminal.
	result, err := env.svc.ProcessQueue(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)

	stored, err := env.queue.FindByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, stored.Status)
	assert.Equal(t, models.DefaultMaxRetries, stored.RetryCount)
	assert.False(t, stored.IsConflict)

	// Terminal items are out of the candidate set.
	result, err = env.svc.ProcessQueue(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
}

func TestProcessQueue_CompletedNotRevisited(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID := uuid.New()

	_, err := env.svc.AddToQueue(ctx, userID, budgetCreateReq("b1"))
	require.NoError(t, err)

	result, err := env.svc.ProcessQueue(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 1, result.Successful)

	result, err = env.svc.ProcessQueue(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed, "completed items are never re-processed")
}

func TestProcessQueue_ReplaysInCreationOrder(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID := uuid.New()
	store := env.stores[models.EntityBudget]

	// Older item is FAILED with retry budget left; newer one is PENDING.
	// The pass must replay the older one first even though the two sets
	// are fetched separately.
	older, err := env.svc.AddToQueue(ctx, userID, budgetCreateReq("b1"))
	require.NoError(t, err)
	_, err = env.svc.AddToQueue(ctx, userID, budgetCreateReq("b2"))
	require.NoError(t, err)

	require.NoError(t, env.queue.MarkFailed(ctx, older.ID, "connection reset", false))
	require.NoError(t, env.queue.IncrementRetry(ctx, older.ID))

	result, err := env.svc.ProcessQueue(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 2, result.Successful)

	assert.Equal(t, []string{"create:b1", "create:b2"}, store.applied)
}

func TestProcessQueue_LockContention(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID := uuid.New()

	_, err := env.svc.AddToQueue(ctx, userID, budgetCreateReq("b1"))
	require.NoError(t, err)

	env.locker.held = true
	_, err = env.svc.ProcessQueue(ctx, userID)
	assert.ErrorIs(t, err, ErrSyncInProgress)

	// Queue untouched: the item is still pending.
	pending, err := env.queue.GetPending(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestProcessQueue_ReleasesLock(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID := uuid.New()

	_, err := env.svc.ProcessQueue(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, env.locker.acquired)
	assert.Equal(t, 1, env.locker.released)
}

func TestGetStatus(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID := uuid.New()

	_, err := env.svc.AddToQueue(ctx, userID, budgetCreateReq("b1"))
	require.NoError(t, err)
	failedItem, err := env.svc.AddToQueue(ctx, userID, budgetCreateReq("b2"))
	require.NoError(t, err)
	doneItem, err := env.svc.AddToQueue(ctx, userID, budgetCreateReq("b3"))
	require.NoError(t, err)

	require.NoError(t, env.queue.MarkFailed(ctx, failedItem.ID, "boom", false))
	require.NoError(t, env.queue.MarkCompleted(ctx, doneItem.ID))

	status, err := env.svc.GetStatus(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, status.PendingItems)
	assert.Equal(t, 0, status.ProcessingItems)
	assert.Equal(t, 1, status.FailedItems)
	require.NotNil(t, status.LastSyncAt)

	done, err := env.queue.FindByID(ctx, doneItem.ID)
	require.NoError(t, err)
	assert.True(t, status.LastSyncAt.Equal(done.UpdatedAt))
}

func TestGetHistory(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID := uuid.New()

	first, err := env.svc.AddToQueue(ctx, userID, budgetCreateReq("b1"))
	require.NoError(t, err)
	payload, _ := json.Marshal(map[string]any{"id": "b1", "month": 2, "updatedAt": time.Now()})
	second, err := env.svc.AddToQueue(ctx, userID, models.SyncItemRequest{
		Operation:  models.OpUpdate,
		EntityType: models.EntityBudget,
		EntityID:   "b1",
		Payload:    payload,
	})
	require.NoError(t, err)

	history, err := env.svc.GetHistory(ctx, userID, models.EntityBudget, "b1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID, "history is newest first")
	assert.Equal(t, first.ID, history[1].ID)

	_, err = env.svc.GetHistory(ctx, userID, "WALLET", "b1")
	assert.True(t, IsValidationError(err))
}

func TestCleanup(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID := uuid.New()

	oldDone, err := env.svc.AddToQueue(ctx, userID, budgetCreateReq("b1"))
	require.NoError(t, err)
	pendingItem, err := env.svc.AddToQueue(ctx, userID, budgetCreateReq("b2"))
	require.NoError(t, err)

	require.NoError(t, env.queue.MarkCompleted(ctx, oldDone.ID))
	// Backdate the completed item past the retention threshold.
	env.queue.items[oldDone.ID].UpdatedAt = time.Now().AddDate(0, 0, -10)

	deleted, err := env.svc.Cleanup(ctx, userID, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = env.queue.FindByID(ctx, oldDone.ID)
	assert.Error(t, err)

	// Pending items survive cleanup regardless of age.
	_, err = env.queue.FindByID(ctx, pendingItem.ID)
	assert.NoError(t, err)
}
