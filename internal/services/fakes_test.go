package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dmonterroso/budgetsync/internal/models"
	"github.com/dmonterroso/budgetsync/internal/repositories"
	"github.com/google/uuid"
)

// In-memory stand-ins for the Postgres/Redis repositories so the service
// tests run without infrastructure.

type fakeQueueRepo struct {
	items map[uuid.UUID]*models.SyncItem
	order []uuid.UUID
	clock time.Time

	batchErr error
}

func newFakeQueueRepo() *fakeQueueRepo {
	return &fakeQueueRepo{
		items: make(map[uuid.UUID]*models.SyncItem),
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// tick advances the fake clock so creation order is unambiguous.
func (r *fakeQueueRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *fakeQueueRepo) insert(userID uuid.UUID, req models.SyncItemRequest) *models.SyncItem {
	now := r.tick()
	item := &models.SyncItem{
		ID:         uuid.New(),
		UserID:     userID,
		Operation:  req.Operation,
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		Payload:    req.Payload,
		Status:     models.StatusPending,
		MaxRetries: models.DefaultMaxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.items[item.ID] = item
	r.order = append(r.order, item.ID)
	return item
}

func (r *fakeQueueRepo) Enqueue(_ context.Context, userID uuid.UUID, req models.SyncItemRequest) (*models.SyncItem, error) {
	item := r.insert(userID, req)
	clone := *item
	return &clone, nil
}

func (r *fakeQueueRepo) BatchEnqueue(_ context.Context, userID uuid.UUID, reqs []models.SyncItemRequest) ([]*models.SyncItem, error) {
	if r.batchErr != nil {
		return nil, r.batchErr
	}
	items := make([]*models.SyncItem, 0, len(reqs))
	for _, req := range reqs {
		item := r.insert(userID, req)
		clone := *item
		items = append(items, &clone)
	}
	return items, nil
}

func (r *fakeQueueRepo) list(userID uuid.UUID, keep func(*models.SyncItem) bool) []*models.SyncItem {
	var out []*models.SyncItem
	for _, id := range r.order {
		item := r.items[id]
		if item == nil || item.UserID != userID || !keep(item) {
			continue
		}
		clone := *item
		out = append(out, &clone)
	}
	return out
}

func (r *fakeQueueRepo) GetPending(_ context.Context, userID uuid.UUID) ([]*models.SyncItem, error) {
	return r.list(userID, func(it *models.SyncItem) bool {
		return it.Status == models.StatusPending
	}), nil
}

func (r *fakeQueueRepo) GetFailedRetryable(_ context.Context, userID uuid.UUID) ([]*models.SyncItem, error) {
	return r.list(userID, func(it *models.SyncItem) bool {
		return it.Status == models.StatusFailed && it.RetryCount < it.MaxRetries && !it.IsConflict
	}), nil
}

func (r *fakeQueueRepo) FindByID(_ context.Context, id uuid.UUID) (*models.SyncItem, error) {
	item, ok := r.items[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	clone := *item
	return &clone, nil
}

func (r *fakeQueueRepo) FindByEntity(_ context.Context, userID uuid.UUID, entityType models.EntityType, entityID string) ([]*models.SyncItem, error) {
	items := r.list(userID, func(it *models.SyncItem) bool {
		return it.EntityType == entityType && it.EntityID == entityID
	})
	// newest first
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}

func (r *fakeQueueRepo) UpdateStatus(_ context.Context, id uuid.UUID, status models.SyncStatus) error {
	item, ok := r.items[id]
	if !ok {
		return repositories.ErrNotFound
	}
	item.Status = status
	item.UpdatedAt = r.tick()
	return nil
}

func (r *fakeQueueRepo) IncrementRetry(_ context.Context, id uuid.UUID) error {
	item, ok := r.items[id]
	if !ok {
		return repositories.ErrNotFound
	}
	item.RetryCount++
	item.UpdatedAt = r.tick()
	return nil
}

func (r *fakeQueueRepo) MarkCompleted(_ context.Context, id uuid.UUID) error {
	item, ok := r.items[id]
	if !ok {
		return repositories.ErrNotFound
	}
	item.Status = models.StatusCompleted
	item.IsConflict = false
	item.ErrorMessage = nil
	item.UpdatedAt = r.tick()
	return nil
}

func (r *fakeQueueRepo) MarkFailed(_ context.Context, id uuid.UUID, reason string, conflict bool) error {
	item, ok := r.items[id]
	if !ok {
		return repositories.ErrNotFound
	}
	item.Status = models.StatusFailed
	item.ErrorMessage = &reason
	item.IsConflict = conflict
	item.UpdatedAt = r.tick()
	return nil
}

func (r *fakeQueueRepo) ListConflicts(_ context.Context, userID uuid.UUID) ([]*models.SyncItem, error) {
	return r.list(userID, func(it *models.SyncItem) bool {
		return it.Status == models.StatusFailed && it.IsConflict
	}), nil
}

func (r *fakeQueueRepo) DeleteCompletedBefore(_ context.Context, userID uuid.UUID, cutoff time.Time) (int64, error) {
	var deleted int64
	remaining := r.order[:0]
	for _, id := range r.order {
		item := r.items[id]
		if item.UserID == userID && item.Status == models.StatusCompleted && item.UpdatedAt.Before(cutoff) {
			delete(r.items, id)
			deleted++
			continue
		}
		remaining = append(remaining, id)
	}
	r.order = remaining
	return deleted, nil
}

func (r *fakeQueueRepo) GetStatus(_ context.Context, userID uuid.UUID) (*models.SyncStatusSummary, error) {
	summary := &models.SyncStatusSummary{UserID: userID}
	for _, item := range r.items {
		if item.UserID != userID {
			continue
		}
		switch item.Status {
		case models.StatusPending:
			summary.PendingItems++
		case models.StatusProcessing:
			summary.ProcessingItems++
		case models.StatusFailed:
			summary.FailedItems++
		case models.StatusCompleted:
			if summary.LastSyncAt == nil || item.UpdatedAt.After(*summary.LastSyncAt) {
				at := item.UpdatedAt
				summary.LastSyncAt = &at
			}
		}
	}
	return summary, nil
}

// fakeEntityStore keeps documents and their server-side timestamps in maps.
// Error fields force transient failures on the matching operation, and
// applied records the order mutations land in.
type fakeEntityStore struct {
	docs      map[string]json.RawMessage
	updatedAt map[string]time.Time
	applied   []string

	createErr error
	updateErr error
	upsertErr error
	deleteErr error
}

func newFakeEntityStore() *fakeEntityStore {
	return &fakeEntityStore{
		docs:      make(map[string]json.RawMessage),
		updatedAt: make(map[string]time.Time),
	}
}

func (s *fakeEntityStore) put(entityID string, doc json.RawMessage, updatedAt time.Time) {
	s.docs[entityID] = doc
	s.updatedAt[entityID] = updatedAt
}

func (s *fakeEntityStore) Create(_ context.Context, _ uuid.UUID, entityID string, payload json.RawMessage) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.put(entityID, payload, time.Now())
	s.applied = append(s.applied, "create:"+entityID)
	return nil
}

func (s *fakeEntityStore) Update(_ context.Context, entityID string, payload json.RawMessage) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	if _, ok := s.docs[entityID]; !ok {
		return repositories.ErrNotFound
	}
	s.put(entityID, payload, time.Now())
	s.applied = append(s.applied, "update:"+entityID)
	return nil
}

func (s *fakeEntityStore) Upsert(_ context.Context, _ uuid.UUID, entityID string, payload json.RawMessage) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.put(entityID, payload, time.Now())
	s.applied = append(s.applied, "upsert:"+entityID)
	return nil
}

func (s *fakeEntityStore) Delete(_ context.Context, entityID string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.docs[entityID]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.docs, entityID)
	delete(s.updatedAt, entityID)
	s.applied = append(s.applied, "delete:"+entityID)
	return nil
}

func (s *fakeEntityStore) Exists(_ context.Context, entityID string) (bool, error) {
	_, ok := s.docs[entityID]
	return ok, nil
}

func (s *fakeEntityStore) ReadUpdatedAt(_ context.Context, entityID string) (time.Time, error) {
	at, ok := s.updatedAt[entityID]
	if !ok {
		return time.Time{}, repositories.ErrNotFound
	}
	return at, nil
}

func (s *fakeEntityStore) Get(_ context.Context, entityID string) (json.RawMessage, error) {
	doc, ok := s.docs[entityID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return doc, nil
}

// fakeLocker hands out locks unless held is set.
type fakeLocker struct {
	held     bool
	acquired int
	released int
}

func (l *fakeLocker) Acquire(_ context.Context, _ uuid.UUID) (func(), error) {
	if l.held {
		return nil, ErrSyncInProgress
	}
	l.acquired++
	return func() { l.released++ }, nil
}

type testEnv struct {
	svc    *SyncService
	queue  *fakeQueueRepo
	locker *fakeLocker
	stores map[models.EntityType]*fakeEntityStore
}

func newTestEnv() *testEnv {
	queue := newFakeQueueRepo()
	locker := &fakeLocker{}
	stores := map[models.EntityType]*fakeEntityStore{
		models.EntityBudget:       newFakeEntityStore(),
		models.EntityExpense:      newFakeEntityStore(),
		models.EntityCreditCard:   newFakeEntityStore(),
		models.EntityCategory:     newFakeEntityStore(),
		models.EntityBudgetPeriod: newFakeEntityStore(),
	}
	appliers := NewApplierRegistry(
		stores[models.EntityBudget],
		stores[models.EntityExpense],
		stores[models.EntityCreditCard],
		stores[models.EntityCategory],
		stores[models.EntityBudgetPeriod],
	)
	return &testEnv{
		svc:    NewSyncService(queue, appliers, locker),
		queue:  queue,
		locker: locker,
		stores: stores,
	}
}
