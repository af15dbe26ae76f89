package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmonterroso/budgetsync/internal/models"
	"github.com/dmonterroso/budgetsync/internal/repositories"
)

// ApplyOutcome is the result of replaying one queued mutation against the
// authoritative store. Exactly one of Success/Conflict is set on a clean
// outcome; Err carries the reason when Success is false.
type ApplyOutcome struct {
	Success  bool
	Conflict bool
	Err      error
}

// entityApplier replays mutations for one entity type through its store.
// The label appears in failure reasons ("budget already exists", ...).
type entityApplier struct {
	label string
	store repositories.EntityStore
}

// ApplierRegistry maps each entity type to its applier. The set is closed;
// dispatch is a lookup, not a type switch.
type ApplierRegistry map[models.EntityType]*entityApplier

func NewApplierRegistry(
	budgets repositories.EntityStore,
	expenses repositories.EntityStore,
	creditCards repositories.EntityStore,
	categories repositories.EntityStore,
	budgetPeriods repositories.EntityStore,
) ApplierRegistry {
	return ApplierRegistry{
		models.EntityBudget:       {label: "budget", store: budgets},
		models.EntityExpense:      {label: "expense", store: expenses},
		models.EntityCreditCard:   {label: "credit card", store: creditCards},
		models.EntityCategory:     {label: "category", store: categories},
		models.EntityBudgetPeriod: {label: "budget period", store: budgetPeriods},
	}
}

// Apply replays the item's mutation with conflict detection:
//   - CREATE conflicts when the entity already exists remotely.
//   - UPDATE compares the remote updated_at against the updatedAt the
//     client captured in the payload. A strictly newer remote timestamp is
//     a conflict. This is last-writer-wins, not a causal check; under
//     clock skew it can misjudge true concurrency. Known limitation.
//   - DELETE of an already-absent entity is success.
func (a *entityApplier) Apply(ctx context.Context, item *models.SyncItem) ApplyOutcome {
	switch item.Operation {
	case models.OpCreate:
		exists, err := a.store.Exists(ctx, item.EntityID)
		if err != nil {
			return ApplyOutcome{Err: err}
		}
		if exists {
			return ApplyOutcome{Conflict: true, Err: fmt.Errorf("%s already exists", a.label)}
		}
		if err := a.store.Create(ctx, item.UserID, item.EntityID, item.Payload); err != nil {
			return ApplyOutcome{Err: err}
		}
		return ApplyOutcome{Success: true}

	case models.OpUpdate:
		remoteUpdatedAt, err := a.store.ReadUpdatedAt(ctx, item.EntityID)
		if errors.Is(err, repositories.ErrNotFound) {
			return ApplyOutcome{Err: fmt.Errorf("%s not found for update", a.label)}
		}
		if err != nil {
			return ApplyOutcome{Err: err}
		}
		if remoteUpdatedAt.After(payloadUpdatedAt(item.Payload)) {
			return ApplyOutcome{Conflict: true, Err: fmt.Errorf("%s was modified more recently on server", a.label)}
		}
		if err := a.store.Update(ctx, item.EntityID, item.Payload); err != nil {
			return ApplyOutcome{Err: err}
		}
		return ApplyOutcome{Success: true}

	case models.OpDelete:
		err := a.store.Delete(ctx, item.EntityID)
		if errors.Is(err, repositories.ErrNotFound) {
			// Already gone; the delete is idempotent.
			return ApplyOutcome{Success: true}
		}
		if err != nil {
			return ApplyOutcome{Err: err}
		}
		return ApplyOutcome{Success: true}

	default:
		return ApplyOutcome{Err: fmt.Errorf("unknown operation: %s", item.Operation)}
	}
}

// ForceApply replays the item bypassing existence and timestamp checks.
// Conflict resolution uses this for LOCAL and MERGE outcomes.
func (a *entityApplier) ForceApply(ctx context.Context, item *models.SyncItem) error {
	switch item.Operation {
	case models.OpCreate, models.OpUpdate:
		return a.store.Upsert(ctx, item.UserID, item.EntityID, item.Payload)
	case models.OpDelete:
		err := a.store.Delete(ctx, item.EntityID)
		if errors.Is(err, repositories.ErrNotFound) {
			return nil
		}
		return err
	default:
		return fmt.Errorf("unknown operation: %s", item.Operation)
	}
}

// Remote fetches the current authoritative document for conflict display.
func (a *entityApplier) Remote(ctx context.Context, entityID string) (json.RawMessage, error) {
	return a.store.Get(ctx, entityID)
}

// payloadUpdatedAt extracts the client's updatedAt from the payload
// document. A missing or unparseable timestamp yields the zero time, which
// loses against any real remote timestamp.
func payloadUpdatedAt(payload json.RawMessage) time.Time {
	var doc struct {
		UpdatedAt time.Time `json:"updatedAt"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return time.Time{}
	}
	return doc.UpdatedAt
}
