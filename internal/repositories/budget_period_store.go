package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmonterroso/budgetsync/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBudgetPeriodStore applies sync payloads to the budget_periods
// table. Periods hang off a budget rather than a user, so the userID
// argument is unused here; it stays in the signature to keep the
// EntityStore contract uniform.
type PostgresBudgetPeriodStore struct {
	pool *pgxpool.Pool
}

func NewPostgresBudgetPeriodStore(pool *pgxpool.Pool) *PostgresBudgetPeriodStore {
	return &PostgresBudgetPeriodStore{pool: pool}
}

func (s *PostgresBudgetPeriodStore) Create(ctx context.Context, _ uuid.UUID, entityID string, payload json.RawMessage) error {
	var period models.BudgetPeriod
	if err := json.Unmarshal(payload, &period); err != nil {
		return fmt.Errorf("failed to decode budget period payload: %w", err)
	}

	query := `INSERT INTO budget_periods (id, budget_id, period_number, income)
	          VALUES ($1, $2, $3, $4)`

	_, err := s.pool.Exec(ctx, query,
		entityID,
		period.BudgetID,
		period.PeriodNumber,
		period.Income,
	)
	if err != nil {
		return fmt.Errorf("failed to create budget period: %w", err)
	}
	return nil
}

func (s *PostgresBudgetPeriodStore) Update(ctx context.Context, entityID string, payload json.RawMessage) error {
	var period models.BudgetPeriod
	if err := json.Unmarshal(payload, &period); err != nil {
		return fmt.Errorf("failed to decode budget period payload: %w", err)
	}

	query := `UPDATE budget_periods
	          SET budget_id = $1, period_number = $2, income = $3, updated_at = NOW()
	          WHERE id = $4`

	result, err := s.pool.Exec(ctx, query,
		period.BudgetID,
		period.PeriodNumber,
		period.Income,
		entityID,
	)
	if err != nil {
		return fmt.Errorf("failed to update budget period: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresBudgetPeriodStore) Upsert(ctx context.Context, _ uuid.UUID, entityID string, payload json.RawMessage) error {
	var period models.BudgetPeriod
	if err := json.Unmarshal(payload, &period); err != nil {
		return fmt.Errorf("failed to decode budget period payload: %w", err)
	}

	query := `INSERT INTO budget_periods (id, budget_id, period_number, income)
	          VALUES ($1, $2, $3, $4)
	          ON CONFLICT (id) DO UPDATE
	          SET budget_id = EXCLUDED.budget_id,
	              period_number = EXCLUDED.period_number,
	              income = EXCLUDED.income,
	              updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query,
		entityID,
		period.BudgetID,
		period.PeriodNumber,
		period.Income,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert budget period: %w", err)
	}
	return nil
}

func (s *PostgresBudgetPeriodStore) Delete(ctx context.Context, entityID string) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM budget_periods WHERE id = $1`, entityID)
	if err != nil {
		return fmt.Errorf("failed to delete budget period: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresBudgetPeriodStore) Exists(ctx context.Context, entityID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM budget_periods WHERE id = $1)`, entityID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check budget period existence: %w", err)
	}
	return exists, nil
}

func (s *PostgresBudgetPeriodStore) ReadUpdatedAt(ctx context.Context, entityID string) (time.Time, error) {
	var updatedAt time.Time
	err := s.pool.QueryRow(ctx, `SELECT updated_at FROM budget_periods WHERE id = $1`, entityID).Scan(&updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read budget period updated_at: %w", err)
	}
	return updatedAt, nil
}

func (s *PostgresBudgetPeriodStore) Get(ctx context.Context, entityID string) (json.RawMessage, error) {
	query := `SELECT id, budget_id, period_number, income, created_at, updated_at
	          FROM budget_periods
	          WHERE id = $1`

	var period models.BudgetPeriod
	err := s.pool.QueryRow(ctx, query, entityID).Scan(
		&period.ID,
		&period.BudgetID,
		&period.PeriodNumber,
		&period.Income,
		&period.CreatedAt,
		&period.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get budget period: %w", err)
	}

	doc, err := json.Marshal(period)
	if err != nil {
		return nil, fmt.Errorf("failed to encode budget period: %w", err)
	}
	return doc, nil
}
