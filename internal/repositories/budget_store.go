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

// PostgresBudgetStore applies sync payloads to the budgets table. Offline
// clients send complete entity documents, so writes set every column.
type PostgresBudgetStore struct {
	pool *pgxpool.Pool
}

func NewPostgresBudgetStore(pool *pgxpool.Pool) *PostgresBudgetStore {
	return &PostgresBudgetStore{pool: pool}
}

func (s *PostgresBudgetStore) Create(ctx context.Context, userID uuid.UUID, entityID string, payload json.RawMessage) error {
	var budget models.Budget
	if err := json.Unmarshal(payload, &budget); err != nil {
		return fmt.Errorf("failed to decode budget payload: %w", err)
	}

	query := `INSERT INTO budgets (id, user_id, month, year, payment_frequency, total_income)
	          VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.pool.Exec(ctx, query,
		entityID,
		userID,
		budget.Month,
		budget.Year,
		budget.PaymentFrequency,
		budget.TotalIncome,
	)
	if err != nil {
		return fmt.Errorf("failed to create budget: %w", err)
	}
	return nil
}

func (s *PostgresBudgetStore) Update(ctx context.Context, entityID string, payload json.RawMessage) error {
	var budget models.Budget
	if err := json.Unmarshal(payload, &budget); err != nil {
		return fmt.Errorf("failed to decode budget payload: %w", err)
	}

	query := `UPDATE budgets
	          SET month = $1, year = $2, payment_frequency = $3, total_income = $4, updated_at = NOW()
	          WHERE id = $5`

	result, err := s.pool.Exec(ctx, query,
		budget.Month,
		budget.Year,
		budget.PaymentFrequency,
		budget.TotalIncome,
		entityID,
	)
	if err != nil {
		return fmt.Errorf("failed to update budget: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresBudgetStore) Upsert(ctx context.Context, userID uuid.UUID, entityID string, payload json.RawMessage) error {
	var budget models.Budget
	if err := json.Unmarshal(payload, &budget); err != nil {
		return fmt.Errorf("failed to decode budget payload: %w", err)
	}

	query := `INSERT INTO budgets (id, user_id, month, year, payment_frequency, total_income)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          ON CONFLICT (id) DO UPDATE
	          SET month = EXCLUDED.month,
	              year = EXCLUDED.year,
	              payment_frequency = EXCLUDED.payment_frequency,
	              total_income = EXCLUDED.total_income,
	              updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query,
		entityID,
		userID,
		budget.Month,
		budget.Year,
		budget.PaymentFrequency,
		budget.TotalIncome,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert budget: %w", err)
	}
	return nil
}

func (s *PostgresBudgetStore) Delete(ctx context.Context, entityID string) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM budgets WHERE id = $1`, entityID)
	if err != nil {
		return fmt.Errorf("failed to delete budget: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresBudgetStore) Exists(ctx context.Context, entityID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM budgets WHERE id = $1)`, entityID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check budget existence: %w", err)
	}
	return exists, nil
}

func (s *PostgresBudgetStore) ReadUpdatedAt(ctx context.Context, entityID string) (time.Time, error) {
	var updatedAt time.Time
	err := s.pool.QueryRow(ctx, `SELECT updated_at FROM budgets WHERE id = $1`, entityID).Scan(&updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read budget updated_at: %w", err)
	}
	return updatedAt, nil
}

func (s *PostgresBudgetStore) Get(ctx context.Context, entityID string) (json.RawMessage, error) {
	query := `SELECT id, user_id, month, year, payment_frequency, total_income, created_at, updated_at
	          FROM budgets
	          WHERE id = $1`

	var budget models.Budget
	err := s.pool.QueryRow(ctx, query, entityID).Scan(
		&budget.ID,
		&budget.UserID,
		&budget.Month,
		&budget.Year,
		&budget.PaymentFrequency,
		&budget.TotalIncome,
		&budget.CreatedAt,
		&budget.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get budget: %w", err)
	}

	doc, err := json.Marshal(budget)
	if err != nil {
		return nil, fmt.Errorf("failed to encode budget: %w", err)
	}
	return doc, nil
}
