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

type PostgresExpenseStore struct {
	pool *pgxpool.Pool
}

func NewPostgresExpenseStore(pool *pgxpool.Pool) *PostgresExpenseStore {
	return &PostgresExpenseStore{pool: pool}
}

func (s *PostgresExpenseStore) Create(ctx context.Context, userID uuid.UUID, entityID string, payload json.RawMessage) error {
	var expense models.Expense
	if err := json.Unmarshal(payload, &expense); err != nil {
		return fmt.Errorf("failed to decode expense payload: %w", err)
	}

	query := `INSERT INTO expenses (id, user_id, category_id, credit_card_id, budget_period_id, amount, currency, description, date)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		entityID,
		userID,
		expense.CategoryID,
		expense.CreditCardID,
		expense.BudgetPeriodID,
		expense.Amount,
		expense.Currency,
		expense.Description,
		expense.Date,
	)
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

func (s *PostgresExpenseStore) Update(ctx context.Context, entityID string, payload json.RawMessage) error {
	var expense models.Expense
	if err := json.Unmarshal(payload, &expense); err != nil {
		return fmt.Errorf("failed to decode expense payload: %w", err)
	}

	query := `UPDATE expenses
	          SET category_id = $1, credit_card_id = $2, budget_period_id = $3,
	              amount = $4, currency = $5, description = $6, date = $7, updated_at = NOW()
	          WHERE id = $8`

	result, err := s.pool.Exec(ctx, query,
		expense.CategoryID,
		expense.CreditCardID,
		expense.BudgetPeriodID,
		expense.Amount,
		expense.Currency,
		expense.Description,
		expense.Date,
		entityID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresExpenseStore) Upsert(ctx context.Context, userID uuid.UUID, entityID string, payload json.RawMessage) error {
	var expense models.Expense
	if err := json.Unmarshal(payload, &expense); err != nil {
		return fmt.Errorf("failed to decode expense payload: %w", err)
	}

	query := `INSERT INTO expenses (id, user_id, category_id, credit_card_id, budget_period_id, amount, currency, description, date)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	          ON CONFLICT (id) DO UPDATE
	          SET category_id = EXCLUDED.category_id,
	              credit_card_id = EXCLUDED.credit_card_id,
	              budget_period_id = EXCLUDED.budget_period_id,
	              amount = EXCLUDED.amount,
	              currency = EXCLUDED.currency,
	              description = EXCLUDED.description,
	              date = EXCLUDED.date,
	              updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query,
		entityID,
		userID,
		expense.CategoryID,
		expense.CreditCardID,
		expense.BudgetPeriodID,
		expense.Amount,
		expense.Currency,
		expense.Description,
		expense.Date,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert expense: %w", err)
	}
	return nil
}

func (s *PostgresExpenseStore) Delete(ctx context.Context, entityID string) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, entityID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresExpenseStore) Exists(ctx context.Context, entityID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM expenses WHERE id = $1)`, entityID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check expense existence: %w", err)
	}
	return exists, nil
}

func (s *PostgresExpenseStore) ReadUpdatedAt(ctx context.Context, entityID string) (time.Time, error) {
	var updatedAt time.Time
	err := s.pool.QueryRow(ctx, `SELECT updated_at FROM expenses WHERE id = $1`, entityID).Scan(&updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read expense updated_at: %w", err)
	}
	return updatedAt, nil
}

func (s *PostgresExpenseStore) Get(ctx context.Context, entityID string) (json.RawMessage, error) {
	query := `SELECT id, user_id, category_id, credit_card_id, budget_period_id, amount, currency, description, date, created_at, updated_at
	          FROM expenses
	          WHERE id = $1`

	var expense models.Expense
	err := s.pool.QueryRow(ctx, query, entityID).Scan(
		&expense.ID,
		&expense.UserID,
		&expense.CategoryID,
		&expense.CreditCardID,
		&expense.BudgetPeriodID,
		&expense.Amount,
		&expense.Currency,
		&expense.Description,
		&expense.Date,
		&expense.CreatedAt,
		&expense.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	doc, err := json.Marshal(expense)
	if err != nil {
		return nil, fmt.Errorf("failed to encode expense: %w", err)
	}
	return doc, nil
}
