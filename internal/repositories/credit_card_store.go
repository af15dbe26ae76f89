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

type PostgresCreditCardStore struct {
	pool *pgxpool.Pool
}

func NewPostgresCreditCardStore(pool *pgxpool.Pool) *PostgresCreditCardStore {
	return &PostgresCreditCardStore{pool: pool}
}

func (s *PostgresCreditCardStore) Create(ctx context.Context, userID uuid.UUID, entityID string, payload json.RawMessage) error {
	var card models.CreditCard
	if err := json.Unmarshal(payload, &card); err != nil {
		return fmt.Errorf("failed to decode credit card payload: %w", err)
	}

	query := `INSERT INTO credit_cards (id, user_id, name, bank, limit_gtq, limit_usd, current_balance_gtq, current_balance_usd, is_active)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		entityID,
		userID,
		card.Name,
		card.Bank,
		card.LimitGTQ,
		card.LimitUSD,
		card.CurrentBalanceGTQ,
		card.CurrentBalanceUSD,
		card.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to create credit card: %w", err)
	}
	return nil
}

func (s *PostgresCreditCardStore) Update(ctx context.Context, entityID string, payload json.RawMessage) error {
	var card models.CreditCard
	if err := json.Unmarshal(payload, &card); err != nil {
		return fmt.Errorf("failed to decode credit card payload: %w", err)
	}

	query := `UPDATE credit_cards
	          SET name = $1, bank = $2, limit_gtq = $3, limit_usd = $4,
	              current_balance_gtq = $5, current_balance_usd = $6, is_active = $7, updated_at = NOW()
	          WHERE id = $8`

	result, err := s.pool.Exec(ctx, query,
		card.Name,
		card.Bank,
		card.LimitGTQ,
		card.LimitUSD,
		card.CurrentBalanceGTQ,
		card.CurrentBalanceUSD,
		card.IsActive,
		entityID,
	)
	if err != nil {
		return fmt.Errorf("failed to update credit card: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresCreditCardStore) Upsert(ctx context.Context, userID uuid.UUID, entityID string, payload json.RawMessage) error {
	var card models.CreditCard
	if err := json.Unmarshal(payload, &card); err != nil {
		return fmt.Errorf("failed to decode credit card payload: %w", err)
	}

	query := `INSERT INTO credit_cards (id, user_id, name, bank, limit_gtq, limit_usd, current_balance_gtq, current_balance_usd, is_active)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	          ON CONFLICT (id) DO UPDATE
	          SET name = EXCLUDED.name,
	              bank = EXCLUDED.bank,
	              limit_gtq = EXCLUDED.limit_gtq,
	              limit_usd = EXCLUDED.limit_usd,
	              current_balance_gtq = EXCLUDED.current_balance_gtq,
	              current_balance_usd = EXCLUDED.current_balance_usd,
	              is_active = EXCLUDED.is_active,
	              updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query,
		entityID,
		userID,
		card.Name,
		card.Bank,
		card.LimitGTQ,
		card.LimitUSD,
		card.CurrentBalanceGTQ,
		card.CurrentBalanceUSD,
		card.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert credit card: %w", err)
	}
	return nil
}

func (s *PostgresCreditCardStore) Delete(ctx context.Context, entityID string) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM credit_cards WHERE id = $1`, entityID)
	if err != nil {
		return fmt.Errorf("failed to delete credit card: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresCreditCardStore) Exists(ctx context.Context, entityID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM credit_cards WHERE id = $1)`, entityID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check credit card existence: %w", err)
	}
	return exists, nil
}

func (s *PostgresCreditCardStore) ReadUpdatedAt(ctx context.Context, entityID string) (time.Time, error) {
	var updatedAt time.Time
	err := s.pool.QueryRow(ctx, `SELECT updated_at FROM credit_cards WHERE id = $1`, entityID).Scan(&updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read credit card updated_at: %w", err)
	}
	return updatedAt, nil
}

func (s *PostgresCreditCardStore) Get(ctx context.Context, entityID string) (json.RawMessage, error) {
	query := `SELECT id, user_id, name, bank, limit_gtq, limit_usd, current_balance_gtq, current_balance_usd, is_active, created_at, updated_at
	          FROM credit_cards
	          WHERE id = $1`

	var card models.CreditCard
	err := s.pool.QueryRow(ctx, query, entityID).Scan(
		&card.ID,
		&card.UserID,
		&card.Name,
		&card.Bank,
		&card.LimitGTQ,
		&card.LimitUSD,
		&card.CurrentBalanceGTQ,
		&card.CurrentBalanceUSD,
		&card.IsActive,
		&card.CreatedAt,
		&card.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credit card: %w", err)
	}

	doc, err := json.Marshal(card)
	if err != nil {
		return nil, fmt.Errorf("failed to encode credit card: %w", err)
	}
	return doc, nil
}
