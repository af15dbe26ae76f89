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

type PostgresCategoryStore struct {
	pool *pgxpool.Pool
}

func NewPostgresCategoryStore(pool *pgxpool.Pool) *PostgresCategoryStore {
	return &PostgresCategoryStore{pool: pool}
}

func (s *PostgresCategoryStore) Create(ctx context.Context, userID uuid.UUID, entityID string, payload json.RawMessage) error {
	var category models.Category
	if err := json.Unmarshal(payload, &category); err != nil {
		return fmt.Errorf("failed to decode category payload: %w", err)
	}

	query := `INSERT INTO categories (id, user_id, name, color, icon, is_default)
	          VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.pool.Exec(ctx, query,
		entityID,
		userID,
		category.Name,
		category.Color,
		category.Icon,
		category.IsDefault,
	)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

func (s *PostgresCategoryStore) Update(ctx context.Context, entityID string, payload json.RawMessage) error {
	var category models.Category
	if err := json.Unmarshal(payload, &category); err != nil {
		return fmt.Errorf("failed to decode category payload: %w", err)
	}

	query := `UPDATE categories
	          SET name = $1, color = $2, icon = $3, is_default = $4, updated_at = NOW()
	          WHERE id = $5`

	result, err := s.pool.Exec(ctx, query,
		category.Name,
		category.Color,
		category.Icon,
		category.IsDefault,
		entityID,
	)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresCategoryStore) Upsert(ctx context.Context, userID uuid.UUID, entityID string, payload json.RawMessage) error {
	var category models.Category
	if err := json.Unmarshal(payload, &category); err != nil {
		return fmt.Errorf("failed to decode category payload: %w", err)
	}

	query := `INSERT INTO categories (id, user_id, name, color, icon, is_default)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          ON CONFLICT (id) DO UPDATE
	          SET name = EXCLUDED.name,
	              color = EXCLUDED.color,
	              icon = EXCLUDED.icon,
	              is_default = EXCLUDED.is_default,
	              updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query,
		entityID,
		userID,
		category.Name,
		category.Color,
		category.Icon,
		category.IsDefault,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert category: %w", err)
	}
	return nil
}

func (s *PostgresCategoryStore) Delete(ctx context.Context, entityID string) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, entityID)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresCategoryStore) Exists(ctx context.Context, entityID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM categories WHERE id = $1)`, entityID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check category existence: %w", err)
	}
	return exists, nil
}

func (s *PostgresCategoryStore) ReadUpdatedAt(ctx context.Context, entityID string) (time.Time, error) {
	var updatedAt time.Time
	err := s.pool.QueryRow(ctx, `SELECT updated_at FROM categories WHERE id = $1`, entityID).Scan(&updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read category updated_at: %w", err)
	}
	return updatedAt, nil
}

func (s *PostgresCategoryStore) Get(ctx context.Context, entityID string) (json.RawMessage, error) {
	query := `SELECT id, user_id, name, color, icon, is_default, created_at, updated_at
	          FROM categories
	          WHERE id = $1`

	var category models.Category
	err := s.pool.QueryRow(ctx, query, entityID).Scan(
		&category.ID,
		&category.UserID,
		&category.Name,
		&category.Color,
		&category.Icon,
		&category.IsDefault,
		&category.CreatedAt,
		&category.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}

	doc, err := json.Marshal(category)
	if err != nil {
		return nil, fmt.Errorf("failed to encode category: %w", err)
	}
	return doc, nil
}
