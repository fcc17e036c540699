package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/platewise/menuboard/internal/menu"
)

// GetDraft loads the restaurant's draft document.
func (s *Store) GetDraft(ctx context.Context, restaurantID string) (*menu.DraftRecord, error) {
	rec := &menu.DraftRecord{RestaurantID: restaurantID}

	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT document, updated_at FROM menu_drafts WHERE restaurant_id = $1`,
		restaurantID,
	).Scan(&raw, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, menu.ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}

	if err := json.Unmarshal(raw, &rec.Document); err != nil {
		return nil, fmt.Errorf("decode draft document: %w", err)
	}
	return rec, nil
}

// UpsertDraft persists the whole draft document in a single statement keyed
// by restaurant. Last write wins.
func (s *Store) UpsertDraft(ctx context.Context, rec *menu.DraftRecord) error {
	raw, err := json.Marshal(rec.Document)
	if err != nil {
		return fmt.Errorf("encode draft document: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO menu_drafts (restaurant_id, document, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (restaurant_id)
		DO UPDATE SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at`,
		rec.RestaurantID, raw, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert draft: %w", err)
	}
	return nil
}
