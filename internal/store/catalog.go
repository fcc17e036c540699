package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/platewise/menuboard/internal/menu"
)

// UpsertCategory inserts or updates a category keyed by (restaurant, id).
// The xmax = 0 check distinguishes a fresh insert from an update of an
// existing row, which is what receipt counts are built from.
func (s *Store) UpsertCategory(ctx context.Context, c menu.Category) (bool, error) {
	var created bool
	err := s.pool.QueryRow(ctx, `
		INSERT INTO categories (id, restaurant_id, name, description, sort_order, image_url, archived_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (restaurant_id, id)
		DO UPDATE SET
			name        = EXCLUDED.name,
			description = EXCLUDED.description,
			sort_order  = EXCLUDED.sort_order,
			image_url   = EXCLUDED.image_url,
			archived_at = EXCLUDED.archived_at,
			updated_at  = EXCLUDED.updated_at
		RETURNING (xmax = 0)`,
		c.ID, c.RestaurantID, c.Name, c.Description, c.SortOrder, c.ImageURL, c.ArchivedAt, c.UpdatedAt,
	).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("upsert category %s: %w", c.ID, err)
	}
	return created, nil
}

// ActiveCategories returns the restaurant's non-archived categories in sort
// order.
func (s *Store) ActiveCategories(ctx context.Context, restaurantID string) ([]menu.Category, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, restaurant_id, name, description, sort_order, image_url, archived_at, updated_at
		FROM categories
		WHERE restaurant_id = $1 AND archived_at IS NULL
		ORDER BY sort_order, name`,
		restaurantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []menu.Category
	for rows.Next() {
		var c menu.Category
		if err := rows.Scan(&c.ID, &c.RestaurantID, &c.Name, &c.Description, &c.SortOrder, &c.ImageURL, &c.ArchivedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const itemColumns = `id, restaurant_id, external_key, name, description, price,
	image_url, tags, in_stock, restock_at, category_id, sort_order, archived_at, updated_at`

func scanItem(row pgx.Row) (menu.Item, error) {
	var it menu.Item
	err := row.Scan(&it.ID, &it.RestaurantID, &it.ExternalKey, &it.Name, &it.Description, &it.Price,
		&it.ImageURL, &it.Tags, &it.InStock, &it.RestockAt, &it.CategoryID, &it.SortOrder, &it.ArchivedAt, &it.UpdatedAt)
	return it, err
}

func collectItems(rows pgx.Rows) ([]menu.Item, error) {
	defer rows.Close()
	var out []menu.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// UpsertItemByKey inserts or updates an item keyed by (restaurant, external
// key) and returns the live row id. A republished unchanged item is an
// update, not an insert.
func (s *Store) UpsertItemByKey(ctx context.Context, it menu.Item) (string, bool, error) {
	var (
		id      string
		created bool
	)
	err := s.pool.QueryRow(ctx, `
		INSERT INTO items (id, restaurant_id, external_key, name, description, price,
			image_url, tags, in_stock, restock_at, category_id, sort_order, archived_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (restaurant_id, external_key)
		DO UPDATE SET
			name        = EXCLUDED.name,
			description = EXCLUDED.description,
			price       = EXCLUDED.price,
			image_url   = EXCLUDED.image_url,
			tags        = EXCLUDED.tags,
			in_stock    = EXCLUDED.in_stock,
			restock_at  = EXCLUDED.restock_at,
			category_id = EXCLUDED.category_id,
			sort_order  = EXCLUDED.sort_order,
			archived_at = EXCLUDED.archived_at,
			updated_at  = EXCLUDED.updated_at
		RETURNING id, (xmax = 0)`,
		it.ID, it.RestaurantID, it.ExternalKey, it.Name, it.Description, it.Price,
		it.ImageURL, it.Tags, it.InStock, it.RestockAt, it.CategoryID, it.SortOrder, it.ArchivedAt, it.UpdatedAt,
	).Scan(&id, &created)
	if err != nil {
		return "", false, fmt.Errorf("upsert item %s: %w", it.ExternalKey, err)
	}
	return id, created, nil
}

// InsertItem creates a new live item row.
func (s *Store) InsertItem(ctx context.Context, it menu.Item) (string, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO items (id, restaurant_id, external_key, name, description, price,
			image_url, tags, in_stock, restock_at, category_id, sort_order, archived_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		it.ID, it.RestaurantID, it.ExternalKey, it.Name, it.Description, it.Price,
		it.ImageURL, it.Tags, it.InStock, it.RestockAt, it.CategoryID, it.SortOrder, it.ArchivedAt, it.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert item %s: %w", it.Name, err)
	}
	return it.ID, nil
}

// UpdateItem rewrites a live item row by id.
func (s *Store) UpdateItem(ctx context.Context, it menu.Item) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE items SET
			name        = $3,
			description = $4,
			price       = $5,
			image_url   = $6,
			tags        = $7,
			in_stock    = $8,
			restock_at  = $9,
			category_id = $10,
			sort_order  = $11,
			updated_at  = $12
		WHERE restaurant_id = $1 AND id = $2`,
		it.RestaurantID, it.ID, it.Name, it.Description, it.Price,
		it.ImageURL, it.Tags, it.InStock, it.RestockAt, it.CategoryID, it.SortOrder, it.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update item %s: %w", it.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return menu.ErrItemNotFound
	}
	return nil
}

// ItemsByKeys returns the restaurant's items matching any of the given
// external keys. Missing keys are silently absent from the result.
func (s *Store) ItemsByKeys(ctx context.Context, restaurantID string, keys []string) ([]menu.Item, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+itemColumns+` FROM items WHERE restaurant_id = $1 AND external_key = ANY($2)`,
		restaurantID, keys,
	)
	if err != nil {
		return nil, fmt.Errorf("items by keys: %w", err)
	}
	return collectItems(rows)
}

// ItemsByIDs returns the restaurant's items matching any of the given row ids.
func (s *Store) ItemsByIDs(ctx context.Context, restaurantID string, ids []string) ([]menu.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+itemColumns+` FROM items WHERE restaurant_id = $1 AND id = ANY($2)`,
		restaurantID, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("items by ids: %w", err)
	}
	return collectItems(rows)
}

// ActiveItems returns the restaurant's non-archived items in sort order.
func (s *Store) ActiveItems(ctx context.Context, restaurantID string) ([]menu.Item, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+itemColumns+` FROM items
		 WHERE restaurant_id = $1 AND archived_at IS NULL
		 ORDER BY sort_order, name`,
		restaurantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return collectItems(rows)
}

// ItemByID returns one item or menu.ErrItemNotFound.
func (s *Store) ItemByID(ctx context.Context, restaurantID, id string) (*menu.Item, error) {
	it, err := scanItem(s.pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM items WHERE restaurant_id = $1 AND id = $2`,
		restaurantID, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, menu.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("item by id: %w", err)
	}
	return &it, nil
}

// ArchiveItem soft-deletes an item. Already-archived items are left as is.
func (s *Store) ArchiveItem(ctx context.Context, restaurantID, id string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE items SET archived_at = NOW(), updated_at = NOW()
		WHERE restaurant_id = $1 AND id = $2 AND archived_at IS NULL`,
		restaurantID, id,
	)
	if err != nil {
		return fmt.Errorf("archive item %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		// Either missing or already archived; confirm it exists.
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM items WHERE restaurant_id = $1 AND id = $2)`,
			restaurantID, id,
		).Scan(&exists); err != nil {
			return fmt.Errorf("archive item %s: %w", id, err)
		}
		if !exists {
			return menu.ErrItemNotFound
		}
	}
	return nil
}
