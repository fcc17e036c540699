package store

import (
	"context"
	"fmt"

	"github.com/platewise/menuboard/internal/menu"
)

// nullable maps the empty string to SQL NULL so the partial unique indexes
// on addon_links see only one populated reference column per row.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// AddonGroups returns every group row for (restaurant, state), archived
// included.
func (s *Store) AddonGroups(ctx context.Context, restaurantID string, state menu.State) ([]menu.AddonGroup, error) {
	return addonGroups(ctx, s.pool, restaurantID, state)
}

func addonGroups(ctx context.Context, db DBTX, restaurantID string, state menu.State) ([]menu.AddonGroup, error) {
	rows, err := db.Query(ctx, `
		SELECT id, restaurant_id, state, name, required, multiple_choice,
			max_group_select, max_option_quantity, archived_at
		FROM addon_groups
		WHERE restaurant_id = $1 AND state = $2
		ORDER BY name, id`,
		restaurantID, state,
	)
	if err != nil {
		return nil, fmt.Errorf("list addon groups: %w", err)
	}
	defer rows.Close()

	var out []menu.AddonGroup
	for rows.Next() {
		var g menu.AddonGroup
		if err := rows.Scan(&g.ID, &g.RestaurantID, &g.State, &g.Name, &g.Required, &g.MultipleChoice,
			&g.MaxGroupSelect, &g.MaxOptionQuantity, &g.ArchivedAt); err != nil {
			return nil, fmt.Errorf("scan addon group: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// AddonOptions returns every option row for (restaurant, state).
func (s *Store) AddonOptions(ctx context.Context, restaurantID string, state menu.State) ([]menu.AddonOption, error) {
	return addonOptions(ctx, s.pool, restaurantID, state)
}

func addonOptions(ctx context.Context, db DBTX, restaurantID string, state menu.State) ([]menu.AddonOption, error) {
	rows, err := db.Query(ctx, `
		SELECT id, restaurant_id, group_id, state, name, price, in_stock, archived_at
		FROM addon_options
		WHERE restaurant_id = $1 AND state = $2
		ORDER BY group_id, name, id`,
		restaurantID, state,
	)
	if err != nil {
		return nil, fmt.Errorf("list addon options: %w", err)
	}
	defer rows.Close()

	var out []menu.AddonOption
	for rows.Next() {
		var o menu.AddonOption
		if err := rows.Scan(&o.ID, &o.RestaurantID, &o.GroupID, &o.State, &o.Name, &o.Price, &o.InStock, &o.ArchivedAt); err != nil {
			return nil, fmt.Errorf("scan addon option: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// AddonLinks returns every link row for (restaurant, state).
func (s *Store) AddonLinks(ctx context.Context, restaurantID string, state menu.State) ([]menu.AddonLink, error) {
	return addonLinks(ctx, s.pool, restaurantID, state)
}

func addonLinks(ctx context.Context, db DBTX, restaurantID string, state menu.State) ([]menu.AddonLink, error) {
	rows, err := db.Query(ctx, `
		SELECT id, restaurant_id, state, group_id, COALESCE(item_key, ''), COALESCE(item_id, '')
		FROM addon_links
		WHERE restaurant_id = $1 AND state = $2
		ORDER BY group_id, id`,
		restaurantID, state,
	)
	if err != nil {
		return nil, fmt.Errorf("list addon links: %w", err)
	}
	defer rows.Close()

	var out []menu.AddonLink
	for rows.Next() {
		var l menu.AddonLink
		if err := rows.Scan(&l.ID, &l.RestaurantID, &l.State, &l.GroupID, &l.ItemKey, &l.ItemID); err != nil {
			return nil, fmt.Errorf("scan addon link: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// UpsertAddonGroup inserts or updates a group keyed by (restaurant, state, id).
func (s *Store) UpsertAddonGroup(ctx context.Context, g menu.AddonGroup) error {
	_, err := upsertAddonGroup(ctx, s.pool, g)
	return err
}

func upsertAddonGroup(ctx context.Context, db DBTX, g menu.AddonGroup) (bool, error) {
	var created bool
	err := db.QueryRow(ctx, `
		INSERT INTO addon_groups (id, restaurant_id, state, name, required, multiple_choice,
			max_group_select, max_option_quantity, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (restaurant_id, state, id)
		DO UPDATE SET
			name                = EXCLUDED.name,
			required            = EXCLUDED.required,
			multiple_choice     = EXCLUDED.multiple_choice,
			max_group_select    = EXCLUDED.max_group_select,
			max_option_quantity = EXCLUDED.max_option_quantity,
			archived_at         = EXCLUDED.archived_at
		RETURNING (xmax = 0)`,
		g.ID, g.RestaurantID, g.State, g.Name, g.Required, g.MultipleChoice,
		g.MaxGroupSelect, g.MaxOptionQuantity, g.ArchivedAt,
	).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("upsert addon group %s: %w", g.ID, err)
	}
	return created, nil
}

// UpsertAddonOption inserts or updates an option keyed by (restaurant, state, id).
func (s *Store) UpsertAddonOption(ctx context.Context, o menu.AddonOption) error {
	_, err := upsertAddonOption(ctx, s.pool, o)
	return err
}

func upsertAddonOption(ctx context.Context, db DBTX, o menu.AddonOption) (bool, error) {
	var created bool
	err := db.QueryRow(ctx, `
		INSERT INTO addon_options (id, restaurant_id, group_id, state, name, price, in_stock, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (restaurant_id, state, id)
		DO UPDATE SET
			group_id    = EXCLUDED.group_id,
			name        = EXCLUDED.name,
			price       = EXCLUDED.price,
			in_stock    = EXCLUDED.in_stock,
			archived_at = EXCLUDED.archived_at
		RETURNING (xmax = 0)`,
		o.ID, o.RestaurantID, o.GroupID, o.State, o.Name, o.Price, o.InStock, o.ArchivedAt,
	).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("upsert addon option %s: %w", o.ID, err)
	}
	return created, nil
}

// ArchiveAddonGroup soft-deletes a group and its options in one state.
func (s *Store) ArchiveAddonGroup(ctx context.Context, restaurantID, groupID string, state menu.State) error {
	if _, err := s.pool.Exec(ctx, `
		UPDATE addon_groups SET archived_at = NOW()
		WHERE restaurant_id = $1 AND state = $2 AND id = $3 AND archived_at IS NULL`,
		restaurantID, state, groupID,
	); err != nil {
		return fmt.Errorf("archive addon group %s: %w", groupID, err)
	}
	if _, err := s.pool.Exec(ctx, `
		UPDATE addon_options SET archived_at = NOW()
		WHERE restaurant_id = $1 AND state = $2 AND group_id = $3 AND archived_at IS NULL`,
		restaurantID, state, groupID,
	); err != nil {
		return fmt.Errorf("archive addon group %s options: %w", groupID, err)
	}
	return nil
}

// ReplaceAddonLinks deletes the full link set for (restaurant, state) and
// inserts the given rows.
func (s *Store) ReplaceAddonLinks(ctx context.Context, restaurantID string, state menu.State, links []menu.AddonLink) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("replace addon links: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := replaceAddonLinks(ctx, tx, restaurantID, state, links); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("replace addon links: %w", err)
	}
	return nil
}

// replaceAddonLinks swaps the link set and reports how many of the new rows
// reference a (group, item) pair that was not present before. Re-inserting
// an identical set counts zero.
func replaceAddonLinks(ctx context.Context, db DBTX, restaurantID string, state menu.State, links []menu.AddonLink) (int, error) {
	before, err := addonLinks(ctx, db, restaurantID, state)
	if err != nil {
		return 0, err
	}
	existing := make(map[string]bool, len(before))
	for _, l := range before {
		existing[l.GroupID+"\x00"+l.ItemKey+"\x00"+l.ItemID] = true
	}

	if _, err := db.Exec(ctx,
		`DELETE FROM addon_links WHERE restaurant_id = $1 AND state = $2`,
		restaurantID, state,
	); err != nil {
		return 0, fmt.Errorf("clear addon links: %w", err)
	}

	fresh := 0
	for _, l := range links {
		if _, err := db.Exec(ctx, `
			INSERT INTO addon_links (id, restaurant_id, state, group_id, item_key, item_id)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			l.ID, restaurantID, state, l.GroupID, nullable(l.ItemKey), nullable(l.ItemID),
		); err != nil {
			return 0, fmt.Errorf("insert addon link %s: %w", l.ID, err)
		}
		if !existing[l.GroupID+"\x00"+l.ItemKey+"\x00"+l.ItemID] {
			fresh++
		}
	}
	return fresh, nil
}

// BackfillDraftLinkKey patches draft link rows that reference an item only
// by live row id, attaching the item's external key.
func (s *Store) BackfillDraftLinkKey(ctx context.Context, restaurantID, itemID, itemKey string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE addon_links SET item_key = $3
		WHERE restaurant_id = $1 AND state = 'draft' AND item_id = $2 AND item_key IS NULL`,
		restaurantID, itemID, itemKey,
	)
	if err != nil {
		return 0, fmt.Errorf("backfill link key for item %s: %w", itemID, err)
	}
	return tag.RowsAffected(), nil
}

// PromoteAddons upserts the published copies of the given groups and options,
// archives published rows absent from the promoted set, and full-replaces the
// published links, all in one transaction. Counts cover genuine inserts only,
// so promoting an unchanged draft reports zeros.
func (s *Store) PromoteAddons(ctx context.Context, restaurantID string, groups []menu.AddonGroup, options []menu.AddonOption, links []menu.AddonLink) (menu.PublishCounts, error) {
	var counts menu.PublishCounts

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return counts, fmt.Errorf("promote addons: %w", err)
	}
	defer tx.Rollback(ctx)

	keepGroups := make([]string, 0, len(groups))
	for _, g := range groups {
		created, err := upsertAddonGroup(ctx, tx, g)
		if err != nil {
			return counts, err
		}
		if created {
			counts.AddonGroups++
		}
		keepGroups = append(keepGroups, g.ID)
	}

	keepOptions := make([]string, 0, len(options))
	for _, o := range options {
		created, err := upsertAddonOption(ctx, tx, o)
		if err != nil {
			return counts, err
		}
		if created {
			counts.AddonOptions++
		}
		keepOptions = append(keepOptions, o.ID)
	}

	// Published rows no longer present in the draft are retired, not deleted.
	if _, err := tx.Exec(ctx, `
		UPDATE addon_groups SET archived_at = NOW()
		WHERE restaurant_id = $1 AND state = 'published' AND archived_at IS NULL
		  AND NOT (id = ANY($2))`,
		restaurantID, keepGroups,
	); err != nil {
		return counts, fmt.Errorf("retire addon groups: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE addon_options SET archived_at = NOW()
		WHERE restaurant_id = $1 AND state = 'published' AND archived_at IS NULL
		  AND NOT (id = ANY($2))`,
		restaurantID, keepOptions,
	); err != nil {
		return counts, fmt.Errorf("retire addon options: %w", err)
	}

	fresh, err := replaceAddonLinks(ctx, tx, restaurantID, menu.StatePublished, links)
	if err != nil {
		return counts, err
	}
	counts.AddonLinks = fresh

	if err := tx.Commit(ctx); err != nil {
		return counts, fmt.Errorf("promote addons: %w", err)
	}
	return counts, nil
}
