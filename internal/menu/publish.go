package menu

// publish.go implements the draft-to-live promotion sequence.
//
// The sequence is strictly ordered and every step is independently
// idempotent, so the whole run is safely retriable: a failure partway
// leaves live data consistent (possibly incomplete) and a full re-invocation
// converges to the same end state. There is deliberately no cross-step
// transaction; the single step needing multi-row atomicity (add-on
// promotion) is pushed down into one store-native transaction.

import (
	"context"
	"errors"
	"fmt"

	"github.com/platewise/menuboard/internal/logging"
)

// Publish promotes the restaurant's draft document and add-on drafts into
// the live tables and returns a receipt of what was written. A missing
// draft is a hard failure; any step's failure aborts with a StageError
// naming the stage.
func (s *Service) Publish(ctx context.Context, restaurantID string) (*PublishReceipt, error) {
	log := logging.WithFields(ctx, "restaurant_id", restaurantID)
	receipt := &PublishReceipt{}

	// Stage 1: load the draft.
	rec, err := s.store.GetDraft(ctx, restaurantID)
	if err != nil {
		if errors.Is(err, ErrDraftNotFound) {
			return nil, &StageError{Stage: StageLoadDraft, Err: errors.New("nothing to publish")}
		}
		return nil, &StageError{Stage: StageLoadDraft, Err: err}
	}
	doc := rec.Document

	// Stage 2: upsert categories, building the temp-id -> final-id map.
	categoryIDs, err := s.publishCategories(ctx, restaurantID, &doc, receipt)
	if err != nil {
		return nil, &StageError{Stage: StageCategories, Err: err}
	}

	// Stage 3: upsert items keyed on (restaurant, external key). Items that
	// gained a key here must have the key persisted back into the draft
	// before anything else references it.
	keyToID, err := s.publishItems(ctx, rec, categoryIDs, receipt)
	if err != nil {
		return nil, &StageError{Stage: StageItems, Err: err}
	}

	// Stage 4: the key -> item id map must cover every item; re-query by
	// the full key set if the upsert results left gaps.
	if err := s.completeItemMap(ctx, restaurantID, rec.Document, keyToID); err != nil {
		return nil, &StageError{Stage: StageItemMap, Err: err}
	}
	receipt.MappedItems = len(keyToID)

	// Stage 5: back-fill draft links that still reference items by live row
	// id from before the item had an external key.
	patched, err := s.backfillLegacyLinks(ctx, restaurantID)
	if err != nil {
		return nil, &StageError{Stage: StageLinkBackfill, Err: err}
	}
	receipt.BackfilledLinks = patched

	// Stage 6: promote add-on groups, options and links in one transaction.
	promoted, err := s.promoteAddons(ctx, restaurantID, keyToID)
	if err != nil {
		return nil, &StageError{Stage: StagePromoteAddons, Err: err}
	}
	receipt.Inserted.AddonGroups = promoted.AddonGroups
	receipt.Inserted.AddonOptions = promoted.AddonOptions
	receipt.Inserted.AddonLinks = promoted.AddonLinks

	log.Info("publish complete",
		"inserted_categories", receipt.Inserted.Categories,
		"inserted_items", receipt.Inserted.Items,
		"mapped_items", receipt.MappedItems,
		"backfilled_links", receipt.BackfilledLinks,
		"addon_links", receipt.Inserted.AddonLinks,
	)
	return receipt, nil
}

// publishCategories upserts every draft category as a live row, reusing the
// draft id as the surrogate when present and generating one otherwise. The
// returned map translates draft-time ids to final ids for item references.
func (s *Service) publishCategories(ctx context.Context, restaurantID string, doc *DraftDocument, receipt *PublishReceipt) (map[string]string, error) {
	categoryIDs := make(map[string]string, len(doc.Categories))

	for i, dc := range doc.Categories {
		finalID := dc.ID
		if finalID == "" {
			finalID = s.newID()
		}

		created, err := s.store.UpsertCategory(ctx, Category{
			ID:           finalID,
			RestaurantID: restaurantID,
			Name:         dc.Name,
			Description:  dc.Description,
			SortOrder:    dc.SortOrder,
			ImageURL:     dc.ImageURL,
			ArchivedAt:   nil,
			UpdatedAt:    s.now().UTC(),
		})
		if err != nil {
			return nil, fmt.Errorf("category %q: %w", dc.Name, err)
		}
		if created {
			receipt.Inserted.Categories++
		} else {
			receipt.Updated.Categories++
		}

		if dc.ID != "" {
			categoryIDs[dc.ID] = finalID
		}
		doc.Categories[i].ID = finalID
	}

	return categoryIDs, nil
}

// publishItems ensures every draft item carries an external key, persisting
// the draft again when keys were generated here, then upserts each item as a
// live row keyed on (restaurant, external key). Returns the external key ->
// item id map gathered from the upsert results.
func (s *Service) publishItems(ctx context.Context, rec *DraftRecord, categoryIDs map[string]string, receipt *PublishReceipt) (map[string]string, error) {
	doc := &rec.Document

	// Key assignment is a draft mutation and must survive this publish, so
	// it is saved before the first live write.
	assigned := false
	for i := range doc.Items {
		if doc.Items[i].ExternalKey == "" {
			doc.Items[i].ExternalKey = s.newID()
			assigned = true
		}
	}
	if assigned {
		rec.UpdatedAt = s.now().UTC()
		if err := s.store.UpsertDraft(ctx, rec); err != nil {
			return nil, fmt.Errorf("persist generated keys: %w", err)
		}
	}

	keyToID := make(map[string]string, len(doc.Items))

	for _, di := range doc.Items {
		categoryID := di.CategoryID
		if mapped, ok := categoryIDs[di.CategoryID]; ok {
			categoryID = mapped
		}

		// The id is used only when the upsert inserts; on conflict the
		// store returns the existing row id.
		id, created, err := s.store.UpsertItemByKey(ctx, Item{
			ID:           s.newID(),
			RestaurantID: rec.RestaurantID,
			ExternalKey:  di.ExternalKey,
			Name:         di.Name,
			Description:  di.Description,
			Price:        di.Price,
			ImageURL:     di.ImageURL,
			Tags:         di.Tags,
			InStock:      di.InStock,
			RestockAt:    di.RestockAt,
			CategoryID:   categoryID,
			SortOrder:    di.SortOrder,
			ArchivedAt:   nil,
			UpdatedAt:    s.now().UTC(),
		})
		if err != nil {
			return nil, fmt.Errorf("item %q: %w", di.Name, err)
		}
		if created {
			receipt.Inserted.Items++
		} else {
			receipt.Updated.Items++
		}
		if id != "" {
			keyToID[di.ExternalKey] = id
		}
	}

	return keyToID, nil
}

// completeItemMap fills any gaps in the external key -> item id map by
// re-querying live items with the full key set of the draft.
func (s *Service) completeItemMap(ctx context.Context, restaurantID string, doc DraftDocument, keyToID map[string]string) error {
	var missing []string
	for _, di := range doc.Items {
		if _, ok := keyToID[di.ExternalKey]; !ok {
			missing = append(missing, di.ExternalKey)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	items, err := s.store.ItemsByKeys(ctx, restaurantID, missing)
	if err != nil {
		return fmt.Errorf("re-query items: %w", err)
	}
	for _, it := range items {
		keyToID[it.ExternalKey] = it.ID
	}

	for _, key := range missing {
		if _, ok := keyToID[key]; !ok {
			return fmt.Errorf("item with key %s not found after upsert", key)
		}
	}
	return nil
}

// backfillLegacyLinks patches draft links that recorded only a live item id,
// pre-dating that item's external key, by looking up the item's key and
// rewriting the link rows. Returns the number of rows patched.
func (s *Service) backfillLegacyLinks(ctx context.Context, restaurantID string) (int, error) {
	links, err := s.store.AddonLinks(ctx, restaurantID, StateDraft)
	if err != nil {
		return 0, fmt.Errorf("load draft links: %w", err)
	}

	var legacyItemIDs []string
	seen := make(map[string]bool)
	for _, l := range links {
		if l.ItemKey == "" && l.ItemID != "" && !seen[l.ItemID] {
			seen[l.ItemID] = true
			legacyItemIDs = append(legacyItemIDs, l.ItemID)
		}
	}
	if len(legacyItemIDs) == 0 {
		return 0, nil
	}

	items, err := s.store.ItemsByIDs(ctx, restaurantID, legacyItemIDs)
	if err != nil {
		return 0, fmt.Errorf("resolve legacy link items: %w", err)
	}

	patched := 0
	for _, it := range items {
		if it.ExternalKey == "" {
			continue
		}
		n, err := s.store.BackfillDraftLinkKey(ctx, restaurantID, it.ID, it.ExternalKey)
		if err != nil {
			return patched, fmt.Errorf("backfill link for item %s: %w", it.ID, err)
		}
		patched += int(n)
	}
	return patched, nil
}

// promoteAddons assembles the published counterparts of the draft add-on
// state and hands them to the store's transactional promotion. Draft links
// whose item key does not resolve to a live item are left untouched in
// draft; only resolvable links are promoted.
func (s *Service) promoteAddons(ctx context.Context, restaurantID string, keyToID map[string]string) (PublishCounts, error) {
	groups, err := s.store.AddonGroups(ctx, restaurantID, StateDraft)
	if err != nil {
		return PublishCounts{}, fmt.Errorf("load draft groups: %w", err)
	}
	options, err := s.store.AddonOptions(ctx, restaurantID, StateDraft)
	if err != nil {
		return PublishCounts{}, fmt.Errorf("load draft options: %w", err)
	}
	links, err := s.store.AddonLinks(ctx, restaurantID, StateDraft)
	if err != nil {
		return PublishCounts{}, fmt.Errorf("load draft links: %w", err)
	}

	activeGroups := make(map[string]bool, len(groups))
	published := make([]AddonGroup, 0, len(groups))
	for _, g := range groups {
		if g.ArchivedAt != nil {
			continue
		}
		activeGroups[g.ID] = true
		g.State = StatePublished
		g.Options = nil
		published = append(published, g)
	}

	publishedOptions := make([]AddonOption, 0, len(options))
	for _, o := range options {
		if o.ArchivedAt != nil || !activeGroups[o.GroupID] {
			continue
		}
		o.State = StatePublished
		publishedOptions = append(publishedOptions, o)
	}

	publishedLinks := make([]AddonLink, 0, len(links))
	for _, l := range links {
		if !activeGroups[l.GroupID] {
			continue
		}
		itemID, ok := keyToID[l.ItemKey]
		if !ok {
			// Item not published yet; the link stays draft-only until a
			// later publish can resolve it.
			continue
		}
		publishedLinks = append(publishedLinks, AddonLink{
			ID:           s.newID(),
			RestaurantID: restaurantID,
			State:        StatePublished,
			GroupID:      l.GroupID,
			ItemID:       itemID,
		})
	}

	return s.store.PromoteAddons(ctx, restaurantID, published, publishedOptions, publishedLinks)
}
