package menu

// addons.go implements the add-on draft synchronizer: the staging copy of
// groups, options and item links that must be editable before items have a
// durable row id. Draft links address items by external key; the resolution
// to live row ids happens on the read path and during publish.

import (
	"context"
	"fmt"

	"github.com/platewise/menuboard/internal/logging"
)

// AddonDrafts returns the restaurant's draft add-on bundle for the editor,
// seeding the draft schema from the published one if no drafts exist yet.
//
// Links whose item external key does not resolve to a live item are dropped
// from the result, not from storage; they become visible once the item is
// published.
func (s *Service) AddonDrafts(ctx context.Context, restaurantID string) (*AddonDraftBundle, error) {
	seeded, err := s.seedAddonDrafts(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("seed addon drafts: %w", err)
	}

	groups, err := s.store.AddonGroups(ctx, restaurantID, StateDraft)
	if err != nil {
		return nil, fmt.Errorf("load draft groups: %w", err)
	}
	options, err := s.store.AddonOptions(ctx, restaurantID, StateDraft)
	if err != nil {
		return nil, fmt.Errorf("load draft options: %w", err)
	}
	links, err := s.store.AddonLinks(ctx, restaurantID, StateDraft)
	if err != nil {
		return nil, fmt.Errorf("load draft links: %w", err)
	}

	optionsByGroup := make(map[string][]AddonOption)
	for _, o := range options {
		if o.ArchivedAt != nil {
			continue
		}
		optionsByGroup[o.GroupID] = append(optionsByGroup[o.GroupID], o)
	}

	bundle := &AddonDraftBundle{Groups: []AddonGroup{}, Links: []AddonLink{}, Seeded: seeded}
	for _, g := range groups {
		if g.ArchivedAt != nil {
			continue
		}
		g.Options = optionsByGroup[g.ID]
		bundle.Groups = append(bundle.Groups, g)
	}

	resolved, err := s.resolveLinkItems(ctx, restaurantID, links)
	if err != nil {
		return nil, err
	}
	bundle.Links = resolved

	return bundle, nil
}

// seedAddonDrafts clones the published groups, options and links into the
// draft schema the first time the drafts are requested. The existence check
// makes it idempotent; a restaurant with any draft group is never reseeded.
func (s *Service) seedAddonDrafts(ctx context.Context, restaurantID string) (*SeedStats, error) {
	existing, err := s.store.AddonGroups(ctx, restaurantID, StateDraft)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, nil
	}

	groups, err := s.store.AddonGroups(ctx, restaurantID, StatePublished)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, nil
	}
	options, err := s.store.AddonOptions(ctx, restaurantID, StatePublished)
	if err != nil {
		return nil, err
	}
	links, err := s.store.AddonLinks(ctx, restaurantID, StatePublished)
	if err != nil {
		return nil, err
	}

	stats := &SeedStats{}
	for _, g := range groups {
		g.State = StateDraft
		g.Options = nil
		if err := s.store.UpsertAddonGroup(ctx, g); err != nil {
			return nil, fmt.Errorf("clone group %s: %w", g.ID, err)
		}
		stats.Groups++
	}
	for _, o := range options {
		o.State = StateDraft
		if err := s.store.UpsertAddonOption(ctx, o); err != nil {
			return nil, fmt.Errorf("clone option %s: %w", o.ID, err)
		}
		stats.Options++
	}

	// Published links carry row ids; the draft copies must carry external
	// keys instead, so each linked item is looked up to recover its key.
	var itemIDs []string
	seen := make(map[string]bool)
	for _, l := range links {
		if l.ItemID != "" && !seen[l.ItemID] {
			seen[l.ItemID] = true
			itemIDs = append(itemIDs, l.ItemID)
		}
	}
	keyByID := make(map[string]string)
	if len(itemIDs) > 0 {
		items, err := s.store.ItemsByIDs(ctx, restaurantID, itemIDs)
		if err != nil {
			return nil, fmt.Errorf("resolve seeded link items: %w", err)
		}
		for _, it := range items {
			keyByID[it.ID] = it.ExternalKey
		}
	}

	draftLinks := make([]AddonLink, 0, len(links))
	for _, l := range links {
		key := keyByID[l.ItemID]
		if key == "" {
			continue
		}
		draftLinks = append(draftLinks, AddonLink{
			ID:           s.newID(),
			RestaurantID: restaurantID,
			State:        StateDraft,
			GroupID:      l.GroupID,
			ItemKey:      key,
		})
	}
	if len(draftLinks) > 0 {
		if err := s.store.ReplaceAddonLinks(ctx, restaurantID, StateDraft, draftLinks); err != nil {
			return nil, fmt.Errorf("seed draft links: %w", err)
		}
	}
	stats.Links = len(draftLinks)

	logging.FromContext(ctx).Info("seeded addon drafts",
		"restaurant_id", restaurantID,
		"groups", stats.Groups,
		"options", stats.Options,
		"links", stats.Links,
	)
	return stats, nil
}

// resolveLinkItems resolves each draft link's item external key to a live
// item id, silently dropping links whose item has not been published yet.
func (s *Service) resolveLinkItems(ctx context.Context, restaurantID string, links []AddonLink) ([]AddonLink, error) {
	var keys []string
	seen := make(map[string]bool)
	for _, l := range links {
		if l.ItemKey != "" && !seen[l.ItemKey] {
			seen[l.ItemKey] = true
			keys = append(keys, l.ItemKey)
		}
	}

	idByKey := make(map[string]string)
	if len(keys) > 0 {
		items, err := s.store.ItemsByKeys(ctx, restaurantID, keys)
		if err != nil {
			return nil, fmt.Errorf("resolve link items: %w", err)
		}
		for _, it := range items {
			idByKey[it.ExternalKey] = it.ID
		}
	}

	resolved := make([]AddonLink, 0, len(links))
	for _, l := range links {
		id, ok := idByKey[l.ItemKey]
		if !ok {
			continue
		}
		l.ItemID = id
		resolved = append(resolved, l)
	}
	return resolved, nil
}

// SaveAddonGroup creates or updates a draft add-on group and its options.
// New groups and options receive generated ids; archived state is preserved
// through the upsert.
func (s *Service) SaveAddonGroup(ctx context.Context, restaurantID string, g AddonGroup) (*AddonGroup, error) {
	if g.Name == "" {
		return nil, &ValidationError{Field: "name", Message: "name is required"}
	}
	if g.ID == "" {
		g.ID = s.newID()
	}
	g.RestaurantID = restaurantID
	g.State = StateDraft

	options := g.Options
	g.Options = nil
	if err := s.store.UpsertAddonGroup(ctx, g); err != nil {
		return nil, fmt.Errorf("save group: %w", err)
	}

	for i := range options {
		if options[i].ID == "" {
			options[i].ID = s.newID()
		}
		options[i].RestaurantID = restaurantID
		options[i].GroupID = g.ID
		options[i].State = StateDraft
		if err := s.store.UpsertAddonOption(ctx, options[i]); err != nil {
			return nil, fmt.Errorf("save option %q: %w", options[i].Name, err)
		}
	}
	g.Options = options

	return &g, nil
}

// ArchiveAddonGroup soft-deletes a draft group. The published counterpart
// disappears on the next publish, when promotion skips archived groups.
func (s *Service) ArchiveAddonGroup(ctx context.Context, restaurantID, groupID string) error {
	if err := s.store.ArchiveAddonGroup(ctx, restaurantID, groupID, StateDraft); err != nil {
		return fmt.Errorf("archive group: %w", err)
	}
	return nil
}

// AssignGroup attaches one draft group to an explicit list of items,
// identified by live row id, external key, or draft-time id. Items lacking
// an external key get one generated and persisted into the draft. Returns
// an item-id -> external-key map so callers can update in-memory state
// without a full reload.
func (s *Service) AssignGroup(ctx context.Context, restaurantID, groupID string, itemIDs []string) (map[string]string, error) {
	groups, err := s.store.AddonGroups(ctx, restaurantID, StateDraft)
	if err != nil {
		return nil, fmt.Errorf("load draft groups: %w", err)
	}
	found := false
	for _, g := range groups {
		if g.ID == groupID && g.ArchivedAt == nil {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
	}

	rec, err := s.GetDraft(ctx, restaurantID)
	if err != nil {
		return nil, err
	}

	keyByRequested := make(map[string]string, len(itemIDs))
	assigned := false
	for _, requested := range itemIDs {
		idx := -1
		for i, di := range rec.Document.Items {
			if di.ID == requested || di.ExternalKey == requested {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("%w in draft: %s", ErrItemNotFound, requested)
		}
		if rec.Document.Items[idx].ExternalKey == "" {
			rec.Document.Items[idx].ExternalKey = s.newID()
			assigned = true
		}
		keyByRequested[requested] = rec.Document.Items[idx].ExternalKey
	}
	if assigned {
		rec.UpdatedAt = s.now().UTC()
		if err := s.store.UpsertDraft(ctx, rec); err != nil {
			return nil, fmt.Errorf("persist generated keys: %w", err)
		}
	}

	// Keep every other group's links; replace only this group's set.
	links, err := s.store.AddonLinks(ctx, restaurantID, StateDraft)
	if err != nil {
		return nil, fmt.Errorf("load draft links: %w", err)
	}
	next := make([]AddonLink, 0, len(links)+len(keyByRequested))
	for _, l := range links {
		if l.GroupID != groupID {
			next = append(next, l)
		}
	}
	dedup := make(map[string]bool, len(keyByRequested))
	for _, key := range keyByRequested {
		if dedup[key] {
			continue
		}
		dedup[key] = true
		next = append(next, AddonLink{
			ID:           s.newID(),
			RestaurantID: restaurantID,
			State:        StateDraft,
			GroupID:      groupID,
			ItemKey:      key,
		})
	}
	if err := s.store.ReplaceAddonLinks(ctx, restaurantID, StateDraft, next); err != nil {
		return nil, fmt.Errorf("replace draft links: %w", err)
	}

	return keyByRequested, nil
}
