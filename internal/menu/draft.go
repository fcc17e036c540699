package menu

// draft.go implements the draft store: one editable menu document per
// restaurant, created lazily, saved whole. Saving assigns external keys to
// new items and recomputes the draft add-on links embedded in the document.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/platewise/menuboard/internal/logging"
)

// GetDraft returns the restaurant's draft, creating and persisting an empty
// shell on first read.
func (s *Service) GetDraft(ctx context.Context, restaurantID string) (*DraftRecord, error) {
	rec, err := s.store.GetDraft(ctx, restaurantID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrDraftNotFound) {
		return nil, fmt.Errorf("get draft: %w", err)
	}

	rec = &DraftRecord{
		RestaurantID: restaurantID,
		Document: DraftDocument{
			Categories: []DraftCategory{},
			Items:      []DraftItem{},
		},
		UpdatedAt: s.now().UTC(),
	}
	if err := s.store.UpsertDraft(ctx, rec); err != nil {
		return nil, fmt.Errorf("create empty draft: %w", err)
	}

	logging.FromContext(ctx).Debug("created empty draft", "restaurant_id", restaurantID)
	return rec, nil
}

// SaveDraft validates and persists a full draft document, assigning an
// external key to every item that lacks one, then fully replaces the
// restaurant's draft add-on links from the items' embedded group lists.
// Returns the persisted record including newly generated keys.
//
// Validation failures block all writes. Last save wins; there is no
// version check.
func (s *Service) SaveDraft(ctx context.Context, restaurantID string, doc DraftDocument) (*DraftRecord, error) {
	if err := validateDraft(doc); err != nil {
		return nil, err
	}

	// Assign identity before the write so the stored document and the link
	// rows agree on every key.
	for i := range doc.Categories {
		if doc.Categories[i].ID == "" {
			doc.Categories[i].ID = s.newID()
		}
	}
	for i := range doc.Items {
		if doc.Items[i].ExternalKey == "" {
			doc.Items[i].ExternalKey = s.newID()
		}
	}

	rec := &DraftRecord{
		RestaurantID: restaurantID,
		Document:     doc,
		UpdatedAt:    s.now().UTC(),
	}
	if err := s.store.UpsertDraft(ctx, rec); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}

	links := s.draftLinksFromDocument(restaurantID, doc)
	if err := s.store.ReplaceAddonLinks(ctx, restaurantID, StateDraft, links); err != nil {
		return nil, fmt.Errorf("replace draft links: %w", err)
	}

	logging.FromContext(ctx).Info("draft saved",
		"restaurant_id", restaurantID,
		"categories", len(doc.Categories),
		"items", len(doc.Items),
		"links", len(links),
	)
	return rec, nil
}

// draftLinksFromDocument recomputes the full set of (item external key,
// add-on group id) pairs from the items' embedded group lists, deduplicated
// and in stable order.
func (s *Service) draftLinksFromDocument(restaurantID string, doc DraftDocument) []AddonLink {
	seen := make(map[[2]string]bool)
	var links []AddonLink

	for _, it := range doc.Items {
		for _, groupID := range it.AddonGroupIDs {
			if groupID == "" || it.ExternalKey == "" {
				continue
			}
			pair := [2]string{it.ExternalKey, groupID}
			if seen[pair] {
				continue
			}
			seen[pair] = true
			links = append(links, AddonLink{
				ID:           s.newID(),
				RestaurantID: restaurantID,
				State:        StateDraft,
				GroupID:      groupID,
				ItemKey:      it.ExternalKey,
			})
		}
	}

	sort.Slice(links, func(i, j int) bool {
		if links[i].ItemKey != links[j].ItemKey {
			return links[i].ItemKey < links[j].ItemKey
		}
		return links[i].GroupID < links[j].GroupID
	})
	return links
}

// validateDraft rejects malformed documents before any write.
func validateDraft(doc DraftDocument) error {
	// The document is persisted as JSON; anything that cannot round-trip
	// must be rejected up front.
	if _, err := json.Marshal(doc); err != nil {
		return &ValidationError{Message: fmt.Sprintf("document is not serializable: %v", err)}
	}

	for i, c := range doc.Categories {
		if c.Name == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("categories[%d].name", i),
				Message: "name is required",
			}
		}
	}

	for i, it := range doc.Items {
		if it.Name == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("items[%d].name", i),
				Message: "name is required",
			}
		}
		if it.Price < 0 {
			return &ValidationError{
				Field:   fmt.Sprintf("items[%d].price", i),
				Message: "price must not be negative",
			}
		}
	}

	return nil
}
