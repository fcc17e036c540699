package menu

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service provides the menu pipeline operations. All methods are
// request-scoped and stateless; concurrency control is deliberately absent
// (last-write-wins, single-operator tool).
type Service struct {
	store Store

	// Overridable for tests.
	now   func() time.Time
	newID func() string
}

// NewService creates a new Service backed by the given store.
func NewService(store Store) *Service {
	return &Service{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// LiveMenu is the customer-facing view: active categories and items only.
type LiveMenu struct {
	Categories []Category `json:"categories"`
	Items      []Item     `json:"items"`
}

// Menu returns the live menu the storefront renders from.
func (s *Service) Menu(ctx context.Context, restaurantID string) (*LiveMenu, error) {
	categories, err := s.store.ActiveCategories(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	items, err := s.store.ActiveItems(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	return &LiveMenu{Categories: categories, Items: items}, nil
}

// PublishedAddonGroups returns the live add-on schema with nested options,
// as consumed by the selection validator at order time.
func (s *Service) PublishedAddonGroups(ctx context.Context, restaurantID string) ([]AddonGroup, error) {
	groups, err := s.store.AddonGroups(ctx, restaurantID, StatePublished)
	if err != nil {
		return nil, fmt.Errorf("load published groups: %w", err)
	}
	options, err := s.store.AddonOptions(ctx, restaurantID, StatePublished)
	if err != nil {
		return nil, fmt.Errorf("load published options: %w", err)
	}

	optionsByGroup := make(map[string][]AddonOption)
	for _, o := range options {
		if o.ArchivedAt != nil {
			continue
		}
		optionsByGroup[o.GroupID] = append(optionsByGroup[o.GroupID], o)
	}

	out := make([]AddonGroup, 0, len(groups))
	for _, g := range groups {
		if g.ArchivedAt != nil {
			continue
		}
		g.Options = optionsByGroup[g.ID]
		out = append(out, g)
	}
	return out, nil
}
