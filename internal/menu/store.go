package menu

import (
	"context"
	"errors"
)

// ErrDraftNotFound is returned by Store.GetDraft when no draft row exists
// for the restaurant.
var ErrDraftNotFound = errors.New("draft not found")

// ErrItemNotFound is returned by item lookups when no matching row exists.
var ErrItemNotFound = errors.New("item not found")

// ErrGroupNotFound is returned by add-on group lookups when no matching row
// exists in the relevant state.
var ErrGroupNotFound = errors.New("group not found")

// Store is the persistence boundary for the menu pipeline. It is implemented
// by the pgx-backed store; tests substitute an in-memory fake.
//
// Every method is individually atomic. PromoteAddons is the one operation
// that must be atomic across multiple rows and is required to run inside a
// store-native transaction.
type Store interface {
	// Drafts. One document per restaurant, upsert keyed by restaurant id.
	GetDraft(ctx context.Context, restaurantID string) (*DraftRecord, error)
	UpsertDraft(ctx context.Context, rec *DraftRecord) error

	// Live categories.
	// UpsertCategory keys on (restaurant, id) and reports whether the row
	// was newly inserted.
	UpsertCategory(ctx context.Context, c Category) (created bool, err error)
	ActiveCategories(ctx context.Context, restaurantID string) ([]Category, error)

	// Live items.
	// UpsertItemByKey keys on (restaurant, external key) and returns the
	// row id plus whether the row was newly inserted.
	UpsertItemByKey(ctx context.Context, it Item) (id string, created bool, err error)
	InsertItem(ctx context.Context, it Item) (id string, err error)
	UpdateItem(ctx context.Context, it Item) error
	ItemsByKeys(ctx context.Context, restaurantID string, keys []string) ([]Item, error)
	ItemsByIDs(ctx context.Context, restaurantID string, ids []string) ([]Item, error)
	ActiveItems(ctx context.Context, restaurantID string) ([]Item, error)
	ItemByID(ctx context.Context, restaurantID, id string) (*Item, error)
	ArchiveItem(ctx context.Context, restaurantID, id string) error

	// Add-on shadow schema. All reads are scoped to one restaurant and one
	// state; archived rows are included so callers decide what to drop.
	AddonGroups(ctx context.Context, restaurantID string, state State) ([]AddonGroup, error)
	AddonOptions(ctx context.Context, restaurantID string, state State) ([]AddonOption, error)
	AddonLinks(ctx context.Context, restaurantID string, state State) ([]AddonLink, error)
	UpsertAddonGroup(ctx context.Context, g AddonGroup) error
	UpsertAddonOption(ctx context.Context, o AddonOption) error
	ArchiveAddonGroup(ctx context.Context, restaurantID, groupID string, state State) error

	// ReplaceAddonLinks deletes every link row for (restaurant, state) and
	// inserts the given set. Full replace trades efficiency for tolerance
	// of stale client state.
	ReplaceAddonLinks(ctx context.Context, restaurantID string, state State, links []AddonLink) error

	// BackfillDraftLinkKey sets the external key on draft links that carry
	// only a live item id, returning the number of rows patched.
	BackfillDraftLinkKey(ctx context.Context, restaurantID, itemID, itemKey string) (int64, error)

	// PromoteAddons upserts the published counterparts of the given groups
	// and options and full-replaces the published links, all inside a
	// single transaction. Returns insert counts (updates excluded).
	PromoteAddons(ctx context.Context, restaurantID string, groups []AddonGroup, options []AddonOption, links []AddonLink) (PublishCounts, error)
}
