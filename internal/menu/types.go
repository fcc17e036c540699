// Package menu provides the business logic for the menu editing pipeline:
// draft documents, the draft-to-live publish sequence, add-on draft
// synchronization, bulk CSV reconciliation, and order-time selection
// validation. This package has no HTTP dependencies and can be used by any
// frontend.
package menu

import (
	"time"
)

// State distinguishes the two parallel add-on schemas.
type State string

const (
	// StateDraft marks rows that belong to the editable staging copy.
	// Draft links reference items by external key because the item may not
	// have a live row yet.
	StateDraft State = "draft"

	// StatePublished marks rows that are live and customer-facing.
	// Published links reference items by row id.
	StatePublished State = "published"
)

// DraftDocument is the whole editable menu for one restaurant. It is
// persisted as a single document keyed by restaurant, so identity inside it
// is allowed to be loose: categories may carry client-chosen temporary ids
// and items may have no row id at all until first publish.
type DraftDocument struct {
	Categories []DraftCategory `json:"categories"`
	Items      []DraftItem     `json:"items"`
}

// DraftCategory is a category as it appears inside a draft document.
type DraftCategory struct {
	// ID is either a client-chosen temporary id (before first publish) or
	// the live row id (after). Either way it is reused as the live surrogate.
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	SortOrder   int    `json:"sortOrder"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

// DraftItem is an item as it appears inside a draft document.
type DraftItem struct {
	// ID is the live row id, present only once the item has been published.
	ID string `json:"id,omitempty"`

	// ExternalKey is the opaque stable identifier assigned on first save.
	// Once assigned it never changes; it is the upsert key for publishing
	// and the linkage key for draft add-on associations.
	ExternalKey string `json:"externalKey,omitempty"`

	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Price       float64    `json:"price"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	InStock     bool       `json:"inStock"`
	RestockAt   *time.Time `json:"restockAt,omitempty"`
	CategoryID  string     `json:"categoryId"`
	SortOrder   int        `json:"sortOrder"`

	// AddonGroupIDs lists the draft add-on groups attached to this item.
	// Every save fully replaces the restaurant's draft links from these.
	AddonGroupIDs []string `json:"addonGroupIds,omitempty"`
}

// DraftRecord is a persisted draft document plus its save stamp.
type DraftRecord struct {
	RestaurantID string        `json:"restaurantId"`
	Document     DraftDocument `json:"draft"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// Category is a live, customer-facing category row.
type Category struct {
	ID           string     `json:"id"`
	RestaurantID string     `json:"restaurantId"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	SortOrder    int        `json:"sortOrder"`
	ImageURL     string     `json:"imageUrl,omitempty"`
	ArchivedAt   *time.Time `json:"archivedAt,omitempty"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Item is a live, customer-facing item row.
type Item struct {
	ID           string     `json:"id"`
	RestaurantID string     `json:"restaurantId"`
	ExternalKey  string     `json:"externalKey"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	Price        float64    `json:"price"`
	ImageURL     string     `json:"imageUrl,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
	InStock      bool       `json:"inStock"`
	RestockAt    *time.Time `json:"restockAt,omitempty"`
	CategoryID   string     `json:"categoryId"`
	SortOrder    int        `json:"sortOrder"`
	ArchivedAt   *time.Time `json:"archivedAt,omitempty"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// AddonGroup exists in both shadow schemas, distinguished by State. The same
// group id is shared between a draft row and its published counterpart so
// promotion is an upsert, not a copy with new identity.
type AddonGroup struct {
	ID           string `json:"id"`
	RestaurantID string `json:"restaurantId"`
	State        State  `json:"state"`
	Name         string `json:"name"`
	Required     bool   `json:"required"`

	// MultipleChoice allows independent per-option quantities. When false
	// the group behaves as exclusive selection.
	MultipleChoice bool `json:"multipleChoice"`

	// MaxGroupSelect caps the number of distinct selected options.
	// nil means unlimited; zero makes the group inert.
	MaxGroupSelect *int `json:"maxGroupSelect"`

	// MaxOptionQuantity caps the quantity of any single option.
	// nil means unlimited; zero makes every option inert.
	MaxOptionQuantity *int `json:"maxOptionQuantity"`

	ArchivedAt *time.Time `json:"archivedAt,omitempty"`

	// Options is populated on the read path only.
	Options []AddonOption `json:"options,omitempty"`
}

// AddonOption is a single choice within a group, in either schema.
type AddonOption struct {
	ID           string     `json:"id"`
	RestaurantID string     `json:"restaurantId"`
	GroupID      string     `json:"groupId"`
	State        State      `json:"state"`
	Name         string     `json:"name"`
	Price        float64    `json:"price"`
	InStock      bool       `json:"inStock"`
	ArchivedAt   *time.Time `json:"archivedAt,omitempty"`
}

// AddonLink attaches an add-on group to an item. Draft links carry ItemKey
// (external key); published links carry ItemID (live row id). A legacy draft
// link may carry only ItemID when it was written before the item received an
// external key; publish back-fills ItemKey for those rows.
type AddonLink struct {
	ID           string `json:"id"`
	RestaurantID string `json:"restaurantId"`
	State        State  `json:"state"`
	GroupID      string `json:"groupId"`
	ItemKey      string `json:"itemKey,omitempty"`
	ItemID       string `json:"itemId,omitempty"`
}

// PublishCounts breaks a publish receipt down by entity.
type PublishCounts struct {
	Categories   int `json:"categories"`
	Items        int `json:"items"`
	AddonGroups  int `json:"addonGroups"`
	AddonOptions int `json:"addonOptions"`
	AddonLinks   int `json:"addonLinks"`
}

// PublishReceipt reports what a publish run did. Re-publishing an unchanged
// draft legitimately reports zero inserts.
type PublishReceipt struct {
	Inserted        PublishCounts `json:"inserted"`
	Updated         PublishCounts `json:"updated"`
	MappedItems     int           `json:"mappedItems"`
	BackfilledLinks int           `json:"backfilledLinks"`
}

// SeedStats reports how many published rows were cloned into the draft
// schema on first read.
type SeedStats struct {
	Groups  int `json:"groups"`
	Options int `json:"options"`
	Links   int `json:"links"`
}

// AddonDraftBundle is the editor-facing view of a restaurant's add-on
// drafts: groups with nested options, plus resolvable links.
type AddonDraftBundle struct {
	Groups []AddonGroup `json:"addonGroups"`
	Links  []AddonLink  `json:"addonLinks"`
	Seeded *SeedStats   `json:"seeded,omitempty"`
}
