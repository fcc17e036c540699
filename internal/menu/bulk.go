package menu

// bulk.go implements the CSV reconciler: a batch entry point into the live
// tables that bypasses the draft document entirely. Import mode is strictly
// additive and all-or-nothing; bulk-update mode is a full-replace diff
// against current live items, gated behind an explicit preview-then-confirm
// round trip. Archiving is always a soft delete.

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/platewise/menuboard/internal/logging"
)

// BulkMode selects the reconciliation behavior.
type BulkMode string

const (
	// ModeImport adds rows to the live menu; every row must be new and
	// valid or the whole submission is rejected.
	ModeImport BulkMode = "import"

	// ModeBulk reconciles the uploaded rows as the operator's desired full
	// item list: creates, updates, and archives unmatched items.
	ModeBulk BulkMode = "bulk"
)

// FlexString unmarshals from either a JSON string or a JSON number, so
// hand-written payloads ({"price": 9.5}) and CSV-derived rows take the same
// path through validation.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("price must be a number or string")
	}
	*f = FlexString(n.String())
	return nil
}

// BulkRow is one uploaded row: the operator's desired state for one item.
// Identity is looser than the publish pipeline's external key — id when
// present, else case-insensitive name — because CSV carries no such concept.
type BulkRow struct {
	ID          string     `json:"id,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Price       FlexString `json:"price"`
	Category    string     `json:"category"`
	Tags        []string   `json:"tags,omitempty"`
}

// RowWarning is a non-fatal annotation on a row: an unknown dietary tag or
// a near-miss category name.
type RowWarning struct {
	Row        int    `json:"row"`
	Field      string `json:"field"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// BulkPreview is the dry-run result of bulk-update mode. Nothing has been
// written when a preview is returned.
type BulkPreview struct {
	WillCreate  int          `json:"willCreate"`
	WillUpdate  int          `json:"willUpdate"`
	WillArchive int          `json:"willArchive"`
	Warnings    []RowWarning `json:"warnings,omitempty"`
}

// BulkResult reports an applied bulk operation.
type BulkResult struct {
	Created  int          `json:"created"`
	Updated  int          `json:"updated"`
	Archived int          `json:"archived"`
	Warnings []RowWarning `json:"warnings,omitempty"`
}

// allowedTags is the fixed dietary tag allow-list. Tags are normalized to
// this spelling; anything else is flagged, not rejected.
var allowedTags = map[string]bool{
	"vegetarian":  true,
	"vegan":       true,
	"gluten-free": true,
	"dairy-free":  true,
	"nut-free":    true,
	"halal":       true,
	"kosher":      true,
	"spicy":       true,
}

// parsedRow is a validated row ready to apply.
type parsedRow struct {
	index int
	row   BulkRow
	price float64
	tags  []string
}

// ImportItems adds the given rows to the live menu. All rows must pass
// validation and be new; any failure aborts the whole import with row
// indices and reasons, and nothing is written.
func (s *Service) ImportItems(ctx context.Context, restaurantID string, rows []BulkRow) (*BulkResult, error) {
	categories, err := s.store.ActiveCategories(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	existing, err := s.store.ActiveItems(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}

	parsed, rowErrs, warnings := validateBulkRows(rows, categories)

	byID, byName := indexItems(existing)
	for _, p := range parsed {
		if p.row.ID != "" {
			if _, ok := byID[p.row.ID]; ok {
				rowErrs = append(rowErrs, RowError{
					Row: p.index, Field: "id",
					Message: fmt.Sprintf("item already exists: %s", p.row.ID),
				})
				continue
			}
		}
		if _, ok := byName[strings.ToLower(p.row.Name)]; ok {
			rowErrs = append(rowErrs, RowError{
				Row: p.index, Field: "name",
				Message: fmt.Sprintf("item already exists: %q", p.row.Name),
			})
		}
	}
	if len(rowErrs) > 0 {
		return nil, &RowErrors{Errors: rowErrs}
	}

	result := &BulkResult{Warnings: warnings}
	for _, p := range parsed {
		categoryID, err := s.ensureCategory(ctx, restaurantID, p.row.Category, &categories)
		if err != nil {
			return nil, err
		}
		if _, err := s.store.InsertItem(ctx, s.itemFromRow(restaurantID, p, categoryID)); err != nil {
			return nil, fmt.Errorf("insert item %q: %w", p.row.Name, err)
		}
		result.Created++
	}

	logging.FromContext(ctx).Info("bulk import applied",
		"restaurant_id", restaurantID, "created", result.Created)
	return result, nil
}

// BulkUpdate reconciles the rows against current live items. With
// confirm=false it returns a dry-run preview and writes nothing; with
// confirm=true it applies creates and updates and archives unmatched items
// (soft-delete only, never a row deletion).
func (s *Service) BulkUpdate(ctx context.Context, restaurantID string, rows []BulkRow, confirm bool) (*BulkPreview, *BulkResult, error) {
	categories, err := s.store.ActiveCategories(ctx, restaurantID)
	if err != nil {
		return nil, nil, fmt.Errorf("load categories: %w", err)
	}
	existing, err := s.store.ActiveItems(ctx, restaurantID)
	if err != nil {
		return nil, nil, fmt.Errorf("load items: %w", err)
	}

	parsed, rowErrs, warnings := validateBulkRows(rows, categories)
	if len(rowErrs) > 0 {
		return nil, nil, &RowErrors{Errors: rowErrs}
	}

	// Match rows to live items by id, else by case-insensitive exact name.
	// Unmatched existing items become archive candidates.
	byID, byName := indexItems(existing)
	matched := make(map[string]bool, len(existing)) // item id -> referenced by a row

	type plannedUpdate struct {
		p    parsedRow
		item Item
	}
	var creates []parsedRow
	var updates []plannedUpdate

	for _, p := range parsed {
		var target *Item
		if p.row.ID != "" {
			if it, ok := byID[p.row.ID]; ok {
				target = &it
			}
		}
		if target == nil {
			if it, ok := byName[strings.ToLower(p.row.Name)]; ok {
				target = &it
			}
		}
		if target == nil {
			creates = append(creates, p)
			continue
		}
		matched[target.ID] = true
		updates = append(updates, plannedUpdate{p: p, item: *target})
	}

	var archiveIDs []string
	for _, it := range existing {
		if !matched[it.ID] {
			archiveIDs = append(archiveIDs, it.ID)
		}
	}

	if !confirm {
		return &BulkPreview{
			WillCreate:  len(creates),
			WillUpdate:  len(updates),
			WillArchive: len(archiveIDs),
			Warnings:    warnings,
		}, nil, nil
	}

	result := &BulkResult{Warnings: warnings}
	for _, p := range creates {
		categoryID, err := s.ensureCategory(ctx, restaurantID, p.row.Category, &categories)
		if err != nil {
			return nil, nil, err
		}
		if _, err := s.store.InsertItem(ctx, s.itemFromRow(restaurantID, p, categoryID)); err != nil {
			return nil, nil, fmt.Errorf("insert item %q: %w", p.row.Name, err)
		}
		result.Created++
	}
	for _, u := range updates {
		categoryID, err := s.ensureCategory(ctx, restaurantID, u.p.row.Category, &categories)
		if err != nil {
			return nil, nil, err
		}
		// The item keeps its row id and external key; only the operator-
		// supplied fields change.
		it := u.item
		it.Name = u.p.row.Name
		it.Description = u.p.row.Description
		it.Price = u.p.price
		it.CategoryID = categoryID
		it.Tags = u.p.tags
		it.UpdatedAt = s.now().UTC()
		if err := s.store.UpdateItem(ctx, it); err != nil {
			return nil, nil, fmt.Errorf("update item %q: %w", it.Name, err)
		}
		result.Updated++
	}
	for _, id := range archiveIDs {
		if err := s.store.ArchiveItem(ctx, restaurantID, id); err != nil {
			return nil, nil, fmt.Errorf("archive item %s: %w", id, err)
		}
		result.Archived++
	}

	logging.FromContext(ctx).Info("bulk update applied",
		"restaurant_id", restaurantID,
		"created", result.Created,
		"updated", result.Updated,
		"archived", result.Archived,
	)
	return nil, result, nil
}

// validateBulkRows checks every row independently and returns the valid
// rows, hard errors, and non-fatal warnings (unknown tags, category
// near-misses).
func validateBulkRows(rows []BulkRow, categories []Category) ([]parsedRow, []RowError, []RowWarning) {
	categoryNames := make([]string, len(categories))
	for i, c := range categories {
		categoryNames[i] = c.Name
	}

	var parsed []parsedRow
	var errs []RowError
	var warnings []RowWarning

	for i, row := range rows {
		valid := true

		if strings.TrimSpace(row.Name) == "" {
			errs = append(errs, RowError{Row: i, Field: "name", Message: "name is required"})
			valid = false
		}

		price, err := parsePrice(string(row.Price))
		if err != nil {
			errs = append(errs, RowError{Row: i, Field: "price", Message: err.Error()})
			valid = false
		}

		if strings.TrimSpace(row.Category) == "" {
			errs = append(errs, RowError{Row: i, Field: "category", Message: "category is required"})
			valid = false
		} else if suggestion := suggestCategory(row.Category, categoryNames); suggestion != "" {
			warnings = append(warnings, RowWarning{
				Row: i, Field: "category",
				Message:    fmt.Sprintf("category %q does not exist", row.Category),
				Suggestion: suggestion,
			})
		}

		tags, unknown := normalizeTags(row.Tags)
		for _, u := range unknown {
			warnings = append(warnings, RowWarning{
				Row: i, Field: "tags",
				Message: fmt.Sprintf("unknown tag %q ignored", u),
			})
		}

		if !valid {
			continue
		}
		parsed = append(parsed, parsedRow{
			index: i,
			row:   row,
			price: price,
			tags:  tags,
		})
	}

	return parsed, errs, warnings
}

// parsePrice parses an operator-supplied price, tolerating currency symbols
// and thousands separators. The price must be strictly positive.
func parsePrice(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("price is required")
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	price, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("price must be numeric")
	}
	if price <= 0 {
		return 0, fmt.Errorf("price must be greater than zero")
	}
	return price, nil
}

// normalizeTags maps tags onto the allow-list spelling (lowercase,
// hyphenated) and reports the ones that are not recognized.
func normalizeTags(tags []string) (normalized []string, unknown []string) {
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		n := strings.ToLower(strings.TrimSpace(t))
		n = strings.ReplaceAll(n, " ", "-")
		n = strings.ReplaceAll(n, "_", "-")
		if n == "" {
			continue
		}
		if !allowedTags[n] {
			unknown = append(unknown, t)
			continue
		}
		if !seen[n] {
			seen[n] = true
			normalized = append(normalized, n)
		}
	}
	return normalized, unknown
}

func (s *Service) itemFromRow(restaurantID string, p parsedRow, categoryID string) Item {
	return Item{
		ID:           s.newID(),
		RestaurantID: restaurantID,
		ExternalKey:  s.newID(),
		Name:         p.row.Name,
		Description:  p.row.Description,
		Price:        p.price,
		Tags:         p.tags,
		InStock:      true,
		CategoryID:   categoryID,
		UpdatedAt:    s.now().UTC(),
	}
}

// ensureCategory resolves a category by case-insensitive name, creating it
// when missing. The caller's slice is extended so repeated rows reuse the
// same new category.
func (s *Service) ensureCategory(ctx context.Context, restaurantID, name string, categories *[]Category) (string, error) {
	nameLower := strings.ToLower(strings.TrimSpace(name))
	for _, c := range *categories {
		if strings.ToLower(c.Name) == nameLower {
			return c.ID, nil
		}
	}

	c := Category{
		ID:           s.newID(),
		RestaurantID: restaurantID,
		Name:         strings.TrimSpace(name),
		SortOrder:    len(*categories),
		UpdatedAt:    s.now().UTC(),
	}
	if _, err := s.store.UpsertCategory(ctx, c); err != nil {
		return "", fmt.Errorf("create category %q: %w", name, err)
	}
	*categories = append(*categories, c)
	return c.ID, nil
}

func indexItems(items []Item) (byID map[string]Item, byName map[string]Item) {
	byID = make(map[string]Item, len(items))
	byName = make(map[string]Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
		byName[strings.ToLower(it.Name)] = it
	}
	return byID, byName
}
