package menu

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportItems(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	result, err := svc.ImportItems(ctx, "r1", []BulkRow{
		{Name: "Burger", Price: "9.50", Category: "Mains", Tags: []string{"Spicy"}},
		{Name: "Cola", Price: "$2.50", Category: "Drinks"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)

	items, err := st.ActiveItems(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, items, 2)

	cats, err := st.ActiveCategories(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, cats, 2, "missing categories are created")

	for _, it := range items {
		assert.NotEmpty(t, it.ExternalKey, "imported items get external keys")
		if it.Name == "Burger" {
			assert.Equal(t, []string{"spicy"}, it.Tags)
			assert.InDelta(t, 9.5, it.Price, 0.001)
		}
	}
}

func TestImportItemsAllOrNothing(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	_, err := svc.ImportItems(ctx, "r1", []BulkRow{
		{Name: "Good", Price: "5", Category: "Mains"},
		{Name: "", Price: "5", Category: "Mains"},
		{Name: "Bad Price", Price: "free", Category: "Mains"},
	})
	var rowErrs *RowErrors
	require.ErrorAs(t, err, &rowErrs)
	require.Len(t, rowErrs.Errors, 2)
	assert.Equal(t, 1, rowErrs.Errors[0].Row)
	assert.Equal(t, "name", rowErrs.Errors[0].Field)
	assert.Equal(t, 2, rowErrs.Errors[1].Row)
	assert.Equal(t, "price", rowErrs.Errors[1].Field)

	items, err := st.ActiveItems(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, items, "a failing row blocks the whole import")
}

func TestImportItemsRejectsExisting(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.ImportItems(ctx, "r1", []BulkRow{
		{Name: "Burger", Price: "9.50", Category: "Mains"},
	})
	require.NoError(t, err)

	// Same name, different case: still a duplicate.
	_, err = svc.ImportItems(ctx, "r1", []BulkRow{
		{Name: "BURGER", Price: "8", Category: "Mains"},
	})
	var rowErrs *RowErrors
	require.ErrorAs(t, err, &rowErrs)
}

func TestBulkUpdatePreviewWritesNothing(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	_, err := svc.ImportItems(ctx, "r1", []BulkRow{
		{Name: "Burger", Price: "9.50", Category: "Mains"},
		{Name: "Fries", Price: "3", Category: "Sides"},
	})
	require.NoError(t, err)

	preview, result, err := svc.BulkUpdate(ctx, "r1", []BulkRow{
		{Name: "Burger", Price: "10", Category: "Mains"}, // update
		{Name: "Shake", Price: "4", Category: "Drinks"},  // create
		// Fries absent -> archive candidate
	}, false)
	require.NoError(t, err)
	require.NotNil(t, preview)
	assert.Nil(t, result)

	assert.Equal(t, 1, preview.WillCreate)
	assert.Equal(t, 1, preview.WillUpdate)
	assert.Equal(t, 1, preview.WillArchive)

	items, err := st.ActiveItems(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, items, 2, "preview writes nothing")
	for _, it := range items {
		if it.Name == "Burger" {
			assert.InDelta(t, 9.5, it.Price, 0.001, "price unchanged by preview")
		}
	}
}

func TestBulkUpdateConfirmApplies(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	_, err := svc.ImportItems(ctx, "r1", []BulkRow{
		{Name: "Burger", Price: "9.50", Category: "Mains"},
		{Name: "Fries", Price: "3", Category: "Sides"},
	})
	require.NoError(t, err)

	before, err := st.ActiveItems(ctx, "r1")
	require.NoError(t, err)
	var burgerKey string
	for _, it := range before {
		if it.Name == "Burger" {
			burgerKey = it.ExternalKey
		}
	}

	preview, result, err := svc.BulkUpdate(ctx, "r1", []BulkRow{
		{Name: "burger", Price: "10", Category: "Mains"}, // case-insensitive name match
		{Name: "Shake", Price: "4", Category: "Drinks"},
	}, true)
	require.NoError(t, err)
	assert.Nil(t, preview)
	require.NotNil(t, result)

	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Archived)

	items, err := st.ActiveItems(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, items, 2)

	names := make(map[string]Item, len(items))
	for _, it := range items {
		names[it.Name] = it
	}
	require.Contains(t, names, "burger")
	require.Contains(t, names, "Shake")
	assert.InDelta(t, 10, names["burger"].Price, 0.001)
	assert.Equal(t, burgerKey, names["burger"].ExternalKey, "updated item keeps its external key")

	// Fries is archived, not deleted.
	all, err := st.ItemsByKeys(ctx, "r1", keysOf(before))
	require.NoError(t, err)
	var fries *Item
	for i := range all {
		if all[i].Name == "Fries" {
			fries = &all[i]
		}
	}
	require.NotNil(t, fries)
	assert.NotNil(t, fries.ArchivedAt)
}

func keysOf(items []Item) []string {
	keys := make([]string, len(items))
	for i, it := range items {
		keys[i] = it.ExternalKey
	}
	return keys
}

func TestBulkUpdateMatchesByID(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	_, err := svc.ImportItems(ctx, "r1", []BulkRow{
		{Name: "Burger", Price: "9.50", Category: "Mains"},
	})
	require.NoError(t, err)

	items, err := st.ActiveItems(ctx, "r1")
	require.NoError(t, err)
	id := items[0].ID

	// Renamed row still matches via id.
	_, result, err := svc.BulkUpdate(ctx, "r1", []BulkRow{
		{ID: id, Name: "Double Burger", Price: "12", Category: "Mains"},
	}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Zero(t, result.Created)
	assert.Zero(t, result.Archived)

	items, err = st.ActiveItems(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Double Burger", items[0].Name)
	assert.Equal(t, id, items[0].ID)
}

func TestBulkWarnings(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.ImportItems(ctx, "r1", []BulkRow{
		{Name: "Burger", Price: "9.50", Category: "Appetizers"},
	})
	require.NoError(t, err)

	preview, _, err := svc.BulkUpdate(ctx, "r1", []BulkRow{
		{Name: "Burger", Price: "9.50", Category: "Appetizer", Tags: []string{"vegan", "glows-in-dark"}},
	}, false)
	require.NoError(t, err)

	var catWarn, tagWarn *RowWarning
	for i := range preview.Warnings {
		switch preview.Warnings[i].Field {
		case "category":
			catWarn = &preview.Warnings[i]
		case "tags":
			tagWarn = &preview.Warnings[i]
		}
	}

	require.NotNil(t, catWarn, "near-miss category produces a suggestion")
	assert.Equal(t, "Appetizers", catWarn.Suggestion)

	require.NotNil(t, tagWarn, "unknown tag is flagged, not fatal")
	assert.Contains(t, tagWarn.Message, "glows-in-dark")
}

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		name        string
		in          []string
		want        []string
		wantUnknown []string
	}{
		{"canonical", []string{"vegan"}, []string{"vegan"}, nil},
		{"case and spaces", []string{"Gluten Free", "DAIRY_FREE"}, []string{"gluten-free", "dairy-free"}, nil},
		{"dedup", []string{"spicy", "Spicy"}, []string{"spicy"}, nil},
		{"unknown kept original", []string{"atomic"}, nil, []string{"atomic"}},
		{"empty dropped", []string{"", "  "}, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, unknown := normalizeTags(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantUnknown, unknown)
		})
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"9.50", 9.5, false},
		{"$9.50", 9.5, false},
		{"€1,250.00", 1250, false},
		{"£3", 3, false},
		{" 4.25 ", 4.25, false},
		{"", 0, true},
		{"free", 0, true},
		{"0", 0, true},
		{"-2", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parsePrice(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}
