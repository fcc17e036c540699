package menu

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDraftCreatesEmptyShell(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	rec, err := svc.GetDraft(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", rec.RestaurantID)
	assert.Empty(t, rec.Document.Categories)
	assert.Empty(t, rec.Document.Items)

	// The shell is persisted, not just returned.
	stored, err := st.GetDraft(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, rec.UpdatedAt, stored.UpdatedAt)
}

func TestSaveDraftAssignsExternalKeys(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	rec, err := svc.SaveDraft(ctx, "r1", DraftDocument{
		Categories: []DraftCategory{{Name: "Mains"}},
		Items: []DraftItem{
			{Name: "Burger", Price: 9.5},
			{Name: "Fries", Price: 3.0, ExternalKey: "existing-key"},
		},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, rec.Document.Categories[0].ID, "new category gets an id")
	assert.NotEmpty(t, rec.Document.Items[0].ExternalKey, "new item gets a key")
	assert.Equal(t, "existing-key", rec.Document.Items[1].ExternalKey, "existing key is preserved")
}

func TestSaveDraftKeysStableAcrossResaves(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	first, err := svc.SaveDraft(ctx, "r1", DraftDocument{
		Items: []DraftItem{{Name: "Burger", Price: 9.5}},
	})
	require.NoError(t, err)
	key := first.Document.Items[0].ExternalKey

	// A rename, price change and reorder must not disturb the key.
	second, err := svc.SaveDraft(ctx, "r1", DraftDocument{
		Items: []DraftItem{
			{Name: "Small Fries", Price: 2.5},
			{Name: "Big Burger", Price: 10.5, ExternalKey: key},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, key, second.Document.Items[1].ExternalKey)
	assert.NotEqual(t, key, second.Document.Items[0].ExternalKey)
}

func TestSaveDraftRecomputesLinks(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	_, err := svc.SaveDraft(ctx, "r1", DraftDocument{
		Items: []DraftItem{
			{Name: "Burger", Price: 9.5, ExternalKey: "k1", AddonGroupIDs: []string{"g1", "g2", "g1"}},
			{Name: "Fries", Price: 3.0, ExternalKey: "k2", AddonGroupIDs: []string{"g1"}},
		},
	})
	require.NoError(t, err)

	links, err := st.AddonLinks(ctx, "r1", StateDraft)
	require.NoError(t, err)
	require.Len(t, links, 3, "duplicate group ids are deduplicated")

	pairs := make(map[[2]string]bool)
	for _, l := range links {
		assert.Equal(t, StateDraft, l.State)
		assert.Empty(t, l.ItemID, "draft links carry keys, not row ids")
		pairs[[2]string{l.ItemKey, l.GroupID}] = true
	}
	assert.True(t, pairs[[2]string{"k1", "g1"}])
	assert.True(t, pairs[[2]string{"k1", "g2"}])
	assert.True(t, pairs[[2]string{"k2", "g1"}])

	// Dropping a group from the item drops its link on the next save.
	_, err = svc.SaveDraft(ctx, "r1", DraftDocument{
		Items: []DraftItem{
			{Name: "Burger", Price: 9.5, ExternalKey: "k1", AddonGroupIDs: []string{"g2"}},
		},
	})
	require.NoError(t, err)

	links, err = st.AddonLinks(ctx, "r1", StateDraft)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "g2", links[0].GroupID)
	assert.Equal(t, "k1", links[0].ItemKey)
}

func TestSaveDraftValidation(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	tests := []struct {
		name string
		doc  DraftDocument
	}{
		{
			name: "category without name",
			doc:  DraftDocument{Categories: []DraftCategory{{SortOrder: 1}}},
		},
		{
			name: "item without name",
			doc:  DraftDocument{Items: []DraftItem{{Price: 5}}},
		},
		{
			name: "negative price",
			doc:  DraftDocument{Items: []DraftItem{{Name: "Burger", Price: -1}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SaveDraft(ctx, "r1", tt.doc)
			var valErr *ValidationError
			require.ErrorAs(t, err, &valErr)
		})
	}

	// Nothing was written on any of the rejected saves.
	_, err := st.GetDraft(ctx, "r1")
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestSaveDraftLastWriteWins(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	_, err := svc.SaveDraft(ctx, "r1", DraftDocument{
		Items: []DraftItem{{Name: "Burger", Price: 9.5, ExternalKey: "k1"}},
	})
	require.NoError(t, err)

	_, err = svc.SaveDraft(ctx, "r1", DraftDocument{
		Items: []DraftItem{{Name: "Pizza", Price: 12, ExternalKey: "k2"}},
	})
	require.NoError(t, err)

	rec, err := st.GetDraft(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, rec.Document.Items, 1)
	assert.Equal(t, "Pizza", rec.Document.Items[0].Name)
}
