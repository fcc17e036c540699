package menu

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddonDraftsSeedsFromPublished(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	// A restaurant with live add-ons but no drafts yet, as left behind by
	// an older editor version that wrote the published schema directly.
	require.NoError(t, st.UpsertAddonGroup(ctx, AddonGroup{
		ID: "g1", RestaurantID: "r1", State: StatePublished, Name: "Toppings", MultipleChoice: true,
	}))
	require.NoError(t, st.UpsertAddonOption(ctx, AddonOption{
		ID: "o1", RestaurantID: "r1", GroupID: "g1", State: StatePublished, Name: "Cheese", Price: 1, InStock: true,
	}))
	_, err := st.InsertItem(ctx, Item{
		ID: "item-1", RestaurantID: "r1", ExternalKey: "key-1", Name: "Burger", Price: 9.5,
	})
	require.NoError(t, err)
	require.NoError(t, st.ReplaceAddonLinks(ctx, "r1", StatePublished, []AddonLink{{
		ID: "pl1", RestaurantID: "r1", State: StatePublished, GroupID: "g1", ItemID: "item-1",
	}}))

	bundle, err := svc.AddonDrafts(ctx, "r1")
	require.NoError(t, err)

	require.NotNil(t, bundle.Seeded)
	assert.Equal(t, 1, bundle.Seeded.Groups)
	assert.Equal(t, 1, bundle.Seeded.Options)
	assert.Equal(t, 1, bundle.Seeded.Links)

	require.Len(t, bundle.Groups, 1)
	assert.Equal(t, "g1", bundle.Groups[0].ID, "draft copy keeps the group id")
	assert.Equal(t, StateDraft, bundle.Groups[0].State)
	require.Len(t, bundle.Groups[0].Options, 1)
	assert.Equal(t, "Cheese", bundle.Groups[0].Options[0].Name)

	// The seeded draft link addresses the item by external key.
	stored, err := st.AddonLinks(ctx, "r1", StateDraft)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "key-1", stored[0].ItemKey)

	// Second read does not reseed.
	again, err := svc.AddonDrafts(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, again.Seeded)
	assert.Len(t, again.Groups, 1)
}

func TestAddonDraftsDropsUnresolvableLinksFromResultOnly(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	_, err := svc.SaveAddonGroup(ctx, "r1", AddonGroup{ID: "g1", Name: "Sides"})
	require.NoError(t, err)
	require.NoError(t, st.ReplaceAddonLinks(ctx, "r1", StateDraft, []AddonLink{{
		ID: "l1", RestaurantID: "r1", State: StateDraft, GroupID: "g1", ItemKey: "unpublished-key",
	}}))

	bundle, err := svc.AddonDrafts(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, bundle.Links, "link to an unpublished item is hidden")

	stored, err := st.AddonLinks(ctx, "r1", StateDraft)
	require.NoError(t, err)
	assert.Len(t, stored, 1, "but it is still stored")

	// Once the item exists live, the link resolves and surfaces.
	_, err = st.InsertItem(ctx, Item{
		ID: "item-1", RestaurantID: "r1", ExternalKey: "unpublished-key", Name: "Slaw", Price: 3,
	})
	require.NoError(t, err)

	bundle, err = svc.AddonDrafts(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, bundle.Links, 1)
	assert.Equal(t, "item-1", bundle.Links[0].ItemID)
}

func TestSaveAddonGroupGeneratesIDs(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	g, err := svc.SaveAddonGroup(ctx, "r1", AddonGroup{
		Name:    "Sizes",
		Options: []AddonOption{{Name: "Large"}, {ID: "opt-fixed", Name: "Small"}},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, g.ID)
	assert.Equal(t, StateDraft, g.State)
	assert.NotEmpty(t, g.Options[0].ID)
	assert.Equal(t, "opt-fixed", g.Options[1].ID)
	assert.Equal(t, g.ID, g.Options[0].GroupID)
}

func TestSaveAddonGroupRequiresName(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.SaveAddonGroup(context.Background(), "r1", AddonGroup{})
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestAssignGroup(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	group, err := svc.SaveAddonGroup(ctx, "r1", AddonGroup{Name: "Extras"})
	require.NoError(t, err)
	other, err := svc.SaveAddonGroup(ctx, "r1", AddonGroup{Name: "Other"})
	require.NoError(t, err)

	rec, err := svc.SaveDraft(ctx, "r1", DraftDocument{
		Items: []DraftItem{
			{Name: "Burger", Price: 9.5, AddonGroupIDs: []string{other.ID}},
			{Name: "Fries", Price: 3},
		},
	})
	require.NoError(t, err)
	burgerKey := rec.Document.Items[0].ExternalKey
	friesKey := rec.Document.Items[1].ExternalKey

	keys, err := svc.AssignGroup(ctx, "r1", group.ID, []string{burgerKey, friesKey})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{burgerKey: burgerKey, friesKey: friesKey}, keys)

	links, err := st.AddonLinks(ctx, "r1", StateDraft)
	require.NoError(t, err)

	var assigned, others int
	for _, l := range links {
		switch l.GroupID {
		case group.ID:
			assigned++
		case other.ID:
			others++
		}
	}
	assert.Equal(t, 2, assigned)
	assert.Equal(t, 1, others, "other groups' links survive the assignment")

	// Reassigning a smaller set replaces only this group's links.
	_, err = svc.AssignGroup(ctx, "r1", group.ID, []string{friesKey})
	require.NoError(t, err)

	links, err = st.AddonLinks(ctx, "r1", StateDraft)
	require.NoError(t, err)
	assigned = 0
	for _, l := range links {
		if l.GroupID == group.ID {
			assigned++
			assert.Equal(t, friesKey, l.ItemKey)
		}
	}
	assert.Equal(t, 1, assigned)
}

func TestAssignGroupMintsMissingKeys(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	group, err := svc.SaveAddonGroup(ctx, "r1", AddonGroup{Name: "Extras"})
	require.NoError(t, err)

	// A draft stored without keys, and an item addressed by live row id.
	require.NoError(t, st.UpsertDraft(ctx, &DraftRecord{
		RestaurantID: "r1",
		Document: DraftDocument{
			Items: []DraftItem{{ID: "live-id", Name: "Wrap", Price: 7}},
		},
	}))

	keys, err := svc.AssignGroup(ctx, "r1", group.ID, []string{"live-id"})
	require.NoError(t, err)

	minted := keys["live-id"]
	require.NotEmpty(t, minted)

	rec, err := st.GetDraft(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, minted, rec.Document.Items[0].ExternalKey, "minted key is persisted into the draft")
}

func TestAssignGroupErrors(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.AssignGroup(ctx, "r1", "missing-group", []string{"x"})
	assert.ErrorIs(t, err, ErrGroupNotFound)

	group, err := svc.SaveAddonGroup(ctx, "r1", AddonGroup{Name: "Extras"})
	require.NoError(t, err)

	_, err = svc.AssignGroup(ctx, "r1", group.ID, []string{"no-such-item"})
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestArchiveAddonGroupHidesFromBundle(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	group, err := svc.SaveAddonGroup(ctx, "r1", AddonGroup{Name: "Gone"})
	require.NoError(t, err)
	require.NoError(t, svc.ArchiveAddonGroup(ctx, "r1", group.ID))

	bundle, err := svc.AddonDrafts(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, bundle.Groups)
}
