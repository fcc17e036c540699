package menu

// memstore_test.go provides an in-memory Store used by the service tests.
// It mirrors the semantics of the SQL store: upserts report insert-vs-update,
// link replacement counts only genuinely new pairs, and promotion archives
// published rows missing from the promoted set.

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type memStore struct {
	mu sync.Mutex

	drafts  map[string]*DraftRecord
	cats    map[string]Category   // rid + "/" + id
	items   map[string]Item       // rid + "/" + id
	groups  map[string]AddonGroup // rid + "/" + state + "/" + id
	options map[string]AddonOption
	links   map[string][]AddonLink // rid + "/" + state
}

func newMemStore() *memStore {
	return &memStore{
		drafts:  make(map[string]*DraftRecord),
		cats:    make(map[string]Category),
		items:   make(map[string]Item),
		groups:  make(map[string]AddonGroup),
		options: make(map[string]AddonOption),
		links:   make(map[string][]AddonLink),
	}
}

func key2(a, b string) string          { return a + "/" + b }
func key3(a string, s State, c string) string { return a + "/" + string(s) + "/" + c }

func (m *memStore) GetDraft(_ context.Context, restaurantID string) (*DraftRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.drafts[restaurantID]
	if !ok {
		return nil, ErrDraftNotFound
	}
	cp := *rec
	cp.Document.Categories = append([]DraftCategory(nil), rec.Document.Categories...)
	cp.Document.Items = append([]DraftItem(nil), rec.Document.Items...)
	return &cp, nil
}

func (m *memStore) UpsertDraft(_ context.Context, rec *DraftRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	cp.Document.Categories = append([]DraftCategory(nil), rec.Document.Categories...)
	cp.Document.Items = append([]DraftItem(nil), rec.Document.Items...)
	m.drafts[rec.RestaurantID] = &cp
	return nil
}

func (m *memStore) UpsertCategory(_ context.Context, c Category) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key2(c.RestaurantID, c.ID)
	_, exists := m.cats[k]
	m.cats[k] = c
	return !exists, nil
}

func (m *memStore) ActiveCategories(_ context.Context, restaurantID string) ([]Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Category
	for _, c := range m.cats {
		if c.RestaurantID == restaurantID && c.ArchivedAt == nil {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *memStore) UpsertItemByKey(_ context.Context, it Item) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, existing := range m.items {
		if existing.RestaurantID == it.RestaurantID && existing.ExternalKey == it.ExternalKey {
			it.ID = existing.ID
			m.items[k] = it
			return existing.ID, false, nil
		}
	}
	if it.ID == "" {
		return "", false, fmt.Errorf("upsert item %s: empty id", it.ExternalKey)
	}
	m.items[key2(it.RestaurantID, it.ID)] = it
	return it.ID, true, nil
}

func (m *memStore) InsertItem(_ context.Context, it Item) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key2(it.RestaurantID, it.ID)
	if _, exists := m.items[k]; exists {
		return "", fmt.Errorf("duplicate key: item %s", it.ID)
	}
	m.items[k] = it
	return it.ID, nil
}

func (m *memStore) UpdateItem(_ context.Context, it Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key2(it.RestaurantID, it.ID)
	existing, ok := m.items[k]
	if !ok {
		return ErrItemNotFound
	}
	it.ExternalKey = existing.ExternalKey
	m.items[k] = it
	return nil
}

func (m *memStore) ItemsByKeys(_ context.Context, restaurantID string, keys []string) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	var out []Item
	for _, it := range m.items {
		if it.RestaurantID == restaurantID && want[it.ExternalKey] {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *memStore) ItemsByIDs(_ context.Context, restaurantID string, ids []string) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Item
	for _, id := range ids {
		if it, ok := m.items[key2(restaurantID, id)]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *memStore) ActiveItems(_ context.Context, restaurantID string) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Item
	for _, it := range m.items {
		if it.RestaurantID == restaurantID && it.ArchivedAt == nil {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *memStore) ItemByID(_ context.Context, restaurantID, id string) (*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[key2(restaurantID, id)]
	if !ok {
		return nil, ErrItemNotFound
	}
	return &it, nil
}

func (m *memStore) ArchiveItem(_ context.Context, restaurantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key2(restaurantID, id)
	it, ok := m.items[k]
	if !ok {
		return ErrItemNotFound
	}
	if it.ArchivedAt == nil {
		now := time.Now()
		it.ArchivedAt = &now
		m.items[k] = it
	}
	return nil
}

func (m *memStore) AddonGroups(_ context.Context, restaurantID string, state State) ([]AddonGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := restaurantID + "/" + string(state) + "/"
	var out []AddonGroup
	for k, g := range m.groups {
		if strings.HasPrefix(k, prefix) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) AddonOptions(_ context.Context, restaurantID string, state State) ([]AddonOption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := restaurantID + "/" + string(state) + "/"
	var out []AddonOption
	for k, o := range m.options {
		if strings.HasPrefix(k, prefix) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) AddonLinks(_ context.Context, restaurantID string, state State) ([]AddonLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AddonLink(nil), m.links[key2(restaurantID, string(state))]...), nil
}

func (m *memStore) UpsertAddonGroup(_ context.Context, g AddonGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertGroupLocked(g)
	return nil
}

func (m *memStore) upsertGroupLocked(g AddonGroup) bool {
	k := key3(g.RestaurantID, g.State, g.ID)
	_, exists := m.groups[k]
	m.groups[k] = g
	return !exists
}

func (m *memStore) UpsertAddonOption(_ context.Context, o AddonOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertOptionLocked(o)
	return nil
}

func (m *memStore) upsertOptionLocked(o AddonOption) bool {
	k := key3(o.RestaurantID, o.State, o.ID)
	_, exists := m.options[k]
	m.options[k] = o
	return !exists
}

func (m *memStore) ArchiveAddonGroup(_ context.Context, restaurantID, groupID string, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	k := key3(restaurantID, state, groupID)
	if g, ok := m.groups[k]; ok && g.ArchivedAt == nil {
		g.ArchivedAt = &now
		m.groups[k] = g
	}
	for ok, o := range m.options {
		if o.RestaurantID == restaurantID && o.State == state && o.GroupID == groupID && o.ArchivedAt == nil {
			o.ArchivedAt = &now
			m.options[ok] = o
		}
	}
	return nil
}

func (m *memStore) ReplaceAddonLinks(_ context.Context, restaurantID string, state State, links []AddonLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaceLinksLocked(restaurantID, state, links)
	return nil
}

func (m *memStore) replaceLinksLocked(restaurantID string, state State, links []AddonLink) int {
	k := key2(restaurantID, string(state))
	existing := make(map[string]bool)
	for _, l := range m.links[k] {
		existing[l.GroupID+"\x00"+l.ItemKey+"\x00"+l.ItemID] = true
	}
	fresh := 0
	for _, l := range links {
		if !existing[l.GroupID+"\x00"+l.ItemKey+"\x00"+l.ItemID] {
			fresh++
		}
	}
	m.links[k] = append([]AddonLink(nil), links...)
	return fresh
}

func (m *memStore) BackfillDraftLinkKey(_ context.Context, restaurantID, itemID, itemKey string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key2(restaurantID, string(StateDraft))
	var n int64
	for i, l := range m.links[k] {
		if l.ItemID == itemID && l.ItemKey == "" {
			m.links[k][i].ItemKey = itemKey
			n++
		}
	}
	return n, nil
}

func (m *memStore) PromoteAddons(_ context.Context, restaurantID string, groups []AddonGroup, options []AddonOption, links []AddonLink) (PublishCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var counts PublishCounts
	keepGroups := make(map[string]bool, len(groups))
	for _, g := range groups {
		if m.upsertGroupLocked(g) {
			counts.AddonGroups++
		}
		keepGroups[g.ID] = true
	}
	keepOptions := make(map[string]bool, len(options))
	for _, o := range options {
		if m.upsertOptionLocked(o) {
			counts.AddonOptions++
		}
		keepOptions[o.ID] = true
	}

	now := time.Now()
	for k, g := range m.groups {
		if g.RestaurantID == restaurantID && g.State == StatePublished && g.ArchivedAt == nil && !keepGroups[g.ID] {
			g.ArchivedAt = &now
			m.groups[k] = g
		}
	}
	for k, o := range m.options {
		if o.RestaurantID == restaurantID && o.State == StatePublished && o.ArchivedAt == nil && !keepOptions[o.ID] {
			o.ArchivedAt = &now
			m.options[k] = o
		}
	}

	counts.AddonLinks = m.replaceLinksLocked(restaurantID, StatePublished, links)
	return counts, nil
}

// newTestService wires a Service to a fresh memStore with a deterministic
// clock and id sequence.
func newTestService() (*Service, *memStore) {
	st := newMemStore()
	svc := NewService(st)
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	seq := 0
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("id-%03d", seq)
	}
	return svc, st
}
