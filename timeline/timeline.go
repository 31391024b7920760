package timeline

import (
	"sync"

	"github.com/chainvault/chainvault/meta"
)

// Timeline is the in-memory index over one chain's redo log: primary-key
// lookup, parent links, and append-ordered collection membership. It is
// rebuilt from scratch by replay and kept current afterwards by the
// indexer pipeline stage, always under the chain's exclusive write lock.
type Timeline struct {
	mu sync.RWMutex

	primary    map[meta.PrimaryKey]EventLeaf
	parents    map[meta.PrimaryKey]MetaParent
	collection map[uint64][]meta.PrimaryKey
	tombstoned map[meta.PrimaryKey]struct{}
}

// New returns an empty Timeline.
func New() *Timeline {
	return &Timeline{
		primary:    make(map[meta.PrimaryKey]EventLeaf),
		parents:    make(map[meta.PrimaryKey]MetaParent),
		collection: make(map[uint64][]meta.PrimaryKey),
		tombstoned: make(map[meta.PrimaryKey]struct{}),
	}
}

// LookupPrimary returns the current EventLeaf for key, if any.
func (t *Timeline) LookupPrimary(key meta.PrimaryKey) (EventLeaf, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	leaf, ok := t.primary[key]
	return leaf, ok
}

// LookupParent returns key's recorded parent link, if it declared one.
func (t *Timeline) LookupParent(key meta.PrimaryKey) (MetaParent, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.parents[key]
	return p, ok
}

// LookupSecondary returns every EventLeaf belonging to collectionID, in the
// order they were appended.
func (t *Timeline) LookupSecondary(collectionID uint64) ([]EventLeaf, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	keys, ok := t.collection[collectionID]
	if !ok {
		return nil, false
	}
	out := make([]EventLeaf, 0, len(keys))
	for _, k := range keys {
		if leaf, ok := t.primary[k]; ok {
			out = append(out, leaf)
		}
	}
	return out, true
}

// LookupSecondaryRaw returns the ordered PrimaryKeys of collectionID without
// resolving each to its EventLeaf.
func (t *Timeline) LookupSecondaryRaw(collectionID uint64) ([]meta.PrimaryKey, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	keys, ok := t.collection[collectionID]
	if !ok {
		return nil, false
	}
	out := make([]meta.PrimaryKey, len(keys))
	copy(out, keys)
	return out, true
}

// IsTombstoned reports whether key has been tombstoned.
func (t *Timeline) IsTombstoned(key meta.PrimaryKey) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.tombstoned[key]
	return ok
}

// AddHistory records one successfully-pipelined event's header into the
// index. Called by indexers, always under the chain's exclusive write
// phase: no internal locking is needed for correctness against concurrent
// writers, but the RWMutex still protects concurrent readers calling
// Lookup* while this runs.
func (t *Timeline) AddHistory(leaf EventLeaf, header meta.Header) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := header.Metadata.Tombstone(); ok {
		t.tombstoned[leaf.Key] = struct{}{}
		leaf.Tombstoned = true
	}
	t.primary[leaf.Key] = leaf

	if tree, ok := header.Metadata.Tree(); ok {
		t.parents[leaf.Key] = MetaParent{Parent: tree.Parent, CollectionID: tree.CollectionID}
		if tree.CollectionID != 0 {
			t.collection[tree.CollectionID] = append(t.collection[tree.CollectionID], leaf.Key)
		}
	}
}

// InvalidateCaches drops every derived lookup, forcing callers back to a
// fresh replay. Used when the log has been externally rewritten (e.g.
// after a compaction whose new Timeline this instance doesn't yet reflect).
func (t *Timeline) InvalidateCaches() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.primary = make(map[meta.PrimaryKey]EventLeaf)
	t.parents = make(map[meta.PrimaryKey]MetaParent)
	t.collection = make(map[uint64][]meta.PrimaryKey)
	t.tombstoned = make(map[meta.PrimaryKey]struct{})
}

// Count returns the number of distinct primary keys currently indexed.
func (t *Timeline) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.primary)
}

// Equal reports whether t and other index the same primary/parent/
// collection state, for checking that replaying a compacted log
// reproduces the timeline the compactor decisions imply. Leaf locations
// are not compared, since compaction rewrites them.
func (t *Timeline) Equal(other *Timeline) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	if len(t.primary) != len(other.primary) {
		return false
	}
	for k, leaf := range t.primary {
		ol, ok := other.primary[k]
		if !ok || ol.Tombstoned != leaf.Tombstoned {
			return false
		}
	}
	if len(t.parents) != len(other.parents) {
		return false
	}
	for k, p := range t.parents {
		if op, ok := other.parents[k]; !ok || op != p {
			return false
		}
	}
	if len(t.collection) != len(other.collection) {
		return false
	}
	for id, keys := range t.collection {
		ok := other.collection[id]
		if len(keys) != len(ok) {
			return false
		}
		for i := range keys {
			if keys[i] != ok[i] {
				return false
			}
		}
	}
	return true
}
