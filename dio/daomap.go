package dio

import (
	"context"

	"github.com/chainvault/chainvault/chainerr"
	"github.com/chainvault/chainvault/meta"
)

// DaoMap is a keyed mapping of children of parent, addressed by a
// collection id: the key-to-PrimaryKey table lives inside the parent
// object's own body, so DaoMap never stores it itself —
// it reads and writes that table through the index/setIndex closures a
// caller binds to whichever field of their own loaded parent handle holds
// it. This sidesteps a three-type-parameter generic interface constraint
// (DaoMap[K, V, P]) in favor of two ordinary closures, at the cost of
// requiring the caller to re-save the parent handle after Put/Delete.
type DaoMap[K comparable, V any] struct {
	d            *DIO
	parent       meta.PrimaryKey
	collectionID uint64
	index        func() map[K]meta.PrimaryKey
	setIndex     func(map[K]meta.PrimaryKey)
}

// NewDaoMap opens a DaoMap over parent's collectionID within d. index
// returns the parent's current key table; setIndex is called with the
// updated table after every Put/Delete so the caller can flush it back onto
// the parent's own handle.
func NewDaoMap[K comparable, V any](d *DIO, parent meta.PrimaryKey, collectionID uint64, index func() map[K]meta.PrimaryKey, setIndex func(map[K]meta.PrimaryKey)) *DaoMap[K, V] {
	return &DaoMap[K, V]{d: d, parent: parent, collectionID: collectionID, index: index, setIndex: setIndex}
}

// Put inserts or updates the value under k. An existing entry is updated in
// place (same child PrimaryKey); a new entry allocates a fresh child and
// records it in the index.
func (m *DaoMap[K, V]) Put(ctx context.Context, k K, value V) (*Handle[V], error) {
	idx := m.index()
	if idx == nil {
		idx = make(map[K]meta.PrimaryKey)
	}
	if pk, ok := idx[k]; ok {
		h, err := Load[V](ctx, m.d, pk)
		if err != nil {
			return nil, err
		}
		*h.Mutate() = value
		if err := h.Flush(); err != nil {
			return nil, err
		}
		return h, nil
	}

	h, err := storeChild[V](m.d, m.parent, m.collectionID, value)
	if err != nil {
		return nil, err
	}
	idx[k] = h.Key()
	m.setIndex(idx)
	return h, nil
}

// Get loads the value stored under k.
func (m *DaoMap[K, V]) Get(ctx context.Context, k K) (*Handle[V], error) {
	idx := m.index()
	pk, ok := idx[k]
	if !ok {
		return nil, chainerr.ErrNotFound
	}
	return Load[V](ctx, m.d, pk)
}

// Delete removes k from the index and stages a tombstone for its child.
func (m *DaoMap[K, V]) Delete(k K) {
	idx := m.index()
	pk, ok := idx[k]
	if !ok {
		return
	}
	delete(idx, k)
	m.setIndex(idx)
	Delete(m.d, pk)
}

// Keys returns every key currently in the index.
func (m *DaoMap[K, V]) Keys() []K {
	idx := m.index()
	out := make([]K, 0, len(idx))
	for k := range idx {
		out = append(out, k)
	}
	return out
}
