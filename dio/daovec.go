package dio

import (
	"context"

	"github.com/chainvault/chainvault/meta"
)

// DaoVec is an ordered sequence of children of parent, addressed by a
// collection id: Push appends a new child, All returns every live child in
// append order. It is a bus in its simplest, non-subscribing form —
// repeated Push/All over the same collection id.
type DaoVec[T any] struct {
	d            *DIO
	parent       meta.PrimaryKey
	collectionID uint64
}

// NewDaoVec opens a DaoVec over parent's collectionID within d.
func NewDaoVec[T any](d *DIO, parent meta.PrimaryKey, collectionID uint64) *DaoVec[T] {
	return &DaoVec[T]{d: d, parent: parent, collectionID: collectionID}
}

// Push stages a new child under this vector's collection id and returns a
// mutable handle over it.
func (v *DaoVec[T]) Push(value T) (*Handle[T], error) {
	return storeChild[T](v.d, v.parent, v.collectionID, value)
}

// All loads every live child in the Timeline's append order.
func (v *DaoVec[T]) All(ctx context.Context) ([]*Handle[T], error) {
	return Children[T](ctx, v.d, v.collectionID)
}

// Keys returns every live child PrimaryKey, without loading bodies.
func (v *DaoVec[T]) Keys() ([]meta.PrimaryKey, error) {
	return ChildrenKeys(v.d, v.collectionID)
}
