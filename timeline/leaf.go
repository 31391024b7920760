// Package timeline implements the in-memory index over the durable redo
// log: primary-key lookup, parent/child tree links, and append-ordered
// collection membership, rebuilt by replay and kept live by indexers on
// every subsequent commit.
package timeline

import (
	"github.com/chainvault/chainvault/meta"
	"github.com/chainvault/chainvault/redo"
)

// EventLeaf is the index entry pointing at one event's durable location.
type EventLeaf struct {
	Key      meta.PrimaryKey
	Location redo.Location
	// Tombstoned is true once a tombstone event has superseded this key.
	Tombstoned bool
}

// MetaParent is the parent link recorded for a key, if it declared one via
// a TreeFacet.
type MetaParent struct {
	Parent       meta.PrimaryKey
	CollectionID uint64
}
