package timeline

import (
	"testing"

	"github.com/chainvault/chainvault/meta"
	"github.com/chainvault/chainvault/redo"
	"github.com/stretchr/testify/require"
)

func TestAddHistoryAndLookupPrimary(t *testing.T) {
	tl := New()
	key := meta.NewPrimaryKey()
	header := meta.Header{Key: key, Metadata: meta.MetadataSet{meta.DataFacet{Key: key}}}

	tl.AddHistory(EventLeaf{Key: key, Location: redo.Location{Segment: 0, Offset: 0}}, header)

	leaf, ok := tl.LookupPrimary(key)
	require.True(t, ok)
	require.False(t, leaf.Tombstoned)
	require.Equal(t, 1, tl.Count())
}

func TestTombstoneMarksKey(t *testing.T) {
	tl := New()
	key := meta.NewPrimaryKey()
	header := meta.Header{Key: key, Metadata: meta.MetadataSet{meta.TombstoneFacet{Key: key}}}

	tl.AddHistory(EventLeaf{Key: key}, header)

	require.True(t, tl.IsTombstoned(key))
	leaf, ok := tl.LookupPrimary(key)
	require.True(t, ok)
	require.True(t, leaf.Tombstoned)
}

func TestCollectionOrderPreserved(t *testing.T) {
	tl := New()
	parent := meta.NewPrimaryKey()
	const collectionID = uint64(42)

	var children []meta.PrimaryKey
	for i := 0; i < 3; i++ {
		child := meta.NewPrimaryKey()
		children = append(children, child)
		header := meta.Header{
			Key: child,
			Metadata: meta.MetadataSet{
				meta.DataFacet{Key: child},
				meta.TreeFacet{Parent: parent, CollectionID: collectionID},
			},
		}
		tl.AddHistory(EventLeaf{Key: child}, header)
	}

	raw, ok := tl.LookupSecondaryRaw(collectionID)
	require.True(t, ok)
	require.Equal(t, children, raw)

	p, ok := tl.LookupParent(children[0])
	require.True(t, ok)
	require.Equal(t, parent, p.Parent)
}

func TestInvalidateCachesClearsState(t *testing.T) {
	tl := New()
	key := meta.NewPrimaryKey()
	tl.AddHistory(EventLeaf{Key: key}, meta.Header{Key: key, Metadata: meta.MetadataSet{meta.DataFacet{Key: key}}})
	require.Equal(t, 1, tl.Count())

	tl.InvalidateCaches()
	require.Equal(t, 0, tl.Count())
	_, ok := tl.LookupPrimary(key)
	require.False(t, ok)
}
