package indexers_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainvault/chainvault/meta"
	"github.com/chainvault/chainvault/pipeline"
	"github.com/chainvault/chainvault/pipeline/indexers"
	"github.com/chainvault/chainvault/redo"
	"github.com/chainvault/chainvault/timeline"
)

func TestTimelineIndexerRecordsHistory(t *testing.T) {
	tl := timeline.New()
	x := indexers.TimelineIndexer{Timeline: tl}

	key := meta.NewPrimaryKey()
	w := pipeline.Work{Header: meta.Header{Key: key, Metadata: meta.MetadataSet{}.Append(meta.DataFacet{Key: key})}}
	loc := redo.Location{Segment: 0, Offset: 42}

	require.NoError(t, x.Index(context.Background(), w, loc))

	leaf, ok := tl.LookupPrimary(key)
	require.True(t, ok)
	require.Equal(t, loc, leaf.Location)
	require.False(t, leaf.Tombstoned)
}

func TestTimelineIndexerMarksTombstone(t *testing.T) {
	tl := timeline.New()
	x := indexers.TimelineIndexer{Timeline: tl}

	key := meta.NewPrimaryKey()
	w := pipeline.Work{Header: meta.Header{Key: key, Metadata: meta.MetadataSet{}.Append(meta.TombstoneFacet{Key: key})}}
	require.NoError(t, x.Index(context.Background(), w, redo.Location{Segment: 0, Offset: 1}))

	require.True(t, tl.IsTombstoned(key))
}
