package compactors_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainvault/chainvault/meta"
	"github.com/chainvault/chainvault/pipeline"
	"github.com/chainvault/chainvault/pipeline/compactors"
	"github.com/chainvault/chainvault/redo"
)

func TestRemoveDuplicatesKeepsOnlyLatestLocation(t *testing.T) {
	key := meta.NewPrimaryKey()
	events := []pipeline.IndexedEvent{
		{Location: redo.Location{Segment: 0, Offset: 0}, Header: meta.Header{Key: key}},
		{Location: redo.Location{Segment: 0, Offset: 10}, Header: meta.Header{Key: key}},
		{Location: redo.Location{Segment: 0, Offset: 20}, Header: meta.Header{Key: key}},
	}

	decisions := compactors.RemoveDuplicates{}.Decide(context.Background(), events)
	require.Equal(t, pipeline.Drop, decisions[events[0].Location])
	require.Equal(t, pipeline.Drop, decisions[events[1].Location])
	require.Equal(t, pipeline.Keep, decisions[events[2].Location])
}

func TestRemoveDuplicatesKeepsDistinctKeysIndependently(t *testing.T) {
	k1, k2 := meta.NewPrimaryKey(), meta.NewPrimaryKey()
	events := []pipeline.IndexedEvent{
		{Location: redo.Location{Segment: 0, Offset: 0}, Header: meta.Header{Key: k1}},
		{Location: redo.Location{Segment: 0, Offset: 10}, Header: meta.Header{Key: k2}},
	}

	decisions := compactors.RemoveDuplicates{}.Decide(context.Background(), events)
	require.Equal(t, pipeline.Keep, decisions[events[0].Location])
	require.Equal(t, pipeline.Keep, decisions[events[1].Location])
}

func TestTombstoneDropsEveryOccurrenceIncludingTombstoneItself(t *testing.T) {
	key := meta.NewPrimaryKey()
	events := []pipeline.IndexedEvent{
		{Location: redo.Location{Segment: 0, Offset: 0}, Header: meta.Header{Key: key, Metadata: meta.MetadataSet{}.Append(meta.DataFacet{Key: key})}},
		{Location: redo.Location{Segment: 0, Offset: 10}, Header: meta.Header{Key: key, Metadata: meta.MetadataSet{}.Append(meta.TombstoneFacet{Key: key})}},
	}

	decisions := compactors.Tombstone{}.Decide(context.Background(), events)
	require.Equal(t, pipeline.Drop, decisions[events[0].Location])
	require.Equal(t, pipeline.Drop, decisions[events[1].Location])
}

func TestTombstoneKeepsUnaffectedKeys(t *testing.T) {
	live, tombstoned := meta.NewPrimaryKey(), meta.NewPrimaryKey()
	events := []pipeline.IndexedEvent{
		{Location: redo.Location{Segment: 0, Offset: 0}, Header: meta.Header{Key: live, Metadata: meta.MetadataSet{}.Append(meta.DataFacet{Key: live})}},
		{Location: redo.Location{Segment: 0, Offset: 10}, Header: meta.Header{Key: tombstoned, Metadata: meta.MetadataSet{}.Append(meta.TombstoneFacet{Key: tombstoned})}},
	}

	decisions := compactors.Tombstone{}.Decide(context.Background(), events)
	require.Equal(t, pipeline.Keep, decisions[events[0].Location])
	require.Equal(t, pipeline.Drop, decisions[events[1].Location])
}
