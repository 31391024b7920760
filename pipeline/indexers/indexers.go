// Package indexers implements the standard indexer pipeline stage: after an
// event clears every prior stage, update the in-memory timeline.
package indexers

import (
	"context"

	"github.com/chainvault/chainvault/pipeline"
	"github.com/chainvault/chainvault/redo"
	"github.com/chainvault/chainvault/timeline"
)

// TimelineIndexer records each accepted event into a Timeline.
type TimelineIndexer struct {
	Timeline *timeline.Timeline
}

func (x TimelineIndexer) Index(_ context.Context, w pipeline.Work, loc redo.Location) error {
	x.Timeline.AddHistory(timeline.EventLeaf{Key: w.Header.Key, Location: loc}, w.Header)
	return nil
}
