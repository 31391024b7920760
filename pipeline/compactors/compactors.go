// Package compactors implements the standard compaction-phase pipeline
// stage: given a snapshot of the whole stored log, decide which events
// survive a rewrite.
package compactors

import (
	"context"

	"github.com/chainvault/chainvault/meta"
	"github.com/chainvault/chainvault/pipeline"
	"github.com/chainvault/chainvault/redo"
)

// RemoveDuplicates keeps only the latest event occurrence for each
// PrimaryKey and drops every earlier one.
type RemoveDuplicates struct{}

func (RemoveDuplicates) Decide(_ context.Context, events []pipeline.IndexedEvent) map[redo.Location]pipeline.CompactDecision {
	latest := make(map[meta.PrimaryKey]redo.Location)
	for _, ev := range events {
		latest[ev.Header.Key] = ev.Location
	}
	decisions := make(map[redo.Location]pipeline.CompactDecision, len(events))
	for _, ev := range events {
		if latest[ev.Header.Key] == ev.Location {
			decisions[ev.Location] = pipeline.Keep
		} else {
			decisions[ev.Location] = pipeline.Drop
		}
	}
	return decisions
}

// Tombstone drops every event occurrence for a key with an applied
// tombstone, including the tombstone event itself.
type Tombstone struct{}

func (Tombstone) Decide(_ context.Context, events []pipeline.IndexedEvent) map[redo.Location]pipeline.CompactDecision {
	tombstoned := make(map[meta.PrimaryKey]bool)
	for _, ev := range events {
		if _, ok := ev.Header.Metadata.Tombstone(); ok {
			tombstoned[ev.Header.Key] = true
		}
	}
	decisions := make(map[redo.Location]pipeline.CompactDecision, len(events))
	for _, ev := range events {
		if tombstoned[ev.Header.Key] {
			decisions[ev.Location] = pipeline.Drop
		} else {
			decisions[ev.Location] = pipeline.Keep
		}
	}
	return decisions
}
