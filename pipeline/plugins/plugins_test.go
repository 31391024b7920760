package plugins_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chainvault/chainvault/clock"
	"github.com/chainvault/chainvault/cryptography"
	"github.com/chainvault/chainvault/mesh"
	"github.com/chainvault/chainvault/meta"
	"github.com/chainvault/chainvault/pipeline"
	"github.com/chainvault/chainvault/pipeline/plugins"
)

func newWorkWithTimestamp(t *testing.T, when time.Time) pipeline.Work {
	t.Helper()
	key := meta.NewPrimaryKey()
	return pipeline.Work{Header: meta.Header{Key: key, Metadata: meta.MetadataSet{}.
		Append(meta.DataFacet{Key: key}).
		Append(meta.TimestampFacet{When: when})}}
}

func TestAntiReplayRejectsSecondFeedOfSameHeader(t *testing.T) {
	p := plugins.NewAntiReplay(func(meta.PrimaryKey) bool { return false })
	w := newWorkWithTimestamp(t, time.Now())

	require.NoError(t, p.Feed(context.Background(), w))
	require.Error(t, p.Feed(context.Background(), w))
}

func TestAntiReplayRejectsTombstonedKey(t *testing.T) {
	p := plugins.NewAntiReplay(func(meta.PrimaryKey) bool { return true })
	w := newWorkWithTimestamp(t, time.Now())
	require.Error(t, p.Feed(context.Background(), w))
}

func TestAntiReplayAllowsDistinctHeaders(t *testing.T) {
	p := plugins.NewAntiReplay(func(meta.PrimaryKey) bool { return false })
	require.NoError(t, p.Feed(context.Background(), newWorkWithTimestamp(t, time.Now())))
	require.NoError(t, p.Feed(context.Background(), newWorkWithTimestamp(t, time.Now().Add(time.Second))))
}

func TestAntiReplayUsesSuppliedStore(t *testing.T) {
	store := mesh.NewMemoryDedupStore()
	p := &plugins.AntiReplay{Store: store, IsTombstoned: func(meta.PrimaryKey) bool { return false }}
	w := newWorkWithTimestamp(t, time.Now())

	require.NoError(t, p.Feed(context.Background(), w))

	hash, err := meta.HeaderHash(w.Header.Key, w.Header.Metadata)
	require.NoError(t, err)
	seen, err := store.MarkSeen(context.Background(), hash.String())
	require.NoError(t, err)
	require.True(t, seen, "the plugin should have already marked this hash seen via the shared store")
}

func TestTimestampEnforcerRejectsMissingTimestamp(t *testing.T) {
	key := meta.NewPrimaryKey()
	w := pipeline.Work{Header: meta.Header{Key: key, Metadata: meta.MetadataSet{}.Append(meta.DataFacet{Key: key})}}
	p := plugins.TimestampEnforcer{Clock: clock.SystemTimeSource{}, Tolerance: time.Second}
	require.Error(t, p.Feed(context.Background(), w))
}

func TestTimestampEnforcerAllowsWithinTolerance(t *testing.T) {
	fixed := clock.FixedSource{At: time.Now()}
	w := newWorkWithTimestamp(t, fixed.At.Add(-50*time.Millisecond))
	p := plugins.TimestampEnforcer{Clock: fixed, Tolerance: 200 * time.Millisecond}
	require.NoError(t, p.Feed(context.Background(), w))
}

func TestTimestampEnforcerRejectsOutsideTolerance(t *testing.T) {
	fixed := clock.FixedSource{At: time.Now()}
	w := newWorkWithTimestamp(t, fixed.At.Add(-time.Second))
	p := plugins.TimestampEnforcer{Clock: fixed, Tolerance: 200 * time.Millisecond}
	require.Error(t, p.Feed(context.Background(), w))
}

type fixedAuthority struct {
	set []cryptography.Hash
	err error
}

func (f fixedAuthority) EffectiveWriteSet(meta.PrimaryKey) ([]cryptography.Hash, error) {
	return f.set, f.err
}

func TestTreeAuthorityNoOpsOnEmptyWriteSet(t *testing.T) {
	p := plugins.TreeAuthority{Lookup: fixedAuthority{set: nil}}
	w := newWorkWithTimestamp(t, time.Now())
	require.NoError(t, p.Feed(context.Background(), w))
}

func TestTreeAuthorityRejectsUnmatchedSignature(t *testing.T) {
	allowed := cryptography.HashOf([]byte("allowed-key"))
	p := plugins.TreeAuthority{Lookup: fixedAuthority{set: []cryptography.Hash{allowed}}}

	key := meta.NewPrimaryKey()
	w := pipeline.Work{Header: meta.Header{Key: key, Metadata: meta.MetadataSet{}.
		Append(meta.DataFacet{Key: key}).
		Append(meta.SignatureFacet{SignerHash: cryptography.HashOf([]byte("someone-else"))})}}

	require.Error(t, p.Feed(context.Background(), w))
}

func TestTreeAuthorityAllowsMatchedSignature(t *testing.T) {
	allowed := cryptography.HashOf([]byte("allowed-key"))
	p := plugins.TreeAuthority{Lookup: fixedAuthority{set: []cryptography.Hash{allowed}}}

	key := meta.NewPrimaryKey()
	w := pipeline.Work{Header: meta.Header{Key: key, Metadata: meta.MetadataSet{}.
		Append(meta.DataFacet{Key: key}).
		Append(meta.SignatureFacet{SignerHash: allowed})}}

	require.NoError(t, p.Feed(context.Background(), w))
}
