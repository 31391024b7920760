package chain_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chainvault/chainvault/chain"
	"github.com/chainvault/chainvault/chainerr"
	"github.com/chainvault/chainvault/cryptography"
	"github.com/chainvault/chainvault/meta"
	"github.com/chainvault/chainvault/pipeline"
)

func newTestSession(t *testing.T) pipeline.Session {
	t.Helper()
	priv, _, err := cryptography.GenerateSignKeyPair()
	require.NoError(t, err)
	return pipeline.Session{AuthorIdentity: "tester", SignKey: &priv}
}

// S1 — store/load round trip, exercised at the Chain level (dio_test covers
// it again through the transaction layer). Raw is used here since it
// carries no body transformers, so the stored record matches the bytes fed
// in exactly.
func TestChainFeedAndLookupRoundTrip(t *testing.T) {
	c, err := chain.NewChainBuilder("t1", t.TempDir(), chain.Raw).Build()
	require.NoError(t, err)
	defer c.Shutdown(context.Background())

	sess := newTestSession(t)
	key := meta.NewPrimaryKey()
	header := meta.Header{Key: key, Metadata: meta.MetadataSet{}.Append(meta.DataFacet{Key: key})}

	_, err = c.Feed(context.Background(), sess, header, []byte(`"my test string"`))
	require.NoError(t, err)

	view := c.Multi()
	leaf, ok := view.LookupPrimary(key)
	require.True(t, ok)
	rec, err := view.Load(leaf.Location)
	view.Release()
	require.NoError(t, err)
	require.Equal(t, `"my test string"`, string(rec.Data))
}

// S4 — compaction drops duplicates: a hundred stores of the same key
// collapse to one surviving record holding the last body.
func TestChainCompactDropsDuplicates(t *testing.T) {
	c, err := chain.NewChainBuilder("t4", t.TempDir(), chain.Balanced).Build()
	require.NoError(t, err)
	defer c.Shutdown(context.Background())

	sess := newTestSession(t)
	key := meta.NewPrimaryKey()

	const n = 100
	for i := 0; i < n; i++ {
		header := meta.Header{Key: key, Metadata: meta.MetadataSet{}.Append(meta.DataFacet{Key: key})}
		body := []byte(time.Now().Format(time.RFC3339Nano))
		_, err := c.Feed(context.Background(), sess, header, body)
		require.NoError(t, err)
	}
	require.GreaterOrEqual(t, c.Count(), n)

	require.NoError(t, c.Compact(context.Background()))
	require.Equal(t, 1, c.Count())

	view := c.Multi()
	_, ok := view.LookupPrimary(key)
	view.Release()
	require.True(t, ok)
}

// S5 — timestamp enforcement: BestSecurity's 200ms tolerance rejects an
// event whose Timestamp facet is already a second stale by the time it
// reaches the pipeline. The facet is set directly on the header rather than
// left for TimestampLinter to stamp, since MetadataSet.Timestamp() reports
// the first match and TimestampLinter only ever appends.
func TestChainRejectsStaleTimestamp(t *testing.T) {
	c, err := chain.NewChainBuilder("t5", t.TempDir(), chain.BestSecurity).Build()
	require.NoError(t, err)
	defer c.Shutdown(context.Background())

	sess := newTestSession(t)
	key := meta.NewPrimaryKey()
	header := meta.Header{Key: key, Metadata: meta.MetadataSet{}.
		Append(meta.DataFacet{Key: key}).
		Append(meta.TimestampFacet{When: time.Now().Add(-1 * time.Second)})}

	_, err = c.Feed(context.Background(), sess, header, []byte("late"))
	require.Error(t, err)

	var ce *chainerr.CommitError
	require.ErrorAs(t, err, &ce)
}
