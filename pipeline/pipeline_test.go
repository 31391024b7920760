package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chainvault/chainvault/clock"
	"github.com/chainvault/chainvault/cryptography"
	"github.com/chainvault/chainvault/meta"
	"github.com/chainvault/chainvault/pipeline"
	"github.com/chainvault/chainvault/pipeline/indexers"
	"github.com/chainvault/chainvault/pipeline/linters"
	"github.com/chainvault/chainvault/pipeline/plugins"
	"github.com/chainvault/chainvault/pipeline/validators"
	"github.com/chainvault/chainvault/redo"
	"github.com/chainvault/chainvault/timeline"
)

func newTestPipeline(t *testing.T, tl *timeline.Timeline) *pipeline.Pipeline {
	t.Helper()
	return &pipeline.Pipeline{
		Linters: []pipeline.Linter{
			linters.TimestampLinter{Clock: clock.SystemTimeSource{}},
			linters.AuthorLinter{},
			linters.PublicKeyLinter{},
			linters.SignatureLinter{},
		},
		Plugins: []pipeline.Plugin{
			plugins.NewAntiReplay(tl.IsTombstoned),
			plugins.TimestampEnforcer{Clock: clock.SystemTimeSource{}, Tolerance: time.Hour},
		},
		Validators: []pipeline.Validator{validators.SignatureValidator{}},
		Indexers:   []pipeline.Indexer{indexers.TimelineIndexer{Timeline: tl}},
	}
}

func TestFeedAcceptsSignedEvent(t *testing.T) {
	dir := t.TempDir()
	log, err := redo.Open(redo.Config{Dir: dir, ChainName: "c1"}, []byte("hdr"))
	require.NoError(t, err)
	codec, err := meta.NewCodec(meta.Bincode)
	require.NoError(t, err)

	tl := timeline.New()
	p := newTestPipeline(t, tl)

	priv, _, err := cryptography.GenerateSignKeyPair()
	require.NoError(t, err)
	sess := pipeline.Session{AuthorIdentity: "tester", SignKey: &priv}

	key := meta.NewPrimaryKey()
	header := meta.Header{Key: key, Metadata: meta.MetadataSet{meta.DataFacet{Key: key}}}

	loc, err := p.Feed(context.Background(), sess, log, codec, header, []byte("my test string"))
	require.NoError(t, err)

	leaf, ok := tl.LookupPrimary(key)
	require.True(t, ok)
	require.Equal(t, loc, leaf.Location)

	rec, err := log.Load(loc)
	require.NoError(t, err)
	require.Equal(t, "my test string", string(rec.Data))
}

// TestReplayRejectsByteIdenticalDuplicate exercises the testable property
// that a byte-identical event, re-fed through plugins a second time, is
// rejected as a duplicate by AntiReplay. This is the scenario a client
// retry after an ambiguous commit outcome produces.
func TestReplayRejectsByteIdenticalDuplicate(t *testing.T) {
	dir := t.TempDir()
	log, err := redo.Open(redo.Config{Dir: dir, ChainName: "c2"}, []byte("hdr"))
	require.NoError(t, err)
	codec, err := meta.NewCodec(meta.Bincode)
	require.NoError(t, err)

	tl := timeline.New()
	full := newTestPipeline(t, tl)

	priv, _, err := cryptography.GenerateSignKeyPair()
	require.NoError(t, err)
	sess := pipeline.Session{AuthorIdentity: "tester", SignKey: &priv}

	key := meta.NewPrimaryKey()
	header := meta.Header{Key: key, Metadata: meta.MetadataSet{meta.DataFacet{Key: key}}}

	loc, err := full.Feed(context.Background(), sess, log, codec, header, []byte("body"))
	require.NoError(t, err)

	rec, err := log.Load(loc)
	require.NoError(t, err)
	linted, err := meta.DecodeHeader(codec, rec.Meta)
	require.NoError(t, err)

	retry := &pipeline.Pipeline{
		Plugins:    full.Plugins,
		Validators: full.Validators,
	}
	_, err = retry.Feed(context.Background(), sess, log, codec, linted, rec.Data)
	require.Error(t, err)
}
