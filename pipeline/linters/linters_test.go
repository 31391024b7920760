package linters_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chainvault/chainvault/clock"
	"github.com/chainvault/chainvault/cryptography"
	"github.com/chainvault/chainvault/meta"
	"github.com/chainvault/chainvault/pipeline"
	"github.com/chainvault/chainvault/pipeline/linters"
)

func newWork(t *testing.T) *pipeline.Work {
	t.Helper()
	key := meta.NewPrimaryKey()
	return &pipeline.Work{Header: meta.Header{Key: key, Metadata: meta.MetadataSet{}.Append(meta.DataFacet{Key: key})}}
}

func TestTimestampLinterUsesInjectedClock(t *testing.T) {
	fixed := clock.FixedSource{At: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}
	w := newWork(t)
	require.NoError(t, linters.TimestampLinter{Clock: fixed}.Lint(context.Background(), pipeline.Session{}, w))

	ts, ok := w.Header.Metadata.Timestamp()
	require.True(t, ok)
	require.True(t, ts.When.Equal(fixed.At))
}

func TestAuthorLinterSkipsEmptyIdentity(t *testing.T) {
	w := newWork(t)
	require.NoError(t, linters.AuthorLinter{}.Lint(context.Background(), pipeline.Session{}, w))
	_, ok := w.Header.Metadata.Author()
	require.False(t, ok)
}

func TestAuthorLinterStampsIdentity(t *testing.T) {
	w := newWork(t)
	require.NoError(t, linters.AuthorLinter{}.Lint(context.Background(), pipeline.Session{AuthorIdentity: "alice"}, w))
	author, ok := w.Header.Metadata.Author()
	require.True(t, ok)
	require.Equal(t, "alice", author.Identity)
}

func TestPublicKeyLinterSkipsWithoutSignKey(t *testing.T) {
	w := newWork(t)
	require.NoError(t, linters.PublicKeyLinter{}.Lint(context.Background(), pipeline.Session{}, w))
	_, ok := w.Header.Metadata.PublicKey()
	require.False(t, ok)
}

func TestSignatureLinterSignsEverythingBefore(t *testing.T) {
	priv, pub, err := cryptography.GenerateSignKeyPair()
	require.NoError(t, err)
	sess := pipeline.Session{AuthorIdentity: "bob", SignKey: &priv}

	w := newWork(t)
	require.NoError(t, linters.AuthorLinter{}.Lint(context.Background(), sess, w))
	require.NoError(t, linters.PublicKeyLinter{}.Lint(context.Background(), sess, w))
	require.NoError(t, linters.SignatureLinter{}.Lint(context.Background(), sess, w))

	sigs := w.Header.Metadata.Signatures()
	require.Len(t, sigs, 1)

	hash, err := meta.HeaderHash(w.Header.Key, w.Header.Metadata)
	require.NoError(t, err)
	require.NoError(t, pub.Verify(hash, sigs[0].Signature))
}

func TestSignatureLinterSkipsWithoutSignKey(t *testing.T) {
	w := newWork(t)
	require.NoError(t, linters.SignatureLinter{}.Lint(context.Background(), pipeline.Session{}, w))
	require.Empty(t, w.Header.Metadata.Signatures())
}

func TestEncryptionKeyLinterSealsBodyKey(t *testing.T) {
	bodyKey, err := cryptography.GenerateEncryptKey(cryptography.KeySize256)
	require.NoError(t, err)
	sealUnder, err := cryptography.GenerateEncryptKey(cryptography.KeySize256)
	require.NoError(t, err)

	sess := pipeline.Session{BodyKey: &bodyKey, SealBodyKeyUnder: &sealUnder}
	w := newWork(t)
	require.NoError(t, linters.EncryptionKeyLinter{}.Lint(context.Background(), sess, w))

	facet, ok := w.Header.Metadata.EncryptedEncryptionKey()
	require.True(t, ok)

	opened, err := cryptography.Open[[]byte](sealUnder, facet.Data)
	require.NoError(t, err)
	require.Equal(t, bodyKey.Bytes(), opened)
}

func TestEncryptionKeyLinterSkipsWithoutBothKeys(t *testing.T) {
	w := newWork(t)
	require.NoError(t, linters.EncryptionKeyLinter{}.Lint(context.Background(), pipeline.Session{}, w))
	_, ok := w.Header.Metadata.EncryptedEncryptionKey()
	require.False(t, ok)
}
