package meta_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chainvault/chainvault/meta"
)

// A typed accessor always resolves to the first matching facet appended,
// never the last — this is what lets a manually-injected facet win over one
// a linter appends afterward.
func TestMetadataSetAccessorsReturnFirstMatch(t *testing.T) {
	early := time.Now().Add(-time.Hour)
	late := time.Now()

	set := meta.MetadataSet{}.
		Append(meta.TimestampFacet{When: early}).
		Append(meta.TimestampFacet{When: late})

	ts, ok := set.Timestamp()
	require.True(t, ok)
	require.True(t, ts.When.Equal(early))
}

func TestMetadataSetSignaturesReturnsAll(t *testing.T) {
	set := meta.MetadataSet{}.
		Append(meta.SignatureFacet{Signature: []byte("a")}).
		Append(meta.SignatureFacet{Signature: []byte("b")})

	sigs := set.Signatures()
	require.Len(t, sigs, 2)
}

func TestMetadataSetWithoutSignatureDropsAllSignatures(t *testing.T) {
	key := meta.NewPrimaryKey()
	set := meta.MetadataSet{}.
		Append(meta.DataFacet{Key: key}).
		Append(meta.SignatureFacet{Signature: []byte("a")}).
		Append(meta.SignatureFacet{Signature: []byte("b")})

	stripped := set.WithoutSignature()
	require.Len(t, stripped, 1)
	require.Empty(t, stripped.Signatures())
}

func TestMetadataSetAppendDoesNotMutateOriginal(t *testing.T) {
	key := meta.NewPrimaryKey()
	base := meta.MetadataSet{}.Append(meta.DataFacet{Key: key})
	extended := base.Append(meta.AuthorFacet{Identity: "x"})

	require.Len(t, base, 1)
	require.Len(t, extended, 2)
}

func TestPrimaryKeyRoundTrip(t *testing.T) {
	k := meta.NewPrimaryKey()
	require.False(t, k.IsZero())

	parsed, err := meta.ParsePrimaryKey(k.String())
	require.NoError(t, err)
	require.Equal(t, k, parsed)

	fromBytes, err := meta.PrimaryKeyFromBytes(k.Bytes())
	require.NoError(t, err)
	require.Equal(t, k, fromBytes)

	text, err := k.MarshalText()
	require.NoError(t, err)
	var unmarshaled meta.PrimaryKey
	require.NoError(t, unmarshaled.UnmarshalText(text))
	require.Equal(t, k, unmarshaled)
}

func TestPrimaryKeyZeroValueIsZero(t *testing.T) {
	var k meta.PrimaryKey
	require.True(t, k.IsZero())
}
