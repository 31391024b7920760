package validators_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainvault/chainvault/cryptography"
	"github.com/chainvault/chainvault/meta"
	"github.com/chainvault/chainvault/pipeline"
	"github.com/chainvault/chainvault/pipeline/validators"
)

func signedWork(t *testing.T, priv cryptography.PrivateSignKey, embedPublicKey bool) pipeline.Work {
	t.Helper()
	key := meta.NewPrimaryKey()
	set := meta.MetadataSet{}.Append(meta.DataFacet{Key: key})
	if embedPublicKey {
		set = set.Append(meta.PublicKeyFacet{Raw: priv.PublicKeyBytes()})
	}
	hash, err := meta.HeaderHash(key, set)
	require.NoError(t, err)
	sig, err := priv.Sign(hash)
	require.NoError(t, err)
	set = set.Append(meta.SignatureFacet{SignerHash: priv.Public().Hash(), Signature: sig})
	return pipeline.Work{Header: meta.Header{Key: key, Metadata: set}}
}

func TestRubberStampAlwaysAllows(t *testing.T) {
	v, err := validators.RubberStamp{}.Validate(context.Background(), pipeline.Work{})
	require.NoError(t, err)
	require.Equal(t, pipeline.Allow, v)
}

func TestSignatureValidatorDeniesWithNoSignature(t *testing.T) {
	key := meta.NewPrimaryKey()
	w := pipeline.Work{Header: meta.Header{Key: key, Metadata: meta.MetadataSet{}.Append(meta.DataFacet{Key: key})}}
	verdict, err := validators.SignatureValidator{}.Validate(context.Background(), w)
	require.Error(t, err)
	require.Equal(t, pipeline.Deny, verdict)
}

func TestSignatureValidatorAllowsValidEmbeddedKey(t *testing.T) {
	priv, _, err := cryptography.GenerateSignKeyPair()
	require.NoError(t, err)
	w := signedWork(t, priv, true)

	verdict, err := validators.SignatureValidator{}.Validate(context.Background(), w)
	require.NoError(t, err)
	require.Equal(t, pipeline.Allow, verdict)
}

func TestSignatureValidatorDeniesWithoutEmbeddedKeyOrTrustedKey(t *testing.T) {
	priv, _, err := cryptography.GenerateSignKeyPair()
	require.NoError(t, err)
	w := signedWork(t, priv, false)

	verdict, err := validators.SignatureValidator{}.Validate(context.Background(), w)
	require.Error(t, err)
	require.Equal(t, pipeline.Deny, verdict)
}

func TestSignatureValidatorUsesTrustedKeyOverEmbedded(t *testing.T) {
	priv, pub, err := cryptography.GenerateSignKeyPair()
	require.NoError(t, err)
	w := signedWork(t, priv, false)

	verdict, err := validators.SignatureValidator{TrustedKey: &pub}.Validate(context.Background(), w)
	require.NoError(t, err)
	require.Equal(t, pipeline.Allow, verdict)
}

func TestSignatureValidatorDeniesWrongTrustedKey(t *testing.T) {
	priv, _, err := cryptography.GenerateSignKeyPair()
	require.NoError(t, err)
	_, otherPub, err := cryptography.GenerateSignKeyPair()
	require.NoError(t, err)
	w := signedWork(t, priv, false)

	verdict, err := validators.SignatureValidator{TrustedKey: &otherPub}.Validate(context.Background(), w)
	require.Error(t, err)
	require.Equal(t, pipeline.Deny, verdict)
}
