// Package transformers implements the body-rewriting pipeline stage:
// compression and encryption on write, applied in reverse on load.
package transformers

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/chainvault/chainvault/meta"
	"github.com/chainvault/chainvault/pipeline"
)

// CompressionTransformer zstd-compresses bodies on write and decompresses
// them on load. Runs before EncryptionTransformer on write (compressing
// ciphertext wastes cycles for no gain) and after it on load.
type CompressionTransformer struct{}

func (CompressionTransformer) Transform(_ context.Context, _ pipeline.Session, w *pipeline.Work) error {
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		return fmt.Errorf("transformers: new zstd writer: %w", err)
	}
	if _, err := zw.Write(w.Body); err != nil {
		zw.Close()
		return fmt.Errorf("transformers: compress body: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("transformers: close zstd writer: %w", err)
	}
	w.Body = buf.Bytes()
	return nil
}

func (CompressionTransformer) Inverse(_ context.Context, _ pipeline.Session, w *pipeline.Work) error {
	r, err := zstd.NewReader(bytes.NewReader(w.Body))
	if err != nil {
		return fmt.Errorf("transformers: new zstd reader: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("transformers: decompress body: %w", err)
	}
	w.Body = out
	return nil
}

// EncryptionTransformer seals bodies with the commit's effective body key,
// sess.BodyKey. A commit whose Session carries no BodyKey passes through
// untouched, so the same pipeline configuration serves both encrypting and
// non-encrypting sessions. The nonce Seal produces is recorded as an
// InitializationVectorFacet on the Work so Inverse can recover it later
// without needing to share the committer's in-memory state.
type EncryptionTransformer struct{}

func (EncryptionTransformer) Transform(_ context.Context, sess pipeline.Session, w *pipeline.Work) error {
	if sess.BodyKey == nil {
		return nil
	}
	ciphertext, iv, err := sess.BodyKey.Seal(w.Body)
	if err != nil {
		return fmt.Errorf("transformers: encrypt body: %w", err)
	}
	w.Body = ciphertext
	w.Header.Metadata = w.Header.Metadata.Append(meta.InitializationVectorFacet{IV: iv})
	return nil
}

func (EncryptionTransformer) Inverse(_ context.Context, sess pipeline.Session, w *pipeline.Work) error {
	ivFacet, ok := w.Header.Metadata.InitializationVector()
	if !ok {
		// No IV facet: this event's body was never encrypted.
		return nil
	}
	if sess.BodyKey == nil {
		return fmt.Errorf("transformers: body is encrypted but no body key was supplied")
	}
	plain, err := sess.BodyKey.Open(w.Body, ivFacet.IV)
	if err != nil {
		return fmt.Errorf("transformers: decrypt body: %w", err)
	}
	w.Body = plain
	return nil
}
