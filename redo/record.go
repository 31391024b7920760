package redo

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/chainvault/chainvault/chainerr"
)

// Record is one framed entry in the log: metadata bytes in the chain's
// configured meta format, plus an opaque body (post body-transformers on
// write, pre-transformers on read).
type Record struct {
	Meta []byte
	Data []byte
}

// frameHeaderSize is the two little-endian uint32 length prefixes that
// precede every record: { u32 meta_len, u32 data_len }.
const frameHeaderSize = 8

func writeRecord(w io.Writer, r Record) (int64, error) {
	var hdr [frameHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(r.Meta)))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(r.Data)))

	if _, err := w.Write(hdr[:]); err != nil {
		return 0, fmt.Errorf("redo: write frame header: %w", err)
	}
	if _, err := w.Write(r.Meta); err != nil {
		return 0, fmt.Errorf("redo: write frame meta: %w", err)
	}
	if _, err := w.Write(r.Data); err != nil {
		return 0, fmt.Errorf("redo: write frame data: %w", err)
	}
	return int64(frameHeaderSize + len(r.Meta) + len(r.Data)), nil
}

// readRecord decodes one frame from r. It returns io.EOF (unwrapped) when r
// is exhausted exactly at a frame boundary, and chainerr.ErrBadFrame when a
// frame is present but truncated mid-write. The caller treats the latter as
// the tail of an interrupted append and truncates on reopen.
func readRecord(r io.Reader) (Record, int64, error) {
	var hdr [frameHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF {
			return Record{}, 0, io.EOF
		}
		return Record{}, 0, fmt.Errorf("%w: header: %v", chainerr.ErrBadFrame, err)
	}
	metaLen := binary.LittleEndian.Uint32(hdr[0:4])
	dataLen := binary.LittleEndian.Uint32(hdr[4:8])

	meta := make([]byte, metaLen)
	if _, err := io.ReadFull(r, meta); err != nil {
		return Record{}, 0, fmt.Errorf("%w: truncated meta: %v", chainerr.ErrBadFrame, err)
	}
	data := make([]byte, dataLen)
	if _, err := io.ReadFull(r, data); err != nil {
		return Record{}, 0, fmt.Errorf("%w: truncated data: %v", chainerr.ErrBadFrame, err)
	}
	total := int64(frameHeaderSize) + int64(metaLen) + int64(dataLen)
	return Record{Meta: meta, Data: data}, total, nil
}
