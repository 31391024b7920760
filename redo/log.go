// Package redo implements the append-only, segmented on-disk event log: the
// durable bottom layer every chain is built on. Records are framed with
// explicit length prefixes (see record.go) so a partial write from a
// crashed process is detected and truncated on reopen rather than
// corrupting later reads.
package redo

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// Location addresses one record. It is opaque outside this package and
// meaningful only relative to the log's current generation: a compaction
// rewrite produces a new generation whose offsets bear no relation to the
// old one, by design: EventLeaf offsets are never reused across rotations.
type Location struct {
	Segment int
	Offset  int64
}

// Config configures where and how a RedoLog stores its segment files.
type Config struct {
	// Dir is the directory holding "<ChainName>.<n>" segment files.
	Dir string
	// ChainName prefixes every segment file name.
	ChainName string
	// MaxSegmentBytes rotates to a new segment once the active one would
	// exceed this size. Zero means unbounded (a single segment).
	MaxSegmentBytes int64
	// Temp, when true, removes Dir entirely on Destroy.
	Temp bool
}

// RedoLog is the durable, append-only record store for one chain.
type RedoLog struct {
	mu sync.Mutex

	cfg Config

	segments map[int]*segmentFile
	active   *segmentFile

	header         []byte
	headerLocation Location
	locations      []Location // records after the header, in append order
}

// Open opens (or creates) the log at cfg.Dir. If no segments exist yet, a
// fresh log is created and header is written as the log's preamble record.
// If segments already exist, header is ignored and the stored chain header
// is recovered from the first record instead.
func Open(cfg Config, header []byte) (*RedoLog, error) {
	if cfg.ChainName == "" {
		return nil, errors.New("redo: ChainName must not be empty")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("redo: create log dir: %w", err)
	}

	indices, err := discoverSegments(cfg.Dir, cfg.ChainName)
	if err != nil {
		return nil, err
	}

	l := &RedoLog{cfg: cfg, segments: make(map[int]*segmentFile)}

	if len(indices) == 0 {
		seg, err := openSegment(cfg.Dir, cfg.ChainName, 0)
		if err != nil {
			return nil, err
		}
		l.segments[0] = seg
		l.active = seg
		n, err := writeRecord(seg.file, Record{Data: header})
		if err != nil {
			return nil, fmt.Errorf("redo: write chain header: %w", err)
		}
		seg.size += n
		l.header = append([]byte(nil), header...)
		l.headerLocation = Location{Segment: 0, Offset: 0}
		return l, nil
	}

	if err := l.replay(indices); err != nil {
		return nil, err
	}
	return l, nil
}

// replay reads every existing segment in order, rebuilding the in-memory
// location index and recovering the chain header from the first record. A
// truncated trailing frame (a partial write from a crash) is discarded and
// the segment file truncated to the last valid frame boundary.
func (l *RedoLog) replay(indices []int) error {
	first := true
	for _, idx := range indices {
		seg, err := openSegment(l.cfg.Dir, l.cfg.ChainName, idx)
		if err != nil {
			return err
		}
		l.segments[idx] = seg
		l.active = seg

		var offset int64
		for {
			if _, err := seg.file.Seek(offset, io.SeekStart); err != nil {
				return fmt.Errorf("redo: seek segment %d: %w", idx, err)
			}
			_, n, err := readRecord(seg.file)
			if err == io.EOF {
				break
			}
			if err != nil {
				// Partial trailing frame from an interrupted append:
				// truncate and stop scanning this segment.
				if truncErr := seg.file.Truncate(offset); truncErr != nil {
					return fmt.Errorf("redo: truncate partial frame: %w", truncErr)
				}
				seg.size = offset
				break
			}
			loc := Location{Segment: idx, Offset: offset}
			if first {
				header, _, herr := l.readAt(loc)
				if herr != nil {
					return herr
				}
				l.header = header.Data
				l.headerLocation = loc
				first = false
			} else {
				l.locations = append(l.locations, loc)
			}
			offset += n
		}
		seg.size = offset
	}
	return nil
}

func (l *RedoLog) readAt(loc Location) (Record, int64, error) {
	seg, ok := l.segments[loc.Segment]
	if !ok {
		return Record{}, 0, fmt.Errorf("redo: unknown segment %d", loc.Segment)
	}
	if _, err := seg.file.Seek(loc.Offset, io.SeekStart); err != nil {
		return Record{}, 0, fmt.Errorf("redo: seek: %w", err)
	}
	return readRecord(seg.file)
}

// Header returns the chain-wide preamble bytes stored as the log's first
// record (a JSON-encoded ChainHeader in practice).
func (l *RedoLog) Header() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]byte(nil), l.header...)
}

// Append writes a framed record and returns its Location. The record is not
// guaranteed durable until Flush returns; callers at Local/Full transaction
// scope must call Flush before treating the append as committed.
func (l *RedoLog) Append(meta, data []byte) (Location, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cfg.MaxSegmentBytes > 0 {
		estimate := int64(frameHeaderSize+len(meta)+len(data)) + l.active.size
		if l.active.size > 0 && estimate > l.cfg.MaxSegmentBytes {
			if err := l.rotateLocked(); err != nil {
				return Location{}, err
			}
		}
	}

	if _, err := l.active.file.Seek(0, io.SeekEnd); err != nil {
		return Location{}, fmt.Errorf("redo: seek to end: %w", err)
	}
	loc := Location{Segment: l.active.index, Offset: l.active.size}
	n, err := writeRecord(l.active.file, Record{Meta: meta, Data: data})
	if err != nil {
		return Location{}, err
	}
	l.active.size += n
	l.locations = append(l.locations, loc)
	return loc, nil
}

func (l *RedoLog) rotateLocked() error {
	nextIdx := l.active.index + 1
	seg, err := openSegment(l.cfg.Dir, l.cfg.ChainName, nextIdx)
	if err != nil {
		return err
	}
	l.segments[nextIdx] = seg
	l.active = seg
	return nil
}

// Load performs random access to one record by Location.
func (l *RedoLog) Load(loc Location) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, _, err := l.readAt(loc)
	if err != nil {
		return Record{}, fmt.Errorf("redo: load %+v: %w", loc, err)
	}
	return rec, nil
}

// Flush fsyncs the active segment, and every segment touched since the
// last Flush, so that every Append returned so far is durable.
func (l *RedoLog) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, seg := range l.segments {
		if err := seg.file.Sync(); err != nil {
			return fmt.Errorf("redo: fsync segment %d: %w", seg.index, err)
		}
	}
	return nil
}

// Count returns the number of data records in the log (excluding the chain
// header).
func (l *RedoLog) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locations)
}

// Locations returns a snapshot of every record's Location, in append order.
// Used by indexers replaying the log and by compactors selecting a subset.
func (l *RedoLog) Locations() []Location {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Location, len(l.locations))
	copy(out, l.locations)
	return out
}

// Destroy closes and deletes every segment file. If cfg.Temp is set, Dir
// itself is also removed.
func (l *RedoLog) Destroy() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for idx, seg := range l.segments {
		path := seg.path
		if err := seg.close(); err != nil {
			return fmt.Errorf("redo: close segment %d: %w", idx, err)
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("redo: remove segment %d: %w", idx, err)
		}
	}
	l.segments = make(map[int]*segmentFile)
	l.active = nil
	l.locations = nil
	if l.cfg.Temp {
		if err := os.RemoveAll(l.cfg.Dir); err != nil {
			return fmt.Errorf("redo: remove log dir: %w", err)
		}
	}
	return nil
}

// Rewrite replaces the log's contents with exactly the records at keep, in
// the order given, preserving the header. The old segment files are deleted
// and a fresh single-segment generation takes their place. Locations from
// before Rewrite are no longer valid. Used by compaction.
func (l *RedoLog) Rewrite(keep []Location) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records := make([]Record, 0, len(keep))
	for _, loc := range keep {
		rec, _, err := l.readAt(loc)
		if err != nil {
			return fmt.Errorf("redo: rewrite: read %+v: %w", loc, err)
		}
		records = append(records, rec)
	}

	staging := l.cfg.ChainName + ".rewrite"
	stagingPath := segmentPath(l.cfg.Dir, staging, 0)
	f, err := os.OpenFile(stagingPath, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("redo: rewrite: create staging segment: %w", err)
	}
	var buf bytes.Buffer
	if _, err := writeRecord(&buf, Record{Data: l.header}); err != nil {
		f.Close()
		return fmt.Errorf("redo: rewrite: encode header: %w", err)
	}
	newLocations := make([]Location, 0, len(records))
	for _, rec := range records {
		offset := int64(buf.Len())
		if _, err := writeRecord(&buf, rec); err != nil {
			f.Close()
			return fmt.Errorf("redo: rewrite: encode record: %w", err)
		}
		newLocations = append(newLocations, Location{Segment: 0, Offset: offset})
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return fmt.Errorf("redo: rewrite: write staging segment: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("redo: rewrite: fsync staging segment: %w", err)
	}

	for idx, seg := range l.segments {
		path := seg.path
		if err := seg.close(); err != nil {
			f.Close()
			return fmt.Errorf("redo: rewrite: close old segment %d: %w", idx, err)
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			f.Close()
			return fmt.Errorf("redo: rewrite: remove old segment %d: %w", idx, err)
		}
	}

	finalPath := segmentPath(l.cfg.Dir, l.cfg.ChainName, 0)
	if err := f.Close(); err != nil {
		return fmt.Errorf("redo: rewrite: close staging segment: %w", err)
	}
	if err := os.Rename(stagingPath, finalPath); err != nil {
		return fmt.Errorf("redo: rewrite: install new segment: %w", err)
	}
	seg, err := openSegment(l.cfg.Dir, l.cfg.ChainName, 0)
	if err != nil {
		return fmt.Errorf("redo: rewrite: reopen new segment: %w", err)
	}

	l.segments = map[int]*segmentFile{0: seg}
	l.active = seg
	l.headerLocation = Location{Segment: 0, Offset: 0}
	l.locations = newLocations
	return nil
}
