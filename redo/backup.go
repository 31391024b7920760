package redo

import (
	"encoding/binary"
	"fmt"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"
)

// BackupMode selects what Backup snapshots.
type BackupMode int

const (
	// BackupNone performs no snapshot; Backup is a no-op.
	BackupNone BackupMode = iota
	// BackupRestore is likewise a no-op for Backup (it names the
	// counterpart read path, Restore, not a write mode).
	BackupRestore
	// BackupRotating snapshots every sealed segment but excludes the
	// segment currently being appended to.
	BackupRotating
	// BackupFull snapshots every segment, including the active one.
	BackupFull
)

// segmentsBucket and metaBucket are the two bbolt buckets a backup uses:
// one entry per segment, keyed by segment index, holding its raw bytes,
// plus a small metadata bucket recording the chain header.
const (
	segmentsBucket = "segments"
	metaBucket     = "meta"
)

// Backup atomically snapshots the log into a single bbolt file at path. The
// active segment is skipped in Rotating mode (it may still be receiving
// writes) and included in Full mode. None and Restore are no-ops.
func (l *RedoLog) Backup(path string, mode BackupMode) error {
	if mode == BackupNone || mode == BackupRestore {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return fmt.Errorf("redo: open backup file: %w", err)
	}
	defer db.Close()

	return db.Update(func(tx *bolt.Tx) error {
		segBucket, err := tx.CreateBucketIfNotExists([]byte(segmentsBucket))
		if err != nil {
			return fmt.Errorf("redo: create segments bucket: %w", err)
		}
		metaB, err := tx.CreateBucketIfNotExists([]byte(metaBucket))
		if err != nil {
			return fmt.Errorf("redo: create meta bucket: %w", err)
		}
		if err := metaB.Put([]byte("header"), l.header); err != nil {
			return fmt.Errorf("redo: write header to backup: %w", err)
		}

		for idx, seg := range l.segments {
			if mode == BackupRotating && l.active != nil && idx == l.active.index {
				continue
			}
			data := make([]byte, seg.size)
			if _, err := seg.file.ReadAt(data, 0); err != nil && seg.size > 0 {
				return fmt.Errorf("redo: read segment %d for backup: %w", idx, err)
			}
			key := make([]byte, 8)
			binary.LittleEndian.PutUint64(key, uint64(idx))
			if err := segBucket.Put(key, data); err != nil {
				return fmt.Errorf("redo: write segment %d to backup: %w", idx, err)
			}
		}
		return nil
	})
}

// Restore rebuilds a log directory from a bbolt backup produced by Backup,
// then reopens it. The destination directory must not already contain
// segment files for chainName.
func Restore(backupPath string, cfg Config) (*RedoLog, error) {
	db, err := bolt.Open(backupPath, 0o600, &bolt.Options{Timeout: 1 * time.Second, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("redo: open backup file: %w", err)
	}
	defer db.Close()

	var header []byte
	segments := map[int][]byte{}

	err = db.View(func(tx *bolt.Tx) error {
		metaB := tx.Bucket([]byte(metaBucket))
		if metaB == nil {
			return fmt.Errorf("redo: backup missing %s bucket", metaBucket)
		}
		header = append([]byte(nil), metaB.Get([]byte("header"))...)

		segBucket := tx.Bucket([]byte(segmentsBucket))
		if segBucket == nil {
			return fmt.Errorf("redo: backup missing %s bucket", segmentsBucket)
		}
		return segBucket.ForEach(func(k, v []byte) error {
			idx := int(binary.LittleEndian.Uint64(k))
			segments[idx] = append([]byte(nil), v...)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	l, err := Open(cfg, header)
	if err != nil {
		return nil, err
	}
	// Open already created segment 0 with the header written; overwrite its
	// contents with the restored bytes for every segment, rebuilding the
	// location index from the restored frames.
	if err := l.Destroy(); err != nil {
		return nil, fmt.Errorf("redo: restore: clear fresh log: %w", err)
	}
	if err := writeRestoredSegments(cfg, segments); err != nil {
		return nil, err
	}
	return Open(cfg, header)
}

func writeRestoredSegments(cfg Config, segments map[int][]byte) error {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("redo: restore: recreate log dir: %w", err)
	}
	for idx, data := range segments {
		seg, err := openSegment(cfg.Dir, cfg.ChainName, idx)
		if err != nil {
			return fmt.Errorf("redo: restore: open segment %d: %w", idx, err)
		}
		if _, err := seg.file.WriteAt(data, 0); err != nil {
			seg.close()
			return fmt.Errorf("redo: restore: write segment %d: %w", idx, err)
		}
		if err := seg.file.Sync(); err != nil {
			seg.close()
			return fmt.Errorf("redo: restore: fsync segment %d: %w", idx, err)
		}
		seg.close()
	}
	return nil
}
