// Package chain implements ChainOfTrust: the object that binds a RedoLog,
// a Timeline, and a Pipeline under one chain key, exposing a single-writer
// / multi-reader view over them and performing compaction. It is the one
// place the whole core comes together; everything else in this
// module is a layer Chain assembles (redo, timeline, pipeline, mesh) or a
// layer built on top of it (dio).
package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chainvault/chainvault/chainerr"
	"github.com/chainvault/chainvault/clock"
	"github.com/chainvault/chainvault/cryptography"
	"github.com/chainvault/chainvault/engine"
	"github.com/chainvault/chainvault/logging"
	"github.com/chainvault/chainvault/mesh"
	"github.com/chainvault/chainvault/meta"
	"github.com/chainvault/chainvault/pipeline"
	"github.com/chainvault/chainvault/redo"
	"github.com/chainvault/chainvault/timeline"
)

// Chain holds its full identity and runtime state: key (name), node id,
// default message format, inside_sync (short-locked shared metadata), inside_async
// (the RedoLog + Timeline), a pipe reference, a TimeSource, an exit
// broadcast, a decache broadcast, metrics, and throttle.
type Chain struct {
	name   string
	nodeID string

	insideSync sync.RWMutex
	pipe       *pipeline.Pipeline

	insideAsync sync.RWMutex
	log         *redo.RedoLog
	timeline    *timeline.Timeline

	codec         meta.Codec
	rootKeys      []cryptography.Hash
	defaultFormat meta.Format
	clockSource   clock.Source
	pool          *engine.Pool
	acknowledger  mesh.Acknowledger

	backupMode redo.BackupMode
	backupPath string

	metrics  *Metrics
	throttle *Throttle

	exit         chan struct{}
	exitOnce     sync.Once
	decache      *decacheHub
	shutdownOnce sync.Once

	logger *logging.ContextLogger
}

// Name returns the chain's key. Never suspends.
func (c *Chain) Name() string { return c.name }

// DefaultFormat returns the body wire format this chain was configured
// with. Never suspends.
func (c *Chain) DefaultFormat() meta.Format {
	c.insideSync.RLock()
	defer c.insideSync.RUnlock()
	return c.defaultFormat
}

// Metrics returns the chain's counter block. Never suspends.
func (c *Chain) Metrics() *Metrics { return c.metrics }

// Throttle returns the chain's contention gauge. Never suspends.
func (c *Chain) Throttle() *Throttle { return c.throttle }

// Done returns the chain's exit broadcast, closed once on Shutdown. Tasks
// running on the chain's pool select on this alongside their own context
// to notice a chain-wide shutdown.
func (c *Chain) Done() <-chan struct{} { return c.exit }

// Transformers returns the pipeline's configured body transformers, read
// under inside_sync since the pipe head is metadata. Used by dio to invert
// a stored body on load.
func (c *Chain) Transformers() []pipeline.Transformer {
	return c.pipeHead().Transformers
}

// Feed runs a single event through the pipeline and appends it, under the
// exclusive write phase. It is a suspension point: ctx cancellation is
// observed at the engine.Pool boundary.
func (c *Chain) Feed(ctx context.Context, sess pipeline.Session, header meta.Header, body []byte) (redo.Location, error) {
	var loc redo.Location
	err := c.pool.Do(ctx, func(ctx context.Context) error {
		c.insideAsync.Lock()
		defer c.insideAsync.Unlock()

		var ferr error
		loc, ferr = c.pipeHead().Feed(ctx, sess, c.log, c.codec, header, body)
		if ferr != nil {
			c.metrics.RecordReject(rejectStage(ferr))
			return ferr
		}
		c.metrics.RecordAppend()
		c.decache.broadcast(header.Key)
		return nil
	})
	return loc, err
}

// FeedBatch runs a batch of events through the pipeline as one atomic
// commit: every event clears lint/transform/plugins/validation before any
// of them is appended. It returns each event's durable Location alongside
// its fully-linted Work (headers now carrying timestamp/author/signature
// facets), so a caller at Full transaction scope can compute the final
// header hash to hand to an Acknowledger.
func (c *Chain) FeedBatch(ctx context.Context, sess pipeline.Session, works []pipeline.Work) ([]redo.Location, []pipeline.Work, error) {
	var locs []redo.Location
	var linted []pipeline.Work
	err := c.pool.Do(ctx, func(ctx context.Context) error {
		c.insideAsync.Lock()
		defer c.insideAsync.Unlock()

		var ferr error
		locs, linted, ferr = c.pipeHead().FeedBatch(ctx, sess, c.log, c.codec, works)
		if ferr != nil {
			var ce *chainerr.CommitError
			if errors.As(ferr, &ce) {
				for range ce.Validation {
					c.metrics.RecordReject("commit")
				}
			} else {
				c.metrics.RecordReject("commit")
			}
			return ferr
		}
		c.metrics.RecordCommit()
		for _, w := range linted {
			c.decache.broadcast(w.Header.Key)
		}
		return nil
	})
	return locs, linted, err
}

// Acknowledge waits for mesh durability confirmation of every event in
// works, used at dio.ScopeFull after Flush. The default NopAcknowledger
// (nil Acknowledger configured) returns immediately.
func (c *Chain) Acknowledge(ctx context.Context, works []pipeline.Work) error {
	if c.acknowledger == nil {
		return nil
	}
	for _, w := range works {
		hash, err := meta.HeaderHash(w.Header.Key, w.Header.Metadata)
		if err != nil {
			return fmt.Errorf("chain: acknowledge: header hash: %w", err)
		}
		if err := c.acknowledger.Acknowledge(ctx, [32]byte(hash)); err != nil {
			return fmt.Errorf("chain: acknowledge: %w", err)
		}
	}
	return nil
}

// Flush fsyncs the RedoLog under the exclusive write phase.
func (c *Chain) Flush(ctx context.Context) error {
	return c.pool.Do(ctx, func(context.Context) error {
		c.insideAsync.Lock()
		defer c.insideAsync.Unlock()
		return c.log.Flush()
	})
}

// Sync rebuilds the Timeline from the durable log: invalidates every
// cached lookup and replays plugins, validators, and indexers against
// every stored record. Used after Build's initial open and after Restore.
func (c *Chain) Sync(ctx context.Context) error {
	return c.pool.Do(ctx, func(ctx context.Context) error {
		c.insideAsync.Lock()
		defer c.insideAsync.Unlock()
		c.timeline.InvalidateCaches()
		if err := c.pipeHead().Replay(ctx, c.log, c.codec); err != nil {
			return fmt.Errorf("chain: sync: replay: %w", err)
		}
		c.metrics.RecordReplay()
		return nil
	})
}

// Compact runs the pipeline's configured compactors against the whole log
// and rewrites it to keep only the survivors, then rebuilds the Timeline
// from the compacted log.
func (c *Chain) Compact(ctx context.Context) error {
	return c.pool.Do(ctx, func(ctx context.Context) error {
		c.insideAsync.Lock()
		defer c.insideAsync.Unlock()
		if err := c.pipeHead().Compact(ctx, c.log, c.codec); err != nil {
			return fmt.Errorf("chain: compact: %w", err)
		}
		c.metrics.RecordCompaction()
		c.timeline.InvalidateCaches()
		// Every surviving event already passed the plugins when it was
		// first fed, and AntiReplay still holds its hash, so the rebuild
		// runs validators and indexers only.
		rebuild := *c.pipeHead()
		rebuild.Plugins = nil
		if err := rebuild.Replay(ctx, c.log, c.codec); err != nil {
			return fmt.Errorf("chain: compact: rebuild timeline: %w", err)
		}
		return nil
	})
}

// Count returns the number of data records currently in the RedoLog.
func (c *Chain) Count() int {
	c.insideAsync.RLock()
	defer c.insideAsync.RUnlock()
	return c.log.Count()
}

// Shutdown is idempotent: it fires the exit broadcast, performs a final
// backup if the chain was configured for Full or Rotating backup mode, and
// stops the task engine. Backup failures are reported but never prevent
// shutdown from completing, per the error propagation policy.
func (c *Chain) Shutdown(ctx context.Context) error {
	var shutdownErr error
	c.shutdownOnce.Do(func() {
		c.exitOnce.Do(func() { close(c.exit) })

		shutdownErr = c.pool.Do(ctx, func(context.Context) error {
			c.insideAsync.Lock()
			defer c.insideAsync.Unlock()
			if c.backupMode == redo.BackupFull || c.backupMode == redo.BackupRotating {
				if err := c.log.Backup(c.backupPath, c.backupMode); err != nil {
					c.logger.WithError(err).Warn("final backup failed during shutdown")
				}
			}
			return nil
		})
		c.pool.Stop()
		if c.acknowledger != nil {
			if err := c.acknowledger.Close(); err != nil {
				c.logger.WithError(err).Warn("acknowledger close failed during shutdown")
			}
		}
	})
	return shutdownErr
}

func rejectStage(err error) string {
	var ve *chainerr.ValidationError
	if errors.As(err, &ve) && ve.Stage != "" {
		return ve.Stage
	}
	return "commit"
}

// decacheHub is the lossy decache broadcast: a cache miss from a dropped
// message costs a reader one extra load, never correctness, matching the
// "broadcasts are lossy" shared-resource policy.
type decacheHub struct {
	mu   sync.Mutex
	next int
	subs map[int]chan meta.PrimaryKey
}

func newDecacheHub() *decacheHub {
	return &decacheHub{subs: make(map[int]chan meta.PrimaryKey)}
}

// Subscribe registers a new listener and returns its id (for Unsubscribe)
// and receive channel.
func (h *decacheHub) Subscribe() (int, <-chan meta.PrimaryKey) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan meta.PrimaryKey, 16)
	h.subs[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a listener's channel.
func (h *decacheHub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		close(ch)
		delete(h.subs, id)
	}
}

func (h *decacheHub) broadcast(key meta.PrimaryKey) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- key:
		default:
		}
	}
}

// Subscribe exposes the chain's decache broadcast to external cache
// layers (e.g. a process hosting multiple DIOs that want to invalidate
// their own read caches on every commit, not just the one that produced
// it).
func (c *Chain) Subscribe() (int, <-chan meta.PrimaryKey) { return c.decache.Subscribe() }

// Unsubscribe removes a listener registered with Subscribe.
func (c *Chain) Unsubscribe(id int) { c.decache.Unsubscribe(id) }
