package pipeline

import (
	"context"
	"fmt"

	"github.com/chainvault/chainvault/chainerr"
	"github.com/chainvault/chainvault/meta"
	"github.com/chainvault/chainvault/redo"
)

// Pipeline holds one chain's ordered stage lists and is the single entry
// point ("pipe.feed") through which every mutation flows, whether it
// originates from a local DIO commit or a replication receiver.
type Pipeline struct {
	Linters      []Linter
	Transformers []Transformer
	Plugins      []Plugin
	Validators   []Validator
	Indexers     []Indexer
	Compactors   []Compactor
}

// Feed runs one event through the full write-path: lint, transform,
// plugins, validate, append to log, index. It returns the event's durable
// Location on success, or a *chainerr.CommitError describing why the
// pipeline rejected it.
func (p *Pipeline) Feed(ctx context.Context, sess Session, log *redo.RedoLog, codec meta.Codec, header meta.Header, body []byte) (redo.Location, error) {
	w := Work{Header: header, Body: append([]byte(nil), body...)}

	for _, l := range p.Linters {
		if err := l.Lint(ctx, sess, &w); err != nil {
			return redo.Location{}, chainerr.NewCommitIOError(fmt.Errorf("pipeline: lint: %w", err))
		}
	}

	for _, tr := range p.Transformers {
		if err := tr.Transform(ctx, sess, &w); err != nil {
			return redo.Location{}, chainerr.NewCommitIOError(fmt.Errorf("%w: %v", chainerr.ErrTransformation, err))
		}
	}

	for _, pl := range p.Plugins {
		if err := pl.Feed(ctx, w); err != nil {
			return redo.Location{}, chainerr.NewCommitError([]*chainerr.ValidationError{
				{Stage: "plugin", Cause: fmt.Errorf("%w: %v", chainerr.ErrDenied, err)},
			})
		}
	}

	if verr := p.runValidators(ctx, w); verr != nil {
		return redo.Location{}, chainerr.NewCommitError([]*chainerr.ValidationError{verr})
	}

	metaBytes, err := meta.EncodeHeader(codec, w.Header)
	if err != nil {
		return redo.Location{}, chainerr.NewCommitIOError(fmt.Errorf("pipeline: encode header: %w", err))
	}

	loc, err := log.Append(metaBytes, w.Body)
	if err != nil {
		return redo.Location{}, chainerr.NewCommitIOError(fmt.Errorf("pipeline: append: %w", err))
	}

	for _, idx := range p.Indexers {
		if err := idx.Index(ctx, w, loc); err != nil {
			// Indexer failure is fatal to the chain process (programming
			// error, not input error), per the error-handling design.
			panic(fmt.Sprintf("pipeline: indexer failed after durable append: %v", err))
		}
	}

	return loc, nil
}

// FeedBatch runs a batch of events through lint, transform, plugins, and
// validation as one atomic unit: every event in works must clear every
// stage before any of them is appended, so a transaction is accepted or
// rejected as a whole rather than partially landing in the log. It
// returns each survivor's Location alongside its fully-linted Work.
//
// Plugin side effects (notably AntiReplay marking a header hash seen) run
// during the check pass, before any append: a batch that fails validation
// after checking its first events still leaves those hashes marked, so a
// byte-identical retry of the same failed batch also fails. This is
// conservative rather than strictly transactional, and safe by
// construction since a failed batch was never durable in the first place.
func (p *Pipeline) FeedBatch(ctx context.Context, sess Session, log *redo.RedoLog, codec meta.Codec, works []Work) ([]redo.Location, []Work, error) {
	linted := make([]Work, len(works))
	for i, w := range works {
		lw := Work{Header: w.Header, Body: append([]byte(nil), w.Body...)}
		for _, l := range p.Linters {
			if err := l.Lint(ctx, sess, &lw); err != nil {
				return nil, nil, chainerr.NewCommitIOError(fmt.Errorf("pipeline: lint: %w", err))
			}
		}
		for _, tr := range p.Transformers {
			if err := tr.Transform(ctx, sess, &lw); err != nil {
				return nil, nil, chainerr.NewCommitIOError(fmt.Errorf("%w: %v", chainerr.ErrTransformation, err))
			}
		}
		linted[i] = lw
	}

	var rejections []*chainerr.ValidationError
	for _, lw := range linted {
		for _, pl := range p.Plugins {
			if err := pl.Feed(ctx, lw); err != nil {
				rejections = append(rejections, &chainerr.ValidationError{
					Stage: "plugin", Cause: fmt.Errorf("%w: %v", chainerr.ErrDenied, err),
				})
			}
		}
		if verr := p.runValidators(ctx, lw); verr != nil {
			rejections = append(rejections, verr)
		}
	}
	if len(rejections) > 0 {
		return nil, nil, chainerr.NewCommitError(rejections)
	}

	locs := make([]redo.Location, len(linted))
	for i, lw := range linted {
		metaBytes, err := meta.EncodeHeader(codec, lw.Header)
		if err != nil {
			return nil, nil, chainerr.NewCommitIOError(fmt.Errorf("pipeline: encode header: %w", err))
		}
		loc, err := log.Append(metaBytes, lw.Body)
		if err != nil {
			return nil, nil, chainerr.NewCommitIOError(fmt.Errorf("pipeline: append: %w", err))
		}
		locs[i] = loc
		for _, idx := range p.Indexers {
			if err := idx.Index(ctx, lw, loc); err != nil {
				panic(fmt.Sprintf("pipeline: indexer failed after durable append: %v", err))
			}
		}
	}
	return locs, linted, nil
}

func (p *Pipeline) runValidators(ctx context.Context, w Work) *chainerr.ValidationError {
	if len(p.Validators) == 0 {
		return nil
	}
	sawAllow := false
	for _, v := range p.Validators {
		verdict, err := v.Validate(ctx, w)
		if err != nil {
			return &chainerr.ValidationError{Stage: "validator", Cause: err}
		}
		switch verdict {
		case Deny:
			return &chainerr.ValidationError{Stage: "validator", Cause: chainerr.ErrDenied}
		case Allow:
			sawAllow = true
		}
	}
	if !sawAllow {
		return &chainerr.ValidationError{Stage: "validator", Cause: chainerr.ErrDenied}
	}
	return nil
}

// Replay re-runs plugins and validators against every record already in
// log (deterministic replay), then feeds each surviving event to the
// indexers to rebuild the timeline. Transformers do not run here: bodies
// are inverted lazily at load time, not during replay of headers.
func (p *Pipeline) Replay(ctx context.Context, log *redo.RedoLog, codec meta.Codec) error {
	for _, loc := range log.Locations() {
		rec, err := log.Load(loc)
		if err != nil {
			return fmt.Errorf("pipeline: replay: load %+v: %w", loc, err)
		}
		header, err := meta.DecodeHeader(codec, rec.Meta)
		if err != nil {
			return fmt.Errorf("pipeline: replay: decode header: %w", err)
		}
		w := Work{Header: header, Body: rec.Data}

		rejected := false
		for _, pl := range p.Plugins {
			if err := pl.Feed(ctx, w); err != nil {
				rejected = true
				break
			}
		}
		if !rejected {
			if verr := p.runValidators(ctx, w); verr != nil {
				rejected = true
			}
		}
		if rejected {
			continue
		}

		for _, idx := range p.Indexers {
			if err := idx.Index(ctx, w, loc); err != nil {
				panic(fmt.Sprintf("pipeline: indexer failed during replay: %v", err))
			}
		}
	}
	return nil
}

// Compact runs every configured compactor against a snapshot of the
// current log, merges their decisions (Drop wins if any compactor drops an
// event), and rewrites the log to keep only the survivors. The caller is
// responsible for reconstructing the timeline afterwards (by invalidating
// caches and calling Replay again).
func (p *Pipeline) Compact(ctx context.Context, log *redo.RedoLog, codec meta.Codec) error {
	locations := log.Locations()
	events := make([]IndexedEvent, 0, len(locations))
	for _, loc := range locations {
		rec, err := log.Load(loc)
		if err != nil {
			return fmt.Errorf("pipeline: compact: load %+v: %w", loc, err)
		}
		header, err := meta.DecodeHeader(codec, rec.Meta)
		if err != nil {
			return fmt.Errorf("pipeline: compact: decode header: %w", err)
		}
		_, tombstoned := header.Metadata.Tombstone()
		events = append(events, IndexedEvent{Location: loc, Header: header, Tombstoned: tombstoned})
	}

	merged := make(map[redo.Location]CompactDecision, len(events))
	for _, ev := range events {
		merged[ev.Location] = Keep
	}
	for _, c := range p.Compactors {
		decisions := c.Decide(ctx, events)
		for loc, decision := range decisions {
			if decision == Drop {
				merged[loc] = Drop
			}
		}
	}

	keep := make([]redo.Location, 0, len(events))
	for _, ev := range events {
		if merged[ev.Location] == Keep {
			keep = append(keep, ev.Location)
		}
	}
	return log.Rewrite(keep)
}
