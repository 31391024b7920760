package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/chainvault/chainvault/clock"
	"github.com/chainvault/chainvault/cryptography"
	"github.com/chainvault/chainvault/engine"
	"github.com/chainvault/chainvault/logging"
	"github.com/chainvault/chainvault/mesh"
	"github.com/chainvault/chainvault/meta"
	"github.com/chainvault/chainvault/pipeline"
	"github.com/chainvault/chainvault/pipeline/compactors"
	"github.com/chainvault/chainvault/pipeline/indexers"
	"github.com/chainvault/chainvault/pipeline/linters"
	"github.com/chainvault/chainvault/pipeline/plugins"
	"github.com/chainvault/chainvault/pipeline/transformers"
	"github.com/chainvault/chainvault/pipeline/validators"
	"github.com/chainvault/chainvault/redo"
	"github.com/chainvault/chainvault/timeline"
)

// ChainBuilder assembles a Chain: it opens (or creates) the backing
// RedoLog, configures the pipeline according to a Preset, and layers any
// explicit option overrides on top before handing back a ready-to-use
// Chain.
type ChainBuilder struct {
	name   string
	dir    string
	preset Preset
	cfg    presetConfig

	nodeID       string
	trustedKey   *cryptography.PublicSignKey
	rootKey      *cryptography.PublicSignKey
	clockSource  clock.Source
	pool         *engine.Pool
	acknowledger mesh.Acknowledger
	dedupStore   mesh.DedupStore
	maxSegment   int64
	backupMode   redo.BackupMode
	backupPath   string
	logger       *logging.ContextLogger

	timeToleranceOverride *time.Duration
}

// NewChainBuilder starts a builder for a chain named name, stored under
// dir, configured per preset.
func NewChainBuilder(name, dir string, preset Preset) *ChainBuilder {
	return &ChainBuilder{
		name:   name,
		dir:    dir,
		preset: preset,
		cfg:    resolvePreset(preset),
	}
}

func (b *ChainBuilder) WithNodeID(id string) *ChainBuilder { b.nodeID = id; return b }

func (b *ChainBuilder) WithTimeTolerance(d time.Duration) *ChainBuilder {
	b.timeToleranceOverride = &d
	return b
}

// WithTrustedKey pins validator verification to a single known public key
// instead of trusting whatever key an event embeds.
func (b *ChainBuilder) WithTrustedKey(k cryptography.PublicSignKey) *ChainBuilder {
	b.trustedKey = &k
	return b
}

// WithRootKey records k as this chain's root signer in the chain header.
func (b *ChainBuilder) WithRootKey(k cryptography.PublicSignKey) *ChainBuilder {
	b.rootKey = &k
	return b
}

func (b *ChainBuilder) WithClock(c clock.Source) *ChainBuilder { b.clockSource = c; return b }

func (b *ChainBuilder) WithPool(p *engine.Pool) *ChainBuilder { b.pool = p; return b }

func (b *ChainBuilder) WithAcknowledger(a mesh.Acknowledger) *ChainBuilder {
	b.acknowledger = a
	return b
}

func (b *ChainBuilder) WithDedupStore(s mesh.DedupStore) *ChainBuilder { b.dedupStore = s; return b }

func (b *ChainBuilder) WithMaxSegmentBytes(n int64) *ChainBuilder { b.maxSegment = n; return b }

func (b *ChainBuilder) WithBackup(mode redo.BackupMode, path string) *ChainBuilder {
	b.backupMode = mode
	b.backupPath = path
	return b
}

func (b *ChainBuilder) WithLogger(l *logging.ContextLogger) *ChainBuilder { b.logger = l; return b }

// WithSerialization overrides the preset's metadata/body formats.
func (b *ChainBuilder) WithSerialization(metaFormat, bodyFormat meta.Format) *ChainBuilder {
	b.cfg.metaFormat = metaFormat
	b.cfg.dataFormat = bodyFormat
	return b
}

func (b *ChainBuilder) resolveTolerance() time.Duration {
	if b.timeToleranceOverride != nil {
		return *b.timeToleranceOverride
	}
	return b.cfg.timeTolerance
}

// Build opens the chain's RedoLog, replays it into a fresh Timeline, and
// assembles the pipeline the Preset (plus any option overrides) describes.
func (b *ChainBuilder) Build() (*Chain, error) {
	if b.name == "" {
		return nil, fmt.Errorf("chain: builder: name is required")
	}

	src := b.clockSource
	if src == nil {
		src = clock.SystemTimeSource{}
	}
	logger := b.logger
	if logger == nil {
		logger = logging.Nop()
	}
	pool := b.pool
	if pool == nil {
		pool = engine.NewPool(engine.DefaultConfig())
	}

	metaCodec, err := meta.NewCodec(b.cfg.metaFormat)
	if err != nil {
		return nil, fmt.Errorf("chain: builder: meta codec: %w", err)
	}

	headerBytes, err := buildChainHeader(b.name, b.cfg, b.rootKey)
	if err != nil {
		return nil, err
	}

	log, err := redo.Open(redo.Config{
		Dir:             b.dir,
		ChainName:       b.name,
		MaxSegmentBytes: b.maxSegment,
	}, headerBytes)
	if err != nil {
		return nil, fmt.Errorf("chain: builder: open log: %w", err)
	}

	parsedHeader, err := parseChainHeader(log.Header())
	if err != nil {
		return nil, err
	}

	tl := timeline.New()

	c := &Chain{
		name:          b.name,
		nodeID:        b.nodeID,
		defaultFormat: b.cfg.dataFormat,
		log:           log,
		timeline:      tl,
		codec:         metaCodec,
		rootKeys:      parsedHeader.RootKeys,
		clockSource:   src,
		pool:          pool,
		acknowledger:  b.acknowledger,
		backupMode:    b.backupMode,
		backupPath:    b.backupPath,
		metrics:       NewMetrics(),
		throttle:      NewThrottle(),
		exit:          make(chan struct{}),
		decache:       newDecacheHub(),
		logger:        logger.WithFields(logging.Fields{"chain": b.name}),
	}
	c.pipe = b.buildPipeline(c, tl, src)

	if err := c.Sync(context.Background()); err != nil {
		return nil, fmt.Errorf("chain: builder: initial sync: %w", err)
	}

	return c, nil
}

func (b *ChainBuilder) buildPipeline(c *Chain, tl *timeline.Timeline, src clock.Source) *pipeline.Pipeline {
	p := &pipeline.Pipeline{
		Indexers: []pipeline.Indexer{indexers.TimelineIndexer{Timeline: tl}},
	}

	if b.preset == Raw {
		return p
	}

	p.Linters = []pipeline.Linter{
		linters.TimestampLinter{Clock: src},
		linters.AuthorLinter{},
		linters.PublicKeyLinter{},
		linters.EncryptionKeyLinter{},
	}

	if b.cfg.compression {
		p.Transformers = append(p.Transformers, transformers.CompressionTransformer{})
	}
	// EncryptionTransformer is always wired in for every non-Raw preset: it
	// is a no-op for any commit whose Session carries no BodyKey, so its
	// presence costs nothing for plaintext chains and makes encryption a
	// per-commit Session choice rather than a whole-chain one.
	p.Transformers = append(p.Transformers, transformers.EncryptionTransformer{})

	dedup := b.dedupStore
	if dedup == nil {
		dedup = mesh.NewMemoryDedupStore()
	}
	p.Plugins = []pipeline.Plugin{
		&plugins.AntiReplay{Store: dedup, IsTombstoned: tl.IsTombstoned},
	}
	if b.cfg.timestampEnforced {
		p.Plugins = append(p.Plugins, plugins.TimestampEnforcer{Clock: src, Tolerance: b.resolveTolerance()})
	}
	if b.cfg.treeAuthority {
		p.Plugins = append(p.Plugins, plugins.TreeAuthority{Lookup: &authorityLookup{c: c}})
	}

	// Signature must cover every other facet, so it lints last.
	p.Linters = append(p.Linters, linters.SignatureLinter{})

	if b.cfg.rubberStamp {
		p.Validators = []pipeline.Validator{validators.RubberStamp{}}
	} else {
		p.Validators = []pipeline.Validator{validators.SignatureValidator{TrustedKey: b.trustedKey}}
	}

	p.Compactors = []pipeline.Compactor{compactors.Tombstone{}, compactors.RemoveDuplicates{}}

	return p
}
