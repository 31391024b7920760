package chain

import (
	"time"

	"github.com/chainvault/chainvault/meta"
)

// Preset selects one of ChainBuilder's canned pipeline configurations.
type Preset int

const (
	// Raw: no defaults, no validators, no compactors. Every facet of the
	// pipeline is left for the caller to assemble by hand.
	Raw Preset = iota
	// Barebone: a rubber-stamp validator; no tree authority; no timestamp
	// enforcement.
	Barebone
	// BestPerformance: default validators and tree authority, 2000ms
	// timestamp tolerance, Bincode for both metadata and body.
	BestPerformance
	// BestCompatibility: Json for both metadata and body.
	BestCompatibility
	// Balanced is the default: Bincode metadata, Json body, compression
	// enabled, 500ms timestamp tolerance.
	Balanced
	// SmallestSize: as Balanced, with compression enabled (redundant with
	// Balanced's default, kept distinct since a future body format change
	// may decouple the two).
	SmallestSize
	// BestSecurity: as Balanced, with a tightened 200ms timestamp
	// tolerance.
	BestSecurity
)

// presetConfig is the resolved tuning a Preset expands to, before any
// explicit ChainBuilder option overrides it.
type presetConfig struct {
	timeTolerance     time.Duration
	metaFormat        meta.Format
	dataFormat        meta.Format
	compression       bool
	rubberStamp       bool
	treeAuthority     bool
	timestampEnforced bool
}

func resolvePreset(p Preset) presetConfig {
	balanced := presetConfig{
		timeTolerance:     500 * time.Millisecond,
		metaFormat:        meta.Bincode,
		dataFormat:        meta.Json,
		compression:       true,
		treeAuthority:     true,
		timestampEnforced: true,
	}
	switch p {
	case Raw:
		return presetConfig{metaFormat: meta.Bincode, dataFormat: meta.Bincode}
	case Barebone:
		return presetConfig{
			metaFormat:  meta.Bincode,
			dataFormat:  meta.Bincode,
			rubberStamp: true,
		}
	case BestPerformance:
		return presetConfig{
			timeTolerance:     2000 * time.Millisecond,
			metaFormat:        meta.Bincode,
			dataFormat:        meta.Bincode,
			treeAuthority:     true,
			timestampEnforced: true,
		}
	case BestCompatibility:
		cfg := balanced
		cfg.metaFormat = meta.Json
		cfg.dataFormat = meta.Json
		return cfg
	case SmallestSize:
		cfg := balanced
		cfg.compression = true
		return cfg
	case BestSecurity:
		cfg := balanced
		cfg.timeTolerance = 200 * time.Millisecond
		return cfg
	case Balanced:
		return balanced
	default:
		return balanced
	}
}
