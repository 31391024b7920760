package chain

import (
	"encoding/json"
	"fmt"

	"github.com/chainvault/chainvault/chainerr"
	"github.com/chainvault/chainvault/cryptography"
)

// ChainHeader is the chain-wide preamble stored as the RedoLog's first
// record: a hash identifying the configuration the chain was created
// with, and the fingerprints of its root signing keys.
type ChainHeader struct {
	CfgHash  cryptography.Hash   `json:"cfg_hash"`
	RootKeys []cryptography.Hash `json:"root_keys"`
}

func buildChainHeader(name string, cfg presetConfig, rootKey *cryptography.PublicSignKey) ([]byte, error) {
	cfgInput := fmt.Sprintf("%s|%s|%s|%s|%v", name, cfg.metaFormat, cfg.dataFormat, cfg.timeTolerance, cfg.compression)
	h := ChainHeader{CfgHash: cryptography.HashOf([]byte(cfgInput))}
	if rootKey != nil {
		h.RootKeys = []cryptography.Hash{rootKey.Hash()}
	}
	out, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("chain: encode chain header: %w", err)
	}
	return out, nil
}

func parseChainHeader(raw []byte) (ChainHeader, error) {
	var h ChainHeader
	if err := json.Unmarshal(raw, &h); err != nil {
		return ChainHeader{}, fmt.Errorf("%w: %v", chainerr.ErrHeaderCorrupt, err)
	}
	return h, nil
}
