// Package chain implements the layered chain-state engine: a checkpoint
// ledger (SparseChain), a content-addressed transaction/output store
// (TxGraph), and their composition with conflict resolution (ChainGraph).
package chain

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// BlockId identifies a block by height and hash.
type BlockId struct {
	Height uint32
	Hash   chainhash.Hash
}

func (b BlockId) String() string {
	return fmt.Sprintf("%s @ %d", b.Hash, b.Height)
}

// blockIdOpt formats an optional BlockId the way the reference
// implementation formats Option<BlockId>.
func blockIdOpt(b *BlockId) string {
	if b == nil {
		return "None"
	}
	return b.String()
}
