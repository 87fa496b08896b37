package chain

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Tx returns the full transaction for txid if the underlying TxGraph
// knows its content, whether or not that txid currently has a chain
// position (e.g. a coinbase parent of a UTXO being inspected).
func (cg *ChainGraph) Tx(txid chainhash.Hash) (*wire.MsgTx, bool) {
	return cg.graph.Tx(txid)
}

// Chain returns the underlying SparseChain. Mutating it directly bypasses
// ChainGraph's cross-invariant checks; callers outside this package should
// prefer InsertTx/InsertCheckpoint/ApplyUpdate, and use this accessor only
// for read-only queries (LatestCheckpoint, iteration, ...).
func (cg *ChainGraph) Chain() *SparseChain {
	return cg.chain
}

// Graph returns the underlying TxGraph, for the same read-mostly reason as
// Chain.
func (cg *ChainGraph) Graph() *TxGraph {
	return cg.graph
}

// LatestCheckpoint returns the highest known checkpoint, if any.
func (cg *ChainGraph) LatestCheckpoint() (BlockId, bool) {
	return cg.chain.LatestCheckpoint()
}
