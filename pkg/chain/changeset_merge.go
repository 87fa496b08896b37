package chain

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Append overlays other on top of cs and returns the combined diff: other
// wins on any checkpoint height or txid the two disagree about, and the
// (purely additive) TxGraph content is unioned. This is what lets a caller
// merge several changesets produced over time into one before persisting
// or applying them, per the monotonicity law of the append-only changeset
// log: applying a.Append(b) must equal applying a then b in sequence.
func (cs ChangeSet) Append(other ChangeSet) ChangeSet {
	out := ChangeSet{
		Chain: SparseChangeSet{
			Checkpoints: make(map[uint32]*chainhash.Hash, len(cs.Chain.Checkpoints)+len(other.Chain.Checkpoints)),
			Txids:       make(map[chainhash.Hash]*TxHeight, len(cs.Chain.Txids)+len(other.Chain.Txids)),
		},
		Graph: TxGraphAdditions{
			Txs:    make(map[chainhash.Hash]*wire.MsgTx, len(cs.Graph.Txs)+len(other.Graph.Txs)),
			TxOuts: make(map[wire.OutPoint]wire.TxOut, len(cs.Graph.TxOuts)+len(other.Graph.TxOuts)),
		},
	}

	for h, hash := range cs.Chain.Checkpoints {
		out.Chain.Checkpoints[h] = hash
	}
	for h, hash := range other.Chain.Checkpoints {
		out.Chain.Checkpoints[h] = hash
	}

	for txid, height := range cs.Chain.Txids {
		out.Chain.Txids[txid] = height
	}
	for txid, height := range other.Chain.Txids {
		out.Chain.Txids[txid] = height
	}

	for txid, tx := range cs.Graph.Txs {
		out.Graph.Txs[txid] = tx
	}
	for txid, tx := range other.Graph.Txs {
		out.Graph.Txs[txid] = tx
	}

	for op, txout := range cs.Graph.TxOuts {
		out.Graph.TxOuts[op] = txout
	}
	for op, txout := range other.Graph.TxOuts {
		out.Graph.TxOuts[op] = txout
	}

	return out
}
