package chain

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// TxGraph is a content-addressed store of transactions and their outputs.
// It tracks, for every outpoint, the full set of transactions observed
// spending it (its "multi-spender set") — a single outpoint may have more
// than one known spender at once, e.g. two competing mempool transactions
// or a transaction and its pre-reorg replacement. Conflict resolution
// (deciding which spender, if any, is the "real" one) is ChainGraph's job,
// not TxGraph's: TxGraph only ever accumulates, it never evicts.
type TxGraph struct {
	txs    map[chainhash.Hash]*wire.MsgTx
	txouts map[wire.OutPoint]wire.TxOut
	spends map[wire.OutPoint]map[chainhash.Hash]struct{}
}

// NewTxGraph returns an empty TxGraph.
func NewTxGraph() *TxGraph {
	return &TxGraph{
		txs:    make(map[chainhash.Hash]*wire.MsgTx),
		txouts: make(map[wire.OutPoint]wire.TxOut),
		spends: make(map[wire.OutPoint]map[chainhash.Hash]struct{}),
	}
}

// InsertTx records a full transaction. Returns true if it was not already
// known. Also records every output it creates and registers it as a
// spender of every outpoint it consumes.
func (g *TxGraph) InsertTx(tx *wire.MsgTx) bool {
	txid := tx.TxHash()
	if _, ok := g.txs[txid]; ok {
		return false
	}
	g.txs[txid] = tx.Copy()

	// The tx's own outputs are now resolvable via g.txs; any floating
	// entries txouts held for them become redundant and are dropped so an
	// outpoint is never recorded in both maps at once.
	for i := range tx.TxOut {
		delete(g.txouts, wire.OutPoint{Hash: txid, Index: uint32(i)})
	}
	for _, in := range tx.TxIn {
		g.addSpend(in.PreviousOutPoint, txid)
	}
	return true
}

// InsertTxOut records a single output without the owning transaction
// (a "floating" txout), useful when only the spend side of a transaction
// is relevant. Returns true if the output was not already known — either
// as a floating output or as part of an already-stored full transaction.
func (g *TxGraph) InsertTxOut(op wire.OutPoint, txout wire.TxOut) bool {
	if _, ok := g.txouts[op]; ok {
		return false
	}
	if tx, ok := g.txs[op.Hash]; ok && int(op.Index) < len(tx.TxOut) {
		return false
	}
	g.txouts[op] = txout
	return true
}

func (g *TxGraph) addSpend(op wire.OutPoint, spender chainhash.Hash) {
	set, ok := g.spends[op]
	if !ok {
		set = make(map[chainhash.Hash]struct{})
		g.spends[op] = set
	}
	set[spender] = struct{}{}
}

// Tx returns the full transaction for txid, if known.
func (g *TxGraph) Tx(txid chainhash.Hash) (*wire.MsgTx, bool) {
	tx, ok := g.txs[txid]
	return tx, ok
}

// TxOut returns the output at op, whether recorded directly or as part of
// a stored full transaction.
func (g *TxGraph) TxOut(op wire.OutPoint) (wire.TxOut, bool) {
	if out, ok := g.txouts[op]; ok {
		return out, true
	}
	if tx, ok := g.txs[op.Hash]; ok && int(op.Index) < len(tx.TxOut) {
		return *tx.TxOut[op.Index], true
	}
	return wire.TxOut{}, false
}

// Outspend returns the set of txids known to spend op. The returned map
// is a defensive copy.
func (g *TxGraph) Outspend(op wire.OutPoint) map[chainhash.Hash]struct{} {
	set, ok := g.spends[op]
	if !ok {
		return nil
	}
	out := make(map[chainhash.Hash]struct{}, len(set))
	for txid := range set {
		out[txid] = struct{}{}
	}
	return out
}

// ForEachTxOut calls fn for every floating output (one recorded via
// InsertTxOut without its owning transaction). Outputs of stored full
// transactions are not visited. Iteration order is unspecified.
func (g *TxGraph) ForEachTxOut(fn func(op wire.OutPoint, out wire.TxOut)) {
	for op, out := range g.txouts {
		fn(op, out)
	}
}

// AllTxids returns every transaction id known to this graph.
func (g *TxGraph) AllTxids() []chainhash.Hash {
	out := make([]chainhash.Hash, 0, len(g.txs))
	for txid := range g.txs {
		out = append(out, txid)
	}
	return out
}
