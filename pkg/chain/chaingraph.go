package chain

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// ChainGraph composes a SparseChain with a TxGraph and, when an update
// is determined or applied, enforces the one cross-invariant neither
// component can enforce alone: no two
// transactions may both be confirmed and spend the same output (a
// confirmed chain admits at most one spender per outpoint; conflicts
// among unconfirmed or about-to-be-invalidated spenders are resolved
// automatically when an update is applied).
type ChainGraph struct {
	chain *SparseChain
	graph *TxGraph
}

// NewChainGraph returns an empty ChainGraph.
func NewChainGraph() *ChainGraph {
	return &ChainGraph{chain: NewSparseChain(), graph: NewTxGraph()}
}

// InsertCheckpoint records a checkpoint directly. Returns false (no error)
// if the identical checkpoint was already present. Returns an error if a
// different hash is already recorded at that height — resolving that
// conflict is what DetermineChangeset/ApplyUpdate are for.
func (cg *ChainGraph) InsertCheckpoint(id BlockId) (bool, error) {
	if existing, ok := cg.chain.CheckpointAt(id.Height); ok {
		if existing.Hash == id.Hash {
			return false, nil
		}
		return false, fmt.Errorf("checkpoint conflict at height %d: have %s, got %s", id.Height, existing.Hash, id.Hash)
	}
	cg.chain.checkpoints[id.Height] = id.Hash
	return true, nil
}

// InsertTx records a transaction's full content and its chain position.
// Returns an error if txid is already tracked at a different position.
// Its inputs are not checked against other confirmed spenders; that
// check is made only by DetermineChangeset/ApplyUpdate.
func (cg *ChainGraph) InsertTx(tx *wire.MsgTx, height TxHeight) (bool, error) {
	txid := tx.TxHash()
	if existing, ok := cg.positionOf(txid); ok && existing.Compare(height) != 0 {
		return false, fmt.Errorf("tx %s already tracked at %s, cannot also be %s", txid, existing, height)
	}
	inserted := cg.graph.InsertTx(tx)
	cg.setPosition(txid, height)
	return inserted, nil
}

// InsertTxOut records a single output without its owning transaction.
func (cg *ChainGraph) InsertTxOut(op wire.OutPoint, txout wire.TxOut) bool {
	return cg.graph.InsertTxOut(op, txout)
}

func (cg *ChainGraph) positionOf(txid chainhash.Hash) (TxHeight, bool) {
	return cg.chain.TransactionHeight(txid)
}

func (cg *ChainGraph) setPosition(txid chainhash.Hash, height TxHeight) {
	if h, confirmed := height.Height(); confirmed {
		set, ok := cg.chain.txidByHeight[h]
		if !ok {
			set = make(map[chainhash.Hash]struct{})
			cg.chain.txidByHeight[h] = set
		}
		set[txid] = struct{}{}
		cg.chain.txidToHeight[txid] = h
		delete(cg.chain.mempool, txid)
	} else {
		cg.chain.mempool[txid] = struct{}{}
	}
}

func (cg *ChainGraph) removePosition(txid chainhash.Hash) {
	if h, ok := cg.chain.txidToHeight[txid]; ok {
		delete(cg.chain.txidToHeight, txid)
		if set, ok := cg.chain.txidByHeight[h]; ok {
			delete(set, txid)
			if len(set) == 0 {
				delete(cg.chain.txidByHeight, h)
			}
		}
	}
	delete(cg.chain.mempool, txid)
}

// SpentBy returns the height and txid of the in-chain transaction that
// spends op, if any.
func (cg *ChainGraph) SpentBy(op wire.OutPoint) (TxHeight, chainhash.Hash, bool) {
	for txid := range cg.graph.Outspend(op) {
		if height, ok := cg.positionOf(txid); ok {
			return height, txid, true
		}
	}
	return TxHeight{}, chainhash.Hash{}, false
}

// GetTxInChain returns the position and transaction for txid, if both are
// known.
func (cg *ChainGraph) GetTxInChain(txid chainhash.Hash) (TxHeight, *wire.MsgTx, bool) {
	height, ok := cg.positionOf(txid)
	if !ok {
		return TxHeight{}, nil, false
	}
	tx, ok := cg.graph.Tx(txid)
	if !ok {
		return TxHeight{}, nil, false
	}
	return height, tx, true
}

// TxInChain pairs a transaction with its chain position.
type TxInChain struct {
	Height TxHeight
	Tx     *wire.MsgTx
}

// TransactionsInChain returns every fully-known transaction with a chain
// position, ordered by TxHeight (confirmed ascending, then unconfirmed).
func (cg *ChainGraph) TransactionsInChain() []TxInChain {
	var out []TxInChain
	for txid := range cg.chain.txidToHeight {
		if tx, ok := cg.graph.Tx(txid); ok {
			h, _ := cg.positionOf(txid)
			out = append(out, TxInChain{Height: h, Tx: tx})
		}
	}
	for txid := range cg.chain.mempool {
		if tx, ok := cg.graph.Tx(txid); ok {
			out = append(out, TxInChain{Height: Unconfirmed, Tx: tx})
		}
	}
	sortTxInChain(out)
	return out
}

func sortTxInChain(s []TxInChain) {
	for i := 1; i < len(s); i++ {
		j := i
		for j > 0 && s[j].Height.Compare(s[j-1].Height) < 0 {
			s[j], s[j-1] = s[j-1], s[j]
			j--
		}
	}
}

// FullTxOut resolves an outpoint using this graph's own TxGraph.
func (cg *ChainGraph) FullTxOut(op wire.OutPoint) (FullTxOut, bool) {
	return cg.chain.FullTxOut(cg.graph, op)
}

// SparseChangeSet is the diff of a SparseChain: checkpoint changes
// (nil value = removed) and txid position changes (nil value = evicted
// from chain position, i.e. no longer confirmed or mempool-tracked).
type SparseChangeSet struct {
	Checkpoints map[uint32]*chainhash.Hash
	Txids       map[chainhash.Hash]*TxHeight
}

func newSparseChangeSet() SparseChangeSet {
	return SparseChangeSet{
		Checkpoints: make(map[uint32]*chainhash.Hash),
		Txids:       make(map[chainhash.Hash]*TxHeight),
	}
}

func (s SparseChangeSet) isEmpty() bool {
	return len(s.Checkpoints) == 0 && len(s.Txids) == 0
}

// TxGraphAdditions is the diff of a TxGraph: content that wasn't known
// before. TxGraph never removes content, so there is no deletion side.
type TxGraphAdditions struct {
	Txs    map[chainhash.Hash]*wire.MsgTx
	TxOuts map[wire.OutPoint]wire.TxOut
}

func newTxGraphAdditions() TxGraphAdditions {
	return TxGraphAdditions{
		Txs:    make(map[chainhash.Hash]*wire.MsgTx),
		TxOuts: make(map[wire.OutPoint]wire.TxOut),
	}
}

func (a TxGraphAdditions) isEmpty() bool {
	return len(a.Txs) == 0 && len(a.TxOuts) == 0
}

// ChangeSet is the full diff produced by comparing a ChainGraph against a
// candidate update: the position/checkpoint side (Chain) and the content
// side (Graph).
type ChangeSet struct {
	Chain SparseChangeSet
	Graph TxGraphAdditions
}

// IsEmpty reports whether applying this ChangeSet would be a no-op.
func (cs ChangeSet) IsEmpty() bool {
	return cs.Chain.isEmpty() && cs.Graph.isEmpty()
}

// TxidHeight pairs a txid with its position, used in conflict errors.
type TxidHeight struct {
	Txid   chainhash.Hash
	Height TxHeight
}

// UnresolvableConflict is returned when an update would conflict with a
// transaction that is confirmed and will not be invalidated by the same
// update — i.e. two permanently-confirmed transactions can't both spend
// the same output.
type UnresolvableConflict struct {
	AlreadyConfirmedTx TxidHeight
	UpdateTx           TxidHeight
}

func (e *UnresolvableConflict) Error() string {
	return fmt.Sprintf("update tx %s at %s conflicts with already-confirmed tx %s at %s",
		e.UpdateTx.Txid, e.UpdateTx.Height, e.AlreadyConfirmedTx.Txid, e.AlreadyConfirmedTx.Height)
}

// DetermineChangeset computes the diff needed to move cg to match update,
// without mutating cg. It never returns a partial result: either the
// whole diff is valid, or an error describing exactly why it is not.
func (cg *ChainGraph) DetermineChangeset(update *ChainGraph) (ChangeSet, error) {
	checkpointDiff, invalidateHeight := cg.diffCheckpoints(update)

	graphAdditions := newTxGraphAdditions()
	for txid := range update.graph.txs {
		if _, ok := cg.graph.txs[txid]; !ok {
			tx, _ := update.graph.Tx(txid)
			graphAdditions.Txs[txid] = tx
		}
	}
	update.graph.ForEachTxOut(func(op wire.OutPoint, out wire.TxOut) {
		if _, ok := cg.graph.TxOut(op); !ok {
			graphAdditions.TxOuts[op] = out
		}
	})

	txidChanges := make(map[chainhash.Hash]*TxHeight)

	// Positions that are new or changed in the update.
	for txid, newHeight := range allPositions(update.chain) {
		if existing, ok := cg.positionOf(txid); ok && existing.Compare(newHeight) == 0 {
			continue
		}
		h := newHeight
		txidChanges[txid] = &h
	}

	// Conflict resolution: for every tx tracked by the update, check the
	// outpoints it spends against spenders known to either self's
	// pre-update graph OR the update's own additions — an update may
	// introduce both a conflicting tx and its predecessor in the same
	// step, so the receiver's graph alone is not a complete spender list.
	updatePositions := allPositions(update.chain)
	for txid, newHeight := range updatePositions {
		tx := resolveTx(update.graph, cg.graph, txid)
		if tx == nil {
			continue
		}
		for _, in := range tx.TxIn {
			for otherTxid := range unionOutspend(cg.graph, update.graph, in.PreviousOutPoint) {
				if otherTxid == txid {
					continue
				}
				if otherHeight, inChain := cg.positionOf(otherTxid); inChain {
					invalidated := !otherHeight.IsConfirmed()
					if h, confirmed := otherHeight.Height(); confirmed && invalidateHeight != nil && h >= *invalidateHeight {
						invalidated = true
					}
					if invalidated {
						txidChanges[otherTxid] = nil
						continue
					}
					return ChangeSet{}, &UnresolvableConflict{
						AlreadyConfirmedTx: TxidHeight{Txid: otherTxid, Height: otherHeight},
						UpdateTx:           TxidHeight{Txid: txid, Height: newHeight},
					}
				}

				// otherTxid has no pre-existing position in cg: it can only
				// conflict here if the same update also assigns it a
				// position (both spenders were introduced together). There
				// is no reorg to justify either side, so the one with the
				// more final TxHeight wins and the other is evicted; ties
				// break on txid so the outcome is independent of map
				// iteration order.
				otherNewHeight, introducedByUpdate := updatePositions[otherTxid]
				if !introducedByUpdate {
					continue
				}
				switch {
				case newHeight.Compare(otherNewHeight) < 0:
					txidChanges[otherTxid] = nil
				case newHeight.Compare(otherNewHeight) > 0:
					txidChanges[txid] = nil
				case bytes.Compare(txid[:], otherTxid[:]) < 0:
					txidChanges[otherTxid] = nil
				default:
					txidChanges[txid] = nil
				}
			}
		}
	}

	return ChangeSet{
		Chain: SparseChangeSet{Checkpoints: checkpointDiff, Txids: txidChanges},
		Graph: graphAdditions,
	}, nil
}

// unionOutspend merges the spender sets op has in both a and b, so a
// conflicting pair of transactions is found regardless of which of the
// two graphs (the receiver's pre-update graph, or the update's own
// additions) currently holds each one.
func unionOutspend(a, b *TxGraph, op wire.OutPoint) map[chainhash.Hash]struct{} {
	out := a.Outspend(op)
	if out == nil {
		out = make(map[chainhash.Hash]struct{})
	}
	for txid := range b.Outspend(op) {
		out[txid] = struct{}{}
	}
	return out
}

func resolveTx(update, self *TxGraph, txid chainhash.Hash) *wire.MsgTx {
	if tx, ok := update.Tx(txid); ok {
		return tx
	}
	if tx, ok := self.Tx(txid); ok {
		return tx
	}
	return nil
}

func allPositions(c *SparseChain) map[chainhash.Hash]TxHeight {
	out := make(map[chainhash.Hash]TxHeight, len(c.txidToHeight)+len(c.mempool))
	for txid, h := range c.txidToHeight {
		out[txid] = Confirmed(h)
	}
	for txid := range c.mempool {
		out[txid] = Unconfirmed
	}
	return out
}

func (cg *ChainGraph) diffCheckpoints(update *ChainGraph) (map[uint32]*chainhash.Hash, *uint32) {
	diff := make(map[uint32]*chainhash.Hash)
	var invalidateHeight *uint32

	var updateMaxHeight *uint32
	for h := range update.chain.checkpoints {
		hh := h
		if updateMaxHeight == nil || hh > *updateMaxHeight {
			updateMaxHeight = &hh
		}
	}

	for h, hash := range update.chain.checkpoints {
		selfHash, ok := cg.chain.checkpoints[h]
		if !ok || selfHash != hash {
			v := hash
			diff[h] = &v
			if invalidateHeight == nil || h < *invalidateHeight {
				hh := h
				invalidateHeight = &hh
			}
		}
	}

	if updateMaxHeight != nil {
		for h := range cg.chain.checkpoints {
			if h <= *updateMaxHeight {
				if _, ok := update.chain.checkpoints[h]; !ok {
					diff[h] = nil
					if invalidateHeight == nil || h < *invalidateHeight {
						hh := h
						invalidateHeight = &hh
					}
				}
			}
		}
	}

	return diff, invalidateHeight
}

// ApplyChangeset applies a previously-determined ChangeSet. This never
// fails: by the time a ChangeSet exists, its validity has already been
// established by DetermineChangeset (or InflateChangeset).
func (cg *ChainGraph) ApplyChangeset(cs ChangeSet) {
	for h, hash := range cs.Chain.Checkpoints {
		if hash == nil {
			delete(cg.chain.checkpoints, h)
		} else {
			cg.chain.checkpoints[h] = *hash
		}
	}
	for txid, tx := range cs.Graph.Txs {
		if _, ok := cg.graph.txs[txid]; !ok {
			cg.graph.InsertTx(tx)
		}
	}
	for op, out := range cs.Graph.TxOuts {
		cg.graph.InsertTxOut(op, out)
	}
	for txid, height := range cs.Chain.Txids {
		if height == nil {
			cg.removePosition(txid)
		} else {
			cg.setPosition(txid, *height)
		}
	}
}

// ApplyUpdate determines the changeset needed to reach update's state and
// applies it atomically: on error, cg is left completely unchanged.
func (cg *ChainGraph) ApplyUpdate(update *ChainGraph) (ChangeSet, error) {
	cs, err := cg.DetermineChangeset(update)
	if err != nil {
		return ChangeSet{}, err
	}
	cg.ApplyChangeset(cs)
	return cs, nil
}

// InflateError is returned by InflateChangeset when the caller has not
// supplied full transaction bodies for every newly-confirmed or
// newly-unconfirmed txid named in a chain-only changeset.
type InflateError struct {
	Missing map[chainhash.Hash]struct{}
}

func (e *InflateError) Error() string {
	return fmt.Sprintf("inflate: missing %d full transaction(s)", len(e.Missing))
}

// InflateChangeset turns a position-only SparseChangeSet (as produced by
// a Syncer, which only knows heights, not full transaction bodies) into a
// complete ChangeSet by pairing it with full transactions the caller has
// separately fetched. Every txid the changeset newly confirms or tracks
// as unconfirmed must either already be fully known to cg, or be present
// in txs — otherwise InflateError lists exactly what's missing.
func (cg *ChainGraph) InflateChangeset(chainCS SparseChangeSet, txs []*wire.MsgTx) (ChangeSet, error) {
	byTxid := make(map[chainhash.Hash]*wire.MsgTx, len(txs))
	for _, tx := range txs {
		byTxid[tx.TxHash()] = tx
	}

	missing := make(map[chainhash.Hash]struct{})
	graphAdditions := newTxGraphAdditions()

	for txid, height := range chainCS.Txids {
		if height == nil {
			continue // eviction needs no tx body
		}
		if _, ok := cg.graph.txs[txid]; ok {
			continue // already fully known
		}
		tx, ok := byTxid[txid]
		if !ok {
			missing[txid] = struct{}{}
			continue
		}
		graphAdditions.Txs[txid] = tx
	}

	if len(missing) > 0 {
		return ChangeSet{}, &InflateError{Missing: missing}
	}

	return ChangeSet{Chain: chainCS, Graph: graphAdditions}, nil
}
