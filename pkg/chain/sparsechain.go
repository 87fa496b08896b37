package chain

import (
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// SparseChain is a checkpoint ledger: a sparse set of known block
// heights/hashes plus, for every transaction it has an opinion about,
// whether that transaction is confirmed (and at what height) or sits in
// the mempool. It never stores transaction content — that is TxGraph's
// job — only chain position.
type SparseChain struct {
	checkpoints     map[uint32]chainhash.Hash
	txidByHeight    map[uint32]map[chainhash.Hash]struct{}
	txidToHeight    map[chainhash.Hash]uint32
	mempool         map[chainhash.Hash]struct{}
	checkpointLimit *int
}

// NewSparseChain returns an empty SparseChain.
func NewSparseChain() *SparseChain {
	return &SparseChain{
		checkpoints:  make(map[uint32]chainhash.Hash),
		txidByHeight: make(map[uint32]map[chainhash.Hash]struct{}),
		txidToHeight: make(map[chainhash.Hash]uint32),
		mempool:      make(map[chainhash.Hash]struct{}),
	}
}

// Update is a candidate change to a SparseChain: a batch of transaction
// positions plus the checkpoint bookkeeping that must accompany them.
type Update struct {
	// Txids maps a txid to the position it should have after the update.
	Txids map[chainhash.Hash]TxHeight
	// LastValid must equal the checkpoint immediately preceding Invalidate
	// (or the latest checkpoint, if Invalidate is nil). It exists so a
	// SparseChain can detect it is being updated from a stale view.
	LastValid *BlockId
	// Invalidate, if set, discards every checkpoint (and the confirmed
	// txids within them) from this height onward before the update proper
	// is applied.
	Invalidate *BlockId
	// NewTip is the latest tip this update is aware of. No txid may be
	// confirmed above this height.
	NewTip BlockId
}

// NewUpdate returns a template update with an empty Txids map.
func NewUpdate(lastValid *BlockId, newTip BlockId) Update {
	return Update{
		Txids:    make(map[chainhash.Hash]TxHeight),
		LastValid: lastValid,
		NewTip:    newTip,
	}
}

// BogusReason distinguishes the two ways an Update can be internally
// inconsistent (not just stale relative to the chain it targets).
type BogusReason struct {
	LastValidConflictsNewTip bool
	NewTip                   BlockId
	LastValid                BlockId

	TxHeightGreaterThanTip bool
	Txid                   chainhash.Hash
	TxHeightValue          TxHeight
}

func (r BogusReason) Error() string {
	if r.LastValidConflictsNewTip {
		return fmt.Sprintf("last_valid (%s) conflicts new_tip (%s)", r.LastValid, r.NewTip)
	}
	return fmt.Sprintf("tx (%s) confirmation height (%s) is greater than new_tip (%s)", r.Txid, r.TxHeightValue, r.NewTip)
}

// UpdateFailure is the reason an Update was rejected by SparseChain.ApplyUpdate.
type UpdateFailure struct {
	// Exactly one of the following describes the failure.
	Bogus *BogusReason

	Stale               bool
	GotLastValid        *BlockId
	ExpectedLastValid   *BlockId

	Inconsistent      bool
	InconsistentTxid  chainhash.Hash
	OriginalHeight    TxHeight
	UpdateHeight      TxHeight
}

func (f *UpdateFailure) Error() string {
	switch {
	case f.Bogus != nil:
		return "bogus update: " + f.Bogus.Error()
	case f.Stale:
		return fmt.Sprintf("stale update: got last_valid (%s) when expecting (%s)", blockIdOpt(f.GotLastValid), blockIdOpt(f.ExpectedLastValid))
	case f.Inconsistent:
		return fmt.Sprintf("inconsistent update: first inconsistent tx is (%s) which had confirmation height (%s), but is (%s) in the update",
			f.InconsistentTxid, f.OriginalHeight, f.UpdateHeight)
	default:
		return "invalid update"
	}
}

// LatestCheckpoint returns the highest known checkpoint, if any.
func (c *SparseChain) LatestCheckpoint() (BlockId, bool) {
	height, ok := c.maxCheckpointHeight()
	if !ok {
		return BlockId{}, false
	}
	return BlockId{Height: height, Hash: c.checkpoints[height]}, true
}

// CheckpointAt returns the checkpoint at height, if known.
func (c *SparseChain) CheckpointAt(height uint32) (BlockId, bool) {
	hash, ok := c.checkpoints[height]
	if !ok {
		return BlockId{}, false
	}
	return BlockId{Height: height, Hash: hash}, true
}

// TransactionHeight returns the position of txid, if the chain has an
// opinion about it at all.
func (c *SparseChain) TransactionHeight(txid chainhash.Hash) (TxHeight, bool) {
	if _, ok := c.mempool[txid]; ok {
		return Unconfirmed, true
	}
	if h, ok := c.txidToHeight[txid]; ok {
		return Confirmed(h), true
	}
	return TxHeight{}, false
}

// IterCheckpoints returns checkpoints with height in [from, to), ascending.
func (c *SparseChain) IterCheckpoints(from, to uint32) []BlockId {
	var heights []uint32
	for h := range c.checkpoints {
		if h >= from && h < to {
			heights = append(heights, h)
		}
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })
	out := make([]BlockId, 0, len(heights))
	for _, h := range heights {
		out = append(out, BlockId{Height: h, Hash: c.checkpoints[h]})
	}
	return out
}

// ApplyBlockTxs applies a block's worth of confirmed transactions as a
// single update, constructing the implied Update automatically (including
// invalidating any existing, conflicting checkpoint at the same height).
func (c *SparseChain) ApplyBlockTxs(blockID BlockId, txids []chainhash.Hash) error {
	upd := Update{
		Txids:  make(map[chainhash.Hash]TxHeight, len(txids)),
		NewTip: blockID,
	}
	for _, txid := range txids {
		upd.Txids[txid] = Confirmed(blockID.Height)
	}
	if lv, ok := c.LatestCheckpoint(); ok {
		upd.LastValid = &lv
	}
	if existing, ok := c.CheckpointAt(blockID.Height); ok && existing.Hash != blockID.Hash {
		inv := existing
		upd.Invalidate = &inv
		upd.LastValid = c.lastCheckpointBelow(existing.Height)
	}
	return c.ApplyUpdate(upd)
}

// ApplyUpdate validates and, if valid, applies update to the chain. It is
// equivalent to DetermineChangeset followed by ApplyChangeset, kept as a
// single call for the common case where the caller has no use for the
// intermediate diff.
func (c *SparseChain) ApplyUpdate(update Update) error {
	cs, err := c.DetermineChangeset(update)
	if err != nil {
		return err
	}
	c.ApplyChangeset(cs)
	return nil
}

// DetermineChangeset validates update against the chain's current state
// and, if valid, returns the pure diff needed to move the chain into
// update's state — without mutating c. This is the two-phase changeset
// discipline of spec §4.2: validation produces a diff or an error, and
// applying a validated diff (via ApplyChangeset) never fails.
func (c *SparseChain) DetermineChangeset(update Update) (SparseChangeSet, error) {
	upperBound := uint32(1<<32 - 1)
	if update.Invalidate != nil {
		upperBound = update.Invalidate.Height
	}
	expectedLastValid := c.lastCheckpointBelow(upperBound)

	if !blockIdEqualOpt(update.LastValid, expectedLastValid) {
		return SparseChangeSet{}, &UpdateFailure{Stale: true, GotLastValid: update.LastValid, ExpectedLastValid: expectedLastValid}
	}

	if expectedLastValid != nil {
		lv := *expectedLastValid
		if update.NewTip.Height < lv.Height || (update.NewTip.Height == lv.Height && update.NewTip.Hash != lv.Hash) {
			return SparseChangeSet{}, &UpdateFailure{Bogus: &BogusReason{
				LastValidConflictsNewTip: true,
				NewTip:                   update.NewTip,
				LastValid:                lv,
			}}
		}
	}

	for txid, height := range update.Txids {
		if h, confirmed := height.Height(); confirmed && h > update.NewTip.Height {
			return SparseChangeSet{}, &UpdateFailure{Bogus: &BogusReason{
				TxHeightGreaterThanTip: true,
				Txid:                   txid,
				TxHeightValue:          height,
				NewTip:                 update.NewTip,
			}}
		}

		if existingHeight, ok := c.txidToHeight[txid]; ok {
			invalidated := update.Invalidate != nil && existingHeight >= update.Invalidate.Height
			sameHeight := func() bool {
				h, confirmed := height.Height()
				return confirmed && h == existingHeight
			}()
			if invalidated || sameHeight {
				continue
			}
			return SparseChangeSet{}, &UpdateFailure{
				Inconsistent:     true,
				InconsistentTxid: txid,
				OriginalHeight:   Confirmed(existingHeight),
				UpdateHeight:     height,
			}
		}
	}

	cs := newSparseChangeSet()

	if update.Invalidate != nil {
		for h := range c.checkpoints {
			if h >= update.Invalidate.Height {
				cs.Checkpoints[h] = nil
			}
		}
		removedConfirmed := false
		for h, set := range c.txidByHeight {
			if h < update.Invalidate.Height {
				continue
			}
			for txid := range set {
				cs.Txids[txid] = nil
				removedConfirmed = true
			}
		}
		// Mirrors invalidateCheckpoints: once any confirmed tx is evicted by
		// a reorg, the whole mempool is cleared too — previously-unconfirmed
		// txs may no longer be valid against the new branch, and the update's
		// own Txids map is what repopulates it.
		if removedConfirmed {
			for txid := range c.mempool {
				cs.Txids[txid] = nil
			}
		}
	}

	// A checkpoint already invalidated above (same reorg) no longer counts
	// as present even though c.checkpoints (the pre-mutation map) still has
	// it — otherwise a single-block reorg that replaces new_tip's own
	// height loses the replacement hash entirely (cs.Checkpoints[h] would
	// stay nil instead of becoming Some(new_hash)).
	existingHash, hadCheckpoint := c.checkpoints[update.NewTip.Height]
	invalidatedSameHeight := update.Invalidate != nil && update.NewTip.Height >= update.Invalidate.Height
	if !hadCheckpoint || invalidatedSameHeight || existingHash != update.NewTip.Hash {
		hash := update.NewTip.Hash
		cs.Checkpoints[update.NewTip.Height] = &hash
	}

	for txid, height := range update.Txids {
		h := height
		if existing, ok := c.TransactionHeight(txid); ok && existing.Compare(h) == 0 {
			delete(cs.Txids, txid)
			continue
		}
		cs.Txids[txid] = &h
	}

	return cs, nil
}

// ApplyChangeset applies a diff previously computed by DetermineChangeset
// (or merged from several). It never fails — a SparseChangeSet is assumed
// to already be valid by construction. After applying, checkpoints are
// pruned to the configured limit exactly as ApplyUpdate would.
func (c *SparseChain) ApplyChangeset(cs SparseChangeSet) {
	for h, hash := range cs.Checkpoints {
		if hash == nil {
			delete(c.checkpoints, h)
		} else {
			c.checkpoints[h] = *hash
		}
	}
	for txid, height := range cs.Txids {
		if height == nil {
			if h, ok := c.txidToHeight[txid]; ok {
				delete(c.txidToHeight, txid)
				if set, ok := c.txidByHeight[h]; ok {
					delete(set, txid)
					if len(set) == 0 {
						delete(c.txidByHeight, h)
					}
				}
			}
			delete(c.mempool, txid)
			continue
		}
		if h, confirmed := height.Height(); confirmed {
			set, ok := c.txidByHeight[h]
			if !ok {
				set = make(map[chainhash.Hash]struct{})
				c.txidByHeight[h] = set
			}
			if _, already := set[txid]; !already {
				set[txid] = struct{}{}
				c.txidToHeight[txid] = h
				delete(c.mempool, txid)
			}
		} else {
			c.mempool[txid] = struct{}{}
		}
	}
	c.pruneCheckpoints()
}

// ClearMempool discards all mempool (unconfirmed) position entries.
func (c *SparseChain) ClearMempool() {
	c.mempool = make(map[chainhash.Hash]struct{})
}

// DisconnectBlock reverses a block's checkpoint and everything confirmed
// at or after it, as if it never happened.
func (c *SparseChain) DisconnectBlock(blockID BlockId) {
	if hash, ok := c.checkpoints[blockID.Height]; ok && hash == blockID.Hash {
		c.invalidateCheckpoints(blockID.Height)
		c.ClearMempool()
	}
}

func (c *SparseChain) invalidateCheckpoints(height uint32) {
	removedAny := false
	for h := range c.checkpoints {
		if h >= height {
			delete(c.checkpoints, h)
		}
	}
	for h, set := range c.txidByHeight {
		if h < height {
			continue
		}
		for txid := range set {
			delete(c.txidToHeight, txid)
			removedAny = true
		}
		delete(c.txidByHeight, h)
	}
	if removedAny {
		c.ClearMempool()
	}
}

// SetCheckpointLimit bounds how many checkpoints are retained; older
// ones are pruned (without affecting confirmed-tx bookkeeping) after
// every successful update. A nil limit disables pruning.
func (c *SparseChain) SetCheckpointLimit(limit *int) {
	c.checkpointLimit = limit
}

func (c *SparseChain) pruneCheckpoints() {
	if c.checkpointLimit == nil {
		return
	}
	limit := *c.checkpointLimit
	var heights []uint32
	for h := range c.checkpoints {
		heights = append(heights, h)
	}
	if len(heights) <= limit {
		return
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] > heights[j] })
	for _, h := range heights[limit:] {
		delete(c.checkpoints, h)
	}
}

// FullTxOut resolves an outpoint's full chain-aware data, given the graph
// that stores its content. Returns false if the chain has no opinion
// about the outpoint's owning transaction.
func (c *SparseChain) FullTxOut(graph *TxGraph, op wire.OutPoint) (FullTxOut, bool) {
	height, ok := c.TransactionHeight(op.Hash)
	if !ok {
		return FullTxOut{}, false
	}
	txout, ok := graph.TxOut(op)
	if !ok {
		return FullTxOut{}, false
	}

	var spentBy *chainhash.Hash
	for txid := range graph.Outspend(op) {
		if _, inChain := c.txidToHeight[txid]; inChain {
			h := txid
			spentBy = &h
			break
		}
		if _, inMempool := c.mempool[txid]; inMempool {
			h := txid
			spentBy = &h
			break
		}
	}

	return FullTxOut{Outpoint: op, TxOut: txout, Height: height, SpentBy: spentBy}, true
}

// ConfirmedTxids returns every confirmed txid, ordered by descending
// height (mirrors the source's "newest first" iteration used to drive
// UTXO listings).
func (c *SparseChain) ConfirmedTxids() []chainhash.Hash {
	var heights []uint32
	for h := range c.txidByHeight {
		heights = append(heights, h)
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] > heights[j] })

	var out []chainhash.Hash
	for _, h := range heights {
		var txids []chainhash.Hash
		for txid := range c.txidByHeight[h] {
			txids = append(txids, txid)
		}
		sort.Slice(txids, func(i, j int) bool { return txids[i].String() < txids[j].String() })
		out = append(out, txids...)
	}
	return out
}

// MempoolTxids returns every unconfirmed txid. Order is unspecified.
func (c *SparseChain) MempoolTxids() []chainhash.Hash {
	out := make([]chainhash.Hash, 0, len(c.mempool))
	for txid := range c.mempool {
		out = append(out, txid)
	}
	return out
}

// AllTxids returns every txid the chain has an opinion about: confirmed
// (descending height) followed by mempool.
func (c *SparseChain) AllTxids() []chainhash.Hash {
	return append(c.ConfirmedTxids(), c.MempoolTxids()...)
}

func (c *SparseChain) maxCheckpointHeight() (uint32, bool) {
	var max uint32
	found := false
	for h := range c.checkpoints {
		if !found || h > max {
			max = h
			found = true
		}
	}
	return max, found
}

func (c *SparseChain) lastCheckpointBelow(upperBound uint32) *BlockId {
	found := false
	var max uint32
	for h := range c.checkpoints {
		if h < upperBound && (!found || h > max) {
			max = h
			found = true
		}
	}
	if !found {
		return nil
	}
	return &BlockId{Height: max, Hash: c.checkpoints[max]}
}

func blockIdEqualOpt(a, b *BlockId) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
