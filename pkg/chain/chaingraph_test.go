package chain

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

func heightPtr(h TxHeight) *TxHeight {
	return &h
}

// TestSpentBy mirrors the corpus's test_spent_by: two independently built
// chain graphs that diverge only in which transaction spends tx1's single
// output.
func TestSpentBy(t *testing.T) {
	tx1 := coinbaseLikeTx(1, 1)
	op := wire.OutPoint{Hash: tx1.TxHash(), Index: 0}
	tx2 := spendingTx(1, op, 0)
	tx3 := spendingTx(2, op, 0)

	cg1 := NewChainGraph()
	if _, err := cg1.InsertTx(tx1, Unconfirmed); err != nil {
		t.Fatal(err)
	}
	if _, err := cg1.InsertTx(tx2, Unconfirmed); err != nil {
		t.Fatal(err)
	}

	cg2 := NewChainGraph()
	if _, err := cg2.InsertTx(tx1, Unconfirmed); err != nil {
		t.Fatal(err)
	}
	if _, err := cg2.InsertTx(tx3, Unconfirmed); err != nil {
		t.Fatal(err)
	}

	height, txid, ok := cg1.SpentBy(op)
	if !ok || height.Compare(Unconfirmed) != 0 || txid != tx2.TxHash() {
		t.Fatalf("cg1.SpentBy: got height=%v txid=%v ok=%v, want tx2", height, txid, ok)
	}
	height, txid, ok = cg2.SpentBy(op)
	if !ok || txid != tx3.TxHash() {
		t.Fatalf("cg2.SpentBy: got height=%v txid=%v ok=%v, want tx3", height, txid, ok)
	}
}

// TestUpdateEvictsUnconfirmedConflict mirrors the first update_evicts_conflicting_tx
// case: an unconfirmed conflict is silently evicted in favour of the update.
func TestUpdateEvictsUnconfirmedConflict(t *testing.T) {
	txA := coinbaseLikeTx(1, 1)
	opA := wire.OutPoint{Hash: txA.TxHash(), Index: 0}
	txB := spendingTx(1, opA, 1)
	txB2 := spendingTx(2, opA, 2)

	cg1 := NewChainGraph()
	if _, err := cg1.InsertTx(txA, Confirmed(0)); err != nil {
		t.Fatal(err)
	}
	if _, err := cg1.InsertTx(txB, Unconfirmed); err != nil {
		t.Fatal(err)
	}

	cg2 := NewChainGraph()
	if _, err := cg2.InsertTx(txB2, Unconfirmed); err != nil {
		t.Fatal(err)
	}

	cs, err := cg1.DetermineChangeset(cg2)
	if err != nil {
		t.Fatalf("expected tx_b to be evicted, got error: %v", err)
	}
	if got, ok := cs.Chain.Txids[txB.TxHash()]; !ok || got != nil {
		t.Fatalf("expected tx_b to be evicted (nil), got %v present=%v", got, ok)
	}
	if got, ok := cs.Chain.Txids[txB2.TxHash()]; !ok || got == nil || got.Compare(Unconfirmed) != 0 {
		t.Fatalf("expected tx_b2 to be tracked unconfirmed, got %v present=%v", got, ok)
	}
	if _, ok := cs.Graph.Txs[txB2.TxHash()]; !ok {
		t.Fatalf("expected tx_b2 to be a graph addition")
	}

	cg1.ApplyChangeset(cs)
	if _, ok := cg1.positionOf(txB.TxHash()); ok {
		t.Fatalf("expected tx_b position to be gone after apply")
	}
}

// TestUpdateResolvesConflictBetweenTwoUpdateIntroducedTxs covers the case
// spec.md:140 calls out explicitly: a conflicting tx and its predecessor
// (here, two mutually-conflicting spends) arriving in the very same
// update, with neither previously known to the receiver. Before the fix,
// conflict detection only consulted the receiver's pre-update graph, so
// neither spend was ever seen as conflicting and both were written into
// the changeset, breaking the no-conflict-among-confirmed invariant.
func TestUpdateResolvesConflictBetweenTwoUpdateIntroducedTxs(t *testing.T) {
	parent := coinbaseLikeTx(1, 1)
	op := wire.OutPoint{Hash: parent.TxHash(), Index: 0}
	txC := spendingTx(1, op, 1)
	txD := spendingTx(2, op, 1)

	cg1 := NewChainGraph()

	update := NewChainGraph()
	mustInsertCheckpoint(t, update, BlockId{Height: 0, Hash: hashFromLabel("A")})
	if _, err := update.InsertTx(txC, Confirmed(0)); err != nil {
		t.Fatal(err)
	}
	if _, err := update.InsertTx(txD, Confirmed(0)); err != nil {
		t.Fatal(err)
	}

	cs, err := cg1.DetermineChangeset(update)
	if err != nil {
		t.Fatalf("expected a deterministic resolution, not an error: %v", err)
	}

	cHash, dHash := txC.TxHash(), txD.TxHash()
	winner, loser := dHash, cHash
	if bytes.Compare(cHash[:], dHash[:]) < 0 {
		winner, loser = cHash, dHash
	}

	if got, ok := cs.Chain.Txids[loser]; !ok || got != nil {
		t.Fatalf("expected one conflicting tx evicted (nil), got %v present=%v", got, ok)
	}
	if got, ok := cs.Chain.Txids[winner]; !ok || got == nil || got.Compare(Confirmed(0)) != 0 {
		t.Fatalf("expected the other conflicting tx to remain confirmed at 0, got %v present=%v", got, ok)
	}

	cg1.ApplyChangeset(cs)
	if _, _, ok := cg1.GetTxInChain(loser); ok {
		t.Fatalf("expected evicted tx to be absent from chain after apply")
	}
	if _, _, ok := cg1.GetTxInChain(winner); !ok {
		t.Fatalf("expected surviving tx to be present in chain after apply")
	}
}

// TestUpdateUnresolvableConflict mirrors the second update_evicts_conflicting_tx
// case: a confirmed tx that the update does not invalidate cannot be displaced.
func TestUpdateUnresolvableConflict(t *testing.T) {
	cpA := BlockId{Height: 0, Hash: hashFromLabel("A")}
	cpB := BlockId{Height: 1, Hash: hashFromLabel("B")}

	txA := coinbaseLikeTx(1, 1)
	opA := wire.OutPoint{Hash: txA.TxHash(), Index: 0}
	txB := spendingTx(1, opA, 1)
	txB2 := spendingTx(2, opA, 2)

	cg1 := NewChainGraph()
	if _, err := cg1.InsertCheckpoint(cpA); err != nil {
		t.Fatal(err)
	}
	if _, err := cg1.InsertCheckpoint(cpB); err != nil {
		t.Fatal(err)
	}
	if _, err := cg1.InsertTx(txA, Confirmed(0)); err != nil {
		t.Fatal(err)
	}
	if _, err := cg1.InsertTx(txB, Confirmed(1)); err != nil {
		t.Fatal(err)
	}

	cg2 := NewChainGraph()
	if _, err := cg2.InsertTx(txB2, Unconfirmed); err != nil {
		t.Fatal(err)
	}

	_, err := cg1.DetermineChangeset(cg2)
	if err == nil {
		t.Fatalf("expected unresolvable conflict error")
	}
	conflict, ok := err.(*UnresolvableConflict)
	if !ok {
		t.Fatalf("expected *UnresolvableConflict, got %#v", err)
	}
	if conflict.AlreadyConfirmedTx.Txid != txB.TxHash() || conflict.AlreadyConfirmedTx.Height.Compare(Confirmed(1)) != 0 {
		t.Fatalf("unexpected AlreadyConfirmedTx: %+v", conflict.AlreadyConfirmedTx)
	}
	if conflict.UpdateTx.Txid != txB2.TxHash() {
		t.Fatalf("unexpected UpdateTx: %+v", conflict.UpdateTx)
	}
}

// TestUpdateEvictsReorgedConflict mirrors the third update_evicts_conflicting_tx
// case: replacing checkpoint B with B' invalidates everything confirmed in B,
// so the conflicting tx there is evicted rather than unresolvable.
func TestUpdateEvictsReorgedConflict(t *testing.T) {
	cpA := BlockId{Height: 0, Hash: hashFromLabel("A")}
	cpB := BlockId{Height: 1, Hash: hashFromLabel("B")}
	cpB2 := BlockId{Height: 1, Hash: hashFromLabel("B-prime")}

	txA := coinbaseLikeTx(1, 1)
	opA := wire.OutPoint{Hash: txA.TxHash(), Index: 0}
	txB := spendingTx(1, opA, 1)
	txB2 := spendingTx(2, opA, 2)

	cg1 := NewChainGraph()
	mustInsertCheckpoint(t, cg1, cpA)
	mustInsertCheckpoint(t, cg1, cpB)
	if _, err := cg1.InsertTx(txA, Confirmed(0)); err != nil {
		t.Fatal(err)
	}
	if _, err := cg1.InsertTx(txB, Confirmed(1)); err != nil {
		t.Fatal(err)
	}

	cg2 := NewChainGraph()
	mustInsertCheckpoint(t, cg2, cpA)
	mustInsertCheckpoint(t, cg2, cpB2)
	if _, err := cg2.InsertTx(txB2, Unconfirmed); err != nil {
		t.Fatal(err)
	}

	cs, err := cg1.DetermineChangeset(cg2)
	if err != nil {
		t.Fatalf("expected reorg to evict tx_b, got error: %v", err)
	}
	hash, ok := cs.Chain.Checkpoints[1]
	if !ok || hash == nil || *hash != cpB2.Hash {
		t.Fatalf("expected checkpoint 1 to become B', got %v", cs.Chain.Checkpoints[1])
	}
	if got, ok := cs.Chain.Txids[txB.TxHash()]; !ok || got != nil {
		t.Fatalf("expected tx_b evicted, got %v present=%v", got, ok)
	}

	cg1.ApplyChangeset(cs)
}

func mustInsertCheckpoint(t *testing.T, cg *ChainGraph, id BlockId) {
	t.Helper()
	if _, err := cg.InsertCheckpoint(id); err != nil {
		t.Fatal(err)
	}
}

// TestInflateChangeset mirrors chain_graph_inflate_changeset: a chain-only
// changeset can't be applied until full transactions are supplied for
// every newly-tracked txid.
func TestInflateChangeset(t *testing.T) {
	txA := coinbaseLikeTx(1, 1)
	txB := coinbaseLikeTx(2, 1)

	cg := NewChainGraph()
	hashA := hashFromLabel("A")
	chainCS := SparseChangeSet{
		Checkpoints: map[uint32]*chainhash.Hash{0: &hashA},
		Txids: map[chainhash.Hash]*TxHeight{
			txA.TxHash(): heightPtr(Confirmed(0)),
			txB.TxHash(): heightPtr(Confirmed(0)),
		},
	}

	if _, err := cg.InflateChangeset(chainCS, nil); err == nil {
		t.Fatalf("expected missing-both error")
	}

	if _, err := cg.InflateChangeset(chainCS, []*wire.MsgTx{txB}); err == nil {
		t.Fatalf("expected still-missing-A error")
	}

	cg.InsertTxOut(wire.OutPoint{Hash: txA.TxHash(), Index: 0}, *txA.TxOut[0])
	if _, err := cg.InflateChangeset(chainCS, []*wire.MsgTx{txB}); err == nil {
		t.Fatalf("a floating txout must not satisfy the full-tx requirement")
	}

	cs, err := cg.InflateChangeset(chainCS, []*wire.MsgTx{txA, txB})
	if err != nil {
		t.Fatalf("expected success once both full txs are supplied: %v", err)
	}
	cg.ApplyChangeset(cs)

	if _, _, ok := cg.GetTxInChain(txA.TxHash()); !ok {
		t.Fatalf("expected tx_a to be in chain after apply")
	}
}

// TestTransactionsInChainOrdering mirrors test_iterate_transactions: results
// are ordered confirmed-ascending, then unconfirmed last.
func TestTransactionsInChainOrdering(t *testing.T) {
	cg := NewChainGraph()
	mustInsertCheckpoint(t, cg, BlockId{Height: 1, Hash: hashFromLabel("A")})

	tx0 := coinbaseLikeTx(0, 1)
	tx1 := coinbaseLikeTx(1, 1)
	tx2 := coinbaseLikeTx(2, 1)

	if _, err := cg.InsertTx(tx0, Confirmed(1)); err != nil {
		t.Fatal(err)
	}
	if _, err := cg.InsertTx(tx1, Unconfirmed); err != nil {
		t.Fatal(err)
	}
	if _, err := cg.InsertTx(tx2, Confirmed(0)); err != nil {
		t.Fatal(err)
	}

	got := cg.TransactionsInChain()
	if len(got) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(got))
	}
	want := []struct {
		height TxHeight
		tx     *wire.MsgTx
	}{
		{Confirmed(0), tx2},
		{Confirmed(1), tx0},
		{Unconfirmed, tx1},
	}
	for i, w := range want {
		if got[i].Height.Compare(w.height) != 0 || got[i].Tx.TxHash() != w.tx.TxHash() {
			t.Fatalf("position %d: got height=%v tx=%v, want height=%v tx=%v", i, got[i].Height, got[i].Tx.TxHash(), w.height, w.tx.TxHash())
		}
	}
}

// TestApplyChangesReintroduceTx mirrors test_apply_changes_reintroduce_tx:
// a two-step reorg that replaces a tx and then un-replaces it must restore
// the original tx's chain position using content already known to the
// graph, without needing it supplied again.
func TestApplyChangesReintroduceTx(t *testing.T) {
	block1 := BlockId{Height: 1, Hash: hashFromLabel("block 1")}
	block2a := BlockId{Height: 2, Hash: hashFromLabel("block 2a")}
	block2b := BlockId{Height: 2, Hash: hashFromLabel("block 2b")}
	block2c := BlockId{Height: 2, Hash: hashFromLabel("block 2c")}

	tx1 := coinbaseLikeTx(0, 1)
	op := wire.OutPoint{Hash: tx1.TxHash(), Index: 0}
	tx2a := spendingTx(0, op, 1)
	tx2b := spendingTx(99, op, 1) // distinct txid from tx2a, same spend

	cg := NewChainGraph()
	mustInsertCheckpoint(t, cg, block1)
	mustInsertCheckpoint(t, cg, block2a)
	if _, err := cg.InsertTx(tx1, Confirmed(1)); err != nil {
		t.Fatal(err)
	}
	if _, err := cg.InsertTx(tx2a, Confirmed(2)); err != nil {
		t.Fatal(err)
	}

	update1 := NewChainGraph()
	mustInsertCheckpoint(t, update1, block1)
	mustInsertCheckpoint(t, update1, block2b)
	if _, err := update1.InsertTx(tx2b, Confirmed(2)); err != nil {
		t.Fatal(err)
	}

	cs1, err := cg.ApplyUpdate(update1)
	if err != nil {
		t.Fatalf("round 1 update should succeed: %v", err)
	}
	if got := cs1.Chain.Txids[tx2a.TxHash()]; got != nil {
		t.Fatalf("expected tx2a evicted in round 1, got %v", got)
	}
	if got := cs1.Chain.Txids[tx2b.TxHash()]; got == nil || got.Compare(Confirmed(2)) != 0 {
		t.Fatalf("expected tx2b confirmed at 2 in round 1, got %v", got)
	}
	if _, ok := cs1.Graph.Txs[tx2b.TxHash()]; !ok {
		t.Fatalf("expected tx2b to be a graph addition in round 1")
	}

	update2 := NewChainGraph()
	mustInsertCheckpoint(t, update2, block1)
	mustInsertCheckpoint(t, update2, block2c)
	if _, err := update2.InsertTx(tx2a, Confirmed(2)); err != nil {
		t.Fatal(err)
	}

	cs2, err := cg.ApplyUpdate(update2)
	if err != nil {
		t.Fatalf("round 2 update should succeed: %v", err)
	}
	if got := cs2.Chain.Txids[tx2b.TxHash()]; got != nil {
		t.Fatalf("expected tx2b evicted in round 2, got %v", got)
	}
	if got := cs2.Chain.Txids[tx2a.TxHash()]; got == nil || got.Compare(Confirmed(2)) != 0 {
		t.Fatalf("expected tx2a restored confirmed at 2 in round 2, got %v", got)
	}
	if len(cs2.Graph.Txs) != 0 {
		t.Fatalf("expected no new graph content in round 2 (tx2a already known), got %d", len(cs2.Graph.Txs))
	}

	height, _, ok := cg.GetTxInChain(tx2a.TxHash())
	if !ok || height.Compare(Confirmed(2)) != 0 {
		t.Fatalf("expected tx2a in chain confirmed at 2 after round 2, got height=%v ok=%v", height, ok)
	}
}
