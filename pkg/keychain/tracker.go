package keychain

import (
	"fmt"

	"github.com/bdk-go/walletchain/pkg/chain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// CoinbaseMaturity is the number of confirmations a coinbase output needs
// before it is spendable, matching Bitcoin consensus (BIP-34 era value,
// unchanged since).
const CoinbaseMaturity = 100

// TrustPolicy decides whether an unconfirmed output owned by k should be
// treated as trusted (counted toward spendable balance) rather than
// untrusted pending. The core parameterizes this instead of hard-coding
// "internal == trusted" so callers can supply their own notion of trust.
type TrustPolicy func(k Keychain) bool

// InternalIsTrusted is the default TrustPolicy: only change (internal)
// outputs are trusted while unconfirmed.
func InternalIsTrusted(k Keychain) bool {
	return k == Internal
}

// Tracker bundles a ChainGraph with a TxOutIndex: every transaction
// inserted through it is also scanned for outputs the index owns, so the
// two structures never drift out of sync with each other.
type Tracker struct {
	graph *chain.ChainGraph
	index *TxOutIndex
}

// NewTracker returns a tracker over an empty ChainGraph and index.
func NewTracker() *Tracker {
	return &Tracker{graph: chain.NewChainGraph(), index: New()}
}

// ChainGraph returns the underlying chain graph.
func (t *Tracker) ChainGraph() *chain.ChainGraph { return t.graph }

// Index returns the underlying script-pubkey index.
func (t *Tracker) Index() *TxOutIndex { return t.index }

// scanTx scans every output of tx against the index, recording ownership
// for any that match a derived script.
func (t *Tracker) scanTx(tx *wire.MsgTx) {
	txid := tx.TxHash()
	for i, out := range tx.TxOut {
		op := wire.OutPoint{Hash: txid, Index: uint32(i)}
		t.index.ScanTxOut(op, *out)
	}
}

// InsertTx records tx at height and scans its outputs against the index.
func (t *Tracker) InsertTx(tx *wire.MsgTx, height chain.TxHeight) (bool, error) {
	inserted, err := t.graph.InsertTx(tx, height)
	if err != nil {
		return false, err
	}
	t.scanTx(tx)
	return inserted, nil
}

// ApplyUpdate determines and applies the changeset needed to move this
// tracker to match update, scanning every newly-added transaction's
// outputs against the index as a side effect. On error the tracker is
// left unchanged.
func (t *Tracker) ApplyUpdate(update *chain.ChainGraph) (ChangeSet, error) {
	chainCS, err := t.graph.ApplyUpdate(update)
	if err != nil {
		return ChangeSet{}, err
	}
	for _, tx := range chainCS.Graph.Txs {
		t.scanTx(tx)
	}
	return ChangeSet{
		DerivationIndices: t.index.DerivationIndices(),
		ChainChange:       chainCS,
	}, nil
}

// ApplyChangeSet applies a previously-determined ChangeSet: it advances
// the index's derivation bookkeeping (never regressing it) then applies
// the chain-graph side, scanning any newly-added transactions.
func (t *Tracker) ApplyChangeSet(cs ChangeSet) error {
	for k, i := range cs.DerivationIndices {
		if _, registered := t.index.descriptors[k]; !registered {
			continue
		}
		if err := t.index.CatchUpTo(k, i); err != nil {
			return fmt.Errorf("catch up keychain %s to index %d: %w", k, i, err)
		}
	}
	t.graph.ApplyChangeset(cs.ChainChange)
	for _, tx := range cs.ChainChange.Graph.Txs {
		t.scanTx(tx)
	}
	return nil
}

// Utxo is a single unspent output owned by the index, annotated with its
// chain position.
type Utxo struct {
	Outpoint wire.OutPoint
	TxOut    wire.TxOut
	Keychain Keychain
	Index    uint32
	Height   chain.TxHeight
}

// FullUtxos returns every output owned by the index that is not spent by
// a chain-resident transaction.
func (t *Tracker) FullUtxos() []Utxo {
	var out []Utxo
	for op, own := range t.index.outpointOwner {
		if _, _, spent := t.graph.SpentBy(op); spent {
			continue
		}
		full, ok := t.graph.FullTxOut(op)
		if !ok {
			continue
		}
		out = append(out, Utxo{
			Outpoint: op,
			TxOut:    full.TxOut,
			Keychain: own.Keychain,
			Index:    own.Index,
			Height:   full.Height,
		})
	}
	return out
}

// Balance buckets the value of every UTXO owned by the index.
type Balance struct {
	Immature         int64
	Confirmed        int64
	TrustedPending   int64
	UntrustedPending int64
}

// Total returns the sum of every bucket.
func (b Balance) Total() int64 {
	return b.Immature + b.Confirmed + b.TrustedPending + b.UntrustedPending
}

// Balance sums FullUtxos into Balance buckets using policy to decide
// whether an unconfirmed output is trusted. Coinbase maturity requires
// looking up the owning transaction in the graph and comparing against
// the latest checkpoint height.
func (t *Tracker) Balance(policy TrustPolicy) Balance {
	var tipHeight uint32
	if tip, ok := t.graph.LatestCheckpoint(); ok {
		tipHeight = tip.Height
	}

	var bal Balance
	for _, u := range t.FullUtxos() {
		value := u.TxOut.Value

		if h, confirmed := u.Height.Height(); confirmed {
			if isCoinbase(t.graph, u.Outpoint.Hash) && tipHeight-h < CoinbaseMaturity {
				bal.Immature += value
			} else {
				bal.Confirmed += value
			}
			continue
		}

		if policy != nil && policy(u.Keychain) {
			bal.TrustedPending += value
		} else {
			bal.UntrustedPending += value
		}
	}
	return bal
}

func isCoinbase(graph *chain.ChainGraph, txid chainhash.Hash) bool {
	tx, ok := graph.Tx(txid)
	if !ok || tx == nil {
		return false
	}
	if len(tx.TxIn) != 1 {
		return false
	}
	prev := tx.TxIn[0].PreviousOutPoint
	return prev.Hash == chainhash.Hash{} && prev.Index == ^uint32(0)
}
