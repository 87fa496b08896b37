package chain

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// FullTxOut is a TxOut plus everything we know about its chain position:
// where it was confirmed (or that it's still unconfirmed), and, if spent,
// the transaction that spends it.
type FullTxOut struct {
	Outpoint wire.OutPoint
	TxOut    wire.TxOut
	Height   TxHeight
	SpentBy  *chainhash.Hash
}

// IsUnspent reports whether this output has no known spender.
func (f FullTxOut) IsUnspent() bool {
	return f.SpentBy == nil
}
