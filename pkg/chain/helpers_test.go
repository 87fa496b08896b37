package chain

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// hashFromLabel deterministically derives a test hash from a short label,
// mirroring the retrieval corpus's h!("A") test macro.
func hashFromLabel(label string) chainhash.Hash {
	return chainhash.HashH([]byte(label))
}

func coinbaseLikeTx(version int32, outputs int) *wire.MsgTx {
	tx := wire.NewMsgTx(version)
	for i := 0; i < outputs; i++ {
		tx.AddTxOut(&wire.TxOut{Value: 0})
	}
	return tx
}

func spendingTx(version int32, prevOut wire.OutPoint, outputs int) *wire.MsgTx {
	tx := wire.NewMsgTx(version)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: prevOut})
	for i := 0; i < outputs; i++ {
		tx.AddTxOut(&wire.TxOut{Value: 0})
	}
	return tx
}
