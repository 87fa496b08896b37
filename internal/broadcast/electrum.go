package broadcast

import (
	"context"

	"github.com/bdk-go/walletchain/internal/syncer/electrum"
)

// ElectrumBroadcaster forwards raw transactions to an Electrum server's
// blockchain.transaction.broadcast method.
type ElectrumBroadcaster struct {
	client *electrum.Client
}

// NewElectrumBroadcaster wraps an already-connected Electrum client.
func NewElectrumBroadcaster(client *electrum.Client) *ElectrumBroadcaster {
	return &ElectrumBroadcaster{client: client}
}

// Broadcast submits rawTx via the underlying Electrum client.
func (b *ElectrumBroadcaster) Broadcast(ctx context.Context, rawTx []byte) error {
	return b.client.Broadcast(ctx, rawTx)
}
