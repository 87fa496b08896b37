// Package broadcast defines the contract for submitting a signed
// transaction to the network, plus two implementations: one that
// forwards to an Electrum server, and an in-memory recorder for tests.
package broadcast

import (
	"context"
	"sync"
)

// Broadcaster submits a raw, signed transaction to the network.
type Broadcaster interface {
	Broadcast(ctx context.Context, rawTx []byte) error
}

// Fake records every broadcast call instead of sending anything,
// for use in tests and dry runs.
type Fake struct {
	mu  sync.Mutex
	txs [][]byte
}

// Broadcast records rawTx.
func (f *Fake) Broadcast(_ context.Context, rawTx []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(rawTx))
	copy(cp, rawTx)
	f.txs = append(f.txs, cp)
	return nil
}

// Broadcasted returns every transaction recorded so far, in order.
func (f *Fake) Broadcasted() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.txs))
	copy(out, f.txs)
	return out
}
