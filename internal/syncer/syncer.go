// Package syncer defines the contract a blockchain data source must
// satisfy to feed a KeychainTracker, and ships an Electrum-based
// reference implementation in the electrum subpackage.
package syncer

import (
	"context"

	"github.com/bdk-go/walletchain/pkg/chain"
)

// Script is a scriptPubKey being watched for activity.
type Script = []byte

// Syncer produces an updated ChainGraph covering the given watched
// scripts, starting from current's known checkpoints and txids. The
// returned graph is suitable as the `update` argument to
// ChainGraph.ApplyUpdate / DetermineChangeset.
type Syncer interface {
	Sync(ctx context.Context, current *chain.ChainGraph, watch []Script) (*chain.ChainGraph, error)
}
