package electrum

import (
	"context"
	"fmt"

	"github.com/bdk-go/walletchain/internal/syncer"
	"github.com/bdk-go/walletchain/pkg/chain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

var _ syncer.Syncer = (*Client)(nil)

// Sync scans watch against the Electrum server and returns a ChainGraph
// reflecting its view of those scripts' history: a checkpoint for every
// height a watched script's history touches, confirmed/unconfirmed
// positions for each txid found, and the full transaction bodies needed
// to satisfy InflateChangeset. current is consulted only to reuse its
// latest checkpoint as a starting point; the returned graph is meant to
// be passed to ChainGraph.ApplyUpdate / DetermineChangeset, not applied
// directly.
func (c *Client) Sync(ctx context.Context, current *chain.ChainGraph, watch []Script) (*chain.ChainGraph, error) {
	update := chain.NewChainGraph()

	if current != nil {
		if tip, ok := current.LatestCheckpoint(); ok {
			hash, err := c.BlockHeader(ctx, int32(tip.Height))
			if err != nil {
				return nil, fmt.Errorf("confirm tip checkpoint at height %d: %w", tip.Height, err)
			}
			if _, err := update.InsertCheckpoint(chain.BlockId{Height: tip.Height, Hash: hash}); err != nil {
				return nil, fmt.Errorf("seed checkpoint: %w", err)
			}
		}
	}

	seenHeights := make(map[int32]struct{})
	for _, script := range watch {
		entries, err := c.ScripthashGetHistory(ctx, script)
		if err != nil {
			return nil, fmt.Errorf("get_history for script: %w", err)
		}

		for _, e := range entries {
			txid, err := chainhash.NewHashFromStr(e.TxHash)
			if err != nil {
				return nil, fmt.Errorf("parse txid %s: %w", e.TxHash, err)
			}

			var pos chain.TxHeight
			if e.Height > 0 {
				pos = chain.Confirmed(uint32(e.Height))
				if _, ok := seenHeights[e.Height]; !ok {
					seenHeights[e.Height] = struct{}{}
					hash, err := c.BlockHeader(ctx, e.Height)
					if err != nil {
						return nil, fmt.Errorf("confirm block header at height %d: %w", e.Height, err)
					}
					if _, err := update.InsertCheckpoint(chain.BlockId{Height: uint32(e.Height), Hash: hash}); err != nil {
						return nil, fmt.Errorf("insert checkpoint at height %d: %w", e.Height, err)
					}
				}
			} else {
				pos = chain.Unconfirmed
			}

			tx, err := c.GetTransaction(ctx, *txid)
			if err != nil {
				return nil, fmt.Errorf("fetch tx %s: %w", txid, err)
			}
			if _, err := update.InsertTx(tx, pos); err != nil {
				return nil, fmt.Errorf("insert tx %s: %w", txid, err)
			}
		}
	}

	return update, nil
}
