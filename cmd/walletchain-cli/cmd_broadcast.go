package main

import (
	"encoding/hex"
	"flag"
	"fmt"

	"github.com/bdk-go/walletchain/config"
)

// cmdBroadcast submits an already-signed raw transaction (as produced by
// an external signer from `send`'s unsigned output) to the configured
// Electrum server.
func cmdBroadcast(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("broadcast", flag.ExitOnError)
	fs.Parse(args)
	rest := fs.Args()
	if len(rest) != 1 {
		fatal("Usage: walletchain-cli broadcast <signed-tx-hex>")
	}

	raw, err := hex.DecodeString(rest[0])
	if err != nil {
		fatal("decode transaction hex: %v", err)
	}

	ctx, cancel := withTimeout()
	defer cancel()

	bc, closeFn, err := newBroadcaster(ctx, cfg)
	if err != nil {
		fatal("connect broadcaster: %v", err)
	}
	defer closeFn()

	if err := bc.Broadcast(ctx, raw); err != nil {
		fatal("broadcast: %v", err)
	}
	fmt.Println("Broadcast submitted.")
}
