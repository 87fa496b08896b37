package main

import (
	"flag"
	"fmt"

	"github.com/bdk-go/walletchain/config"
)

func cmdTxOut(cfg *config.Config, args []string) {
	if len(args) == 0 || args[0] != "list" {
		fatal("Usage: walletchain-cli txout list")
	}
	fs := flag.NewFlagSet("txout list", flag.ExitOnError)
	fs.Parse(args[1:])

	s, err := openSession(cfg)
	if err != nil {
		fatal("open wallet: %v", err)
	}
	defer s.close()

	ctx, cancel := withTimeout()
	defer cancel()
	if err := s.sync(ctx); err != nil {
		fmt.Println("warning: sync failed:", err)
	}

	utxos := s.tracker.FullUtxos()
	if len(utxos) == 0 {
		fmt.Println("No unspent outputs.")
		return
	}
	for _, u := range utxos {
		fmt.Printf("%s:%d  %12d sat  %s[%d]  %s\n",
			u.Outpoint.Hash, u.Outpoint.Index, u.TxOut.Value, u.Keychain, u.Index, u.Height)
	}
}
