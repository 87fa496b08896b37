package main

import (
	"flag"
	"fmt"

	"github.com/bdk-go/walletchain/config"
	"github.com/bdk-go/walletchain/pkg/keychain"
)

func cmdBalance(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	fs.Parse(args)

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

	bal := s.tracker.Balance(keychain.InternalIsTrusted)
	fmt.Printf("Immature:          %12d sat\n", bal.Immature)
	fmt.Printf("Confirmed:         %12d sat\n", bal.Confirmed)
	fmt.Printf("Trusted pending:   %12d sat\n", bal.TrustedPending)
	fmt.Printf("Untrusted pending: %12d sat\n", bal.UntrustedPending)
	fmt.Printf("-----------------------------------\n")
	fmt.Printf("Total:             %12d sat\n", bal.Total())
}
