package main

import (
	"flag"
	"fmt"

	"github.com/bdk-go/walletchain/config"
	"github.com/bdk-go/walletchain/pkg/descriptor"
	"github.com/bdk-go/walletchain/pkg/keychain"
)

func cmdAddress(cfg *config.Config, args []string) {
	if len(args) == 0 {
		fatal("Usage: walletchain-cli address next|new|list|index [--change]")
	}

	sub := args[0]
	fs := flag.NewFlagSet("address "+sub, flag.ExitOnError)
	useChange := fs.Bool("change", false, "Operate on the internal (change) keychain instead of external")
	fs.Parse(args[1:])

	s, err := openSession(cfg)
	if err != nil {
		fatal("open wallet: %v", err)
	}
	defer s.close()

	k := keychain.External
	if *useChange {
		k = keychain.Internal
	}
	desc := s.descriptorFor(k)
	if desc == nil {
		fatal("no change descriptor configured (set CHANGE_DESCRIPTOR)")
	}

	ctx, cancel := withTimeout()
	defer cancel()
	if err := s.sync(ctx); err != nil {
		fmt.Println("warning: sync failed:", err)
	}

	switch sub {
	case "next":
		index, _, err := s.tracker.Index().NextUnused(k)
		if err != nil {
			fatal("derive address: %v", err)
		}
		printAddress(desc, index)
		if err := s.persistIndices(); err != nil {
			fatal("persist derivation index: %v", err)
		}
	case "new":
		index, _, err := s.tracker.Index().DeriveNew(k)
		if err != nil {
			fatal("derive address: %v", err)
		}
		printAddress(desc, index)
		if err := s.persistIndices(); err != nil {
			fatal("persist derivation index: %v", err)
		}
	case "list":
		for _, entry := range s.tracker.Index().ScriptsOfAllKeychains() {
			if entry.Keychain != k {
				continue
			}
			addr, err := desc.Address(entry.Index)
			if err != nil {
				fatal("derive address %d: %v", entry.Index, err)
			}
			used := s.tracker.Index().IsUsed(k, entry.Index)
			fmt.Printf("  [%d] %s%s\n", entry.Index, addr.EncodeAddress(), usedSuffix(used))
		}
	case "index":
		indices := s.tracker.Index().DerivationIndices()
		fmt.Printf("%d\n", indices[k])
	default:
		fatal("unknown address subcommand %q", sub)
	}
}

func usedSuffix(used bool) string {
	if used {
		return " (used)"
	}
	return ""
}

func printAddress(desc *descriptor.Single, index uint32) {
	addr, err := desc.Address(index)
	if err != nil {
		fatal("derive address %d: %v", index, err)
	}
	fmt.Printf("[%d] %s\n", index, addr.EncodeAddress())
}
