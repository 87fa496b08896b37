// walletchain-cli is a command-line client for a single watch-only
// walletchain wallet: no node, no RPC, just a local changeset log, a
// descriptor-derived keychain index, and a reference Electrum syncer.
package main

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/bdk-go/walletchain/config"
	"golang.org/x/term"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	dataDir := ""
	network := ""

	// Scan for --datadir and --network before the subcommand, matching
	// the global-flag style of a node CLI even though this one talks to
	// no node.
	args := os.Args[1:]
	for len(args) > 0 {
		switch {
		case args[0] == "--datadir" && len(args) > 1:
			dataDir = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--datadir="):
			dataDir = args[0][len("--datadir="):]
			args = args[1:]
		case args[0] == "--network" && len(args) > 1:
			network = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--network="):
			network = args[0][len("--network="):]
			args = args[1:]
		default:
			goto dispatch
		}
	}

dispatch:
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cfg, err := loadConfig(dataDir, network)
	if err != nil {
		fatal("load config: %v", err)
	}

	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "init":
		cmdInit(cfg, cmdArgs)
	case "address":
		cmdAddress(cfg, cmdArgs)
	case "balance":
		cmdBalance(cfg, cmdArgs)
	case "txout":
		cmdTxOut(cfg, cmdArgs)
	case "send":
		cmdSend(cfg, cmdArgs)
	case "broadcast":
		cmdBroadcast(cfg, cmdArgs)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: walletchain-cli [global flags] <command> [flags]

Global flags:
  --datadir <path>   Data directory (default: ~/.walletchain)
  --network <net>    mainnet, testnet (default), signet, or regtest

Environment:
  DESCRIPTOR          Bare BIP-32 extended key for the external (receive) chain
  CHANGE_DESCRIPTOR   Bare BIP-32 extended key for the internal (change) chain
  BITCOIN_NETWORK     Overrides --network
  ELECTRUM_SERVER     host:port of an Electrum server to sync against

Commands:
  init                            Generate a mnemonic and create the keystore
  address next [--change]         Show the next unused address
  address new [--change]          Derive and show a brand new address
  address list [--change]         List every address derived so far
  address index [--change]        Show the current derivation index
  balance                         Show the wallet's balance by trust bucket
  txout list                      List every unspent output the wallet owns
  send <value> <address> [-c <algo>]
                                  Select coins and build an unsigned transaction
                                  (-c largest-first|oldest-first, default largest-first)
  broadcast <signed-tx-hex>       Submit an externally-signed transaction
`)
}

// ── Password helper ─────────────────────────────────────────────────────

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, err
	}
	return password, nil
}

// ── Error helper ────────────────────────────────────────────────────────

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// ── Config loading ──────────────────────────────────────────────────────

func loadConfig(dataDirFlag, networkFlag string) (*config.Config, error) {
	network := config.Testnet
	if networkFlag != "" {
		network = config.NetworkType(networkFlag)
	}
	if v := os.Getenv("BITCOIN_NETWORK"); v != "" {
		network = config.NetworkType(v)
	}

	cfg := config.Default(network)
	if dataDirFlag != "" {
		cfg.DataDir = dataDirFlag
	}

	if values, err := config.LoadFile(cfg.ConfigFile()); err == nil {
		if err := config.ApplyFileConfig(cfg, values); err != nil {
			return nil, err
		}
	}
	config.ApplyEnv(cfg)

	return cfg, nil
}
