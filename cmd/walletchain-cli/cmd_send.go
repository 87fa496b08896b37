package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/bdk-go/walletchain/config"
	walletpkg "github.com/bdk-go/walletchain/internal/wallet"
	"github.com/bdk-go/walletchain/pkg/keychain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// cmdSend selects coins and builds an unsigned transaction paying value
// satoshis to address. Transaction signing is out of scope (see
// spec Non-goals); this prints the constructed transaction and the
// inputs a signer would need to cover, rather than broadcasting it.
func cmdSend(cfg *config.Config, args []string) {
	// -c can trail the positional args, which flag.FlagSet can't handle
	// (it stops parsing flags at the first non-flag argument), so scan
	// for it by hand, matching the global-flag scan in main().
	algo := "largest-first"
	var rest []string
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-c" && i+1 < len(args):
			algo = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-c="):
			algo = args[i][len("-c="):]
		default:
			rest = append(rest, args[i])
		}
	}

	if len(rest) != 2 {
		fatal("Usage: walletchain-cli send <value-sat> <address> [-c <algo>]")
	}
	value, err := strconv.ParseInt(rest[0], 10, 64)
	if err != nil || value <= 0 {
		fatal("invalid value %q: must be a positive integer number of satoshis", rest[0])
	}
	destAddrStr := rest[1]

	selector, ok := walletpkg.Selectors[algo]
	if !ok {
		fatal("unknown coin selection algorithm %q (want largest-first or oldest-first)", algo)
	}

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

	params := cfg.Network.Params()
	destAddr, err := btcutil.DecodeAddress(destAddrStr, params)
	if err != nil {
		fatal("decode address: %v", err)
	}
	destScript, err := txscript.PayToAddrScript(destAddr)
	if err != nil {
		fatal("build output script: %v", err)
	}

	var candidates []walletpkg.Candidate
	for _, u := range s.tracker.FullUtxos() {
		candidates = append(candidates, walletpkg.Candidate{
			Outpoint: u.Outpoint,
			TxOut:    u.TxOut,
			Height:   u.Height,
		})
	}

	selection, err := selector(candidates, value)
	if err != nil {
		fatal("select coins: %v", err)
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	for _, c := range selection.Inputs {
		tx.AddTxIn(wire.NewTxIn(&c.Outpoint, nil, nil))
	}
	tx.AddTxOut(wire.NewTxOut(value, destScript))

	if selection.Change > 0 {
		changeDesc := s.descriptorFor(keychain.Internal)
		if changeDesc == nil {
			changeDesc = s.ext
		}
		changeKeychain := keychain.Internal
		if s.change == nil {
			changeKeychain = keychain.External
		}
		index, changeScript, err := s.tracker.Index().NextUnused(changeKeychain)
		if err != nil {
			fatal("derive change address: %v", err)
		}
		tx.AddTxOut(wire.NewTxOut(selection.Change, changeScript))
		if err := s.persistIndices(); err != nil {
			fatal("persist derivation index: %v", err)
		}
		addr, err := changeDesc.Address(index)
		if err != nil {
			fatal("derive change address: %v", err)
		}
		fmt.Printf("Change: %d sat to %s[%d] (%s)\n", selection.Change, changeKeychain, index, addr.EncodeAddress())
	}

	fmt.Printf("Selected %d input(s) via %s, total %d sat\n", len(selection.Inputs), algo, selection.Total)
	for _, c := range selection.Inputs {
		fmt.Printf("  %s:%d  %d sat\n", c.Outpoint.Hash, c.Outpoint.Index, c.TxOut.Value)
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		fatal("serialize transaction: %v", err)
	}
	raw := buf.Bytes()

	fmt.Println()
	fmt.Println("Unsigned transaction (hex):")
	fmt.Println(hex.EncodeToString(raw))
	fmt.Println()
	fmt.Println("This transaction is not signed and was not broadcast: transaction")
	fmt.Println("signing is outside this library's scope. Sign it externally and")
	fmt.Println("submit the result via the configured Electrum server.")
}
