package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/bdk-go/walletchain/config"
	walletpkg "github.com/bdk-go/walletchain/internal/wallet"
)

// cmdInit creates the encrypted keystore backing DESCRIPTOR /
// CHANGE_DESCRIPTOR: either a freshly generated 24-word recovery phrase,
// or one supplied with --mnemonic for recovery.
func cmdInit(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	phraseFlag := fs.String("mnemonic", "", "Restore from an existing BIP-39 recovery phrase instead of generating one")
	passphrase := fs.String("passphrase", "", "Optional BIP-39 passphrase")
	fs.Parse(args)

	if cfg.Descriptor == "" {
		fatal("DESCRIPTOR must be set (see walletchain-cli help)")
	}

	if err := os.MkdirAll(cfg.NetworkDataDir(), 0755); err != nil {
		fatal("create data directory: %v", err)
	}

	phrase := *phraseFlag
	generated := false
	if phrase == "" {
		var err error
		phrase, err = walletpkg.NewRecoveryPhrase()
		if err != nil {
			fatal("generate recovery phrase: %v", err)
		}
		generated = true
	} else if !walletpkg.ValidRecoveryPhrase(phrase) {
		fatal("invalid recovery phrase")
	}

	seed, err := walletpkg.KeystoreSeed(phrase, *passphrase)
	if err != nil {
		fatal("derive seed: %v", err)
	}
	defer func() {
		for i := range seed {
			seed[i] = 0
		}
	}()

	password, err := readPassword("New keystore password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	if string(password) != string(confirm) {
		fatal("passwords do not match")
	}

	ks := walletpkg.NewKeystore(cfg.KeystoreFile())
	if err := ks.Create(seed, password, cfg.KDF.EncryptionParams(), cfg.Descriptor, cfg.ChangeDescriptor); err != nil {
		fatal("create keystore: %v", err)
	}

	fmt.Printf("Keystore created at %s\n", cfg.KeystoreFile())
	if generated {
		fmt.Println()
		fmt.Println("Write down this recovery phrase and store it somewhere safe.")
		fmt.Println("It is the only way to recover the wallet's seed:")
		fmt.Println()
		fmt.Printf("  %s\n\n", phrase)
	}
}
