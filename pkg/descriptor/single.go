// Package descriptor provides a single concrete keychain.Descriptor: a
// single-sig P2WPKH chain derived from one BIP-32 extended key. Anything
// more expressive (miniscript, multisig, taproot) is out of scope — the
// core only needs something real to derive scripts from.
package descriptor

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/tyler-smith/go-bip32"
)

// Single derives P2WPKH scriptPubKeys for one BIP-32 chain (an account's
// external or internal branch). Index derivation is non-hardened, as is
// standard for a watch-only-safe receiving/change chain.
type Single struct {
	branchKey *bip32.Key
	params    *chaincfg.Params
}

// NewSingle derives the keychain.Descriptor for one branch (external or
// internal, i.e. BIP-44/84's `change` path component) under accountKey.
func NewSingle(accountKey *bip32.Key, branch uint32, params *chaincfg.Params) (*Single, error) {
	branchKey, err := accountKey.NewChildKey(branch)
	if err != nil {
		return nil, fmt.Errorf("derive branch %d: %w", branch, err)
	}
	return &Single{branchKey: branchKey, params: params}, nil
}

// DeriveScript derives the P2WPKH scriptPubKey at index.
func (s *Single) DeriveScript(index uint32) ([]byte, error) {
	child, err := s.branchKey.NewChildKey(index)
	if err != nil {
		return nil, fmt.Errorf("derive index %d: %w", index, err)
	}
	hash160 := btcutil.Hash160(child.PublicKey().Key)
	addr, err := btcutil.NewAddressWitnessPubKeyHash(hash160, s.params)
	if err != nil {
		return nil, fmt.Errorf("derive P2WPKH address at index %d: %w", index, err)
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, fmt.Errorf("build scriptPubKey at index %d: %w", index, err)
	}
	return script, nil
}

// Address derives the bech32 address at index, for display purposes
// (the CLI's `address` subcommands).
func (s *Single) Address(index uint32) (btcutil.Address, error) {
	child, err := s.branchKey.NewChildKey(index)
	if err != nil {
		return nil, fmt.Errorf("derive index %d: %w", index, err)
	}
	hash160 := btcutil.Hash160(child.PublicKey().Key)
	return btcutil.NewAddressWitnessPubKeyHash(hash160, s.params)
}
