package wallet

import (
	"fmt"

	"github.com/tyler-smith/go-bip39"
)

// RecoveryPhraseWords is the word count of the recovery phrase a keystore
// generates. walletchain always uses the 24-word form; the BIP-39
// shorter variants (12/15/18/21 words) are only accepted when restoring
// from a phrase someone else generated.
const RecoveryPhraseWords = 24

// recoveryPhraseEntropyBits is the entropy size that yields a
// RecoveryPhraseWords-word mnemonic (go-bip39 appends a checksum derived
// from the entropy itself, per BIP-39 §"Generating the mnemonic").
const recoveryPhraseEntropyBits = 256

// KeystoreSeedSize is the length in bytes of the value KeystoreSeed
// returns (512 bits, per BIP-39's PBKDF2-HMAC-SHA512 stretch).
const KeystoreSeedSize = 64

// NewRecoveryPhrase generates a fresh 24-word BIP-39 recovery phrase for
// a new keystore.
func NewRecoveryPhrase() (string, error) {
	entropy, err := bip39.NewEntropy(recoveryPhraseEntropyBits)
	if err != nil {
		return "", fmt.Errorf("wallet: generate recovery phrase entropy: %w", err)
	}
	phrase, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("wallet: generate recovery phrase: %w", err)
	}
	return phrase, nil
}

// ValidRecoveryPhrase reports whether phrase is a well-formed BIP-39
// mnemonic: known word count, every word in the wordlist, correct
// checksum. It accepts any of the BIP-39 word counts, not just
// RecoveryPhraseWords, so a keystore can be restored from a phrase
// generated elsewhere.
func ValidRecoveryPhrase(phrase string) bool {
	return bip39.IsMnemonicValid(phrase)
}

// KeystoreSeed derives the seed a keystore encrypts at rest from a
// recovery phrase and an optional BIP-39 passphrase. Returns an error if
// phrase does not satisfy ValidRecoveryPhrase.
func KeystoreSeed(phrase, passphrase string) ([]byte, error) {
	if !ValidRecoveryPhrase(phrase) {
		return nil, fmt.Errorf("wallet: recovery phrase failed BIP-39 validation")
	}
	seed, err := bip39.NewSeedWithErrorChecking(phrase, passphrase)
	if err != nil {
		return nil, fmt.Errorf("wallet: derive keystore seed: %w", err)
	}
	return seed, nil
}
