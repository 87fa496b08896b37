// Package wallet implements the encrypted keystore walletchain-cli uses to
// hold a wallet's BIP-39 seed at rest, along with the recovery-phrase and
// Argon2id/XChaCha20-Poly1305 primitives the keystore is built on.
package wallet

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// keystoreFile is the on-disk JSON format for an encrypted wallet. It
// stores exactly the secret (an encrypted BIP-39 seed) and the two
// descriptor strings configured alongside it — no account list, no index
// bookkeeping. Derivation-index bookkeeping lives entirely in the
// core's KeychainTxOutIndex / ChangeSet, persisted via internal/store's
// changeset log instead of duplicated here.
type keystoreFile struct {
	Version          int       `json:"version"`
	CreatedAt        time.Time `json:"created_at"`
	EncryptedSeed    []byte    `json:"encrypted_seed"`
	Descriptor       string    `json:"descriptor"`
	ChangeDescriptor string    `json:"change_descriptor,omitempty"`
}

// Keystore manages a single encrypted wallet file on disk.
type Keystore struct {
	path string
}

// NewKeystore returns a keystore backed by the file at path. The file is
// not created until Create is called.
func NewKeystore(path string) *Keystore {
	return &Keystore{path: path}
}

// Create encrypts seed with password and writes a new keystore file,
// recording the external/change descriptor strings alongside it. It is
// an error to call Create when a file already exists at path.
func (ks *Keystore) Create(seed, password []byte, params EncryptionParams, descriptor, changeDescriptor string) error {
	if _, err := os.Stat(ks.path); err == nil {
		return fmt.Errorf("keystore file %q already exists", ks.path)
	}

	encrypted, err := Encrypt(seed, password, params)
	if err != nil {
		return fmt.Errorf("encrypt seed: %w", err)
	}

	kf := keystoreFile{
		Version:          1,
		CreatedAt:        time.Now().UTC(),
		EncryptedSeed:    encrypted,
		Descriptor:       descriptor,
		ChangeDescriptor: changeDescriptor,
	}
	return ks.writeFile(&kf)
}

// Seed decrypts and returns the wallet's seed bytes.
func (ks *Keystore) Seed(password []byte) ([]byte, error) {
	kf, err := ks.readFile()
	if err != nil {
		return nil, err
	}
	seed, err := Decrypt(kf.EncryptedSeed, password)
	if err != nil {
		return nil, fmt.Errorf("decrypt wallet: %w", err)
	}
	return seed, nil
}

// Descriptors returns the external and change descriptor strings stored
// alongside the seed. changeDescriptor is empty if the wallet has no
// internal chain configured.
func (ks *Keystore) Descriptors() (descriptor, changeDescriptor string, err error) {
	kf, err := ks.readFile()
	if err != nil {
		return "", "", err
	}
	return kf.Descriptor, kf.ChangeDescriptor, nil
}

// Exists reports whether a keystore file is present at path.
func (ks *Keystore) Exists() bool {
	_, err := os.Stat(ks.path)
	return err == nil
}

func (ks *Keystore) writeFile(kf *keystoreFile) error {
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal keystore: %w", err)
	}
	if err := os.WriteFile(ks.path, data, 0600); err != nil {
		return fmt.Errorf("write keystore: %w", err)
	}
	return nil
}

func (ks *Keystore) readFile() (*keystoreFile, error) {
	data, err := os.ReadFile(ks.path)
	if err != nil {
		return nil, fmt.Errorf("read keystore: %w", err)
	}
	var kf keystoreFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parse keystore: %w", err)
	}
	if kf.Version != 1 {
		return nil, fmt.Errorf("unsupported keystore version: %d", kf.Version)
	}
	return &kf, nil
}
