// Package config handles application configuration for the walletchain CLI.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/bdk-go/walletchain/internal/wallet"
	"github.com/btcsuite/btcd/chaincfg"
)

// NetworkType identifies which Bitcoin network the wallet operates on.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
	Signet  NetworkType = "signet"
	Regtest NetworkType = "regtest"
)

// Params resolves the chaincfg.Params for the configured network.
func (n NetworkType) Params() *chaincfg.Params {
	switch n {
	case Mainnet:
		return &chaincfg.MainNetParams
	case Signet:
		return &chaincfg.SigNetParams
	case Regtest:
		return &chaincfg.RegressionNetParams
	default:
		return &chaincfg.TestNet3Params
	}
}

// Config holds runtime configuration for the walletchain CLI.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Descriptor is the bare BIP-32 extended public/private key used to
	// derive the external (receive) chain. Required.
	Descriptor string `conf:"descriptor"`

	// ChangeDescriptor derives the internal (change) chain. If empty, the
	// wallet runs external-only.
	ChangeDescriptor string `conf:"change_descriptor"`

	// Electrum server to sync against, host:port.
	ElectrumServer string `conf:"electrum.server"`

	// Logging
	Log LogConfig

	// KDF holds the keystore's password-derivation cost parameters.
	KDF KDFConfig
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// KDFConfig holds the Argon2id cost parameters the keystore uses to turn
// a wallet password into an encryption key. Operators running on
// memory-constrained hosts may need to lower kdf.memory_kib; raising
// kdf.iterations trades keystore-open latency for brute-force resistance.
type KDFConfig struct {
	MemoryKiB   uint32 `conf:"kdf.memory_kib"`
	Iterations  uint32 `conf:"kdf.iterations"`
	Parallelism uint8  `conf:"kdf.parallelism"`
}

// EncryptionParams converts KDF into the parameter type internal/wallet's
// keystore encryption expects. DefaultMainnet seeds KDF itself from
// wallet.RecommendedParams, so an operator who never touches kdf.* in
// their config file gets exactly what the keystore package recommends.
func (k KDFConfig) EncryptionParams() wallet.EncryptionParams {
	return wallet.EncryptionParams{
		Memory:      k.MemoryKiB,
		Iterations:  k.Iterations,
		Parallelism: k.Parallelism,
	}
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.walletchain
//	macOS:   ~/Library/Application Support/Walletchain
//	Windows: %APPDATA%\Walletchain
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".walletchain"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Walletchain")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Walletchain")
		}
		return filepath.Join(home, "AppData", "Roaming", "Walletchain")
	default:
		return filepath.Join(home, ".walletchain")
	}
}

// NetworkDataDir returns the network-specific data directory.
func (c *Config) NetworkDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// StoreDir returns the changeset-log storage directory.
func (c *Config) StoreDir() string {
	return filepath.Join(c.NetworkDataDir(), "store")
}

// KeystoreFile returns the encrypted-seed keystore file path.
func (c *Config) KeystoreFile() string {
	return filepath.Join(c.NetworkDataDir(), "keystore.json")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "walletchain.conf")
}
