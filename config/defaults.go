package config

import "github.com/bdk-go/walletchain/internal/wallet"

// DefaultMainnet returns the default wallet configuration for mainnet.
func DefaultMainnet() *Config {
	recommended := wallet.RecommendedParams()
	return &Config{
		Network:        Mainnet,
		DataDir:        DefaultDataDir(),
		ElectrumServer: "electrum.blockstream.info:50002",
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
		KDF: KDFConfig{
			MemoryKiB:   recommended.Memory,
			Iterations:  recommended.Iterations,
			Parallelism: recommended.Parallelism,
		},
	}
}

// DefaultTestnet returns the default wallet configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.ElectrumServer = "electrum.blockstream.info:60002"
	return cfg
}

// Default returns the default wallet configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet, Signet, Regtest:
		cfg := DefaultTestnet()
		cfg.Network = network
		return cfg
	default:
		return DefaultMainnet()
	}
}
