package config

import "fmt"

// Validate checks wallet config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	switch cfg.Network {
	case Mainnet, Testnet, Signet, Regtest:
	default:
		return fmt.Errorf("network must be one of %q, %q, %q, %q", Mainnet, Testnet, Signet, Regtest)
	}
	if cfg.Descriptor == "" {
		return fmt.Errorf("descriptor is required (set DESCRIPTOR or config key %q)", "descriptor")
	}
	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	if cfg.KDF.Iterations == 0 {
		return fmt.Errorf("kdf.iterations must be at least 1")
	}
	if cfg.KDF.Parallelism == 0 {
		return fmt.Errorf("kdf.parallelism must be at least 1")
	}
	return nil
}
