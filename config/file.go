package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadFile loads configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// ApplyEnv overlays the well-known environment variables on top of cfg.
// These take precedence over the config file, matching the CLI's
// documented DESCRIPTOR / CHANGE_DESCRIPTOR / BITCOIN_NETWORK surface.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("DESCRIPTOR"); v != "" {
		cfg.Descriptor = v
	}
	if v := os.Getenv("CHANGE_DESCRIPTOR"); v != "" {
		cfg.ChangeDescriptor = v
	}
	if v := os.Getenv("BITCOIN_NETWORK"); v != "" {
		cfg.Network = NetworkType(v)
	}
	if v := os.Getenv("WALLETCHAIN_DATADIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("ELECTRUM_SERVER"); v != "" {
		cfg.ElectrumServer = v
	}
}

// setConfigValue sets a config value by key.
func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	case "network":
		cfg.Network = NetworkType(value)
	case "datadir":
		cfg.DataDir = value
	case "descriptor":
		cfg.Descriptor = value
	case "change_descriptor":
		cfg.ChangeDescriptor = value
	case "electrum.server":
		cfg.ElectrumServer = value
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)
	case "kdf.memory_kib":
		cfg.KDF.MemoryKiB = parseUint32(value, cfg.KDF.MemoryKiB)
	case "kdf.iterations":
		cfg.KDF.Iterations = parseUint32(value, cfg.KDF.Iterations)
	case "kdf.parallelism":
		if v := parseUint32(value, uint32(cfg.KDF.Parallelism)); v <= 255 {
			cfg.KDF.Parallelism = uint8(v)
		}
	default:
		// Unknown keys are ignored
	}
	return nil
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// parseUint32 parses s as an unsigned integer, falling back to the given
// default on malformed input rather than failing the whole config load.
func parseUint32(s string, fallback uint32) uint32 {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return fallback
	}
	return uint32(v)
}

// WriteDefaultConfig writes a default configuration file.
func WriteDefaultConfig(path string, network NetworkType) error {
	content := `# walletchain configuration
#
# DESCRIPTOR / CHANGE_DESCRIPTOR / BITCOIN_NETWORK environment variables
# override the values below.

# Network: mainnet, testnet, signet, or regtest
network = ` + string(network) + `

# Data directory (default: ~/.walletchain)
# datadir = ~/.walletchain

# Bare BIP-32 extended key for the external (receive) chain.
# descriptor = tprv...

# Bare BIP-32 extended key for the internal (change) chain. Optional.
# change_descriptor = tprv...

# Electrum server, host:port (TLS)
# electrum.server = electrum.blockstream.info:60002

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false

# ============================================================================
# Keystore password KDF (Argon2id)
# ============================================================================

# kdf.memory_kib = 65536
# kdf.iterations = 3
# kdf.parallelism = 4
`
	return os.WriteFile(path, []byte(content), 0644)
}
