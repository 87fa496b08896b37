package descriptor

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/tyler-smith/go-bip32"
)

// ParseSingle builds a Single descriptor from a serialized BIP-32
// extended key (xprv/xpub/tprv/tpub) and a branch (External/Internal's
// underlying BIP-44 `change` value: 0 or 1). Full descriptor-language
// parsing (miniscript, wpkh(...)-style wrappers) is explicitly out of
// scope; DESCRIPTOR/CHANGE_DESCRIPTOR are read as bare extended keys.
func ParseSingle(extendedKey string, branch uint32, params *chaincfg.Params) (*Single, error) {
	key, err := bip32.B58Deserialize(extendedKey)
	if err != nil {
		return nil, fmt.Errorf("parse extended key: %w", err)
	}
	return NewSingle(key, branch, params)
}
