// Package keychain maps derived script pubkeys to (keychain, index) pairs
// and bundles that index with a ChainGraph into a tracker capable of
// answering UTXO and balance queries.
package keychain

// Keychain names a descriptor's role within a wallet. This library ships
// exactly two: the receiving (external) chain and the change (internal)
// chain, which is all a single-descriptor wallet needs and all
// pkg/descriptor derives scripts for.
type Keychain string

const (
	// External is the receiving-address keychain.
	External Keychain = "external"
	// Internal is the change-address keychain.
	Internal Keychain = "internal"
)

func (k Keychain) String() string { return string(k) }
