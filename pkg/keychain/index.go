package keychain

import (
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/wire"
)

// scriptEntry is the per-index bookkeeping the index keeps for one derived
// script: whether an observed output has ever used it.
type scriptEntry struct {
	script []byte
	used   bool
}

// TxOutIndex maps derived script pubkeys to the (keychain, index) pair
// that produced them, and back. It never derives key material itself —
// that's Descriptor's job — it only remembers what it has already derived
// and which of those scripts outputs have actually used.
type TxOutIndex struct {
	descriptors map[Keychain]Descriptor
	// scripts[k] is ordered by index ascending; scripts[k][i] is the
	// entry for derivation index i.
	scripts map[Keychain][]scriptEntry
	// spkToOwner maps a script (as a string key) back to its keychain and
	// index, for ScanTxOut.
	spkToOwner map[string]owner
	// derivationIndices is the highest index ever seen for a keychain,
	// either by direct derivation or by merging in a changeset. It never
	// decreases.
	derivationIndices map[Keychain]uint32
	// outpointOwner records which keychain/index a scanned output's
	// script belongs to, keyed by the outpoint that carries it.
	outpointOwner map[wire.OutPoint]owner
}

type owner struct {
	Keychain Keychain
	Index    uint32
}

// New returns an index with no registered keychains.
func New() *TxOutIndex {
	return &TxOutIndex{
		descriptors:       make(map[Keychain]Descriptor),
		scripts:           make(map[Keychain][]scriptEntry),
		spkToOwner:        make(map[string]owner),
		derivationIndices: make(map[Keychain]uint32),
		outpointOwner:     make(map[wire.OutPoint]owner),
	}
}

// AddKeychain registers descriptor under keychain k. It is an error to
// register the same keychain twice with a different descriptor.
func (idx *TxOutIndex) AddKeychain(k Keychain, descriptor Descriptor) error {
	if existing, ok := idx.descriptors[k]; ok && existing != descriptor {
		return fmt.Errorf("keychain %s already registered with a different descriptor", k)
	}
	idx.descriptors[k] = descriptor
	if _, ok := idx.scripts[k]; !ok {
		idx.scripts[k] = nil
	}
	return nil
}

// DeriveNew advances k's derivation index by one and returns the newly
// derived (index, script), regardless of whether any prior script has
// been used.
func (idx *TxOutIndex) DeriveNew(k Keychain) (uint32, []byte, error) {
	descriptor, ok := idx.descriptors[k]
	if !ok {
		return 0, nil, fmt.Errorf("keychain %s not registered", k)
	}
	next := uint32(len(idx.scripts[k]))
	script, err := descriptor.DeriveScript(next)
	if err != nil {
		return 0, nil, fmt.Errorf("derive script for keychain %s index %d: %w", k, next, err)
	}
	idx.scripts[k] = append(idx.scripts[k], scriptEntry{script: script})
	idx.spkToOwner[string(script)] = owner{Keychain: k, Index: next}
	idx.bumpDerivationIndex(k, next)
	return next, script, nil
}

// NextUnused returns the lowest-index derived-but-unused script for k,
// deriving a new one if every script derived so far has been used (or
// none has been derived yet).
func (idx *TxOutIndex) NextUnused(k Keychain) (uint32, []byte, error) {
	for i, entry := range idx.scripts[k] {
		if !entry.used {
			return uint32(i), entry.script, nil
		}
	}
	return idx.DeriveNew(k)
}

// ScanTxOut checks whether txout's script matches a known derived script.
// If it does, the script is marked used and op is recorded as owned by
// that keychain/index. Returns the owning keychain and index, if matched.
func (idx *TxOutIndex) ScanTxOut(op wire.OutPoint, txout wire.TxOut) (Keychain, uint32, bool) {
	own, ok := idx.spkToOwner[string(txout.PkScript)]
	if !ok {
		return "", 0, false
	}
	entries := idx.scripts[own.Keychain]
	entries[own.Index].used = true
	idx.outpointOwner[op] = own
	return own.Keychain, own.Index, true
}

// Owner returns the keychain/index that owns op, if ScanTxOut has
// previously matched an output at that outpoint.
func (idx *TxOutIndex) Owner(op wire.OutPoint) (Keychain, uint32, bool) {
	own, ok := idx.outpointOwner[op]
	return own.Keychain, own.Index, ok
}

// IsUsed reports whether the script at keychain k, index i has ever
// appeared in a scanned output.
func (idx *TxOutIndex) IsUsed(k Keychain, i uint32) bool {
	entries := idx.scripts[k]
	if int(i) >= len(entries) {
		return false
	}
	return entries[i].used
}

// DerivationIndices returns a copy of the highest derivation index seen
// per keychain.
func (idx *TxOutIndex) DerivationIndices() map[Keychain]uint32 {
	out := make(map[Keychain]uint32, len(idx.derivationIndices))
	for k, v := range idx.derivationIndices {
		out[k] = v
	}
	return out
}

// ScriptAt returns the script cached at keychain k, index i, if it has
// already been derived.
func (idx *TxOutIndex) ScriptAt(k Keychain, i uint32) ([]byte, bool) {
	entries := idx.scripts[k]
	if int(i) >= len(entries) {
		return nil, false
	}
	return entries[i].script, true
}

// ScriptEntry pairs a derivation index with its script, for
// ScriptsOfAllKeychains.
type ScriptEntry struct {
	Keychain Keychain
	Index    uint32
	Script   []byte
}

// ScriptsOfAllKeychains returns every script derived so far, across every
// registered keychain, ordered by keychain name then index. This is the
// list a syncer scans against an external source (Electrum, Esplora) to
// discover wallet activity; callers needing more should DeriveNew further
// and call this again, since the cache only grows lazily.
func (idx *TxOutIndex) ScriptsOfAllKeychains() []ScriptEntry {
	var keychains []Keychain
	for k := range idx.scripts {
		keychains = append(keychains, k)
	}
	sort.Slice(keychains, func(i, j int) bool { return keychains[i] < keychains[j] })

	var out []ScriptEntry
	for _, k := range keychains {
		for i, entry := range idx.scripts[k] {
			out = append(out, ScriptEntry{Keychain: k, Index: uint32(i), Script: entry.script})
		}
	}
	return out
}

// bumpDerivationIndex enforces the monotonic-non-decreasing property:
// derivationIndices[k] only ever grows, whether advanced by direct
// derivation or merged in from a persisted changeset.
func (idx *TxOutIndex) bumpDerivationIndex(k Keychain, i uint32) {
	if cur, ok := idx.derivationIndices[k]; !ok || i > cur {
		idx.derivationIndices[k] = i
	}
}

// CatchUpTo ensures k has derived at least through index i (inclusive),
// deriving any intervening scripts as needed. Used when a changeset
// raises derivation_indices[k] above what this index has locally derived
// (e.g. after loading a persisted advance from another process).
func (idx *TxOutIndex) CatchUpTo(k Keychain, i uint32) error {
	for uint32(len(idx.scripts[k])) <= i {
		if _, _, err := idx.DeriveNew(k); err != nil {
			return err
		}
	}
	idx.bumpDerivationIndex(k, i)
	return nil
}
