package keychain

import "github.com/bdk-go/walletchain/pkg/chain"

// ChangeSet is the unit of persistence: a monotonic merge of per-keychain
// derivation-index progress and the ChainGraph mutations observed since
// the last persisted changeset.
type ChangeSet struct {
	DerivationIndices map[Keychain]uint32
	ChainChange       chain.ChangeSet
}

// IsEmpty reports whether applying this changeset would be a no-op.
func (cs ChangeSet) IsEmpty() bool {
	return len(cs.DerivationIndices) == 0 && cs.ChainChange.IsEmpty()
}

// Append merges other into cs and returns the result: derivation indices
// merge pointwise-max (never decreasing), and the chain change is
// overlaid with other winning on any conflicting key, matching
// chain.ChangeSet.Append's semantics. a.Append(b) must be equivalent to
// applying a then applying b, for any two changesets taken from a single
// tracker's history in order.
func (cs ChangeSet) Append(other ChangeSet) ChangeSet {
	merged := make(map[Keychain]uint32, len(cs.DerivationIndices)+len(other.DerivationIndices))
	for k, v := range cs.DerivationIndices {
		merged[k] = v
	}
	for k, v := range other.DerivationIndices {
		if cur, ok := merged[k]; !ok || v > cur {
			merged[k] = v
		}
	}
	return ChangeSet{
		DerivationIndices: merged,
		ChainChange:       cs.ChainChange.Append(other.ChainChange),
	}
}
