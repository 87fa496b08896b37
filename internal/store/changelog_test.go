package store

import (
	"errors"
	"testing"

	"github.com/bdk-go/walletchain/pkg/chain"
	"github.com/bdk-go/walletchain/pkg/keychain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

func hashFor(label string) chainhash.Hash {
	return chainhash.HashH([]byte(label))
}

func TestChangeLog_AppendAndLoad(t *testing.T) {
	log := NewChangeLog(NewMemory())

	h1 := hashFor("tx1")
	cs1 := keychain.ChangeSet{
		DerivationIndices: map[keychain.Keychain]uint32{keychain.External: 3},
		ChainChange: chain.ChangeSet{
			Chain: chain.SparseChangeSet{
				Txids: map[chainhash.Hash]*chain.TxHeight{h1: ptr(chain.Confirmed(10))},
			},
		},
	}
	h2 := hashFor("tx2")
	cs2 := keychain.ChangeSet{
		DerivationIndices: map[keychain.Keychain]uint32{keychain.External: 5, keychain.Internal: 1},
		ChainChange: chain.ChangeSet{
			Chain: chain.SparseChangeSet{
				Txids: map[chainhash.Hash]*chain.TxHeight{h2: ptr(chain.Unconfirmed)},
			},
		},
	}

	if err := log.AppendChangeset(cs1); err != nil {
		t.Fatalf("append cs1: %v", err)
	}
	if err := log.AppendChangeset(cs2); err != nil {
		t.Fatalf("append cs2: %v", err)
	}

	merged, err := log.LoadInto()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if merged.DerivationIndices[keychain.External] != 5 {
		t.Errorf("external index = %d, want 5 (pointwise max of 3 and 5)", merged.DerivationIndices[keychain.External])
	}
	if merged.DerivationIndices[keychain.Internal] != 1 {
		t.Errorf("internal index = %d, want 1", merged.DerivationIndices[keychain.Internal])
	}
	if len(merged.ChainChange.Chain.Txids) != 2 {
		t.Errorf("merged txids = %d, want 2", len(merged.ChainChange.Chain.Txids))
	}
}

func TestChangeLog_EmptyLog(t *testing.T) {
	log := NewChangeLog(NewMemory())
	merged, err := log.LoadInto()
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if !merged.IsEmpty() {
		t.Error("expected empty changeset from empty log")
	}
}

func TestChangeLog_AppendSkipsEmpty(t *testing.T) {
	db := NewMemory()
	log := NewChangeLog(db)
	if err := log.AppendChangeset(keychain.ChangeSet{}); err != nil {
		t.Fatalf("append empty: %v", err)
	}
	if ok, _ := db.Has(changelogKey); ok {
		t.Error("appending an empty changeset should not write a record")
	}
}

func TestChangeLog_TruncatedTrailingRecord(t *testing.T) {
	db := NewMemory()
	log := NewChangeLog(db)

	cs := keychain.ChangeSet{DerivationIndices: map[keychain.Keychain]uint32{keychain.External: 1}}
	if err := log.AppendChangeset(cs); err != nil {
		t.Fatalf("append: %v", err)
	}

	raw, _ := db.Get(changelogKey)
	truncated := append([]byte{}, raw...)
	truncated = append(truncated, 1, 0, 0, 0, 50) // version + a length header claiming 50 bytes that don't exist
	db.Put(changelogKey, truncated)

	merged, err := log.LoadInto()
	var truncErr *TruncatedLogError
	if !errors.As(err, &truncErr) {
		t.Fatalf("expected *TruncatedLogError, got %v", err)
	}
	if merged.DerivationIndices[keychain.External] != 1 {
		t.Errorf("valid prefix should still load: got %v", merged.DerivationIndices)
	}
}

func TestChangeLog_UnsupportedVersion(t *testing.T) {
	db := NewMemory()
	log := NewChangeLog(db)
	db.Put(changelogKey, []byte{9, 0, 0, 0, 0})

	_, err := log.LoadInto()
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestChangeLog_SetDerivationIndices(t *testing.T) {
	log := NewChangeLog(NewMemory())
	if err := log.SetDerivationIndices(map[keychain.Keychain]uint32{keychain.External: 2}); err != nil {
		t.Fatalf("set indices: %v", err)
	}
	merged, err := log.LoadInto()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if merged.DerivationIndices[keychain.External] != 2 {
		t.Errorf("got %v", merged.DerivationIndices)
	}
}

func ptr(h chain.TxHeight) *chain.TxHeight { return &h }
