package keychain

import "testing"

func TestChangeSetAppendDerivationIndices(t *testing.T) {
	lhs := ChangeSet{DerivationIndices: map[Keychain]uint32{
		"One": 7, "Two": 0, "Three": 3,
	}}
	rhs := ChangeSet{DerivationIndices: map[Keychain]uint32{
		"One": 3, "Two": 5, "Four": 4,
	}}

	got := lhs.Append(rhs)

	want := map[Keychain]uint32{"One": 7, "Two": 5, "Three": 3, "Four": 4}
	if len(got.DerivationIndices) != len(want) {
		t.Fatalf("got %v, want %v", got.DerivationIndices, want)
	}
	for k, v := range want {
		if got.DerivationIndices[k] != v {
			t.Errorf("DerivationIndices[%s] = %d, want %d", k, got.DerivationIndices[k], v)
		}
	}
}

func TestChangeSetIsEmpty(t *testing.T) {
	var cs ChangeSet
	if !cs.IsEmpty() {
		t.Error("zero-value ChangeSet should be empty")
	}

	nonEmpty := ChangeSet{DerivationIndices: map[Keychain]uint32{"One": 1}}
	if nonEmpty.IsEmpty() {
		t.Error("ChangeSet with derivation indices should not be empty")
	}
}

func TestChangeSetAppendAssociative(t *testing.T) {
	a := ChangeSet{DerivationIndices: map[Keychain]uint32{"One": 1}}
	b := ChangeSet{DerivationIndices: map[Keychain]uint32{"One": 2, "Two": 1}}
	c := ChangeSet{DerivationIndices: map[Keychain]uint32{"Two": 5, "Three": 1}}

	left := a.Append(b).Append(c)
	right := a.Append(b.Append(c))

	for _, k := range []Keychain{"One", "Two", "Three"} {
		if left.DerivationIndices[k] != right.DerivationIndices[k] {
			t.Errorf("keychain %s: left=%d right=%d", k, left.DerivationIndices[k], right.DerivationIndices[k])
		}
	}
}
