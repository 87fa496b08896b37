package descriptor

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
)

func TestParseSingleRoundTrip(t *testing.T) {
	master := testAccountKey(t)
	serialized := master.B58Serialize()

	single, err := ParseSingle(serialized, 0, &chaincfg.TestNet3Params)
	if err != nil {
		t.Fatalf("ParseSingle: %v", err)
	}

	direct, err := NewSingle(master, 0, &chaincfg.TestNet3Params)
	if err != nil {
		t.Fatalf("NewSingle: %v", err)
	}

	a, err := single.DeriveScript(0)
	if err != nil {
		t.Fatalf("DeriveScript: %v", err)
	}
	b, err := direct.DeriveScript(0)
	if err != nil {
		t.Fatalf("DeriveScript: %v", err)
	}
	if string(a) != string(b) {
		t.Error("ParseSingle should derive the same scripts as constructing directly from the key")
	}
}

func TestParseSingleRejectsGarbage(t *testing.T) {
	_, err := ParseSingle("not-a-real-extended-key", 0, &chaincfg.TestNet3Params)
	if err == nil {
		t.Error("expected an error parsing a malformed extended key")
	}
}
