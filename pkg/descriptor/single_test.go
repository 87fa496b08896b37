package descriptor

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/tyler-smith/go-bip32"
)

func testAccountKey(t *testing.T) *bip32.Key {
	t.Helper()
	seed := bytes.Repeat([]byte{0x07}, 32)
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		t.Fatalf("NewMasterKey: %v", err)
	}
	return master
}

func TestDeriveScriptIsP2WPKH(t *testing.T) {
	single, err := NewSingle(testAccountKey(t), 0, &chaincfg.TestNet3Params)
	if err != nil {
		t.Fatalf("NewSingle: %v", err)
	}

	script, err := single.DeriveScript(0)
	if err != nil {
		t.Fatalf("DeriveScript: %v", err)
	}

	class := txscript.GetScriptClass(script)
	if class != txscript.WitnessV0PubKeyHashTy {
		t.Errorf("script class = %v, want WitnessV0PubKeyHashTy", class)
	}
}

func TestDeriveScriptDeterministic(t *testing.T) {
	single, err := NewSingle(testAccountKey(t), 0, &chaincfg.TestNet3Params)
	if err != nil {
		t.Fatalf("NewSingle: %v", err)
	}

	a, err := single.DeriveScript(3)
	if err != nil {
		t.Fatalf("DeriveScript: %v", err)
	}
	b, err := single.DeriveScript(3)
	if err != nil {
		t.Fatalf("DeriveScript: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("DeriveScript should be deterministic for the same index")
	}

	c, err := single.DeriveScript(4)
	if err != nil {
		t.Fatalf("DeriveScript: %v", err)
	}
	if bytes.Equal(a, c) {
		t.Error("different indices should derive different scripts")
	}
}

func TestExternalAndInternalBranchesDiffer(t *testing.T) {
	account := testAccountKey(t)
	external, err := NewSingle(account, 0, &chaincfg.TestNet3Params)
	if err != nil {
		t.Fatalf("NewSingle external: %v", err)
	}
	internal, err := NewSingle(account, 1, &chaincfg.TestNet3Params)
	if err != nil {
		t.Fatalf("NewSingle internal: %v", err)
	}

	extScript, _ := external.DeriveScript(0)
	intScript, _ := internal.DeriveScript(0)
	if bytes.Equal(extScript, intScript) {
		t.Error("external and internal branches should derive different scripts at the same index")
	}
}

func TestAddress(t *testing.T) {
	single, err := NewSingle(testAccountKey(t), 0, &chaincfg.TestNet3Params)
	if err != nil {
		t.Fatalf("NewSingle: %v", err)
	}
	addr, err := single.Address(0)
	if err != nil {
		t.Fatalf("Address: %v", err)
	}
	if addr.String() == "" {
		t.Error("expected non-empty address string")
	}
}
