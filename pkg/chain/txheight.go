package chain

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// TxHeight is the confirmation position of a transaction. It is either
// confirmed at a specific block height, or unconfirmed (mempool).
//
// Ordering: every Confirmed(h) sorts before Unconfirmed, regardless of h.
// This mirrors the derived Ord on the two-variant Rust enum this type is
// modelled on, where variant declaration order (Confirmed before
// Unconfirmed) decides cross-variant comparisons before any field is
// considered.
type TxHeight struct {
	confirmed bool
	height    uint32
}

// Confirmed returns a TxHeight confirmed at the given block height.
func Confirmed(height uint32) TxHeight {
	return TxHeight{confirmed: true, height: height}
}

// Unconfirmed is the mempool position.
var Unconfirmed = TxHeight{}

// TxHeightFromOptional mirrors From<Option<u32>> for TxHeight.
func TxHeightFromOptional(height *uint32) TxHeight {
	if height == nil {
		return Unconfirmed
	}
	return Confirmed(*height)
}

// IsConfirmed reports whether this position is a confirmed height.
func (h TxHeight) IsConfirmed() bool {
	return h.confirmed
}

// Height returns the confirmed height and true, or (0, false) if unconfirmed.
func (h TxHeight) Height() (uint32, bool) {
	return h.height, h.confirmed
}

// Compare returns -1, 0, or 1 as h sorts before, the same as, or after o.
func (h TxHeight) Compare(o TxHeight) int {
	switch {
	case h.confirmed && o.confirmed:
		switch {
		case h.height < o.height:
			return -1
		case h.height > o.height:
			return 1
		default:
			return 0
		}
	case h.confirmed && !o.confirmed:
		return -1
	case !h.confirmed && o.confirmed:
		return 1
	default:
		return 0
	}
}

// Less reports whether h sorts strictly before o.
func (h TxHeight) Less(o TxHeight) bool {
	return h.Compare(o) < 0
}

func (h TxHeight) String() string {
	if h.confirmed {
		return fmt.Sprintf("confirmed_at(%d)", h.height)
	}
	return "unconfirmed"
}

// txHeightWire is the gob-visible shape of TxHeight, needed because its
// real fields are unexported (kept that way so Unconfirmed can't be
// constructed with a stray height value).
type txHeightWire struct {
	Confirmed bool
	Height    uint32
}

// GobEncode implements gob.GobEncoder.
func (h TxHeight) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(txHeightWire{Confirmed: h.confirmed, Height: h.height})
	return buf.Bytes(), err
}

// GobDecode implements gob.GobDecoder.
func (h *TxHeight) GobDecode(data []byte) error {
	var w txHeightWire
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return err
	}
	h.confirmed = w.Confirmed
	h.height = w.Height
	return nil
}
