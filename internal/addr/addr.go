// Package addr implements Address, the (base, offset) location used
// throughout the Document model.
package addr

import "fmt"

// Address is a (base, offset) pair with independent bit widths, ordered
// lexicographically: base first, then offset.
type Address struct {
	Base       uint64
	Offset     uint64
	BaseSize   uint8
	OffsetSize uint8
}

// New builds an Address with default 64-bit base/offset widths.
func New(base, offset uint64) Address {
	return Address{Base: base, Offset: offset, BaseSize: 64, OffsetSize: 64}
}

// NewSized builds an Address with explicit base/offset bit widths.
func NewSized(base, offset uint64, baseSize, offsetSize uint8) Address {
	return Address{Base: base, Offset: offset, BaseSize: baseSize, OffsetSize: offsetSize}
}

// IsZero reports whether a is the zero-value (invalid/unset) address.
func (a Address) IsZero() bool {
	return a.Base == 0 && a.Offset == 0 && a.BaseSize == 0 && a.OffsetSize == 0
}

// Compare orders addresses lexicographically by (Base, Offset). It returns
// -1, 0 or 1, matching the contract required to keep MemoryAreas and cell
// stores in address order.
func Compare(a, b Address) int {
	switch {
	case a.Base < b.Base:
		return -1
	case a.Base > b.Base:
		return 1
	case a.Offset < b.Offset:
		return -1
	case a.Offset > b.Offset:
		return 1
	default:
		return 0
	}
}

// Less reports whether a orders before b.
func Less(a, b Address) bool { return Compare(a, b) < 0 }

// Add returns a new Address with offset advanced by delta (may be negative).
func (a Address) Add(delta int64) Address {
	if delta >= 0 {
		a.Offset += uint64(delta)
	} else {
		a.Offset -= uint64(-delta)
	}
	return a
}

// Delta returns the signed distance b - a, assuming equal bases.
func Delta(a, b Address) int64 {
	return int64(b.Offset) - int64(a.Offset)
}

// SameArea reports whether a and b share the same base.
func SameArea(a, b Address) bool { return a.Base == b.Base }

// String renders the address as base:offset in hex, e.g. "0:7c00".
func (a Address) String() string {
	return fmt.Sprintf("%x:%x", a.Base, a.Offset)
}

// List is a slice of Address, kept for parity with the vocabulary used by
// the analyzer (work-lists, function-address lists).
type List = []Address
