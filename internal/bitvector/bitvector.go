// Package bitvector implements fixed-width, unbounded-precision integer
// values with width-modular arithmetic, matching the semantics every
// Expression and Cell value in this module is ultimately grounded on.
package bitvector

import (
	"bytes"
	"encoding/gob"
	"math/big"
)

// BitVector is a (width in bits, magnitude) pair. All arithmetic is
// width-modular; signed operations interpret the top bit.
type BitVector struct {
	width uint16
	value *big.Int
}

// GobEncode/GobDecode let BitVector round-trip through persist's
// encoding/gob snapshot despite its unexported fields.
func (b BitVector) GobEncode() ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := gob.NewEncoder(buf)
	if err := enc.Encode(b.width); err != nil {
		return nil, err
	}
	var raw []byte
	if b.value != nil {
		raw = b.value.Bytes()
	}
	if err := enc.Encode(raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (b *BitVector) GobDecode(data []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(data))
	var width uint16
	if err := dec.Decode(&width); err != nil {
		return err
	}
	var raw []byte
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	b.width = width
	b.value = new(big.Int).SetBytes(raw)
	return nil
}

// New builds a BitVector of the given bit width holding value, reduced mod 2^width.
func New(width uint16, value uint64) BitVector {
	bv := BitVector{width: width, value: new(big.Int).SetUint64(value)}
	return bv.mask()
}

// FromBigInt builds a BitVector from an arbitrary-precision value, masked to width.
func FromBigInt(width uint16, value *big.Int) BitVector {
	bv := BitVector{width: width, value: new(big.Int).Set(value)}
	return bv.mask()
}

// Width returns the bit width.
func (b BitVector) Width() uint16 { return b.width }

// IsZero reports whether the magnitude is zero.
func (b BitVector) IsZero() bool { return b.value == nil || b.value.Sign() == 0 }

func (b BitVector) modulus() *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), uint(b.width))
}

func (b BitVector) mask() BitVector {
	if b.value == nil {
		b.value = new(big.Int)
	}
	m := b.modulus()
	v := new(big.Int).Mod(b.value, m)
	if v.Sign() < 0 {
		v.Add(v, m)
	}
	b.value = v
	return b
}

// Unsigned returns the unsigned magnitude as a uint64, truncating if width > 64.
func (b BitVector) Unsigned() uint64 { return b.value.Uint64() }

// UnsignedBig returns the unsigned magnitude as an arbitrary-precision value.
func (b BitVector) UnsignedBig() *big.Int { return new(big.Int).Set(b.value) }

// Signed returns the value interpreting the top bit as sign.
func (b BitVector) Signed() *big.Int {
	v := new(big.Int).Set(b.value)
	top := new(big.Int).Lsh(big.NewInt(1), uint(b.width)-1)
	if v.Cmp(top) >= 0 {
		v.Sub(v, b.modulus())
	}
	return v
}

// ConvertToUint64 is Unsigned with an explicit name mirroring the original
// source's ConvertTo<T>() helper used throughout the symbolic executor.
func (b BitVector) ConvertToUint64() uint64 { return b.Unsigned() }

func widthOf(a, b BitVector) uint16 {
	if a.width >= b.width {
		return a.width
	}
	return b.width
}

// Add returns a+b, modulo the wider of the two operand widths.
func Add(a, b BitVector) BitVector {
	return FromBigInt(widthOf(a, b), new(big.Int).Add(a.value, b.value))
}

// Sub returns a-b.
func Sub(a, b BitVector) BitVector {
	return FromBigInt(widthOf(a, b), new(big.Int).Sub(a.value, b.value))
}

// Mul returns a*b.
func Mul(a, b BitVector) BitVector {
	return FromBigInt(widthOf(a, b), new(big.Int).Mul(a.value, b.value))
}

// UDiv returns a/b unsigned. ok is false on division by zero.
func UDiv(a, b BitVector) (BitVector, bool) {
	if b.IsZero() {
		return BitVector{}, false
	}
	return FromBigInt(widthOf(a, b), new(big.Int).Div(a.value, b.value)), true
}

// SDiv returns a/b signed (truncating toward zero). ok is false on division by zero.
func SDiv(a, b BitVector) (BitVector, bool) {
	if b.Signed().Sign() == 0 {
		return BitVector{}, false
	}
	q := new(big.Int).Quo(a.Signed(), b.Signed())
	return FromBigInt(widthOf(a, b), q), true
}

// UMod returns a%b unsigned. ok is false on division by zero.
func UMod(a, b BitVector) (BitVector, bool) {
	if b.IsZero() {
		return BitVector{}, false
	}
	return FromBigInt(widthOf(a, b), new(big.Int).Mod(a.value, b.value)), true
}

// SMod returns a%b signed (truncating toward zero). ok is false on division by zero.
func SMod(a, b BitVector) (BitVector, bool) {
	if b.Signed().Sign() == 0 {
		return BitVector{}, false
	}
	r := new(big.Int).Rem(a.Signed(), b.Signed())
	return FromBigInt(widthOf(a, b), r), true
}

// And returns the bitwise AND of a and b.
func And(a, b BitVector) BitVector { return FromBigInt(widthOf(a, b), new(big.Int).And(a.value, b.value)) }

// Or returns the bitwise OR of a and b.
func Or(a, b BitVector) BitVector { return FromBigInt(widthOf(a, b), new(big.Int).Or(a.value, b.value)) }

// Xor returns the bitwise XOR of a and b.
func Xor(a, b BitVector) BitVector { return FromBigInt(widthOf(a, b), new(big.Int).Xor(a.value, b.value)) }

// Lsl performs a logical left shift of a by the unsigned value of shift.
func Lsl(a, shift BitVector) BitVector {
	n := uint(shift.Unsigned())
	return FromBigInt(a.width, new(big.Int).Lsh(a.value, n))
}

// Lsr performs a logical right shift of a by the unsigned value of shift.
func Lsr(a, shift BitVector) BitVector {
	n := uint(shift.Unsigned())
	return FromBigInt(a.width, new(big.Int).Rsh(a.value, n))
}

// Asr performs an arithmetic right shift of a by the unsigned value of shift.
func Asr(a, shift BitVector) BitVector {
	n := uint(shift.Unsigned())
	return FromBigInt(a.width, new(big.Int).Rsh(a.Signed(), n))
}

// Not returns the one's complement of a (within its width).
func Not(a BitVector) BitVector {
	return FromBigInt(a.width, new(big.Int).Sub(new(big.Int).Sub(a.modulus(), big.NewInt(1)), a.value))
}

// Neg returns the two's complement negation of a.
func Neg(a BitVector) BitVector { return FromBigInt(a.width, new(big.Int).Neg(a.value)) }

// Swap byte-swaps a within its width (width must be a multiple of 8).
func Swap(a BitVector) BitVector {
	nbytes := int(a.width) / 8
	if nbytes == 0 {
		return a
	}
	raw := a.value.Bytes()
	padded := make([]byte, nbytes)
	copy(padded[nbytes-len(raw):], raw)
	swapped := make([]byte, nbytes)
	for i, v := range padded {
		swapped[nbytes-1-i] = v
	}
	return FromBigInt(a.width, new(big.Int).SetBytes(swapped))
}

// Bsf returns the index of the least significant set bit, or a width-sized
// BitVector of all ones (matching the "not found" sentinel convention) when
// a is zero.
func Bsf(a BitVector) BitVector {
	if a.IsZero() {
		return Not(New(a.width, 0))
	}
	for i := 0; i < int(a.width); i++ {
		if a.value.Bit(i) != 0 {
			return New(a.width, uint64(i))
		}
	}
	return Not(New(a.width, 0))
}

// Bsr returns the index of the most significant set bit, or the same
// not-found sentinel as Bsf when a is zero.
func Bsr(a BitVector) BitVector {
	if a.IsZero() {
		return Not(New(a.width, 0))
	}
	return New(a.width, uint64(a.value.BitLen()-1))
}

// SignExtend returns a reinterpreted at a wider width, replicating the sign bit.
func SignExtend(a BitVector, width uint16) BitVector {
	return FromBigInt(width, a.Signed())
}

// ZeroExtend returns a reinterpreted at a wider width, padded with zero bits.
func ZeroExtend(a BitVector, width uint16) BitVector {
	return FromBigInt(width, a.value)
}

// BitCast reinterprets a's raw bit pattern at a new width (truncating or
// zero-padding, without sign awareness).
func BitCast(a BitVector, width uint16) BitVector {
	return FromBigInt(width, a.value)
}

// Compare reports whether a and b have identical width and value.
func Compare(a, b BitVector) bool {
	return a.width == b.width && a.value.Cmp(b.value) == 0
}

// String renders the BitVector as 0xHEX:width.
func (b BitVector) String() string {
	if b.value == nil {
		return "0x0:0"
	}
	return "0x" + b.value.Text(16) + ":" + itoa(b.width)
}

func itoa(w uint16) string {
	if w == 0 {
		return "0"
	}
	digits := [5]byte{}
	i := len(digits)
	for w > 0 {
		i--
		digits[i] = byte('0' + w%10)
		w /= 10
	}
	return string(digits[i:])
}
