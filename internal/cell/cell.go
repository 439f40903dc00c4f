// Package cell implements the disassembly units placed at addresses:
// Instruction and Value cells, and the MultiCell grouping annotation.
package cell

import "disasm/internal/expr"

// Type distinguishes the kind of datum held at an address.
type Type int

const (
	TypeInstruction Type = iota
	TypeValue
	String
	Character
)

// SubType is a bitmask of kind-dependent flags. For Instruction cells it is
// drawn from {None, Conditional, Jump, Call, Return}; for Value cells it is
// drawn from the modifier flags below.
type SubType uint32

const (
	None        SubType = 0
	Conditional SubType = 1 << iota
	Jump
	Call
	Return
)

// Modifier flags for Value cells.
const (
	ModCharacter SubType = 1 << iota
	ModReference
	ModNot
	ModNegate
)

// FormatStyle is a display hint (hex/decimal/octal/binary/...).
type FormatStyle int

const (
	FormatDefault FormatStyle = iota
	FormatHex
	FormatDecimal
	FormatOctal
	FormatBinary
)

// Operand is one decoded operand descriptor attached to an Instruction cell.
// Architecture backends populate Text for display only; branch and data
// references are resolved from the Instruction's Semantic IR.
type Operand struct {
	Text string
}

// Instruction carries a decoded instruction's mnemonic, operand text, and
// semantic IR (the list of Expressions it lowers to).
type Instruction struct {
	Mnemonic string
	Operands []Operand
	Semantic []expr.Expression
	SubType  SubType
}

// Value carries a data cell's numeric representation.
type Value struct {
	Width     uint8 // 8, 16, 32 or 64
	Modifiers SubType
	Bytes     []byte
}

// Header is the common metadata every Cell variant carries.
type Header struct {
	Type     Type
	SubType  SubType
	Length   uint32
	Style    FormatStyle
	Flags    uint32
	Mode     uint8
	ArchTag  string
}

// Cell is a tagged variant: exactly one of Insn/Val is populated, selected
// by Header.Type.
type Cell struct {
	Header
	Insn *Instruction
	Val  *Value
}

// NewInstruction builds an Instruction cell with the given length in bytes.
func NewInstruction(mnemonic string, operands []Operand, semantic []expr.Expression, sub SubType, length uint32) *Cell {
	return &Cell{
		Header: Header{Type: TypeInstruction, SubType: sub, Length: length},
		Insn:   &Instruction{Mnemonic: mnemonic, Operands: operands, Semantic: semantic, SubType: sub},
	}
}

// NewValue builds a Value cell of the given width (8/16/32/64 bits).
func NewValue(width uint8, raw []byte) *Cell {
	return &Cell{
		Header: Header{Type: TypeValue, Length: uint32(len(raw))},
		Val:    &Value{Width: width, Bytes: raw},
	}
}

// IsCode reports whether the cell is an Instruction.
func (c *Cell) IsCode() bool { return c != nil && c.Type == TypeInstruction }

// IsData reports whether the cell is a Value.
func (c *Cell) IsData() bool { return c != nil && c.Type == TypeValue }

// IsTerminator reports whether an Instruction's sub-type intersects
// {Jump, Call, Return} — the basic-block end condition of §4.4.
func (c *Cell) IsTerminator() bool {
	if c == nil || c.Insn == nil {
		return false
	}
	return c.Insn.SubType&(Jump|Call|Return) != 0
}

// MultiCellKind enumerates the higher-level groupings a MultiCell can annotate.
type MultiCellKind int

const (
	KindFunction MultiCellKind = iota
	KindStruct
	KindArray
)

// MultiCell annotates a contiguous range of cells with higher-level meaning.
type MultiCell struct {
	Kind   MultiCellKind
	Length uint64
	Name   string
}
