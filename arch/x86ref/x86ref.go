// Package x86ref is a small, from-scratch reference Architecture backend
// covering exactly the instruction shapes spec.md's testable scenarios
// name: jmp rel8, mov r32/imm32, ret, call rel32, jz rel8, nop, and the div
// r/m32 group (for the zero-divisor scenario). It is grounded on the
// teacher's OpCodesMap table (opcodes.go) — a flat value/name/length table
// with a per-entry decode closure — generalized so each entry builds
// []expr.Expression semantic IR instead of a formatted operand string, and
// on wazero's isa/amd64/machine.go split between instruction selection and
// encoding.
//
// This is a reference implementation, not a general-purpose x86 decoder:
// only register-direct ModRM forms are handled, and only the registers and
// opcodes listed below exist. Anything else is ErrUnsupportedOpcode.
package x86ref

import (
	"fmt"

	"disasm/internal/addr"
	"disasm/internal/bitvector"
	"disasm/internal/cell"
	"disasm/internal/errs"
	"disasm/internal/expr"
	"disasm/internal/registry"
	"disasm/internal/stream"
)

// Register IDs for the general-purpose and program-counter registers this
// reference backend models. 0 is reserved (registry.RegisterID's zero
// value means "no such register" throughout the core).
const (
	regNone registry.RegisterID = iota
	RegEAX
	RegECX
	RegEDX
	RegEBX
	RegESP
	RegEBP
	RegESI
	RegEDI
	RegEIP
	RegEFlags
)

var registerNames = map[registry.RegisterID]string{
	RegEAX: "eax", RegECX: "ecx", RegEDX: "edx", RegEBX: "ebx",
	RegESP: "esp", RegEBP: "ebp", RegESI: "esi", RegEDI: "edi",
	RegEIP: "eip", RegEFlags: "eflags",
}

// modRMRegisters indexes the 3-bit ModRM register/rm field for the
// register-direct forms this backend decodes (32-bit operand size only).
var modRMRegisters = [8]registry.RegisterID{
	RegEAX, RegECX, RegEDX, RegEBX, RegESP, RegEBP, RegESI, RegEDI,
}

// Mode32 is the only decode mode this reference backend declares.
const Mode32 uint8 = 32

// cpuInfo implements registry.CpuInformation for the register set above.
type cpuInfo struct{}

func (cpuInfo) RegisterByType(kind registry.RegisterKind, mode uint8) registry.RegisterID {
	switch kind {
	case registry.RegisterProgramCounter:
		return RegEIP
	case registry.RegisterStackPointer:
		return RegESP
	case registry.RegisterFlags:
		return RegEFlags
	case registry.RegisterGeneralPurpose:
		return RegEAX
	default:
		return regNone
	}
}

func (cpuInfo) SizeOfRegisterInBits(id registry.RegisterID) int { return 32 }

// NormalizeRegister is the identity mapping: this reference backend never
// models subregister aliases (al/ax inside eax), so there is nothing for
// NormalizeIdentifier to rewrite.
func (cpuInfo) NormalizeRegister(id registry.RegisterID, mode uint8) (registry.RegisterID, uint64) {
	return id, 0xFFFFFFFF
}

func (cpuInfo) IdentifierName(id registry.RegisterID) string {
	if name, ok := registerNames[id]; ok {
		return name
	}
	return fmt.Sprintf("reg%d", id)
}

// Arch is the x86ref Architecture backend.
type Arch struct {
	cpu cpuInfo
}

// New builds an x86ref Architecture.
func New() *Arch { return &Arch{} }

func (a *Arch) Name() string { return "x86ref" }

func (a *Arch) Modes() []registry.Mode {
	return []registry.Mode{{Name: "32-bit", Code: Mode32}}
}

func (a *Arch) DisassembleBasicBlockOnly() bool { return false }

func (a *Arch) CpuInformation() registry.CpuInformation { return a.cpu }

// CurrentAddress returns the fall-through address: the instruction's
// address advanced by its decoded length, the "next after this
// instruction" value the analyzer pushes as a Call's return site and binds
// the program counter to before resolving a relative branch target.
func (a *Arch) CurrentAddress(at addr.Address, insn *cell.Cell) addr.Address {
	return at.Add(int64(insn.Header.Length))
}

// EmitSetExecutionAddress returns the semantic IR an OperatingSystem
// backend uses to seed the program counter at process start.
func (a *Arch) EmitSetExecutionAddress(current addr.Address, mode uint8) []expr.Expression {
	return []expr.Expression{
		expr.MakeAssign(
			expr.MakeIdentifier(uint32(RegEIP), a.Name()),
			expr.MakeBitVector(bitvector.New(32, current.Offset)),
		),
	}
}

// pc builds the Identifier expression for the program counter.
func (a *Arch) pc() expr.Expression { return expr.MakeIdentifier(uint32(RegEIP), a.Name()) }

func (a *Arch) reg(id registry.RegisterID) expr.Expression {
	return expr.MakeIdentifier(uint32(id), a.Name())
}

// signExtend8 sign-extends an 8-bit displacement byte to a 32-bit BitVector.
func signExtend8(b byte) bitvector.BitVector {
	return bitvector.SignExtend(bitvector.New(8, uint64(b)), 32)
}

// relTarget builds "eip + delta" (a sign-extended rel8 or a rel32) — the expression
// Instruction.operand_reference folds to a concrete Address once the
// analyzer binds eip to the fall-through value.
func (a *Arch) relTarget(delta bitvector.BitVector) []expr.Expression {
	return []expr.Expression{
		expr.MakeAssign(a.pc(), expr.MakeBinaryOp(expr.Add, a.pc(), expr.MakeBitVector(delta))),
	}
}

// ErrUnsupportedOpcode is returned for any byte this reference backend does
// not implement, or an addressing form (e.g. a memory-indirect ModRM) it
// does not model.
var ErrUnsupportedOpcode = fmt.Errorf("x86ref: unsupported opcode")

// Decode reads one instruction from bs at fileOffset and lowers it to a
// Cell, mirroring the teacher's OpCodesMap lookup-and-build shape.
func (a *Arch) Decode(bs stream.BinaryStream, fileOffset int64, mode uint8) (*cell.Cell, error) {
	b0, err := bs.Read(fileOffset, 1)
	if err != nil {
		return nil, errs.New(errs.ReadOutOfRange, "x86ref: could not read opcode byte")
	}
	op := byte(b0)

	switch {
	case op == 0x90: // NOP
		return cell.NewInstruction("nop", nil, nil, cell.None, 1), nil

	case op == 0xC3: // RET
		return cell.NewInstruction("ret", nil, nil, cell.Return, 1), nil

	case op == 0xEB: // JMP rel8
		d, err := bs.Read(fileOffset+1, 1)
		if err != nil {
			return nil, errs.New(errs.DecodeFailure, "x86ref: truncated jmp rel8")
		}
		delta := signExtend8(byte(d))
		return cell.NewInstruction("jmp", []cell.Operand{{Text: delta.String()}}, a.relTarget(delta), cell.Jump, 2), nil

	case op == 0x74: // JZ rel8
		d, err := bs.Read(fileOffset+1, 1)
		if err != nil {
			return nil, errs.New(errs.DecodeFailure, "x86ref: truncated jz rel8")
		}
		delta := signExtend8(byte(d))
		return cell.NewInstruction("jz", []cell.Operand{{Text: delta.String()}}, a.relTarget(delta), cell.Jump|cell.Conditional, 2), nil

	case op == 0xE8: // CALL rel32
		d, err := bs.Read(fileOffset+1, 4)
		if err != nil {
			return nil, errs.New(errs.DecodeFailure, "x86ref: truncated call rel32")
		}
		delta := bitvector.New(32, d)
		return cell.NewInstruction("call", []cell.Operand{{Text: delta.String()}}, a.relTarget(delta), cell.Call, 5), nil

	case op >= 0xB8 && op <= 0xBF: // MOV r32, imm32
		regID := modRMRegisters[op-0xB8]
		imm, err := bs.Read(fileOffset+1, 4)
		if err != nil {
			return nil, errs.New(errs.DecodeFailure, "x86ref: truncated mov r32,imm32")
		}
		src := expr.MakeBitVector(bitvector.New(32, imm))
		semantic := []expr.Expression{expr.MakeAssign(a.reg(regID), src)}
		operands := []cell.Operand{{Text: a.cpu.IdentifierName(regID)}, {Text: src.String()}}
		return cell.NewInstruction("mov", operands, semantic, cell.None, 5), nil

	case op == 0xF7: // ModRM group: only /6 (DIV r/m32), register-direct form
		modrm, err := bs.Read(fileOffset+1, 1)
		if err != nil {
			return nil, errs.New(errs.DecodeFailure, "x86ref: truncated F7 group")
		}
		m := byte(modrm)
		mod, regField, rm := m>>6, (m>>3)&7, m&7
		if mod != 3 || regField != 6 {
			return nil, ErrUnsupportedOpcode
		}
		divisor := a.reg(modRMRegisters[rm])
		semantic := []expr.Expression{
			expr.MakeAssign(a.reg(RegEAX), expr.MakeBinaryOp(expr.UDiv, a.reg(RegEAX), divisor)),
			expr.MakeAssign(a.reg(RegEDX), expr.MakeBinaryOp(expr.UMod, a.reg(RegEAX), divisor)),
		}
		operands := []cell.Operand{{Text: a.cpu.IdentifierName(modRMRegisters[rm])}}
		return cell.NewInstruction("div", operands, semantic, cell.None, 2), nil

	default:
		return nil, ErrUnsupportedOpcode
	}
}
