package analyzer

import (
	"errors"
	"testing"

	"disasm/internal/addr"
	"disasm/internal/bitvector"
	"disasm/internal/cell"
	"disasm/internal/document"
	"disasm/internal/expr"
	"disasm/internal/memarea"
	"disasm/internal/registry"
	"disasm/internal/stream"
)

// Opcodes for the tiny stub architecture used by these tests:
//
//	0x00        nop                          (1 byte)
//	0x01 <rel8> jmp rel8                      (2 bytes, unconditional)
//	0x02 <rel8> jz rel8                       (2 bytes, conditional)
//	0x03 <rel8> call rel8                     (2 bytes)
//	0x04        ret                           (1 byte, unconditional)
//	0x05        mov dst, [imm32 constant]     (5 bytes, writes a Memory operand)
const (
	opNop  = 0x00
	opJmp  = 0x01
	opJz   = 0x02
	opCall = 0x03
	opRet  = 0x04
	opMovM = 0x05
)

const stubPCID registry.RegisterID = 1

type stubCpuInfo struct{}

func (stubCpuInfo) RegisterByType(kind registry.RegisterKind, mode uint8) registry.RegisterID {
	if kind == registry.RegisterProgramCounter {
		return stubPCID
	}
	return 0
}
func (stubCpuInfo) SizeOfRegisterInBits(id registry.RegisterID) int { return 32 }
func (stubCpuInfo) NormalizeRegister(id registry.RegisterID, mode uint8) (registry.RegisterID, uint64) {
	return id, 0xFFFFFFFF
}
func (stubCpuInfo) IdentifierName(id registry.RegisterID) string { return "pc" }

type stubArch struct{}

func (stubArch) Name() string { return "stubarch" }

func (stubArch) Decode(bs stream.BinaryStream, fileOffset int64, mode uint8) (*cell.Cell, error) {
	op, err := bs.Read(fileOffset, 1)
	if err != nil {
		return nil, err
	}
	pc := expr.MakeIdentifier(uint32(stubPCID), "stubarch")

	switch op {
	case opNop:
		fallthroughAssign := expr.MakeAssign(pc, expr.MakeBitVector(bitvector.New(64, uint64(fileOffset)+1)))
		return cell.NewInstruction("nop", nil, []expr.Expression{fallthroughAssign}, cell.None, 1), nil

	case opJmp, opJz, opCall:
		rel, err := bs.Read(fileOffset+1, 1)
		if err != nil {
			return nil, err
		}
		dest := uint64(fileOffset) + 2 + rel
		dst := expr.MakeAssign(pc, expr.MakeBitVector(bitvector.New(64, dest)))
		switch op {
		case opJmp:
			return cell.NewInstruction("jmp", nil, []expr.Expression{dst}, cell.Jump, 2), nil
		case opJz:
			return cell.NewInstruction("jz", nil, []expr.Expression{dst}, cell.Jump|cell.Conditional, 2), nil
		default:
			return cell.NewInstruction("call", nil, []expr.Expression{dst}, cell.Call, 2), nil
		}

	case opRet:
		return cell.NewInstruction("ret", nil, nil, cell.Return, 1), nil

	case opMovM:
		raw, err := bs.Read(fileOffset+1, 4)
		if err != nil {
			return nil, err
		}
		mem := expr.MakeMemory(32, nil, expr.MakeBitVector(bitvector.New(64, raw)), true)
		return cell.NewInstruction("mov", nil, []expr.Expression{mem}, cell.None, 5), nil

	default:
		return nil, errors.New("bad opcode")
	}
}

func (stubArch) EmitSetExecutionAddress(current addr.Address, mode uint8) []expr.Expression { return nil }
func (stubArch) CurrentAddress(at addr.Address, insn *cell.Cell) addr.Address {
	return at.Add(int64(insn.Length))
}
func (stubArch) Modes() []registry.Mode               { return []registry.Mode{{Name: "default", Code: 0}} }
func (stubArch) DisassembleBasicBlockOnly() bool       { return false }
func (stubArch) CpuInformation() registry.CpuInformation { return stubCpuInfo{} }

func newTestDocument(t *testing.T, code []byte) (*document.Document, *registry.Registry) {
	t.Helper()
	doc := document.New()
	buf := make([]byte, 0x1000)
	copy(buf, code)
	doc.SetBinaryStream(stream.NewMemoryStream(buf, stream.LittleEndian))
	doc.InsertArea(memarea.New("text", memarea.Read|memarea.Execute,
		memarea.FileRegion{Offset: 0, Size: 0x1000},
		memarea.VirtualRegion{Address: 0, Size: 0x1000}, "stubarch", 0))

	reg := registry.New()
	reg.RegisterArchitecture(stubArch{})
	return doc, reg
}

func TestDisassembleBasicBlockStopsAtTerminator(t *testing.T) {
	doc, reg := newTestDocument(t, []byte{opNop, opNop, opRet})
	a := New(doc, reg)

	block, addrs, err := a.disassembleBasicBlock(addr.New(0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(block) != 3 || len(addrs) != 3 {
		t.Fatalf("expected 3 instructions, got %d", len(block))
	}
	if !block[2].IsTerminator() {
		t.Fatal("expected the ret to be classified as a terminator")
	}
	if addr.Compare(addrs[2], addr.New(0, 2)) != 0 {
		t.Fatalf("ret address = %v, want 0x2", addrs[2])
	}
}

func TestDisassembleBasicBlockStopsOnExistingCode(t *testing.T) {
	doc, reg := newTestDocument(t, []byte{opNop, opNop, opRet})
	a := New(doc, reg)

	// Pre-mark the second nop as already-decoded code.
	if err := doc.InsertCell(addr.New(0, 1), cell.NewInstruction("nop", nil, nil, cell.None, 1), true, true); err != nil {
		t.Fatal(err)
	}

	block, addrs, err := a.disassembleBasicBlock(addr.New(0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(block) != 1 || len(addrs) != 1 {
		t.Fatalf("expected the block to stop before the existing cell, got %d instructions", len(block))
	}
}

func TestResolveDestinationReadsConstantTarget(t *testing.T) {
	doc, reg := newTestDocument(t, []byte{opJmp, 0x03})
	a := New(doc, reg)

	c, _, err := func() (*cell.Cell, addr.Address, error) {
		fileOff, _ := doc.Translate(addr.New(0, 0))
		insn, err := stubArch{}.Decode(doc.BinaryStream(), fileOff, 0)
		return insn, addr.New(0, 0), err
	}()
	if err != nil {
		t.Fatal(err)
	}

	dst, ok := a.resolveDestination(c, addr.New(0, 0), stubArch{}, 0)
	if !ok {
		t.Fatal("expected resolveDestination to find a constant target")
	}
	// fileOffset(0) + 2 + rel(3) = 5
	if addr.Compare(dst, addr.New(0, 5)) != 0 {
		t.Fatalf("dst = %v, want 0x5", dst)
	}
}

func TestFindCrossReferenceRecordsDataRead(t *testing.T) {
	doc, reg := newTestDocument(t, []byte{opMovM, 0x00, 0x02, 0x00, 0x00})
	a := New(doc, reg)

	fileOff, _ := doc.Translate(addr.New(0, 0))
	c, err := stubArch{}.Decode(doc.BinaryStream(), fileOff, 0)
	if err != nil {
		t.Fatal(err)
	}

	a.FindCrossReference(addr.New(0, 0), c)

	xrefs := doc.XRefsFrom(addr.New(0, 0))
	if len(xrefs) != 1 || addr.Compare(xrefs[0], addr.New(0, 0x200)) != 0 {
		t.Fatalf("xrefs = %v", xrefs)
	}
}

func TestDisassembleFollowsCallJumpAndReturn(t *testing.T) {
	// Layout: [call rel8][nop][jmp rel8][ret]
	// idx 0-1: call -> dest = 0+2+rel
	// idx 2:   nop (never reached directly by main flow; used as call target via rel)
	// idx 3-4: jmp -> dest
	// idx 5:   ret
	code := []byte{
		opCall, 0x00, // 0: call -> dest = 0+2+0 = 2 (the nop at index 2)
		opNop,        // 2: nop
		opJmp, 0x00,  // 3: jmp -> dest = 3+2+0 = 5 (the ret)
		opRet,        // 5: ret
	}
	doc, reg := newTestDocument(t, code)
	a := New(doc, reg)

	if err := a.Disassemble(addr.New(0, 0)); err != nil {
		t.Fatalf("Disassemble returned error: %v", err)
	}

	if !doc.ContainsCode(addr.New(0, 0)) || !doc.ContainsCode(addr.New(0, 2)) ||
		!doc.ContainsCode(addr.New(0, 3)) || !doc.ContainsCode(addr.New(0, 5)) {
		t.Fatal("expected every reachable instruction to be decoded")
	}

	callXrefs := doc.XRefsFrom(addr.New(0, 0))
	if len(callXrefs) != 1 || addr.Compare(callXrefs[0], addr.New(0, 2)) != 0 {
		t.Fatalf("call xrefs = %v", callXrefs)
	}
	jmpXrefs := doc.XRefsFrom(addr.New(0, 3))
	if len(jmpXrefs) != 1 || addr.Compare(jmpXrefs[0], addr.New(0, 5)) != 0 {
		t.Fatalf("jmp xrefs = %v", jmpXrefs)
	}
}

func TestDisassembleSymbolicFollowsStraightLineTrace(t *testing.T) {
	// The nop's semantic assigns the program counter its fall-through
	// address, so the symbolic walk should follow it on to the ret.
	code := []byte{opNop, opRet}
	doc, reg := newTestDocument(t, code)
	a := New(doc, reg)

	if err := a.DisassembleSymbolic(addr.New(0, 0)); err != nil {
		t.Fatalf("DisassembleSymbolic returned error: %v", err)
	}
	if !doc.ContainsCode(addr.New(0, 0)) || !doc.ContainsCode(addr.New(0, 1)) {
		t.Fatal("expected the straight-line trace to be fully decoded")
	}
}
