package symbolic

import (
	"testing"

	"disasm/internal/addr"
	"disasm/internal/bitvector"
	"disasm/internal/document"
	"disasm/internal/expr"
	"disasm/internal/memarea"
	"disasm/internal/registry"
	"disasm/internal/stream"
)

type stubCpu struct{ pc registry.RegisterID }

func (s stubCpu) RegisterByType(kind registry.RegisterKind, mode uint8) registry.RegisterID {
	if kind == registry.RegisterProgramCounter {
		return s.pc
	}
	return 0
}
func (s stubCpu) SizeOfRegisterInBits(id registry.RegisterID) int { return 32 }
func (s stubCpu) NormalizeRegister(id registry.RegisterID, mode uint8) (registry.RegisterID, uint64) {
	return id, 0xFFFFFFFF
}
func (s stubCpu) IdentifierName(id registry.RegisterID) string { return "pc" }

func TestFindAllPathsConcreteBitVector(t *testing.T) {
	doc := newTestDoc()
	store := NewStore()
	store.Bind(expr.MakeIdentifier(9, "x86ref"), expr.MakeBitVector(bitvector.New(32, 0x1234)))
	v := NewVisitor(doc, store, addr.New(0, 0x1000), false)

	var got []Destination
	found, ok := FindAllPaths(v, stubCpu{pc: 9}, 0, func(d Destination) { got = append(got, d) })
	if !ok || found != 1 || len(got) != 1 {
		t.Fatalf("found=%d ok=%v got=%v", found, ok, got)
	}
	bv := got[0].Target.(*expr.BitVectorExpr)
	if bv.Value.Unsigned() != 0x1234 {
		t.Fatalf("target = %v", bv.Value.Unsigned())
	}
}

func TestFindAllPathsTernaryYieldsTwoPaths(t *testing.T) {
	doc := newTestDoc()
	store := NewStore()
	ternary := expr.MakeTernaryCond(expr.CondEq,
		expr.MakeIdentifier(1, "x86ref"), expr.MakeBitVector(bitvector.New(32, 0)),
		expr.MakeBitVector(bitvector.New(32, 0x2000)), expr.MakeBitVector(bitvector.New(32, 0x2010)))
	store.Bind(expr.MakeIdentifier(9, "x86ref"), ternary)
	v := NewVisitor(doc, store, addr.New(0, 0x1000), false)

	var got []Destination
	found, ok := FindAllPaths(v, stubCpu{pc: 9}, 0, func(d Destination) { got = append(got, d) })
	if !ok || found != 2 || len(got) != 2 {
		t.Fatalf("found=%d ok=%v got=%v", found, ok, got)
	}
	if len(got[0].Conditions) != 1 || len(got[1].Conditions) != 1 {
		t.Fatal("expected each ternary branch to carry exactly one condition")
	}
}

func TestFindAllPathsJumpTableEnumeratesEntries(t *testing.T) {
	doc := document.New()
	// The backing file is large enough to hold many more than four entries,
	// so an enumeration bounded by file layout alone would over-enumerate.
	// What actually bounds it here is the recorded path condition idx < 4.
	a := memarea.New("text", memarea.Read|memarea.Execute,
		memarea.FileRegion{Offset: 0, Size: 0x200},
		memarea.VirtualRegion{Address: 0x1000, Size: 0x1000}, "x86ref", 0)
	doc.InsertArea(a)

	buf := make([]byte, 0x200)
	// Sixteen 32-bit little-endian entries at virtual address 0x1100,
	// which the area maps to file offset 0x100; only the first four are
	// reachable under the recorded bound idx < 4.
	var entries [16]uint32
	for i := range entries {
		entries[i] = 0x1100 + uint32(i)*0x10
	}
	for i, e := range entries {
		off := 0x100 + i*4
		buf[off] = byte(e)
		buf[off+1] = byte(e >> 8)
		buf[off+2] = byte(e >> 16)
		buf[off+3] = byte(e >> 24)
	}
	doc.SetBinaryStream(stream.NewMemoryStream(buf, stream.LittleEndian))

	idx := expr.MakeIdentifier(5, "x86ref")
	offsetExpr := expr.MakeBinaryOp(expr.Add,
		expr.MakeBinaryOp(expr.Mul, idx, expr.MakeBitVector(bitvector.New(32, 4))),
		expr.MakeBitVector(bitvector.New(64, 0x1100)))
	mem := expr.MakeMemory(32, nil, offsetExpr, true)

	store := NewStore()
	store.Bind(expr.MakeIdentifier(9, "x86ref"), mem)
	store.RecordCondition(expr.MakeCond(expr.CondULt, idx, expr.MakeBitVector(bitvector.New(32, 4))))
	v := NewVisitor(doc, store, addr.New(0, 0x1000), false)

	var got []Destination
	found, ok := FindAllPaths(v, stubCpu{pc: 9}, 0, func(d Destination) { got = append(got, d) })
	if !ok {
		t.Fatal("expected jump table match to succeed")
	}
	if found != 4 {
		t.Fatalf("found = %d, want 4 (enumeration should stop where idx < 4 first fails, not at file end)", found)
	}
	for i, d := range got {
		bv := d.Target.(*expr.BitVectorExpr)
		if bv.Value.Unsigned() != uint64(entries[i]) {
			t.Fatalf("entry %d = %#x, want %#x", i, bv.Value.Unsigned(), entries[i])
		}
	}
}

func TestFindAllPathsJumpTableNoConditionEnumeratesNothing(t *testing.T) {
	doc := newTestDoc()
	idx := expr.MakeIdentifier(5, "x86ref")
	offsetExpr := expr.MakeBinaryOp(expr.Add,
		expr.MakeBinaryOp(expr.Mul, idx, expr.MakeBitVector(bitvector.New(32, 4))),
		expr.MakeBitVector(bitvector.New(64, 0x1100)))
	mem := expr.MakeMemory(32, nil, offsetExpr, true)

	store := NewStore()
	store.Bind(expr.MakeIdentifier(9, "x86ref"), mem)
	v := NewVisitor(doc, store, addr.New(0, 0x1000), false)

	found, ok := FindAllPaths(v, stubCpu{pc: 9}, 0, func(Destination) {
		t.Fatal("no destinations should be reported without a recorded bound")
	})
	if !ok {
		t.Fatal("jump table shape should still be recognized")
	}
	if found != 0 {
		t.Fatalf("found = %d, want 0", found)
	}
}
