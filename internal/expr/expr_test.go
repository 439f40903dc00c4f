package expr

import (
	"testing"

	"disasm/internal/addr"
	"disasm/internal/bitvector"
)

type mapEnv struct {
	regs map[uint32]bitvector.BitVector
	mem  map[uint64]bitvector.BitVector
}

func (m *mapEnv) ReadRegister(id uint32, archTag string) (bitvector.BitVector, bool) {
	v, ok := m.regs[id]
	return v, ok
}

func (m *mapEnv) ReadMemory(accessBits uint16, address bitvector.BitVector) (bitvector.BitVector, bool) {
	v, ok := m.mem[address.Unsigned()]
	return v, ok
}

func TestEvaluateConstantFolding(t *testing.T) {
	tree := MakeBinaryOp(Add, MakeBitVector(bitvector.New(32, 2)), MakeBitVector(bitvector.New(32, 3)))
	v, ok := Evaluate(tree, &mapEnv{})
	if !ok {
		t.Fatal("expected constant evaluation to succeed")
	}
	if v.Unsigned() != 5 {
		t.Fatalf("Evaluate = %d, want 5", v.Unsigned())
	}
}

func TestEvaluateDivByZeroFaults(t *testing.T) {
	tree := MakeBinaryOp(UDiv, MakeBitVector(bitvector.New(32, 10)), MakeBitVector(bitvector.New(32, 0)))
	ev := NewEvaluateVisitor(&mapEnv{})
	result := tree.Visit(ev)
	if result != nil {
		t.Fatalf("expected nil result on fault, got %v", result)
	}
	if !ev.Faulted || ev.FaultOp != UDiv {
		t.Fatalf("expected Faulted=true FaultOp=UDiv, got Faulted=%v FaultOp=%v", ev.Faulted, ev.FaultOp)
	}
}

func TestEvaluateUnresolvedIdentifier(t *testing.T) {
	tree := MakeIdentifier(1, "x86")
	_, ok := Evaluate(tree, &mapEnv{regs: map[uint32]bitvector.BitVector{}})
	if ok {
		t.Fatal("expected unresolved identifier to fail evaluation")
	}
}

func TestCloneProducesIndependentTree(t *testing.T) {
	orig := MakeBinaryOp(Add, MakeIdentifier(0, "x86"), MakeBitVector(bitvector.New(32, 1)))
	cl := Clone(orig)
	if cl == orig {
		t.Fatal("Clone returned the same pointer")
	}
	if orig.Compare(cl) != Identical {
		t.Fatalf("cloned tree not Identical to original")
	}
}

func TestFilterCollectsIdentifiers(t *testing.T) {
	tree := MakeBinaryOp(Add, MakeIdentifier(0, "x86"), MakeIdentifier(1, "x86"))
	found := Filter(tree, func(e Expression) bool {
		_, ok := e.(*IdentifierExpr)
		return ok
	})
	if len(found) != 2 {
		t.Fatalf("Filter found %d identifiers, want 2", len(found))
	}
}

func TestTrackThenBackTrackRoundTrips(t *testing.T) {
	origin := addr.New(0, 0x1000)
	orig := MakeBinaryOp(Add, MakeIdentifier(0, "x86"), MakeIdentifier(1, "x86"))
	tracked := Track(orig, origin)
	if _, ok := tracked.(*BinaryOpExpr).L.(*TrackExpr); !ok {
		t.Fatal("expected left operand wrapped in TrackExpr")
	}
	stripped := BackTrack(tracked)
	if orig.Compare(stripped) != Identical {
		t.Fatal("BackTrack(Track(e)) should be structurally identical to e")
	}
}

func TestNormalizeIdentifierRemapsRegisters(t *testing.T) {
	tree := MakeIdentifier(4, "x86") // e.g. AL aliasing register 0
	normalized := Normalize(tree, func(id uint32) uint32 {
		if id == 4 {
			return 0
		}
		return id
	})
	if normalized.(*IdentifierExpr).ID != 0 {
		t.Fatalf("Normalize did not remap register id")
	}
}

func TestCondOpOppositeIsInvolution(t *testing.T) {
	for _, op := range []CondOp{CondEq, CondNe, CondULt, CondULe, CondUGt, CondUGe, CondSLt, CondSLe, CondSGt, CondSGe} {
		if op.Opposite().Opposite() != op {
			t.Fatalf("Opposite is not an involution for %v", op)
		}
	}
}
