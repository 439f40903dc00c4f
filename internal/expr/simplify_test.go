package expr

import (
	"testing"

	"disasm/internal/bitvector"
)

func TestSimplifyConstantFolding(t *testing.T) {
	tree := MakeBinaryOp(Add, MakeBitVector(bitvector.New(32, 2)), MakeBitVector(bitvector.New(32, 3)))
	got := Simplify(tree)
	bv, ok := got.(*BitVectorExpr)
	if !ok || bv.Value.Unsigned() != 5 {
		t.Fatalf("Simplify(2+3) = %v, want constant 5", got)
	}
}

func TestSimplifyAdditiveIdentity(t *testing.T) {
	ident := MakeIdentifier(0, "x86")
	tree := MakeBinaryOp(Add, ident, MakeBitVector(bitvector.New(32, 0)))
	got := Simplify(tree)
	if got != ident {
		t.Fatalf("Simplify(x+0) = %v, want x unchanged", got)
	}
}

func TestSimplifyMultiplicativeAnnihilator(t *testing.T) {
	ident := MakeIdentifier(0, "x86")
	tree := MakeBinaryOp(Mul, ident, MakeBitVector(bitvector.New(32, 0)))
	got := Simplify(tree)
	bv, ok := got.(*BitVectorExpr)
	if !ok || !bv.Value.IsZero() {
		t.Fatalf("Simplify(x*0) = %v, want constant 0", got)
	}
}

func TestSimplifySelfXorCancels(t *testing.T) {
	ident := MakeIdentifier(0, "x86")
	tree := MakeBinaryOp(Xor, ident, ident)
	got := Simplify(tree)
	bv, ok := got.(*BitVectorExpr)
	if !ok || !bv.Value.IsZero() {
		t.Fatalf("Simplify(x^x) = %v, want constant 0", got)
	}
}

func TestSimplifyLeavesUnrelatedShapeAlone(t *testing.T) {
	tree := MakeBinaryOp(Add, MakeIdentifier(0, "x86"), MakeIdentifier(1, "x86"))
	got := Simplify(tree)
	bin, ok := got.(*BinaryOpExpr)
	if !ok || bin.Op != Add {
		t.Fatalf("Simplify(x+y) = %v, want unfolded BinaryOp(Add)", got)
	}
}
