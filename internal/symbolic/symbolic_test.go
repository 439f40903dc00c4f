package symbolic

import (
	"testing"

	"disasm/internal/addr"
	"disasm/internal/bitvector"
	"disasm/internal/document"
	"disasm/internal/expr"
	"disasm/internal/label"
	"disasm/internal/memarea"
	"disasm/internal/stream"
)

func newTestDoc() *document.Document {
	d := document.New()
	a := memarea.New("text", memarea.Read|memarea.Execute,
		memarea.FileRegion{Offset: 0, Size: 0x1000},
		memarea.VirtualRegion{Address: 0x1000, Size: 0x1000}, "x86ref", 0)
	d.InsertArea(a)
	d.SetBinaryStream(stream.NewMemoryStream(make([]byte, 0x1000), stream.LittleEndian))
	return d
}

func TestStoreForkIsIndependent(t *testing.T) {
	s := NewStore()
	key := expr.MakeIdentifier(1, "x86ref")
	val := expr.MakeBitVector(bitvector.New(32, 5))
	s.Bind(key, val)

	fork := s.Fork()
	fork.EraseMatching(key, key)

	if _, _, found := s.FindIdentifier(1); !found {
		t.Fatal("original store should still have the binding")
	}
	if _, _, found := fork.FindIdentifier(1); found {
		t.Fatal("fork should no longer have the binding after erase")
	}
}

func TestStoreFindMatchingUnwrapsTrack(t *testing.T) {
	s := NewStore()
	ident := expr.MakeIdentifier(2, "x86ref")
	track := expr.MakeTrack(ident, addr.New(0, 0x1000), 0)
	val := expr.MakeBitVector(bitvector.New(32, 7))
	s.Bind(track, val)

	got, ok := s.FindMatching(ident)
	if !ok {
		t.Fatal("expected FindMatching to find the track-wrapped key")
	}
	if got.(*expr.BitVectorExpr).Value.Unsigned() != 7 {
		t.Fatalf("got = %v", got)
	}
}

func TestVisitorIdentifierFreshBindingIsSymbolic(t *testing.T) {
	doc := newTestDoc()
	store := NewStore()
	v := NewVisitor(doc, store, addr.New(0, 0x1000), false)

	ident := expr.MakeIdentifier(0, "x86ref")
	result := v.Apply(ident)

	sym, ok := result.(*expr.SymbolicExpr)
	if !ok {
		t.Fatalf("expected SymbolicExpr, got %T", result)
	}
	if sym.Name != "sym_vst" {
		t.Fatalf("sym.Name = %q", sym.Name)
	}
	if !v.IsSymbolic() {
		t.Fatal("expected IsSymbolic after touching an unbound register")
	}

	// A second read of the same identifier should recall the binding, not
	// mint a fresh symbol.
	second := v.Apply(ident)
	if second != result {
		t.Fatalf("expected identical recalled binding, got %v vs %v", second, result)
	}
}

func TestVisitorAssignBindsConstant(t *testing.T) {
	doc := newTestDoc()
	store := NewStore()
	v := NewVisitor(doc, store, addr.New(0, 0x1000), false)

	dst := expr.MakeIdentifier(0, "x86ref")
	src := expr.MakeBitVector(bitvector.New(32, 42))
	assign := expr.MakeAssign(dst, src)

	v.Apply(assign)

	value, _, found := store.FindIdentifier(0)
	if !found {
		t.Fatal("expected a binding for register 0 after assignment")
	}
	bv, ok := value.(*expr.BitVectorExpr)
	if !ok || bv.Value.Unsigned() != 42 {
		t.Fatalf("value = %v", value)
	}
}

func TestVisitorBinaryOpConstantFolds(t *testing.T) {
	doc := newTestDoc()
	store := NewStore()
	v := NewVisitor(doc, store, addr.New(0, 0x1000), false)

	add := expr.MakeBinaryOp(expr.Add,
		expr.MakeBitVector(bitvector.New(32, 2)),
		expr.MakeBitVector(bitvector.New(32, 3)))

	result := v.Apply(add)
	bv, ok := result.(*expr.BitVectorExpr)
	if !ok || bv.Value.Unsigned() != 5 {
		t.Fatalf("result = %v", result)
	}
}

func TestVisitorDivisionByZeroIsDeadEnd(t *testing.T) {
	doc := newTestDoc()
	store := NewStore()
	v := NewVisitor(doc, store, addr.New(0, 0x1000), false)

	div := expr.MakeBinaryOp(expr.UDiv,
		expr.MakeBitVector(bitvector.New(32, 10)),
		expr.MakeBitVector(bitvector.New(32, 0)))

	if result := v.Apply(div); result != nil {
		t.Fatalf("expected nil on division by zero, got %v", result)
	}
}

func TestVisitorMemoryImportedLabelShortCircuits(t *testing.T) {
	doc := newTestDoc()
	target := addr.New(0, 0x1100)
	if err := doc.AddLabel(target, label.New("printf", label.Imported), false); err != nil {
		t.Fatal(err)
	}

	store := NewStore()
	v := NewVisitor(doc, store, addr.New(0, 0x1000), true)

	mem := expr.MakeMemory(32, nil, expr.MakeBitVector(bitvector.New(64, 0x1100)), true)
	result := v.Apply(mem)

	sym, ok := result.(*expr.SymbolicExpr)
	if !ok {
		t.Fatalf("expected SymbolicExpr for imported label read, got %T", result)
	}
	if sym.Kind != expr.ExternalFunction || sym.Name != "printf" {
		t.Fatalf("sym = %+v", sym)
	}
}

func TestVisitorIfElseVisitsThenAndElseRespectively(t *testing.T) {
	doc := newTestDoc()
	store := NewStore()
	v := NewVisitor(doc, store, addr.New(0, 0x1000), false)

	// An unresolved ref/test forces the symbolic branch, where the
	// corrected behavior must visit Then and Else respectively instead of
	// visiting Then twice.
	ref := expr.MakeIdentifier(1, "x86ref")
	test := expr.MakeBitVector(bitvector.New(32, 0))
	then := expr.MakeAssign(expr.MakeIdentifier(2, "x86ref"), expr.MakeBitVector(bitvector.New(32, 1)))
	els := expr.MakeAssign(expr.MakeIdentifier(3, "x86ref"), expr.MakeBitVector(bitvector.New(32, 2)))
	ifElse := expr.MakeIfElse(expr.CondEq, ref, test, then, els)

	v.Apply(ifElse)

	if _, _, found := store.FindIdentifier(2); !found {
		t.Fatal("expected the then branch's assignment to have run")
	}
	if _, _, found := store.FindIdentifier(3); !found {
		t.Fatal("expected the else branch's assignment to have run distinctly from then")
	}
}

func TestVisitorIfElseResolvesConcreteCondition(t *testing.T) {
	doc := newTestDoc()
	store := NewStore()
	v := NewVisitor(doc, store, addr.New(0, 0x1000), false)

	ref := expr.MakeBitVector(bitvector.New(32, 5))
	test := expr.MakeBitVector(bitvector.New(32, 5))
	then := expr.MakeBitVector(bitvector.New(32, 1))
	els := expr.MakeBitVector(bitvector.New(32, 2))
	ifElse := expr.MakeIfElse(expr.CondEq, ref, test, then, els)

	result := v.Apply(ifElse)
	bv, ok := result.(*expr.BitVectorExpr)
	if !ok || bv.Value.Unsigned() != 1 {
		t.Fatalf("expected the then value for an equal concrete condition, got %v", result)
	}
}
