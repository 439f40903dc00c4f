package xref

import (
	"testing"

	"disasm/internal/addr"
)

func TestInsertAndLookupBothDirections(t *testing.T) {
	g := New()
	a := addr.New(0, 0x1000)
	b := addr.New(0, 0x2000)
	g.Insert(a, b, Call)

	to := g.From(a)
	if len(to) != 1 || addr.Compare(to[0], b) != 0 {
		t.Fatalf("From(a) = %v, want [b]", to)
	}
	from := g.To(b)
	if len(from) != 1 || addr.Compare(from[0], a) != 0 {
		t.Fatalf("To(b) = %v, want [a]", from)
	}
}

func TestInsertDuplicateIsNoOp(t *testing.T) {
	g := New()
	a, b := addr.New(0, 0x1000), addr.New(0, 0x2000)
	g.Insert(a, b, Jump)
	g.Insert(a, b, Jump)
	if len(g.EdgesFrom(a)) != 1 {
		t.Fatalf("expected duplicate edge to be deduplicated, got %d edges", len(g.EdgesFrom(a)))
	}
}

func TestDeleteRemovesBothIndices(t *testing.T) {
	g := New()
	a, b := addr.New(0, 0x1000), addr.New(0, 0x2000)
	g.Insert(a, b, Call)
	g.Delete(a)
	if len(g.From(a)) != 0 {
		t.Fatal("expected From(a) empty after Delete")
	}
	if len(g.To(b)) != 0 {
		t.Fatal("expected To(b) empty after Delete")
	}
}
