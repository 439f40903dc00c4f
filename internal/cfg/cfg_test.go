package cfg

import (
	"testing"

	"disasm/internal/addr"
	"disasm/internal/document"
)

func addrs(offsets ...uint64) []addr.Address {
	out := make([]addr.Address, len(offsets))
	for i, o := range offsets {
		out[i] = addr.New(0, o)
	}
	return out
}

func TestSplitBasicBlockCutsAtTarget(t *testing.T) {
	g := NewGraph()
	g.AddBasicBlockVertex(&BasicBlock{Addresses: addrs(0x1000, 0x1002, 0x1004, 0x1006)})

	if ok := g.SplitBasicBlock(addr.New(0, 0x1004), addr.New(0, 0x1002), Unconditional); !ok {
		t.Fatal("expected split to succeed")
	}
	if len(g.Blocks()) != 2 {
		t.Fatalf("expected 2 blocks after split, got %d", len(g.Blocks()))
	}
	first, second := g.Blocks()[0], g.Blocks()[1]
	if len(first.Addresses) != 2 || len(second.Addresses) != 2 {
		t.Fatalf("unexpected split sizes: %v / %v", first.Addresses, second.Addresses)
	}
	if addr.Compare(second.First(), addr.New(0, 0x1004)) != 0 {
		t.Fatalf("second block should start at 0x1004, got %v", second.First())
	}
}

func TestSplitBasicBlockAtExistingBoundaryIsNoOp(t *testing.T) {
	g := NewGraph()
	g.AddBasicBlockVertex(&BasicBlock{Addresses: addrs(0x1000, 0x1002)})
	g.AddBasicBlockVertex(&BasicBlock{Addresses: addrs(0x2000, 0x2002)})

	if ok := g.SplitBasicBlock(addr.New(0, 0x2000), addr.New(0, 0x1000), Unconditional); !ok {
		t.Fatal("expected split at an existing boundary to report success")
	}
	if len(g.Blocks()) != 2 {
		t.Fatalf("expected block count to stay at 2, got %d", len(g.Blocks()))
	}
}

func TestFinalizePopulatesDocumentXRefs(t *testing.T) {
	g := NewGraph()
	g.AddBasicBlockVertex(&BasicBlock{Addresses: addrs(0x1000)})
	g.AddBasicBlockVertex(&BasicBlock{Addresses: addrs(0x2000)})
	src, dst := addr.New(0, 0x1000), addr.New(0, 0x2000)
	g.AddBasicBlockEdge(Unconditional, src, dst)

	doc := document.New()
	g.Finalize(doc)

	xrefs := doc.XRefsFrom(src)
	if len(xrefs) != 1 || addr.Compare(xrefs[0], dst) != 0 {
		t.Fatalf("XRefsFrom(%v) = %v", src, xrefs)
	}
}
