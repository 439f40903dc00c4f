// Package cfg builds a control flow graph of basic blocks out of the flat,
// address-ordered instruction trace the analyzer produces while walking a
// function. Grounded on AnalyzerDisassemble::BuildControlFlowGraph in the
// original: collect every visited instruction address into one block, then
// cut that block apart at each discovered branch target.
package cfg

import (
	"sort"

	"disasm/internal/addr"
	"disasm/internal/cell"
	"disasm/internal/document"
	"disasm/internal/xref"
)

// EdgeKind classifies why control can flow from one basic block to
// another.
type EdgeKind int

const (
	Unknown EdgeKind = iota
	Unconditional
	True
	False
	Next
	Multiple
)

func (k EdgeKind) String() string {
	switch k {
	case Unconditional:
		return "Unconditional"
	case True:
		return "True"
	case False:
		return "False"
	case Next:
		return "Next"
	case Multiple:
		return "Multiple"
	default:
		return "Unknown"
	}
}

// BasicBlock is a maximal straight-line run of instruction addresses: no
// branch target lands in its interior, and its last instruction is the
// only one that can transfer control elsewhere.
type BasicBlock struct {
	Addresses []addr.Address
}

// First returns the block's entry address.
func (b *BasicBlock) First() addr.Address { return b.Addresses[0] }

// Last returns the block's final instruction address.
func (b *BasicBlock) Last() addr.Address { return b.Addresses[len(b.Addresses)-1] }

// indexOf returns the position of at within b.Addresses, or -1.
func (b *BasicBlock) indexOf(at addr.Address) int {
	for i, a := range b.Addresses {
		if addr.Compare(a, at) == 0 {
			return i
		}
	}
	return -1
}

// split cuts b into two blocks at "at": b keeps [0:i), and the returned
// block holds [i:len). Reports ok=false if at is not strictly inside b
// (either absent, or already the block's first address, in which case no
// split is needed).
func (b *BasicBlock) split(at addr.Address) (tail *BasicBlock, ok bool) {
	i := b.indexOf(at)
	if i <= 0 {
		return nil, false
	}
	tail = &BasicBlock{Addresses: append([]addr.Address(nil), b.Addresses[i:]...)}
	b.Addresses = b.Addresses[:i]
	return tail, true
}

// Edge is one control transfer between two basic blocks, keyed by the
// branching instruction's address (Src) and the destination instruction's
// address (Dst).
type Edge struct {
	Src, Dst addr.Address
	Kind     EdgeKind
}

// Graph is a control flow graph over basic blocks, built incrementally the
// way the analyzer discovers branch targets.
type Graph struct {
	blocks []*BasicBlock
	edges  []Edge
}

// NewGraph builds an empty Graph.
func NewGraph() *Graph { return &Graph{} }

// Blocks returns the graph's basic blocks in address order.
func (g *Graph) Blocks() []*BasicBlock { return g.blocks }

// Edges returns the graph's recorded edges.
func (g *Graph) Edges() []Edge { return g.edges }

// blockIndexContaining returns the index of the block whose address range
// contains at, or -1.
func (g *Graph) blockIndexContaining(at addr.Address) int {
	i := sort.Search(len(g.blocks), func(i int) bool {
		return addr.Compare(g.blocks[i].First(), at) >= 0
	})
	if i < len(g.blocks) && addr.Compare(g.blocks[i].First(), at) == 0 {
		return i
	}
	// at may fall inside the block just before i.
	if i > 0 && g.blocks[i-1].indexOf(at) >= 0 {
		return i - 1
	}
	return -1
}

// AddBasicBlockVertex inserts bb into the graph, keeping blocks ordered by
// entry address.
func (g *Graph) AddBasicBlockVertex(bb *BasicBlock) {
	i := sort.Search(len(g.blocks), func(i int) bool {
		return addr.Compare(g.blocks[i].First(), bb.First()) >= 0
	})
	g.blocks = append(g.blocks, nil)
	copy(g.blocks[i+1:], g.blocks[i:])
	g.blocks[i] = bb
}

// SplitBasicBlock ensures dst begins its own basic block, splitting
// whichever existing block currently contains it. src and kind are not
// used here; the edge itself is recorded
// separately by AddBasicBlockEdge, mirroring the original's two-pass
// split-then-connect structure.
func (g *Graph) SplitBasicBlock(dst, src addr.Address, kind EdgeKind) bool {
	idx := g.blockIndexContaining(dst)
	if idx < 0 {
		return false
	}
	if addr.Compare(g.blocks[idx].First(), dst) == 0 {
		return true // already a block boundary
	}
	tail, ok := g.blocks[idx].split(dst)
	if !ok {
		return false
	}
	g.AddBasicBlockVertex(tail)
	return true
}

// AddBasicBlockEdge records a control transfer from the block containing
// src to the block containing dst.
func (g *Graph) AddBasicBlockEdge(kind EdgeKind, src, dst addr.Address) {
	g.edges = append(g.edges, Edge{Src: src, Dst: dst, Kind: kind})
}

// Finalize reconciles the graph's edges into the document's cross
// reference index, so downstream callers asking the document "what jumps
// to this address" see the same answers the CFG agreed on.
func (g *Graph) Finalize(doc *document.Document) {
	for _, e := range g.edges {
		doc.InsertXRef(e.Src, e.Dst, xref.Jump)
	}
}

// BlockContaining returns the block whose range contains at, if any.
func (g *Graph) BlockContaining(at addr.Address) (*BasicBlock, bool) {
	idx := g.blockIndexContaining(at)
	if idx < 0 {
		return nil, false
	}
	return g.blocks[idx], true
}

// Build walks the function beginning at entry (straight-line, following
// cell lengths) until an unconditional Return, collects it as one
// BasicBlock, then cuts it apart at every Jump-kind xref the analyzer left
// behind and records the matching edge. A trailing reconciliation pass
// adds the implicit "falls into the next block" edges the original calls
// Next: a Call instruction, or any block whose last instruction wasn't
// itself the source of an edge, connects straight through to the
// following block.
func Build(doc *document.Document, entry addr.Address) *Graph {
	g := NewGraph()

	var trace []addr.Address
	cur := entry
	for {
		c, _, ok := doc.RetrieveCell(cur)
		if !ok || !c.IsCode() {
			break
		}
		trace = append(trace, cur)
		if c.Insn.SubType&cell.Return != 0 && c.Insn.SubType&cell.Conditional == 0 {
			break
		}
		cur = cur.Add(int64(c.Header.Length))
	}
	if len(trace) == 0 {
		return g
	}
	g.AddBasicBlockVertex(&BasicBlock{Addresses: append([]addr.Address(nil), trace...)})

	edges := doc.AllXRefs()
	hasEdge := make(map[addr.Address]bool)

	addEdge := func(kind EdgeKind, src, dst addr.Address) {
		g.SplitBasicBlock(dst, src, kind)
		g.AddBasicBlockEdge(kind, src, dst)
		hasEdge[src] = true
	}

	for _, at := range trace {
		c, _, ok := doc.RetrieveCell(at)
		if !ok || !c.IsTerminator() {
			continue
		}
		targets := jumpTargetsFrom(edges, at)

		switch {
		case c.Insn.SubType&cell.Jump != 0 && c.Insn.SubType&cell.Conditional != 0:
			for _, t := range targets {
				addEdge(True, at, t)
			}
			addEdge(False, at, at.Add(int64(c.Header.Length)))

		case c.Insn.SubType&cell.Jump != 0:
			kind := Unconditional
			if len(targets) > 1 {
				kind = Multiple
			}
			for _, t := range targets {
				addEdge(kind, at, t)
			}

		case c.Insn.SubType&cell.Return != 0 && c.Insn.SubType&cell.Conditional != 0:
			addEdge(Next, at, at.Add(int64(c.Header.Length)))
		}
	}

	blocks := g.Blocks()
	for i := 0; i+1 < len(blocks); i++ {
		last := blocks[i].Last()
		if hasEdge[last] {
			continue
		}
		addEdge(Next, last, blocks[i+1].First())
	}

	return g
}

func jumpTargetsFrom(edges []xref.Edge, from addr.Address) []addr.Address {
	var out []addr.Address
	for _, e := range edges {
		if e.Kind == xref.Jump && addr.Compare(e.From, from) == 0 {
			out = append(out, e.To)
		}
	}
	return out
}
