// Package xref implements Graph, the directed multigraph of cross
// references between addresses (call sites, jump targets, data references)
// that Document exposes for "what calls this" / "what does this call"
// queries.
package xref

import "disasm/internal/addr"

// Kind classifies why an edge exists.
type Kind int

const (
	Call Kind = iota
	Jump
	DataRead
	DataWrite
)

// Edge is one cross reference: From references To as Kind.
type Edge struct {
	From, To addr.Address
	Kind     Kind
}

// Graph is a directed multigraph of Edges, indexed both ways so that
// "who references this address" and "what does this address reference"
// are both O(1) lookups.
type Graph struct {
	forward map[addr.Address][]Edge
	reverse map[addr.Address][]Edge
}

// New builds an empty Graph.
func New() *Graph {
	return &Graph{forward: make(map[addr.Address][]Edge), reverse: make(map[addr.Address][]Edge)}
}

// Insert adds an Edge. Duplicate (From,To,Kind) triples are allowed once
// each; inserting the exact same edge twice is a no-op.
func (g *Graph) Insert(from, to addr.Address, kind Kind) {
	e := Edge{From: from, To: to, Kind: kind}
	for _, existing := range g.forward[from] {
		if existing == e {
			return
		}
	}
	g.forward[from] = append(g.forward[from], e)
	g.reverse[to] = append(g.reverse[to], e)
}

// From returns every address that the given address references.
func (g *Graph) From(address addr.Address) []addr.Address {
	edges := g.forward[address]
	out := make([]addr.Address, len(edges))
	for i, e := range edges {
		out[i] = e.To
	}
	return out
}

// To returns every address that references the given address.
func (g *Graph) To(address addr.Address) []addr.Address {
	edges := g.reverse[address]
	out := make([]addr.Address, len(edges))
	for i, e := range edges {
		out[i] = e.From
	}
	return out
}

// EdgesFrom returns the full Edge records (with Kind) leaving address.
func (g *Graph) EdgesFrom(address addr.Address) []Edge {
	return append([]Edge(nil), g.forward[address]...)
}

// EdgesTo returns the full Edge records (with Kind) arriving at address.
func (g *Graph) EdgesTo(address addr.Address) []Edge {
	return append([]Edge(nil), g.reverse[address]...)
}

// All returns every edge in the graph, in no particular order.
func (g *Graph) All() []Edge {
	var out []Edge
	for _, edges := range g.forward {
		out = append(out, edges...)
	}
	return out
}

// Delete removes every edge leaving from, matching the document's
// "re-disassembling a cell invalidates its old xrefs" contract.
func (g *Graph) Delete(from addr.Address) {
	for _, e := range g.forward[from] {
		g.reverse[e.To] = removeEdge(g.reverse[e.To], e)
	}
	delete(g.forward, from)
}

func removeEdge(edges []Edge, target Edge) []Edge {
	out := edges[:0]
	for _, e := range edges {
		if e != target {
			out = append(out, e)
		}
	}
	return out
}
