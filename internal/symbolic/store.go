// Package symbolic implements the bounded symbolic interpreter the
// analyzer falls back to when static edge harvesting cannot resolve an
// indirect jump, computed call, or jump table.
package symbolic

import "disasm/internal/expr"

type binding struct {
	Key, Value expr.Expression
}

// Store is the ordered key→value symbolic context: an append-ordered list
// of bindings from key expressions (Identifier, Memory, or Track-wrapped
// variants of either) to the value expression currently bound to them.
type Store struct {
	bindings []binding
	varPool  map[string]bool

	// condition is the first path condition recorded at the current
	// address — per spec.md §9's Open Question #2, history retains only
	// the first one, not a growing list, and jump-table enumeration
	// consults it as the enumeration's synthesized bound.
	condition expr.Expression
}

// NewStore builds an empty Store.
func NewStore() *Store {
	return &Store{varPool: make(map[string]bool)}
}

// unwrap strips a Track wrapper, or unwraps a Symbolic's carried body, so
// that keys compare against what they actually name rather than the
// tracking/symbolic scaffolding around it.
func unwrap(e expr.Expression) expr.Expression {
	switch v := e.(type) {
	case *expr.TrackExpr:
		return v.Inner
	case *expr.SymbolicExpr:
		if v.Body != nil {
			return v.Body
		}
		return e
	default:
		return e
	}
}

// FindIdentifier returns the value and key bound to the first entry whose
// unwrapped key is an Identifier with the given register id.
func (s *Store) FindIdentifier(id uint32) (value, key expr.Expression, found bool) {
	for _, b := range s.bindings {
		if ident, ok := unwrap(b.Key).(*expr.IdentifierExpr); ok && ident.ID == id {
			return b.Value, b.Key, true
		}
	}
	return nil, nil, false
}

// FindVariable returns the value bound to the first entry whose unwrapped
// key is a Variable with the given name.
func (s *Store) FindVariable(name string) (value expr.Expression, found bool) {
	for _, b := range s.bindings {
		if v, ok := unwrap(b.Key).(*expr.VariableExpr); ok && v.Name == name {
			return b.Value, true
		}
	}
	return nil, false
}

// FindMatching returns the value of the first binding whose unwrapped key
// compares Identical or SameExpression to target (mirrors FindExpression
// in the original symbolic visitor, used to recall a previously recorded
// unresolved Memory reference).
func (s *Store) FindMatching(target expr.Expression) (expr.Expression, bool) {
	for _, b := range s.bindings {
		if target.Compare(unwrap(b.Key)) != expr.Different {
			return b.Value, true
		}
	}
	return nil, false
}

// Bind appends a new key→value binding.
func (s *Store) Bind(key, value expr.Expression) {
	s.bindings = append(s.bindings, binding{Key: key, Value: value})
}

// EraseMatching removes the first binding whose unwrapped key compares
// Identical to either a or b, mirroring VisitAssignment's rebind step
// (old binding for the destination is dropped before the new one is
// installed).
func (s *Store) EraseMatching(a, b expr.Expression) {
	for i, bnd := range s.bindings {
		cur := unwrap(bnd.Key)
		if cur.Compare(a) == expr.Identical || cur.Compare(b) == expr.Identical {
			s.bindings = append(s.bindings[:i], s.bindings[i+1:]...)
			return
		}
	}
}

// EraseVariable removes every binding whose unwrapped key is a Variable
// with the given name (VisitVariable's Free action).
func (s *Store) EraseVariable(name string) {
	out := s.bindings[:0]
	for _, b := range s.bindings {
		if v, ok := unwrap(b.Key).(*expr.VariableExpr); ok && v.Name == name {
			continue
		}
		out = append(out, b)
	}
	s.bindings = out
}

// AllocVariable records name as allocated, reporting ok=false if it
// already was.
func (s *Store) AllocVariable(name string) (ok bool) {
	if s.varPool[name] {
		return false
	}
	s.varPool[name] = true
	return true
}

// IsVariableAllocated reports whether name is currently in the pool.
func (s *Store) IsVariableAllocated(name string) bool { return s.varPool[name] }

// FreeVariable removes name from the pool.
func (s *Store) FreeVariable(name string) { delete(s.varPool, name) }

// Fork deep-clones the store, its path condition, and its variable pool so
// a branch can be explored without cross-talk with the original.
func (s *Store) Fork() *Store {
	clone := NewStore()
	for _, b := range s.bindings {
		clone.bindings = append(clone.bindings, binding{Key: expr.Clone(b.Key), Value: expr.Clone(b.Value)})
	}
	for name := range s.varPool {
		clone.varPool[name] = true
	}
	if s.condition != nil {
		clone.condition = expr.Clone(s.condition)
	}
	return clone
}

// RecordCondition sets the store's path condition the first time it is
// called; later calls are no-ops, matching the "first condition at the
// current address" rule jump-table enumeration relies on.
func (s *Store) RecordCondition(cond expr.Expression) {
	if s.condition == nil {
		s.condition = cond
	}
}

// Condition returns the store's recorded path condition, if any.
func (s *Store) Condition() (expr.Expression, bool) {
	return s.condition, s.condition != nil
}

// Bindings returns the bindings in insertion order, for callers that need
// to walk the full context.
func (s *Store) Bindings() []struct{ Key, Value expr.Expression } {
	out := make([]struct{ Key, Value expr.Expression }, len(s.bindings))
	for i, b := range s.bindings {
		out[i] = struct{ Key, Value expr.Expression }{Key: b.Key, Value: b.Value}
	}
	return out
}
