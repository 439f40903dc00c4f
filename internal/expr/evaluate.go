package expr

import "disasm/internal/bitvector"

// Environment answers the concrete register and memory reads an
// EvaluateVisitor needs while folding a tree down to a single BitVector.
// The symbolic executor's Store implements this; tests can supply a bare
// map-backed stub.
type Environment interface {
	ReadRegister(id uint32, archTag string) (bitvector.BitVector, bool)
	ReadMemory(accessBits uint16, address bitvector.BitVector) (bitvector.BitVector, bool)
}

// EvaluateVisitor folds an Expression tree down to a concrete BitVector
// wherever every leaf it touches is concrete. Any node it cannot resolve —
// an unbound Variable, a Symbolic value, an unreadable memory cell, a loop —
// yields a nil Expression from the corresponding Visit* method, which
// propagates up: the whole tree is non-constant the moment one leaf is.
// Faulted records whether the non-constant result is actually an arithmetic
// fault (currently only division/modulo by zero) so callers can surface a
// DivisionByZero error instead of silently treating the tree as symbolic.
type EvaluateVisitor struct {
	Env     Environment
	Faulted bool
	FaultOp Op
}

func NewEvaluateVisitor(env Environment) *EvaluateVisitor {
	return &EvaluateVisitor{Env: env}
}

// Evaluate folds root to a concrete BitVector, or reports ok=false if any
// part of the tree is not resolvable given env.
func Evaluate(root Expression, env Environment) (bitvector.BitVector, bool) {
	ev := NewEvaluateVisitor(env)
	result := root.Visit(ev)
	bv, ok := result.(*BitVectorExpr)
	if !ok {
		return bitvector.BitVector{}, false
	}
	return bv.Value, true
}

func asBitVector(e Expression) (bitvector.BitVector, bool) {
	bv, ok := e.(*BitVectorExpr)
	if !ok {
		return bitvector.BitVector{}, false
	}
	return bv.Value, true
}

func (ev *EvaluateVisitor) VisitBitVector(e *BitVectorExpr) Expression { return e }

func (ev *EvaluateVisitor) VisitIdentifier(e *IdentifierExpr) Expression {
	v, ok := ev.Env.ReadRegister(e.ID, e.ArchTag)
	if !ok {
		return nil
	}
	return MakeBitVector(v)
}

func (ev *EvaluateVisitor) VisitVectorIdentifier(e *VectorIdentifierExpr) Expression { return nil }

func (ev *EvaluateVisitor) VisitVariable(e *VariableExpr) Expression { return nil }

func (ev *EvaluateVisitor) VisitMemory(e *MemoryExpr) Expression {
	offset := e.Offset.Visit(ev)
	offVal, ok := asBitVector(offset)
	if !ok {
		return nil
	}
	addrVal := offVal
	if e.Base != nil {
		base := e.Base.Visit(ev)
		baseVal, ok := asBitVector(base)
		if !ok {
			return nil
		}
		addrVal = bitvector.Add(baseVal, offVal)
	}
	v, ok := ev.Env.ReadMemory(e.AccessBits, addrVal)
	if !ok {
		return nil
	}
	return MakeBitVector(v)
}

func (ev *EvaluateVisitor) VisitSymbolic(e *SymbolicExpr) Expression { return nil }

func (ev *EvaluateVisitor) VisitTrack(e *TrackExpr) Expression { return e.Inner.Visit(ev) }

func (ev *EvaluateVisitor) VisitUnaryOp(e *UnaryOpExpr) Expression {
	v, ok := asBitVector(e.E.Visit(ev))
	if !ok {
		return nil
	}
	result, ok := ApplyUnary(e.Op, v)
	if !ok {
		ev.Faulted = true
		ev.FaultOp = e.Op
		return nil
	}
	return MakeBitVector(result)
}

func (ev *EvaluateVisitor) VisitBinaryOp(e *BinaryOpExpr) Expression {
	l, ok := asBitVector(e.L.Visit(ev))
	if !ok {
		return nil
	}
	r, ok := asBitVector(e.R.Visit(ev))
	if !ok {
		return nil
	}
	result, ok := ApplyBinary(e.Op, l, r)
	if !ok {
		ev.Faulted = true
		ev.FaultOp = e.Op
		return nil
	}
	return MakeBitVector(result)
}

func (ev *EvaluateVisitor) VisitAssign(e *AssignExpr) Expression {
	return e.Src.Visit(ev)
}

func (ev *EvaluateVisitor) VisitBind(e *BindExpr) Expression {
	var last Expression
	for _, x := range e.List {
		last = x.Visit(ev)
		if last == nil {
			return nil
		}
	}
	return last
}

func (ev *EvaluateVisitor) VisitCond(e *CondExpr) Expression {
	ref, ok := asBitVector(e.Ref.Visit(ev))
	if !ok {
		return nil
	}
	test, ok := asBitVector(e.Test.Visit(ev))
	if !ok {
		return nil
	}
	if e.Op.Eval(ref, test) {
		return MakeBitVector(bitvector.New(1, 1))
	}
	return MakeBitVector(bitvector.New(1, 0))
}

func (ev *EvaluateVisitor) VisitTernaryCond(e *TernaryCondExpr) Expression {
	cond := e.Condition().Visit(ev)
	cv, ok := asBitVector(cond)
	if !ok {
		return nil
	}
	if !cv.IsZero() {
		return e.True.Visit(ev)
	}
	return e.False.Visit(ev)
}

func (ev *EvaluateVisitor) VisitIfElse(e *IfElseExpr) Expression {
	cond := MakeCond(e.Op, e.Ref, e.Test).Visit(ev)
	cv, ok := asBitVector(cond)
	if !ok {
		return nil
	}
	if !cv.IsZero() {
		return e.Then.Visit(ev)
	}
	if e.Else != nil {
		return e.Else.Visit(ev)
	}
	return nil
}

// VisitWhileCond never folds: a constant folder does not unroll loops.
func (ev *EvaluateVisitor) VisitWhileCond(e *WhileCondExpr) Expression { return nil }

func (ev *EvaluateVisitor) VisitSystem(e *SystemExpr) Expression { return nil }
