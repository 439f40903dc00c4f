package expr

import "disasm/internal/addr"

// TrackVisitor decorates every Identifier and Memory leaf it visits with a
// TrackExpr carrying the instruction address and a sequential position,
// letting later passes recover which register/memory access within an
// instruction produced a given value. Position counts up in visitation
// order (left to right, depth first).
type TrackVisitor struct {
	Origin addr.Address
	next   uint64
}

func NewTrackVisitor(origin addr.Address) *TrackVisitor {
	return &TrackVisitor{Origin: origin}
}

// Track decorates every register/memory leaf of root with tracking info
// rooted at origin.
func Track(root Expression, origin addr.Address) Expression {
	if root == nil {
		return nil
	}
	return root.Visit(NewTrackVisitor(origin))
}

func (t *TrackVisitor) mark(inner Expression) Expression {
	e := MakeTrack(inner, t.Origin, t.next)
	t.next++
	return e
}

func (t *TrackVisitor) VisitBitVector(e *BitVectorExpr) Expression { return MakeBitVector(e.Value) }

func (t *TrackVisitor) VisitIdentifier(e *IdentifierExpr) Expression {
	return t.mark(MakeIdentifier(e.ID, e.ArchTag))
}

func (t *TrackVisitor) VisitVectorIdentifier(e *VectorIdentifierExpr) Expression {
	return t.mark(MakeVectorIdentifier(e.Regs))
}

func (t *TrackVisitor) VisitVariable(e *VariableExpr) Expression {
	return MakeVariable(e.Name, e.Action, e.BitSize)
}

func (t *TrackVisitor) VisitMemory(e *MemoryExpr) Expression {
	var base Expression
	if e.Base != nil {
		base = e.Base.Visit(t)
	}
	return t.mark(MakeMemory(e.AccessBits, base, e.Offset.Visit(t), e.Dereferencable))
}

func (t *TrackVisitor) VisitSymbolic(e *SymbolicExpr) Expression {
	var body Expression
	if e.Body != nil {
		body = e.Body.Visit(t)
	}
	return MakeSymbolic(e.Kind, e.Name, e.Address, body)
}

func (t *TrackVisitor) VisitTrack(e *TrackExpr) Expression {
	// Already tracked; leave the existing annotation alone.
	return MakeTrack(Clone(e.Inner), e.Origin, e.Position)
}

func (t *TrackVisitor) VisitUnaryOp(e *UnaryOpExpr) Expression {
	return MakeUnaryOp(e.Op, e.E.Visit(t))
}

func (t *TrackVisitor) VisitBinaryOp(e *BinaryOpExpr) Expression {
	return MakeBinaryOp(e.Op, e.L.Visit(t), e.R.Visit(t))
}

func (t *TrackVisitor) VisitAssign(e *AssignExpr) Expression {
	return MakeAssign(e.Dst.Visit(t), e.Src.Visit(t))
}

func (t *TrackVisitor) VisitBind(e *BindExpr) Expression {
	list := make([]Expression, len(e.List))
	for i, x := range e.List {
		list[i] = x.Visit(t)
	}
	return MakeBind(list)
}

func (t *TrackVisitor) VisitCond(e *CondExpr) Expression {
	return MakeCond(e.Op, e.Ref.Visit(t), e.Test.Visit(t))
}

func (t *TrackVisitor) VisitTernaryCond(e *TernaryCondExpr) Expression {
	return MakeTernaryCond(e.Op, e.Ref.Visit(t), e.Test.Visit(t), e.True.Visit(t), e.False.Visit(t))
}

func (t *TrackVisitor) VisitIfElse(e *IfElseExpr) Expression {
	var els Expression
	if e.Else != nil {
		els = e.Else.Visit(t)
	}
	return MakeIfElse(e.Op, e.Ref.Visit(t), e.Test.Visit(t), e.Then.Visit(t), els)
}

func (t *TrackVisitor) VisitWhileCond(e *WhileCondExpr) Expression {
	return MakeWhileCond(e.Op, e.Ref.Visit(t), e.Test.Visit(t), e.Body.Visit(t))
}

func (t *TrackVisitor) VisitSystem(e *SystemExpr) Expression { return MakeSystem(e.Name) }

// BackTrackVisitor strips TrackExpr annotations, recovering the tree as it
// looked before Track ran. Used before structural Compare, which otherwise
// would see two equivalent expressions tracked at different addresses as
// Different.
type BackTrackVisitor struct{}

func NewBackTrackVisitor() *BackTrackVisitor { return &BackTrackVisitor{} }

// BackTrack returns root with every TrackExpr annotation removed.
func BackTrack(root Expression) Expression {
	if root == nil {
		return nil
	}
	return root.Visit(NewBackTrackVisitor())
}

func (b *BackTrackVisitor) VisitBitVector(e *BitVectorExpr) Expression { return MakeBitVector(e.Value) }
func (b *BackTrackVisitor) VisitIdentifier(e *IdentifierExpr) Expression {
	return MakeIdentifier(e.ID, e.ArchTag)
}
func (b *BackTrackVisitor) VisitVectorIdentifier(e *VectorIdentifierExpr) Expression {
	return MakeVectorIdentifier(e.Regs)
}
func (b *BackTrackVisitor) VisitVariable(e *VariableExpr) Expression {
	return MakeVariable(e.Name, e.Action, e.BitSize)
}
func (b *BackTrackVisitor) VisitMemory(e *MemoryExpr) Expression {
	var base Expression
	if e.Base != nil {
		base = e.Base.Visit(b)
	}
	return MakeMemory(e.AccessBits, base, e.Offset.Visit(b), e.Dereferencable)
}
func (b *BackTrackVisitor) VisitSymbolic(e *SymbolicExpr) Expression {
	var body Expression
	if e.Body != nil {
		body = e.Body.Visit(b)
	}
	return MakeSymbolic(e.Kind, e.Name, e.Address, body)
}
func (b *BackTrackVisitor) VisitTrack(e *TrackExpr) Expression { return e.Inner.Visit(b) }
func (b *BackTrackVisitor) VisitUnaryOp(e *UnaryOpExpr) Expression {
	return MakeUnaryOp(e.Op, e.E.Visit(b))
}
func (b *BackTrackVisitor) VisitBinaryOp(e *BinaryOpExpr) Expression {
	return MakeBinaryOp(e.Op, e.L.Visit(b), e.R.Visit(b))
}
func (b *BackTrackVisitor) VisitAssign(e *AssignExpr) Expression {
	return MakeAssign(e.Dst.Visit(b), e.Src.Visit(b))
}
func (b *BackTrackVisitor) VisitBind(e *BindExpr) Expression {
	list := make([]Expression, len(e.List))
	for i, x := range e.List {
		list[i] = x.Visit(b)
	}
	return MakeBind(list)
}
func (b *BackTrackVisitor) VisitCond(e *CondExpr) Expression {
	return MakeCond(e.Op, e.Ref.Visit(b), e.Test.Visit(b))
}
func (b *BackTrackVisitor) VisitTernaryCond(e *TernaryCondExpr) Expression {
	return MakeTernaryCond(e.Op, e.Ref.Visit(b), e.Test.Visit(b), e.True.Visit(b), e.False.Visit(b))
}
func (b *BackTrackVisitor) VisitIfElse(e *IfElseExpr) Expression {
	var els Expression
	if e.Else != nil {
		els = e.Else.Visit(b)
	}
	return MakeIfElse(e.Op, e.Ref.Visit(b), e.Test.Visit(b), e.Then.Visit(b), els)
}
func (b *BackTrackVisitor) VisitWhileCond(e *WhileCondExpr) Expression {
	return MakeWhileCond(e.Op, e.Ref.Visit(b), e.Test.Visit(b), e.Body.Visit(b))
}
func (b *BackTrackVisitor) VisitSystem(e *SystemExpr) Expression { return MakeSystem(e.Name) }
