package expr

// CloneVisitor rebuilds an independent copy of every node it visits. Since
// Expression nodes are already treated as immutable once built, Clone exists
// for callers that need to splice a subtree into a different tree (e.g. the
// symbolic executor substituting a register's current value into a larger
// expression) without aliasing the original.
type CloneVisitor struct{}

func NewCloneVisitor() *CloneVisitor { return &CloneVisitor{} }

// Clone returns an independent deep copy of e.
func Clone(e Expression) Expression {
	if e == nil {
		return nil
	}
	return e.Visit(NewCloneVisitor())
}

func (c *CloneVisitor) VisitBitVector(e *BitVectorExpr) Expression {
	return MakeBitVector(e.Value)
}

func (c *CloneVisitor) VisitIdentifier(e *IdentifierExpr) Expression {
	return MakeIdentifier(e.ID, e.ArchTag)
}

func (c *CloneVisitor) VisitVectorIdentifier(e *VectorIdentifierExpr) Expression {
	return MakeVectorIdentifier(e.Regs)
}

func (c *CloneVisitor) VisitVariable(e *VariableExpr) Expression {
	return MakeVariable(e.Name, e.Action, e.BitSize)
}

func (c *CloneVisitor) VisitMemory(e *MemoryExpr) Expression {
	var base Expression
	if e.Base != nil {
		base = e.Base.Visit(c)
	}
	return MakeMemory(e.AccessBits, base, e.Offset.Visit(c), e.Dereferencable)
}

func (c *CloneVisitor) VisitSymbolic(e *SymbolicExpr) Expression {
	var body Expression
	if e.Body != nil {
		body = e.Body.Visit(c)
	}
	return MakeSymbolic(e.Kind, e.Name, e.Address, body)
}

func (c *CloneVisitor) VisitTrack(e *TrackExpr) Expression {
	return MakeTrack(e.Inner.Visit(c), e.Origin, e.Position)
}

func (c *CloneVisitor) VisitUnaryOp(e *UnaryOpExpr) Expression {
	return MakeUnaryOp(e.Op, e.E.Visit(c))
}

func (c *CloneVisitor) VisitBinaryOp(e *BinaryOpExpr) Expression {
	return MakeBinaryOp(e.Op, e.L.Visit(c), e.R.Visit(c))
}

func (c *CloneVisitor) VisitAssign(e *AssignExpr) Expression {
	return MakeAssign(e.Dst.Visit(c), e.Src.Visit(c))
}

func (c *CloneVisitor) VisitBind(e *BindExpr) Expression {
	list := make([]Expression, len(e.List))
	for i, x := range e.List {
		list[i] = x.Visit(c)
	}
	return MakeBind(list)
}

func (c *CloneVisitor) VisitCond(e *CondExpr) Expression {
	return MakeCond(e.Op, e.Ref.Visit(c), e.Test.Visit(c))
}

func (c *CloneVisitor) VisitTernaryCond(e *TernaryCondExpr) Expression {
	return MakeTernaryCond(e.Op, e.Ref.Visit(c), e.Test.Visit(c), e.True.Visit(c), e.False.Visit(c))
}

func (c *CloneVisitor) VisitIfElse(e *IfElseExpr) Expression {
	var els Expression
	if e.Else != nil {
		els = e.Else.Visit(c)
	}
	return MakeIfElse(e.Op, e.Ref.Visit(c), e.Test.Visit(c), e.Then.Visit(c), els)
}

func (c *CloneVisitor) VisitWhileCond(e *WhileCondExpr) Expression {
	return MakeWhileCond(e.Op, e.Ref.Visit(c), e.Test.Visit(c), e.Body.Visit(c))
}

func (c *CloneVisitor) VisitSystem(e *SystemExpr) Expression {
	return MakeSystem(e.Name)
}
