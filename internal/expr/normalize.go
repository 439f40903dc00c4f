package expr

// NormalizeIdentifier rewrites every IdentifierExpr (and the members of a
// VectorIdentifierExpr) through a caller-supplied mapping, canonicalizing
// architecture-specific register aliases (e.g. AL/AH/AX/EAX all naming
// parts of RAX) onto one identifier before two expressions are compared or
// merged across instructions.
type NormalizeIdentifier struct {
	Map func(id uint32) uint32
}

func NewNormalizeIdentifier(mapFn func(id uint32) uint32) *NormalizeIdentifier {
	return &NormalizeIdentifier{Map: mapFn}
}

// Normalize returns root with every register identifier passed through mapFn.
func Normalize(root Expression, mapFn func(id uint32) uint32) Expression {
	if root == nil {
		return nil
	}
	return root.Visit(NewNormalizeIdentifier(mapFn))
}

func (n *NormalizeIdentifier) VisitBitVector(e *BitVectorExpr) Expression { return MakeBitVector(e.Value) }

func (n *NormalizeIdentifier) VisitIdentifier(e *IdentifierExpr) Expression {
	return MakeIdentifier(n.Map(e.ID), e.ArchTag)
}

func (n *NormalizeIdentifier) VisitVectorIdentifier(e *VectorIdentifierExpr) Expression {
	regs := make([]uint32, len(e.Regs))
	for i, r := range e.Regs {
		regs[i] = n.Map(r)
	}
	return MakeVectorIdentifier(regs)
}

func (n *NormalizeIdentifier) VisitVariable(e *VariableExpr) Expression {
	return MakeVariable(e.Name, e.Action, e.BitSize)
}

func (n *NormalizeIdentifier) VisitMemory(e *MemoryExpr) Expression {
	var base Expression
	if e.Base != nil {
		base = e.Base.Visit(n)
	}
	return MakeMemory(e.AccessBits, base, e.Offset.Visit(n), e.Dereferencable)
}

func (n *NormalizeIdentifier) VisitSymbolic(e *SymbolicExpr) Expression {
	var body Expression
	if e.Body != nil {
		body = e.Body.Visit(n)
	}
	return MakeSymbolic(e.Kind, e.Name, e.Address, body)
}

func (n *NormalizeIdentifier) VisitTrack(e *TrackExpr) Expression {
	return MakeTrack(e.Inner.Visit(n), e.Origin, e.Position)
}

func (n *NormalizeIdentifier) VisitUnaryOp(e *UnaryOpExpr) Expression {
	return MakeUnaryOp(e.Op, e.E.Visit(n))
}

func (n *NormalizeIdentifier) VisitBinaryOp(e *BinaryOpExpr) Expression {
	return MakeBinaryOp(e.Op, e.L.Visit(n), e.R.Visit(n))
}

func (n *NormalizeIdentifier) VisitAssign(e *AssignExpr) Expression {
	return MakeAssign(e.Dst.Visit(n), e.Src.Visit(n))
}

func (n *NormalizeIdentifier) VisitBind(e *BindExpr) Expression {
	list := make([]Expression, len(e.List))
	for i, x := range e.List {
		list[i] = x.Visit(n)
	}
	return MakeBind(list)
}

func (n *NormalizeIdentifier) VisitCond(e *CondExpr) Expression {
	return MakeCond(e.Op, e.Ref.Visit(n), e.Test.Visit(n))
}

func (n *NormalizeIdentifier) VisitTernaryCond(e *TernaryCondExpr) Expression {
	return MakeTernaryCond(e.Op, e.Ref.Visit(n), e.Test.Visit(n), e.True.Visit(n), e.False.Visit(n))
}

func (n *NormalizeIdentifier) VisitIfElse(e *IfElseExpr) Expression {
	var els Expression
	if e.Else != nil {
		els = e.Else.Visit(n)
	}
	return MakeIfElse(e.Op, e.Ref.Visit(n), e.Test.Visit(n), e.Then.Visit(n), els)
}

func (n *NormalizeIdentifier) VisitWhileCond(e *WhileCondExpr) Expression {
	return MakeWhileCond(e.Op, e.Ref.Visit(n), e.Test.Visit(n), e.Body.Visit(n))
}

func (n *NormalizeIdentifier) VisitSystem(e *SystemExpr) Expression { return MakeSystem(e.Name) }
