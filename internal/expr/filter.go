package expr

// FilterVisitor walks a tree collecting every node for which Predicate
// returns true, without altering the tree. It returns each node unchanged
// from its Visit* methods so that Visit can still be used for traversal,
// but callers should use Filter, not the visitor's return value. Quota, if
// positive, stops collecting (though traversal continues) once that many
// matches have been found — useful when a caller only needs "the first
// write to this register", not every one.
type FilterVisitor struct {
	Predicate func(Expression) bool
	Quota     int
	Found     []Expression
}

func NewFilterVisitor(predicate func(Expression) bool) *FilterVisitor {
	return &FilterVisitor{Predicate: predicate}
}

// Filter returns every subtree of root (root included) that matches predicate,
// in pre-order.
func Filter(root Expression, predicate func(Expression) bool) []Expression {
	if root == nil {
		return nil
	}
	fv := NewFilterVisitor(predicate)
	root.Visit(fv)
	return fv.Found
}

// FilterQuota is Filter but stops collecting after quota matches.
func FilterQuota(root Expression, predicate func(Expression) bool, quota int) []Expression {
	if root == nil {
		return nil
	}
	fv := NewFilterVisitor(predicate)
	fv.Quota = quota
	root.Visit(fv)
	return fv.Found
}

func (f *FilterVisitor) consider(e Expression) {
	if f.Quota > 0 && len(f.Found) >= f.Quota {
		return
	}
	if f.Predicate(e) {
		f.Found = append(f.Found, e)
	}
}

func (f *FilterVisitor) VisitBitVector(e *BitVectorExpr) Expression {
	f.consider(e)
	return e
}

func (f *FilterVisitor) VisitIdentifier(e *IdentifierExpr) Expression {
	f.consider(e)
	return e
}

func (f *FilterVisitor) VisitVectorIdentifier(e *VectorIdentifierExpr) Expression {
	f.consider(e)
	return e
}

func (f *FilterVisitor) VisitVariable(e *VariableExpr) Expression {
	f.consider(e)
	return e
}

func (f *FilterVisitor) VisitMemory(e *MemoryExpr) Expression {
	f.consider(e)
	if e.Base != nil {
		e.Base.Visit(f)
	}
	e.Offset.Visit(f)
	return e
}

func (f *FilterVisitor) VisitSymbolic(e *SymbolicExpr) Expression {
	f.consider(e)
	if e.Body != nil {
		e.Body.Visit(f)
	}
	return e
}

func (f *FilterVisitor) VisitTrack(e *TrackExpr) Expression {
	f.consider(e)
	e.Inner.Visit(f)
	return e
}

func (f *FilterVisitor) VisitUnaryOp(e *UnaryOpExpr) Expression {
	f.consider(e)
	e.E.Visit(f)
	return e
}

func (f *FilterVisitor) VisitBinaryOp(e *BinaryOpExpr) Expression {
	f.consider(e)
	e.L.Visit(f)
	e.R.Visit(f)
	return e
}

func (f *FilterVisitor) VisitAssign(e *AssignExpr) Expression {
	f.consider(e)
	e.Dst.Visit(f)
	e.Src.Visit(f)
	return e
}

func (f *FilterVisitor) VisitBind(e *BindExpr) Expression {
	f.consider(e)
	for _, x := range e.List {
		x.Visit(f)
	}
	return e
}

func (f *FilterVisitor) VisitCond(e *CondExpr) Expression {
	f.consider(e)
	e.Ref.Visit(f)
	e.Test.Visit(f)
	return e
}

func (f *FilterVisitor) VisitTernaryCond(e *TernaryCondExpr) Expression {
	f.consider(e)
	e.Ref.Visit(f)
	e.Test.Visit(f)
	e.True.Visit(f)
	e.False.Visit(f)
	return e
}

func (f *FilterVisitor) VisitIfElse(e *IfElseExpr) Expression {
	f.consider(e)
	e.Ref.Visit(f)
	e.Test.Visit(f)
	e.Then.Visit(f)
	if e.Else != nil {
		e.Else.Visit(f)
	}
	return e
}

func (f *FilterVisitor) VisitWhileCond(e *WhileCondExpr) Expression {
	f.consider(e)
	e.Ref.Visit(f)
	e.Test.Visit(f)
	e.Body.Visit(f)
	return e
}

func (f *FilterVisitor) VisitSystem(e *SystemExpr) Expression {
	f.consider(e)
	return e
}
