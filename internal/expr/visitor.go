package expr

// Visitor is implemented once per interpretation pass over an Expression
// tree. There is no shared base implementation: each concrete visitor owns
// its full traversal, since the passes differ too much (clone, filter,
// evaluate, rename) for a default walk to pull its weight. Returning nil
// from any Visit* method is valid and means "this node contributes nothing"
// — EvaluateVisitor and the symbolic executor's Visitor both rely on it.
type Visitor interface {
	VisitBitVector(*BitVectorExpr) Expression
	VisitIdentifier(*IdentifierExpr) Expression
	VisitVectorIdentifier(*VectorIdentifierExpr) Expression
	VisitVariable(*VariableExpr) Expression
	VisitMemory(*MemoryExpr) Expression
	VisitSymbolic(*SymbolicExpr) Expression
	VisitTrack(*TrackExpr) Expression
	VisitUnaryOp(*UnaryOpExpr) Expression
	VisitBinaryOp(*BinaryOpExpr) Expression
	VisitAssign(*AssignExpr) Expression
	VisitBind(*BindExpr) Expression
	VisitCond(*CondExpr) Expression
	VisitTernaryCond(*TernaryCondExpr) Expression
	VisitIfElse(*IfElseExpr) Expression
	VisitWhileCond(*WhileCondExpr) Expression
	VisitSystem(*SystemExpr) Expression
}

// visitOrNil visits e with v, returning nil if e itself is nil. The
// visitors in this package do not call it; each checks its optional
// (nullable) child fields inline.
func visitOrNil(e Expression, v Visitor) Expression {
	if e == nil {
		return nil
	}
	return e.Visit(v)
}
