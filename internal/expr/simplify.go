package expr

import "disasm/internal/bitvector"

// Simplify rewrites e bottom-up: BinaryOp/UnaryOp nodes whose operands are
// both concrete BitVectors fold via ApplyUnary/ApplyBinary (the same
// dispatch EvaluateVisitor uses), and a handful of algebraic identities
// collapse a concrete operand against a still-symbolic one (x+0, x*1, x*0,
// x^x, x&0, x|0) without requiring the other side to be concrete too. Any
// node outside that shape passes through unchanged. Division/modulo that
// would fault is left unfolded rather than silently producing a bogus
// constant; the caller still sees the symbolic form.
func Simplify(e Expression) Expression {
	switch v := e.(type) {
	case *UnaryOpExpr:
		inner := Simplify(v.E)
		if bv, ok := inner.(*BitVectorExpr); ok {
			if result, ok := ApplyUnary(v.Op, bv.Value); ok {
				return MakeBitVector(result)
			}
		}
		return MakeUnaryOp(v.Op, inner)

	case *BinaryOpExpr:
		l := Simplify(v.L)
		r := Simplify(v.R)
		lbv, lok := l.(*BitVectorExpr)
		rbv, rok := r.(*BitVectorExpr)
		if lok && rok {
			if result, ok := ApplyBinary(v.Op, lbv.Value, rbv.Value); ok {
				return MakeBitVector(result)
			}
			return MakeBinaryOp(v.Op, l, r)
		}
		if simplified, ok := simplifyIdentity(v.Op, l, r, lok, rok); ok {
			return simplified
		}
		return MakeBinaryOp(v.Op, l, r)

	default:
		return e
	}
}

// simplifyIdentity applies the subset of algebraic identities that hold
// regardless of which side is concrete: additive/multiplicative identity
// and annihilator elements, and self-cancellation under Sub/Xor.
func simplifyIdentity(op Op, l, r Expression, lok, rok bool) (Expression, bool) {
	var constSide Expression
	var other Expression
	var constIsLeft bool
	switch {
	case lok:
		constSide, other, constIsLeft = l, r, true
	case rok:
		constSide, other, constIsLeft = r, l, false
	default:
		if op == Sub || op == Xor {
			if l.Compare(r) != Different {
				return MakeBitVector(bitvector.New(0, 0)), true
			}
		}
		return nil, false
	}
	cv := constSide.(*BitVectorExpr).Value

	switch op {
	case Add:
		if cv.IsZero() {
			return other, true
		}
	case Sub:
		if constIsLeft && cv.IsZero() {
			return nil, false
		}
		if !constIsLeft && cv.IsZero() {
			return other, true
		}
	case Mul:
		if cv.IsZero() {
			return MakeBitVector(cv), true
		}
		if !cv.IsZero() && cv.Unsigned() == 1 {
			return other, true
		}
	case Or:
		if cv.IsZero() {
			return other, true
		}
	case Xor:
		if cv.IsZero() {
			return other, true
		}
	case And:
		if cv.IsZero() {
			return MakeBitVector(cv), true
		}
	}
	return nil, false
}
