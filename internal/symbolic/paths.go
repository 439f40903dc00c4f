package symbolic

import (
	"disasm/internal/addr"
	"disasm/internal/bitvector"
	"disasm/internal/expr"
	"disasm/internal/registry"
)

// Destination is one candidate successor address discovered by
// FindAllPaths, along with the path conditions (if any) that must hold for
// control to actually reach it.
type Destination struct {
	Target     expr.Expression
	Conditions []expr.Expression
}

const maxJumpTableEntries = 4096

// FindAllPaths inspects the program counter's current binding in v.Store
// and reports every statically determinable successor. Grounded on
// SymbolicVisitor::FindAllPaths in the original: a concrete BitVector or an
// ExternalFunction Symbolic is a single path; a TernaryCond is two paths
// (true/false) each carrying its governing condition; a Memory read
// matching the `table[index*entrySize + base]` shape is enumerated entry
// by entry while the store's recorded path condition (the first one seen
// at the current address, per spec.md §9's Open Question #2) evaluates
// true for the candidate index — the same synthesized bound the original
// re-checks against its loop-bound compare instruction.
func FindAllPaths(v *Visitor, cpu registry.CpuInformation, mode uint8, cb func(Destination)) (found int, ok bool) {
	if cpu == nil {
		return 0, false
	}
	pcID := cpu.RegisterByType(registry.RegisterProgramCounter, mode)
	if pcID == 0 {
		return 0, false
	}
	pcExpr, _, present := v.Store.FindIdentifier(uint32(pcID))
	if !present {
		return 0, false
	}

	switch dst := pcExpr.(type) {
	case *expr.BitVectorExpr:
		cb(Destination{Target: dst})
		return 1, true

	case *expr.SymbolicExpr:
		cb(Destination{Target: dst})
		return 1, true

	case *expr.TernaryCondExpr:
		cb(Destination{
			Target:     dst.True,
			Conditions: []expr.Expression{expr.MakeCond(dst.Op, dst.Ref, dst.Test)},
		})
		cb(Destination{
			Target:     dst.False,
			Conditions: []expr.Expression{expr.MakeCond(dst.Op.Opposite(), dst.Ref, dst.Test)},
		})
		return 2, true

	case *expr.MemoryExpr:
		return findJumpTablePaths(v, dst, cb)
	}

	return 0, true
}

// indexEnv resolves only the jump-table index register to a candidate
// concrete value, the environment findJumpTablePaths uses to test the
// synthesized bound condition at each step of the enumeration.
type indexEnv struct {
	regID uint32
	value bitvector.BitVector
}

func (e *indexEnv) ReadRegister(id uint32, archTag string) (bitvector.BitVector, bool) {
	if id == e.regID {
		return e.value, true
	}
	return bitvector.BitVector{}, false
}

func (e *indexEnv) ReadMemory(accessBits uint16, address bitvector.BitVector) (bitvector.BitVector, bool) {
	return bitvector.BitVector{}, false
}

// findJumpTablePaths matches dst.Offset against Add(Mul(idx, entrySize),
// tableBase) (in either operand order) and, if it matches, walks
// idx = 0, 1, 2, ... reading the table entry at each step while the
// store's recorded path condition (the bound the original code's
// compare-and-branch guarded the table dispatch with) evaluates true for
// that candidate index. Per spec.md §4.5 rule 4: "Stop on first failing
// condition, first non-concrete read, or when no condition applies" — so
// with no recorded condition, nothing is enumerated: the implicit
// condition is required, not a loose fallback bounded by file layout.
func findJumpTablePaths(v *Visitor, dst *expr.MemoryExpr, cb func(Destination)) (found int, ok bool) {
	mul, base, matched := matchJumpTableShape(dst.Offset)
	if !matched {
		return 0, false
	}
	idxExpr, entrySize, matched := matchIndexTimesSize(mul)
	if !matched {
		return 0, false
	}
	baseConst, isConst := base.(*expr.BitVectorExpr)
	if !isConst {
		return 0, false
	}

	idents := expr.Filter(idxExpr, func(e expr.Expression) bool {
		_, ok := e.(*expr.IdentifierExpr)
		return ok
	})
	if len(idents) != 1 {
		return 0, false
	}
	idxReg := idents[0].(*expr.IdentifierExpr)

	cond, hasCond := v.Store.Condition()
	if !hasCond {
		return 0, true
	}

	entryWidth := int(dst.AccessBits) / 8
	baseAddr := baseConst.Value.Unsigned()

	for i := uint64(0); i < maxJumpTableEntries; i++ {
		idxVal := bitvector.New(entrySize.Value.Width(), i)
		env := &indexEnv{regID: idxReg.ID, value: idxVal}
		holds, ok := expr.Evaluate(cond, env)
		if !ok || holds.IsZero() {
			break
		}

		entryAddr := addr.New(0, baseAddr+i*entrySize.Value.Unsigned())
		fileOff, err := v.doc.Translate(entryAddr)
		if err != nil {
			break
		}
		bs := v.doc.BinaryStream()
		if bs == nil {
			break
		}
		raw, err := bs.Read(fileOff, entryWidth)
		if err != nil {
			break
		}
		entryVal := bitvector.New(dst.AccessBits, raw)

		assumed := expr.MakeAssign(idxReg, expr.MakeBitVector(idxVal))
		found++
		cb(Destination{Target: expr.MakeBitVector(entryVal), Conditions: []expr.Expression{assumed}})
	}

	return found, true
}

func matchJumpTableShape(offset expr.Expression) (mul, base expr.Expression, ok bool) {
	bin, isBin := offset.(*expr.BinaryOpExpr)
	if !isBin || bin.Op != expr.Add {
		return nil, nil, false
	}
	if m, isMul := bin.L.(*expr.BinaryOpExpr); isMul && m.Op == expr.Mul {
		return bin.L, bin.R, true
	}
	if m, isMul := bin.R.(*expr.BinaryOpExpr); isMul && m.Op == expr.Mul {
		return bin.R, bin.L, true
	}
	return nil, nil, false
}

func matchIndexTimesSize(mul expr.Expression) (idx expr.Expression, size *expr.BitVectorExpr, ok bool) {
	bin, isBin := mul.(*expr.BinaryOpExpr)
	if !isBin || bin.Op != expr.Mul {
		return nil, nil, false
	}
	if sz, isConst := bin.R.(*expr.BitVectorExpr); isConst {
		return bin.L, sz, true
	}
	if sz, isConst := bin.L.(*expr.BitVectorExpr); isConst {
		return bin.R, sz, true
	}
	return nil, nil, false
}
