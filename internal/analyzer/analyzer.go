// Package analyzer implements the recursive-traversal disassembler: a
// work-list driven walk that decodes basic blocks, harvests control-flow
// edges from call/jump/return semantics, and falls back to the symbolic
// executor when an edge can't be read off a constant operand. Grounded on
// AnalyzerDisassemble::Disassemble/DisassembleBasicBlock in the original.
package analyzer

import (
	"log/slog"

	"disasm/internal/addr"
	"disasm/internal/bitvector"
	"disasm/internal/cell"
	"disasm/internal/cfg"
	"disasm/internal/document"
	"disasm/internal/errs"
	"disasm/internal/expr"
	"disasm/internal/label"
	"disasm/internal/memarea"
	"disasm/internal/registry"
	"disasm/internal/symbolic"
	"disasm/internal/xref"
)

// Analyzer drives disassembly of one Document using architectures,
// loaders and operating systems supplied by a Registry.
type Analyzer struct {
	doc *document.Document
	reg *registry.Registry
	log *slog.Logger
}

// New builds an Analyzer over doc, resolving architectures through reg.
// Diagnostics (spec.md §7's "user-visible failures") go to slog.Default()
// unless SetLogger overrides it.
func New(doc *document.Document, reg *registry.Registry) *Analyzer {
	return &Analyzer{doc: doc, reg: reg, log: slog.Default()}
}

// SetLogger redirects diagnostic records to logger instead of
// slog.Default(), the way a host embedding the analyzer would route them
// into its own handler.
func (a *Analyzer) SetLogger(logger *slog.Logger) {
	if logger != nil {
		a.log = logger
	}
}

// logErr emits a diagnostic naming err's kind (when err is a typed
// *errs.Error), the address, and a human message, per spec.md §7: "Each
// analyzer decision that drops a block emits a diagnostic record naming
// the kind, the address, and a human message." A side-effect only — it
// never touches the Document.
func (a *Analyzer) logErr(at addr.Address, err error) {
	if e, ok := err.(*errs.Error); ok {
		a.log.Warn("analyzer: abandoning", "kind", e.Kind.String(), "addr", at.String(), "message", e.Message)
		return
	}
	a.log.Warn("analyzer: abandoning", "addr", at.String(), "message", err.Error())
}

// logDrop emits a diagnostic for a drop decision that has no underlying
// typed error to unwrap (e.g. an overlap detected inline, or a symbolic
// destination that never resolved).
func (a *Analyzer) logDrop(at addr.Address, kind, message string) {
	a.log.Warn("analyzer: abandoning", "kind", kind, "addr", at.String(), "message", message)
}

func (a *Analyzer) resolveArch(at addr.Address) (registry.Architecture, uint8, error) {
	area, ok := a.doc.AreaAt(at)
	if !ok {
		return nil, 0, errs.At(errs.UnmappedAddress, at, "no memory area covers this address")
	}
	if !area.AccessAllows(memarea.Execute) {
		return nil, 0, errs.At(errs.NotExecutable, at, "memory area \""+area.Name+"\" is not executable")
	}
	tag, mode := area.DefaultArchTag, area.DefaultMode
	if c, _, ok := a.doc.RetrieveCell(at); ok && c.ArchTag != "" {
		tag, mode = c.ArchTag, c.Mode
	}
	arch := a.reg.ArchitectureByName(tag)
	if arch == nil {
		return nil, 0, errs.At(errs.NoArchitectureForCell, at, "no registered architecture named \""+tag+"\"")
	}
	return arch, mode, nil
}

// disassembleBasicBlock decodes instructions from start until it hits
// existing code, a decode error, or a cell already classified as a branch
// terminator (Jump, Call or Return), mirroring DisassembleBasicBlock.
func (a *Analyzer) disassembleBasicBlock(start addr.Address) (cells []*cell.Cell, addrs []addr.Address, err error) {
	cur := start
	for {
		if a.doc.ContainsCode(cur) {
			return cells, addrs, nil
		}
		if !a.doc.ContainsUnknown(cur) {
			return nil, nil, errs.At(errs.CellOverlap, cur, "cell is not unknown")
		}

		arch, mode, rerr := a.resolveArch(cur)
		if rerr != nil {
			return nil, nil, rerr
		}

		fileOff, terr := a.doc.Translate(cur)
		if terr != nil {
			return nil, nil, terr
		}
		insn, derr := arch.Decode(a.doc.BinaryStream(), fileOff, mode)
		if derr != nil {
			return nil, nil, derr
		}
		if insn.Length == 0 {
			return nil, nil, errs.At(errs.ZeroLengthInstruction, cur, "architecture decoded a zero length instruction")
		}
		insn.ArchTag, insn.Mode = arch.Name(), mode

		overlapsExisting := false
		for i := uint32(1); i < insn.Length; i++ {
			if a.doc.ContainsCode(cur.Add(int64(i))) {
				overlapsExisting = true
				break
			}
		}
		if overlapsExisting {
			return cells, addrs, nil
		}

		cells = append(cells, insn)
		addrs = append(addrs, cur)

		if insn.Insn.SubType&(cell.Jump|cell.Call|cell.Return) != 0 {
			return cells, addrs, nil
		}
		cur = cur.Add(int64(insn.Length))
	}
}

// pcEnvironment resolves only the program counter identifier to a fixed
// value, used to constant-fold a PC-relative jump/call target the way the
// original reads an operand's reference address.
type pcEnvironment struct {
	pcID  uint32
	value bitvector.BitVector
}

func (e *pcEnvironment) ReadRegister(id uint32, archTag string) (bitvector.BitVector, bool) {
	if id == e.pcID {
		return e.value, true
	}
	return bitvector.BitVector{}, false
}

func (e *pcEnvironment) ReadMemory(accessBits uint16, address bitvector.BitVector) (bitvector.BitVector, bool) {
	return bitvector.BitVector{}, false
}

// resolveDestination looks for an assignment to the program counter in c's
// semantic and constant-folds its source, mirroring
// Instruction::GetOperandReference for the direct (non-symbolic) case.
func (a *Analyzer) resolveDestination(c *cell.Cell, at addr.Address, arch registry.Architecture, mode uint8) (addr.Address, bool) {
	if c.Insn == nil {
		return addr.Address{}, false
	}
	cpu := arch.CpuInformation()
	if cpu == nil {
		return addr.Address{}, false
	}
	pcID := cpu.RegisterByType(registry.RegisterProgramCounter, mode)
	if pcID == 0 {
		return addr.Address{}, false
	}
	ref := arch.CurrentAddress(at, c)
	env := &pcEnvironment{pcID: uint32(pcID), value: bitvector.New(64, ref.Offset)}

	for _, e := range c.Insn.Semantic {
		assign, ok := e.(*expr.AssignExpr)
		if !ok {
			continue
		}
		ident, ok := assign.Dst.(*expr.IdentifierExpr)
		if !ok || ident.ID != uint32(pcID) {
			continue
		}
		val, ok := expr.Evaluate(assign.Src, env)
		if !ok {
			continue
		}
		return addr.New(at.Base, val.Unsigned()), true
	}
	return addr.Address{}, false
}

// FindCrossReference records data cross references for any Memory operand
// in c's semantic that resolves to a constant address, a supplemented
// feature beyond the original's opaque AnalyzerInstruction::FindCrossReference.
func (a *Analyzer) FindCrossReference(at addr.Address, c *cell.Cell) {
	if c.Insn == nil {
		return
	}
	for _, e := range c.Insn.Semantic {
		var dst expr.Expression
		if assign, isAssign := e.(*expr.AssignExpr); isAssign {
			dst = assign.Dst
			if mem, isMemDst := dst.(*expr.MemoryExpr); isMemDst {
				if target, ok := constantMemoryAddress(mem); ok {
					a.doc.InsertXRef(at, addr.New(at.Base, target), xref.DataWrite)
				}
			}
		}
		for _, candidate := range expr.Filter(e, func(x expr.Expression) bool {
			_, ok := x.(*expr.MemoryExpr)
			return ok
		}) {
			if candidate == dst {
				continue
			}
			mem := candidate.(*expr.MemoryExpr)
			if target, ok := constantMemoryAddress(mem); ok {
				a.doc.InsertXRef(at, addr.New(at.Base, target), xref.DataRead)
			}
		}
	}
}

func constantMemoryAddress(mem *expr.MemoryExpr) (uint64, bool) {
	bv, ok := mem.Offset.(*expr.BitVectorExpr)
	if !ok {
		return 0, false
	}
	return bv.Value.Unsigned(), true
}

// Disassemble walks the function reachable from entry, decoding basic
// blocks and following call/jump/return edges it can read directly off
// constant operands. It returns nil once the work-list is exhausted;
// unresolved edges are simply abandoned, same as the original giving up on
// an operand reference it can't compute.
func (a *Analyzer) Disassemble(entry addr.Address) error {
	if lbl, ok := a.doc.LabelAt(entry); ok && lbl.Type.Has(label.Imported) {
		return nil
	}
	if _, ok := a.doc.AreaAt(entry); !ok {
		return errs.At(errs.UnmappedAddress, entry, "no memory area covers the entry point")
	}

	stack := []addr.Address{entry}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		functionFinished := false

		for !a.doc.ContainsCode(cur) {
			if lbl, ok := a.doc.LabelAt(cur); ok && lbl.Type.Has(label.Imported) {
				break
			}

			block, addrs, err := a.disassembleBasicBlock(cur)
			if err != nil || len(block) == 0 {
				if err != nil {
					a.logErr(cur, err)
				} else {
					a.logDrop(cur, "EmptyBlock", "basic block decode produced no instructions")
				}
				break
			}

			for i, insn := range block {
				at := addrs[i]
				if a.doc.ContainsCode(at) {
					a.logDrop(at, errs.CellOverlap.String(), "instruction overlaps a cell decoded by another path; abandoning the rest of this block")
					functionFinished = true
					break
				}
				if err := a.doc.InsertCell(at, insn, true, true); err != nil {
					a.logErr(at, err)
					functionFinished = true
					continue
				}
				a.FindCrossReference(at, insn)
			}
			if functionFinished {
				break
			}

			lastAddr := addrs[len(addrs)-1]
			lastInsn := block[len(block)-1]
			arch, mode, rerr := a.resolveArch(lastAddr)
			if rerr != nil {
				a.logErr(lastAddr, rerr)
				break
			}

			switch {
			case lastInsn.Insn.SubType&cell.Call != 0:
				stack = append(stack, arch.CurrentAddress(lastAddr, lastInsn))
				dst, ok := a.resolveDestination(lastInsn, lastAddr, arch, mode)
				if !ok {
					a.logDrop(lastAddr, "UnresolvedDestination", "could not resolve call target to a constant address; abandoning the edge")
					functionFinished = true
					break
				}
				a.doc.InsertXRef(lastAddr, dst, xref.Call)
				cur = dst

			case lastInsn.Insn.SubType&cell.Return != 0:
				if lastInsn.Insn.SubType&cell.Conditional != 0 {
					cur = lastAddr.Add(int64(lastInsn.Length))
					continue
				}
				functionFinished = true

			case lastInsn.Insn.SubType&cell.Jump != 0:
				if lastInsn.Insn.SubType&cell.Conditional != 0 {
					stack = append(stack, lastAddr.Add(int64(lastInsn.Length)))
				}
				dst, ok := a.resolveDestination(lastInsn, lastAddr, arch, mode)
				if !ok {
					a.logDrop(lastAddr, "UnresolvedDestination", "could not resolve jump target to a constant address; abandoning the edge")
					functionFinished = true
					break
				}
				a.doc.InsertXRef(lastAddr, dst, xref.Jump)
				cur = dst

			default:
				a.logDrop(lastAddr, "EmptyBlock", "basic block ended without a branch, call or return terminator")
				functionFinished = true
			}

			if functionFinished {
				break
			}
		}
	}

	return nil
}

// DisassembleSymbolic is the fallback walk for when a branch target
// resolves only through data-flow: it runs every decoded instruction's
// semantic through a symbolic.Visitor and asks symbolic.FindAllPaths for
// the program counter's possible destinations, forking the symbolic
// context across each one. Grounded on
// AnalyzerDisassemble::DisassembleUsingSymbolicExecution.
func (a *Analyzer) DisassembleSymbolic(entry addr.Address) error {
	if lbl, ok := a.doc.LabelAt(entry); ok && lbl.Type.Has(label.Imported) {
		return nil
	}
	if _, ok := a.doc.AreaAt(entry); !ok {
		return errs.At(errs.UnmappedAddress, entry, "no memory area covers the entry point")
	}

	type frame struct {
		store *symbolic.Store
		at    addr.Address
	}

	graph := cfg.NewGraph()
	var trace []addr.Address
	stack := []frame{{store: symbolic.NewStore(), at: entry}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		cur := f.at

		arch, mode, rerr := a.resolveArch(cur)
		if rerr != nil {
			a.logErr(cur, rerr)
			continue
		}
		fileOff, terr := a.doc.Translate(cur)
		if terr != nil {
			a.logErr(cur, terr)
			continue
		}
		insn, derr := arch.Decode(a.doc.BinaryStream(), fileOff, mode)
		if derr != nil {
			a.logDrop(cur, errs.DecodeFailure.String(), "symbolic walk could not decode this instruction; abandoning the branch")
			continue
		}
		insn.ArchTag, insn.Mode = arch.Name(), mode
		if err := a.doc.InsertCell(cur, insn, true, true); err != nil {
			a.logErr(cur, err)
			continue
		}
		trace = append(trace, cur)

		if insn.Insn == nil || len(insn.Insn.Semantic) == 0 {
			continue
		}

		v := symbolic.NewVisitor(a.doc, f.store, cur, true)
		v.SetLogger(a.log)
		for _, e := range insn.Insn.Semantic {
			v.Apply(e)
		}

		cpu := arch.CpuInformation()
		found, ok := symbolic.FindAllPaths(v, cpu, mode, func(d symbolic.Destination) {
			fork := v.Store.Fork()
			for _, c := range d.Conditions {
				fork.RecordCondition(c)
			}
			switch target := d.Target.(type) {
			case *expr.SymbolicExpr:
				// A symbolic destination (typically an imported function
				// pointer) can't be followed itself, but execution
				// resumes right after this instruction.
				_ = target
				next := cur.Add(int64(insn.Length))
				stack = append(stack, frame{store: fork, at: next})

			case *expr.BitVectorExpr:
				next := addr.New(cur.Base, target.Value.Unsigned())
				stack = append(stack, frame{store: fork, at: next})
				a.doc.InsertXRef(cur, next, xref.Jump)

			default:
				a.logDrop(cur, "UnresolvedDestination", "symbolic destination did not resolve to a followable target; dead end")
			}
		})
		if !ok {
			a.logDrop(cur, "UnresolvedDestination", "symbolic executor has no CPU/program-counter binding to dispatch on; dead end")
		} else if found == 0 {
			a.logDrop(cur, "UnresolvedDestination", "symbolic executor found no destination for this instruction; dead end")
		}
	}

	if len(trace) == 0 {
		return nil
	}
	graph.AddBasicBlockVertex(&cfg.BasicBlock{Addresses: trace})
	graph.Finalize(a.doc)
	return nil
}
