// Package action implements the named, user-triggerable cell operations a
// front end binds to menu entries or key strokes: undefine, resize, the
// value-modifier toggles, string conversion, analyze, create-function and
// history navigation. Grounded on the per-action dispatch in
// cell_action.cpp, one small Action implementation per original
// CellAction_* class.
package action

import (
	"disasm/internal/addr"
	"disasm/internal/analyzer"
	"disasm/internal/cell"
	"disasm/internal/document"
	"disasm/internal/errs"
	"disasm/internal/label"
	"disasm/internal/registry"
)

// Range names the span of addresses an Action applies across, mirroring
// the original's RangeAddress (a begin/end pair identifying a selection).
type Range struct {
	Begin, End addr.Address
}

// Action is one named, compatibility-gated operation a caller can run
// against a Document over a Range.
type Action interface {
	Name() string
	Label() string
	IsCompatible(rng Range, idx int) bool
	Execute(doc *document.Document, target Range) error
}

// Registry is the name-indexed catalogue of known Actions, replacing the
// original's static local s_Actions map with an explicit, constructed
// value.
type Registry struct {
	byName map[string]Action
	order  []string
}

// NewRegistry builds a Registry preloaded with the standard action
// catalogue.
func NewRegistry(reg *registry.Registry) *Registry {
	r := &Registry{byName: make(map[string]Action)}
	r.register(undefineAction{})
	r.register(changeValueSizeAction{bits: 8})
	r.register(changeValueSizeAction{bits: 16})
	r.register(changeValueSizeAction{bits: 32})
	r.register(changeValueSizeAction{bits: 64})
	r.register(modifierAction{name: "ToCharacter", label: "To character", set: cell.ModCharacter})
	r.register(modifierAction{name: "ToReference", label: "To reference", set: cell.ModReference})
	r.register(modifierAction{name: "ToNot", label: "Not", toggle: cell.ModNot})
	r.register(modifierAction{name: "ToNegate", label: "Negate", toggle: cell.ModNegate})
	r.register(modifierAction{name: "ToNormal", label: "Normal", clearOnly: true})
	r.register(stringAction{name: "ToUTF8String", label: "To UTF-8 string", wide: false})
	r.register(stringAction{name: "ToUTF16String", label: "To UTF-16 string", wide: true})
	r.register(analyzeAction{reg: reg})
	r.register(createFunctionAction{reg: reg})
	r.register(navigateHistoryAction{name: "NavigateHistoryPrevious", label: "Go to previous address", forward: false})
	r.register(navigateHistoryAction{name: "NavigateHistoryNext", label: "Go to next address", forward: true})
	return r
}

func (r *Registry) register(a Action) {
	r.byName[a.Name()] = a
	r.order = append(r.order, a.Name())
}

// ByName returns the Action registered under name, if any.
func (r *Registry) ByName(name string) (Action, bool) {
	a, ok := r.byName[name]
	return a, ok
}

// All returns every registered Action in registration order.
func (r *Registry) All() []Action {
	out := make([]Action, len(r.order))
	for i, name := range r.order {
		out[i] = r.byName[name]
	}
	return out
}

// forEachAddress walks target address by address, advancing by each
// visited cell's length (or a single byte when nothing is present),
// running fn at each step. This is the iteration the original left as a
// standing "TODO: iterate" on its single-address Do() bodies.
func forEachAddress(doc *document.Document, target Range, fn func(at addr.Address)) {
	cur := target.Begin
	for {
		fn(cur)
		if addr.Compare(cur, target.End) >= 0 {
			return
		}
		step := int64(1)
		if c, at, ok := doc.RetrieveCell(cur); ok && c.Length > 0 {
			step = int64(c.Length) - addr.Delta(at, cur)
			if step <= 0 {
				step = 1
			}
		}
		cur = cur.Add(step)
	}
}

type undefineAction struct{}

func (undefineAction) Name() string                            { return "Undefine" }
func (undefineAction) Label() string                            { return "This option converts the selected item to byte" }
func (undefineAction) IsCompatible(rng Range, idx int) bool      { return true }
func (undefineAction) Execute(doc *document.Document, target Range) error {
	forEachAddress(doc, target, func(at addr.Address) {
		doc.DeleteCell(at)
	})
	return nil
}

type changeValueSizeAction struct{ bits uint8 }

func (a changeValueSizeAction) Name() string {
	switch a.bits {
	case 8:
		return "ToByte"
	case 16:
		return "ToWord"
	case 32:
		return "ToDword"
	case 64:
		return "ToQword"
	default:
		return "ChangeValueSize"
	}
}
func (a changeValueSizeAction) Label() string {
	return "Set the current value to " + a.Name()
}
func (changeValueSizeAction) IsCompatible(rng Range, idx int) bool { return true }

func (a changeValueSizeAction) Execute(doc *document.Document, target Range) error {
	width := int(a.bits) / 8
	forEachAddress(doc, target, func(at addr.Address) {
		fileOff, err := doc.Translate(at)
		if err != nil {
			return
		}
		bs := doc.BinaryStream()
		if bs == nil {
			return
		}
		raw, err := bs.ReadBytes(fileOff, width)
		if err != nil {
			return
		}
		existing, cellAt, ok := doc.RetrieveCell(at)
		var mods cell.SubType
		if ok && existing.Val != nil {
			mods = existing.Val.Modifiers
		}
		if ok {
			doc.DeleteCell(cellAt)
		}
		v := cell.NewValue(a.bits, raw)
		v.Val.Modifiers = mods
		doc.InsertCell(at, v, true, true)
	})
	return nil
}

type modifierAction struct {
	name      string
	label     string
	set       cell.SubType
	toggle    cell.SubType
	clearOnly bool
}

func (m modifierAction) Name() string                       { return m.name }
func (m modifierAction) Label() string                       { return m.label }
func (modifierAction) IsCompatible(rng Range, idx int) bool { return true }

func (m modifierAction) Execute(doc *document.Document, target Range) error {
	const modifierMask = cell.ModCharacter | cell.ModReference | cell.ModNot | cell.ModNegate

	forEachAddress(doc, target, func(at addr.Address) {
		c, cellAt, ok := doc.RetrieveCell(at)
		if !ok || c.Val == nil {
			return
		}
		mods := c.Val.Modifiers
		switch {
		case m.clearOnly:
			mods &^= modifierMask
		case m.toggle != 0:
			flipped := (mods & m.toggle) ^ m.toggle
			mods &^= modifierMask
			mods |= flipped
		default:
			mods &^= modifierMask
			mods |= m.set
		}
		next := cell.NewValue(c.Val.Width, c.Val.Bytes)
		next.Val.Modifiers = mods
		next.Header.Style = c.Header.Style
		doc.DeleteCell(cellAt)
		doc.InsertCell(at, next, true, true)
	})
	return nil
}

type stringAction struct {
	name  string
	label string
	wide  bool
}

func (s stringAction) Name() string                       { return s.name }
func (s stringAction) Label() string                       { return s.label }
func (stringAction) IsCompatible(rng Range, idx int) bool { return true }

// Execute reads a NUL-terminated run of bytes (UTF-8) or UTF-16 code units
// (NUL-NUL terminated) starting at the range's address and installs a
// String cell over it, mirroring MakeAsciiString/MakeWindowsString.
func (s stringAction) Execute(doc *document.Document, target Range) error {
	fileOff, err := doc.Translate(target.Begin)
	if err != nil {
		return err
	}
	bs := doc.BinaryStream()
	if bs == nil {
		return errs.At(errs.UnmappedAddress, target.Begin, "document has no binary stream")
	}

	var raw []byte
	step := 1
	if s.wide {
		step = 2
	}
	for off := fileOff; ; off += int64(step) {
		chunk, err := bs.ReadBytes(off, step)
		if err != nil {
			break
		}
		raw = append(raw, chunk...)
		zero := true
		for _, b := range chunk {
			if b != 0 {
				zero = false
				break
			}
		}
		if zero {
			break
		}
	}
	if len(raw) == 0 {
		return nil
	}

	c := &cell.Cell{
		Header: cell.Header{Type: cell.String, Length: uint32(len(raw))},
		Val:    &cell.Value{Width: 8, Bytes: raw},
	}
	return doc.InsertCell(target.Begin, c, true, true)
}

type analyzeAction struct{ reg *registry.Registry }

func (analyzeAction) Name() string                       { return "Analyze" }
func (analyzeAction) Label() string                       { return "Analyze using the most appropriate architecture" }
func (analyzeAction) IsCompatible(rng Range, idx int) bool { return true }

func (a analyzeAction) Execute(doc *document.Document, target Range) error {
	area, ok := doc.AreaAt(target.Begin)
	if !ok {
		return errs.At(errs.UnmappedAddress, target.Begin, "no memory area covers this address")
	}
	arch := a.reg.ArchitectureByName(area.DefaultArchTag)
	if arch == nil {
		return errs.At(errs.NoArchitectureForCell, target.Begin, "no registered architecture named \""+area.DefaultArchTag+"\"")
	}
	return analyzer.New(doc, a.reg).Disassemble(target.Begin)
}

type createFunctionAction struct{ reg *registry.Registry }

func (createFunctionAction) Name() string                       { return "CreateFunction" }
func (createFunctionAction) Label() string                       { return "Create a new function from the current address" }
func (createFunctionAction) IsCompatible(rng Range, idx int) bool { return true }

func (a createFunctionAction) Execute(doc *document.Document, target Range) error {
	name := "fcn_" + target.Begin.String()
	if err := doc.AddLabel(target.Begin, label.New(name, label.Code|label.Function|label.Unique), false); err != nil {
		return err
	}
	return analyzer.New(doc, a.reg).Disassemble(target.Begin)
}

type navigateHistoryAction struct {
	name    string
	label   string
	forward bool
}

func (n navigateHistoryAction) Name() string                       { return n.name }
func (n navigateHistoryAction) Label() string                       { return n.label }
func (navigateHistoryAction) IsCompatible(rng Range, idx int) bool { return true }

func (n navigateHistoryAction) Execute(doc *document.Document, target Range) error {
	var at addr.Address
	var ok bool
	if n.forward {
		at, ok = doc.Next()
	} else {
		at, ok = doc.Previous()
	}
	if !ok {
		return errs.At(errs.UnmappedAddress, target.Begin, "no address available in that direction")
	}
	doc.RecordVisit(at)
	return nil
}
