// Package label implements Label, the named marker attached to an address
// recording why the analyzer stopped there (a function entry, a jump
// target, data referenced by address, ...).
package label

// Type is a bitmask over the access class {Code, Data, String, Imported,
// Exported} plus Function (a function entry point, a supplemented class
// beyond the bare access set so CreateFunction and FunctionsContaining
// queries don't have to infer it from xrefs alone) and Unique (names
// synthesized by the analyzer rather than assigned by a user).
type Type uint16

const (
	Code Type = 1 << iota
	Data
	String
	Imported
	Exported
	Function
	Unique
)

// Has reports whether t has every flag in want set.
func (t Type) Has(want Type) bool { return t&want == want }

// Label names an address.
type Label struct {
	Name string
	Type Type
}

// New builds a Label.
func New(name string, t Type) Label { return Label{Name: name, Type: t} }

// IsFunction reports whether this label marks a function entry point.
func (l Label) IsFunction() bool { return l.Type.Has(Function) }

// IsProtected reports whether this label should survive its owning cell's
// deletion (Document's orphan-removal rule exempts Exported and Imported
// labels).
func (l Label) IsProtected() bool { return l.Type.Has(Exported) || l.Type.Has(Imported) }
