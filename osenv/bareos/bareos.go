// Package bareos is the minimal reference OperatingSystem backend: "no
// operating system", the bare-metal/ROM case the teacher's own BBC Micro
// target actually is (the 6502 program the teacher disassembles runs with
// no OS underneath it). Its only active method is AnalyzeFunction, which
// runs the recursive disassembler; the context-seeding methods do nothing,
// filling the "external collaborator,
// interface only" slot spec.md §6 names without inventing import-table
// semantics for a real OS (out of scope per spec.md's Non-goals).
package bareos

import (
	"disasm/internal/addr"
	"disasm/internal/analyzer"
	"disasm/internal/document"
	"disasm/internal/registry"
)

// Bare is the "no operating system" OperatingSystem backend.
type Bare struct {
	Arch registry.Architecture
	Mode uint8
	Reg  *registry.Registry
}

// New builds a Bare backend that will decode through arch in the given
// mode when AnalyzeFunction is asked to run the recursive disassembler.
func New(reg *registry.Registry, arch registry.Architecture, mode uint8) *Bare {
	return &Bare{Arch: arch, Mode: mode, Reg: reg}
}

func (b *Bare) Name() string { return "bare" }

// InitializeCpuContext is a no-op: it emits no set-execution-address IR
// and does not seed the program counter; analysis starts from whatever
// address AnalyzeFunction is given.
func (b *Bare) InitializeCpuContext(doc *document.Document) error {
	return nil
}

// InitializeMemoryContext is a no-op: a bare-metal image has no loader
// segments beyond what the Loader already mapped.
func (b *Bare) InitializeMemoryContext(doc *document.Document) error { return nil }

// IsSupported is unconditionally true: bare has no format or architecture
// requirements of its own.
func (b *Bare) IsSupported(l registry.Loader, a registry.Architecture) bool { return true }

// ProvideDetails has nothing to contribute: no OS-specific labels (syscall
// tables, import thunks) exist in a bare-metal image.
func (b *Bare) ProvideDetails(doc *document.Document) error { return nil }

// AnalyzeFunction runs the recursive disassembler at address, the bare
// backend's only real responsibility: standing in for an OS that would
// otherwise recognize e.g. a thread entry point calling convention before
// triggering analysis.
func (b *Bare) AnalyzeFunction(doc *document.Document, address addr.Address) error {
	return analyzer.New(doc, b.Reg).Disassemble(address)
}
