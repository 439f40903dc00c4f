// Package flatloader is the smallest useful Loader backend: it maps a
// single contiguous, read-execute MemoryArea over the whole input file at
// a configurable base address and seeds one Code label at an explicit
// entry offset. Grounded on the teacher's own "where does the program
// start" bookkeeping — bbcdisasm.go's disk-image offset/length/load-address
// handling and cmd/bbcdisasm's --loadaddr flag — generalized into the
// Loader.Map(document) contract spec.md §6 names.
package flatloader

import (
	"disasm/internal/addr"
	"disasm/internal/document"
	"disasm/internal/label"
	"disasm/internal/memarea"
	"disasm/internal/registry"
	"disasm/internal/stream"
)

// FlatLoader maps Data as one R-X area named "flat" at BaseAddress, with a
// Code label named EntryName at BaseAddress+EntryOffset.
type FlatLoader struct {
	Data        []byte
	BaseAddress uint64
	EntryOffset uint64
	EntryName   string
	ArchTag     string
	Mode        uint8
}

// New builds a FlatLoader. entryName defaults to "start" when empty,
// matching the CLI host's documented default entry (spec.md §6).
func New(data []byte, baseAddress, entryOffset uint64, archTag string, mode uint8, entryName string) *FlatLoader {
	if entryName == "" {
		entryName = "start"
	}
	return &FlatLoader{
		Data:        data,
		BaseAddress: baseAddress,
		EntryOffset: entryOffset,
		EntryName:   entryName,
		ArchTag:     archTag,
		Mode:        mode,
	}
}

func (l *FlatLoader) Name() string { return "flat" }

// Configure has nothing to ask the user for: a flat image has no section
// table or format variant to choose between.
func (l *FlatLoader) Configure() error { return nil }

// FilterAndConfigureArchitectures returns every architecture unchanged: a
// flat image carries no format hint narrowing the candidate set, so the
// caller (or MainArchitecture) decides.
func (l *FlatLoader) FilterAndConfigureArchitectures(available []registry.Architecture) []registry.Architecture {
	return available
}

// MainArchitecture returns the architecture matching l.ArchTag, or the
// first available one if ArchTag is unset.
func (l *FlatLoader) MainArchitecture(available []registry.Architecture) registry.Architecture {
	for _, a := range available {
		if a.Name() == l.ArchTag {
			return a
		}
	}
	if len(available) > 0 {
		return available[0]
	}
	return nil
}

// Map inserts the single flat MemoryArea and the entry Code label into doc.
func (l *FlatLoader) Map(doc *document.Document) error {
	doc.SetBinaryStream(stream.NewMemoryStream(l.Data, stream.LittleEndian))

	area := memarea.New(
		"flat",
		memarea.Read|memarea.Execute,
		memarea.FileRegion{Offset: 0, Size: int64(len(l.Data))},
		memarea.VirtualRegion{Address: l.BaseAddress, Size: uint64(len(l.Data))},
		l.ArchTag,
		l.Mode,
	)
	doc.InsertArea(area)

	entry := addr.New(0, l.BaseAddress+l.EntryOffset)
	return doc.AddLabel(entry, label.New(l.EntryName, label.Code|label.Function), true)
}
