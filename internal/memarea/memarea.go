// Package memarea implements MemoryArea, the named, access-flagged region
// of address space that owns a sparse store of Cells keyed by file offset.
package memarea

import (
	"sort"

	"disasm/internal/addr"
	"disasm/internal/cell"
	"disasm/internal/errs"
)

// Access is a bitmask of the permissions a MemoryArea grants.
type Access uint8

const (
	Read Access = 1 << iota
	Write
	Execute
)

// FileRegion is the byte range of a backing file this area maps from.
type FileRegion struct {
	Offset int64
	Size   int64
}

// VirtualRegion is the address range this area occupies once loaded.
type VirtualRegion struct {
	Address uint64
	Size    uint64
}

// MemoryArea is one contiguous, named region: a section of a loaded image,
// or a synthetic region (e.g. a flat binary's single area). Cells are
// stored sparsely by offset from VirtualRegion.Address; InsertCell enforces
// that new cells never overlap an existing one.
type MemoryArea struct {
	Name           string
	AccessFlags    Access
	File           FileRegion
	Virtual        VirtualRegion
	DefaultArchTag string
	DefaultMode    uint8

	cells   map[uint64]*cell.Cell
	offsets []uint64 // kept sorted ascending, parallel index into cells
}

// New builds an empty MemoryArea.
func New(name string, access Access, file FileRegion, virt VirtualRegion, archTag string, mode uint8) *MemoryArea {
	return &MemoryArea{
		Name:           name,
		AccessFlags:    access,
		File:           file,
		Virtual:        virt,
		DefaultArchTag: archTag,
		DefaultMode:    mode,
		cells:          make(map[uint64]*cell.Cell),
	}
}

// AccessAllows reports whether the area grants every flag in want.
func (m *MemoryArea) AccessAllows(want Access) bool { return m.AccessFlags&want == want }

// Contains reports whether the virtual address falls within this area.
func (m *MemoryArea) Contains(address uint64) bool {
	return address >= m.Virtual.Address && address < m.Virtual.Address+m.Virtual.Size
}

// MakeAddress converts a virtual address within this area to its offset
// from the area's base, or reports ok=false if out of range.
func (m *MemoryArea) MakeAddress(virtualAddr uint64) (offset uint64, ok bool) {
	if !m.Contains(virtualAddr) {
		return 0, false
	}
	return virtualAddr - m.Virtual.Address, true
}

// ConvertOffsetToFileOffset maps an in-area offset to a position in the
// backing file, or reports ok=false if the offset falls in a bss-like gap
// beyond the file's mapped size.
func (m *MemoryArea) ConvertOffsetToFileOffset(offset uint64) (int64, bool) {
	if int64(offset) >= m.File.Size {
		return 0, false
	}
	return m.File.Offset + int64(offset), true
}

func (m *MemoryArea) search(offset uint64) int {
	return sort.Search(len(m.offsets), func(i int) bool { return m.offsets[i] >= offset })
}

// IsCellPresent reports whether a cell starts exactly at offset.
func (m *MemoryArea) IsCellPresent(offset uint64) bool {
	_, ok := m.cells[offset]
	return ok
}

// RetrieveCell returns the cell whose range covers offset: either one that
// starts exactly there, or — the greatest-lower-bound case — the nearest
// preceding cell whose length reaches far enough forward.
func (m *MemoryArea) RetrieveCell(offset uint64) (uint64, *cell.Cell, bool) {
	if c, ok := m.cells[offset]; ok {
		return offset, c, true
	}
	i := m.search(offset)
	if i == 0 {
		return 0, nil, false
	}
	glb := m.offsets[i-1]
	c := m.cells[glb]
	if glb+uint64(c.Length) > offset {
		return glb, c, true
	}
	return 0, nil, false
}

// InsertCell places c at offset, force indicating whether every overlapping
// cell should be deleted first (force-insert, used by the analyzer to
// reclassify data bytes as code) or reported as a CellOverlap error.
func (m *MemoryArea) InsertCell(offset uint64, c *cell.Cell, force bool) error {
	for {
		existing, ok := m.overlap(offset, uint64(c.Length))
		if !ok {
			break
		}
		if !force {
			return errs.At(errs.CellOverlap, addr.New(m.Virtual.Address, offset), "cell overlaps existing entry")
		}
		m.DeleteCell(existing)
	}
	if _, exists := m.cells[offset]; !exists {
		i := m.search(offset)
		m.offsets = append(m.offsets, 0)
		copy(m.offsets[i+1:], m.offsets[i:])
		m.offsets[i] = offset
	}
	m.cells[offset] = c
	return nil
}

// overlap reports the start offset of any existing cell whose range
// intersects [offset, offset+length).
func (m *MemoryArea) overlap(offset, length uint64) (uint64, bool) {
	i := m.search(offset)
	if i > 0 {
		prev := m.offsets[i-1]
		if c := m.cells[prev]; prev+uint64(c.Length) > offset {
			return prev, true
		}
	}
	if i < len(m.offsets) {
		next := m.offsets[i]
		if next < offset+length {
			return next, true
		}
	}
	return 0, false
}

// DeleteCell removes the cell starting at offset, if any.
func (m *MemoryArea) DeleteCell(offset uint64) {
	if _, ok := m.cells[offset]; !ok {
		return
	}
	delete(m.cells, offset)
	i := m.search(offset)
	if i < len(m.offsets) && m.offsets[i] == offset {
		m.offsets = append(m.offsets[:i], m.offsets[i+1:]...)
	}
}

// Offsets returns the sorted offsets of every cell, for ordered iteration.
func (m *MemoryArea) Offsets() []uint64 {
	out := make([]uint64, len(m.offsets))
	copy(out, m.offsets)
	return out
}

// Len returns the number of cells currently stored.
func (m *MemoryArea) Len() int { return len(m.cells) }
