// Package document implements Document, the aggregate model a Loader
// populates and the Analyzer grows: memory areas, cells, cross-references,
// labels, and navigation history, behind the two-lock concurrency contract
// the rest of the core is specified against.
package document

import (
	"sort"
	"sync"

	"disasm/internal/addr"
	"disasm/internal/cell"
	"disasm/internal/errs"
	"disasm/internal/label"
	"disasm/internal/memarea"
	"disasm/internal/stream"
	"disasm/internal/xref"
)

// Subscriber receives notifications after a Document mutation has been
// committed and the relevant lock released.
type Subscriber interface {
	OnQuit()
	OnDocumentUpdated(at addr.Address)
	OnLabelUpdated(at addr.Address)
}

// Document is the central container every other core component operates
// on. The area lock guards the sorted area list; the cell lock guards
// cells, multicells, labels and xrefs. Both are ordinary sync.RWMutex:
// readers may run concurrently, writers are exclusive.
type Document struct {
	areaMu sync.RWMutex
	areas  []*memarea.MemoryArea

	cellMu     sync.RWMutex
	multicells map[addr.Address]*cell.MultiCell
	labelByAddr map[addr.Address]label.Label
	addrByName  map[string]addr.Address
	xrefs       *xref.Graph

	stream stream.BinaryStream

	history *History

	subMu       sync.Mutex
	subscribers []Subscriber
}

// New builds an empty Document.
func New() *Document {
	return &Document{
		multicells:  make(map[addr.Address]*cell.MultiCell),
		labelByAddr: make(map[addr.Address]label.Label),
		addrByName:  make(map[string]addr.Address),
		xrefs:       xref.New(),
		history:     NewHistory(64),
	}
}

// SetBinaryStream assigns the backing byte source a Loader maps areas over.
func (d *Document) SetBinaryStream(bs stream.BinaryStream) { d.stream = bs }

// BinaryStream returns the backing byte source, or nil if none was set.
func (d *Document) BinaryStream() stream.BinaryStream { return d.stream }

// Subscribe registers s for future notifications.
func (d *Document) Subscribe(s Subscriber) {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	d.subscribers = append(d.subscribers, s)
}

func (d *Document) notifyDocumentUpdated(at addr.Address) {
	d.subMu.Lock()
	subs := append([]Subscriber(nil), d.subscribers...)
	d.subMu.Unlock()
	for _, s := range subs {
		s.OnDocumentUpdated(at)
	}
}

func (d *Document) notifyLabelUpdated(at addr.Address) {
	d.subMu.Lock()
	subs := append([]Subscriber(nil), d.subscribers...)
	d.subMu.Unlock()
	for _, s := range subs {
		s.OnLabelUpdated(at)
	}
}

// NotifyQuit broadcasts a quit signal to every subscriber, the cancellation
// hook long-running analyses observe at work-list boundaries.
func (d *Document) NotifyQuit() {
	d.subMu.Lock()
	subs := append([]Subscriber(nil), d.subscribers...)
	d.subMu.Unlock()
	for _, s := range subs {
		s.OnQuit()
	}
}

// ---- Areas ----

// InsertArea adds an area, keeping the area list sorted by starting
// virtual address.
func (d *Document) InsertArea(a *memarea.MemoryArea) {
	d.areaMu.Lock()
	defer d.areaMu.Unlock()
	i := sort.Search(len(d.areas), func(i int) bool { return d.areas[i].Virtual.Address >= a.Virtual.Address })
	d.areas = append(d.areas, nil)
	copy(d.areas[i+1:], d.areas[i:])
	d.areas[i] = a
}

// Areas returns the areas in address order.
func (d *Document) Areas() []*memarea.MemoryArea {
	d.areaMu.RLock()
	defer d.areaMu.RUnlock()
	return append([]*memarea.MemoryArea(nil), d.areas...)
}

// AreaAt returns the first area whose virtual range contains the given
// address's offset; the address's Base is not consulted.
func (d *Document) AreaAt(address addr.Address) (*memarea.MemoryArea, bool) {
	d.areaMu.RLock()
	defer d.areaMu.RUnlock()
	for _, a := range d.areas {
		if a.Contains(address.Offset) {
			return a, true
		}
	}
	return nil, false
}

// ---- Address arithmetic ----

// MakeAddress converts a raw virtual address into a Document Address,
// locating the owning area.
func (d *Document) MakeAddress(virtualAddr uint64) (addr.Address, error) {
	d.areaMu.RLock()
	defer d.areaMu.RUnlock()
	for _, a := range d.areas {
		if a.Contains(virtualAddr) {
			return addr.New(0, virtualAddr), nil
		}
	}
	return addr.Address{}, errs.At(errs.UnmappedAddress, addr.New(0, virtualAddr), "address not mapped by any area")
}

// Translate converts a Document Address to a position in the backing file.
func (d *Document) Translate(address addr.Address) (int64, error) {
	a, ok := d.AreaAt(address)
	if !ok {
		return 0, errs.At(errs.UnmappedAddress, address, "address not mapped by any area")
	}
	off, ok := a.MakeAddress(address.Offset)
	if !ok {
		return 0, errs.At(errs.UnmappedAddress, address, "address not mapped by any area")
	}
	fo, ok := a.ConvertOffsetToFileOffset(off)
	if !ok {
		return 0, errs.At(errs.ReadOutOfRange, address, "offset beyond backing file region")
	}
	return fo, nil
}

// Convert returns the area-relative offset of address within its owning
// area, the form MemoryArea's cell store is keyed by.
func (d *Document) Convert(address addr.Address) (uint64, error) {
	a, ok := d.AreaAt(address)
	if !ok {
		return 0, errs.At(errs.UnmappedAddress, address, "address not mapped by any area")
	}
	off, ok := a.MakeAddress(address.Offset)
	if !ok {
		return 0, errs.At(errs.UnmappedAddress, address, "address not mapped by any area")
	}
	return off, nil
}

// ---- Cells ----

// InsertCell places c at address. safe enables the overlap check; force,
// when safe finds an overlap, deletes the overlapping cell(s) first instead
// of failing.
func (d *Document) InsertCell(address addr.Address, c *cell.Cell, force, safe bool) error {
	a, ok := d.AreaAt(address)
	if !ok {
		return errs.At(errs.UnmappedAddress, address, "address not mapped by any area")
	}
	off, ok := a.MakeAddress(address.Offset)
	if !ok {
		return errs.At(errs.UnmappedAddress, address, "address not mapped by any area")
	}

	d.cellMu.Lock()
	if c.ArchTag == "" {
		c.ArchTag = a.DefaultArchTag
	}
	if c.Mode == 0 {
		c.Mode = a.DefaultMode
	}
	var err error
	if safe {
		err = a.InsertCell(off, c, force)
	} else {
		a.DeleteCell(off)
		err = a.InsertCell(off, c, true)
	}
	d.cellMu.Unlock()

	if err != nil {
		return err
	}
	d.notifyDocumentUpdated(address)
	return nil
}

// RetrieveCell returns the cell covering address (greatest-lower-bound
// semantics) and the address it actually starts at.
func (d *Document) RetrieveCell(address addr.Address) (*cell.Cell, addr.Address, bool) {
	a, ok := d.AreaAt(address)
	if !ok {
		return nil, addr.Address{}, false
	}
	off, ok := a.MakeAddress(address.Offset)
	if !ok {
		return nil, addr.Address{}, false
	}
	d.cellMu.RLock()
	defer d.cellMu.RUnlock()
	start, c, found := a.RetrieveCell(off)
	if !found {
		return nil, addr.Address{}, false
	}
	return c, addr.New(address.Base, a.Virtual.Address+start), true
}

// IsCellPresent reports whether a cell starts exactly at address.
func (d *Document) IsCellPresent(address addr.Address) bool {
	a, ok := d.AreaAt(address)
	if !ok {
		return false
	}
	off, ok := a.MakeAddress(address.Offset)
	if !ok {
		return false
	}
	d.cellMu.RLock()
	defer d.cellMu.RUnlock()
	return a.IsCellPresent(off)
}

// ContainsCode reports whether address falls within an Instruction cell.
func (d *Document) ContainsCode(address addr.Address) bool {
	c, _, ok := d.RetrieveCell(address)
	return ok && c.IsCode()
}

// ContainsData reports whether address falls within a Value cell.
func (d *Document) ContainsData(address addr.Address) bool {
	c, _, ok := d.RetrieveCell(address)
	return ok && c.IsData()
}

// ContainsUnknown reports whether address is mapped but holds no cell.
func (d *Document) ContainsUnknown(address addr.Address) bool {
	if _, ok := d.AreaAt(address); !ok {
		return false
	}
	_, _, ok := d.RetrieveCell(address)
	return !ok
}

// DeleteCell removes the cell at address (if one starts exactly there),
// orphaning and removing any label that is not Exported or Imported.
func (d *Document) DeleteCell(address addr.Address) error {
	a, ok := d.AreaAt(address)
	if !ok {
		return errs.At(errs.UnmappedAddress, address, "address not mapped by any area")
	}
	off, ok := a.MakeAddress(address.Offset)
	if !ok {
		return errs.At(errs.UnmappedAddress, address, "address not mapped by any area")
	}

	d.cellMu.Lock()
	a.DeleteCell(off)
	if lbl, ok := d.labelByAddr[address]; ok && !lbl.IsProtected() {
		delete(d.labelByAddr, address)
		delete(d.addrByName, lbl.Name)
	}
	d.cellMu.Unlock()

	d.notifyDocumentUpdated(address)
	return nil
}

// ---- Labels ----

// AddLabel binds name to address. With force=false a duplicate name is
// rejected; with force=true it replaces the existing binding.
func (d *Document) AddLabel(address addr.Address, lbl label.Label, force bool) error {
	d.cellMu.Lock()
	if existing, ok := d.addrByName[lbl.Name]; ok && addr.Compare(existing, address) != 0 {
		if !force {
			d.cellMu.Unlock()
			return errs.At(errs.DuplicateLabel, address, "label name already bound: "+lbl.Name)
		}
		delete(d.labelByAddr, existing)
	}
	d.labelByAddr[address] = lbl
	d.addrByName[lbl.Name] = address
	d.cellMu.Unlock()

	d.notifyLabelUpdated(address)
	return nil
}

// RemoveLabel unbinds whatever label names address.
func (d *Document) RemoveLabel(address addr.Address) {
	d.cellMu.Lock()
	if lbl, ok := d.labelByAddr[address]; ok {
		delete(d.labelByAddr, address)
		delete(d.addrByName, lbl.Name)
	}
	d.cellMu.Unlock()
	d.notifyLabelUpdated(address)
}

// RenameLabel changes the name bound to address, keeping the Address↔Label
// bijection intact.
func (d *Document) RenameLabel(oldName, newName string) error {
	d.cellMu.Lock()
	address, ok := d.addrByName[oldName]
	if !ok {
		d.cellMu.Unlock()
		return errs.New(errs.InvalidConfiguration, "no label named "+oldName)
	}
	if _, exists := d.addrByName[newName]; exists {
		d.cellMu.Unlock()
		return errs.At(errs.DuplicateLabel, address, "label name already bound: "+newName)
	}
	lbl := d.labelByAddr[address]
	lbl.Name = newName
	d.labelByAddr[address] = lbl
	delete(d.addrByName, oldName)
	d.addrByName[newName] = address
	d.cellMu.Unlock()
	d.notifyLabelUpdated(address)
	return nil
}

// LabelAt returns the label bound to address, if any.
func (d *Document) LabelAt(address addr.Address) (label.Label, bool) {
	d.cellMu.RLock()
	defer d.cellMu.RUnlock()
	l, ok := d.labelByAddr[address]
	return l, ok
}

// AddressOfLabel returns the address bound to name, if any.
func (d *Document) AddressOfLabel(name string) (addr.Address, bool) {
	d.cellMu.RLock()
	defer d.cellMu.RUnlock()
	a, ok := d.addrByName[name]
	return a, ok
}

// ForEachLabel walks every bound label, stopping early if fn returns
// false. Order is unspecified.
func (d *Document) ForEachLabel(fn func(address addr.Address, lbl label.Label) bool) {
	d.cellMu.RLock()
	defer d.cellMu.RUnlock()
	for at, lbl := range d.labelByAddr {
		if !fn(at, lbl) {
			return
		}
	}
}

// ---- MultiCells ----

func (d *Document) SetMultiCell(address addr.Address, mc *cell.MultiCell) {
	d.cellMu.Lock()
	d.multicells[address] = mc
	d.cellMu.Unlock()
	d.notifyDocumentUpdated(address)
}

func (d *Document) MultiCellAt(address addr.Address) (*cell.MultiCell, bool) {
	d.cellMu.RLock()
	defer d.cellMu.RUnlock()
	mc, ok := d.multicells[address]
	return mc, ok
}

// ForEachMultiCell walks every recorded MultiCell, stopping early if fn
// returns false. Order is unspecified.
func (d *Document) ForEachMultiCell(fn func(address addr.Address, mc *cell.MultiCell) bool) {
	d.cellMu.RLock()
	defer d.cellMu.RUnlock()
	for at, mc := range d.multicells {
		if !fn(at, mc) {
			return
		}
	}
}

// ---- XRefs ----

func (d *Document) InsertXRef(from, to addr.Address, kind xref.Kind) {
	d.cellMu.Lock()
	d.xrefs.Insert(from, to, kind)
	d.cellMu.Unlock()
}

func (d *Document) XRefsFrom(address addr.Address) []addr.Address {
	d.cellMu.RLock()
	defer d.cellMu.RUnlock()
	return d.xrefs.From(address)
}

func (d *Document) XRefsTo(address addr.Address) []addr.Address {
	d.cellMu.RLock()
	defer d.cellMu.RUnlock()
	return d.xrefs.To(address)
}

// AllXRefs returns every cross reference edge in the document, for
// persistence.
func (d *Document) AllXRefs() []xref.Edge {
	d.cellMu.RLock()
	defer d.cellMu.RUnlock()
	return d.xrefs.All()
}

// FunctionsContaining returns every function-entry label whose call graph
// (as recorded by xrefs) reaches address, approximated here as: every
// function label that is itself address, plus every function label that
// has a transitive Call edge reaching address. This mirrors the original's
// FindFunctionAddressFromAddress without requiring a full CFG rebuild.
func (d *Document) FunctionsContaining(address addr.Address) []addr.Address {
	d.cellMu.RLock()
	defer d.cellMu.RUnlock()
	var out []addr.Address
	seen := make(map[addr.Address]bool)
	var walk func(a addr.Address)
	walk = func(a addr.Address) {
		if seen[a] {
			return
		}
		seen[a] = true
		if lbl, ok := d.labelByAddr[a]; ok && lbl.IsFunction() {
			out = append(out, a)
		}
		for _, e := range d.xrefs.EdgesTo(a) {
			if e.Kind == xref.Call {
				walk(e.From)
			}
		}
	}
	walk(address)
	return out
}

// ---- Ordered iteration / position bijection ----

// ForEachCell walks every present cell in address order, stopping early if
// fn returns false.
func (d *Document) ForEachCell(fn func(address addr.Address, c *cell.Cell) bool) {
	d.areaMu.RLock()
	areas := append([]*memarea.MemoryArea(nil), d.areas...)
	d.areaMu.RUnlock()

	d.cellMu.RLock()
	defer d.cellMu.RUnlock()
	for _, a := range areas {
		for _, off := range a.Offsets() {
			_, c, ok := a.RetrieveCell(off)
			if !ok {
				continue
			}
			if !fn(addr.New(0, a.Virtual.Address+off), c) {
				return
			}
		}
	}
}

// PositionOf returns the 0-based ordinal of address among all present
// cells in address order, or ok=false if no cell starts there.
func (d *Document) PositionOf(address addr.Address) (int, bool) {
	pos := 0
	found := false
	d.ForEachCell(func(a addr.Address, c *cell.Cell) bool {
		if addr.Compare(a, address) == 0 {
			found = true
			return false
		}
		pos++
		return true
	})
	if !found {
		return 0, false
	}
	return pos, true
}

// AddressAt returns the address of the position-th present cell in address
// order.
func (d *Document) AddressAt(position int) (addr.Address, bool) {
	var result addr.Address
	found := false
	i := 0
	d.ForEachCell(func(a addr.Address, c *cell.Cell) bool {
		if i == position {
			result = a
			found = true
			return false
		}
		i++
		return true
	})
	return result, found
}

// ---- History ----

// RecordVisit pushes address onto the navigation history.
func (d *Document) RecordVisit(address addr.Address) { d.history.Visit(address) }

// Previous returns the address visited before the current position, moving
// the cursor back.
func (d *Document) Previous() (addr.Address, bool) { return d.history.Previous() }

// Next returns the address visited after the current position, moving the
// cursor forward.
func (d *Document) Next() (addr.Address, bool) { return d.history.Next() }

// LastAddressAccessed returns the most recently visited address.
func (d *Document) LastAddressAccessed() (addr.Address, bool) { return d.history.Current() }

// HistorySnapshot returns the full navigation history and the index of the
// current entry, for persistence.
func (d *Document) HistorySnapshot() (entries []addr.Address, cursor int) {
	return d.history.snapshot()
}

// RestoreHistory replaces the navigation history wholesale, for
// persistence's decode path.
func (d *Document) RestoreHistory(entries []addr.Address, cursor int) {
	d.history = &History{entries: entries, cursor: cursor, limit: d.history.limit}
}
