// Package persist serializes and restores a Document using encoding/gob.
// The pack carries no serialization library anywhere (flapc, the teacher,
// and the x/tools mirror all either hand-roll a binary writer for the
// format they read or use none), so this is the one part of the module
// built on the standard library rather than a pack dependency; the exact
// byte layout is a private implementation detail.
package persist

import (
	"encoding/gob"
	"io"

	"disasm/internal/addr"
	"disasm/internal/cell"
	"disasm/internal/document"
	"disasm/internal/expr"
	"disasm/internal/label"
	"disasm/internal/memarea"
	"disasm/internal/stream"
	"disasm/internal/xref"
)

func init() {
	gob.Register(&expr.BitVectorExpr{})
	gob.Register(&expr.IdentifierExpr{})
	gob.Register(&expr.VectorIdentifierExpr{})
	gob.Register(&expr.VariableExpr{})
	gob.Register(&expr.MemoryExpr{})
	gob.Register(&expr.SymbolicExpr{})
	gob.Register(&expr.TrackExpr{})
	gob.Register(&expr.UnaryOpExpr{})
	gob.Register(&expr.BinaryOpExpr{})
	gob.Register(&expr.AssignExpr{})
	gob.Register(&expr.BindExpr{})
	gob.Register(&expr.CondExpr{})
	gob.Register(&expr.TernaryCondExpr{})
	gob.Register(&expr.IfElseExpr{})
	gob.Register(&expr.WhileCondExpr{})
	gob.Register(&expr.SystemExpr{})
}

type cellEntry struct {
	Offset uint64
	Cell   *cell.Cell
}

type areaSnapshot struct {
	Name           string
	AccessFlags    memarea.Access
	FileOffset     int64
	FileSize       int64
	VirtAddress    uint64
	VirtSize       uint64
	DefaultArchTag string
	DefaultMode    uint8
	Cells          []cellEntry
}

type labelEntry struct {
	Address addr.Address
	Label   label.Label
}

type multiCellEntry struct {
	Address   addr.Address
	MultiCell *cell.MultiCell
}

type snapshot struct {
	Areas          []areaSnapshot
	Labels         []labelEntry
	MultiCells     []multiCellEntry
	XRefs          []xref.Edge
	HistoryEntries []addr.Address
	HistoryCursor  int
	HasStream      bool
	StreamBytes    []byte
	StreamEndian   stream.Endianness
}

// Encode writes doc's full state — areas, cells, labels, multicells,
// xrefs, navigation history and the backing binary stream — to w.
func Encode(w io.Writer, doc *document.Document) error {
	var snap snapshot

	for _, area := range doc.Areas() {
		as := areaSnapshot{
			Name:           area.Name,
			AccessFlags:    area.AccessFlags,
			FileOffset:     area.File.Offset,
			FileSize:       area.File.Size,
			VirtAddress:    area.Virtual.Address,
			VirtSize:       area.Virtual.Size,
			DefaultArchTag: area.DefaultArchTag,
			DefaultMode:    area.DefaultMode,
		}
		for _, off := range area.Offsets() {
			_, c, ok := area.RetrieveCell(off)
			if !ok {
				continue
			}
			as.Cells = append(as.Cells, cellEntry{Offset: off, Cell: c})
		}
		snap.Areas = append(snap.Areas, as)
	}

	doc.ForEachLabel(func(at addr.Address, lbl label.Label) bool {
		snap.Labels = append(snap.Labels, labelEntry{Address: at, Label: lbl})
		return true
	})
	doc.ForEachMultiCell(func(at addr.Address, mc *cell.MultiCell) bool {
		snap.MultiCells = append(snap.MultiCells, multiCellEntry{Address: at, MultiCell: mc})
		return true
	})
	snap.XRefs = doc.AllXRefs()
	snap.HistoryEntries, snap.HistoryCursor = doc.HistorySnapshot()

	if bs := doc.BinaryStream(); bs != nil {
		raw, err := bs.ReadBytes(0, int(bs.Size()))
		if err != nil {
			return err
		}
		snap.HasStream = true
		snap.StreamBytes = raw
		snap.StreamEndian = bs.Endianness()
	}

	return gob.NewEncoder(w).Encode(&snap)
}

// Decode rebuilds a Document from a stream previously written by Encode.
func Decode(r io.Reader) (*document.Document, error) {
	var snap snapshot
	if err := gob.NewDecoder(r).Decode(&snap); err != nil {
		return nil, err
	}

	doc := document.New()

	for _, as := range snap.Areas {
		area := memarea.New(as.Name, as.AccessFlags,
			memarea.FileRegion{Offset: as.FileOffset, Size: as.FileSize},
			memarea.VirtualRegion{Address: as.VirtAddress, Size: as.VirtSize},
			as.DefaultArchTag, as.DefaultMode)
		for _, ce := range as.Cells {
			if err := area.InsertCell(ce.Offset, ce.Cell, true); err != nil {
				return nil, err
			}
		}
		doc.InsertArea(area)
	}

	for _, le := range snap.Labels {
		if err := doc.AddLabel(le.Address, le.Label, true); err != nil {
			return nil, err
		}
	}
	for _, mce := range snap.MultiCells {
		doc.SetMultiCell(mce.Address, mce.MultiCell)
	}
	for _, e := range snap.XRefs {
		doc.InsertXRef(e.From, e.To, e.Kind)
	}
	doc.RestoreHistory(snap.HistoryEntries, snap.HistoryCursor)

	if snap.HasStream {
		doc.SetBinaryStream(stream.NewMemoryStream(snap.StreamBytes, snap.StreamEndian))
	}

	return doc, nil
}
