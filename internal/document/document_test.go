package document

import (
	"testing"

	"disasm/internal/addr"
	"disasm/internal/cell"
	"disasm/internal/label"
	"disasm/internal/memarea"
	"disasm/internal/xref"
)

func newTestDocument() *Document {
	d := New()
	a := memarea.New("text", memarea.Read|memarea.Execute,
		memarea.FileRegion{Offset: 0, Size: 0x1000},
		memarea.VirtualRegion{Address: 0x1000, Size: 0x1000}, "x86ref", 0)
	d.InsertArea(a)
	return d
}

func TestInsertAndRetrieveCell(t *testing.T) {
	d := newTestDocument()
	at := addr.New(0, 0x1000)
	c := cell.NewInstruction("ret", nil, nil, cell.Return, 1)
	if err := d.InsertCell(at, c, true, true); err != nil {
		t.Fatal(err)
	}
	got, start, ok := d.RetrieveCell(at)
	if !ok || got != c || addr.Compare(start, at) != 0 {
		t.Fatalf("RetrieveCell = %v,%v,%v", got, start, ok)
	}
	if !d.ContainsCode(at) {
		t.Fatal("expected ContainsCode true")
	}
}

func TestInsertCellOverlapWithoutForceFails(t *testing.T) {
	d := newTestDocument()
	at := addr.New(0, 0x1000)
	c1 := cell.NewInstruction("mov eax, 42", nil, nil, 0, 5)
	if err := d.InsertCell(at, c1, false, true); err != nil {
		t.Fatal(err)
	}
	c2 := cell.NewInstruction("nop", nil, nil, 0, 1)
	overlap := addr.New(0, 0x1002)
	if err := d.InsertCell(overlap, c2, false, true); err == nil {
		t.Fatal("expected overlap error")
	}
}

func TestDeleteCellOrphansNonExportedLabel(t *testing.T) {
	d := newTestDocument()
	at := addr.New(0, 0x1000)
	c := cell.NewInstruction("ret", nil, nil, cell.Return, 1)
	if err := d.InsertCell(at, c, true, true); err != nil {
		t.Fatal(err)
	}
	if err := d.AddLabel(at, label.New("start", label.Code), false); err != nil {
		t.Fatal(err)
	}
	if err := d.DeleteCell(at); err != nil {
		t.Fatal(err)
	}
	if _, ok := d.LabelAt(at); ok {
		t.Fatal("expected orphaned label to be removed")
	}
}

func TestDuplicateLabelRejectedWithoutForce(t *testing.T) {
	d := newTestDocument()
	a1 := addr.New(0, 0x1000)
	a2 := addr.New(0, 0x1001)
	if err := d.AddLabel(a1, label.New("start", label.Code), false); err != nil {
		t.Fatal(err)
	}
	if err := d.AddLabel(a2, label.New("start", label.Code), false); err == nil {
		t.Fatal("expected DuplicateLabel error")
	}
	if err := d.AddLabel(a2, label.New("start", label.Code), true); err != nil {
		t.Fatalf("force re-bind should succeed: %v", err)
	}
	if got, ok := d.AddressOfLabel("start"); !ok || got != a2 {
		t.Fatalf("expected start to now point at a2, got %v,%v", got, ok)
	}
}

func TestXRefsFromAndTo(t *testing.T) {
	d := newTestDocument()
	from := addr.New(0, 0x1000)
	to := addr.New(0, 0x1010)
	d.InsertXRef(from, to, xref.Call)
	if dst := d.XRefsFrom(from); len(dst) != 1 || addr.Compare(dst[0], to) != 0 {
		t.Fatalf("XRefsFrom = %v", dst)
	}
	if src := d.XRefsTo(to); len(src) != 1 || addr.Compare(src[0], from) != 0 {
		t.Fatalf("XRefsTo = %v", src)
	}
}

func TestHistoryPreviousNext(t *testing.T) {
	d := newTestDocument()
	a1, a2, a3 := addr.New(0, 1), addr.New(0, 2), addr.New(0, 3)
	d.RecordVisit(a1)
	d.RecordVisit(a2)
	d.RecordVisit(a3)
	if cur, ok := d.LastAddressAccessed(); !ok || addr.Compare(cur, a3) != 0 {
		t.Fatalf("LastAddressAccessed = %v,%v", cur, ok)
	}
	if prev, ok := d.Previous(); !ok || addr.Compare(prev, a2) != 0 {
		t.Fatalf("Previous = %v,%v", prev, ok)
	}
	if next, ok := d.Next(); !ok || addr.Compare(next, a3) != 0 {
		t.Fatalf("Next = %v,%v", next, ok)
	}
}

type countingSubscriber struct{ updates int }

func (c *countingSubscriber) OnQuit()                          {}
func (c *countingSubscriber) OnDocumentUpdated(addr.Address)    { c.updates++ }
func (c *countingSubscriber) OnLabelUpdated(addr.Address)       {}

func TestSubscriberNotifiedOnInsert(t *testing.T) {
	d := newTestDocument()
	sub := &countingSubscriber{}
	d.Subscribe(sub)
	at := addr.New(0, 0x1000)
	c := cell.NewInstruction("nop", nil, nil, 0, 1)
	if err := d.InsertCell(at, c, true, true); err != nil {
		t.Fatal(err)
	}
	if sub.updates != 1 {
		t.Fatalf("expected 1 update notification, got %d", sub.updates)
	}
}
