package memarea

import (
	"testing"

	"disasm/internal/cell"
)

func newTestArea() *MemoryArea {
	return New("text", Read|Execute, FileRegion{Offset: 0, Size: 0x1000}, VirtualRegion{Address: 0x400000, Size: 0x1000}, "x86", 0)
}

func TestInsertAndRetrieveCell(t *testing.T) {
	m := newTestArea()
	c := cell.NewInstruction("nop", nil, nil, 0, 1)
	if err := m.InsertCell(0x10, c, false); err != nil {
		t.Fatal(err)
	}
	start, got, ok := m.RetrieveCell(0x10)
	if !ok || got != c || start != 0x10 {
		t.Fatalf("RetrieveCell(0x10) = %v,%v,%v", start, got, ok)
	}
}

func TestRetrieveCellGreatestLowerBound(t *testing.T) {
	m := newTestArea()
	c := cell.NewInstruction("mov eax, 42", nil, nil, 0, 5)
	if err := m.InsertCell(0x10, c, false); err != nil {
		t.Fatal(err)
	}
	start, got, ok := m.RetrieveCell(0x12)
	if !ok || got != c || start != 0x10 {
		t.Fatalf("RetrieveCell(0x12) = %v,%v,%v, want glb at 0x10", start, got, ok)
	}
	if _, _, ok := m.RetrieveCell(0x20); ok {
		t.Fatal("expected no cell covering 0x20")
	}
}

func TestInsertOverlapRejectedWithoutForce(t *testing.T) {
	m := newTestArea()
	c1 := cell.NewInstruction("mov eax, 42", nil, nil, 0, 5)
	if err := m.InsertCell(0x10, c1, false); err != nil {
		t.Fatal(err)
	}
	c2 := cell.NewInstruction("ret", nil, nil, 0, 1)
	if err := m.InsertCell(0x12, c2, false); err == nil {
		t.Fatal("expected CellOverlap error")
	}
	if err := m.InsertCell(0x12, c2, true); err != nil {
		t.Fatalf("force insert should succeed: %v", err)
	}
	if m.IsCellPresent(0x10) {
		t.Fatal("force insert should have deleted overlapping cell at 0x10")
	}
}

func TestMakeAddressOutOfRange(t *testing.T) {
	m := newTestArea()
	if _, ok := m.MakeAddress(0x500000); ok {
		t.Fatal("expected out-of-range address to fail")
	}
	off, ok := m.MakeAddress(0x400010)
	if !ok || off != 0x10 {
		t.Fatalf("MakeAddress = %v,%v, want 0x10,true", off, ok)
	}
}
