package stream

import (
	"bytes"
	"testing"
)

func TestMemoryStreamReadLittleEndian(t *testing.T) {
	ms := NewMemoryStream([]byte{0x01, 0x02, 0x03, 0x04}, LittleEndian)
	v, err := ms.Read(0, 4)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x04030201 {
		t.Fatalf("Read = %#x, want 0x04030201", v)
	}
}

func TestMemoryStreamOutOfRange(t *testing.T) {
	ms := NewMemoryStream([]byte{0x01}, LittleEndian)
	if _, err := ms.Read(0, 4); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestFileStreamMatchesMemoryStream(t *testing.T) {
	data := []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	ms := NewMemoryStream(data, BigEndian)
	fs := NewFileStream(bytes.NewReader(data), int64(len(data)), BigEndian)

	mv, _ := ms.Read(1, 2)
	fv, _ := fs.Read(1, 2)
	if mv != fv {
		t.Fatalf("MemoryStream=%#x FileStream=%#x mismatch", mv, fv)
	}
}
