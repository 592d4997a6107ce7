package template

import (
	"encoding/binary"
	"testing"
)

func TestEncodeMovwLiteral(t *testing.T) {
	// ARM Thumb-2 movw r0, #imm16 as used to build load_r0 in the ARM
	// family fixup: '0fgh0000ijklmnop11110e100100abcd'
	tmpl := "0fgh0000ijklmnop11110e100100abcd"
	got, err := Encode(tmpl, binary.LittleEndian, 0x08000f01)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 bytes, got %d", len(got))
	}
}

func TestEncodeMovSpBxFixed(t *testing.T) {
	got, err := Encode("0100011010000101", binary.LittleEndian)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 bytes, got %d", len(got))
	}
	want := []byte{0x85, 0x46}
	if got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("mov sp, r0 = % x, want % x", got, want)
	}
}

func TestEncodeBxR0Fixed(t *testing.T) {
	got, err := Encode("0100011100000000", binary.LittleEndian)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []byte{0x00, 0x47}
	if got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("bx r0 = % x, want % x", got, want)
	}
}

func TestEncodePic18Goto(t *testing.T) {
	// GOTO k, k = BootStart >> 1.
	k := uint32(0x1000 >> 1)
	w1, err := Encode("11101111abcdefgh", binary.LittleEndian, k&0xFF)
	if err != nil {
		t.Fatalf("Encode word1: %v", err)
	}
	w2, err := Encode("1111abcdefghijkl", binary.LittleEndian, k>>8)
	if err != nil {
		t.Fatalf("Encode word2: %v", err)
	}
	if len(w1) != 2 || len(w2) != 2 {
		t.Fatalf("expected 2-byte words, got %d/%d", len(w1), len(w2))
	}
}

func TestEncode24BitDropsPaddingByte(t *testing.T) {
	got, err := Encode("00000100abcdefghijklmnop", binary.LittleEndian, 0x1234)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 bytes for a 24-bit template, got %d", len(got))
	}
}

func TestEncodeRejectsInvalidTemplate(t *testing.T) {
	if _, err := Encode("", binary.LittleEndian); err == nil {
		t.Fatal("expected error for empty template")
	}
	if _, err := Encode("0123", binary.LittleEndian); err == nil {
		t.Fatal("expected error for non-byte-aligned template")
	}
	if _, err := Encode("0000000Z", binary.LittleEndian); err == nil {
		t.Fatal("expected error for invalid character")
	}
}

func TestEncodeRequiresField(t *testing.T) {
	if _, err := Encode("aaaaaaaa", binary.LittleEndian); err == nil {
		t.Fatal("expected FieldRequired error")
	}
}

func TestEncodeFieldTooWideIsSilentlyMasked(t *testing.T) {
	// every 'a' here is the same bit of a 1-bit field, so a field wider
	// than that must not error; high bits beyond the field width are
	// simply dropped and bit 0 fills all eight positions.
	got, err := Encode("aaaaaaaa", binary.LittleEndian, 0xFFFFFFFF)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got[0] != 0xFF {
		t.Fatalf("expected masked field 0xFF, got %#x", got[0])
	}
}
