package hexfile

import (
	"strings"
	"testing"
)

type recordedWrite struct {
	addr uint32
	data []byte
}

type fakeSink struct {
	writes []recordedWrite
}

func (s *fakeSink) WriteVirt(addr uint32, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	s.writes = append(s.writes, recordedWrite{addr, cp})
	return nil
}

func TestLoadDataRecord(t *testing.T) {
	src := ":0400000001020304F2\n:00000001FF\n"
	sink := &fakeSink{}
	if err := Load(strings.NewReader(src), sink); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(sink.writes) != 1 {
		t.Fatalf("expected 1 write, got %d", len(sink.writes))
	}
	w := sink.writes[0]
	if w.addr != 0 {
		t.Fatalf("addr = %#x, want 0", w.addr)
	}
	want := []byte{1, 2, 3, 4}
	if len(w.data) != len(want) {
		t.Fatalf("data = %v, want %v", w.data, want)
	}
	for i := range want {
		if w.data[i] != want[i] {
			t.Fatalf("byte %d: got %#x want %#x", i, w.data[i], want[i])
		}
	}
}

func TestLoadExtendedLinearAddressShiftsBase(t *testing.T) {
	src := ":020000041000EA\n:0400000001020304F2\n:00000001FF\n"
	sink := &fakeSink{}
	if err := Load(strings.NewReader(src), sink); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(sink.writes) != 1 {
		t.Fatalf("expected 1 write, got %d", len(sink.writes))
	}
	if sink.writes[0].addr != 0x10000000 {
		t.Fatalf("addr = %#x, want 0x10000000", sink.writes[0].addr)
	}
}

func TestLoadStopsAtEOFRecord(t *testing.T) {
	src := ":00000001FF\n:0400000001020304F2\n"
	sink := &fakeSink{}
	if err := Load(strings.NewReader(src), sink); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(sink.writes) != 0 {
		t.Fatalf("expected no writes after EOF record, got %d", len(sink.writes))
	}
}

func TestLoadRejectsBadChecksum(t *testing.T) {
	src := ":0400000001020304FF\n"
	sink := &fakeSink{}
	if err := Load(strings.NewReader(src), sink); err == nil {
		t.Fatal("expected checksum error")
	}
}

func TestLoadRejectsUnknownRecordType(t *testing.T) {
	src := ":00000002FE\n"
	sink := &fakeSink{}
	if err := Load(strings.NewReader(src), sink); err == nil {
		t.Fatal("expected error for unsupported record type")
	}
}
