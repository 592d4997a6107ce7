package protocol

import "testing"

func TestPackParseRoundTrip(t *testing.T) {
	c := Command{Cmd: CmdWrite, Addr: 0x08001000, Counter: 64}
	buf := c.Pack()
	if len(buf) != FrameSize {
		t.Fatalf("expected %d bytes, got %d", FrameSize, len(buf))
	}
	if buf[0] != STX {
		t.Fatalf("expected stx byte %#x, got %#x", STX, buf[0])
	}
	got, err := Parse(buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got != c {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, c)
	}
}

func TestParseToleratesBadStx(t *testing.T) {
	buf := make([]byte, FrameSize)
	buf[0] = 0x00
	buf[1] = CmdSync
	got, err := Parse(buf)
	if err != nil {
		t.Fatalf("expected bad stx to be logged, not returned as an error: %v", err)
	}
	if got.Cmd != CmdSync {
		t.Fatalf("Cmd = %d, want %d despite bad stx", got.Cmd, CmdSync)
	}
}

func TestExpectFlagsMismatch(t *testing.T) {
	want := Command{Cmd: CmdSync}
	got := Command{Cmd: CmdInfo}
	if Expect(want, got) {
		t.Fatal("expected mismatch to be reported")
	}
	if !Expect(want, want) {
		t.Fatal("expected match to be reported")
	}
}

func TestPadDataFillsWithFF(t *testing.T) {
	data := []byte{1, 2, 3}
	buf := PadData(data)
	if len(buf) != FrameSize {
		t.Fatalf("expected %d bytes, got %d", FrameSize, len(buf))
	}
	for i := len(data); i < FrameSize; i++ {
		if buf[i] != 0xFF {
			t.Fatalf("expected 0xFF padding at %d, got %#x", i, buf[i])
		}
	}
}
