package transport

import (
	"context"
	"testing"

	"uhbprog/internal/protocol"
)

func TestMockEchoesQueuedResponse(t *testing.T) {
	m := NewMock()
	ctx := context.Background()
	frame := protocol.Command{Cmd: protocol.CmdSync}.Pack()
	if err := m.Write(ctx, frame); err != nil {
		t.Fatalf("Write: %v", err)
	}
	resp, err := m.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(resp) != protocol.FrameSize {
		t.Fatalf("expected %d byte response, got %d", protocol.FrameSize, len(resp))
	}
	if len(m.Writes()) != 1 {
		t.Fatalf("expected 1 recorded write, got %d", len(m.Writes()))
	}
}

func TestMockReadWithoutWriteErrors(t *testing.T) {
	m := NewMock()
	if _, err := m.Read(context.Background()); err == nil {
		t.Fatal("expected error reading before any write")
	}
}

func TestMockCustomResponder(t *testing.T) {
	m := NewMock()
	m.Responder = func(sent []byte) []byte {
		return protocol.Command{Cmd: sent[1]}.Pack()
	}
	ctx := context.Background()
	frame := protocol.Command{Cmd: protocol.CmdInfo}.Pack()
	if err := m.Write(ctx, frame); err != nil {
		t.Fatalf("Write: %v", err)
	}
	resp, err := m.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	got, err := protocol.Parse(resp)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Cmd != protocol.CmdInfo {
		t.Fatalf("Cmd = %v, want CmdInfo", got.Cmd)
	}
}
