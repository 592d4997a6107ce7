package transfer

import (
	"context"
	"testing"

	"uhbprog/internal/bootinfo"
	"uhbprog/internal/devkit"
	"uhbprog/internal/protocol"
	"uhbprog/internal/transport"
)

func newTestSetup(t *testing.T, numBlocks int, eraseBlock uint32) (*devkit.Devkit, devkit.Family) {
	t.Helper()
	table := make([]devkit.BlockRange, numBlocks)
	for i := 0; i < numBlocks; i++ {
		table[i] = devkit.BlockRange{Start: uint32(i) * eraseBlock, End: uint32(i+1) * eraseBlock}
	}
	dk, err := devkit.New(table, eraseBlock)
	if err != nil {
		t.Fatalf("devkit.New: %v", err)
	}
	fam, err := devkit.Factory(&bootinfo.Info{McuType: bootinfo.McuARM, HasMcuType: true})
	if err != nil {
		t.Fatalf("devkit.Factory: %v", err)
	}
	return dk, fam
}

func ackingMock() *transport.Mock {
	m := transport.NewMock()
	m.Responder = func(sent []byte) []byte {
		cmd, err := protocol.Parse(sent)
		if err != nil {
			return make([]byte, protocol.FrameSize)
		}
		return cmd.Pack()
	}
	return m
}

func TestRunIssuesEraseThenWriteForDirtyRun(t *testing.T) {
	dk, fam := newTestSetup(t, 4, 64)
	if err := dk.WritePhy(0, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("WritePhy: %v", err)
	}
	m := ackingMock()
	if err := Run(context.Background(), m, dk, fam); err != nil {
		t.Fatalf("Run: %v", err)
	}

	writes := m.Writes()
	if len(writes) < 2 {
		t.Fatalf("expected at least an erase and a write command frame, got %d frames", len(writes))
	}
	first, err := protocol.Parse(writes[0])
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if first.Cmd != protocol.CmdErase {
		t.Fatalf("first frame Cmd = %v, want CmdErase", first.Cmd)
	}
	if first.Counter != 1 {
		t.Fatalf("erase counter = %d, want 1 (single dirty block)", first.Counter)
	}

	second, err := protocol.Parse(writes[1])
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if second.Cmd != protocol.CmdWrite {
		t.Fatalf("second frame Cmd = %v, want CmdWrite", second.Cmd)
	}
	if second.Counter != 64 {
		t.Fatalf("write counter = %d, want 64 (one full block)", second.Counter)
	}
}

func TestRunSkipsCleanBlocks(t *testing.T) {
	dk, fam := newTestSetup(t, 4, 64)
	m := ackingMock()
	if err := Run(context.Background(), m, dk, fam); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(m.Writes()) != 0 {
		t.Fatalf("expected no commands for an untouched devkit, got %d", len(m.Writes()))
	}
}

func TestRunHandlesMultipleDirtyRuns(t *testing.T) {
	dk, fam := newTestSetup(t, 6, 64)
	if err := dk.WritePhy(0, []byte{1}); err != nil {
		t.Fatalf("WritePhy: %v", err)
	}
	if err := dk.WritePhy(4*64, []byte{1}); err != nil {
		t.Fatalf("WritePhy: %v", err)
	}
	m := ackingMock()
	if err := Run(context.Background(), m, dk, fam); err != nil {
		t.Fatalf("Run: %v", err)
	}
	var eraseCount int
	for _, w := range m.Writes() {
		cmd, err := protocol.Parse(w)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if cmd.Cmd == protocol.CmdErase {
			eraseCount++
		}
	}
	if eraseCount != 2 {
		t.Fatalf("expected 2 separate erase commands for 2 disjoint runs, got %d", eraseCount)
	}
}
