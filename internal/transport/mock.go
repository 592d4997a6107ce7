package transport

import (
	"context"

	"github.com/pkg/errors"

	"uhbprog/internal/protocol"
)

// Mock is an in-memory Device fake for exercising the session and
// transfer engine without real hardware. Responder is called once per
// Write with the just-sent frame and returns the reply frame to hand back
// on the next Read, modeling the bootloader's command/ack cadence.
type Mock struct {
	Responder func(sent []byte) []byte

	pending []byte
	writes  [][]byte
}

// NewMock builds a Mock that always echoes a zeroed 64-byte ack, useful as
// a baseline before a test overrides Responder for a specific scenario.
func NewMock() *Mock {
	return &Mock{
		Responder: func(sent []byte) []byte {
			return make([]byte, protocol.FrameSize)
		},
	}
}

func (m *Mock) Write(ctx context.Context, report []byte) error {
	if len(report) != protocol.FrameSize {
		return errors.Errorf("mock: report must be %d bytes, got %d", protocol.FrameSize, len(report))
	}
	cp := make([]byte, protocol.FrameSize)
	copy(cp, report)
	m.writes = append(m.writes, cp)
	m.pending = m.Responder(cp)
	return nil
}

func (m *Mock) Read(ctx context.Context) ([]byte, error) {
	if m.pending == nil {
		return nil, errors.New("mock: no response queued, Write must precede Read")
	}
	resp := m.pending
	m.pending = nil
	return resp, nil
}

func (m *Mock) Close() error { return nil }

// Writes returns every frame sent so far, for test assertions.
func (m *Mock) Writes() [][]byte { return m.writes }
