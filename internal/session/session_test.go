package session

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"uhbprog/internal/protocol"
	"uhbprog/internal/transport"
)

// armFixture is a minimal BootInfo descriptor for a generic ARM part:
// McuType=30 (ARM), EraseBlock=0x40 (64, matches HIDBufSize), BootStart
// far enough out to host a handful of blocks.
var armFixture = []byte{
	0x0C,       // bSize=12
	0x01, 30,   // McuType = ARM
	0x03, 0x40, 0x00, // EraseBlock = 0x40
	0x06, 0x00, // BootStart field id, then one interior-alignment pad byte
	0x00, 0x02, 0x00, 0x00, // BootStart = 0x200
}

func respondingMock(t *testing.T) *transport.Mock {
	t.Helper()
	m := transport.NewMock()
	first := true
	m.Responder = func(sent []byte) []byte {
		cmd, err := protocol.Parse(sent)
		require.NoError(t, err)
		if cmd.Cmd == protocol.CmdInfo && first {
			first = false
			buf := make([]byte, protocol.FrameSize)
			copy(buf, armFixture)
			return buf
		}
		return cmd.Pack()
	}
	return m
}

func TestProgramInfoOnlyDoesNotTouchFlash(t *testing.T) {
	m := respondingMock(t)
	err := Program(context.Background(), m, nil, true, false)
	require.NoError(t, err)
	require.Len(t, m.Writes(), 1, "expected exactly one INFO command frame")
}

func TestProgramWithHexSequencesBootSyncTransferReboot(t *testing.T) {
	m := respondingMock(t)
	hexImage := strings.NewReader(":0400000001020304F2\n:00000001FF\n")
	err := Program(context.Background(), m, hexImage, false, false)
	require.NoError(t, err)

	var cmds []byte
	for _, w := range m.Writes() {
		cmd, err := protocol.Parse(w)
		require.NoError(t, err)
		cmds = append(cmds, cmd.Cmd)
	}
	require.GreaterOrEqual(t, len(cmds), 4, "expected at least info/boot/sync/.../reboot")
	require.Equal(t, byte(protocol.CmdInfo), cmds[0])
	require.Equal(t, byte(protocol.CmdBoot), cmds[1])
	require.Equal(t, byte(protocol.CmdSync), cmds[2])
	require.Equal(t, byte(protocol.CmdReboot), cmds[len(cmds)-1])
}
