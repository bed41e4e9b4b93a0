package protocol

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeWireBytes(t *testing.T) {
	cursor, err := SetCursorPos(963, -2)
	require.NoError(t, err)

	tests := []struct {
		name string
		cmd  Command
		want []byte
	}{
		{name: "cursor", cmd: cursor, want: []byte{0x0, 0xc3, 0x03, 0xfe, 0xff}},
		{name: "restore cursor", cmd: Simple(OpRestoreCursorPos), want: []byte{0x1}},
		{name: "key down", cmd: SetKeyDown(276), want: []byte{0x2, 0x14, 0x01, 0x00, 0x00}},
		{name: "negative key", cmd: SetKeyDown(-1), want: []byte{0x2, 0xff, 0xff, 0xff, 0xff}},
		{name: "special", cmd: SetSpecialKey(3), want: []byte{0x4, 0x03}},
		{name: "unhook", cmd: Simple(OpUnhookAll), want: []byte{0x6}},
		{name: "eject", cmd: Simple(OpEject), want: []byte{0x7}},
		{name: "sync", cmd: Simple(OpSync), want: []byte{0xc}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Encode(tc.cmd)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
			require.Len(t, got, tc.cmd.Size())
		})
	}
}

func TestRoundTripEveryOpcode(t *testing.T) {
	for op := OpSetCursorPos; op <= OpSync; op++ {
		c := Command{Op: op}
		switch op {
		case OpSetCursorPos:
			c.X, c.Y = math.MinInt16, math.MaxInt16
		case OpSetKeyDown:
			c.KeyCode = math.MinInt32
		case OpSetSpecialKey:
			c.Special = math.MaxUint8
		}

		data, err := Encode(c)
		require.NoError(t, err, op.String())

		got, n, err := Decode(data)
		require.NoError(t, err, op.String())
		require.Equal(t, len(data), n)
		require.Equal(t, c, got)
	}
}

func TestEncodeRejectsUnknownOpcode(t *testing.T) {
	_, err := Encode(Command{Op: 0xd})
	require.ErrorIs(t, err, ErrUnknownOpcode)
}

func TestDecodeErrors(t *testing.T) {
	_, _, err := Decode(nil)
	require.ErrorIs(t, err, ErrShortPayload)

	_, _, err = Decode([]byte{0x0, 0x01, 0x02})
	require.ErrorIs(t, err, ErrShortPayload)

	_, _, err = Decode([]byte{0x4})
	require.ErrorIs(t, err, ErrShortPayload)

	_, _, err = Decode([]byte{0xff})
	require.ErrorIs(t, err, ErrUnknownOpcode)
}

func TestDecodeStream(t *testing.T) {
	var stream []byte
	want := []Command{SetKeyDown(97), Simple(OpSync), Simple(OpRestoreKeyDown), Simple(OpSync)}
	for _, c := range want {
		b, err := Encode(c)
		require.NoError(t, err)
		stream = append(stream, b...)
	}

	got, err := DecodeStream(stream)
	require.NoError(t, err)
	require.Equal(t, want, got)

	got, err = DecodeStream(append(stream, 0x2, 0x00))
	require.ErrorIs(t, err, ErrShortPayload)
	require.Len(t, got, len(want))
}

func TestSetCursorPosOverflow(t *testing.T) {
	_, err := SetCursorPos(math.MaxInt16+1, 0)
	require.ErrorIs(t, err, ErrFieldOverflow)

	_, err = SetCursorPos(0, math.MinInt16-1)
	require.ErrorIs(t, err, ErrFieldOverflow)
}

func TestOpcodeTable(t *testing.T) {
	require.Equal(t, Opcode(0xc), OpSync)
	require.Equal(t, Opcode(0x8), OpHookFocus)
	require.False(t, Opcode(0xd).Valid())
	require.Equal(t, "HookKeyString", OpHookKeyString.String())
	require.Equal(t, "Opcode(0x20)", Opcode(0x20).String())
	require.Equal(t, "SetCursorPos(3, 36)", Command{Op: OpSetCursorPos, X: 3, Y: 36}.String())
}
