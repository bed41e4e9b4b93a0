package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrUnknownOpcode is returned for tag bytes outside the opcode table
	ErrUnknownOpcode = errors.New("protocol: unknown opcode")

	// ErrShortPayload is returned when a frame ends before its payload does
	ErrShortPayload = errors.New("protocol: payload too short")

	// ErrFieldOverflow is returned when a value does not fit its wire field
	ErrFieldOverflow = errors.New("protocol: field out of range")
)

// Command is a single fire-and-forget instruction for the listener. Only the
// fields belonging to Op are encoded.
type Command struct {
	Op      Opcode
	X       int16 // SetCursorPos
	Y       int16 // SetCursorPos
	KeyCode int32 // SetKeyDown
	Special uint8 // SetSpecialKey
}

// SetCursorPos builds a cursor spoofing command. Coordinates must fit in int16.
func SetCursorPos(x, y int) (Command, error) {
	if x < math.MinInt16 || x > math.MaxInt16 || y < math.MinInt16 || y > math.MaxInt16 {
		return Command{}, fmt.Errorf("%w: cursor (%d, %d)", ErrFieldOverflow, x, y)
	}
	return Command{Op: OpSetCursorPos, X: int16(x), Y: int16(y)}, nil
}

// SetKeyDown builds a key-down spoofing command.
func SetKeyDown(keyCode int32) Command {
	return Command{Op: OpSetKeyDown, KeyCode: keyCode}
}

// SetSpecialKey builds a modifier spoofing command.
func SetSpecialKey(keyCode uint8) Command {
	return Command{Op: OpSetSpecialKey, Special: keyCode}
}

// Simple builds a command that carries no payload.
func Simple(op Opcode) Command {
	return Command{Op: op}
}

// Size returns the encoded length of c.
func (c Command) Size() int {
	return 1 + c.Op.PayloadSize()
}

func (c Command) String() string {
	switch c.Op {
	case OpSetCursorPos:
		return fmt.Sprintf("%s(%d, %d)", c.Op, c.X, c.Y)
	case OpSetKeyDown:
		return fmt.Sprintf("%s(%d)", c.Op, c.KeyCode)
	case OpSetSpecialKey:
		return fmt.Sprintf("%s(%d)", c.Op, c.Special)
	default:
		return c.Op.String()
	}
}

// Encode serializes c to wire format.
func Encode(c Command) ([]byte, error) {
	if !c.Op.Valid() {
		return nil, fmt.Errorf("%w: 0x%x", ErrUnknownOpcode, uint8(c.Op))
	}

	buf := make([]byte, c.Size())
	buf[0] = byte(c.Op)

	payload := buf[1:]
	switch c.Op {
	case OpSetCursorPos:
		binary.LittleEndian.PutUint16(payload[0:2], uint16(c.X))
		binary.LittleEndian.PutUint16(payload[2:4], uint16(c.Y))
	case OpSetKeyDown:
		binary.LittleEndian.PutUint32(payload[0:4], uint32(c.KeyCode))
	case OpSetSpecialKey:
		payload[0] = c.Special
	}

	return buf, nil
}

// Decode parses the first frame in data and returns it together with the
// number of bytes consumed.
func Decode(data []byte) (Command, int, error) {
	if len(data) == 0 {
		return Command{}, 0, ErrShortPayload
	}

	c := Command{Op: Opcode(data[0])}
	if !c.Op.Valid() {
		return Command{}, 0, fmt.Errorf("%w: 0x%x", ErrUnknownOpcode, data[0])
	}

	n := c.Size()
	if len(data) < n {
		return Command{}, 0, fmt.Errorf("%w: %s needs %d bytes, have %d", ErrShortPayload, c.Op, n, len(data))
	}

	payload := data[1:n]
	switch c.Op {
	case OpSetCursorPos:
		c.X = int16(binary.LittleEndian.Uint16(payload[0:2]))
		c.Y = int16(binary.LittleEndian.Uint16(payload[2:4]))
	case OpSetKeyDown:
		c.KeyCode = int32(binary.LittleEndian.Uint32(payload[0:4]))
	case OpSetSpecialKey:
		c.Special = payload[0]
	}

	return c, n, nil
}

// DecodeStream parses a concatenation of frames, as read from the listener's
// end of the pipe.
func DecodeStream(data []byte) ([]Command, error) {
	var cmds []Command
	for len(data) > 0 {
		c, n, err := Decode(data)
		if err != nil {
			return cmds, err
		}
		cmds = append(cmds, c)
		data = data[n:]
	}
	return cmds, nil
}
