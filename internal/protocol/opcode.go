// Package protocol defines the binary command stream understood by the listener
// injected into the game process.
package protocol

import "fmt"

// Opcode is the leading tag byte of every command frame.
type Opcode uint8

// Wire format per opcode (little-endian, no framing):
//
//	SetCursorPos      (0x0): tag + x(int16) + y(int16) = 5 bytes
//	RestoreCursorPos  (0x1): tag                      = 1 byte
//	SetKeyDown        (0x2): tag + keycode(int32)     = 5 bytes
//	RestoreKeyDown    (0x3): tag                      = 1 byte
//	SetSpecialKey     (0x4): tag + keycode(uint8)     = 2 bytes
//	RestoreSpecialKey (0x5): tag                      = 1 byte
//	UnhookAll .. Sync (0x6-0xc): tag only             = 1 byte
const (
	OpSetCursorPos Opcode = iota
	OpRestoreCursorPos
	OpSetKeyDown
	OpRestoreKeyDown
	OpSetSpecialKey
	OpRestoreSpecialKey
	OpUnhookAll
	OpEject
	OpHookFocus
	OpHookCursorPos
	OpHookKeyDown
	OpHookKeyString
	OpSync
)

// Valid reports whether op is part of the opcode table.
func (op Opcode) Valid() bool {
	return op <= OpSync
}

// PayloadSize returns the number of bytes following the tag byte.
func (op Opcode) PayloadSize() int {
	switch op {
	case OpSetCursorPos:
		return 4 // x(2) + y(2)
	case OpSetKeyDown:
		return 4
	case OpSetSpecialKey:
		return 1
	default:
		return 0
	}
}

func (op Opcode) String() string {
	switch op {
	case OpSetCursorPos:
		return "SetCursorPos"
	case OpRestoreCursorPos:
		return "RestoreCursorPos"
	case OpSetKeyDown:
		return "SetKeyDown"
	case OpRestoreKeyDown:
		return "RestoreKeyDown"
	case OpSetSpecialKey:
		return "SetSpecialKey"
	case OpRestoreSpecialKey:
		return "RestoreSpecialKey"
	case OpUnhookAll:
		return "UnhookAll"
	case OpEject:
		return "Eject"
	case OpHookFocus:
		return "HookFocus"
	case OpHookCursorPos:
		return "HookCursorPos"
	case OpHookKeyDown:
		return "HookKeyDown"
	case OpHookKeyString:
		return "HookKeyString"
	case OpSync:
		return "Sync"
	default:
		return fmt.Sprintf("Opcode(0x%x)", uint8(op))
	}
}
