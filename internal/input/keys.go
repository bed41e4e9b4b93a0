package input

import (
	"fmt"
	"strings"
)

// Win32 window messages and mouse key state flags posted to the game window.
const (
	wmKeyDown     = 0x0100
	wmMouseMove   = 0x0200
	wmLButtonDown = 0x0201
	wmLButtonUp   = 0x0202
	wmRButtonDown = 0x0204
	wmRButtonUp   = 0x0205
	wmMButtonDown = 0x0207
	wmMButtonUp   = 0x0208
	mkLButton     = 0x0001
	mkRButton     = 0x0002
	mkMButton     = 0x0010
)

// Button is a mouse button.
type Button uint8

const (
	Left Button = iota
	Right
	Middle
)

type buttonMessages struct {
	state    uintptr
	down, up uint32
}

func (b Button) messages() buttonMessages {
	switch b {
	case Left:
		return buttonMessages{state: mkLButton, down: wmLButtonDown, up: wmLButtonUp}
	case Right:
		return buttonMessages{state: mkRButton, down: wmRButtonDown, up: wmRButtonUp}
	case Middle:
		return buttonMessages{state: mkMButton, down: wmMButtonDown, up: wmMButtonUp}
	default:
		panic(fmt.Sprintf("input: unknown button %d", b))
	}
}

func (b Button) String() string {
	switch b {
	case Left:
		return "left"
	case Right:
		return "right"
	case Middle:
		return "middle"
	default:
		return fmt.Sprintf("button(%d)", uint8(b))
	}
}

// ParseButton accepts left, right or middle. The empty string is Left.
func ParseButton(s string) (Button, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "left":
		return Left, nil
	case "right":
		return Right, nil
	case "middle":
		return Middle, nil
	}
	return 0, fmt.Errorf("input: unknown button %q", s)
}

// SpecialKey is a modifier the listener can report as held.
type SpecialKey uint8

const (
	LeftShift SpecialKey = iota
	RightShift
	LeftControl
	RightControl
)

// Code returns the listener's wire value for k.
func (k SpecialKey) Code() uint8 {
	switch k {
	case LeftShift:
		return 0
	case RightShift:
		return 1
	case LeftControl:
		return 2
	case RightControl:
		return 3
	default:
		panic(fmt.Sprintf("input: unknown special key %d", k))
	}
}

func (k SpecialKey) String() string {
	switch k {
	case LeftShift:
		return "leftShift"
	case RightShift:
		return "rightShift"
	case LeftControl:
		return "leftControl"
	case RightControl:
		return "rightControl"
	default:
		return fmt.Sprintf("special(%d)", uint8(k))
	}
}

// ParseSpecialKey accepts the names produced by SpecialKey.String, case
// insensitively. The empty string is LeftShift.
func ParseSpecialKey(s string) (SpecialKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return LeftShift, nil
	}
	for _, k := range []SpecialKey{LeftShift, RightShift, LeftControl, RightControl} {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("input: unknown special key %q", s)
}

// Arrow is an arrow key, identified by the engine's key code.
type Arrow uint8

const (
	Up Arrow = iota
	Down
	RightArrow
	LeftArrow
)

// KeyCode returns the engine key code the listener reports for a.
func (a Arrow) KeyCode() int32 {
	switch a {
	case Up:
		return 273
	case Down:
		return 274
	case RightArrow:
		return 275
	case LeftArrow:
		return 276
	default:
		panic(fmt.Sprintf("input: unknown arrow %d", a))
	}
}

func (a Arrow) String() string {
	switch a {
	case Up:
		return "up"
	case Down:
		return "down"
	case RightArrow:
		return "right"
	case LeftArrow:
		return "left"
	default:
		return fmt.Sprintf("arrow(%d)", uint8(a))
	}
}

// ParseArrow accepts up, down, left or right. The empty string is LeftArrow.
func ParseArrow(s string) (Arrow, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "left":
		return LeftArrow, nil
	case "right":
		return RightArrow, nil
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	}
	return 0, fmt.Errorf("input: unknown arrow %q", s)
}
