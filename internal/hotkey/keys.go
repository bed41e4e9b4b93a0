package hotkey

import "strconv"

var namedKeys = map[string]uint32{
	"SPACE":       0x20,
	"ENTER":       0x0D,
	"ESC":         0x1B,
	"ESCAPE":      0x1B,
	"BACKSPACE":   0x08,
	"TAB":         0x09,
	"PAGEUP":      0x21,
	"PAGEDOWN":    0x22,
	"END":         0x23,
	"HOME":        0x24,
	"LEFT":        0x25,
	"UP":          0x26,
	"RIGHT":       0x27,
	"DOWN":        0x28,
	"INSERT":      0x2D,
	"DELETE":      0x2E,
	"PAUSE":       0x13,
	"SCROLLLOCK":  0x91,
	"PRINTSCREEN": 0x2C,
}

// nameToVK maps an upper-case key name to its Windows virtual-key code.
func nameToVK(name string) (uint32, bool) {
	if vk, ok := namedKeys[name]; ok {
		return vk, true
	}
	if len(name) == 1 {
		c := name[0]
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			return uint32(c), true
		}
	}
	if len(name) >= 2 && name[0] == 'F' {
		n, err := strconv.Atoi(name[1:])
		if err == nil && n >= 1 && n <= 24 {
			return 0x6F + uint32(n), true
		}
	}
	return 0, false
}
