package window

import (
	"fmt"
	"sync"
)

// Provider reports the current rectangles of the target window.
type Provider interface {
	Geometry() (Geometry, error)
}

// Target accepts synthetic input messages addressed to a window handle.
type Target interface {
	// Send delivers msg synchronously (SendMessage).
	Send(handle uintptr, msg uint32, wparam, lparam uintptr) error
	// Post queues msg (PostMessage).
	Post(handle uintptr, msg uint32, wparam, lparam uintptr) error
	// KeyScan returns the virtual-key code and shift state for r (VkKeyScan).
	KeyScan(r rune) (uintptr, error)
}

// Mapper applies the configured position offset to fresh geometry from a
// Provider. It is the only place logical points become physical ones.
type Mapper struct {
	provider Provider

	mu     sync.Mutex
	offset Point
}

// NewMapper creates a mapper with the given position offset.
func NewMapper(p Provider, offset Point) *Mapper {
	return &Mapper{provider: p, offset: offset}
}

// SetOffset changes the offset applied to every logical coordinate, for
// builds of the game whose canvas does not sit at the window origin.
func (m *Mapper) SetOffset(p Point) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offset = p
}

// Offset returns the current position offset.
func (m *Mapper) Offset() Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offset
}

// Geometry fetches the window rectangles. Nothing is cached.
func (m *Mapper) Geometry() (Geometry, error) {
	g, err := m.provider.Geometry()
	if err != nil {
		return Geometry{}, err
	}
	g.Offset = m.Offset()
	if g.Client.Width() <= 0 || g.Client.Height() <= 0 {
		return Geometry{}, fmt.Errorf("%w: client area %dx%d", ErrGeometryUnavailable, g.Client.Width(), g.Client.Height())
	}
	return g, nil
}

// ToPhysical maps a single logical point against fresh geometry.
func (m *Mapper) ToPhysical(p Point) (Point, error) {
	g, err := m.Geometry()
	if err != nil {
		return Point{}, err
	}
	return ToPhysical(p, g)
}
