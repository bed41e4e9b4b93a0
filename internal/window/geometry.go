// Package window resolves the game window and converts logical coordinates,
// expressed against a fixed 960x600 reference resolution, into physical
// window coordinates.
package window

import (
	"errors"
	"fmt"
)

// Reference is the resolution every logical coordinate is expressed in.
var Reference = Size{Width: 960, Height: 600}

// ErrGeometryUnavailable is returned when the window cannot be resolved or has
// no drawable area (minimized, not yet realized).
var ErrGeometryUnavailable = errors.New("window: geometry unavailable")

// Point is a pair of coordinates. Whether it is logical or physical depends on
// where it came from; only ToPhysical converts between the two.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Size is a width and height in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect mirrors the Win32 RECT layout.
type Rect struct {
	Left, Top, Right, Bottom int32
}

func (r Rect) Width() int  { return int(r.Right - r.Left) }
func (r Rect) Height() int { return int(r.Bottom - r.Top) }
func (r Rect) Size() Size  { return Size{Width: r.Width(), Height: r.Height()} }

// Geometry is a snapshot of the target window. It is not valid across window
// moves or resizes; fetch a new one for every operation.
type Geometry struct {
	Handle uintptr
	Outer  Rect  // full window bounds, including decorations
	Client Rect  // drawable area
	Offset Point // position offset applied to every logical coordinate
}

// Borders returns the non-client thickness: the horizontal border is half the
// width difference, the vertical one is what remains of the height difference
// after removing one horizontal border (title bar plus bottom edge).
func Borders(g Geometry) Point {
	bx := floorDiv(g.Outer.Width()-g.Client.Width(), 2)
	by := g.Outer.Height() - g.Client.Height() - bx
	return Point{X: bx, Y: by}
}

// ToPhysical scales p from the reference resolution to the client size of g
// and adds the border and position offsets.
func ToPhysical(p Point, g Geometry) (Point, error) {
	cw, ch := g.Client.Width(), g.Client.Height()
	if cw <= 0 || ch <= 0 {
		return Point{}, fmt.Errorf("%w: client area %dx%d", ErrGeometryUnavailable, cw, ch)
	}

	b := Borders(g)
	return Point{
		X: floorDiv(p.X*cw, Reference.Width) + b.X + g.Offset.X,
		Y: floorDiv(p.Y*ch, Reference.Height) + b.Y + g.Offset.Y,
	}, nil
}

// ToPhysicalArea maps both corners of a logical area.
func ToPhysicalArea(topLeft, bottomRight Point, g Geometry) (Point, Point, error) {
	a, err := ToPhysical(topLeft, g)
	if err != nil {
		return Point{}, Point{}, err
	}
	b, err := ToPhysical(bottomRight, g)
	if err != nil {
		return Point{}, Point{}, err
	}
	return a, b, nil
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
