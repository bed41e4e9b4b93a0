package window

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// frame builds a geometry whose outer rect is placed at (100, 50).
func frame(outerW, outerH, clientW, clientH int32) Geometry {
	return Geometry{
		Handle: 0x1234,
		Outer:  Rect{Left: 100, Top: 50, Right: 100 + outerW, Bottom: 50 + outerH},
		Client: Rect{Right: clientW, Bottom: clientH},
	}
}

func TestBorders(t *testing.T) {
	tests := []struct {
		name string
		g    Geometry
		want Point
	}{
		{name: "standard frame", g: frame(966, 639, 960, 600), want: Point{X: 3, Y: 36}},
		{name: "odd difference floors", g: frame(977, 639, 960, 600), want: Point{X: 8, Y: 31}},
		{name: "borderless", g: frame(960, 600, 960, 600), want: Point{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Borders(tc.g))
		})
	}
}

func TestToPhysicalCenter(t *testing.T) {
	g := frame(1926, 1239, 1920, 1200)
	require.Equal(t, Point{X: 3, Y: 36}, Borders(g))

	p, err := ToPhysical(Point{X: 480, Y: 300}, g)
	require.NoError(t, err)
	require.Equal(t, Point{X: 963, Y: 636}, p)
}

func TestToPhysicalFloors(t *testing.T) {
	g := frame(1006, 739, 1000, 700)

	// 1*1000/960 = 1.04, 1*700/600 = 1.17
	p, err := ToPhysical(Point{X: 1, Y: 1}, g)
	require.NoError(t, err)
	require.Equal(t, Point{X: 1 + 3, Y: 1 + 36}, p)

	// negative logical coordinates floor toward minus infinity
	p, err = ToPhysical(Point{X: -1, Y: -1}, g)
	require.NoError(t, err)
	require.Equal(t, Point{X: -2 + 3, Y: -2 + 36}, p)
}

func TestToPhysicalOffset(t *testing.T) {
	g := frame(966, 639, 960, 600)
	g.Offset = Point{X: -8, Y: 12}

	p, err := ToPhysical(Point{X: 10, Y: 20}, g)
	require.NoError(t, err)
	require.Equal(t, Point{X: 10 + 3 - 8, Y: 20 + 36 + 12}, p)
}

func TestToPhysicalLinearInClientSize(t *testing.T) {
	pts := []Point{{X: 0, Y: 0}, {X: 480, Y: 300}, {X: 960, Y: 600}, {X: 240, Y: 150}}
	base := frame(966, 639, 960, 600)
	b := Borders(base)

	for _, k := range []int32{1, 2, 3, 4} {
		g := base
		g.Client = Rect{Right: 960 * k, Bottom: 600 * k}
		// keep the decoration thickness identical
		g.Outer.Right = g.Outer.Left + 960*k + 6
		g.Outer.Bottom = g.Outer.Top + 600*k + 39
		require.Equal(t, b, Borders(g))

		for _, p := range pts {
			got, err := ToPhysical(p, g)
			require.NoError(t, err)
			require.Equal(t, Point{X: p.X*int(k) + b.X, Y: p.Y*int(k) + b.Y}, got)
		}
	}
}

func TestToPhysicalZeroClient(t *testing.T) {
	for _, g := range []Geometry{frame(160, 28, 0, 0), frame(966, 39, 960, 0), frame(6, 639, 0, 600)} {
		_, err := ToPhysical(Point{X: 1, Y: 1}, g)
		require.ErrorIs(t, err, ErrGeometryUnavailable)
	}
}

func TestToPhysicalArea(t *testing.T) {
	g := frame(966, 639, 960, 600)
	a, b, err := ToPhysicalArea(Point{X: 10, Y: 10}, Point{X: 20, Y: 30}, g)
	require.NoError(t, err)
	require.Equal(t, Point{X: 13, Y: 46}, a)
	require.Equal(t, Point{X: 23, Y: 66}, b)

	_, _, err = ToPhysicalArea(Point{}, Point{}, frame(0, 0, 0, 0))
	require.ErrorIs(t, err, ErrGeometryUnavailable)
}

type staticProvider struct {
	g     Geometry
	err   error
	calls int
}

func (p *staticProvider) Geometry() (Geometry, error) {
	p.calls++
	return p.g, p.err
}

func TestMapperRefreshesAndAppliesOffset(t *testing.T) {
	sp := &staticProvider{g: frame(966, 639, 960, 600)}
	m := NewMapper(sp, Point{X: 5})

	p, err := m.ToPhysical(Point{X: 100, Y: 100})
	require.NoError(t, err)
	require.Equal(t, Point{X: 108, Y: 136}, p)

	sp.g = frame(1926, 1239, 1920, 1200)
	m.SetOffset(Point{})
	p, err = m.ToPhysical(Point{X: 100, Y: 100})
	require.NoError(t, err)
	require.Equal(t, Point{X: 203, Y: 236}, p)
	require.Equal(t, 2, sp.calls)
}

func TestMapperMinimizedWindow(t *testing.T) {
	m := NewMapper(&staticProvider{g: frame(160, 28, 0, 0)}, Point{})
	_, err := m.Geometry()
	require.ErrorIs(t, err, ErrGeometryUnavailable)

	boom := errors.New("boom")
	m = NewMapper(&staticProvider{err: boom}, Point{})
	_, err = m.ToPhysical(Point{})
	require.ErrorIs(t, err, boom)
}

func TestLocatorCachesHandle(t *testing.T) {
	finds := 0
	live := true
	loc := NewLocator("", time.Minute, func(title string) (uintptr, error) {
		require.Equal(t, DefaultTitle, title)
		finds++
		return uintptr(0x100 + finds), nil
	}, func(uintptr) bool { return live }, nil)

	h, err := loc.Handle()
	require.NoError(t, err)
	require.Equal(t, uintptr(0x101), h)

	h, err = loc.Handle()
	require.NoError(t, err)
	require.Equal(t, uintptr(0x101), h)
	require.Equal(t, 1, finds)

	live = false
	h, err = loc.Handle()
	require.NoError(t, err)
	require.Equal(t, uintptr(0x102), h)

	live = true
	loc.Invalidate()
	h, err = loc.Handle()
	require.NoError(t, err)
	require.Equal(t, uintptr(0x103), h)
}

func TestLocatorExpiry(t *testing.T) {
	finds := 0
	loc := NewLocator("Game", 20*time.Millisecond, func(string) (uintptr, error) {
		finds++
		return 0x42, nil
	}, nil, nil)

	_, err := loc.Handle()
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	_, err = loc.Handle()
	require.NoError(t, err)
	require.Equal(t, 2, finds)
}

func TestLocatorWindowMissing(t *testing.T) {
	loc := NewLocator("Game", time.Minute, func(string) (uintptr, error) { return 0, nil }, nil, nil)
	_, err := loc.Handle()
	require.ErrorIs(t, err, ErrGeometryUnavailable)
	require.Contains(t, err.Error(), `"Game"`)
}
