//go:build !windows

package window

import (
	"fmt"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

var errUnsupported = fmt.Errorf("window automation not supported on %s", runtime.GOOS)

// System is unavailable outside Windows; every lookup fails.
type System struct {
	loc *Locator
}

// NewSystem returns a provider whose lookups always fail.
func NewSystem(title string, handleTTL time.Duration, log logrus.FieldLogger) *System {
	find := func(string) (uintptr, error) { return 0, errUnsupported }
	return &System{loc: NewLocator(title, handleTTL, find, nil, log)}
}

// Locator exposes the handle cache.
func (s *System) Locator() *Locator {
	return s.loc
}

// Geometry implements Provider.
func (s *System) Geometry() (Geometry, error) {
	if _, err := s.loc.Handle(); err != nil {
		return Geometry{}, err
	}
	return Geometry{}, ErrGeometryUnavailable
}

// Send implements Target.
func (s *System) Send(handle uintptr, msg uint32, wparam, lparam uintptr) error {
	return errUnsupported
}

// Post implements Target.
func (s *System) Post(handle uintptr, msg uint32, wparam, lparam uintptr) error {
	return errUnsupported
}

// KeyScan implements Target.
func (s *System) KeyScan(r rune) (uintptr, error) {
	return 0, errUnsupported
}

// CycleFocus is unsupported.
func (s *System) CycleFocus() error {
	return errUnsupported
}
