package window

import (
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/sirupsen/logrus"

	"nguctl/internal/logging"
)

// DefaultTitle is the caption of the game window.
const DefaultTitle = "NGU Idle"

// DefaultHandleTTL bounds how long a resolved handle is trusted without
// looking it up again.
const DefaultHandleTTL = 30 * time.Second

// Locator resolves a top-level window handle by exact title and caches it.
// Only the handle is cached, never its rectangles.
type Locator struct {
	title string
	find  func(title string) (uintptr, error)
	alive func(handle uintptr) bool
	cache *ttlcache.Cache[string, uintptr]
	log   logrus.FieldLogger
}

// NewLocator builds a locator around platform lookups. find returns 0 when no
// window matches.
func NewLocator(title string, ttl time.Duration, find func(string) (uintptr, error), alive func(uintptr) bool, log logrus.FieldLogger) *Locator {
	if title == "" {
		title = DefaultTitle
	}
	if ttl <= 0 {
		ttl = DefaultHandleTTL
	}
	return &Locator{
		title: title,
		find:  find,
		alive: alive,
		cache: ttlcache.New[string, uintptr](
			ttlcache.WithTTL[string, uintptr](ttl),
			ttlcache.WithDisableTouchOnHit[string, uintptr](),
		),
		log: logging.Component(log, "window"),
	}
}

// Title returns the window caption being looked up.
func (l *Locator) Title() string {
	return l.title
}

// Handle returns the window handle, looking it up when the cached one has
// expired or no longer refers to a live window.
func (l *Locator) Handle() (uintptr, error) {
	if item := l.cache.Get(l.title); item != nil {
		h := item.Value()
		if l.alive == nil || l.alive(h) {
			return h, nil
		}
		l.log.Debugf("Cached handle 0x%x for %q is stale", h, l.title)
		l.cache.Delete(l.title)
	}

	h, err := l.find(l.title)
	if err != nil {
		return 0, fmt.Errorf("%w: find %q: %w", ErrGeometryUnavailable, l.title, err)
	}
	if h == 0 {
		return 0, fmt.Errorf("%w: window %q not found", ErrGeometryUnavailable, l.title)
	}

	l.cache.Set(l.title, h, ttlcache.DefaultTTL)
	l.log.Debugf("Resolved %q to handle 0x%x", l.title, h)
	return h, nil
}

// Invalidate drops the cached handle.
func (l *Locator) Invalidate() {
	l.cache.Delete(l.title)
}
