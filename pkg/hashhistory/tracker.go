package hashhistory

import (
	"sync"

	"github.com/vango-dev/hashhistory/pkg/location"
)

// Tracker holds the most recently written or delivered location. It exists
// only to recognize repeated hashchange notifications for one navigation.
type Tracker struct {
	mu   sync.Mutex
	last *location.Location
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Set records loc as the last-known location.
func (t *Tracker) Set(loc location.Location) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = &loc
}

// Last returns the last-known location, if any.
func (t *Tracker) Last() (location.Location, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == nil {
		return location.Location{}, false
	}
	return *t.last, true
}

// observe records loc unless it repeats the key of the last-known location.
// It reports whether loc is new.
func (t *Tracker) observe(loc location.Location) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last != nil && loc.Key != "" && t.last.Key == loc.Key {
		return false
	}
	t.last = &loc
	return true
}
