package hashhistory

import (
	"context"
	"sync"

	"github.com/vango-dev/hashhistory/pkg/browser"
	"github.com/vango-dev/hashhistory/pkg/location"
)

// Listen subscribes listener to genuine navigations and returns a function
// that unsubscribes it. The returned function may be called more than once.
//
// A malformed fragment is rewritten with replace semantics before the
// subscription starts, so the first notification already sees canonical
// input. Later malformed fragments are rewritten the same way and not
// forwarded; the rewrite produces its own notification. A notification that
// resolves to the key of the last-known location is dropped.
//
// ctx is used for StateStorage reads made while handling notifications.
func (p *Protocol) Listen(ctx context.Context, listener func(location.Location)) (detach func()) {
	if raw, encoded, ok := p.ensureEncoded(); !ok {
		p.logger.Debug("rewrote malformed hash before listening", "hash", raw, "encoded", encoded)
	}

	handle := func() {
		if raw, encoded, ok := p.ensureEncoded(); !ok {
			p.logger.Debug("rewrote malformed hash", "hash", raw, "encoded", encoded)
			return
		}

		loc, err := p.currentLocation(ctx)
		if err != nil {
			p.logger.Error("resolve location failed", "error", err)
			return
		}

		if !p.tracker.observe(loc) {
			p.metrics.duplicate()
			p.logger.Debug("ignored repeated hashchange", "key", loc.Key)
			return
		}

		p.metrics.change()
		listener(loc)
	}

	remove := p.win.AddEventListener(browser.EventHashChange, handle)
	p.metrics.listenerAdded()

	var once sync.Once
	return func() {
		once.Do(func() {
			remove()
			p.metrics.listenerRemoved()
		})
	}
}

// ensureEncoded rewrites the fragment with its encoded form when the two
// differ. ok is false when a rewrite happened.
func (p *Protocol) ensureEncoded() (raw, encoded string, ok bool) {
	raw = p.hashPath()
	encoded = p.coder.EncodePath(raw)
	if raw == encoded {
		return raw, encoded, true
	}
	p.metrics.correction()
	p.writer.replace(encoded, nil)
	return raw, encoded, false
}
