// Package browser describes the browser primitives the hash history protocol
// consumes, and provides Memory, an in-memory browser for tests, simulation
// and embedding.
//
// The contract is deliberately small. A Window exposes the full URL, the
// native history state, two ways to change the fragment (set it, or replace
// the whole URL), and named event subscription. Optional capabilities are
// separate interfaces and are probed once by the consumer:
//
//   - StateHistory: pushState/replaceState
//   - StateSupport: runtime availability of StateHistory
//   - Traverser: history.go(n)
//   - Confirmer: window.confirm
package browser

import "strings"

// EventHashChange is the event fired when the URL fragment changes.
const EventHashChange = "hashchange"

// Window is the subset of window.location, window.history and event
// subscription used by the protocol.
type Window interface {
	// Href returns the full current URL, fragment included, exactly as the
	// browser reports it.
	Href() string

	// HistoryState returns the state object of the current history entry,
	// or nil.
	HistoryState() any

	// SetHash assigns location.hash. hash does not include the leading "#".
	SetHash(hash string)

	// Replace navigates to url replacing the current history entry.
	Replace(url string)

	// AddEventListener subscribes handler to the named event and returns a
	// function that removes the subscription. The returned function may be
	// called more than once.
	AddEventListener(event string, handler func()) (remove func())
}

// StateHistory is implemented by windows with history.pushState and
// history.replaceState. url may be relative, e.g. "#/a".
type StateHistory interface {
	PushState(state any, url string)
	ReplaceState(state any, url string)
}

// StateSupport is implemented by windows that only know at runtime whether
// their StateHistory methods work.
type StateSupport interface {
	SupportsHistoryState() bool
}

// Traverser is implemented by windows that can move through history.
type Traverser interface {
	Go(n int)
}

// Confirmer is implemented by windows that can ask the user a yes/no question.
type Confirmer interface {
	Confirm(message string) bool
}

// StateAPI returns w's StateHistory if it is implemented and usable.
func StateAPI(w Window) (StateHistory, bool) {
	sh, ok := w.(StateHistory)
	if !ok {
		return nil, false
	}
	if ss, ok := w.(StateSupport); ok && !ss.SupportsHistoryState() {
		return nil, false
	}
	return sh, true
}

// SplitHref splits href at the first '#'. hash excludes the '#'; found
// reports whether a '#' was present.
func SplitHref(href string) (base, hash string, found bool) {
	return strings.Cut(href, "#")
}
