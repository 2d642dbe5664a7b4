// Package hashhistory implements the hash history protocol: it keeps an
// application's logical location in sync with the browser's URL fragment.
//
// Three things are kept consistent: the fragment itself, the
// application-visible location.Location, and, for browsers without
// history.pushState, a state blob persisted out of band under a key carried
// in the fragment's query string.
//
// # Usage
//
//	win := browser.NewMemory()
//	p := hashhistory.New(win,
//	    hashhistory.WithPathCoder(pathcoder.Slash),
//	    hashhistory.WithQueryKey("_k"),
//	)
//
//	detach := p.Listen(ctx, func(loc location.Location) {
//	    fmt.Println("navigated to", loc.Pathname)
//	})
//	defer detach()
//
//	err := p.Push(ctx, location.New("/users/42", map[string]any{"tab": "posts"}))
//
// # Writing strategies
//
// The strategy is chosen once, in New. If the window has a usable
// history.pushState, state travels with the history entry and the fragment
// is written with pushState/replaceState. Otherwise the fragment is assigned
// directly and state is saved to the configured StateStorage under the
// location's key, which is appended to the fragment as queryKey=key.
//
// # Notifications
//
// Listen rewrites malformed fragments (ones the PathCoder would encode
// differently) instead of reporting them, and drops repeated notifications
// that resolve to the key of the last location seen. All listeners and
// writers of one Protocol share that last-seen slot (a Tracker), so one
// listener's delivery can suppress another's.
//
// Pushing the path already in the fragment writes nothing and logs a
// warning. Replacing onto the current path writes nothing, silently.
package hashhistory
