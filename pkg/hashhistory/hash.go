package hashhistory

import "github.com/vango-dev/hashhistory/pkg/browser"

// hashPath returns everything after the first '#' in the full URL.
// The URL is read whole because a browser's own hash accessor may hand back
// a pre-decoded fragment.
func (p *Protocol) hashPath() string {
	_, hash, _ := browser.SplitHref(p.win.Href())
	return hash
}

// writer is the strategy for putting a path into the fragment.
type writer interface {
	push(path string, state any)
	replace(path string, state any)

	// native reports whether state is stored with the history entry.
	native() bool
	name() string
}

func newWriter(win browser.Window) writer {
	if sh, ok := browser.StateAPI(win); ok {
		return stateWriter{history: sh}
	}
	return hashWriter{win: win}
}

// stateWriter writes through history.pushState/replaceState.
type stateWriter struct {
	history browser.StateHistory
}

func (w stateWriter) push(path string, state any) {
	w.history.PushState(state, "#"+path)
}

func (w stateWriter) replace(path string, state any) {
	w.history.ReplaceState(state, "#"+path)
}

func (stateWriter) native() bool { return true }
func (stateWriter) name() string { return "state" }

// hashWriter assigns the fragment directly; state cannot be attached.
type hashWriter struct {
	win browser.Window
}

func (w hashWriter) push(path string, _ any) {
	w.win.SetHash(path)
}

func (w hashWriter) replace(path string, _ any) {
	base, _, found := browser.SplitHref(w.win.Href())
	if !found {
		// a fragment-only URL resolves against the current document
		base = ""
	}
	w.win.Replace(base + "#" + path)
}

func (hashWriter) native() bool { return false }
func (hashWriter) name() string { return "hash" }
