package hashhistory

import "github.com/vango-dev/hashhistory/pkg/browser"

// Go moves n entries through the window's history. It does nothing if the
// window cannot traverse. Resulting fragment changes reach listeners as
// ordinary notifications.
func (p *Protocol) Go(n int) {
	if t, ok := p.win.(browser.Traverser); ok {
		t.Go(n)
	}
}

// GetUserConfirmation asks the user to confirm a transition and passes the
// answer to callback. Windows that cannot ask confirm everything.
func (p *Protocol) GetUserConfirmation(message string, callback func(ok bool)) {
	ok := true
	if c, can := p.win.(browser.Confirmer); can {
		ok = c.Confirm(message)
	}
	callback(ok)
}
