// Package wsbridge mirrors a real browser tab as a browser.Window.
//
// A small JavaScript client (served at /client.js) opens a websocket to the
// Server, reports the tab's href and history state, and forwards every
// hashchange. Window writes made on the Go side (pushState, replaceState,
// hash assignment, location.replace, history.go) are sent back as commands
// and executed by the client.
//
// RemoteWindow keeps a local mirror of href and state so reads never block
// on the network. Writes update the mirror immediately; a change the tab
// makes on its own (back button, manual edit) arrives as a hashchange
// message and is dispatched to listeners from the connection's read loop.
//
//	srv := wsbridge.NewServer(func(ctx context.Context, win *wsbridge.RemoteWindow) func() {
//	    h := hashhistory.New(win)
//	    return h.Listen(ctx, func(loc location.Location) {
//	        log.Println("navigated to", loc.Path())
//	    })
//	})
//	http.ListenAndServe(":8080", srv)
package wsbridge
