package wsbridge

import (
	"html"
	"strings"
)

// ClientScript is the browser side of the bridge. The websocket path is
// taken from the script tag's data-ws attribute (default "/ws").
const ClientScript = `(function() {
    'use strict';

    var script = document.currentScript;
    var path = (script && script.getAttribute('data-ws')) || '/ws';
    var scheme = location.protocol === 'https:' ? 'wss:' : 'ws:';
    var ws = new WebSocket(scheme + '//' + location.host + path);

    function send(msg) {
        if (ws.readyState === WebSocket.OPEN) {
            ws.send(JSON.stringify(msg));
        }
    }

    function snapshot(type) {
        var state = null;
        try {
            state = window.history.state;
        } catch (err) {}
        return {
            type: type,
            href: window.location.href,
            state: state === undefined ? null : state,
            stateApi: typeof window.history.pushState === 'function'
        };
    }

    ws.onopen = function() {
        send(snapshot('hello'));
    };

    window.addEventListener('hashchange', function() {
        send(snapshot('hashchange'));
    });

    ws.onmessage = function(e) {
        var msg;
        try {
            msg = JSON.parse(e.data);
        } catch (err) {
            return;
        }

        switch (msg.type) {
            case 'pushState':
                window.history.pushState(msg.state === undefined ? null : msg.state, null, msg.url);
                break;
            case 'replaceState':
                window.history.replaceState(msg.state === undefined ? null : msg.state, null, msg.url);
                break;
            case 'setHash':
                window.location.hash = msg.hash || '';
                break;
            case 'replace':
                window.location.replace(msg.url);
                break;
            case 'go':
                window.history.go(msg.delta);
                break;
            case 'confirm':
                send({type: 'confirmed', id: msg.id, ok: window.confirm(msg.text || '')});
                break;
        }
    };
})();
`

const indexTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>hashhistory bridge</title></head>
<body>
<p>Connected tab. Edit the fragment or use back/forward; the server sees every change.</p>
<p><a href="#/">#/</a> <a href="#/about">#/about</a> <a href="#/users/42?tab=posts">#/users/42?tab=posts</a></p>
<script src="/client.js" data-ws="{{WS}}"></script>
</body>
</html>
`

func indexPage(wsPath string) string {
	return strings.Replace(indexTemplate, "{{WS}}", html.EscapeString(wsPath), 1)
}
