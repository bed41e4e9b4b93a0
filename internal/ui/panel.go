// Package ui provides the browser control panel served next to the API.
package ui

import (
	"fmt"
	"html/template"
	"net/http"
	"os/exec"
	"runtime"
)

// Panel renders the control panel page. The page talks to the JSON API of
// the same origin; the API token is read from the page URL.
type Panel struct {
	Version string
}

// ServeHTTP writes the page.
func (p Panel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := tmpl.Execute(w, p); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// URL returns the panel address for an API listening on port.
func URL(port int, token string) string {
	u := fmt.Sprintf("http://127.0.0.1:%d/", port)
	if token != "" {
		u += "?token=" + template.URLQueryEscaper(token)
	}
	return u
}

// OpenBrowser opens url with the desktop's default handler.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	go cmd.Wait()
	return nil
}

var tmpl = template.Must(template.New("panel").Parse(panelHTML))

const panelHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>nguctl</title>
    <style>
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: linear-gradient(135deg, #1a1a2e 0%, #16213e 100%);
            color: #e2e8f0;
            min-height: 100vh;
            padding: 2rem;
        }
        .container { max-width: 900px; margin: 0 auto; }
        h1 { font-size: 1.75rem; margin-bottom: 1.5rem; color: #a5b4fc; }
        h1 small { font-size: 0.9rem; color: #64748b; }
        .card {
            background: rgba(255,255,255,0.05);
            border: 1px solid rgba(255,255,255,0.1);
            border-radius: 16px;
            padding: 1.5rem;
            margin-bottom: 1.5rem;
        }
        .card h2 { font-size: 1.1rem; margin-bottom: 1rem; color: #a5b4fc; }
        .row { display: flex; gap: 0.5rem; flex-wrap: wrap; align-items: center; margin-bottom: 0.75rem; }
        button {
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            color: white; border: none; border-radius: 8px;
            padding: 0.5rem 1rem; cursor: pointer;
        }
        button.danger { background: #b91c1c; }
        input, select {
            background: rgba(0,0,0,0.3); color: #e2e8f0;
            border: 1px solid rgba(255,255,255,0.15); border-radius: 6px;
            padding: 0.4rem 0.6rem; width: 6rem;
        }
        input.wide { width: 18rem; }
        pre { font-size: 0.85rem; white-space: pre-wrap; color: #cbd5e1; }
        #log { max-height: 16rem; overflow-y: auto; }
        .ok { color: #4ade80; } .bad { color: #f87171; }
    </style>
</head>
<body>
<div class="container">
    <h1>nguctl <small>v{{.Version}}</small></h1>

    <div class="card">
        <h2>Listener</h2>
        <pre id="status">loading...</pre>
        <div class="row">
            <button onclick="call('POST', '/api/hooks/enable')">Enable hooks</button>
            <button onclick="call('POST', '/api/hooks/disable')">Disable hooks</button>
            <button onclick="call('POST', '/api/rearm')">Reconnect and re-arm</button>
            <button class="danger" onclick="call('POST', '/api/restore')">Retry restore</button>
        </div>
    </div>

    <div class="card">
        <h2>Input</h2>
        <div class="row">
            <input id="x" type="number" placeholder="x" value="480">
            <input id="y" type="number" placeholder="y" value="300">
            <select id="button"><option>left</option><option>right</option><option>middle</option></select>
            <button onclick="call('POST', '/api/click', {x: num('x'), y: num('y'), button: val('button')})">Click</button>
        </div>
        <div class="row">
            <input id="text" class="wide" placeholder="text">
            <button onclick="call('POST', '/api/type', {text: val('text')})">Type</button>
        </div>
        <div class="row">
            <button onclick="arrow('up')">Up</button>
            <button onclick="arrow('down')">Down</button>
            <button onclick="arrow('left')">Left</button>
            <button onclick="arrow('right')">Right</button>
        </div>
    </div>

    <div class="card">
        <h2>Commands</h2>
        <pre id="log"></pre>
    </div>
</div>
<script>
const token = new URLSearchParams(location.search).get('token') || '';
const headers = token ? {'Authorization': 'Bearer ' + token} : {};

function val(id) { return document.getElementById(id).value; }
function num(id) { return parseInt(val(id), 10); }
function arrow(d) { return call('POST', '/api/arrow', {direction: d}); }

function log(line, cls) {
    const el = document.getElementById('log');
    const div = document.createElement('div');
    div.textContent = line;
    if (cls) div.className = cls;
    el.prepend(div);
    while (el.childNodes.length > 200) el.removeChild(el.lastChild);
}

async function call(method, path, body) {
    const opts = {method, headers: {...headers, 'Content-Type': 'application/json'}};
    if (body !== undefined) opts.body = JSON.stringify(body);
    const resp = await fetch(path, opts);
    const out = await resp.json();
    if (!out.ok) log(path + ': ' + out.error, 'bad');
    refresh();
    return out;
}

async function refresh() {
    const resp = await fetch('/api/status', {headers});
    const out = await resp.json();
    document.getElementById('status').textContent = out.ok ? JSON.stringify(out.result, null, 2) : out.error;
}

function watch() {
    const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
    const ws = new WebSocket(proto + location.host + '/ws' + (token ? '?token=' + encodeURIComponent(token) : ''));
    ws.onmessage = (m) => {
        const ev = JSON.parse(m.data);
        if (ev.type === 'command') log(new Date(ev.time).toLocaleTimeString() + ' ' + ev.command, 'ok');
    };
    ws.onclose = () => setTimeout(watch, 2000);
}

refresh();
watch();
</script>
</body>
</html>
`
