package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/status-led/internal/state"
	"github.com/sweeney/status-led/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"stateClass": func(s fmt.Stringer) string {
		switch s.String() {
		case "NORMAL":
			return "normal"
		case "SYNC", "RECOVERING":
			return "amber"
		}
		return "error"
	},
	"networkLabel": func(n state.Network) string {
		if n.Mode == state.NetworkError {
			return fmt.Sprintf("ERROR (port %d)", n.Port)
		}
		return n.Mode.String()
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Status LEDs</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.normal { color: green; font-weight: bold; }
.amber { color: orange; font-weight: bold; }
.error { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Status LEDs</h1>

<h2>Subsystems</h2>
<table>
<tr><th>Node</th><td id="node-state" class="{{stateClass .State.Node}}">{{.State.Node}}</td></tr>
<tr><th>Network</th><td id="network-state" class="{{stateClass .State.Network.Mode}}">{{networkLabel .State.Network}}</td></tr>
<tr><th>Storage</th><td id="storage-state" class="{{stateClass .State.Storage}}">{{.State.Storage}}</td></tr>
<tr><th>Last frame</th><td>{{if .LastFrame.IsZero}}never{{else}}{{.LastFrame.UTC.Format "2006-01-02T15:04:05Z"}}{{end}}</td></tr>
</table>

<h2>Serial link</h2>
<table>
<tr><th>Port</th><td>{{.Config.SerialPort}} @ {{.Config.BaudRate}}</td></tr>
<tr><th>Bytes</th><td>{{.Decoder.Bytes}}</td></tr>
<tr><th>Frames</th><td>{{.Decoder.Frames}}</td></tr>
<tr><th>Discarded bytes</th><td>{{.Decoder.Discarded}}</td></tr>
<tr><th>Checksum errors</th><td>{{.Decoder.ChecksumErrors}}</td></tr>
<tr><th>Undefined segments</th><td>{{.Decoder.UndefinedSegments}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Session</th><td>{{.SessionID}}</td></tr>
<tr><th>GPIO</th><td>{{.Config.GPIODriver}}</td></tr>
<tr><th>Interval</th><td>{{.Config.Interval}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.Heartbeat 0}}disabled{{else}}{{.Config.Heartbeat}}{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
