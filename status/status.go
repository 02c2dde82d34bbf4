// Package status renders the registry for humans: an auto-refreshing HTML
// table of connected participants and a small JSON stats document.
package status

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"geopresence/domain"
)

type Source interface {
	Participants() []domain.Participant
	Stats() (connections, participants int)
}

var page = template.Must(template.New("status").Funcs(template.FuncMap{
	"coord": formatCoord,
	"when":  func(t time.Time) string { return t.Format("2006-01-02 15:04:05") },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<meta http-equiv="refresh" content="{{.Refresh}}">
<title>Connected users</title>
<style>
body { font-family: Arial, sans-serif; margin: 20px; background-color: #f4f4f4; color: #333; }
h1 { border-bottom: 2px solid #333; padding-bottom: 10px; }
table { width: 100%; border-collapse: collapse; margin-top: 20px; }
th, td { border: 1px solid #ddd; padding: 12px; text-align: left; }
th { background-color: #007bff; color: white; }
tr:nth-child(even) { background-color: #f9f9f9; }
.no-users { text-align: center; font-style: italic; color: #777; padding: 20px; }
</style>
</head>
<body>
<h1>Connected WebSocket users</h1>
{{if .Participants}}
<table>
<thead><tr><th>UUID</th><th>User name</th><th>Latitude</th><th>Longitude</th><th>Last seen</th></tr></thead>
<tbody>
{{range .Participants}}<tr><td>{{.ID}}</td><td>{{.DisplayName}}</td><td>{{coord .Lat}}</td><td>{{coord .Lng}}</td><td>{{when .LastSeen}}</td></tr>
{{end}}</tbody>
</table>
{{else}}
<p class="no-users">No users connected.</p>
{{end}}
<p>This page refreshes every {{.Refresh}} seconds.</p>
</body>
</html>
`))

const refreshSeconds = 5

// PageHandler serves the status page.
func PageHandler(src Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		participants := src.Participants()
		sort.Slice(participants, func(i, j int) bool {
			return participants[i].LastSeen.After(participants[j].LastSeen)
		})

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		err := page.Execute(w, struct {
			Refresh      int
			Participants []domain.Participant
		}{refreshSeconds, participants})
		if err != nil {
			slog.Warn("status page render error", "error", err)
		}
	}
}

// StatsHandler serves connection and participant counts as JSON.
func StatsHandler(src Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connections, participants := src.Stats()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"connections": connections, "participants": participants})
	}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
