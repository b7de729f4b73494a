// Package dashboard provides the embedded web UI assets for rankboard.
//
// The page connects to /api/ws, renders the leaderboard of the selected
// series with medal badges, charts the selected entity's history and sends
// add, remove and series commands back over the socket.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard web UI.
//
//	assets/
//	  index.html    - dashboard page with inline CSS and JavaScript
//
// The server replaces {{.Title}} in index.html with the HTML-escaped title.
//
//go:embed assets/*
var Assets embed.FS
