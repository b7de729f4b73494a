// Package server provides the HTTP surface of rankboard.
//
// It serves the embedded dashboard, a JSON API over the board (leaderboard,
// entities, snapshot ingestion and producer commands), a Server-Sent Events
// stream of frames, a WebSocket stream used by the terminal client, and the
// Prometheus metrics of the process.
//
// The server shuts down gracefully on context cancellation, with a 5-second
// timeout for in-flight requests.
package server
