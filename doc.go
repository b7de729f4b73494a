// Package rankboard provides an embeddable, live-updating leaderboard of
// named entities ranked by their latest sample of a chosen series.
//
// Snapshots of the full entity set arrive from a single producer. Each
// snapshot is reconciled against the board: entities present in it are
// updated or added, entities missing from it are removed, and the board is
// re-ranked. Clients watch the result through an embedded web dashboard,
// Server-Sent Events, a WebSocket stream or the terminal viewer.
//
// # Quick Start
//
// Run the built-in simulator and serve the dashboard:
//
//	rb, _ := rankboard.New(rankboard.WithSimulator())
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	rb.Start(ctx) // blocks until the context is cancelled
//
// # Producers
//
// A board is fed by exactly one of:
//
//   - [WithSource]: an HTTP endpoint polled at an interval, its body turned
//     into records by a [Decoder]
//   - [WithSimulator]: a local random walk over seed entities, which also
//     accepts add, remove and set commands
//   - [Rankboard.Apply] or POST /api/snapshot, when neither is configured
//
// # Records
//
// A [Record] is one entity in a snapshot. Every series must have the same
// length, and labels, when present, must match it:
//
//	[
//	  {"name": "Google", "logo": "https://logo.clearbit.com/google.com",
//	   "access": [3.2, 3.3], "search": [16.1, 16.2], "labels": ["", "Now"]}
//	]
//
// A batch with any invalid record is rejected as a whole and the board keeps
// its previous state.
//
// # Decoders
//
//   - [JSONArrayDecoder]: the body is a bare array of records
//   - [JSONFieldDecoder]: the array sits at a dot-separated path
//   - [FirstMatch]: tries decoders in order
//   - [DefaultDecoder]: bare array, then "data", then "entities"
//
// # Architecture
//
// The internal packages are:
//
//   - internal/store: insertion-ordered entity storage
//   - internal/reconcile: batch validation and store reconciliation
//   - internal/rank: ordering by latest value
//   - internal/board: serialized apply, frames and pub/sub
//   - internal/feed: HTTP poller and simulator producers
//   - internal/server: dashboard, JSON API, SSE and WebSocket
//   - internal/metrics, internal/telemetry: Prometheus and OpenTelemetry
//   - internal/watch: terminal viewer used by "rankboard watch"
//   - dashboard: embedded web UI assets
package rankboard
