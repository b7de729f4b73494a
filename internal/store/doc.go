// Package store holds the authoritative in-memory state of every ranked entity.
//
// This package is internal to rankboard. It maps an entity name to its current
// series, labels, logo and the opaque render handle a renderer attached to it.
//
// The main components are:
//
//   - [Store]: insertion-ordered mapping from name to [Entity]
//   - [Entity]: the state of one entity
//
// Store performs no locking and no I/O. Callers serialize access; inside
// rankboard that is the job of the board package, which owns exactly one Store.
//
// Users of the rankboard library should not need to interact with this
// package directly.
package store
