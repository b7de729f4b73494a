// Package feed produces snapshot batches for the board.
//
// A [Feed] emits complete listings of the current entities on a channel.
// Two feeds exist: [Poller] fetches snapshots from an HTTP source and
// [Simulator] generates them locally from a seeded random walk. The
// simulator also implements [Commander], so entities can be added, removed
// and overridden while it runs.
package feed

import (
	"context"
	"errors"
	"time"

	"github.com/jpalmerr/rankboard/internal/reconcile"
)

var (
	// ErrDuplicate is returned when adding an entity whose name already
	// exists, compared case-insensitively.
	ErrDuplicate = errors.New("entity already exists")

	// ErrNotFound is returned when a command names an unknown entity.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidValue is returned for negative or missing base values.
	ErrInvalidValue = errors.New("invalid value")
)

// Batch is one complete snapshot produced by a feed.
type Batch struct {
	Source  string
	Records []reconcile.Record
	At      time.Time
}

// Feed produces batches until stopped.
//
// Start is non-blocking. Batches is closed once the feed has stopped.
type Feed interface {
	Start(ctx context.Context)
	Stop()
	Batches() <-chan Batch
}

// Commander is implemented by feeds that accept mutations.
type Commander interface {
	// Add inserts a new entity seeded from rec.
	Add(ctx context.Context, rec reconcile.Record) error

	// Remove drops the entity with exactly this name.
	Remove(ctx context.Context, name string) error

	// Set appends value as the entity's newest base sample.
	Set(ctx context.Context, name string, value float64) error
}
