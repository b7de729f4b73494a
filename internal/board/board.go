package board

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jpalmerr/rankboard/internal/metrics"
	"github.com/jpalmerr/rankboard/internal/rank"
	"github.com/jpalmerr/rankboard/internal/reconcile"
	"github.com/jpalmerr/rankboard/internal/store"
)

// subscriberBuffer is the capacity of each subscriber channel.
const subscriberBuffer = 100

var tracer = otel.Tracer("github.com/jpalmerr/rankboard/internal/board")

// ErrUnknownSeries is returned by [Board.Current] for a key outside the
// configured set.
var ErrUnknownSeries = reconcile.ErrUnknownSeries

// Frame is the result of one applied batch.
//
// Released holds the render handles of the removed entities. It is only set
// on the Frame returned by [Board.Apply]; published copies never carry it.
type Frame struct {
	Seq      uint64         `json:"seq"`
	Series   string         `json:"series"`
	Changed  []string       `json:"changed"`
	Added    []string       `json:"added"`
	Removed  []string       `json:"removed"`
	Top      *rank.Node     `json:"top"`
	Ordered  []rank.Node    `json:"ordered"`
	At       time.Time      `json:"at"`
	Released map[string]any `json:"-"`
}

// Board owns the entity store and serializes every mutation of it.
//
// Apply runs reconcile then rank under one lock, so no reader ever observes
// a store that has been reconciled but not yet ranked. Readers take a read
// lock and receive deep copies.
type Board struct {
	mu         sync.RWMutex
	st         *store.Store
	rec        *reconcile.Reconciler
	keys       []string
	rankingKey string
	seq        uint64
	latest     Frame

	subscribers map[chan Frame]struct{}
	subMu       sync.RWMutex

	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a [Board].
type Option func(*Board)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Board) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithMetrics attaches Prometheus collectors. Without it nothing is recorded.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Board) {
		b.metrics = m
	}
}

// New creates a Board ranking by rankingKey.
//
// keys is the configured set of series keys; an empty set accepts any key.
// rankingKey must be one of keys when keys is non-empty.
func New(keys []string, rankingKey string, opts ...Option) (*Board, error) {
	if rankingKey == "" {
		return nil, fmt.Errorf("ranking series is required")
	}
	if len(keys) > 0 && !slices.Contains(keys, rankingKey) {
		return nil, fmt.Errorf("ranking series %q is not one of %v: %w", rankingKey, keys, ErrUnknownSeries)
	}

	b := &Board{
		st:          store.New(),
		rec:         reconcile.New(keys...),
		keys:        slices.Clone(keys),
		rankingKey:  rankingKey,
		subscribers: make(map[chan Frame]struct{}),
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.latest = Frame{Series: rankingKey, Ordered: []rank.Node{}, At: b.now()}
	return b, nil
}

// RankingKey returns the series the board ranks by.
func (b *Board) RankingKey() string {
	return b.rankingKey
}

// Keys returns the configured series keys.
func (b *Board) Keys() []string {
	return slices.Clone(b.keys)
}

// Apply reconciles batch into the store, re-ranks, and publishes the
// resulting Frame to every subscriber.
//
// A batch that fails validation leaves the store untouched; the error wraps
// one of the reconcile sentinel errors.
func (b *Board) Apply(ctx context.Context, batch []reconcile.Record) (Frame, error) {
	_, span := tracer.Start(ctx, "board.Apply",
		trace.WithAttributes(attribute.Int("rankboard.batch_size", len(batch))))
	defer span.End()

	start := time.Now()

	b.mu.Lock()
	delta, err := b.rec.Reconcile(b.st, batch)
	if err != nil {
		b.mu.Unlock()
		b.metrics.ObserveRejected()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		b.logger.Warn("snapshot rejected", "batch_size", len(batch), "error", err)
		return Frame{}, err
	}

	res := rank.Rank(b.st, b.rankingKey)
	b.seq++
	frame := Frame{
		Seq:     b.seq,
		Series:  b.rankingKey,
		Changed: delta.Changed,
		Added:   delta.Added,
		Removed: delta.Removed,
		Top:     res.Top,
		Ordered: res.Ordered,
		At:      b.now(),
	}
	b.latest = frame
	entityCount := b.st.Len()
	b.mu.Unlock()

	b.metrics.ObserveCycle(entityCount, len(delta.Added), len(delta.Removed), time.Since(start))
	span.SetAttributes(
		attribute.Int64("rankboard.seq", int64(frame.Seq)),
		attribute.Int("rankboard.entity_count", entityCount),
		attribute.Int("rankboard.removed", len(delta.Removed)),
	)

	if delta.Empty() {
		b.logger.Debug("empty snapshot applied", "seq", frame.Seq)
	} else if len(delta.Added) > 0 || len(delta.Removed) > 0 {
		b.logger.Debug("entities reconciled",
			"entity_count", entityCount,
			"added", delta.Added,
			"removed", delta.Removed,
		)
	}

	b.notifySubscribers(frame)

	frame.Released = delta.Released
	return frame, nil
}

// Latest returns the most recently published Frame. Before the first Apply
// it is an empty ranking with Seq 0.
func (b *Board) Latest() Frame {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.latest
}

// Current ranks the store by key on demand. An empty key means the
// board's ranking series.
func (b *Board) Current(key string) (rank.Result, error) {
	if key == "" {
		key = b.rankingKey
	}
	if len(b.keys) > 0 && !slices.Contains(b.keys, key) {
		return rank.Result{}, fmt.Errorf("series %q: %w", key, ErrUnknownSeries)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	return rank.Rank(b.st, key), nil
}

// Entities returns deep copies of every entity in insertion order.
func (b *Board) Entities() []store.Entity {
	b.mu.RLock()
	defer b.mu.RUnlock()

	all := b.st.All()
	out := make([]store.Entity, 0, len(all))
	for _, e := range all {
		out = append(out, e.Clone())
	}
	return out
}

// Entity returns a deep copy of the named entity.
func (b *Board) Entity(name string) (store.Entity, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.st.Get(name)
	if !ok {
		return store.Entity{}, false
	}
	return e.Clone(), true
}

// Len returns the number of entities held.
func (b *Board) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.st.Len()
}

// SetHandle attaches a render handle to the named entity. The handle is
// returned in Frame.Released when the entity is removed.
func (b *Board) SetHandle(name string, handle any) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.st.SetHandle(name, handle)
}

// Subscribe creates a new subscription and returns a channel of Frames.
//
// The channel has a buffer of 100 frames. If the buffer fills, new frames
// are dropped for this subscriber. Callers must call [Board.Unsubscribe]
// when done.
func (b *Board) Subscribe() <-chan Frame {
	ch := make(chan Frame, subscriberBuffer)

	b.subMu.Lock()
	b.subscribers[ch] = struct{}{}
	n := len(b.subscribers)
	b.subMu.Unlock()

	b.metrics.SetSubscribers(n)
	return ch
}

// Unsubscribe removes a subscription and closes its channel. Safe to call
// multiple times or with an unknown channel.
func (b *Board) Unsubscribe(ch <-chan Frame) {
	b.subMu.Lock()
	for subCh := range b.subscribers {
		if subCh == ch {
			delete(b.subscribers, subCh)
			close(subCh)
			break
		}
	}
	n := len(b.subscribers)
	b.subMu.Unlock()

	b.metrics.SetSubscribers(n)
}

// notifySubscribers sends frame to every subscriber without blocking.
func (b *Board) notifySubscribers(frame Frame) {
	b.subMu.RLock()
	defer b.subMu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- frame:
		default:
			// subscriber is slow, drop the frame
			b.metrics.ObserveDropped()
		}
	}
}
