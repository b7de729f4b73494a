package rankboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/rankboard/dashboard"
	"github.com/jpalmerr/rankboard/internal/board"
	"github.com/jpalmerr/rankboard/internal/feed"
	"github.com/jpalmerr/rankboard/internal/format"
	"github.com/jpalmerr/rankboard/internal/metrics"
	"github.com/jpalmerr/rankboard/internal/server"
	"github.com/jpalmerr/rankboard/internal/telemetry"
)

const (
	defaultPollingInterval = 15 * time.Second
	defaultPort            = 8080
	defaultRankingSeries   = "access"
	telemetryFlushTimeout  = 5 * time.Second
)

var defaultSeriesKeys = []string{"access", "search", "transaction", "interaction"}

// Entity mutation errors. Test with [errors.Is].
var (
	// ErrReadOnly is returned by [Rankboard.Add], [Rankboard.Remove] and
	// [Rankboard.Set] when the producer does not accept commands.
	ErrReadOnly = errors.New("producer does not accept commands")

	ErrDuplicate    = feed.ErrDuplicate
	ErrNotFound     = feed.ErrNotFound
	ErrInvalidValue = feed.ErrInvalidValue
)

// Rankboard keeps a ranked set of entities in step with a stream of
// snapshots and serves it as a live dashboard.
//
// Snapshots come from one producer: an HTTP [Source], the built-in
// simulator, or calls to [Rankboard.Apply]. Every snapshot replaces the
// previous one; entities missing from it are removed. It is created using
// [New] with functional options and started with [Rankboard.Start].
//
// The typical lifecycle is:
//
//	rb, err := rankboard.New(rankboard.WithSimulator())
//	if err != nil {
//	    slog.Error("failed to create rankboard", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	rb.Start(ctx) // blocks until context cancelled
type Rankboard struct {
	title           string
	seriesKeys      []string
	rankingSeries   string
	port            int
	topN            int
	source          *Source
	pollingInterval time.Duration
	otlpEndpoint    string
	logger          *slog.Logger
	updateCallbacks []func(Update)

	metrics   *metrics.Metrics
	board     *board.Board
	simulator *feed.Simulator
	server    *server.Server

	// cbMu serializes callback invocation across the feed loop and Apply.
	cbMu sync.Mutex

	startMu sync.Mutex
	started bool
}

// New creates a [Rankboard] with the given options.
//
// Defaults:
//   - Series keys: access, search, transaction, interaction
//   - Ranking series: access
//   - Port: 8080
//   - Polling interval: 15 seconds
//   - Unit: billions
//
// Returns an error if any option is invalid, if the ranking series is not
// a series key, or if both a [Source] and the simulator are configured.
// Without either, snapshots arrive only through [Rankboard.Apply] and
// POST /api/snapshot.
func New(opts ...Option) (*Rankboard, error) {
	cfg := &rbConfig{
		seriesKeys:      slices.Clone(defaultSeriesKeys),
		rankingSeries:   defaultRankingSeries,
		port:            defaultPort,
		pollingInterval: defaultPollingInterval,
		unit:            UnitBillions,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if !slices.Contains(cfg.seriesKeys, cfg.rankingSeries) {
		return nil, fmt.Errorf("ranking series %q is not one of the series keys %v", cfg.rankingSeries, cfg.seriesKeys)
	}
	if cfg.source != nil && cfg.simulator {
		return nil, errors.New("configure either a source or the simulator, not both")
	}
	if cfg.simulator {
		if _, ok := feed.Derived[cfg.rankingSeries]; !ok {
			return nil, fmt.Errorf("simulator cannot produce ranking series %q", cfg.rankingSeries)
		}
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	m := metrics.New()
	b, err := board.New(cfg.seriesKeys, cfg.rankingSeries,
		board.WithLogger(logger),
		board.WithMetrics(m),
	)
	if err != nil {
		return nil, err
	}

	rb := &Rankboard{
		title:           cfg.title,
		seriesKeys:      cfg.seriesKeys,
		rankingSeries:   cfg.rankingSeries,
		port:            cfg.port,
		topN:            cfg.topN,
		source:          cfg.source,
		pollingInterval: cfg.pollingInterval,
		otlpEndpoint:    cfg.otlpEndpoint,
		logger:          logger,
		updateCallbacks: cfg.updateCallbacks,
		metrics:         m,
		board:           b,
	}

	srvCfg := server.Config{
		Port:    cfg.port,
		Assets:  dashboard.Assets,
		Title:   cfg.title,
		TopN:    cfg.topN,
		Format:  format.Unit(cfg.unit).Func(),
		Metrics: m,
		Logger:  logger,
	}

	if cfg.simulator {
		seed := cfg.seed
		if len(seed) == 0 {
			seed = DefaultSeed()
		}
		simOpts := []feed.SimulatorOption{
			feed.WithSeriesKeys(cfg.seriesKeys),
			feed.WithSimulatorLogger(logger),
		}
		if cfg.tickInterval > 0 {
			simOpts = append(simOpts, feed.WithTick(cfg.tickInterval))
		}
		if cfg.historyLimit > 0 {
			simOpts = append(simOpts, feed.WithWindow(cfg.historyLimit))
		}
		sim, err := feed.NewSimulator(seed, simOpts...)
		if err != nil {
			return nil, fmt.Errorf("invalid simulator seed: %w", err)
		}
		rb.simulator = sim
		// assigned only when non-nil so the interface stays nil otherwise
		srvCfg.Commander = sim
	}

	rb.server = server.NewServer(&callbackBoard{Board: b, rb: rb}, srvCfg)
	return rb, nil
}

// Start begins consuming snapshots and serving the dashboard.
//
// Start is a blocking call that runs until the provided context is
// cancelled. During execution:
//
//   - The producer, if any, emits its first snapshot immediately
//   - The HTTP server listens on the configured port
//   - Update callbacks run after every applied snapshot
//   - Spans are exported when an OTLP endpoint is configured
//
// Returns nil on graceful shutdown. Returns an error if the HTTP server or
// tracing fails to start, or if Start was already called.
func (rb *Rankboard) Start(ctx context.Context) error {
	rb.startMu.Lock()
	if rb.started {
		rb.startMu.Unlock()
		return errors.New("rankboard already started")
	}
	rb.started = true
	rb.startMu.Unlock()

	rb.logger.Info("rankboard starting",
		"series_keys", rb.seriesKeys,
		"ranking_series", rb.rankingSeries,
		"producer", rb.producerName(),
	)
	rb.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", rb.port))

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.ServiceName, rb.otlpEndpoint)
	if err != nil {
		return fmt.Errorf("failed to start tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			rb.logger.Warn("tracing shutdown error", "error", err)
		}
	}()

	f := rb.newFeed()

	// track the batch consumer goroutine to ensure clean shutdown
	var wg sync.WaitGroup
	if f != nil {
		f.Start(ctx)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range f.Batches() {
				// the feed closes its channel on stop, so batches drain
				// even after ctx is cancelled
				if _, err := rb.apply(context.WithoutCancel(ctx), batch.Records); err != nil {
					rb.logger.Warn("snapshot rejected",
						"source", batch.Source,
						"entity_count", len(batch.Records),
						"error", err,
					)
					continue
				}
				rb.logger.Debug("snapshot applied", "source", batch.Source, "entity_count", len(batch.Records))
			}
		}()
	}

	// cleanup stops the feed and waits for queued batches to be applied
	cleanup := func() {
		if f != nil {
			f.Stop()
		}
		wg.Wait()
	}

	if err := rb.server.Start(ctx); err != nil {
		cleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	<-ctx.Done()
	cleanup()
	rb.logger.Info("rankboard stopped")
	return nil
}

// newFeed returns the configured producer, or nil when snapshots arrive only
// through Apply.
func (rb *Rankboard) newFeed() feed.Feed {
	switch {
	case rb.simulator != nil:
		return rb.simulator
	case rb.source != nil:
		interval := rb.source.interval
		if interval == 0 {
			interval = rb.pollingInterval
		}
		var decoder feed.Decoder
		if rb.source.decoder != nil {
			decoder = feed.Decoder(rb.source.decoder)
		} else {
			decoder = feed.Decoder(DefaultDecoder)
		}
		return feed.NewPoller(feed.PollerConfig{
			Name:     rb.source.name,
			URL:      rb.source.url,
			Method:   rb.source.method,
			Headers:  copyMap(rb.source.headers),
			Timeout:  rb.source.timeout,
			Interval: interval,
			Decoder:  decoder,
		}, rb.logger, rb.metrics)
	default:
		return nil
	}
}

func (rb *Rankboard) producerName() string {
	switch {
	case rb.simulator != nil:
		return "simulator"
	case rb.source != nil:
		return "source:" + rb.source.name
	default:
		return "api"
	}
}

// Apply ingests one complete snapshot and returns the resulting [Update].
//
// Entities absent from batch are removed. A batch that fails validation
// leaves the board untouched and returns an error wrapping one of
// [ErrMissingName], [ErrLengthMismatch], [ErrLabelMismatch],
// [ErrUnknownSeries] or [ErrNonFinite]. Apply may be called before or
// during Start.
//
// When a producer is running, its next snapshot overrides whatever Apply
// ingested.
func (rb *Rankboard) Apply(ctx context.Context, batch []Record) (Update, error) {
	frame, err := rb.apply(ctx, batch)
	if err != nil {
		return Update{}, err
	}
	return frameToUpdate(frame), nil
}

// apply runs one batch through the board and the update callbacks.
func (rb *Rankboard) apply(ctx context.Context, batch []Record) (board.Frame, error) {
	frame, err := rb.board.Apply(ctx, batch)
	if err != nil {
		return board.Frame{}, err
	}
	rb.notify(frame)
	return frame, nil
}

// notify invokes every update callback with its own copy of the update.
func (rb *Rankboard) notify(frame board.Frame) {
	if len(rb.updateCallbacks) == 0 {
		return
	}
	rb.cbMu.Lock()
	defer rb.cbMu.Unlock()
	for _, cb := range rb.updateCallbacks {
		invokeCallbackSafe(cb, frameToUpdate(frame), rb.logger)
	}
}

// Leaderboard returns every entity ranked by key, best first. An empty key
// means the ranking series.
//
// Returns an error wrapping [ErrUnknownSeries] for a key outside the series
// keys.
func (rb *Rankboard) Leaderboard(key string) ([]RankedNode, error) {
	res, err := rb.board.Current(key)
	if err != nil {
		return nil, err
	}
	return toRanking(res.Ordered), nil
}

// Entities returns a copy of every entity on the board, in insertion order.
func (rb *Rankboard) Entities() []Record {
	entities := rb.board.Entities()
	out := make([]Record, len(entities))
	for i, e := range entities {
		out[i] = Record{Name: e.Name, Logo: e.Logo, Series: e.Series, Labels: e.Labels}
	}
	return out
}

// Add inserts a new entity through the simulator.
//
// Returns [ErrReadOnly] unless the board runs the simulator, [ErrDuplicate]
// when the name exists (compared case-insensitively) and [ErrInvalidValue]
// when rec has no usable base sample.
func (rb *Rankboard) Add(ctx context.Context, rec Record) error {
	if rb.simulator == nil {
		return ErrReadOnly
	}
	return rb.simulator.Add(ctx, rec)
}

// Remove drops the entity with exactly this name through the simulator.
func (rb *Rankboard) Remove(ctx context.Context, name string) error {
	if rb.simulator == nil {
		return ErrReadOnly
	}
	return rb.simulator.Remove(ctx, name)
}

// Set appends value as the newest base sample of the named entity.
func (rb *Rankboard) Set(ctx context.Context, name string, value float64) error {
	if rb.simulator == nil {
		return ErrReadOnly
	}
	return rb.simulator.Set(ctx, name, value)
}

// Handler returns the dashboard, API and stream routes without listening,
// for mounting inside an existing server.
func (rb *Rankboard) Handler() http.Handler {
	return rb.server.Handler()
}

// Port returns the configured HTTP port for the dashboard server.
func (rb *Rankboard) Port() int {
	return rb.port
}

// SeriesKeys returns a copy of the configured series keys.
func (rb *Rankboard) SeriesKeys() []string {
	return slices.Clone(rb.seriesKeys)
}

// RankingSeries returns the series the leaderboard ranks by.
func (rb *Rankboard) RankingSeries() string {
	return rb.rankingSeries
}

// Source returns the configured [Source] and whether one is set.
func (rb *Rankboard) Source() (Source, bool) {
	if rb.source == nil {
		return Source{}, false
	}
	return *rb.source, true
}

// PollingInterval returns the default interval between source fetches.
func (rb *Rankboard) PollingInterval() time.Duration {
	return rb.pollingInterval
}

// callbackBoard routes snapshots posted to the HTTP API through the
// update callbacks.
type callbackBoard struct {
	*board.Board
	rb *Rankboard
}

func (c *callbackBoard) Apply(ctx context.Context, batch []Record) (board.Frame, error) {
	return c.rb.apply(ctx, batch)
}

// invokeCallbackSafe calls an update callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(Update), u Update, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("update callback panicked",
				"correlation_id", uuid.NewString(),
				"panic", r,
				"seq", u.Seq,
				"stack", string(debug.Stack()),
			)
		}
	}()
	cb(u)
}
