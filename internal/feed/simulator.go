package feed

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jpalmerr/rankboard/internal/reconcile"
)

// BaseSeries is the series the simulator walks; every other series is
// derived from it.
const BaseSeries = "access"

// Derived maps each simulated series key to its factor of the base sample.
var Derived = map[string]float64{
	"access":      1,
	"search":      2,
	"transaction": 0.1,
	"interaction": 5,
}

// backfill is the history given to an entity added at runtime, as factors
// of its base value.
var backfill = []float64{0.9, 0.95, 0.98, 1, 1}

const (
	defaultTick   = 2 * time.Second
	defaultStep   = 0.003
	defaultWindow = 20
	nowLabel      = "Now"
)

// SimulatorOption configures a [Simulator].
type SimulatorOption func(*Simulator)

// WithTick sets the time between random-walk steps. Default 2s.
func WithTick(d time.Duration) SimulatorOption {
	return func(s *Simulator) {
		if d > 0 {
			s.tick = d
		}
	}
}

// WithStep sets the maximum absolute change per step. Default 0.003.
func WithStep(step float64) SimulatorOption {
	return func(s *Simulator) {
		if step >= 0 {
			s.step = step
		}
	}
}

// WithWindow caps the number of samples kept per series. Default 20.
func WithWindow(n int) SimulatorOption {
	return func(s *Simulator) {
		if n > 0 {
			s.window = n
		}
	}
}

// WithSeriesKeys restricts emitted series to keys. By default every key in
// [Derived] is emitted.
func WithSeriesKeys(keys []string) SimulatorOption {
	return func(s *Simulator) {
		if len(keys) > 0 {
			s.keys = slices.Clone(keys)
		}
	}
}

// WithRand sets the random source, for reproducible runs.
func WithRand(r *rand.Rand) SimulatorOption {
	return func(s *Simulator) {
		if r != nil {
			s.rng = r
		}
	}
}

// WithSimulatorLogger sets the logger. Defaults to slog.Default().
func WithSimulatorLogger(l *slog.Logger) SimulatorOption {
	return func(s *Simulator) {
		if l != nil {
			s.logger = l
		}
	}
}

type simEntity struct {
	name   string
	logo   string
	series map[string][]float64
}

// Simulator generates snapshot batches from a bounded random walk.
//
// On every tick each entity's base series moves by a uniform step in
// [-step, +step], floored at zero, and every derived series receives the
// scaled value. Series are trimmed to the window. A complete batch is
// emitted after every tick and every command. Start, Stop and the
// [Commander] methods are safe for concurrent use.
type Simulator struct {
	tick   time.Duration
	step   float64
	window int
	keys   []string
	logger *slog.Logger

	mu       sync.Mutex
	rng      *rand.Rand
	entities []*simEntity
	ctx      context.Context

	batches   chan Batch
	lifeMu    sync.Mutex
	started   bool
	stopped   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ Commander = (*Simulator)(nil)

// NewSimulator creates a [Simulator] seeded with records.
//
// Each seed must carry a non-empty base series; other series present on the
// seed are kept as history and extended on every tick.
func NewSimulator(seed []reconcile.Record, opts ...SimulatorOption) (*Simulator, error) {
	s := &Simulator{
		tick:    defaultTick,
		step:    defaultStep,
		window:  defaultWindow,
		logger:  slog.Default(),
		rng:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
		batches: make(chan Batch, 16),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.keys == nil {
		s.keys = []string{"access", "search", "transaction", "interaction"}
	}

	seen := make(map[string]struct{}, len(seed))
	for i, rec := range seed {
		if rec.Name == "" {
			return nil, fmt.Errorf("seed[%d]: %w", i, reconcile.ErrMissingName)
		}
		key := strings.ToLower(rec.Name)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("seed[%d] (%s): %w", i, rec.Name, ErrDuplicate)
		}
		seen[key] = struct{}{}

		if len(rec.Series[BaseSeries]) == 0 {
			return nil, fmt.Errorf("seed[%d] (%s): %s series is empty: %w", i, rec.Name, BaseSeries, ErrInvalidValue)
		}
		for key, values := range rec.Series {
			for _, v := range values {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return nil, fmt.Errorf("seed[%d] (%s): %s has non-finite sample %v: %w", i, rec.Name, key, v, ErrInvalidValue)
				}
			}
		}

		e := &simEntity{name: rec.Name, logo: rec.Logo, series: make(map[string][]float64, len(Derived))}
		n := len(rec.Series[BaseSeries])
		for key, factor := range Derived {
			if v, ok := rec.Series[key]; ok && len(v) == n {
				e.series[key] = slices.Clone(v)
				continue
			}
			// derive missing or misaligned history from the base series
			d := make([]float64, n)
			for j, b := range rec.Series[BaseSeries] {
				d[j] = b * factor
			}
			e.series[key] = d
		}
		s.trim(e)
		s.entities = append(s.entities, e)
	}

	return s, nil
}

// Batches returns the channel of generated snapshots. It is closed when the
// simulator stops.
func (s *Simulator) Batches() <-chan Batch {
	return s.batches
}

// Start emits the seed snapshot and begins ticking in the background.
// Subsequent calls, or a call after Stop, are no-ops.
func (s *Simulator) Start(ctx context.Context) {
	s.lifeMu.Lock()
	if s.started || s.stopped {
		s.lifeMu.Unlock()
		return
	}
	s.started = true
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	s.lifeMu.Unlock()

	s.mu.Lock()
	s.ctx = runCtx
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.closeOnce.Do(func() { close(s.batches) })

		s.emit(runCtx)

		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.Step()
				s.emit(runCtx)
			}
		}
	}()
}

// Stop halts the simulator and closes the batch channel. Idempotent, and
// safe before Start.
func (s *Simulator) Stop() {
	s.lifeMu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.lifeMu.Unlock()

	s.wg.Wait()

	// commands emit under mu; taking it here orders them before close
	s.mu.Lock()
	s.closeOnce.Do(func() { close(s.batches) })
	s.mu.Unlock()
}

// Step advances every entity by one random-walk sample.
func (s *Simulator) Step() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entities {
		base := e.series[BaseSeries]
		current := base[len(base)-1]
		next := current + (s.rng.Float64()*2-1)*s.step
		if next < 0 {
			next = 0
		}
		s.appendSample(e, next)
	}
}

// Snapshot returns the batch the simulator would emit now.
func (s *Simulator) Snapshot() []reconcile.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Add inserts a new entity. Its history is backfilled from the first
// sample of rec's base series. Names are compared case-insensitively.
func (s *Simulator) Add(ctx context.Context, rec reconcile.Record) error {
	if strings.TrimSpace(rec.Name) == "" {
		return reconcile.ErrMissingName
	}
	base := rec.Series[BaseSeries]
	if len(base) == 0 || !validSample(base[0]) {
		return fmt.Errorf("%s: %s must start with a non-negative value: %w", rec.Name, BaseSeries, ErrInvalidValue)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entities {
		if strings.EqualFold(e.name, rec.Name) {
			return fmt.Errorf("%s: %w", rec.Name, ErrDuplicate)
		}
	}

	e := &simEntity{name: rec.Name, logo: rec.Logo, series: make(map[string][]float64, len(Derived))}
	for key, factor := range Derived {
		values := make([]float64, len(backfill))
		for i, f := range backfill {
			values[i] = base[0] * f * factor
		}
		e.series[key] = values
	}
	s.trim(e)
	s.entities = append(s.entities, e)

	s.logger.Info("entity added", "name", rec.Name)
	s.emitLocked(ctx)
	return nil
}

// validSample reports whether v can seed or override a walk.
func validSample(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0)
}

// Remove drops the entity with exactly this name.
func (s *Simulator) Remove(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.entities, func(e *simEntity) bool { return e.name == name })
	if idx < 0 {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	s.entities = slices.Delete(s.entities, idx, idx+1)

	s.logger.Info("entity removed", "name", name)
	s.emitLocked(ctx)
	return nil
}

// Set appends value as the named entity's newest base sample, overriding
// the random walk for this step.
func (s *Simulator) Set(ctx context.Context, name string, value float64) error {
	if !validSample(value) {
		return fmt.Errorf("%s: value must be finite and >= 0: %w", name, ErrInvalidValue)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.entities, func(e *simEntity) bool { return e.name == name })
	if idx < 0 {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	s.appendSample(s.entities[idx], value)

	s.emitLocked(ctx)
	return nil
}

func (s *Simulator) appendSample(e *simEntity, base float64) {
	for key, factor := range Derived {
		e.series[key] = append(e.series[key], base*factor)
	}
	s.trim(e)
}

func (s *Simulator) trim(e *simEntity) {
	for key, v := range e.series {
		if len(v) > s.window {
			e.series[key] = slices.Clone(v[len(v)-s.window:])
		}
	}
}

func (s *Simulator) snapshotLocked() []reconcile.Record {
	records := make([]reconcile.Record, 0, len(s.entities))
	for _, e := range s.entities {
		n := len(e.series[BaseSeries])
		rec := reconcile.Record{
			Name:   e.name,
			Logo:   e.logo,
			Series: make(map[string][]float64, len(s.keys)),
			Labels: make([]string, n),
		}
		if n > 0 {
			rec.Labels[n-1] = nowLabel
		}
		for _, key := range s.keys {
			if v, ok := e.series[key]; ok {
				rec.Series[key] = slices.Clone(v)
			}
		}
		records = append(records, rec)
	}
	return records
}

func (s *Simulator) emit(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emitLocked(ctx)
}

// emitLocked sends the current snapshot. Commands issued before Start only
// mutate state; the snapshot goes out with the first emission.
func (s *Simulator) emitLocked(ctx context.Context) {
	if s.ctx == nil || s.ctx.Err() != nil {
		return
	}
	batch := Batch{Source: "simulator", Records: s.snapshotLocked(), At: time.Now()}
	select {
	case s.batches <- batch:
	case <-ctx.Done():
	case <-s.ctx.Done():
	}
}
