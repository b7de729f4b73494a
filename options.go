package rankboard

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"
)

// Unit tells the dashboard how to interpret raw series values when
// formatting them for display.
type Unit string

const (
	// UnitOne displays values as-is, abbreviated with K, M and B.
	UnitOne Unit = "one"

	// UnitBillions treats values as billions, so 3.2 displays as "3.20 B".
	UnitBillions Unit = "billions"
)

// rbConfig holds mutable state during Rankboard construction.
type rbConfig struct {
	title           string
	seriesKeys      []string
	rankingSeries   string
	port            int
	topN            int
	source          *Source
	simulator       bool
	seed            []Record
	tickInterval    time.Duration
	pollingInterval time.Duration
	historyLimit    int
	unit            Unit
	otlpEndpoint    string
	logger          *slog.Logger
	updateCallbacks []func(Update)
}

// Option is a function that configures a [Rankboard] during construction.
//
// Options return an error if validation fails; [New] stops at the first
// failing option.
type Option func(*rbConfig) error

// WithSeriesKeys sets the series every record may carry.
//
// Keys must be non-empty and unique. Batches carrying any other series are
// rejected. Defaults to access, search, transaction and interaction.
//
// Example:
//
//	rb, err := rankboard.New(
//	    rankboard.WithSeriesKeys("access", "search"),
//	    rankboard.WithSimulator(),
//	)
func WithSeriesKeys(keys ...string) Option {
	return func(cfg *rbConfig) error {
		if len(keys) == 0 {
			return errors.New("at least one series key is required")
		}
		seen := make(map[string]bool, len(keys))
		for _, k := range keys {
			if k == "" {
				return errors.New("series key cannot be empty")
			}
			if IsReservedKey(k) {
				return fmt.Errorf("series key %q is a reserved record field", k)
			}
			if seen[k] {
				return fmt.Errorf("duplicate series key: %q", k)
			}
			seen[k] = true
		}
		cfg.seriesKeys = slices.Clone(keys)
		return nil
	}
}

// WithRankingSeries sets the series the leaderboard ranks by. It must be one
// of the series keys. Defaults to "access".
func WithRankingSeries(key string) Option {
	return func(cfg *rbConfig) error {
		if key == "" {
			return errors.New("ranking series cannot be empty")
		}
		cfg.rankingSeries = key
		return nil
	}
}

// WithSource polls an HTTP [Source] for snapshots.
//
// A board has at most one producer; combining WithSource and
// [WithSimulator] is an error.
func WithSource(src Source) Option {
	return func(cfg *rbConfig) error {
		if src.url == "" {
			return errors.New("source must be created with NewSource")
		}
		cfg.source = &src
		return nil
	}
}

// WithSimulator generates snapshots locally from a bounded random walk over
// seed. With no seed, [DefaultSeed] is used.
//
// The simulator accepts add, remove and set commands from the dashboard,
// the JSON API and WebSocket clients.
//
// Example:
//
//	rb, err := rankboard.New(
//	    rankboard.WithSimulator(),
//	    rankboard.WithTickInterval(time.Second),
//	)
func WithSimulator(seed ...Record) Option {
	return func(cfg *rbConfig) error {
		cfg.simulator = true
		if len(seed) > 0 {
			cfg.seed = make([]Record, len(seed))
			for i, rec := range seed {
				cfg.seed[i] = rec.Clone()
			}
		}
		return nil
	}
}

// WithTickInterval sets the time between simulator steps. Defaults to 2
// seconds. Returns an error if d is not positive.
func WithTickInterval(d time.Duration) Option {
	return func(cfg *rbConfig) error {
		if d <= 0 {
			return errors.New("tick interval must be positive")
		}
		cfg.tickInterval = d
		return nil
	}
}

// WithPollingInterval sets how often the [Source] is fetched when it has no
// interval of its own. Defaults to 15 seconds.
//
// Returns an error if the duration is zero or negative.
func WithPollingInterval(d time.Duration) Option {
	return func(cfg *rbConfig) error {
		if d <= 0 {
			return errors.New("polling interval must be positive")
		}
		cfg.pollingInterval = d
		return nil
	}
}

// WithPort sets the HTTP port for the dashboard server. Defaults to 8080.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *rbConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithTopN limits the leaderboard to the best n entities. Zero, the
// default, shows every entity.
func WithTopN(n int) Option {
	return func(cfg *rbConfig) error {
		if n < 0 {
			return errors.New("top n cannot be negative")
		}
		cfg.topN = n
		return nil
	}
}

// WithHistoryLimit caps how many samples the simulator keeps per series.
// Defaults to 20.
func WithHistoryLimit(n int) Option {
	return func(cfg *rbConfig) error {
		if n <= 0 {
			return errors.New("history limit must be positive")
		}
		cfg.historyLimit = n
		return nil
	}
}

// WithUnit sets how values are formatted for display. Defaults to
// [UnitBillions], matching [DefaultSeed].
func WithUnit(u Unit) Option {
	return func(cfg *rbConfig) error {
		switch u {
		case UnitOne, UnitBillions:
			cfg.unit = u
			return nil
		default:
			return fmt.Errorf("unknown unit %q (want %q or %q)", u, UnitOne, UnitBillions)
		}
	}
}

// WithOTLPEndpoint exports a trace span per applied batch to an OTLP/HTTP
// collector, e.g. "http://localhost:4318". Tracing is off by default.
func WithOTLPEndpoint(endpoint string) Option {
	return func(cfg *rbConfig) error {
		cfg.otlpEndpoint = endpoint
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default]
// is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *rbConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithUpdateCallback registers a function called after every applied batch.
//
// Multiple callbacks may be registered; they execute in registration order.
// Callbacks are invoked one at a time, never concurrently, and must not
// block: a slow callback delays the next batch. Panics are recovered and
// logged.
//
// Example:
//
//	rb, err := rankboard.New(
//	    rankboard.WithSimulator(),
//	    rankboard.WithUpdateCallback(func(u rankboard.Update) {
//	        if u.Top != nil {
//	            log.Printf("leader: %s", u.Top.Name)
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithUpdateCallback(cb func(Update)) Option {
	return func(cfg *rbConfig) error {
		if cb == nil {
			return nil
		}
		cfg.updateCallbacks = append(cfg.updateCallbacks, cb)
		return nil
	}
}

// WithTitle sets the dashboard title displayed in the browser tab and
// header. Defaults to "Rankboard".
func WithTitle(title string) Option {
	return func(cfg *rbConfig) error {
		cfg.title = title
		return nil
	}
}
