package rankboard

import (
	"errors"
	"net/http"
	"time"
)

// sourceConfig holds mutable state during Source construction.
type sourceConfig struct {
	headers  map[string]string
	timeout  time.Duration
	decoder  Decoder
	method   string
	interval time.Duration
}

// SourceOption configures a [Source] during construction.
type SourceOption func(*sourceConfig) error

// WithHeaders adds HTTP headers sent with every snapshot request.
//
// Arguments are key-value pairs. Returns an error if an odd number of
// arguments is given. Calling it several times merges the headers, later
// values winning.
//
// Example:
//
//	src, err := rankboard.NewSource("traffic", url,
//	    rankboard.WithHeaders("Authorization", "Bearer token", "Accept-Language", "en"),
//	)
func WithHeaders(keyValues ...string) SourceOption {
	return func(cfg *sourceConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("headers must be key-value pairs")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithTimeout sets the per-request timeout. Defaults to 10 seconds.
// Returns an error if d is not positive.
func WithTimeout(d time.Duration) SourceOption {
	return func(cfg *sourceConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithDecoder sets how response bodies become batches. Defaults to
// [DefaultDecoder]. A nil decoder restores the default.
func WithDecoder(d Decoder) SourceOption {
	return func(cfg *sourceConfig) error {
		cfg.decoder = d
		return nil
	}
}

// WithMethod sets the HTTP method. Only GET (the default) and POST are
// accepted, since a snapshot needs a body.
func WithMethod(method string) SourceOption {
	return func(cfg *sourceConfig) error {
		switch method {
		case http.MethodGet, http.MethodPost:
			cfg.method = method
			return nil
		default:
			return errors.New("method must be GET or POST")
		}
	}
}

// WithInterval sets the polling interval for this source, overriding
// [WithPollingInterval].
//
// The interval must be at least 1 second and at most 1 hour.
func WithInterval(d time.Duration) SourceOption {
	return func(cfg *sourceConfig) error {
		if d < time.Second {
			return errors.New("interval must be at least 1 second")
		}
		if d > time.Hour {
			return errors.New("interval must not exceed 1 hour")
		}
		cfg.interval = d
		return nil
	}
}
