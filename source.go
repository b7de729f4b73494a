package rankboard

import (
	"errors"
	"maps"
	"net/url"
	"time"
)

const defaultSourceTimeout = 10 * time.Second

// Source is an HTTP location that serves snapshot batches.
//
// Source is immutable after creation via [NewSource]. Getters return copies
// of mutable data.
//
// Sources are configured using [SourceOption] functions such as
// [WithHeaders], [WithTimeout], [WithDecoder], [WithMethod] and
// [WithInterval].
type Source struct {
	name     string
	url      string
	headers  map[string]string
	timeout  time.Duration
	decoder  Decoder
	method   string
	interval time.Duration
}

// Name returns the source's name, used in logs and metrics.
func (s Source) Name() string {
	return s.name
}

// URL returns the snapshot URL.
func (s Source) URL() string {
	return s.url
}

// Headers returns a copy of the custom request headers.
func (s Source) Headers() map[string]string {
	return copyMap(s.headers)
}

// Timeout returns the per-request timeout. Defaults to 10 seconds.
func (s Source) Timeout() time.Duration {
	return s.timeout
}

// Decoder returns the configured [Decoder], or nil when [DefaultDecoder]
// applies.
func (s Source) Decoder() Decoder {
	return s.decoder
}

// Method returns the HTTP method, or "" for GET.
func (s Source) Method() string {
	return s.method
}

// Interval returns the source's own polling interval, or 0 when the
// interval set by [WithPollingInterval] applies.
func (s Source) Interval() time.Duration {
	return s.interval
}

// NewSource creates a [Source] with the given name, URL and options.
//
// The URL must have an http or https scheme. Returns an error if the name
// is empty, the URL is invalid or an option fails.
//
// Example:
//
//	src, err := rankboard.NewSource("traffic", "https://stats.example.com/sites",
//	    rankboard.WithHeaders("Authorization", "Bearer token"),
//	    rankboard.WithDecoder(rankboard.JSONFieldDecoder("data.sites")),
//	)
func NewSource(name, rawURL string, opts ...SourceOption) (Source, error) {
	if name == "" {
		return Source{}, errors.New("source name cannot be empty")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return Source{}, errors.New("invalid URL: " + err.Error())
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return Source{}, errors.New("URL must have a scheme (http:// or https://)")
	}

	cfg := &sourceConfig{
		headers: make(map[string]string),
		timeout: defaultSourceTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Source{}, err
		}
	}

	return Source{
		name:     name,
		url:      rawURL,
		headers:  cfg.headers,
		timeout:  cfg.timeout,
		decoder:  cfg.decoder,
		method:   cfg.method,
		interval: cfg.interval,
	}, nil
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}
