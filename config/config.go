// Package config provides YAML configuration parsing for rankboard.
//
// This package enables running rankboard as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
// Values from the file can be overridden by RANKBOARD_* environment
// variables, see [ApplyEnv].
//
// Example configuration:
//
//	title: Web Traffic
//	port: 8080
//	series_keys: [access, search, transaction, interaction]
//	ranking_series: access
//	top_n: 5
//
//	source:
//	  name: traffic
//	  url: https://stats.example.com/sites
//	  headers:
//	    Authorization: Bearer ${STATS_TOKEN}
//	  decoder: json:data.sites
//
// or, for the built-in random-walk producer:
//
//	simulator:
//	  enabled: true
//	  tick: 2s
package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/rankboard"
)

// minPollInterval is the minimum allowed polling interval for production configs.
// This prevents accidental DoS of sources with overly aggressive polling.
const minPollInterval = 1 * time.Second

// defaultSeriesKeys matches the series the simulator produces.
var defaultSeriesKeys = []string{"access", "search", "transaction", "interaction"}

// Config is the root configuration structure for rankboard.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "Rankboard" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// SeriesKeys lists the series every record may carry. Defaults to
	// access, search, transaction and interaction.
	SeriesKeys []string `yaml:"series_keys"`

	// RankingSeries is the series the leaderboard ranks by. Defaults to
	// "access".
	RankingSeries string `yaml:"ranking_series"`

	// TopN limits the leaderboard length. Zero shows every entity.
	TopN int `yaml:"top_n"`

	// Unit is "one" or "billions". Empty keeps the SDK default.
	Unit string `yaml:"unit"`

	// HistoryLimit caps the simulator's samples per series.
	HistoryLimit int `yaml:"history_limit"`

	// PollInterval is the time between source fetches when the source has
	// no interval of its own. Defaults to 15s.
	PollInterval Duration `yaml:"poll_interval"`

	// OTelEndpoint is an OTLP/HTTP collector URL. Empty disables tracing.
	// Supports environment variable substitution.
	OTelEndpoint string `yaml:"otel_endpoint"`

	// Source polls an HTTP endpoint for snapshots.
	Source *SourceConfig `yaml:"source"`

	// Simulator generates snapshots locally.
	Simulator SimulatorConfig `yaml:"simulator"`
}

// SourceConfig defines the HTTP snapshot source.
type SourceConfig struct {
	// Name identifies the source in logs and metrics.
	Name string `yaml:"name"`

	// URL is the snapshot URL.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url"`

	// Method is the HTTP method (GET or POST). Defaults to GET.
	Method string `yaml:"method"`

	// Timeout is the request timeout. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// Headers are custom HTTP headers sent with each request.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`

	// Decoder determines where the records sit in the response.
	// Can be shorthand ("array", "json:data.sites") or structured.
	Decoder DecoderConfig `yaml:"decoder"`

	// Interval overrides poll_interval for this source.
	// Must be between 1s and 1h.
	Interval Duration `yaml:"interval"`
}

// SimulatorConfig defines the built-in random-walk producer.
type SimulatorConfig struct {
	// Enabled turns the simulator on.
	Enabled bool `yaml:"enabled"`

	// Tick is the time between steps. Defaults to 2s.
	Tick Duration `yaml:"tick"`

	// Seed lists the starting entities. Empty uses the built-in seed.
	Seed []EntityConfig `yaml:"seed"`
}

// EntityConfig is one seed entity in flat record form:
//
//	- name: Bing
//	  logo: https://logo.clearbit.com/bing.com
//	  access: [0.9, 0.95]
type EntityConfig struct {
	Name   string               `yaml:"name"`
	Logo   string               `yaml:"logo"`
	Labels []string             `yaml:"labels"`
	Series map[string][]float64 `yaml:",inline"`
}

// DecoderConfig specifies how records are read from a response body.
//
// It supports two formats in YAML:
//
// Shorthand string:
//
//	decoder: default
//	decoder: array
//	decoder: json:data.sites
//
// Structured object:
//
//	decoder:
//	  type: json
//	  path: data.sites
type DecoderConfig struct {
	// Type is the decoder type: "default", "array" or "json".
	Type string

	// Path is the dot-separated field path (for type: json).
	Path string
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML implements yaml.Unmarshaler for DecoderConfig.
func (d *DecoderConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		return d.parseShorthand(s)
	}

	if node.Kind == yaml.MappingNode {
		// temporary struct to avoid infinite recursion
		var raw struct {
			Type string `yaml:"type"`
			Path string `yaml:"path"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		d.Type = raw.Type
		d.Path = raw.Path
		return nil
	}

	return fmt.Errorf("decoder must be a string or object, got %v", node.Kind)
}

// parseShorthand parses decoder shorthand syntax.
//
// Supported formats:
//   - "default" → bare array, then "data", then "entities"
//   - "array" → bare array only
//   - "json:path" → array at a dot-separated path
func (d *DecoderConfig) parseShorthand(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if typ, path, ok := strings.Cut(s, ":"); ok {
		if typ != "json" {
			return fmt.Errorf("unknown decoder type %q", typ)
		}
		d.Type = typ
		d.Path = path
		return nil
	}

	switch s {
	case "default", "array":
		d.Type = s
	default:
		return fmt.Errorf("unknown decoder %q (expected 'default', 'array' or 'json:path')", s)
	}
	return nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded and RANKBOARD_* overrides
// applied before validation. Returns an error if the file cannot be read or
// parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Defaults are applied for Port (8080), PollInterval (15s), SeriesKeys and
// RankingSeries, then RANKBOARD_* environment overrides, then validation.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.PollInterval == 0 {
		c.PollInterval = Duration(15 * time.Second)
	}
	if len(c.SeriesKeys) == 0 {
		c.SeriesKeys = append([]string(nil), defaultSeriesKeys...)
	}
	if c.RankingSeries == "" {
		c.RankingSeries = "access"
	}
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval.Duration())
	}

	seen := make(map[string]struct{}, len(c.SeriesKeys))
	for i, key := range c.SeriesKeys {
		if key == "" {
			return fmt.Errorf("series_keys[%d]: key cannot be empty", i)
		}
		if rankboard.IsReservedKey(key) {
			return fmt.Errorf("series_keys[%d]: %q is a reserved record field", i, key)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("series_keys[%d]: duplicate key %q", i, key)
		}
		seen[key] = struct{}{}
	}
	if _, ok := seen[c.RankingSeries]; !ok {
		return fmt.Errorf("ranking_series %q must be one of series_keys %v", c.RankingSeries, c.SeriesKeys)
	}

	if c.TopN < 0 {
		return fmt.Errorf("top_n cannot be negative, got %d", c.TopN)
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("history_limit cannot be negative, got %d", c.HistoryLimit)
	}
	switch c.Unit {
	case "", "one", "billions":
	default:
		return fmt.Errorf("unit must be 'one' or 'billions', got %q", c.Unit)
	}

	expanded, err := expandEnvVars(c.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("otel_endpoint: %w", err)
	}
	c.OTelEndpoint = expanded

	if c.Source != nil && c.Simulator.Enabled {
		return errors.New("source and simulator are mutually exclusive")
	}

	if c.Source != nil {
		if err := c.Source.expandAndValidate(); err != nil {
			return err
		}
	}

	return c.Simulator.validate()
}

func (s *SourceConfig) expandAndValidate() error {
	if s.Name == "" {
		return errors.New("source: name is required")
	}

	if s.URL == "" {
		return fmt.Errorf("source (%s): url is required", s.Name)
	}
	expanded, err := expandEnvVars(s.URL)
	if err != nil {
		return fmt.Errorf("source (%s): url: %w", s.Name, err)
	}
	s.URL = expanded

	parsedURL, err := url.Parse(s.URL)
	if err != nil {
		return fmt.Errorf("source (%s): invalid url: %w", s.Name, err)
	}
	if parsedURL.Scheme == "" {
		return fmt.Errorf("source (%s): url must have a scheme (http:// or https://)", s.Name)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("source (%s): url scheme must be http or https, got %q", s.Name, parsedURL.Scheme)
	}

	for k, v := range s.Headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("source (%s): headers[%s]: %w", s.Name, k, err)
		}
		s.Headers[k] = expanded
	}

	if s.Method != "" && s.Method != "GET" && s.Method != "POST" {
		return fmt.Errorf("source (%s): method must be GET or POST", s.Name)
	}

	if s.Timeout != 0 && s.Timeout.Duration() < time.Second {
		return fmt.Errorf("source (%s): timeout must be at least 1s if specified, got %s",
			s.Name, s.Timeout.Duration())
	}

	if s.Interval != 0 {
		if s.Interval.Duration() < time.Second {
			return fmt.Errorf("source (%s): interval must be at least 1s, got %s",
				s.Name, s.Interval.Duration())
		}
		if s.Interval.Duration() > time.Hour {
			return fmt.Errorf("source (%s): interval must not exceed 1h, got %s",
				s.Name, s.Interval.Duration())
		}
	}

	switch s.Decoder.Type {
	case "", "default", "array":
	case "json":
		if s.Decoder.Path == "" {
			return fmt.Errorf("source (%s): decoder type 'json' requires a path", s.Name)
		}
	default:
		return fmt.Errorf("source (%s): unknown decoder type %q", s.Name, s.Decoder.Type)
	}

	return nil
}

func (s *SimulatorConfig) validate() error {
	if !s.Enabled {
		if len(s.Seed) > 0 {
			return errors.New("simulator: seed given but simulator is not enabled")
		}
		return nil
	}

	if s.Tick != 0 && s.Tick.Duration() <= 0 {
		return fmt.Errorf("simulator: tick must be positive, got %s", s.Tick.Duration())
	}

	seen := make(map[string]struct{}, len(s.Seed))
	for i, e := range s.Seed {
		if e.Name == "" {
			return fmt.Errorf("simulator.seed[%d]: name is required", i)
		}
		key := strings.ToLower(e.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("simulator.seed[%d] (%s): duplicate name", i, e.Name)
		}
		seen[key] = struct{}{}
		if len(e.Series["access"]) == 0 {
			return fmt.Errorf("simulator.seed[%d] (%s): access series is required", i, e.Name)
		}
		for key, values := range e.Series {
			for j, v := range values {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return fmt.Errorf("simulator.seed[%d] (%s): %s[%d] must be a finite number, got %v", i, e.Name, key, j, v)
				}
			}
		}
	}

	return nil
}
