package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// envPrefix namespaces every override variable.
const envPrefix = "RANKBOARD_"

// overrides holds the settings that can be set from the environment.
type overrides struct {
	Title         string        `env:"TITLE"`
	Port          int           `env:"PORT"`
	RankingSeries string        `env:"RANKING_SERIES"`
	TopN          *int          `env:"TOP_N"`
	PollInterval  time.Duration `env:"POLL_INTERVAL"`
	OTelEndpoint  string        `env:"OTEL_ENDPOINT"`
	SourceURL     string        `env:"SOURCE_URL"`
}

// ApplyEnv overrides cfg with RANKBOARD_* environment variables:
//
//	RANKBOARD_TITLE, RANKBOARD_PORT, RANKBOARD_RANKING_SERIES,
//	RANKBOARD_TOP_N, RANKBOARD_POLL_INTERVAL, RANKBOARD_OTEL_ENDPOINT,
//	RANKBOARD_SOURCE_URL
//
// Unset variables leave cfg unchanged. RANKBOARD_SOURCE_URL only applies
// when the file configures a source. [Parse] calls ApplyEnv before
// validation.
func ApplyEnv(cfg *Config) error {
	var o overrides
	if err := env.ParseWithOptions(&o, env.Options{Prefix: envPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	if o.Title != "" {
		cfg.Title = o.Title
	}
	if o.Port != 0 {
		cfg.Port = o.Port
	}
	if o.RankingSeries != "" {
		cfg.RankingSeries = o.RankingSeries
	}
	if o.TopN != nil {
		cfg.TopN = *o.TopN
	}
	if o.PollInterval != 0 {
		cfg.PollInterval = Duration(o.PollInterval)
	}
	if o.OTelEndpoint != "" {
		cfg.OTelEndpoint = o.OTelEndpoint
	}
	if o.SourceURL != "" && cfg.Source != nil {
		cfg.Source.URL = o.SourceURL
	}
	return nil
}
