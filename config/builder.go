package config

import (
	"fmt"
	"maps"
	"slices"

	"github.com/jpalmerr/rankboard"
)

// BuildOptions converts parsed configuration into SDK options for
// [rankboard.New].
//
// The logger and update callbacks are left to the caller.
func BuildOptions(cfg *Config) ([]rankboard.Option, error) {
	opts := []rankboard.Option{
		rankboard.WithTitle(cfg.Title),
		rankboard.WithPort(cfg.Port),
		rankboard.WithSeriesKeys(cfg.SeriesKeys...),
		rankboard.WithRankingSeries(cfg.RankingSeries),
		rankboard.WithTopN(cfg.TopN),
		rankboard.WithPollingInterval(cfg.PollInterval.Duration()),
		rankboard.WithOTLPEndpoint(cfg.OTelEndpoint),
	}

	if cfg.Unit != "" {
		opts = append(opts, rankboard.WithUnit(rankboard.Unit(cfg.Unit)))
	}
	if cfg.HistoryLimit > 0 {
		opts = append(opts, rankboard.WithHistoryLimit(cfg.HistoryLimit))
	}

	if cfg.Source != nil {
		src, err := buildSource(*cfg.Source)
		if err != nil {
			return nil, err
		}
		opts = append(opts, rankboard.WithSource(src))
	}

	if cfg.Simulator.Enabled {
		opts = append(opts, rankboard.WithSimulator(buildSeed(cfg.Simulator.Seed)...))
		if cfg.Simulator.Tick != 0 {
			opts = append(opts, rankboard.WithTickInterval(cfg.Simulator.Tick.Duration()))
		}
	}

	return opts, nil
}

// buildSource converts a SourceConfig to an SDK Source.
func buildSource(sc SourceConfig) (rankboard.Source, error) {
	var opts []rankboard.SourceOption

	if sc.Method != "" {
		opts = append(opts, rankboard.WithMethod(sc.Method))
	}

	if sc.Timeout != 0 {
		opts = append(opts, rankboard.WithTimeout(sc.Timeout.Duration()))
	}

	if len(sc.Headers) > 0 {
		opts = append(opts, rankboard.WithHeaders(mapToKeyValuePairs(sc.Headers)...))
	}

	if decoder := buildDecoder(sc.Decoder); decoder != nil {
		opts = append(opts, rankboard.WithDecoder(decoder))
	}

	if sc.Interval != 0 {
		opts = append(opts, rankboard.WithInterval(sc.Interval.Duration()))
	}

	src, err := rankboard.NewSource(sc.Name, sc.URL, opts...)
	if err != nil {
		return rankboard.Source{}, fmt.Errorf("source (%s): %w", sc.Name, err)
	}
	return src, nil
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	keys := slices.Sorted(maps.Keys(m))

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}

// buildDecoder converts DecoderConfig to a Decoder.
// Returns nil for default/empty decoders (SDK uses DefaultDecoder).
func buildDecoder(dc DecoderConfig) rankboard.Decoder {
	switch dc.Type {
	case "array":
		return rankboard.JSONArrayDecoder
	case "json":
		return rankboard.JSONFieldDecoder(dc.Path)
	default:
		return nil
	}
}

// buildSeed converts seed entities to records. Nil means the built-in seed.
func buildSeed(entities []EntityConfig) []rankboard.Record {
	if len(entities) == 0 {
		return nil
	}
	records := make([]rankboard.Record, len(entities))
	for i, e := range entities {
		records[i] = rankboard.Record{
			Name:   e.Name,
			Logo:   e.Logo,
			Series: e.Series,
			Labels: e.Labels,
		}
	}
	return records
}
