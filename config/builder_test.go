package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jpalmerr/rankboard"
)

func TestBuildOptions_Source(t *testing.T) {
	cfg, err := Parse([]byte(`
title: Traffic
port: 9090
series_keys: [access, search]
ranking_series: search
top_n: 3
unit: one
poll_interval: 20s
source:
  name: traffic
  url: https://stats.example.com/sites
  method: POST
  timeout: 5s
  interval: 30s
  headers:
    X-B: b
    X-A: a
  decoder: json:data
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	opts, err := BuildOptions(cfg)
	if err != nil {
		t.Fatalf("BuildOptions() error = %v", err)
	}
	rb, err := rankboard.New(opts...)
	if err != nil {
		t.Fatalf("rankboard.New() error = %v", err)
	}

	if rb.Port() != 9090 {
		t.Errorf("Port() = %d, want 9090", rb.Port())
	}
	if rb.RankingSeries() != "search" {
		t.Errorf("RankingSeries() = %q, want search", rb.RankingSeries())
	}
	if diff := cmp.Diff([]string{"access", "search"}, rb.SeriesKeys()); diff != "" {
		t.Errorf("SeriesKeys() mismatch (-want +got):\n%s", diff)
	}
	if rb.PollingInterval() != 20*time.Second {
		t.Errorf("PollingInterval() = %v, want 20s", rb.PollingInterval())
	}

	src, ok := rb.Source()
	if !ok {
		t.Fatal("Source() ok = false")
	}
	if src.Name() != "traffic" || src.Method() != "POST" || src.Timeout() != 5*time.Second || src.Interval() != 30*time.Second {
		t.Errorf("Source() = %+v", src)
	}
	if diff := cmp.Diff(map[string]string{"X-A": "a", "X-B": "b"}, src.Headers()); diff != "" {
		t.Errorf("Headers() mismatch (-want +got):\n%s", diff)
	}

	records, err := src.Decoder()([]byte(`{"data": [{"name": "Google", "access": [3.2]}]}`))
	if err != nil || len(records) != 1 || records[0].Name != "Google" {
		t.Errorf("Decoder() = %+v, %v; want Google", records, err)
	}
}

func TestBuildOptions_Simulator(t *testing.T) {
	cfg, err := Parse([]byte(`
simulator:
  enabled: true
  tick: 1s
  seed:
    - name: Bing
      access: [0.9]
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	opts, err := BuildOptions(cfg)
	if err != nil {
		t.Fatalf("BuildOptions() error = %v", err)
	}
	rb, err := rankboard.New(opts...)
	if err != nil {
		t.Fatalf("rankboard.New() error = %v", err)
	}

	// the simulator accepts commands; a duplicate proves the seed was used
	if err := rb.Add(t.Context(), rankboard.Record{Name: "bing", Series: map[string][]float64{"access": {1}}}); err == nil {
		t.Error("Add(bing) expected duplicate error, got nil")
	}
	if _, ok := rb.Source(); ok {
		t.Error("Source() ok = true with the simulator")
	}
}

func TestBuildOptions_NoProducer(t *testing.T) {
	cfg, err := Parse([]byte(`title: API only`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	opts, err := BuildOptions(cfg)
	if err != nil {
		t.Fatalf("BuildOptions() error = %v", err)
	}
	rb, err := rankboard.New(opts...)
	if err != nil {
		t.Fatalf("rankboard.New() error = %v", err)
	}
	if err := rb.Remove(t.Context(), "x"); err != rankboard.ErrReadOnly {
		t.Errorf("Remove() error = %v, want ErrReadOnly", err)
	}
}

func TestBuildDecoder(t *testing.T) {
	tests := []struct {
		name    string
		cfg     DecoderConfig
		wantNil bool
		body    string
	}{
		{"empty", DecoderConfig{}, true, ""},
		{"default", DecoderConfig{Type: "default"}, true, ""},
		{"array", DecoderConfig{Type: "array"}, false, `[{"name": "A", "access": [1]}]`},
		{"json", DecoderConfig{Type: "json", Path: "x.y"}, false, `{"x": {"y": [{"name": "A", "access": [1]}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := buildDecoder(tt.cfg)
			if (d == nil) != tt.wantNil {
				t.Fatalf("buildDecoder() nil = %v, want %v", d == nil, tt.wantNil)
			}
			if d == nil {
				return
			}
			records, err := d([]byte(tt.body))
			if err != nil || len(records) != 1 {
				t.Errorf("decoder() = %+v, %v; want one record", records, err)
			}
		})
	}
}

func TestMapToKeyValuePairs_Sorted(t *testing.T) {
	got := mapToKeyValuePairs(map[string]string{"b": "2", "a": "1", "c": "3"})
	if diff := cmp.Diff([]string{"a", "1", "b", "2", "c", "3"}, got); diff != "" {
		t.Errorf("pairs mismatch (-want +got):\n%s", diff)
	}
}
